package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/chat"
)

type chatRepository struct {
	db *DB
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *DB) chat.Repository {
	return &chatRepository{db: db}
}

func (repo *chatRepository) CreateMessage(_ context.Context, msg chat.Message, exec ...core.DBExecutor) (chat.Message, error) {
	err := repo.db.write(exec, func() error {
		msg.ID = repo.db.nextPK("chat_message")
		repo.db.messages[msg.ID] = msg
		return nil
	})
	if err != nil {
		return chat.Message{}, err
	}
	return msg, nil
}

func (repo *chatRepository) QueryMessages(_ context.Context, courseID, offset, limit int, exec ...core.DBExecutor) ([]chat.Message, error) {
	msgs := make([]chat.Message, 0)
	err := repo.db.read(exec, func() error {
		for _, msg := range repo.db.messages {
			if msg.CourseID != courseID {
				continue
			}
			if usr, ok := repo.db.users[msg.UserID]; ok {
				msg.Username = usr.Username
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// newest first
	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].SentOn.Equal(msgs[j].SentOn) {
			return msgs[i].SentOn.After(msgs[j].SentOn)
		}
		return msgs[i].ID > msgs[j].ID
	})
	if offset < 0 || limit <= 0 || offset >= len(msgs) {
		return []chat.Message{}, nil
	}
	msgs = msgs[offset:]
	if limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs, nil
}
