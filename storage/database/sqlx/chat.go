package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/chat"
)

type messageRow struct {
	ID       int       `db:"id"`
	UserID   int       `db:"user_id"`
	Username string    `db:"username"`
	CourseID int       `db:"course_id"`
	Content  string    `db:"content"`
	SentOn   time.Time `db:"sent_on"`
}

type chatRepository struct {
	repository
}

var _ chat.Repository = (*chatRepository)(nil) // interface compliance check

func NewChatRepository(db *sqlx.DB) chat.Repository {
	return &chatRepository{repository{db: db}}
}

func (repo chatRepository) CreateMessage(ctx context.Context, msg chat.Message, exec ...core.DBExecutor) (chat.Message, error) {
	err := sqlx.GetContext(ctx, repo.getExec(exec), &msg.ID,
		`INSERT INTO "chat_message" ("user_id", "course_id", "content", "sent_on") VALUES ($1, $2, $3, $4) RETURNING "id"`,
		msg.UserID, msg.CourseID, msg.Content, msg.SentOn.UTC())
	if err != nil {
		return chat.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo chatRepository) QueryMessages(ctx context.Context, courseID, offset, limit int, exec ...core.DBExecutor) ([]chat.Message, error) {
	if offset < 0 || limit <= 0 {
		return []chat.Message{}, nil
	}
	var rows []messageRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows,
		`SELECT "chat_message"."id", "chat_message"."user_id", "user"."username", "chat_message"."course_id",
			"chat_message"."content", "chat_message"."sent_on"
		FROM "chat_message" JOIN "user" ON "user"."id" = "chat_message"."user_id"
		WHERE "chat_message"."course_id" = $1
		ORDER BY "chat_message"."sent_on" DESC, "chat_message"."id" DESC
		OFFSET $2 LIMIT $3`, courseID, offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "selecting messages")
	}
	msgs := make([]chat.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, chat.Message{
			ID:       r.ID,
			UserID:   r.UserID,
			Username: r.Username,
			CourseID: r.CourseID,
			Content:  r.Content,
			SentOn:   r.SentOn.UTC(),
		})
	}
	return msgs, nil
}
