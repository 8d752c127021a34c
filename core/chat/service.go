package chat

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/enrollment"
)

// PageSize is the number of messages per history page.
const PageSize = 100

var ErrForbidden = errors.New("you are not a student of this course")

type (
	Message struct {
		ID       int       `json:"id"`
		UserID   int       `json:"user_id"`
		Username string    `json:"user"`
		CourseID int       `json:"course_id"`
		Content  string    `json:"content"`
		SentOn   time.Time `json:"sent_on"`
	}

	NewMessage struct {
		Content string `json:"content" validate:"required,max=4000"`
	}

	// History is one page of a course chat, oldest message first.
	History struct {
		Messages []Message `json:"messages"`
		HasNext  bool      `json:"has_next"`
	}

	Repository interface {
		CreateMessage(ctx context.Context, msg Message, exec ...core.DBExecutor) (Message, error)
		// QueryMessages returns up to limit messages of the course, newest first, skipping offset.
		QueryMessages(ctx context.Context, courseID, offset, limit int, exec ...core.DBExecutor) ([]Message, error)
	}

	Service struct {
		repo     Repository
		students *enrollment.Service
	}
)

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

func NewService(repo Repository, students *enrollment.Service) *Service {
	return &Service{repo: repo, students: students}
}

func (svc *Service) requireStudent(ctx context.Context, userID, courseID int) error {
	if err := svc.students.RequireEnrolled(ctx, userID, courseID); err != nil {
		if pkgerrors.Cause(err) == enrollment.ErrNotEnrolled {
			return ErrForbidden
		}
		return err
	}
	return nil
}

func (svc *Service) Post(ctx context.Context, userID int, username string, courseID int, nm NewMessage) (Message, error) {
	if err := svc.requireStudent(ctx, userID, courseID); err != nil {
		return Message{}, err
	}
	msg, err := svc.repo.CreateMessage(ctx, Message{
		UserID:   userID,
		Username: username,
		CourseID: courseID,
		Content:  nm.Content,
		SentOn:   time.Now().UTC(),
	})
	return msg, pkgerrors.Wrap(err, "creating message")
}

// History returns the given 1-based page of the course chat. Pages are counted from the newest
// message; each page is returned in chronological order. Out of range pages are empty.
func (svc *Service) History(ctx context.Context, userID, courseID, page int) (History, error) {
	if err := svc.requireStudent(ctx, userID, courseID); err != nil {
		return History{}, err
	}
	if page < 1 || page > math.MaxInt/PageSize {
		return History{Messages: []Message{}}, nil
	}

	// fetch one extra row to know whether an older page exists
	msgs, err := svc.repo.QueryMessages(ctx, courseID, (page-1)*PageSize, PageSize+1)
	if err != nil {
		return History{}, pkgerrors.Wrap(err, "querying messages")
	}
	hist := History{HasNext: len(msgs) > PageSize}
	if hist.HasNext {
		msgs = msgs[:PageSize]
	}
	hist.Messages = make([]Message, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		hist.Messages = append(hist.Messages, msgs[i])
	}
	return hist, nil
}
