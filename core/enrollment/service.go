package enrollment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
)

var (
	// errors
	ErrNotEnrolled      = errors.New("you are not enrolled in this course")
	ErrInvalidSeconds   = errors.New("invalid seconds value")
	ErrProgressNotFound = errors.New("module progress not found")
)

const reminderSubject = "Enroll in a course"

type (
	ModuleProgress struct {
		ID           int       `json:"id"`
		UserID       int       `json:"user_id"`
		CourseID     int       `json:"course_id"`
		ModuleID     int       `json:"module_id"`
		Completed    bool      `json:"completed"`
		TimeSpent    int       `json:"time_spent"` // seconds
		LastAccessed time.Time `json:"last_accessed"`
	}

	CourseProgress struct {
		CourseID         int    `json:"course_id"`
		TimeSpent        int    `json:"time_spent"` // seconds
		TimeSpentDisplay string `json:"time_spent_display"`
	}

	Repository interface {
		// Enroll adds the user to the course students; enrolling twice is a no-op.
		Enroll(ctx context.Context, courseID, userID int, exec ...core.DBExecutor) error
		IsEnrolled(ctx context.Context, courseID, userID int, exec ...core.DBExecutor) (bool, error)
		QueryEnrolledCourses(ctx context.Context, userID int, exec ...core.DBExecutor) ([]course.Course, error)

		// MarkModuleCompleted creates the progress row if needed and flags it completed.
		MarkModuleCompleted(ctx context.Context, userID, courseID, moduleID int, exec ...core.DBExecutor) error
		// AddTimeSpent creates the progress row if needed and atomically increments its time spent.
		AddTimeSpent(ctx context.Context, userID, courseID, moduleID, seconds int, exec ...core.DBExecutor) error
		GetProgress(ctx context.Context, userID, moduleID int, exec ...core.DBExecutor) (ModuleProgress, error)
		SumTimeSpent(ctx context.Context, userID, courseID int, exec ...core.DBExecutor) (int, error)
		// CountModules counts the modules of the courses the user is enrolled in, and how many are completed.
		CountModules(ctx context.Context, userID int, exec ...core.DBExecutor) (total, completed int, err error)

		// QueryUnenrolledUsers returns active users with an email, joined at or before the cutoff,
		// enrolled in no course.
		QueryUnenrolledUsers(ctx context.Context, joinedBefore time.Time, exec ...core.DBExecutor) ([]user.User, error)
	}

	Service struct {
		repo    Repository
		courses *course.Service
		mailSvc core.EmailService
		logger  core.Logger
		now     func() time.Time
	}
)

func NewService(repo Repository, courses *course.Service, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{
		repo:    repo,
		courses: courses,
		mailSvc: mailSvc,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) Enroll(ctx context.Context, userID, courseID int) (course.Course, error) {
	crs, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return course.Course{}, err
	}
	if err := svc.repo.Enroll(ctx, courseID, userID); err != nil {
		return course.Course{}, pkgerrors.Wrap(err, "enrolling student")
	}
	return crs, nil
}

func (svc *Service) IsEnrolled(ctx context.Context, userID, courseID int) (bool, error) {
	return svc.repo.IsEnrolled(ctx, courseID, userID)
}

// RequireEnrolled returns ErrNotEnrolled unless the user is a student of the course.
func (svc *Service) RequireEnrolled(ctx context.Context, userID, courseID int) error {
	ok, err := svc.repo.IsEnrolled(ctx, courseID, userID)
	if err != nil {
		return pkgerrors.Wrap(err, "checking enrollment")
	}
	if !ok {
		return ErrNotEnrolled
	}
	return nil
}

func (svc *Service) QueryEnrolledCourses(ctx context.Context, userID int) ([]course.Course, error) {
	return svc.repo.QueryEnrolledCourses(ctx, userID)
}

// enrolledModule returns the module once the user is known to be a student of its course.
func (svc *Service) enrolledModule(ctx context.Context, userID, moduleID int) (course.Module, error) {
	mod, err := svc.courses.GetModule(ctx, moduleID)
	if err != nil {
		return course.Module{}, err
	}
	if err := svc.RequireEnrolled(ctx, userID, mod.CourseID); err != nil {
		return course.Module{}, err
	}
	return mod, nil
}

func (svc *Service) MarkModuleCompleted(ctx context.Context, userID, moduleID int) error {
	mod, err := svc.enrolledModule(ctx, userID, moduleID)
	if err != nil {
		return err
	}
	return pkgerrors.Wrap(svc.repo.MarkModuleCompleted(ctx, userID, mod.CourseID, mod.ID), "marking module completed")
}

// AddTimeSpent records seconds spent by the user on the module. Zero seconds are ignored.
func (svc *Service) AddTimeSpent(ctx context.Context, userID, moduleID, seconds int) error {
	if seconds < 0 {
		return core.NewValidationError(ErrInvalidSeconds, core.FieldError{Field: "seconds", Error: ErrInvalidSeconds.Error()})
	}
	mod, err := svc.enrolledModule(ctx, userID, moduleID)
	if err != nil {
		return err
	}
	if seconds == 0 {
		return nil
	}
	return pkgerrors.Wrap(svc.repo.AddTimeSpent(ctx, userID, mod.CourseID, mod.ID, seconds), "adding time spent")
}

func (svc *Service) GetModuleProgress(ctx context.Context, userID, moduleID int) (ModuleProgress, error) {
	return svc.repo.GetProgress(ctx, userID, moduleID)
}

// CourseProgress returns the total time the user spent on the course modules.
func (svc *Service) CourseProgress(ctx context.Context, userID, courseID int) (CourseProgress, error) {
	if err := svc.RequireEnrolled(ctx, userID, courseID); err != nil {
		return CourseProgress{}, err
	}
	total, err := svc.repo.SumTimeSpent(ctx, userID, courseID)
	if err != nil {
		return CourseProgress{}, pkgerrors.Wrap(err, "summing time spent")
	}
	return CourseProgress{
		CourseID:         courseID,
		TimeSpent:        total,
		TimeSpentDisplay: FormatDuration(total),
	}, nil
}

// OverallProgress returns the percentage of completed modules over every enrolled course,
// rounded to 2 decimals; 0 when those courses have no module.
func (svc *Service) OverallProgress(ctx context.Context, userID int) (float64, error) {
	total, completed, err := svc.repo.CountModules(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "counting modules")
	}
	return progressPercent(completed, total), nil
}

func progressPercent(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*100*100) / 100
}

// SendEnrollReminders emails every active user who joined at least `days` ago and has not
// enrolled in any course yet. It returns the number of reminders sent.
func (svc *Service) SendEnrollReminders(ctx context.Context, days int) (int, error) {
	if days < 0 {
		days = 0
	}
	cutoff := svc.now().Add(-time.Duration(days) * 24 * time.Hour)

	users, err := svc.repo.QueryUnenrolledUsers(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "querying unenrolled users")
	}

	messages := make([]*core.EmailMessage, 0, len(users))
	for _, usr := range users {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      reminderSubject,
			TemplateName: "enroll_reminder",
			TemplateData: map[string]interface{}{"Name": usr.DisplayName()},
		})
	}
	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	svc.logger.Info(fmt.Sprintf("Sent %d reminders.", len(messages)))
	return len(messages), nil
}
