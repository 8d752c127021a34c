package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
	"github.com/trezcool/educa/services/logger"
)

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func NewValidator() (*validator.Validate, ut.Translator) {
	english := en.New()
	translator, _ := ut.New(english, english).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	if roles == nil {
		roles = []string{}
	}
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateSubject(t *testing.T, repo course.Repository, title, slug string) course.Subject {
	sub, err := repo.CreateSubject(context.Background(), course.Subject{Title: title, Slug: slug})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

func CreateCourse(t *testing.T, repo course.Repository, ownerID, subjectID int, title, slug string) course.Course {
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		OwnerID:   ownerID,
		SubjectID: subjectID,
		Title:     title,
		Slug:      slug,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return crs
}

// CreateModule appends a module to the course.
func CreateModule(t *testing.T, repo course.Repository, courseID int, title string) course.Module {
	mod, err := repo.CreateModule(context.Background(), course.Module{CourseID: courseID, Title: title})
	if err != nil {
		t.Fatalf("CreateModule() failed: %v", err)
	}
	return mod
}

// CreateText creates a text item and appends a slot for it to the module.
func CreateText(
	t *testing.T,
	items content.Registry,
	repo content.Repository,
	ownerID, moduleID int,
	title, text string,
) content.Content {
	ctx := context.Background()
	now := time.Now().UTC()

	item, err := items[content.KindText].CreateItem(ctx, &content.Text{
		ItemBase: content.ItemBase{OwnerID: ownerID, Title: title, CreatedAt: now, UpdatedAt: now},
		Content:  text,
	})
	if err != nil {
		t.Fatalf("CreateText() failed: %v", err)
	}
	slot, err := repo.CreateContent(ctx, content.Content{ModuleID: moduleID, Kind: content.KindText, ObjectID: item.ItemID()})
	if err != nil {
		t.Fatalf("CreateText() failed: %v", err)
	}
	slot.Item = item
	return slot
}
