package course

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/ordering"
)

type Subject struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// SubjectStats is a Subject annotated for the catalog.
type SubjectStats struct {
	Subject
	TotalCourses   int      `json:"total_courses"`
	PopularCourses []string `json:"popular_courses"` // "<title> (<n> Students)", top 3
}

// PopularCourse formats a catalog entry of SubjectStats.PopularCourses.
func PopularCourse(title string, students int) string {
	return fmt.Sprintf("%s (%d Students)", title, students)
}

type Course struct {
	ID        int       `json:"id"`
	OwnerID   int       `json:"owner_id"`
	SubjectID int       `json:"subject_id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Overview  string    `json:"overview"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// CourseSummary is a Course annotated for the catalog.
type CourseSummary struct {
	Course
	TotalModules int `json:"total_modules"`
}

type Module struct {
	ID          int      `json:"id"`
	CourseID    int      `json:"course_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Order       null.Int `json:"order"`
}

var _ ordering.Ordered = (*Module)(nil)

func (m *Module) OrderScope() ordering.Scope {
	return ordering.Scope{{Column: "course_id", Value: m.CourseID}}
}
func (m *Module) OrderValue() null.Int { return m.Order }
func (m *Module) SetOrder(order int)   { m.Order = null.IntFrom(order) }

type CourseFilter struct {
	OwnerID   int
	SubjectID int
}

type NewSubject struct {
	Title string `json:"title" validate:"required,max=200"`
	Slug  string `json:"slug" validate:"required,max=200,slug"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Slug = core.CleanString(ns.Slug, true /* lower */)
	if ns.Slug == "" {
		ns.Slug = core.Slugify(ns.Title)
	}
	return validate.Struct(ns)
}

// NewCourse contains information needed to create (or fully update) a Course.
type NewCourse struct {
	SubjectID int    `json:"subject_id" validate:"required"`
	Title     string `json:"title" validate:"required,max=200"`
	Slug      string `json:"slug" validate:"required,max=200,slug"`
	Overview  string `json:"overview"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Slug = core.CleanString(nc.Slug, true /* lower */)
	nc.Overview = core.CleanString(nc.Overview)
	if nc.Slug == "" {
		nc.Slug = core.Slugify(nc.Title)
	}
	return validate.Struct(nc)
}

// NewModule contains information needed to create a Module.
// Order is optional: when absent the module is appended to its course.
type NewModule struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description"`
	Order       null.Int `json:"order"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	if err := validate.Struct(nm); err != nil {
		return err
	}
	if nm.Order.Valid && nm.Order.Int < 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "order", Error: "order must be a positive integer"})
	}
	return nil
}

type UpdateModule struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
}

func (um *UpdateModule) Validate(validate *validator.Validate) error {
	um.Title = core.CleanString(um.Title)
	um.Description = core.CleanString(um.Description)
	return validate.Struct(um)
}
