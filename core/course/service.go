package course

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/ordering"
	"github.com/trezcool/educa/core/ownership"
)

var (
	// errors
	ErrNotFound          = errors.New("course not found")
	ErrSubjectNotFound   = errors.New("subject not found")
	ErrModuleNotFound    = errors.New("module not found")
	ErrSlugExists        = errors.New("a course with this slug already exists")
	ErrSubjectSlugExists = errors.New("a subject with this slug already exists")
)

// catalog cache keys
const (
	allSubjectsKey = "all_subjects"
	allCoursesKey  = "all_courses"
)

func subjectCoursesKey(subjectID int) string {
	return fmt.Sprintf("subject_%d_courses", subjectID)
}

type (
	Repository interface {
		CreateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (Subject, error)
		GetSubjectBySlug(ctx context.Context, slug string, exec ...core.DBExecutor) (Subject, error)
		QuerySubjectStats(ctx context.Context, exec ...core.DBExecutor) ([]SubjectStats, error)

		CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
		DeleteCourse(ctx context.Context, id int, exec ...core.DBExecutor) error
		GetCourseByID(ctx context.Context, id int, exec ...core.DBExecutor) (Course, error)
		// QueryCourses returns courses matching every non-zero filter field, newest first.
		QueryCourses(ctx context.Context, filter CourseFilter, exec ...core.DBExecutor) ([]CourseSummary, error)

		// CreateModule assigns the next order of the course when mod.Order is not set.
		CreateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		UpdateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
		SetModuleOrder(ctx context.Context, id, order int, exec ...core.DBExecutor) error
		DeleteModule(ctx context.Context, id int, exec ...core.DBExecutor) error
		GetModuleByID(ctx context.Context, id int, exec ...core.DBExecutor) (Module, error)
		// QueryModules returns the modules of a course by order.
		QueryModules(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]Module, error)
	}

	Service struct {
		repo        Repository
		owners      ownership.Checker
		moduleOrder *ordering.Updater
		cache       core.Cache
		cacheTTL    time.Duration
		loads       singleflight.Group
		logger      core.Logger
	}
)

// moduleOrders adapts the repository to ordering.Store.
type moduleOrders struct {
	repo Repository
}

func (s moduleOrders) SetOrder(ctx context.Context, id, order int, exec ...core.DBExecutor) error {
	err := s.repo.SetModuleOrder(ctx, id, order, exec...)
	if errors.Is(err, ErrModuleNotFound) {
		return ordering.ErrRowNotFound
	}
	return err
}

func NewService(
	conf *core.Config,
	repo Repository,
	owners ownership.Checker,
	cache core.Cache,
	recorder ordering.Recorder,
	logger core.Logger,
) *Service {
	return &Service{
		repo:        repo,
		owners:      owners,
		moduleOrder: ordering.NewUpdater(ownership.Module, owners, moduleOrders{repo: repo}, recorder),
		cache:       cache,
		cacheTTL:    conf.CatalogCacheTTL,
		logger:      logger,
	}
}

// cached returns the value stored under key, loading and storing it on a miss.
// Concurrent misses on the same key share a single load.
func cached[T any](ctx context.Context, svc *Service, key string, load func() (T, error)) (T, error) {
	var val T
	ok, err := svc.cache.Get(ctx, key, &val)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("reading cache %q: %v", key, err), err)
	} else if ok {
		return val, nil
	}

	res, err, _ := svc.loads.Do(key, func() (interface{}, error) {
		v, err := load()
		if err != nil {
			return nil, err
		}
		if err := svc.cache.Set(ctx, key, v, svc.cacheTTL); err != nil {
			svc.logger.Warn(fmt.Sprintf("writing cache %q: %v", key, err), err)
		}
		return v, nil
	})
	if err != nil {
		return val, err
	}
	return res.(T), nil
}

func (svc *Service) invalidateCatalog(ctx context.Context, subjectIDs ...int) {
	keys := []string{allSubjectsKey, allCoursesKey}
	for _, id := range subjectIDs {
		keys = append(keys, subjectCoursesKey(id))
	}
	if err := svc.cache.Delete(ctx, keys...); err != nil {
		svc.logger.Warn(fmt.Sprintf("invalidating catalog cache: %v", err), err)
	}
}

func (svc *Service) requireOwner(ctx context.Context, kind ownership.Kind, id, ownerID int, notFound error) error {
	if err := ownership.Require(ctx, svc.owners, kind, id, ownerID); err != nil {
		if err == ownership.ErrNotOwned {
			return notFound
		}
		return pkgerrors.Wrapf(err, "checking %s ownership", kind)
	}
	return nil
}

// Subjects

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	sub, err := svc.repo.CreateSubject(ctx, Subject{Title: ns.Title, Slug: ns.Slug})
	if err != nil {
		if err == ErrSubjectSlugExists {
			return Subject{}, core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
		}
		return Subject{}, pkgerrors.Wrap(err, "creating subject")
	}
	svc.invalidateCatalog(ctx)
	return sub, nil
}

// QuerySubjects returns every subject with its course count, by title.
func (svc *Service) QuerySubjects(ctx context.Context) ([]SubjectStats, error) {
	return cached(ctx, svc, allSubjectsKey, func() ([]SubjectStats, error) {
		return svc.repo.QuerySubjectStats(ctx)
	})
}

func (svc *Service) GetSubject(ctx context.Context, slug string) (SubjectStats, error) {
	subjects, err := svc.QuerySubjects(ctx)
	if err != nil {
		return SubjectStats{}, err
	}
	for _, sub := range subjects {
		if sub.Slug == slug {
			return sub, nil
		}
	}
	return SubjectStats{}, ErrSubjectNotFound
}

// Courses

// QueryCatalog returns the public course list, optionally restricted to a subject.
func (svc *Service) QueryCatalog(ctx context.Context, subjectSlug string) ([]CourseSummary, error) {
	if subjectSlug == "" {
		return cached(ctx, svc, allCoursesKey, func() ([]CourseSummary, error) {
			return svc.repo.QueryCourses(ctx, CourseFilter{})
		})
	}

	sub, err := svc.repo.GetSubjectBySlug(ctx, subjectSlug)
	if err != nil {
		return nil, err
	}
	return cached(ctx, svc, subjectCoursesKey(sub.ID), func() ([]CourseSummary, error) {
		return svc.repo.QueryCourses(ctx, CourseFilter{SubjectID: sub.ID})
	})
}

func (svc *Service) GetCourse(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

// GetOwnedCourse returns the course only if ownerID owns it, ErrNotFound otherwise.
func (svc *Service) GetOwnedCourse(ctx context.Context, ownerID, id int) (Course, error) {
	if err := svc.requireOwner(ctx, ownership.Course, id, ownerID, ErrNotFound); err != nil {
		return Course{}, err
	}
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *Service) QueryOwnedCourses(ctx context.Context, ownerID int) ([]CourseSummary, error) {
	return svc.repo.QueryCourses(ctx, CourseFilter{OwnerID: ownerID})
}

func (svc *Service) checkSubject(ctx context.Context, subjectID int) error {
	if _, err := svc.repo.GetSubjectByID(ctx, subjectID); err != nil {
		if err == ErrSubjectNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
		}
		return pkgerrors.Wrap(err, "getting subject")
	}
	return nil
}

func slugErr(err error) error {
	return core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
}

func (svc *Service) CreateCourse(ctx context.Context, ownerID int, nc NewCourse) (Course, error) {
	if err := svc.checkSubject(ctx, nc.SubjectID); err != nil {
		return Course{}, err
	}

	crs, err := svc.repo.CreateCourse(ctx, Course{
		OwnerID:   ownerID,
		SubjectID: nc.SubjectID,
		Title:     nc.Title,
		Slug:      nc.Slug,
		Overview:  nc.Overview,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		if err == ErrSlugExists {
			return Course{}, slugErr(err)
		}
		return Course{}, pkgerrors.Wrap(err, "creating course")
	}
	svc.invalidateCatalog(ctx, crs.SubjectID)
	return crs, nil
}

func (svc *Service) UpdateCourse(ctx context.Context, ownerID, id int, data NewCourse) (Course, error) {
	crs, err := svc.GetOwnedCourse(ctx, ownerID, id)
	if err != nil {
		return Course{}, err
	}
	if err := svc.checkSubject(ctx, data.SubjectID); err != nil {
		return Course{}, err
	}

	oldSubjectID := crs.SubjectID
	crs.SubjectID = data.SubjectID
	crs.Title = data.Title
	crs.Slug = data.Slug
	crs.Overview = data.Overview

	crs, err = svc.repo.UpdateCourse(ctx, crs)
	if err != nil {
		if err == ErrSlugExists {
			return Course{}, slugErr(err)
		}
		return Course{}, pkgerrors.Wrap(err, "updating course")
	}
	svc.invalidateCatalog(ctx, oldSubjectID, crs.SubjectID)
	return crs, nil
}

func (svc *Service) DeleteCourse(ctx context.Context, ownerID, id int) error {
	crs, err := svc.GetOwnedCourse(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteCourse(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "deleting course")
	}
	svc.invalidateCatalog(ctx, crs.SubjectID)
	return nil
}

// Modules

func (svc *Service) GetModule(ctx context.Context, id int) (Module, error) {
	return svc.repo.GetModuleByID(ctx, id)
}

// GetOwnedModule returns the module only if ownerID owns its course, ErrModuleNotFound otherwise.
func (svc *Service) GetOwnedModule(ctx context.Context, ownerID, id int) (Module, error) {
	if err := svc.requireOwner(ctx, ownership.Module, id, ownerID, ErrModuleNotFound); err != nil {
		return Module{}, err
	}
	return svc.repo.GetModuleByID(ctx, id)
}

func (svc *Service) QueryModules(ctx context.Context, courseID int) ([]Module, error) {
	return svc.repo.QueryModules(ctx, courseID)
}

func (svc *Service) CreateModule(ctx context.Context, ownerID, courseID int, nm NewModule) (Module, error) {
	crs, err := svc.GetOwnedCourse(ctx, ownerID, courseID)
	if err != nil {
		return Module{}, err
	}

	mod, err := svc.repo.CreateModule(ctx, Module{
		CourseID:    courseID,
		Title:       nm.Title,
		Description: nm.Description,
		Order:       nm.Order,
	})
	if err != nil {
		return Module{}, pkgerrors.Wrap(err, "creating module")
	}
	svc.invalidateCatalog(ctx, crs.SubjectID)
	return mod, nil
}

func (svc *Service) UpdateModule(ctx context.Context, ownerID, id int, data UpdateModule) (Module, error) {
	mod, err := svc.GetOwnedModule(ctx, ownerID, id)
	if err != nil {
		return Module{}, err
	}
	mod.Title = data.Title
	mod.Description = data.Description

	mod, err = svc.repo.UpdateModule(ctx, mod)
	return mod, pkgerrors.Wrap(err, "updating module")
}

// DeleteModule removes the module; the remaining modules keep their order values.
func (svc *Service) DeleteModule(ctx context.Context, ownerID, id int) error {
	mod, err := svc.GetOwnedModule(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := svc.repo.DeleteModule(ctx, id); err != nil {
		return pkgerrors.Wrap(err, "deleting module")
	}
	if crs, err := svc.repo.GetCourseByID(ctx, mod.CourseID); err == nil {
		svc.invalidateCatalog(ctx, crs.SubjectID)
	}
	return nil
}

// ReorderModules applies {moduleID: order} to the modules owned by callerID, skipping the others.
func (svc *Service) ReorderModules(ctx context.Context, callerID int, orders map[int]int) error {
	return svc.moduleOrder.Apply(ctx, callerID, orders)
}
