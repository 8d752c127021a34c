package inmemdb

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

// Subjects

func (repo *courseRepository) CreateSubject(_ context.Context, sub course.Subject, exec ...core.DBExecutor) (course.Subject, error) {
	err := repo.db.write(exec, func() error {
		for _, s := range repo.db.subjects {
			if s.Slug == sub.Slug {
				return course.ErrSubjectSlugExists
			}
		}
		sub.ID = repo.db.nextPK("subject")
		repo.db.subjects[sub.ID] = sub
		return nil
	})
	if err != nil {
		return course.Subject{}, err
	}
	return sub, nil
}

func (repo *courseRepository) GetSubjectByID(_ context.Context, id int, exec ...core.DBExecutor) (sub course.Subject, err error) {
	err = repo.db.read(exec, func() error {
		var ok bool
		if sub, ok = repo.db.subjects[id]; !ok {
			return course.ErrSubjectNotFound
		}
		return nil
	})
	return sub, err
}

func (repo *courseRepository) GetSubjectBySlug(_ context.Context, slug string, exec ...core.DBExecutor) (sub course.Subject, err error) {
	err = repo.db.read(exec, func() error {
		for _, s := range repo.db.subjects {
			if s.Slug == slug {
				sub = s
				return nil
			}
		}
		return course.ErrSubjectNotFound
	})
	return sub, err
}

// studentCount returns the number of students of every course. The lock must be held.
func (repo *courseRepository) studentCount() map[int]int {
	counts := make(map[int]int)
	for key := range repo.db.students {
		counts[key.courseID]++
	}
	return counts
}

func (repo *courseRepository) QuerySubjectStats(_ context.Context, exec ...core.DBExecutor) ([]course.SubjectStats, error) {
	var stats []course.SubjectStats
	err := repo.db.read(exec, func() error {
		students := repo.studentCount()
		bySubject := make(map[int][]course.Course)
		for _, crs := range repo.db.courses {
			bySubject[crs.SubjectID] = append(bySubject[crs.SubjectID], crs)
		}

		stats = make([]course.SubjectStats, 0, len(repo.db.subjects))
		for _, sub := range repo.db.subjects {
			courses := bySubject[sub.ID]
			sort.Slice(courses, func(i, j int) bool {
				ni, nj := students[courses[i].ID], students[courses[j].ID]
				if ni != nj {
					return ni > nj
				}
				return courses[i].ID < courses[j].ID
			})
			popular := make([]string, 0, 3)
			for i := 0; i < len(courses) && i < 3; i++ {
				popular = append(popular, course.PopularCourse(courses[i].Title, students[courses[i].ID]))
			}
			stats = append(stats, course.SubjectStats{
				Subject:        sub,
				TotalCourses:   len(courses),
				PopularCourses: popular,
			})
		}
		return nil
	})
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Title != stats[j].Title {
			return stats[i].Title < stats[j].Title
		}
		return stats[i].ID < stats[j].ID
	})
	return stats, err
}

// Courses

// checkCourseSlug fails when another course already uses slug. The lock must be held.
func (repo *courseRepository) checkCourseSlug(crs course.Course) error {
	for _, c := range repo.db.courses {
		if c.Slug == crs.Slug && c.ID != crs.ID {
			return course.ErrSlugExists
		}
	}
	return nil
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	err := repo.db.write(exec, func() error {
		if err := repo.checkCourseSlug(crs); err != nil {
			return err
		}
		crs.ID = repo.db.nextPK("course")
		repo.db.courses[crs.ID] = crs
		return nil
	})
	if err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	err := repo.db.write(exec, func() error {
		orig, ok := repo.db.courses[crs.ID]
		if !ok {
			return course.ErrNotFound
		}
		if err := repo.checkCourseSlug(crs); err != nil {
			return err
		}
		crs.OwnerID = orig.OwnerID
		crs.CreatedAt = orig.CreatedAt
		repo.db.courses[crs.ID] = crs
		return nil
	})
	if err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id int, exec ...core.DBExecutor) error {
	return repo.db.write(exec, func() error {
		if _, ok := repo.db.courses[id]; !ok {
			return course.ErrNotFound
		}
		delete(repo.db.courses, id)
		for _, mod := range repo.db.modules {
			if mod.CourseID == id {
				repo.db.deleteModule(mod.ID)
			}
		}
		for key := range repo.db.students {
			if key.courseID == id {
				delete(repo.db.students, key)
			}
		}
		for msgID, msg := range repo.db.messages {
			if msg.CourseID == id {
				delete(repo.db.messages, msgID)
			}
		}
		return nil
	})
}

func (repo *courseRepository) GetCourseByID(_ context.Context, id int, exec ...core.DBExecutor) (crs course.Course, err error) {
	err = repo.db.read(exec, func() error {
		var ok bool
		if crs, ok = repo.db.courses[id]; !ok {
			return course.ErrNotFound
		}
		return nil
	})
	return crs, err
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.CourseFilter, exec ...core.DBExecutor) ([]course.CourseSummary, error) {
	courses := make([]course.CourseSummary, 0)
	err := repo.db.read(exec, func() error {
		modules := make(map[int]int)
		for _, mod := range repo.db.modules {
			modules[mod.CourseID]++
		}
		for _, crs := range repo.db.courses {
			if filter.OwnerID != 0 && crs.OwnerID != filter.OwnerID {
				continue
			}
			if filter.SubjectID != 0 && crs.SubjectID != filter.SubjectID {
				continue
			}
			courses = append(courses, course.CourseSummary{Course: crs, TotalModules: modules[crs.ID]})
		}
		return nil
	})
	sort.Slice(courses, func(i, j int) bool {
		if !courses[i].CreatedAt.Equal(courses[j].CreatedAt) {
			return courses[i].CreatedAt.After(courses[j].CreatedAt)
		}
		return courses[i].ID > courses[j].ID
	})
	return courses, err
}

// Modules

func (repo *courseRepository) moduleRows() []ordering.Ordered {
	rows := make([]ordering.Ordered, 0, len(repo.db.modules))
	for _, mod := range repo.db.modules {
		rows = append(rows, &mod)
	}
	return rows
}

// CreateModule allocates the module order and stores it under the same write lock.
func (repo *courseRepository) CreateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	err := repo.db.write(exec, func() error {
		if _, ok := repo.db.courses[mod.CourseID]; !ok {
			return course.ErrNotFound
		}
		maxQuerier := ordering.MaxQuerierFunc(func(_ context.Context, scope ordering.Scope) (null.Int, error) {
			return ordering.MaxOf(scope, repo.moduleRows()...), nil
		})
		if err := ordering.Allocate(ctx, maxQuerier, &mod); err != nil {
			return err
		}
		mod.ID = repo.db.nextPK("module")
		repo.db.modules[mod.ID] = mod
		return nil
	})
	if err != nil {
		return course.Module{}, err
	}
	return mod, nil
}

func (repo *courseRepository) UpdateModule(_ context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	err := repo.db.write(exec, func() error {
		orig, ok := repo.db.modules[mod.ID]
		if !ok {
			return course.ErrModuleNotFound
		}
		orig.Title = mod.Title
		orig.Description = mod.Description
		repo.db.modules[mod.ID] = orig
		mod = orig
		return nil
	})
	if err != nil {
		return course.Module{}, err
	}
	return mod, nil
}

func (repo *courseRepository) SetModuleOrder(_ context.Context, id, order int, exec ...core.DBExecutor) error {
	return repo.db.write(exec, func() error {
		mod, ok := repo.db.modules[id]
		if !ok {
			return course.ErrModuleNotFound
		}
		mod.SetOrder(order)
		repo.db.modules[id] = mod
		return nil
	})
}

// deleteModule removes a module with its contents and progress rows. The lock must be held.
func (db *DB) deleteModule(id int) {
	delete(db.modules, id)
	for slotID, slot := range db.contents {
		if slot.ModuleID == id {
			delete(db.contents, slotID)
		}
	}
	for key := range db.progress {
		if key.moduleID == id {
			delete(db.progress, key)
		}
	}
}

func (repo *courseRepository) DeleteModule(_ context.Context, id int, exec ...core.DBExecutor) error {
	return repo.db.write(exec, func() error {
		if _, ok := repo.db.modules[id]; !ok {
			return course.ErrModuleNotFound
		}
		repo.db.deleteModule(id)
		return nil
	})
}

func (repo *courseRepository) GetModuleByID(_ context.Context, id int, exec ...core.DBExecutor) (mod course.Module, err error) {
	err = repo.db.read(exec, func() error {
		var ok bool
		if mod, ok = repo.db.modules[id]; !ok {
			return course.ErrModuleNotFound
		}
		return nil
	})
	return mod, err
}

func (repo *courseRepository) QueryModules(_ context.Context, courseID int, exec ...core.DBExecutor) ([]course.Module, error) {
	mods := make([]course.Module, 0)
	err := repo.db.read(exec, func() error {
		for _, mod := range repo.db.modules {
			if mod.CourseID == courseID {
				mods = append(mods, mod)
			}
		}
		return nil
	})
	sort.Slice(mods, func(i, j int) bool {
		if mods[i].Order.Int != mods[j].Order.Int {
			return mods[i].Order.Int < mods[j].Order.Int
		}
		return mods[i].ID < mods[j].ID
	})
	return mods, err
}
