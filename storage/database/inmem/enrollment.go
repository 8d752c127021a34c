package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/enrollment"
	"github.com/trezcool/educa/core/user"
)

type enrollmentRepository struct {
	db *DB
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) enrollment.Repository {
	return &enrollmentRepository{db: db}
}

func (repo *enrollmentRepository) Enroll(_ context.Context, courseID, userID int, exec ...core.DBExecutor) error {
	return repo.db.write(exec, func() error {
		key := enrollmentKey{courseID: courseID, userID: userID}
		if _, ok := repo.db.students[key]; !ok {
			repo.db.students[key] = time.Now().UTC()
		}
		return nil
	})
}

func (repo *enrollmentRepository) IsEnrolled(_ context.Context, courseID, userID int, exec ...core.DBExecutor) (enrolled bool, err error) {
	err = repo.db.read(exec, func() error {
		_, enrolled = repo.db.students[enrollmentKey{courseID: courseID, userID: userID}]
		return nil
	})
	return enrolled, err
}

func (repo *enrollmentRepository) QueryEnrolledCourses(_ context.Context, userID int, exec ...core.DBExecutor) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	err := repo.db.read(exec, func() error {
		for key := range repo.db.students {
			if key.userID != userID {
				continue
			}
			if crs, ok := repo.db.courses[key.courseID]; ok {
				courses = append(courses, crs)
			}
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

// upsertProgress applies fn to the progress row of (userID, moduleID), creating it if needed.
func (repo *enrollmentRepository) upsertProgress(exec []core.DBExecutor, userID, courseID, moduleID int, fn func(p *enrollment.ModuleProgress)) error {
	return repo.db.write(exec, func() error {
		key := progressKey{userID: userID, moduleID: moduleID}
		p, ok := repo.db.progress[key]
		if !ok {
			p = enrollment.ModuleProgress{
				ID:       repo.db.nextPK("module_progress"),
				UserID:   userID,
				CourseID: courseID,
				ModuleID: moduleID,
			}
		}
		fn(&p)
		p.LastAccessed = time.Now().UTC()
		repo.db.progress[key] = p
		return nil
	})
}

func (repo *enrollmentRepository) MarkModuleCompleted(_ context.Context, userID, courseID, moduleID int, exec ...core.DBExecutor) error {
	return repo.upsertProgress(exec, userID, courseID, moduleID, func(p *enrollment.ModuleProgress) {
		p.Completed = true
	})
}

func (repo *enrollmentRepository) AddTimeSpent(_ context.Context, userID, courseID, moduleID, seconds int, exec ...core.DBExecutor) error {
	return repo.upsertProgress(exec, userID, courseID, moduleID, func(p *enrollment.ModuleProgress) {
		p.TimeSpent += seconds
	})
}

func (repo *enrollmentRepository) GetProgress(_ context.Context, userID, moduleID int, exec ...core.DBExecutor) (p enrollment.ModuleProgress, err error) {
	err = repo.db.read(exec, func() error {
		var ok bool
		if p, ok = repo.db.progress[progressKey{userID: userID, moduleID: moduleID}]; !ok {
			return enrollment.ErrProgressNotFound
		}
		return nil
	})
	return p, err
}

func (repo *enrollmentRepository) SumTimeSpent(_ context.Context, userID, courseID int, exec ...core.DBExecutor) (total int, err error) {
	err = repo.db.read(exec, func() error {
		for _, p := range repo.db.progress {
			if p.UserID == userID && p.CourseID == courseID {
				total += p.TimeSpent
			}
		}
		return nil
	})
	return total, err
}

func (repo *enrollmentRepository) CountModules(_ context.Context, userID int, exec ...core.DBExecutor) (total, completed int, err error) {
	err = repo.db.read(exec, func() error {
		for _, mod := range repo.db.modules {
			if _, ok := repo.db.students[enrollmentKey{courseID: mod.CourseID, userID: userID}]; !ok {
				continue
			}
			total++
			if p, ok := repo.db.progress[progressKey{userID: userID, moduleID: mod.ID}]; ok && p.Completed {
				completed++
			}
		}
		return nil
	})
	return total, completed, err
}

func (repo *enrollmentRepository) QueryUnenrolledUsers(_ context.Context, joinedBefore time.Time, exec ...core.DBExecutor) ([]user.User, error) {
	users := make([]user.User, 0)
	err := repo.db.read(exec, func() error {
		enrolled := make(map[int]bool)
		for key := range repo.db.students {
			enrolled[key.userID] = true
		}
		for _, usr := range repo.db.users {
			if usr.IsActive && usr.Email != "" && !usr.CreatedAt.After(joinedBefore) && !enrolled[usr.ID] {
				users = append(users, usr)
			}
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, err
}
