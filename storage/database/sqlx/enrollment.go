package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/enrollment"
	"github.com/trezcool/educa/core/user"
)

const progressColumns = `"id", "user_id", "course_id", "module_id", "completed", "time_spent", "last_accessed"`

type progressRow struct {
	ID           int       `db:"id"`
	UserID       int       `db:"user_id"`
	CourseID     int       `db:"course_id"`
	ModuleID     int       `db:"module_id"`
	Completed    bool      `db:"completed"`
	TimeSpent    int       `db:"time_spent"`
	LastAccessed time.Time `db:"last_accessed"`
}

type enrollmentRepository struct {
	repository
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *sqlx.DB) enrollment.Repository {
	return &enrollmentRepository{repository{db: db}}
}

func (repo enrollmentRepository) Enroll(ctx context.Context, courseID, userID int, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO "course_student" ("course_id", "user_id") VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		courseID, userID)
	return errors.Wrap(err, "inserting course student")
}

func (repo enrollmentRepository) IsEnrolled(ctx context.Context, courseID, userID int, exec ...core.DBExecutor) (bool, error) {
	var enrolled bool
	err := sqlx.GetContext(ctx, repo.getExec(exec), &enrolled,
		`SELECT EXISTS (SELECT 1 FROM "course_student" WHERE "course_id" = $1 AND "user_id" = $2)`,
		courseID, userID)
	return enrolled, errors.Wrap(err, "checking enrollment")
}

func (repo enrollmentRepository) QueryEnrolledCourses(ctx context.Context, userID int, exec ...core.DBExecutor) ([]course.Course, error) {
	var rows []courseRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows,
		`SELECT `+courseColumns+` FROM "course"
		JOIN "course_student" ON "course_student"."course_id" = "course"."id"
		WHERE "course_student"."user_id" = $1
		ORDER BY "course"."created_at" DESC, "course"."id" DESC`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting enrolled courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo enrollmentRepository) MarkModuleCompleted(ctx context.Context, userID, courseID, moduleID int, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO "module_progress" ("user_id", "course_id", "module_id", "completed", "last_accessed")
		VALUES ($1, $2, $3, TRUE, NOW())
		ON CONFLICT ("user_id", "module_id") DO UPDATE SET "completed" = TRUE, "last_accessed" = NOW()`,
		userID, courseID, moduleID)
	return errors.Wrap(err, "upserting module progress")
}

func (repo enrollmentRepository) AddTimeSpent(ctx context.Context, userID, courseID, moduleID, seconds int, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		`INSERT INTO "module_progress" ("user_id", "course_id", "module_id", "time_spent", "last_accessed")
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT ("user_id", "module_id") DO UPDATE
		SET "time_spent" = "module_progress"."time_spent" + EXCLUDED."time_spent", "last_accessed" = NOW()`,
		userID, courseID, moduleID, seconds)
	return errors.Wrap(err, "upserting module progress")
}

func (repo enrollmentRepository) GetProgress(ctx context.Context, userID, moduleID int, exec ...core.DBExecutor) (enrollment.ModuleProgress, error) {
	var row progressRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		`SELECT `+progressColumns+` FROM "module_progress" WHERE "user_id" = $1 AND "module_id" = $2`,
		userID, moduleID)
	if err != nil {
		return enrollment.ModuleProgress{}, trapNoRowsErr(err, enrollment.ErrProgressNotFound, "selecting module progress")
	}
	return enrollment.ModuleProgress{
		ID:           row.ID,
		UserID:       row.UserID,
		CourseID:     row.CourseID,
		ModuleID:     row.ModuleID,
		Completed:    row.Completed,
		TimeSpent:    row.TimeSpent,
		LastAccessed: row.LastAccessed.UTC(),
	}, nil
}

func (repo enrollmentRepository) SumTimeSpent(ctx context.Context, userID, courseID int, exec ...core.DBExecutor) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, repo.getExec(exec), &total,
		`SELECT COALESCE(SUM("time_spent"), 0) FROM "module_progress" WHERE "user_id" = $1 AND "course_id" = $2`,
		userID, courseID)
	return total, errors.Wrap(err, "summing time spent")
}

func (repo enrollmentRepository) CountModules(ctx context.Context, userID int, exec ...core.DBExecutor) (total, completed int, err error) {
	var counts struct {
		Total     int `db:"total"`
		Completed int `db:"completed"`
	}
	err = sqlx.GetContext(ctx, repo.getExec(exec), &counts,
		`SELECT COUNT("module"."id") AS "total", COUNT("module_progress"."id") AS "completed"
		FROM "module"
		JOIN "course_student" ON "course_student"."course_id" = "module"."course_id"
		LEFT JOIN "module_progress" ON "module_progress"."module_id" = "module"."id"
			AND "module_progress"."user_id" = "course_student"."user_id"
			AND "module_progress"."completed"
		WHERE "course_student"."user_id" = $1`, userID)
	if err != nil {
		return 0, 0, errors.Wrap(err, "counting modules")
	}
	return counts.Total, counts.Completed, nil
}

func (repo enrollmentRepository) QueryUnenrolledUsers(ctx context.Context, joinedBefore time.Time, exec ...core.DBExecutor) ([]user.User, error) {
	var rows []userRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows,
		`SELECT `+userColumns+` FROM "user"
		WHERE "is_active" AND COALESCE("email", '') <> '' AND "created_at" <= $1
			AND NOT EXISTS (SELECT 1 FROM "course_student" WHERE "course_student"."user_id" = "user"."id")
		ORDER BY "id"`, joinedBefore.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "selecting unenrolled users")
	}
	return usersFromRows(rows), nil
}
