package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
)

const (
	courseColumns = `"course"."id", "course"."owner_id", "course"."subject_id", "course"."title", "course"."slug",
		"course"."overview", "course"."created_at"`
	moduleColumns = `"id", "course_id", "title", "description", "order"`
)

type (
	subjectStatsRow struct {
		ID           int    `db:"id"`
		Title        string `db:"title"`
		Slug         string `db:"slug"`
		TotalCourses int    `db:"total_courses"`
	}

	popularRow struct {
		SubjectID int    `db:"subject_id"`
		Title     string `db:"title"`
		Students  int    `db:"students"`
	}

	courseRow struct {
		ID           int       `db:"id"`
		OwnerID      int       `db:"owner_id"`
		SubjectID    int       `db:"subject_id"`
		Title        string    `db:"title"`
		Slug         string    `db:"slug"`
		Overview     string    `db:"overview"`
		CreatedAt    time.Time `db:"created_at"`
		TotalModules int       `db:"total_modules"`
	}

	moduleRow struct {
		ID          int    `db:"id"`
		CourseID    int    `db:"course_id"`
		Title       string `db:"title"`
		Description string `db:"description"`
		Order       int    `db:"order"`
	}
)

func (r courseRow) course() course.Course {
	return course.Course{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		SubjectID: r.SubjectID,
		Title:     r.Title,
		Slug:      r.Slug,
		Overview:  r.Overview,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

func (r moduleRow) module() course.Module {
	return course.Module{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		Order:       null.IntFrom(r.Order),
	}
}

type courseRepository struct {
	repository
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{repository{db: db}}
}

func trapSlugErr(err error, slugExists error, msg string) error {
	if _, ok := uniqueConstraint(err); ok {
		return slugExists
	}
	return errors.Wrap(err, msg)
}

// Subjects

func (repo courseRepository) CreateSubject(ctx context.Context, sub course.Subject, exec ...core.DBExecutor) (course.Subject, error) {
	err := sqlx.GetContext(ctx, repo.getExec(exec), &sub.ID,
		`INSERT INTO "subject" ("title", "slug") VALUES ($1, $2) RETURNING "id"`, sub.Title, sub.Slug)
	if err != nil {
		return course.Subject{}, trapSlugErr(err, course.ErrSubjectSlugExists, "inserting subject")
	}
	return sub, nil
}

func (repo courseRepository) GetSubjectByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.Subject, error) {
	var sub subjectStatsRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &sub, `SELECT "id", "title", "slug" FROM "subject" WHERE "id" = $1`, id)
	if err != nil {
		return course.Subject{}, trapNoRowsErr(err, course.ErrSubjectNotFound, "selecting subject")
	}
	return course.Subject{ID: sub.ID, Title: sub.Title, Slug: sub.Slug}, nil
}

func (repo courseRepository) GetSubjectBySlug(ctx context.Context, slug string, exec ...core.DBExecutor) (course.Subject, error) {
	var sub subjectStatsRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &sub, `SELECT "id", "title", "slug" FROM "subject" WHERE "slug" = $1`, slug)
	if err != nil {
		return course.Subject{}, trapNoRowsErr(err, course.ErrSubjectNotFound, "selecting subject")
	}
	return course.Subject{ID: sub.ID, Title: sub.Title, Slug: sub.Slug}, nil
}

func (repo courseRepository) QuerySubjectStats(ctx context.Context, exec ...core.DBExecutor) ([]course.SubjectStats, error) {
	ext := repo.getExec(exec)

	var rows []subjectStatsRow
	err := sqlx.SelectContext(ctx, ext, &rows,
		`SELECT "subject"."id", "subject"."title", "subject"."slug", COUNT("course"."id") AS "total_courses"
		FROM "subject" LEFT JOIN "course" ON "course"."subject_id" = "subject"."id"
		GROUP BY "subject"."id"
		ORDER BY "subject"."title"`)
	if err != nil {
		return nil, errors.Wrap(err, "selecting subjects")
	}

	// top 3 courses of each subject by number of students
	var popular []popularRow
	err = sqlx.SelectContext(ctx, ext, &popular,
		`SELECT "subject_id", "title", "students" FROM (
			SELECT "course"."subject_id", "course"."title", COUNT("course_student"."user_id") AS "students",
				ROW_NUMBER() OVER (
					PARTITION BY "course"."subject_id"
					ORDER BY COUNT("course_student"."user_id") DESC, "course"."id"
				) AS "rank"
			FROM "course" LEFT JOIN "course_student" ON "course_student"."course_id" = "course"."id"
			GROUP BY "course"."id"
		) AS "ranked"
		WHERE "rank" <= 3
		ORDER BY "subject_id", "rank"`)
	if err != nil {
		return nil, errors.Wrap(err, "selecting popular courses")
	}
	bySubject := make(map[int][]string)
	for _, p := range popular {
		bySubject[p.SubjectID] = append(bySubject[p.SubjectID], course.PopularCourse(p.Title, p.Students))
	}

	stats := make([]course.SubjectStats, 0, len(rows))
	for _, r := range rows {
		pop := bySubject[r.ID]
		if pop == nil {
			pop = []string{}
		}
		stats = append(stats, course.SubjectStats{
			Subject:        course.Subject{ID: r.ID, Title: r.Title, Slug: r.Slug},
			TotalCourses:   r.TotalCourses,
			PopularCourses: pop,
		})
	}
	return stats, nil
}

// Courses

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	err := sqlx.GetContext(ctx, repo.getExec(exec), &crs.ID,
		`INSERT INTO "course" ("owner_id", "subject_id", "title", "slug", "overview", "created_at")
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING "id"`,
		crs.OwnerID, crs.SubjectID, crs.Title, crs.Slug, crs.Overview, crs.CreatedAt.UTC())
	if err != nil {
		return course.Course{}, trapSlugErr(err, course.ErrSlugExists, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	res, err := repo.getExec(exec).ExecContext(ctx,
		`UPDATE "course" SET "subject_id" = $2, "title" = $3, "slug" = $4, "overview" = $5 WHERE "id" = $1`,
		crs.ID, crs.SubjectID, crs.Title, crs.Slug, crs.Overview)
	if err != nil {
		return course.Course{}, trapSlugErr(err, course.ErrSlugExists, "updating course")
	}
	if err := rowsAffected(res, course.ErrNotFound, "updating course"); err != nil {
		return course.Course{}, err
	}
	return crs, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM "course" WHERE "id" = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return rowsAffected(res, course.ErrNotFound, "deleting course")
}

func (repo courseRepository) GetCourseByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.Course, error) {
	var row courseRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+courseColumns+` FROM "course" WHERE "id" = $1`, id)
	if err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "selecting course")
	}
	return row.course(), nil
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.CourseFilter, exec ...core.DBExecutor) ([]course.CourseSummary, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.OwnerID != 0 {
		args = append(args, filter.OwnerID)
		where = append(where, `"course"."owner_id" = $`+strconv.Itoa(len(args)))
	}
	if filter.SubjectID != 0 {
		args = append(args, filter.SubjectID)
		where = append(where, `"course"."subject_id" = $`+strconv.Itoa(len(args)))
	}

	q := `SELECT ` + courseColumns + `, COUNT("module"."id") AS "total_modules"
		FROM "course" LEFT JOIN "module" ON "module"."course_id" = "course"."id"`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` GROUP BY "course"."id" ORDER BY "course"."created_at" DESC, "course"."id" DESC`

	var rows []courseRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]course.CourseSummary, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, course.CourseSummary{Course: r.course(), TotalModules: r.TotalModules})
	}
	return courses, nil
}

// Modules

// CreateModule locks the parent course row so that concurrent inserts never allocate the same order.
func (repo courseRepository) CreateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	err := repo.withTx(ctx, exec, func(tx sqlx.ExtContext) error {
		if err := lockRow(ctx, tx, "course", mod.CourseID, course.ErrNotFound); err != nil {
			return err
		}
		if err := ordering.Allocate(ctx, maxOrder(tx, "module"), &mod); err != nil {
			return err
		}
		return errors.Wrap(sqlx.GetContext(ctx, tx, &mod.ID,
			`INSERT INTO "module" ("course_id", "title", "description", "order") VALUES ($1, $2, $3, $4) RETURNING "id"`,
			mod.CourseID, mod.Title, mod.Description, mod.Order), "inserting module")
	})
	if err != nil {
		return course.Module{}, err
	}
	return mod, nil
}

func (repo courseRepository) UpdateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	var row moduleRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		`UPDATE "module" SET "title" = $2, "description" = $3 WHERE "id" = $1 RETURNING `+moduleColumns,
		mod.ID, mod.Title, mod.Description)
	if err != nil {
		return course.Module{}, trapNoRowsErr(err, course.ErrModuleNotFound, "updating module")
	}
	return row.module(), nil
}

func (repo courseRepository) SetModuleOrder(ctx context.Context, id, order int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `UPDATE "module" SET "order" = $2 WHERE "id" = $1`, id, order)
	if err != nil {
		return errors.Wrap(err, "updating module order")
	}
	return rowsAffected(res, course.ErrModuleNotFound, "updating module order")
}

func (repo courseRepository) DeleteModule(ctx context.Context, id int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM "module" WHERE "id" = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return rowsAffected(res, course.ErrModuleNotFound, "deleting module")
}

func (repo courseRepository) GetModuleByID(ctx context.Context, id int, exec ...core.DBExecutor) (course.Module, error) {
	var row moduleRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+moduleColumns+` FROM "module" WHERE "id" = $1`, id)
	if err != nil {
		return course.Module{}, trapNoRowsErr(err, course.ErrModuleNotFound, "selecting module")
	}
	return row.module(), nil
}

func (repo courseRepository) QueryModules(ctx context.Context, courseID int, exec ...core.DBExecutor) ([]course.Module, error) {
	var rows []moduleRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows,
		`SELECT `+moduleColumns+` FROM "module" WHERE "course_id" = $1 ORDER BY "order", "id"`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting modules")
	}
	mods := make([]course.Module, 0, len(rows))
	for _, r := range rows {
		mods = append(mods, r.module())
	}
	return mods, nil
}
