package sqlxrepos

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/user"
)

const userColumns = `"id", "name", "username", "email", "is_active", "roles", "created_at", "updated_at"`

type userRow struct {
	ID        int            `db:"id"`
	Name      string         `db:"name"`
	Username  string         `db:"username"`
	Email     null.String    `db:"email"`
	IsActive  bool           `db:"is_active"`
	Roles     pq.StringArray `db:"roles"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:        r.ID,
		Name:      r.Name,
		Username:  r.Username,
		Email:     r.Email.String,
		IsActive:  r.IsActive,
		Roles:     []string(r.Roles),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func usersFromRows(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{repository{db: db}}
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, exec ...core.DBExecutor) error {
	var taken []userRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &taken,
		`SELECT `+userColumns+` FROM "user" WHERE "username" = $1 OR ($2 <> '' AND "email" = $2)`,
		username, email)
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, r := range taken {
		if r.Username == username {
			return user.ErrUsernameExists
		}
		if r.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row,
		`INSERT INTO "user" ("name", "username", "email", "is_active", "roles", "created_at", "updated_at")
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+userColumns,
		usr.Name, usr.Username, null.NewString(usr.Email, usr.Email != ""), usr.IsActive,
		pq.StringArray(usr.Roles), usr.CreatedAt.UTC(), usr.UpdatedAt.UTC())
	if err != nil {
		if constraint, ok := uniqueConstraint(err); ok {
			if strings.Contains(constraint, "email") {
				return user.User{}, user.ErrEmailExists
			}
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id int, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+userColumns+` FROM "user" WHERE "id" = $1`, id)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+userColumns+` FROM "user" WHERE "username" = $1`, username)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter, exec ...core.DBExecutor) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.IsActive != nil {
		where = append(where, `"is_active" = `+arg(*filter.IsActive))
	}
	if filter.HasEmail {
		where = append(where, `COALESCE("email", '') <> ''`)
	}
	if !filter.JoinedBefore.IsZero() {
		where = append(where, `"created_at" <= `+arg(filter.JoinedBefore.UTC()))
	}

	q := `SELECT ` + userColumns + ` FROM "user"`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` ORDER BY "id"`

	var rows []userRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return usersFromRows(rows), nil
}
