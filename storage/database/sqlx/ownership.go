package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core/ownership"
)

var ownershipQueries = map[ownership.Kind]string{
	ownership.Course: `SELECT EXISTS (
		SELECT 1 FROM "course" WHERE "course"."id" = $1 AND "course"."owner_id" = $2)`,
	ownership.Module: `SELECT EXISTS (
		SELECT 1 FROM "module"
		JOIN "course" ON "course"."id" = "module"."course_id"
		WHERE "module"."id" = $1 AND "course"."owner_id" = $2)`,
	ownership.Content: `SELECT EXISTS (
		SELECT 1 FROM "content"
		JOIN "module" ON "module"."id" = "content"."module_id"
		JOIN "course" ON "course"."id" = "module"."course_id"
		WHERE "content"."id" = $1 AND "course"."owner_id" = $2)`,
}

type ownershipChecker struct {
	repository
}

var _ ownership.Checker = (*ownershipChecker)(nil) // interface compliance check

// NewOwnershipChecker resolves ownership by walking content -> module -> course -> owner in SQL.
func NewOwnershipChecker(db *sqlx.DB) ownership.Checker {
	return &ownershipChecker{repository{db: db}}
}

func (c ownershipChecker) IsOwnedBy(ctx context.Context, kind ownership.Kind, id, userID int) (bool, error) {
	q, ok := ownershipQueries[kind]
	if !ok {
		return false, errors.Errorf("unknown ownership kind %q", kind)
	}
	var owned bool
	if err := sqlx.GetContext(ctx, c.db, &owned, q, id, userID); err != nil {
		return false, errors.Wrapf(err, "checking %s ownership", kind)
	}
	return owned, nil
}
