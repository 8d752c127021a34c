package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/ordering"
)

// postgres error codes
const (
	uniqueViolation = "23505"
)

type repository struct {
	db *sqlx.DB
}

// getExec returns the executor passed down by the service, if any, or the repository DB.
func (repo repository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 {
		if ext, ok := svcExec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return repo.db
}

// withTx runs fn inside the transaction passed down by the service,
// or inside a new one when the service did not open any.
func (repo repository) withTx(ctx context.Context, svcExec []core.DBExecutor, fn func(tx sqlx.ExtContext) error) (err error) {
	if len(svcExec) > 0 {
		if tx, ok := svcExec[0].(*sqlx.Tx); ok {
			return fn(tx)
		}
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// uniqueConstraint returns the name of the violated unique constraint, if any.
func uniqueConstraint(err error) (string, bool) {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

func rowsAffected(res sql.Result, notFound error, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// scopeWhere renders an ordering scope as a WHERE clause.
func scopeWhere(scope ordering.Scope) (string, []interface{}) {
	if len(scope) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(scope))
	args := make([]interface{}, 0, len(scope))
	for i, f := range scope {
		conds = append(conds, pq.QuoteIdentifier(f.Column)+" = $"+strconv.Itoa(i+1))
		args = append(args, f.Value)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// maxOrder queries the greatest "order" of table within a scope.
// Run it inside the transaction holding the parent row lock.
func maxOrder(tx sqlx.ExtContext, table string) ordering.MaxQuerier {
	return ordering.MaxQuerierFunc(func(ctx context.Context, scope ordering.Scope) (null.Int, error) {
		where, args := scopeWhere(scope)
		var max null.Int
		err := sqlx.GetContext(ctx, tx, &max, `SELECT MAX("order") FROM `+pq.QuoteIdentifier(table)+where, args...)
		return max, err
	})
}

// lockRow locks a parent row for the rest of the transaction.
func lockRow(ctx context.Context, tx sqlx.ExtContext, table string, id int, notFound error) error {
	var locked int
	err := sqlx.GetContext(ctx, tx, &locked, `SELECT "id" FROM `+pq.QuoteIdentifier(table)+` WHERE "id" = $1 FOR UPDATE`, id)
	if err != nil {
		return trapNoRowsErr(err, notFound, "locking "+table)
	}
	return nil
}
