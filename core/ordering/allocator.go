package ordering

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

type (
	// Field is one scoping column of a group key, e.g. {"course_id", 3}.
	Field struct {
		Column string
		Value  interface{}
	}

	// Scope is the group key: rows sharing the same Scope compete for the same order sequence.
	// An empty Scope groups the whole table.
	Scope []Field

	// Ordered is implemented by entities carrying an order column.
	Ordered interface {
		OrderScope() Scope
		OrderValue() null.Int
		SetOrder(order int)
	}

	// MaxQuerier returns the greatest order stored within a group, invalid when the group is empty.
	MaxQuerier interface {
		MaxOrder(ctx context.Context, scope Scope) (null.Int, error)
	}

	MaxQuerierFunc func(ctx context.Context, scope Scope) (null.Int, error)
)

func (f MaxQuerierFunc) MaxOrder(ctx context.Context, scope Scope) (null.Int, error) {
	return f(ctx, scope)
}

// Matches reports whether other has exactly the same scoping values.
func (s Scope) Matches(other Scope) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].Column != other[i].Column || s[i].Value != other[i].Value {
			return false
		}
	}
	return true
}

// Next returns the order following max: max+1, or 0 for an empty group.
func Next(max null.Int) int {
	if !max.Valid {
		return 0
	}
	return max.Int + 1
}

// MaxOf returns the greatest order among rows whose scope matches scope.
func MaxOf(scope Scope, rows ...Ordered) null.Int {
	var max null.Int
	for _, row := range rows {
		if !scope.Matches(row.OrderScope()) {
			continue
		}
		if ord := row.OrderValue(); ord.Valid && (!max.Valid || ord.Int > max.Int) {
			max = ord
		}
	}
	return max
}

// Allocate is the pre-insert hook: it leaves an explicit order untouched,
// otherwise it sets the entity order to the next value of its group.
// Callers must hold the group lock (transaction or mutex) until the row is written.
func Allocate(ctx context.Context, q MaxQuerier, ent Ordered) error {
	if ent.OrderValue().Valid {
		return nil
	}
	max, err := q.MaxOrder(ctx, ent.OrderScope())
	if err != nil {
		return errors.Wrap(err, "querying max order")
	}
	ent.SetOrder(Next(max))
	return nil
}
