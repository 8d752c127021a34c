package ownership

import (
	"context"
	"errors"
)

// Kind names an entity whose ownership is resolved through its chain of parents.
type Kind string

const (
	Course  Kind = "course"  // course.owner
	Module  Kind = "module"  // module -> course -> owner
	Content Kind = "content" // content -> module -> course -> owner
)

var ErrNotOwned = errors.New("not found")

// Checker is the single ownership predicate shared by every entry point.
// A missing entity is reported as not owned.
type Checker interface {
	IsOwnedBy(ctx context.Context, kind Kind, id, userID int) (bool, error)
}

type CheckerFunc func(ctx context.Context, kind Kind, id, userID int) (bool, error)

func (f CheckerFunc) IsOwnedBy(ctx context.Context, kind Kind, id, userID int) (bool, error) {
	return f(ctx, kind, id, userID)
}

// Require returns ErrNotOwned unless userID owns the entity.
func Require(ctx context.Context, c Checker, kind Kind, id, userID int) error {
	owned, err := c.IsOwnedBy(ctx, kind, id, userID)
	if err != nil {
		return err
	}
	if !owned {
		return ErrNotOwned
	}
	return nil
}
