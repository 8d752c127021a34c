package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/educa/core/ownership"
)

type ownershipChecker struct {
	db *DB
}

var _ ownership.Checker = (*ownershipChecker)(nil) // interface compliance check

// NewOwnershipChecker resolves ownership by walking content -> module -> course -> owner.
func NewOwnershipChecker(db *DB) ownership.Checker {
	return &ownershipChecker{db: db}
}

func (c *ownershipChecker) IsOwnedBy(_ context.Context, kind ownership.Kind, id, userID int) (bool, error) {
	c.db.mutex.RLock()
	defer c.db.mutex.RUnlock()

	courseID := id
	switch kind {
	case ownership.Content:
		slot, ok := c.db.contents[id]
		if !ok {
			return false, nil
		}
		id = slot.ModuleID
		fallthrough
	case ownership.Module:
		mod, ok := c.db.modules[id]
		if !ok {
			return false, nil
		}
		courseID = mod.CourseID
	case ownership.Course:
	default:
		return false, errors.Errorf("unknown ownership kind %q", kind)
	}

	crs, ok := c.db.courses[courseID]
	return ok && crs.OwnerID == userID, nil
}
