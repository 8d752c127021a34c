package ordering

import (
	"context"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/ownership"
)

var (
	// ErrRowNotFound is returned by a Store when the row vanished before its order was written.
	ErrRowNotFound   = errors.New("row not found")
	ErrNegativeOrder = errors.New("order must be a positive integer")
)

type (
	// Store writes an order value on a single row.
	Store interface {
		SetOrder(ctx context.Context, id, order int, exec ...core.DBExecutor) error
	}

	// Recorder observes the outcome of every batch entry.
	Recorder interface {
		OrderUpdated(kind string, applied bool)
	}

	// Updater applies client supplied reorderings to the rows the caller owns.
	Updater struct {
		kind     ownership.Kind
		owners   ownership.Checker
		store    Store
		recorder Recorder
	}
)

type nopRecorder struct{}

func (nopRecorder) OrderUpdated(string, bool) {}

func NewUpdater(kind ownership.Kind, owners ownership.Checker, store Store, recorder Recorder) *Updater {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Updater{
		kind:     kind,
		owners:   owners,
		store:    store,
		recorder: recorder,
	}
}

func sortedIDs(orders map[int]int) []int {
	ids := make([]int, 0, len(orders))
	for id := range orders {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Validate rejects a batch holding a negative order, naming the lowest offending id.
func Validate(orders map[int]int) error {
	for _, id := range sortedIDs(orders) {
		if orders[id] < 0 {
			return core.NewValidationError(ErrNegativeOrder, core.FieldError{Field: strconv.Itoa(id), Error: ErrNegativeOrder.Error()})
		}
	}
	return nil
}

// Apply sets orders[id] on every row owned by callerID. Rows the caller does not own,
// or that do not exist, are skipped without error. Entries are independent updates:
// a store failure stops the batch but keeps what was already written.
func (u *Updater) Apply(ctx context.Context, callerID int, orders map[int]int) error {
	if err := Validate(orders); err != nil {
		return err
	}

	for _, id := range sortedIDs(orders) {
		owned, err := u.owners.IsOwnedBy(ctx, u.kind, id, callerID)
		if err != nil {
			return errors.Wrapf(err, "checking %s %d ownership", u.kind, id)
		}
		if !owned {
			u.recorder.OrderUpdated(string(u.kind), false)
			continue
		}
		if err := u.store.SetOrder(ctx, id, orders[id]); err != nil {
			if errors.Is(err, ErrRowNotFound) {
				u.recorder.OrderUpdated(string(u.kind), false)
				continue
			}
			return errors.Wrapf(err, "setting %s %d order", u.kind, id)
		}
		u.recorder.OrderUpdated(string(u.kind), true)
	}
	return nil
}
