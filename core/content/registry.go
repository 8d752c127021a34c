package content

import (
	"context"
	"errors"

	"github.com/trezcool/educa/core"
)

var ErrItemNotFound = errors.New("item not found")

// Handler persists the items of a single kind.
type Handler interface {
	GetItem(ctx context.Context, id int, exec ...core.DBExecutor) (Item, error)
	CreateItem(ctx context.Context, item Item, exec ...core.DBExecutor) (Item, error)
	UpdateItem(ctx context.Context, item Item, exec ...core.DBExecutor) (Item, error)
	DeleteItem(ctx context.Context, id int, exec ...core.DBExecutor) error
}

// Registry is the kind-to-handler table used to resolve content slots.
type Registry map[Kind]Handler

// Handler validates tag against the allow-list and returns the handler of its kind.
func (r Registry) Handler(tag string) (Kind, Handler, error) {
	kind, err := ParseKind(tag)
	if err != nil {
		return "", nil, err
	}
	h, ok := r[kind]
	if !ok {
		return "", nil, ErrUnsupportedKind
	}
	return kind, h, nil
}

// Resolve returns the item of kind tag identified by id.
// Tags outside the allow-list fail with ErrUnsupportedKind before any store access.
func (r Registry) Resolve(ctx context.Context, tag string, id int, exec ...core.DBExecutor) (Item, error) {
	_, h, err := r.Handler(tag)
	if err != nil {
		return nil, err
	}
	return h.GetItem(ctx, id, exec...)
}
