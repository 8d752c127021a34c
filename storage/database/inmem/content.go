package inmemdb

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
)

type contentRepository struct {
	db *DB
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *DB) content.Repository {
	return &contentRepository{db: db}
}

func (repo *contentRepository) slotRows() []ordering.Ordered {
	rows := make([]ordering.Ordered, 0, len(repo.db.contents))
	for _, slot := range repo.db.contents {
		rows = append(rows, &slot)
	}
	return rows
}

// CreateContent allocates the slot order and stores it under the same write lock.
func (repo *contentRepository) CreateContent(ctx context.Context, c content.Content, exec ...core.DBExecutor) (content.Content, error) {
	err := repo.db.write(exec, func() error {
		if _, ok := repo.db.modules[c.ModuleID]; !ok {
			return course.ErrModuleNotFound
		}
		maxQuerier := ordering.MaxQuerierFunc(func(_ context.Context, scope ordering.Scope) (null.Int, error) {
			return ordering.MaxOf(scope, repo.slotRows()...), nil
		})
		if err := ordering.Allocate(ctx, maxQuerier, &c); err != nil {
			return err
		}
		c.ID = repo.db.nextPK("content")
		c.Item = nil
		repo.db.contents[c.ID] = c
		return nil
	})
	if err != nil {
		return content.Content{}, err
	}
	return c, nil
}

func (repo *contentRepository) GetContentByID(_ context.Context, id int, exec ...core.DBExecutor) (c content.Content, err error) {
	err = repo.db.read(exec, func() error {
		var ok bool
		if c, ok = repo.db.contents[id]; !ok {
			return content.ErrNotFound
		}
		return nil
	})
	return c, err
}

func (repo *contentRepository) SetContentOrder(_ context.Context, id, order int, exec ...core.DBExecutor) error {
	return repo.db.write(exec, func() error {
		c, ok := repo.db.contents[id]
		if !ok {
			return content.ErrNotFound
		}
		c.SetOrder(order)
		repo.db.contents[id] = c
		return nil
	})
}

func (repo *contentRepository) DeleteContent(_ context.Context, id int, exec ...core.DBExecutor) error {
	return repo.db.write(exec, func() error {
		if _, ok := repo.db.contents[id]; !ok {
			return content.ErrNotFound
		}
		delete(repo.db.contents, id)
		return nil
	})
}

func (repo *contentRepository) QueryContents(_ context.Context, moduleID int, exec ...core.DBExecutor) ([]content.Content, error) {
	slots := make([]content.Content, 0)
	err := repo.db.read(exec, func() error {
		for _, c := range repo.db.contents {
			if c.ModuleID == moduleID {
				slots = append(slots, c)
			}
		}
		return nil
	})
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Order.Int != slots[j].Order.Int {
			return slots[i].Order.Int < slots[j].Order.Int
		}
		return slots[i].ID < slots[j].ID
	})
	return slots, err
}

// Items

// itemHandler stores the items of one kind in their own table.
type itemHandler struct {
	db   *DB
	kind content.Kind
}

var _ content.Handler = (*itemHandler)(nil) // interface compliance check

// NewItemRegistry returns the handlers of every supported item kind.
func NewItemRegistry(db *DB) content.Registry {
	reg := make(content.Registry, len(content.Kinds))
	for _, k := range content.Kinds {
		reg[k] = &itemHandler{db: db, kind: k}
	}
	return reg
}

func (h *itemHandler) table() map[int]itemRow {
	return h.db.items[h.kind]
}

func (h *itemHandler) GetItem(_ context.Context, id int, exec ...core.DBExecutor) (item content.Item, err error) {
	err = h.db.read(exec, func() error {
		row, ok := h.table()[id]
		if !ok {
			return content.ErrItemNotFound
		}
		item, err = content.NewItem(h.kind, row.base, row.payload)
		return err
	})
	return item, err
}

func (h *itemHandler) CreateItem(_ context.Context, item content.Item, exec ...core.DBExecutor) (content.Item, error) {
	err := h.db.write(exec, func() error {
		base := item.Base()
		base.ID = h.db.nextPK("item_" + string(h.kind))
		h.table()[base.ID] = itemRow{base: *base, payload: item.Payload()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (h *itemHandler) UpdateItem(_ context.Context, item content.Item, exec ...core.DBExecutor) (content.Item, error) {
	err := h.db.write(exec, func() error {
		base := item.Base()
		orig, ok := h.table()[base.ID]
		if !ok {
			return content.ErrItemNotFound
		}
		orig.base.Title = base.Title
		orig.base.UpdatedAt = base.UpdatedAt
		orig.payload = item.Payload()
		h.table()[base.ID] = orig
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (h *itemHandler) DeleteItem(_ context.Context, id int, exec ...core.DBExecutor) error {
	return h.db.write(exec, func() error {
		if _, ok := h.table()[id]; !ok {
			return content.ErrItemNotFound
		}
		delete(h.table(), id)
		return nil
	})
}
