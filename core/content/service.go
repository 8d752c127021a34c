package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
	"github.com/trezcool/educa/core/ownership"
)

var (
	// errors
	ErrNotFound = errors.New("content not found")
)

type (
	Repository interface {
		// CreateContent assigns the next order of the module when c.Order is not set.
		CreateContent(ctx context.Context, c Content, exec ...core.DBExecutor) (Content, error)
		GetContentByID(ctx context.Context, id int, exec ...core.DBExecutor) (Content, error)
		SetContentOrder(ctx context.Context, id, order int, exec ...core.DBExecutor) error
		DeleteContent(ctx context.Context, id int, exec ...core.DBExecutor) error
		// QueryContents returns the slots of a module by order.
		QueryContents(ctx context.Context, moduleID int, exec ...core.DBExecutor) ([]Content, error)
	}

	Service struct {
		repo         Repository
		items        Registry
		owners       ownership.Checker
		tx           core.Transactor
		blobs        core.BlobStore
		contentOrder *ordering.Updater
		logger       core.Logger
		now          func() time.Time
	}
)

// contentOrders adapts the repository to ordering.Store.
type contentOrders struct {
	repo Repository
}

func (s contentOrders) SetOrder(ctx context.Context, id, order int, exec ...core.DBExecutor) error {
	err := s.repo.SetContentOrder(ctx, id, order, exec...)
	if errors.Is(err, ErrNotFound) {
		return ordering.ErrRowNotFound
	}
	return err
}

func NewService(
	repo Repository,
	items Registry,
	owners ownership.Checker,
	tx core.Transactor,
	blobs core.BlobStore,
	recorder ordering.Recorder,
	logger core.Logger,
) *Service {
	return &Service{
		repo:         repo,
		items:        items,
		owners:       owners,
		tx:           tx,
		blobs:        blobs,
		contentOrder: ordering.NewUpdater(ownership.Content, owners, contentOrders{repo: repo}, recorder),
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (svc *Service) blobKey(kind Kind, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(filename)))
	return fmt.Sprintf("%ss/%s/%s%s", kind, svc.now().Format("2006/01"), uuid.NewString(), ext)
}

func (svc *Service) putBlob(ctx context.Context, kind Kind, up *Upload) (string, error) {
	key := svc.blobKey(kind, up.Filename)
	if err := svc.blobs.Put(ctx, key, up.Reader, up.ContentType); err != nil {
		return "", pkgerrors.Wrap(err, "storing upload")
	}
	return key, nil
}

func (svc *Service) dropBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := svc.blobs.Delete(ctx, key); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting blob %q: %v", key, err), err)
	}
}

// Resolve returns the item behind a (kind, id) reference.
func (svc *Service) Resolve(ctx context.Context, tag string, id int) (Item, error) {
	return svc.items.Resolve(ctx, tag, id)
}

// Create stores a new item of kind tag owned by ownerID and appends a slot for it to the module.
func (svc *Service) Create(ctx context.Context, ownerID, moduleID int, tag string, data ItemData) (Content, error) {
	kind, h, err := svc.items.Handler(tag)
	if err != nil {
		return Content{}, err
	}
	if err := ownership.Require(ctx, svc.owners, ownership.Module, moduleID, ownerID); err != nil {
		if err == ownership.ErrNotOwned {
			return Content{}, course.ErrModuleNotFound
		}
		return Content{}, pkgerrors.Wrap(err, "checking module ownership")
	}

	payload := data.payload(kind)
	if kind.HasBlob() {
		if data.Upload == nil {
			return Content{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
		}
		if payload, err = svc.putBlob(ctx, kind, data.Upload); err != nil {
			return Content{}, err
		}
	}

	now := svc.now()
	item, err := NewItem(kind, ItemBase{OwnerID: ownerID, Title: data.Title, CreatedAt: now, UpdatedAt: now}, payload)
	if err != nil {
		return Content{}, err
	}

	var slot Content
	err = svc.tx.Atomic(ctx, func(exec core.DBExecutor) error {
		if item, err = h.CreateItem(ctx, item, exec); err != nil {
			return pkgerrors.Wrapf(err, "creating %s item", kind)
		}
		slot, err = svc.repo.CreateContent(ctx, Content{ModuleID: moduleID, Kind: kind, ObjectID: item.ItemID()}, exec)
		return pkgerrors.Wrap(err, "creating content")
	})
	if err != nil {
		if kind.HasBlob() {
			svc.dropBlob(ctx, payload)
		}
		return Content{}, err
	}
	slot.Item = item
	return slot, nil
}

// GetOwnedContent returns the slot and its item when ownerID owns the slot's course.
func (svc *Service) GetOwnedContent(ctx context.Context, ownerID, id int) (Content, error) {
	if err := ownership.Require(ctx, svc.owners, ownership.Content, id, ownerID); err != nil {
		if err == ownership.ErrNotOwned {
			return Content{}, ErrNotFound
		}
		return Content{}, pkgerrors.Wrap(err, "checking content ownership")
	}
	slot, err := svc.repo.GetContentByID(ctx, id)
	if err != nil {
		return Content{}, err
	}
	if slot.Item, err = svc.items.Resolve(ctx, string(slot.Kind), slot.ObjectID); err != nil {
		return Content{}, err
	}
	return slot, nil
}

// UpdateItem edits the item behind a slot. The slot kind never changes.
func (svc *Service) UpdateItem(ctx context.Context, ownerID, id int, data ItemData) (Content, error) {
	slot, err := svc.GetOwnedContent(ctx, ownerID, id)
	if err != nil {
		return Content{}, err
	}
	item := slot.Item
	if item.Owner() != ownerID {
		return Content{}, ErrItemNotFound
	}

	var oldBlob, newBlob string
	if slot.Kind.HasBlob() {
		if data.Upload != nil {
			if newBlob, err = svc.putBlob(ctx, slot.Kind, data.Upload); err != nil {
				return Content{}, err
			}
			oldBlob = item.Payload()
			item.SetPayload(newBlob)
		}
	} else {
		item.SetPayload(data.payload(slot.Kind))
	}
	base := item.Base()
	base.Title = data.Title
	base.UpdatedAt = svc.now()

	if slot.Item, err = svc.items[slot.Kind].UpdateItem(ctx, item); err != nil {
		svc.dropBlob(ctx, newBlob)
		return Content{}, pkgerrors.Wrapf(err, "updating %s item", slot.Kind)
	}
	svc.dropBlob(ctx, oldBlob)
	return slot, nil
}

// Delete removes the item behind the slot, then the slot itself, in one transaction.
// Blob payloads are removed once the rows are gone.
func (svc *Service) Delete(ctx context.Context, ownerID, id int) error {
	if err := ownership.Require(ctx, svc.owners, ownership.Content, id, ownerID); err != nil {
		if err == ownership.ErrNotOwned {
			return ErrNotFound
		}
		return pkgerrors.Wrap(err, "checking content ownership")
	}
	slot, err := svc.repo.GetContentByID(ctx, id)
	if err != nil {
		return err
	}
	h, ok := svc.items[slot.Kind]
	if !ok {
		return ErrUnsupportedKind
	}

	var blob string
	if slot.Kind.HasBlob() {
		if item, err := h.GetItem(ctx, slot.ObjectID); err == nil {
			blob = item.Payload()
		}
	}

	err = svc.tx.Atomic(ctx, func(exec core.DBExecutor) error {
		if err := h.DeleteItem(ctx, slot.ObjectID, exec); err != nil && err != ErrItemNotFound {
			return pkgerrors.Wrapf(err, "deleting %s item", slot.Kind)
		}
		return pkgerrors.Wrap(svc.repo.DeleteContent(ctx, slot.ID, exec), "deleting content")
	})
	if err != nil {
		return err
	}
	svc.dropBlob(ctx, blob)
	return nil
}

// QueryModuleContents returns the module slots by order, each with its item resolved.
func (svc *Service) QueryModuleContents(ctx context.Context, moduleID int) ([]Content, error) {
	slots, err := svc.repo.QueryContents(ctx, moduleID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying contents")
	}
	for i := range slots {
		item, err := svc.items.Resolve(ctx, string(slots[i].Kind), slots[i].ObjectID)
		if err != nil {
			if err == ErrItemNotFound || err == ErrUnsupportedKind {
				svc.logger.Warn(fmt.Sprintf("content %d: %v", slots[i].ID, err))
				continue
			}
			return nil, pkgerrors.Wrapf(err, "resolving content %d", slots[i].ID)
		}
		slots[i].Item = item
	}
	return slots, nil
}

// ReorderContents applies {contentID: order} to the slots owned by callerID, skipping the others.
func (svc *Service) ReorderContents(ctx context.Context, callerID int, orders map[int]int) error {
	return svc.contentOrder.Apply(ctx, callerID, orders)
}
