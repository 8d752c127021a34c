package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
)

const contentColumns = `"id", "module_id", "kind", "object_id", "order"`

type contentRow struct {
	ID       int    `db:"id"`
	ModuleID int    `db:"module_id"`
	Kind     string `db:"kind"`
	ObjectID int    `db:"object_id"`
	Order    int    `db:"order"`
}

func (r contentRow) content() content.Content {
	return content.Content{
		ID:       r.ID,
		ModuleID: r.ModuleID,
		Kind:     content.Kind(r.Kind),
		ObjectID: r.ObjectID,
		Order:    null.IntFrom(r.Order),
	}
}

type contentRepository struct {
	repository
}

var _ content.Repository = (*contentRepository)(nil) // interface compliance check

func NewContentRepository(db *sqlx.DB) content.Repository {
	return &contentRepository{repository{db: db}}
}

// CreateContent locks the parent module row so that concurrent inserts never allocate the same order.
func (repo contentRepository) CreateContent(ctx context.Context, c content.Content, exec ...core.DBExecutor) (content.Content, error) {
	err := repo.withTx(ctx, exec, func(tx sqlx.ExtContext) error {
		if err := lockRow(ctx, tx, "module", c.ModuleID, course.ErrModuleNotFound); err != nil {
			return err
		}
		if err := ordering.Allocate(ctx, maxOrder(tx, "content"), &c); err != nil {
			return err
		}
		return errors.Wrap(sqlx.GetContext(ctx, tx, &c.ID,
			`INSERT INTO "content" ("module_id", "kind", "object_id", "order") VALUES ($1, $2, $3, $4) RETURNING "id"`,
			c.ModuleID, string(c.Kind), c.ObjectID, c.Order), "inserting content")
	})
	if err != nil {
		return content.Content{}, err
	}
	return c, nil
}

func (repo contentRepository) GetContentByID(ctx context.Context, id int, exec ...core.DBExecutor) (content.Content, error) {
	var row contentRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+contentColumns+` FROM "content" WHERE "id" = $1`, id)
	if err != nil {
		return content.Content{}, trapNoRowsErr(err, content.ErrNotFound, "selecting content")
	}
	return row.content(), nil
}

func (repo contentRepository) SetContentOrder(ctx context.Context, id, order int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `UPDATE "content" SET "order" = $2 WHERE "id" = $1`, id, order)
	if err != nil {
		return errors.Wrap(err, "updating content order")
	}
	return rowsAffected(res, content.ErrNotFound, "updating content order")
}

func (repo contentRepository) DeleteContent(ctx context.Context, id int, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, `DELETE FROM "content" WHERE "id" = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return rowsAffected(res, content.ErrNotFound, "deleting content")
}

func (repo contentRepository) QueryContents(ctx context.Context, moduleID int, exec ...core.DBExecutor) ([]content.Content, error) {
	var rows []contentRow
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows,
		`SELECT `+contentColumns+` FROM "content" WHERE "module_id" = $1 ORDER BY "order", "id"`, moduleID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting contents")
	}
	slots := make([]content.Content, 0, len(rows))
	for _, r := range rows {
		slots = append(slots, r.content())
	}
	return slots, nil
}

// Items

type itemRow struct {
	ID        int       `db:"id"`
	OwnerID   int       `db:"owner_id"`
	Title     string    `db:"title"`
	Payload   string    `db:"payload"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// itemHandler stores the items of one kind in their own table.
type itemHandler struct {
	repository
	kind    content.Kind
	table   string
	payload string // kind specific column
}

var _ content.Handler = (*itemHandler)(nil) // interface compliance check

// NewItemRegistry returns the handlers of every supported item kind.
func NewItemRegistry(db *sqlx.DB) content.Registry {
	repo := repository{db: db}
	return content.Registry{
		content.KindText:  &itemHandler{repository: repo, kind: content.KindText, table: `"item_text"`, payload: `"content"`},
		content.KindVideo: &itemHandler{repository: repo, kind: content.KindVideo, table: `"item_video"`, payload: `"url"`},
		content.KindImage: &itemHandler{repository: repo, kind: content.KindImage, table: `"item_image"`, payload: `"file"`},
		content.KindFile:  &itemHandler{repository: repo, kind: content.KindFile, table: `"item_file"`, payload: `"file"`},
	}
}

func (h itemHandler) columns() string {
	return `"id", "owner_id", "title", ` + h.payload + ` AS "payload", "created_at", "updated_at"`
}

func (h itemHandler) item(r itemRow) (content.Item, error) {
	return content.NewItem(h.kind, content.ItemBase{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}, r.Payload)
}

func (h itemHandler) GetItem(ctx context.Context, id int, exec ...core.DBExecutor) (content.Item, error) {
	var row itemRow
	err := sqlx.GetContext(ctx, h.getExec(exec), &row, `SELECT `+h.columns()+` FROM `+h.table+` WHERE "id" = $1`, id)
	if err != nil {
		return nil, trapNoRowsErr(err, content.ErrItemNotFound, "selecting "+string(h.kind))
	}
	return h.item(row)
}

func (h itemHandler) CreateItem(ctx context.Context, item content.Item, exec ...core.DBExecutor) (content.Item, error) {
	base := item.Base()
	err := sqlx.GetContext(ctx, h.getExec(exec), &base.ID,
		`INSERT INTO `+h.table+` ("owner_id", "title", `+h.payload+`, "created_at", "updated_at")
		VALUES ($1, $2, $3, $4, $5) RETURNING "id"`,
		base.OwnerID, base.Title, item.Payload(), base.CreatedAt.UTC(), base.UpdatedAt.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "inserting "+string(h.kind))
	}
	return item, nil
}

func (h itemHandler) UpdateItem(ctx context.Context, item content.Item, exec ...core.DBExecutor) (content.Item, error) {
	base := item.Base()
	res, err := h.getExec(exec).ExecContext(ctx,
		`UPDATE `+h.table+` SET "title" = $2, `+h.payload+` = $3, "updated_at" = $4 WHERE "id" = $1`,
		base.ID, base.Title, item.Payload(), base.UpdatedAt.UTC())
	if err != nil {
		return nil, errors.Wrap(err, "updating "+string(h.kind))
	}
	if err := rowsAffected(res, content.ErrItemNotFound, "updating "+string(h.kind)); err != nil {
		return nil, err
	}
	return item, nil
}

func (h itemHandler) DeleteItem(ctx context.Context, id int, exec ...core.DBExecutor) error {
	res, err := h.getExec(exec).ExecContext(ctx, `DELETE FROM `+h.table+` WHERE "id" = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting "+string(h.kind))
	}
	return rowsAffected(res, content.ErrItemNotFound, "deleting "+string(h.kind))
}
