package content

import (
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/ordering"
)

// Kind is the item kind tag stored on a content slot.
type Kind string

const (
	KindText  Kind = "text"
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindFile  Kind = "file"
)

// Kinds is the closed allow-list of item kinds.
var Kinds = []Kind{KindText, KindVideo, KindImage, KindFile}

var ErrUnsupportedKind = errors.New("unsupported content type")

// ParseKind validates tag against the allow-list.
func ParseKind(tag string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == tag {
			return k, nil
		}
	}
	return "", ErrUnsupportedKind
}

// HasBlob reports whether items of this kind keep their payload in the blob store.
func (k Kind) HasBlob() bool {
	return k == KindImage || k == KindFile
}

// ItemBase holds the fields shared by every item kind.
type ItemBase struct {
	ID        int       `json:"id"`
	OwnerID   int       `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created"` // UTC
	UpdatedAt time.Time `json:"updated"` // UTC
}

func (b *ItemBase) ItemID() int     { return b.ID }
func (b *ItemBase) Owner() int      { return b.OwnerID }
func (b *ItemBase) Base() *ItemBase { return b }

// Item is the capability set shared by the concrete item kinds.
type Item interface {
	ItemID() int
	ItemKind() Kind
	Owner() int
	Base() *ItemBase
	// Payload is the kind specific value: inline text, video url or blob key.
	Payload() string
	SetPayload(p string)
}

type (
	Text struct {
		ItemBase
		Content string `json:"content"`
	}

	Video struct {
		ItemBase
		URL string `json:"url"`
	}

	Image struct {
		ItemBase
		File string `json:"file"` // blob key
	}

	File struct {
		ItemBase
		File string `json:"file"` // blob key
	}
)

var (
	_ Item = (*Text)(nil)
	_ Item = (*Video)(nil)
	_ Item = (*Image)(nil)
	_ Item = (*File)(nil)
)

func (t *Text) ItemKind() Kind       { return KindText }
func (t *Text) Payload() string      { return t.Content }
func (t *Text) SetPayload(p string)  { t.Content = p }
func (v *Video) ItemKind() Kind      { return KindVideo }
func (v *Video) Payload() string     { return v.URL }
func (v *Video) SetPayload(p string) { v.URL = p }
func (i *Image) ItemKind() Kind      { return KindImage }
func (i *Image) Payload() string     { return i.File }
func (i *Image) SetPayload(p string) { i.File = p }
func (f *File) ItemKind() Kind       { return KindFile }
func (f *File) Payload() string      { return f.File }
func (f *File) SetPayload(p string)  { f.File = p }

// NewItem builds an empty Item of the given kind.
func NewItem(kind Kind, base ItemBase, payload string) (Item, error) {
	var item Item
	switch kind {
	case KindText:
		item = &Text{ItemBase: base}
	case KindVideo:
		item = &Video{ItemBase: base}
	case KindImage:
		item = &Image{ItemBase: base}
	case KindFile:
		item = &File{ItemBase: base}
	default:
		return nil, ErrUnsupportedKind
	}
	item.SetPayload(payload)
	return item, nil
}

// Content is an ordered slot inside a module pointing at exactly one item.
type Content struct {
	ID       int      `json:"id"`
	ModuleID int      `json:"module_id"`
	Kind     Kind     `json:"kind"`
	ObjectID int      `json:"object_id"`
	Order    null.Int `json:"order"`
	Item     Item     `json:"item,omitempty"`
}

var _ ordering.Ordered = (*Content)(nil)

func (c *Content) OrderScope() ordering.Scope {
	return ordering.Scope{{Column: "module_id", Value: c.ModuleID}}
}
func (c *Content) OrderValue() null.Int { return c.Order }
func (c *Content) SetOrder(order int)   { c.Order = null.IntFrom(order) }

// ItemData is the user input for creating or editing an item.
// Content is used by text items and URL by video items; image and file items take an Upload.
type ItemData struct {
	Title   string  `json:"title" form:"title" validate:"required,max=250"`
	Content string  `json:"content" form:"content"`
	URL     string  `json:"url" form:"url" validate:"omitempty,url"`
	Upload  *Upload `json:"-" form:"-"`
}

// Upload is a file payload received for an image or file item.
type Upload struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

func (d *ItemData) Validate(validate *validator.Validate, kind Kind, creating bool) error {
	d.Title = core.CleanString(d.Title)
	d.URL = core.CleanString(d.URL)
	if err := validate.Struct(d); err != nil {
		return err
	}

	required := func(field string) error {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: "this field is required"})
	}
	switch kind {
	case KindText:
		if core.CleanString(d.Content) == "" {
			return required("content")
		}
	case KindVideo:
		if d.URL == "" {
			return required("url")
		}
	case KindImage, KindFile:
		if creating && d.Upload == nil {
			return required("file")
		}
	}
	return nil
}

// payload returns the kind specific input value; blob kinds get their key later.
func (d *ItemData) payload(kind Kind) string {
	switch kind {
	case KindText:
		return d.Content
	case KindVideo:
		return d.URL
	}
	return ""
}
