package content

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core"
)

type spyHandler struct {
	calls int
}

func (h *spyHandler) GetItem(_ context.Context, id int, _ ...core.DBExecutor) (Item, error) {
	h.calls++
	return &Text{ItemBase: ItemBase{ID: id}, Content: "hello"}, nil
}

func (h *spyHandler) CreateItem(_ context.Context, item Item, _ ...core.DBExecutor) (Item, error) {
	h.calls++
	return item, nil
}

func (h *spyHandler) UpdateItem(_ context.Context, item Item, _ ...core.DBExecutor) (Item, error) {
	h.calls++
	return item, nil
}

func (h *spyHandler) DeleteItem(context.Context, int, ...core.DBExecutor) error {
	h.calls++
	return nil
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		tag     string
		want    Kind
		wantErr error
	}{
		{tag: "text", want: KindText},
		{tag: "video", want: KindVideo},
		{tag: "image", want: KindImage},
		{tag: "file", want: KindFile},
		{tag: "Text", wantErr: ErrUnsupportedKind},
		{tag: "user", wantErr: ErrUnsupportedKind},
		{tag: "", wantErr: ErrUnsupportedKind},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseKind(tt.tag)
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Resolve(t *testing.T) {
	spy := new(spyHandler)
	reg := Registry{KindText: spy}
	ctx := context.Background()

	for _, tag := range []string{"user", "course", "../text", "video"} {
		_, err := reg.Resolve(ctx, tag, 1)
		assert.Equal(t, ErrUnsupportedKind, err, tag)
	}
	assert.Zero(t, spy.calls)

	item, err := reg.Resolve(ctx, "text", 7)
	require.NoError(t, err)
	assert.Equal(t, 1, spy.calls)
	assert.Equal(t, 7, item.ItemID())
	assert.Equal(t, KindText, item.ItemKind())
	assert.Equal(t, "hello", item.Payload())
}

func TestNewItem(t *testing.T) {
	base := ItemBase{ID: 3, OwnerID: 1, Title: "T"}
	for _, k := range Kinds {
		item, err := NewItem(k, base, "payload")
		require.NoError(t, err)
		assert.Equal(t, k, item.ItemKind())
		assert.Equal(t, "payload", item.Payload())
		assert.Equal(t, 1, item.Owner())
	}
	_, err := NewItem("audio", base, "")
	assert.Equal(t, ErrUnsupportedKind, err)

	assert.True(t, KindImage.HasBlob())
	assert.True(t, KindFile.HasBlob())
	assert.False(t, KindText.HasBlob())
	assert.False(t, KindVideo.HasBlob())
}
