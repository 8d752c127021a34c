package cachesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	var got []entry
	ok, err := c.Get(ctx, "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	want := []entry{{Title: "Algebra", Count: 2}}
	require.NoError(t, c.Set(ctx, "courses", want, time.Minute))

	ok, err = c.Get(ctx, "courses", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, want, got)

	// values are copied in and out
	want[0].Count = 42
	got = nil
	_, _ = c.Get(ctx, "courses", &got)
	assert.Equal(t, 2, got[0].Count)

	// decoding into the wrong type
	var s string
	_, err = c.Get(ctx, "courses", &s)
	assert.Error(t, err)

	// expiry
	now = now.Add(time.Minute)
	ok, err = c.Get(ctx, "courses", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", 1, time.Hour))
	require.NoError(t, c.Set(ctx, "b", 2, time.Hour))
	require.NoError(t, c.Delete(ctx, "a", "b", "c"))
	var n int
	ok, _ = c.Get(ctx, "a", &n)
	assert.False(t, ok)
	ok, _ = c.Get(ctx, "b", &n)
	assert.False(t, ok)
}
