package content_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
	blobsvc "github.com/trezcool/educa/services/blob"
	inmemdb "github.com/trezcool/educa/storage/database/inmem"
	testutil "github.com/trezcool/educa/tests"
)

var errBoom = errors.New("boom")

// failingSlots fails every slot creation.
type failingSlots struct {
	content.Repository
}

func (failingSlots) CreateContent(context.Context, content.Content, ...core.DBExecutor) (content.Content, error) {
	return content.Content{}, errBoom
}

type fixture struct {
	db       *inmemdb.DB
	svc      *content.Service
	repo     content.Repository
	items    content.Registry
	blobDir  string
	blobs    *blobsvc.LocalStore
	owner    user.User
	other    user.User
	module   course.Module
	foreignM course.Module
}

func setup(t *testing.T) fixture {
	conf := core.NewTestConfig()
	f := fixture{db: inmemdb.Open(), blobDir: t.TempDir()}
	f.repo = inmemdb.NewContentRepository(f.db)
	f.items = inmemdb.NewItemRegistry(f.db)
	f.blobs = blobsvc.NewLocalStore(f.blobDir, "/media/")
	f.svc = content.NewService(f.repo, f.items, inmemdb.NewOwnershipChecker(f.db), f.db, f.blobs, nil, testutil.NewLogger(conf))

	usrRepo := inmemdb.NewUserRepository(f.db)
	crsRepo := inmemdb.NewCourseRepository(f.db)
	f.owner = testutil.CreateUser(t, usrRepo, "Owner", "owner", "owner@test.cd", []string{user.RoleInstructor}, true)
	f.other = testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", []string{user.RoleInstructor}, true)
	sub := testutil.CreateSubject(t, crsRepo, "Mathematics", "mathematics")
	crs := testutil.CreateCourse(t, crsRepo, f.owner.ID, sub.ID, "Algebra", "algebra")
	foreign := testutil.CreateCourse(t, crsRepo, f.other.ID, sub.ID, "Geometry", "geometry")
	f.module = testutil.CreateModule(t, crsRepo, crs.ID, "Groups")
	f.foreignM = testutil.CreateModule(t, crsRepo, foreign.ID, "Angles")
	return f
}

func (f fixture) blobExists(key string) bool {
	_, err := os.Stat(filepath.Join(f.blobDir, filepath.FromSlash(key)))
	return err == nil
}

func upload(name, data string) *content.Upload {
	return &content.Upload{Filename: name, ContentType: "application/octet-stream", Reader: strings.NewReader(data)}
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		ownerID  int
		moduleID int
		tag      string
		data     content.ItemData
		wantErr  error
		wantKind content.Kind
	}{
		{name: "unsupported kind", ownerID: f.owner.ID, moduleID: f.module.ID, tag: "user", wantErr: content.ErrUnsupportedKind},
		{name: "module of someone else", ownerID: f.owner.ID, moduleID: f.foreignM.ID, tag: "text", wantErr: course.ErrModuleNotFound},
		{name: "unknown module", ownerID: f.owner.ID, moduleID: 999, tag: "text", wantErr: course.ErrModuleNotFound},
		{name: "text", ownerID: f.owner.ID, moduleID: f.module.ID, tag: "text", data: content.ItemData{Title: "Intro", Content: "Hello"}, wantKind: content.KindText},
		{name: "video", ownerID: f.owner.ID, moduleID: f.module.ID, tag: "video", data: content.ItemData{Title: "Talk", URL: "https://example.com/v"}, wantKind: content.KindVideo},
		{name: "file", ownerID: f.owner.ID, moduleID: f.module.ID, tag: "file", data: content.ItemData{Title: "Notes", Upload: upload("Notes.PDF", "%PDF")}, wantKind: content.KindFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot, err := f.svc.Create(ctx, tt.ownerID, tt.moduleID, tt.tag, tt.data)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, slot.Kind)
			assert.Equal(t, tt.wantKind, slot.Item.ItemKind())
			assert.Equal(t, slot.Item.ItemID(), slot.ObjectID)
			assert.Equal(t, tt.ownerID, slot.Item.Owner())
		})
	}

	slots, err := f.svc.QueryModuleContents(ctx, f.module.ID)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	for i, slot := range slots {
		assert.Equal(t, i, slot.Order.Int)
	}

	key := slots[2].Item.Payload()
	assert.True(t, strings.HasPrefix(key, "files/"), key)
	assert.True(t, strings.HasSuffix(key, ".pdf"), key)
	assert.True(t, f.blobExists(key))
}

func TestService_Create_rollsBack(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	conf := core.NewTestConfig()
	svc := content.NewService(failingSlots{f.repo}, f.items, inmemdb.NewOwnershipChecker(f.db), f.db, f.blobs, nil, testutil.NewLogger(conf))

	_, err := svc.Create(ctx, f.owner.ID, f.module.ID, "image", content.ItemData{Title: "Pic", Upload: upload("pic.png", "png")})
	assert.ErrorIs(t, err, errBoom)

	// the item created before the failure is gone with the transaction
	_, err = f.items.Resolve(ctx, "image", 1)
	assert.Equal(t, content.ErrItemNotFound, err)

	// so is the uploaded blob
	err = filepath.WalkDir(f.blobDir, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			t.Errorf("unexpected blob %s", p)
		}
		return err
	})
	assert.NoError(t, err)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	text, err := f.svc.Create(ctx, f.owner.ID, f.module.ID, "text", content.ItemData{Title: "Intro", Content: "Hello"})
	require.NoError(t, err)
	img, err := f.svc.Create(ctx, f.owner.ID, f.module.ID, "image", content.ItemData{Title: "Pic", Upload: upload("pic.png", "png")})
	require.NoError(t, err)
	blob := img.Item.Payload()
	require.True(t, f.blobExists(blob))

	assert.Equal(t, content.ErrNotFound, f.svc.Delete(ctx, f.other.ID, text.ID))
	assert.Equal(t, content.ErrNotFound, f.svc.Delete(ctx, f.owner.ID, 999))

	require.NoError(t, f.svc.Delete(ctx, f.owner.ID, text.ID))
	_, err = f.svc.Resolve(ctx, "text", text.ObjectID)
	assert.Equal(t, content.ErrItemNotFound, err)
	_, err = f.repo.GetContentByID(ctx, text.ID)
	assert.Equal(t, content.ErrNotFound, err)

	require.NoError(t, f.svc.Delete(ctx, f.owner.ID, img.ID))
	assert.False(t, f.blobExists(blob))

	slots, err := f.svc.QueryModuleContents(ctx, f.module.ID)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestService_UpdateItem(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	img, err := f.svc.Create(ctx, f.owner.ID, f.module.ID, "image", content.ItemData{Title: "Pic", Upload: upload("pic.png", "v1")})
	require.NoError(t, err)
	oldBlob := img.Item.Payload()

	_, err = f.svc.UpdateItem(ctx, f.other.ID, img.ID, content.ItemData{Title: "Mine"})
	assert.Equal(t, content.ErrNotFound, err)

	// title only: the blob is kept
	updated, err := f.svc.UpdateItem(ctx, f.owner.ID, img.ID, content.ItemData{Title: "Picture"})
	require.NoError(t, err)
	assert.Equal(t, "Picture", updated.Item.Base().Title)
	assert.Equal(t, oldBlob, updated.Item.Payload())

	// new upload replaces the blob
	updated, err = f.svc.UpdateItem(ctx, f.owner.ID, img.ID, content.ItemData{Title: "Picture", Upload: upload("pic2.jpg", "v2")})
	require.NoError(t, err)
	newBlob := updated.Item.Payload()
	assert.NotEqual(t, oldBlob, newBlob)
	assert.False(t, f.blobExists(oldBlob))
	assert.True(t, f.blobExists(newBlob))

	item, err := f.svc.Resolve(ctx, "image", img.ObjectID)
	require.NoError(t, err)
	assert.Equal(t, newBlob, item.Payload())
}

func TestService_ReorderContents(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, f.owner.ID, f.module.ID, "text", content.ItemData{Title: "A", Content: "a"})
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, f.owner.ID, f.module.ID, "text", content.ItemData{Title: "B", Content: "b"})
	require.NoError(t, err)
	theirs, err := f.svc.Create(ctx, f.other.ID, f.foreignM.ID, "text", content.ItemData{Title: "C", Content: "c"})
	require.NoError(t, err)

	require.NoError(t, f.svc.ReorderContents(ctx, f.owner.ID, map[int]int{a.ID: 5, b.ID: 2, theirs.ID: 9}))

	slots, err := f.svc.QueryModuleContents(ctx, f.module.ID)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, b.ID, slots[0].ID)
	assert.Equal(t, 2, slots[0].Order.Int)
	assert.Equal(t, a.ID, slots[1].ID)
	assert.Equal(t, 5, slots[1].Order.Int)

	got, err := f.repo.GetContentByID(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Order.Int)
}
