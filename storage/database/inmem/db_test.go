package inmemdb

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/chat"
	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ownership"
	"github.com/trezcool/educa/core/user"
)

func seed(t *testing.T, db *DB) (user.User, course.Course, course.Module) {
	ctx := context.Background()
	usr, err := NewUserRepository(db).CreateUser(ctx, user.User{Username: "owner", Roles: []string{}})
	require.NoError(t, err)
	crsRepo := NewCourseRepository(db)
	sub, err := crsRepo.CreateSubject(ctx, course.Subject{Title: "Mathematics", Slug: "mathematics"})
	require.NoError(t, err)
	crs, err := crsRepo.CreateCourse(ctx, course.Course{OwnerID: usr.ID, SubjectID: sub.ID, Title: "Algebra", Slug: "algebra"})
	require.NoError(t, err)
	mod, err := crsRepo.CreateModule(ctx, course.Module{CourseID: crs.ID, Title: "Groups"})
	require.NoError(t, err)
	return usr, crs, mod
}

func TestDB_Atomic(t *testing.T) {
	db := Open()
	ctx := context.Background()
	usr, _, mod := seed(t, db)
	items := NewItemRegistry(db)
	slots := NewContentRepository(db)
	errBoom := errors.New("boom")

	err := db.Atomic(ctx, func(exec core.DBExecutor) error {
		item, err := items[content.KindText].CreateItem(ctx, &content.Text{ItemBase: content.ItemBase{OwnerID: usr.ID, Title: "Intro"}}, exec)
		require.NoError(t, err)
		_, err = slots.CreateContent(ctx, content.Content{ModuleID: mod.ID, Kind: content.KindText, ObjectID: item.ItemID()}, exec)
		require.NoError(t, err)
		return errBoom
	})
	assert.Equal(t, errBoom, err)

	_, err = items.Resolve(ctx, "text", 1)
	assert.Equal(t, content.ErrItemNotFound, err)
	got, err := slots.QueryContents(ctx, mod.ID)
	require.NoError(t, err)
	assert.Empty(t, got)

	// primary keys are rolled back too
	err = db.Atomic(ctx, func(exec core.DBExecutor) error {
		item, err := items[content.KindText].CreateItem(ctx, &content.Text{ItemBase: content.ItemBase{OwnerID: usr.ID, Title: "Intro"}}, exec)
		if err != nil {
			return err
		}
		assert.Equal(t, 1, item.ItemID())
		_, err = slots.CreateContent(ctx, content.Content{ModuleID: mod.ID, Kind: content.KindText, ObjectID: item.ItemID()}, exec)
		return err
	})
	require.NoError(t, err)

	got, err = slots.QueryContents(ctx, mod.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].Order.Int)
}

func TestContentRepository_CreateContent_concurrent(t *testing.T) {
	db := Open()
	ctx := context.Background()
	_, _, mod := seed(t, db)
	slots := NewContentRepository(db)

	const n = 30
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := slots.CreateContent(ctx, content.Content{ModuleID: mod.ID, Kind: content.KindText, ObjectID: id})
			assert.NoError(t, err)
		}(i + 1)
	}
	wg.Wait()

	got, err := slots.QueryContents(ctx, mod.ID)
	require.NoError(t, err)
	require.Len(t, got, n)
	for i, slot := range got {
		assert.Equal(t, i, slot.Order.Int)
	}

	_, err = slots.CreateContent(ctx, content.Content{ModuleID: 999, Kind: content.KindText, ObjectID: 1})
	assert.Equal(t, course.ErrModuleNotFound, err)
}

func TestOwnershipChecker(t *testing.T) {
	db := Open()
	ctx := context.Background()
	usr, crs, mod := seed(t, db)
	slot, err := NewContentRepository(db).CreateContent(ctx, content.Content{ModuleID: mod.ID, Kind: content.KindText, ObjectID: 1})
	require.NoError(t, err)
	checker := NewOwnershipChecker(db)

	tests := []struct {
		name   string
		kind   ownership.Kind
		id     int
		userID int
		want   bool
	}{
		{name: "course owner", kind: ownership.Course, id: crs.ID, userID: usr.ID, want: true},
		{name: "course stranger", kind: ownership.Course, id: crs.ID, userID: usr.ID + 1},
		{name: "module owner", kind: ownership.Module, id: mod.ID, userID: usr.ID, want: true},
		{name: "module stranger", kind: ownership.Module, id: mod.ID, userID: usr.ID + 1},
		{name: "content owner", kind: ownership.Content, id: slot.ID, userID: usr.ID, want: true},
		{name: "missing content", kind: ownership.Content, id: 999, userID: usr.ID},
		{name: "missing module", kind: ownership.Module, id: 999, userID: usr.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.IsOwnedBy(ctx, tt.kind, tt.id, tt.userID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChatRepository_QueryMessages(t *testing.T) {
	db := Open()
	ctx := context.Background()
	usr, crs, _ := seed(t, db)
	repo := NewChatRepository(db)

	sentOn := time.Now().UTC()
	for i := 0; i < 5; i++ {
		_, err := repo.CreateMessage(ctx, chat.Message{UserID: usr.ID, CourseID: crs.ID, Content: strconv.Itoa(i), SentOn: sentOn.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		offset   int
		limit    int
		wantRows []string
	}{
		{name: "newest first", offset: 0, limit: 2, wantRows: []string{"4", "3"}},
		{name: "last rows", offset: 3, limit: 10, wantRows: []string{"1", "0"}},
		{name: "past the end", offset: 5, limit: 10, wantRows: []string{}},
		{name: "negative offset", offset: -100, limit: 10, wantRows: []string{}},
		{name: "negative limit", offset: 0, limit: -1, wantRows: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := repo.QueryMessages(ctx, crs.ID, tt.offset, tt.limit)
			require.NoError(t, err)
			got := make([]string, 0, len(msgs))
			for _, msg := range msgs {
				got = append(got, msg.Content)
			}
			assert.Equal(t, tt.wantRows, got)
			if len(msgs) > 0 {
				assert.Equal(t, "owner", msgs[0].Username)
			}
		})
	}
}
