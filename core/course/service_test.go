package course_test

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
	cachesvc "github.com/trezcool/educa/services/cache"
	inmemdb "github.com/trezcool/educa/storage/database/inmem"
	testutil "github.com/trezcool/educa/tests"
)

type recorder struct {
	mu      sync.Mutex
	applied int
	skipped int
}

func (r *recorder) OrderUpdated(_ string, applied bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if applied {
		r.applied++
	} else {
		r.skipped++
	}
}

type fixture struct {
	db         *inmemdb.DB
	svc        *course.Service
	repo       course.Repository
	usrRepo    user.Repository
	recorder   *recorder
	owner      user.User
	other      user.User
	subject    course.Subject
	ownedCrs   course.Course
	foreignCrs course.Course
}

func setup(t *testing.T) fixture {
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	f := fixture{
		db:       db,
		repo:     inmemdb.NewCourseRepository(db),
		usrRepo:  inmemdb.NewUserRepository(db),
		recorder: new(recorder),
	}
	f.svc = course.NewService(conf, f.repo, inmemdb.NewOwnershipChecker(db), cachesvc.NewMemoryCache(), f.recorder, testutil.NewLogger(conf))

	f.owner = testutil.CreateUser(t, f.usrRepo, "Owner", "owner", "owner@test.cd", []string{user.RoleInstructor}, true)
	f.other = testutil.CreateUser(t, f.usrRepo, "Other", "other", "other@test.cd", []string{user.RoleInstructor}, true)
	f.subject = testutil.CreateSubject(t, f.repo, "Mathematics", "mathematics")
	f.ownedCrs = testutil.CreateCourse(t, f.repo, f.owner.ID, f.subject.ID, "Algebra", "algebra")
	f.foreignCrs = testutil.CreateCourse(t, f.repo, f.other.ID, f.subject.ID, "Geometry", "geometry")
	return f
}

func orders(t *testing.T, svc *course.Service, courseID int) []int {
	mods, err := svc.QueryModules(context.Background(), courseID)
	require.NoError(t, err)
	res := make([]int, 0, len(mods))
	for _, m := range mods {
		require.True(t, m.Order.Valid)
		res = append(res, m.Order.Int)
	}
	return res
}

func TestService_CreateModule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		ownerID   int
		courseID  int
		order     null.Int
		wantErr   error
		wantOrder int
	}{
		{name: "first module", ownerID: f.owner.ID, courseID: f.ownedCrs.ID, wantOrder: 0},
		{name: "appended", ownerID: f.owner.ID, courseID: f.ownedCrs.ID, wantOrder: 1},
		{name: "explicit order", ownerID: f.owner.ID, courseID: f.ownedCrs.ID, order: null.IntFrom(5), wantOrder: 5},
		{name: "after explicit order", ownerID: f.owner.ID, courseID: f.ownedCrs.ID, wantOrder: 6},
		{name: "explicit collision kept", ownerID: f.owner.ID, courseID: f.ownedCrs.ID, order: null.IntFrom(1), wantOrder: 1},
		{name: "other course starts at 0", ownerID: f.other.ID, courseID: f.foreignCrs.ID, wantOrder: 0},
		{name: "course of someone else", ownerID: f.owner.ID, courseID: f.foreignCrs.ID, wantErr: course.ErrNotFound},
		{name: "unknown course", ownerID: f.owner.ID, courseID: 999, wantErr: course.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod, err := f.svc.CreateModule(ctx, tt.ownerID, tt.courseID, course.NewModule{Title: tt.name, Order: tt.order})
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, null.IntFrom(tt.wantOrder), mod.Order)
		})
	}

	assert.Equal(t, []int{0, 1, 1, 5, 6}, orders(t, f.svc, f.ownedCrs.ID))
}

func TestService_CreateModule_concurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateModule(ctx, f.owner.ID, f.ownedCrs.ID, course.NewModule{Title: "Module"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got := orders(t, f.svc, f.ownedCrs.ID)
	sort.Ints(got)
	want := make([]int, n)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestService_DeleteModule_keepsGaps(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	var mods []course.Module
	for i := 0; i < 3; i++ {
		mod, err := f.svc.CreateModule(ctx, f.owner.ID, f.ownedCrs.ID, course.NewModule{Title: "Module"})
		require.NoError(t, err)
		mods = append(mods, mod)
	}

	assert.Equal(t, course.ErrModuleNotFound, f.svc.DeleteModule(ctx, f.other.ID, mods[1].ID))
	require.NoError(t, f.svc.DeleteModule(ctx, f.owner.ID, mods[1].ID))
	assert.Equal(t, []int{0, 2}, orders(t, f.svc, f.ownedCrs.ID))

	mod, err := f.svc.CreateModule(ctx, f.owner.ID, f.ownedCrs.ID, course.NewModule{Title: "Module"})
	require.NoError(t, err)
	assert.Equal(t, 3, mod.Order.Int)
}

func TestService_ReorderModules(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	mine, err := f.svc.CreateModule(ctx, f.owner.ID, f.ownedCrs.ID, course.NewModule{Title: "Mine"})
	require.NoError(t, err)
	theirs, err := f.svc.CreateModule(ctx, f.other.ID, f.foreignCrs.ID, course.NewModule{Title: "Theirs"})
	require.NoError(t, err)

	err = f.svc.ReorderModules(ctx, f.owner.ID, map[int]int{mine.ID: 7, theirs.ID: 9, 999: 1})
	require.NoError(t, err)

	mine, err = f.svc.GetModule(ctx, mine.ID)
	require.NoError(t, err)
	theirs, err = f.svc.GetModule(ctx, theirs.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, mine.Order.Int)
	assert.Equal(t, 0, theirs.Order.Int)
	assert.Equal(t, 1, f.recorder.applied)
	assert.Equal(t, 2, f.recorder.skipped)
}

// vanishingModules loses every module between the ownership check and the order write.
type vanishingModules struct {
	course.Repository
}

func (vanishingModules) SetModuleOrder(context.Context, int, int, ...core.DBExecutor) error {
	return course.ErrModuleNotFound
}

func TestService_ReorderModules_deletedModule(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	mod, err := f.svc.CreateModule(ctx, f.owner.ID, f.ownedCrs.ID, course.NewModule{Title: "Mine"})
	require.NoError(t, err)

	conf := core.NewTestConfig()
	rec := new(recorder)
	svc := course.NewService(conf, vanishingModules{f.repo}, inmemdb.NewOwnershipChecker(f.db), cachesvc.NewMemoryCache(), rec, testutil.NewLogger(conf))

	require.NoError(t, svc.ReorderModules(ctx, f.owner.ID, map[int]int{mod.ID: 3}))
	assert.Equal(t, 0, rec.applied)
	assert.Equal(t, 1, rec.skipped)
}

func TestService_catalogCache(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	subjects, err := f.svc.QuerySubjects(ctx)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, 2, subjects[0].TotalCourses)

	// repository writes bypass the service: the cached value is served
	testutil.CreateCourse(t, f.repo, f.owner.ID, f.subject.ID, "Calculus", "calculus")
	subjects, err = f.svc.QuerySubjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, subjects[0].TotalCourses)

	// service writes invalidate the catalog
	_, err = f.svc.CreateCourse(ctx, f.owner.ID, course.NewCourse{SubjectID: f.subject.ID, Title: "Topology", Slug: "topology"})
	require.NoError(t, err)
	subjects, err = f.svc.QuerySubjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, subjects[0].TotalCourses)

	courses, err := f.svc.QueryCatalog(ctx, "mathematics")
	require.NoError(t, err)
	assert.Len(t, courses, 4)

	_, err = f.svc.QueryCatalog(ctx, "physics")
	assert.Equal(t, course.ErrSubjectNotFound, err)

	_, err = f.svc.GetSubject(ctx, "physics")
	assert.Equal(t, course.ErrSubjectNotFound, err)
}

func TestService_CreateCourse(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.CreateCourse(ctx, f.owner.ID, course.NewCourse{SubjectID: f.subject.ID, Title: "Algebra", Slug: "algebra"})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, course.ErrSlugExists, verr.Err)
	assert.Equal(t, "slug", verr.Fields[0].Field)

	_, err = f.svc.CreateCourse(ctx, f.owner.ID, course.NewCourse{SubjectID: 999, Title: "Lost", Slug: "lost"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, course.ErrSubjectNotFound, verr.Err)

	_, err = f.svc.GetOwnedCourse(ctx, f.owner.ID, f.foreignCrs.ID)
	assert.Equal(t, course.ErrNotFound, err)

	_, err = f.svc.UpdateCourse(ctx, f.owner.ID, f.foreignCrs.ID, course.NewCourse{SubjectID: f.subject.ID, Title: "Mine", Slug: "mine"})
	assert.Equal(t, course.ErrNotFound, err)

	assert.Equal(t, course.ErrNotFound, f.svc.DeleteCourse(ctx, f.owner.ID, f.foreignCrs.ID))
}
