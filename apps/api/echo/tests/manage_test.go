package tests

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
	"github.com/trezcool/educa/tests"
)

func moduleOrders(t *testing.T, courseID int) []int {
	mods, err := crsRepo.QueryModules(context.Background(), courseID)
	require.NoError(t, err)
	orders := make([]int, 0, len(mods))
	for _, mod := range mods {
		orders = append(orders, mod.Order.Int)
	}
	return orders
}

func Test_manageApi_courses(t *testing.T) {
	app := setup(t)

	instructor := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", []string{user.RoleInstructor}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", []string{user.RoleInstructor}, true)
	student := testutil.CreateUser(t, usrRepo, "Student", "student", "student@test.cd", []string{user.RoleStudent}, true)
	math := testutil.CreateSubject(t, crsRepo, "Mathematics", "mathematics")
	token := getToken(t, instructor)

	// create
	body := marchallObj(t, course.NewCourse{SubjectID: math.ID, Title: "  Linear   Algebra "})
	req, rec := newAuthRequest(http.MethodPost, "/v1/manage/courses", token, body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var crs course.Course
	unmarshal(t, rec, &crs)
	assert.Equal(t, instructor.ID, crs.OwnerID)
	assert.Equal(t, "Linear   Algebra", crs.Title)
	assert.Equal(t, "linear-algebra", crs.Slug)

	path := "/v1/manage/courses/" + itoa(crs.ID)
	runHTTPTests(t, app, []httpTest{
		{
			name:     "students cannot manage",
			method:   http.MethodGet,
			path:     "/v1/manage/courses",
			token:    getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "duplicate slug",
			method:   http.MethodPost,
			path:     "/v1/manage/courses",
			body:     marchallObj(t, course.NewCourse{SubjectID: math.ID, Title: "Linear algebra"}),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"slug": course.ErrSlugExists.Error()}),
		},
		{
			name:     "unknown subject",
			method:   http.MethodPost,
			path:     "/v1/manage/courses",
			body:     marchallObj(t, course.NewCourse{SubjectID: 999, Title: "Topology"}),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"subject_id": course.ErrSubjectNotFound.Error()}),
		},
		{
			name:     "update of another owner's course",
			method:   http.MethodPut,
			path:     path,
			body:     marchallObj(t, course.NewCourse{SubjectID: math.ID, Title: "Mine"}),
			token:    getToken(t, other),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{
			name:     "delete of another owner's course",
			method:   http.MethodDelete,
			path:     path,
			token:    getToken(t, other),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
	})

	// update
	body = marchallObj(t, course.NewCourse{SubjectID: math.ID, Title: "Algebra", Overview: "Vectors"})
	req, rec = newAuthRequest(http.MethodPut, path, token, body)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	unmarshal(t, rec, &crs)
	assert.Equal(t, "algebra", crs.Slug)
	assert.Equal(t, "Vectors", crs.Overview)

	// list
	req, rec = newAuthRequest(http.MethodGet, "/v1/manage/courses", getToken(t, other))
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	// delete
	req, rec = newAuthRequest(http.MethodDelete, path, token)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err := crsRepo.GetCourseByID(context.Background(), crs.ID)
	assert.Equal(t, course.ErrNotFound, err)
}

func Test_manageApi_modules(t *testing.T) {
	app := setup(t)

	instructor := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", []string{user.RoleInstructor}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", []string{user.RoleInstructor}, true)
	math := testutil.CreateSubject(t, crsRepo, "Mathematics", "mathematics")
	crs := testutil.CreateCourse(t, crsRepo, instructor.ID, math.ID, "Algebra", "algebra")
	otherCrs := testutil.CreateCourse(t, crsRepo, other.ID, math.ID, "Geometry", "geometry")
	otherMod := testutil.CreateModule(t, crsRepo, otherCrs.ID, "Angles")
	token := getToken(t, instructor)

	modulesPath := "/v1/manage/courses/" + itoa(crs.ID) + "/modules"
	createModule := func(nm course.NewModule) course.Module {
		req, rec := newAuthRequest(http.MethodPost, modulesPath, token, marchallObj(t, nm))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var mod course.Module
		unmarshal(t, rec, &mod)
		return mod
	}

	mod1 := createModule(course.NewModule{Title: "Groups"})
	mod2 := createModule(course.NewModule{Title: "Rings"})
	mod3 := createModule(course.NewModule{Title: "Fields"})
	assert.Equal(t, []int{0, 1, 2}, moduleOrders(t, crs.ID))
	assert.Equal(t, 0, mod1.Order.Int)
	assert.Equal(t, 2, mod3.Order.Int)

	// gaps are kept: the next module follows the max order
	req, rec := newAuthRequest(http.MethodDelete, "/v1/manage/modules/"+itoa(mod2.ID), token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []int{0, 2}, moduleOrders(t, crs.ID))

	mod4 := createModule(course.NewModule{Title: "Modules"})
	assert.Equal(t, 3, mod4.Order.Int)

	runHTTPTests(t, app, []httpTest{
		{
			name:     "negative order",
			method:   http.MethodPost,
			path:     modulesPath,
			body:     []byte(`{"title": "Lattices", "order": -1}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"order": "order must be a positive integer"}),
		},
		{
			name:     "module of another owner's course",
			method:   http.MethodPost,
			path:     "/v1/manage/courses/" + itoa(otherCrs.ID) + "/modules",
			body:     []byte(`{"title": "Lattices"}`),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{
			name:     "list of another owner's modules",
			method:   http.MethodGet,
			path:     "/v1/manage/courses/" + itoa(otherCrs.ID) + "/modules",
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrNotFound.Error()}),
		},
		{
			name:     "reorder skips foreign modules",
			method:   http.MethodPost,
			path:     "/v1/manage/modules/order",
			body:     []byte(`{"` + itoa(mod1.ID) + `": 5, "` + itoa(otherMod.ID) + `": 9, "9999": 1}`),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"saved": "OK"}`),
		},
		{
			name:     "reorder with invalid id",
			method:   http.MethodPost,
			path:     "/v1/manage/modules/order",
			body:     []byte(`{"abc": 1}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid id: abc"}),
		},
		{
			name:     "reorder with negative order",
			method:   http.MethodPost,
			path:     "/v1/manage/modules/order",
			body:     []byte(`{"` + itoa(mod3.ID) + `": 1, "` + itoa(mod4.ID) + `": -2}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{itoa(mod4.ID): "order must be a positive integer"}),
		},
	})

	// nothing from the rejected batch is written
	got, err := crsRepo.GetModuleByID(context.Background(), mod3.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Order.Int)

	got, err = crsRepo.GetModuleByID(context.Background(), mod1.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Order.Int)
	got, err = crsRepo.GetModuleByID(context.Background(), otherMod.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Order.Int)

	// an explicit order is kept even if another module already uses it
	mod5 := createModule(course.NewModule{Title: "Ideals", Order: mod3.Order})
	assert.Equal(t, mod3.Order.Int, mod5.Order.Int)

	req, rec = newAuthRequest(http.MethodGet, modulesPath, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var mods []course.Module
	unmarshal(t, rec, &mods)
	assert.Len(t, mods, 4)
}

func newMultipartRequest(t *testing.T, path, token string, fields map[string]string, filename string, file []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for key, val := range fields {
		require.NoError(t, w.WriteField(key, val))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func Test_manageApi_contents(t *testing.T) {
	app := setup(t)

	instructor := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", []string{user.RoleInstructor}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "other", "other@test.cd", []string{user.RoleInstructor}, true)
	math := testutil.CreateSubject(t, crsRepo, "Mathematics", "mathematics")
	crs := testutil.CreateCourse(t, crsRepo, instructor.ID, math.ID, "Algebra", "algebra")
	mod := testutil.CreateModule(t, crsRepo, crs.ID, "Groups")
	token := getToken(t, instructor)
	contentsPath := "/v1/manage/modules/" + itoa(mod.ID) + "/contents"

	// text
	req, rec := newAuthRequest(http.MethodPost, contentsPath+"/text", token, []byte(`{"title": "Intro", "content": "Hello"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var text struct {
		ID       int          `json:"id"`
		Kind     content.Kind `json:"kind"`
		ObjectID int          `json:"object_id"`
		Order    int          `json:"order"`
		Item     content.Text `json:"item"`
	}
	unmarshal(t, rec, &text)
	assert.Equal(t, content.KindText, text.Kind)
	assert.Equal(t, 0, text.Order)
	assert.Equal(t, "Hello", text.Item.Content)

	// image upload
	req, rec = newMultipartRequest(t, contentsPath+"/image", token, map[string]string{"title": "Diagram"}, "diagram.png", []byte("png"))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var image struct {
		ID    int           `json:"id"`
		Order int           `json:"order"`
		Item  content.Image `json:"item"`
	}
	unmarshal(t, rec, &image)
	assert.Equal(t, 1, image.Order)
	stored, err := os.ReadFile(filepath.Join(conf.Storage.LocalDir, filepath.FromSlash(image.Item.File)))
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), stored)

	textItemPath := "/v1/items/text/" + itoa(text.ObjectID)
	runHTTPTests(t, app, []httpTest{
		{
			name:     "unsupported kind",
			method:   http.MethodPost,
			path:     contentsPath + "/quiz",
			body:     []byte(`{"title": "Quiz"}`),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: content.ErrUnsupportedKind.Error()}),
		},
		{
			name:     "missing text content",
			method:   http.MethodPost,
			path:     contentsPath + "/text",
			body:     []byte(`{"title": "Empty"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"content": "this field is required"}),
		},
		{
			name:     "missing upload",
			method:   http.MethodPost,
			path:     contentsPath + "/file",
			body:     []byte(`{"title": "Slides"}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		},
		{
			name:     "content in another owner's module",
			method:   http.MethodPost,
			path:     contentsPath + "/text",
			body:     []byte(`{"title": "Intro", "content": "Hi"}`),
			token:    getToken(t, other),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: course.ErrModuleNotFound.Error()}),
		},
		{
			name:     "resolve with unsupported kind",
			method:   http.MethodGet,
			path:     "/v1/items/user/" + itoa(instructor.ID),
			token:    token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: content.ErrUnsupportedKind.Error()}),
		},
		{
			name:     "resolve another owner's item",
			method:   http.MethodGet,
			path:     textItemPath,
			token:    getToken(t, other),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: content.ErrItemNotFound.Error()}),
		},
		{
			name:     "reorder contents",
			method:   http.MethodPost,
			path:     "/v1/manage/contents/order",
			body:     []byte(`{"` + itoa(text.ID) + `": 1, "` + itoa(image.ID) + `": 0}`),
			token:    token,
			wantCode: http.StatusOK,
			wantData: []byte(`{"saved": "OK"}`),
		},
	})

	// resolve
	req, rec = newAuthRequest(http.MethodGet, textItemPath, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"content":"Hello"`)

	// list, by order
	req, rec = newAuthRequest(http.MethodGet, contentsPath, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var slots []struct {
		ID   int          `json:"id"`
		Kind content.Kind `json:"kind"`
	}
	unmarshal(t, rec, &slots)
	require.Len(t, slots, 2)
	assert.Equal(t, image.ID, slots[0].ID)
	assert.Equal(t, text.ID, slots[1].ID)

	// update
	req, rec = newAuthRequest(http.MethodPut, "/v1/manage/contents/"+itoa(text.ID), token, []byte(`{"title": "Intro", "content": "Bye"}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"content":"Bye"`)

	// delete removes the slot and its item
	req, rec = newAuthRequest(http.MethodDelete, "/v1/manage/contents/"+itoa(text.ID), token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	req, rec = newAuthRequest(http.MethodGet, textItemPath, token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusNotFound,
		wantData: marchallObj(t, httpErr{Error: content.ErrItemNotFound.Error()}),
	}, rec)

	// deleting an image removes its blob
	req, rec = newAuthRequest(http.MethodDelete, "/v1/manage/contents/"+itoa(image.ID), token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	_, err = os.Stat(filepath.Join(conf.Storage.LocalDir, filepath.FromSlash(image.Item.File)))
	assert.True(t, os.IsNotExist(err))
}
