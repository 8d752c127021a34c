package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/educa/apps/api/echo"
	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/chat"
	"github.com/trezcool/educa/core/content"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/enrollment"
	"github.com/trezcool/educa/core/user"
	"github.com/trezcool/educa/services/blob"
	"github.com/trezcool/educa/services/cache"
	"github.com/trezcool/educa/services/email"
	"github.com/trezcool/educa/storage/database/inmem"
	"github.com/trezcool/educa/tests"
)

var (
	conf      *core.Config
	usrRepo   user.Repository
	crsRepo   course.Repository
	cntRepo   content.Repository
	items     content.Registry
	enrolRepo enrollment.Repository
	chatRepo  chat.Repository

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

// setup returns a server backed by a fresh in-memory store.
func setup(t *testing.T) *Server {
	conf = core.NewTestConfig()
	conf.Storage.LocalDir = t.TempDir()
	logger := testutil.NewLogger(conf)
	validate, translator := testutil.NewValidator()

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	crsRepo = inmemdb.NewCourseRepository(db)
	cntRepo = inmemdb.NewContentRepository(db)
	items = inmemdb.NewItemRegistry(db)
	enrolRepo = inmemdb.NewEnrollmentRepository(db)
	chatRepo = inmemdb.NewChatRepository(db)
	owners := inmemdb.NewOwnershipChecker(db)

	// set up services
	blobs := blobsvc.NewLocalStore(conf.Storage.LocalDir, conf.Storage.BaseURL)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	usrSvc := user.NewService(usrRepo)
	crsSvc := course.NewService(conf, crsRepo, owners, cachesvc.NewMemoryCache(), nil, logger)
	cntSvc := content.NewService(cntRepo, items, owners, db, blobs, nil, logger)
	enrolSvc := enrollment.NewService(enrolRepo, crsSvc, mailSvc, logger)

	// set up server
	return NewServer(&Deps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		UserSvc:       usrSvc,
		CourseSvc:     crsSvc,
		ContentSvc:    cntSvc,
		EnrollmentSvc: enrolSvc,
		ChatSvc:       chat.NewService(chatRepo, enrolSvc),
		Blobs:         blobs,
	})
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func itoa(id int) string {
	return strconv.Itoa(id)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
