package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/course"
	"github.com/trezcool/coursemate/core/recommend"
	"github.com/trezcool/coursemate/core/user"
	"github.com/trezcool/coursemate/services/email"
	"github.com/trezcool/coursemate/services/metrics"
	"github.com/trezcool/coursemate/storage/cache"
	"github.com/trezcool/coursemate/storage/csvstore"
	"github.com/trezcool/coursemate/storage/database/inmem"
	"github.com/trezcool/coursemate/tests"
)

const strongPwd = "Gr3en-Tea!"

type testEnv struct {
	conf    *core.Config
	srv     *server
	repo    user.Repository
	mailSvc *emailsvc.ConsoleServiceMock
	recSvc  *recommend.Service
	metrics *metricsvc.Metrics
}

var ctxBg = context.Background()

func setup(t *testing.T, configure ...func(*core.Config)) *testEnv {
	t.Helper()

	conf := testutil.NewConfig(t)
	for _, fn := range configure {
		fn(conf)
	}
	testutil.WriteDataFiles(t, conf, testutil.CoursesCSV, testutil.RatingsCSV)
	core.ParseEmailTemplates(conf, testutil.Logger{})

	// set up repos & stores
	repo := inmemdb.NewUserRepository(inmemdb.Open())
	store, err := csvstore.NewCourseStore(conf.Catalog.CoursesPath)
	require.NoError(t, err)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	m := metricsvc.New()
	memCache := cache.NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = memCache.Close() })
	recSvc := recommend.NewService(recommend.ConfigFrom(conf), memCache, m, testutil.Logger{})

	validate, translator := testutil.NewValidator()

	srv := NewServer(&Options{
		Conf:           conf,
		Logger:         testutil.Logger{},
		DisableReqLogs: true,
		UserSvc:        user.NewService(repo, mailSvc, conf),
		CourseSvc:      course.NewService(store, conf),
		RecSvc:         recSvc,
		Metrics:        m,
		Validate:       validate,
		Translator:     translator,
	}).(*server)
	t.Cleanup(srv.limiter.Stop)

	return &testEnv{conf: conf, srv: srv, repo: repo, mailSvc: mailSvc, recSvc: recSvc, metrics: m}
}

// seedUsers creates users whose ids match the ratings dataset: student1 (1), student2 (2), student3 (3) & admin (4).
func (env *testEnv) seedUsers(t *testing.T) (students []user.User, admin user.User) {
	t.Helper()
	for _, uname := range []string{"student1", "student2", "student3"} {
		usr := testutil.CreateUser(t, env.repo, "", uname, uname+"@example.com", strongPwd, []string{user.RoleStudent}, true)
		students = append(students, usr)
	}
	admin = testutil.CreateUser(t, env.repo, "Admin", "admin", "admin@example.com", strongPwd, []string{user.RoleAdmin}, true)
	return students, admin
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()
	auth := newAuthenticator(env.conf, nil)
	token, err := auth.generateToken(auth.userClaims(usr))
	require.NoError(t, err, "getToken()")
	return token
}

func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func assertError(t *testing.T, rec *httptest.ResponseRecorder, code int, msg string) {
	t.Helper()
	assert.Equal(t, code, rec.Code, rec.Body.String())
	var got httpErr
	decode(t, rec, &got)
	assert.Equal(t, msg, got.Error)
}

func TestServer_home(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Coursemate API!", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coursemate_http_requests_total{method="GET",route="/",status="200"} 1`)
}
