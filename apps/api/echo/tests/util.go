package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
	cachesvc "github.com/trezcool/academia/services/cache"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/services/worker"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
	"github.com/trezcool/academia/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*echoapi.Server
	conf  *core.Config
	repos testutil.Repos
	mail  *emailsvc.MockService
}

// setup wires the API the way apps/api does, on a fresh SQLite database, with mocked mail & inline jobs.
func setup(t *testing.T) testApp {
	t.Helper()
	conf := core.NewTestConfig()
	repos := testutil.NewRepos(t)
	logger := logsvc.NewDiscardLogger()
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	grade.InitValidators(validate, translator)
	mail := emailsvc.NewMockService()

	cache := cachesvc.NewMemoryCache()
	usrSvc := user.NewService(repos.Users, cache, validate, logger)
	scopes := access.NewResolver(usrSvc)
	dispatcher := notification.NewDispatcher(notification.Deps{
		Repo:        sqlxrepos.NewNotificationRepository(repos.DB),
		Users:       repos.Users,
		Grades:      repos.Grades,
		Attendances: repos.Attendances,
		Mail:        mail,
		Queue:       worker.NewSyncQueue(logger),
		Scopes:      scopes,
		Validate:    validate,
		Logger:      logger,
	})
	bus := core.NewEventBus(core.NewAuditHandler(logger), dispatcher.HandleEvent)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		CourseSvc:      course.NewService(repos.Courses, repos.Users, cache, course.TTLsFromConfig(conf.Cache), validate, logger),
		GradeSvc:       grade.NewService(repos.Grades, repos.Users, repos.Courses, scopes, bus, validate, logger),
		AttendanceSvc:  attendance.NewService(repos.Attendances, repos.Users, repos.Courses, scopes, bus, validate, logger),
		Notifier:       dispatcher,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return testApp{Server: server, conf: conf, repos: repos, mail: mail}
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

func (app testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(conf, echoapi.GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal(%s): %v", rec.Body.String(), err)
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
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app testApp, tests []httpTest) {
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
