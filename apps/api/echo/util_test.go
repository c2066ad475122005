package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/sistira/core"
	"github.com/trezcool/sistira/core/auth"
	"github.com/trezcool/sistira/core/bank"
	"github.com/trezcool/sistira/core/discipline"
	"github.com/trezcool/sistira/core/exam"
	"github.com/trezcool/sistira/core/question"
	"github.com/trezcool/sistira/core/room"
	"github.com/trezcool/sistira/core/stats"
	"github.com/trezcool/sistira/core/user"
	emailsvc "github.com/trezcool/sistira/services/email"
	logsvc "github.com/trezcool/sistira/services/logger"
	inmemdb "github.com/trezcool/sistira/storage/database/inmem"
)

const testPassword = "Sup3r-S3cret!"

var (
	errNotAuthenticated = httpErr{Error: "user not authenticated"}
	errForbidden        = httpErr{Error: "permission denied"}
)

type testEnv struct {
	app     *Server
	conf    *core.Config
	mailSvc *emailsvc.ConsoleServiceMock
	userSvc *user.Service
	authSvc *auth.Service
}

func newTestConfig() *core.Config {
	conf := &core.Config{
		Env:             "TEST",
		TestMode:        true,
		AppName:         "SisTIRA",
		Build:           "test",
		SecretKey:       "test-secret-key",
		FrontendBaseURL: "http://localhost:3000",
		Storage:         "memory",
	}
	conf.DefaultFromEmail = mail.Address{Name: conf.AppName, Address: "noreply@test.cd"}
	conf.Auth.TokenExpiration = time.Hour
	conf.Auth.CookieName = "authToken"
	conf.Auth.CookieSameSite = "lax"
	return conf
}

// setup wires the API server to a fresh in-memory store.
func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := newTestConfig()
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	question.InitValidators(validate, translator)

	db := inmemdb.Open()
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	userSvc := user.NewService(inmemdb.NewUserRepository(db))
	authSvc := auth.NewService(
		auth.Config{SecretKey: []byte(conf.SecretKey), Issuer: conf.AppName, Expiration: conf.Auth.TokenExpiration},
		inmemdb.NewTokenRepository(db),
		userSvc,
	)
	disciplineSvc := discipline.NewService(inmemdb.NewDisciplineRepository(db))
	questionSvc := question.NewService(inmemdb.NewQuestionRepository(db), disciplineSvc)
	bankSvc := bank.NewService(inmemdb.NewBankRepository(db), userSvc, disciplineSvc, questionSvc, mailSvc)
	examSvc := exam.NewService(inmemdb.NewExamRepository(db), userSvc, questionSvc, bankSvc, mailSvc)
	roomSvc := room.NewService(inmemdb.NewRoomRepository(db), userSvc, examSvc, mailSvc)

	app := NewServer("", nil, &Deps{
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        userSvc,
		AuthSvc:        authSvc,
		DisciplineSvc:  disciplineSvc,
		QuestionSvc:    questionSvc,
		BankSvc:        bankSvc,
		ExamSvc:        examSvc,
		RoomSvc:        roomSvc,
		StatsSvc:       stats.NewService(questionSvc, bankSvc, examSvc, roomSvc),
	})

	return &testEnv{
		app:     app,
		conf:    conf,
		mailSvc: mailSvc,
		userSvc: userSvc,
		authSvc: authSvc,
	}
}

func (env *testEnv) createUser(t *testing.T, name, email string, isAdmin bool) user.User {
	t.Helper()
	usr, err := env.userSvc.Create(context.Background(), &user.User{IsAdmin: true}, user.NewUser{
		Name:     name,
		Email:    email,
		Password: testPassword,
		IsAdmin:  isAdmin,
	})
	require.NoError(t, err)
	return usr
}

// login returns a token for usr along with usr as updated by the login.
func (env *testEnv) login(t *testing.T, usr user.User) (string, user.User) {
	t.Helper()
	tkn, usr, err := env.authSvc.Login(context.Background(), usr.Email, testPassword)
	require.NoError(t, err)
	return tkn.Key, usr
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, _ := env.login(t, usr)
	return token
}

// do serves a JSON request and decodes the response body into out, when not nil.
func (env *testEnv) do(t *testing.T, method, path, token string, body interface{}, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data = marchallObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	env.app.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec
}

func (env *testEnv) run(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
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

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	l1, ok1 := j1.([]interface{})
	l2, ok2 := j2.([]interface{})
	if !ok1 || !ok2 {
		return false, nil
	}
	return assert.ElementsMatch(t, l1, l2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
