package echoapi_test

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/recedu/reconline/apps/api/echo"
	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/assignment"
	"github.com/recedu/reconline/core/attendance"
	"github.com/recedu/reconline/core/chat"
	"github.com/recedu/reconline/core/course"
	"github.com/recedu/reconline/core/errbus"
	"github.com/recedu/reconline/core/forum"
	"github.com/recedu/reconline/core/realtime"
	"github.com/recedu/reconline/core/user"
	dummymail "github.com/recedu/reconline/services/email/dummy"
	logsvc "github.com/recedu/reconline/services/logger"
	pushsvc "github.com/recedu/reconline/services/push"
	inmemdb "github.com/recedu/reconline/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testEnv struct {
	conf   *core.Config
	server *echoapi.Server
	db     *inmemdb.DB

	usrRepo user.Repository
	crsRepo course.Repository
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	conf := core.NewTestConfig()
	// keep the error handler's mapped messages instead of raw debug output
	conf.Debug = false

	logger := logsvc.NewStdLogger(log.New(os.Stdout, "TEST : ", log.LstdFlags))
	logger.Enable(false)

	validate := validator.New()
	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)

	hub := realtime.NewHub()
	bus := errbus.NewBus()
	mailSvc := dummymail.NewService(conf)

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,

		UserSvc:       user.NewService(usrRepo, mailSvc, conf),
		CourseSvc:     course.NewService(crsRepo, conf),
		AssignmentSvc: assignment.NewService(inmemdb.NewAssignmentRepository(db), conf),
		AttendanceSvc: attendance.NewService(inmemdb.NewAttendanceRepository(db), conf),
		ForumSvc:      forum.NewService(inmemdb.NewForumRepository(db), conf),
		ChatSvc:       chat.NewService(inmemdb.NewChatRepository(db), realtime.LocalWriter{Hub: hub}, conf),

		Store: hub,
		Bus:   bus,

		Push: pushsvc.NewConsoleNotifier(logger),

		DisableReqLogs: true,
	})
	return &testEnv{conf: conf, server: server, db: db, usrRepo: usrRepo, crsRepo: crsRepo}
}

func (env *testEnv) createUser(t *testing.T, name, uname, email, pwd string, roles []string, isActive bool) user.User {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		IsActive:  isActive,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("SetPassword() failed, %v", err)
		}
	}
	usr, err := env.usrRepo.CreateUser(usr)
	if err != nil {
		t.Fatalf("CreateUser() failed, %v", err)
	}
	return usr
}

func (env *testEnv) createCourse(t *testing.T, code, title string, teacherID int, published, autoApprove bool, capacity int) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs, err := env.crsRepo.CreateCourse(course.Course{
		Code:        code,
		Title:       title,
		TeacherID:   teacherID,
		Capacity:    capacity,
		AutoApprove: autoApprove,
		IsPublished: published,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed, %v", err)
	}
	return crs
}

func (env *testEnv) getToken(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := echoapi.GenerateToken(env.conf, echoapi.GetUserClaims(env.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed, %v", err)
	}
	return token
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
		t.Fatalf("marchallObj() failed, %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed, %v", err)
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
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ObjectsAreEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()

	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
