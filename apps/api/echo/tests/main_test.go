package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	. "github.com/MarMar-mg/school-managment-system-sub000/apps/api/echo"
	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/assessment"
	"github.com/MarMar-mg/school-managment-system-sub000/core/grading"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/roster"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
	"github.com/MarMar-mg/school-managment-system-sub000/core/stats"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
	emailsvc "github.com/MarMar-mg/school-managment-system-sub000/services/email"
	"github.com/MarMar-mg/school-managment-system-sub000/services/filestore"
	"github.com/MarMar-mg/school-managment-system-sub000/services/ratelimit"
	inmemdb "github.com/MarMar-mg/school-managment-system-sub000/storage/database/inmem"
	testutil "github.com/MarMar-mg/school-managment-system-sub000/tests"
)

const testPassword = "s3cret-pass"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	conf        *core.Config
	app         *Server
	db          *inmemdb.DB
	users       user.Repository
	classes     school.ClassRepository
	courses     school.CourseRepository
	students    school.StudentRepository
	teachers    school.TeacherRepository
	assignments assessment.Repository
}

func setup(t *testing.T) env {
	t.Helper()
	conf := core.NewTestConfig()
	logger := testutil.NopLogger{}

	db := inmemdb.Open()
	e := env{
		conf:        conf,
		db:          db,
		users:       inmemdb.NewUserRepository(db),
		classes:     inmemdb.NewClassRepository(db),
		courses:     inmemdb.NewCourseRepository(db),
		students:    inmemdb.NewStudentRepository(db),
		teachers:    inmemdb.NewTeacherRepository(db),
		assignments: inmemdb.NewAssessmentRepository(db),
	}
	scores := inmemdb.NewScoreRepository(db)
	notes := inmemdb.NewNotificationRepository(db)
	tx := inmemdb.NewTransactor(db)

	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	assessment.InitValidators(validate, translator)
	score.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	files, err := filestore.NewLocalStore(t.TempDir(), conf.Server.MaxUploadSize)
	require.NoError(t, err)

	mail := emailsvc.NewConsoleServiceMock(conf, logger)
	dispatcher := notification.NewDispatcher(conf, notes, e.users, mail, logger, nil)

	e.app = NewServer(&Deps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Limiter:    ratelimit.NewMemoryLimiter(conf.RateLimit),
		UserSvc:    user.NewServiceMock(conf, e.users, mail),
		Resolver:   access.NewResolver(e.students, e.teachers),
		SchoolSvc: school.NewService(tx, school.Repositories{
			Classes:  e.classes,
			Courses:  e.courses,
			Students: e.students,
			Teachers: e.teachers,
			Users:    e.users,
		}, validate),
		RosterSvc: roster.NewService(roster.Deps{
			Tx:         tx,
			Courses:    e.courses,
			Teachers:   e.teachers,
			Students:   e.students,
			Dispatcher: dispatcher,
		}),
		AssessmentSvc: assessment.NewService(assessment.Deps{
			Tx:         tx,
			Repo:       e.assignments,
			Courses:    e.courses,
			Students:   e.students,
			Dispatcher: dispatcher,
			Files:      files,
			Logger:     logger,
		}),
		GradingSvc: grading.NewService(grading.Deps{
			Tx:          tx,
			Assignments: e.assignments,
			Courses:     e.courses,
			Students:    e.students,
			Dispatcher:  dispatcher,
		}),
		ScoreSvc: score.NewService(score.Deps{
			Tx:       tx,
			Repo:     scores,
			Courses:  e.courses,
			Students: e.students,
		}),
		StatsSvc: stats.NewService(stats.Deps{
			Conf:     conf,
			Scores:   scores,
			Classes:  e.classes,
			Courses:  e.courses,
			Students: e.students,
			Teachers: e.teachers,
		}),
		NotificationSvc: notification.NewService(conf, notes),
	})
	return e
}

// people is the cast most tests need: one admin, one teacher and one student of class 10-A.
type people struct {
	admin        user.User
	adminToken   string
	teacherUsr   user.User
	teacher      school.Teacher
	teacherToken string
	studentUsr   user.User
	student      school.Student
	studentToken string
	class        school.Class
}

func (e env) seed(t *testing.T) people {
	t.Helper()
	var p people
	p.class = testutil.CreateClass(t, e.classes, "10-A")

	p.admin = testutil.CreateUser(t, e.users, "Admin", "admin", "admin@school.test", testPassword, user.RoleAdmin, true)
	p.adminToken = e.token(t, p.admin)

	p.teacherUsr = testutil.CreateUser(t, e.users, "Reza Karimi", "rkarimi", "reza@school.test", testPassword, user.RoleTeacher, true)
	p.teacher = testutil.CreateTeacher(t, e.teachers, "Reza Karimi", p.teacherUsr.ID)
	p.teacherToken = e.token(t, p.teacherUsr)

	p.studentUsr = testutil.CreateUser(t, e.users, "Ali Rahimi", "arahimi", "ali@school.test", testPassword, user.RoleStudent, true)
	p.student = testutil.CreateStudent(t, e.students, "Ali Rahimi", "1001", &p.class.ID, p.studentUsr.ID)
	p.studentToken = e.token(t, p.studentUsr)
	return p
}

func (e env) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := e.app.Token(usr)
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

// createExam stores an exam of course that closed an hour ago.
func (e env) createExam(t *testing.T, course school.Course, maxScore float64) assessment.Assignment {
	t.Helper()
	start := time.Now().UTC().Add(-3 * time.Hour)
	exam, err := e.assignments.CreateAssignment(context.Background(), assessment.Assignment{
		Kind:      assessment.KindExam,
		Title:     "Midterm",
		CourseID:  course.ID,
		ClassID:   course.ClassID,
		StartAt:   start,
		EndAt:     start.Add(2 * time.Hour),
		MaxScore:  core.FloatPtr(maxScore),
		CreatedAt: start,
	})
	require.NoError(t, err)
	return exam
}

func (e env) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var data []byte
	if body != nil {
		data = marshalObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	e.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     interface{}
	token    string
	wantCode int
	wantData []byte // not compared when nil
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

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode() failed: %v; body %s", err, rec.Body.String())
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

func runHTTPTests(t *testing.T, e env, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.method == "" {
				tt.method = http.MethodGet
			}
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			rec := e.do(t, tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
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
