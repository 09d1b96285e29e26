package tests

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/MarMar-mg/school-managment-system-sub000/apps/api/echo"
	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/services/excel"
	testutil "github.com/MarMar-mg/school-managment-system-sub000/tests"
)

func Test_schoolApi_classes(t *testing.T) {
	e := setup(t)
	p := e.seed(t)

	rec := e.do(t, http.MethodPost, "/v1/classes", p.adminToken, school.NewClass{Name: " 10-B ", Grade: "10", Capacity: 25})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var class school.Class
	decode(t, rec, &class)
	assert.Equal(t, "10-B", class.Name)
	assert.Equal(t, 25, class.Capacity)

	path := fmt.Sprintf("/v1/classes/%d", class.ID)
	renamed := class
	renamed.Name = "10-C"

	runHTTPTests(t, e, []httpTest{
		{name: "create: admin only", method: http.MethodPost, path: "/v1/classes", token: p.teacherToken, body: school.NewClass{Name: "x"}, wantCode: http.StatusForbidden},
		{
			name: "create: blank name", method: http.MethodPost, path: "/v1/classes", token: p.adminToken, body: school.NewClass{Name: " "},
			wantCode: http.StatusBadRequest,
		},
		{name: "retrieve: staff", path: path, token: p.teacherToken, wantData: marshalObj(t, class)},
		{name: "retrieve: not students", path: path, token: p.studentToken, wantCode: http.StatusForbidden},
		{
			name: "retrieve: unknown", path: "/v1/classes/999", token: p.adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "class not found"}),
		},
		{
			name: "retrieve: malformed id", path: "/v1/classes/lol", token: p.adminToken,
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "not found"}),
		},
		{name: "update", method: http.MethodPut, path: path, token: p.adminToken, body: map[string]string{"name": "10-C"}, wantData: marshalObj(t, renamed)},
		{name: "list", path: "/v1/classes?ordering=-name", token: p.adminToken, wantData: marshalObj(t, []school.Class{renamed, p.class})},
		{name: "delete", method: http.MethodDelete, path: path, token: p.adminToken, wantCode: http.StatusNoContent},
		{name: "delete again", method: http.MethodDelete, path: path, token: p.adminToken, wantCode: http.StatusNotFound},
	})
	assert.Equal(t, 1, e.db.Count("classes"))
}

func Test_schoolApi_updateCourse(t *testing.T) {
	e := setup(t)
	p := e.seed(t)

	rec := e.do(t, http.MethodPost, "/v1/courses", p.adminToken, school.NewCourse{Name: "Math", ClassID: &p.class.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var course school.Course
	decode(t, rec, &course)
	assert.Equal(t, 1, course.Version)
	assert.Nil(t, course.TeacherID)

	path := fmt.Sprintf("/v1/courses/%d", course.ID)
	name := "Algebra"

	rec = e.do(t, http.MethodPut, path, p.adminToken, school.UpdateCourse{Name: &name, Version: 1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated school.Course
	decode(t, rec, &updated)
	assert.Equal(t, "Algebra", updated.Name)
	assert.Equal(t, 2, updated.Version)

	runHTTPTests(t, e, []httpTest{
		{
			name: "stale version", method: http.MethodPut, path: path, token: p.adminToken, body: school.UpdateCourse{Name: &name, Version: 1},
			wantCode: http.StatusConflict,
			wantData: marshalObj(t, httpErr{Error: fmt.Sprintf("course %d was modified concurrently, reload and try again", course.ID)}),
		},
		{
			name: "version required", method: http.MethodPut, path: path, token: p.adminToken, body: map[string]string{"name": "x"},
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"version": "this field is required"}),
		},
		{
			name: "unknown class", method: http.MethodPut, path: path, token: p.adminToken, body: school.UpdateCourse{ClassID: core.IntPtr(999), Version: 2},
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"class_id": "class does not exist"}),
		},
		{
			name: "unknown course", method: http.MethodPut, path: "/v1/courses/999", token: p.adminToken, body: school.UpdateCourse{Version: 1},
			wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "course not found"}),
		},
		{name: "retrieve", path: path, token: p.adminToken, wantData: marshalObj(t, updated)},
	})
}

func Test_schoolApi_assignTeacher(t *testing.T) {
	e := setup(t)
	p := e.seed(t)
	course := testutil.CreateCourse(t, e.courses, "Math", &p.class.ID, nil)
	path := fmt.Sprintf("/v1/courses/%d/teacher", course.ID)

	runHTTPTests(t, e, []httpTest{
		{name: "admin only", method: http.MethodPut, path: path, token: p.teacherToken, body: AssignTeacherRequest{TeacherID: p.teacher.ID}, wantCode: http.StatusForbidden},
		{
			name: "teacher required", method: http.MethodPut, path: path, token: p.adminToken, body: map[string]int{},
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"teacher_id": "this field is required"}),
		},
		{name: "unknown teacher", method: http.MethodPut, path: path, token: p.adminToken, body: AssignTeacherRequest{TeacherID: 999}, wantCode: http.StatusNotFound},
		{
			name: "unknown course", method: http.MethodPut, path: "/v1/courses/999/teacher", token: p.adminToken, body: AssignTeacherRequest{TeacherID: p.teacher.ID},
			wantCode: http.StatusNotFound,
		},
	})
	require.Zero(t, e.db.Count("notifications"))

	rec := e.do(t, http.MethodPut, path, p.adminToken, AssignTeacherRequest{TeacherID: p.teacher.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var assigned school.Course
	decode(t, rec, &assigned)
	require.NotNil(t, assigned.TeacherID)
	assert.Equal(t, p.teacher.ID, *assigned.TeacherID)
	assert.Equal(t, course.Version+1, assigned.Version)

	notes := e.db.Notifications()
	require.Len(t, notes, 2)
	types := map[string]string{}
	for _, n := range notes {
		types[n.UserID] = n.Type
	}
	assert.Equal(t, map[string]string{
		p.studentUsr.ID: notification.TypeCourseTeacherChanged,
		p.teacherUsr.ID: notification.TypeTeacherCourseAssigned,
	}, types)

	// the teacher now sees the course
	rec = e.do(t, http.MethodGet, "/v1/courses", p.teacherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mine []school.Course
	decode(t, rec, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, course.ID, mine[0].ID)

	rec = e.do(t, http.MethodDelete, path, p.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var unassigned school.Course
	decode(t, rec, &unassigned)
	assert.Nil(t, unassigned.TeacherID)
	assert.Len(t, e.db.Notifications(), 4)

	// unassigning twice changes nothing
	rec = e.do(t, http.MethodDelete, path, p.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, e.db.Notifications(), 4)

	runHTTPTests(t, e, []httpTest{
		{name: "teacher cannot see others' courses", path: fmt.Sprintf("/v1/courses/%d", course.ID), token: p.teacherToken, wantCode: http.StatusNotFound},
	})
}

func Test_schoolApi_createStudent(t *testing.T) {
	e := setup(t)
	p := e.seed(t)

	rec := e.do(t, http.MethodPost, "/v1/students", p.adminToken, school.NewStudent{
		Name: "Sara Ahmadi", Code: "1002", ClassID: &p.class.ID, Email: "Sara@School.test", Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var st school.Student
	decode(t, rec, &st)
	assert.Equal(t, "1002", st.Code)
	assert.NotEmpty(t, st.UserID)

	// the new account can log in with its code
	rec = e.do(t, http.MethodPost, "/v1/users/login", "", LoginRequest{Username: "1002", Password: "secret1"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	runHTTPTests(t, e, []httpTest{
		{
			name: "duplicate code", method: http.MethodPost, path: "/v1/students", token: p.adminToken,
			body:     school.NewStudent{Name: "Other", Code: p.student.Code, Username: "other", Password: "secret1"},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "short password", method: http.MethodPost, path: "/v1/students", token: p.adminToken,
			body:     school.NewStudent{Name: "Other", Code: "1003", Password: "123"},
			wantCode: http.StatusBadRequest,
		},
		{name: "staff can list", path: fmt.Sprintf("/v1/students?class_id=%d", p.class.ID), token: p.teacherToken},
		{name: "bad class filter", path: "/v1/students?class_id=lol", token: p.adminToken, wantCode: http.StatusBadRequest},
	})
	assert.Equal(t, 2, e.db.Count("students"))
}

func Test_schoolApi_importStudents(t *testing.T) {
	e := setup(t)
	p := e.seed(t)

	buf := new(bytes.Buffer)
	require.NoError(t, excel.WriteSheets(buf, core.Sheet{
		Name:   "students",
		Header: []string{"code", "name", "password"},
		Rows: [][]interface{}{
			{"2001", "Sara Ahmadi", "secret1"},
			{"2001", "Sara Again", "secret1"},
			{"2002", "Nima Jafari", "secret2"},
		},
	}))

	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	fw, err := w.CreateFormFile("file", "students.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.WriteField("class_id", strconv.Itoa(p.class.ID)))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/students/import", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.adminToken)
	rec := httptest.NewRecorder()
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res school.ImportResult
	decode(t, rec, &res)
	require.Len(t, res.Created, 2)
	for _, st := range res.Created {
		require.NotNil(t, st.ClassID)
		assert.Equal(t, p.class.ID, *st.ClassID)
	}
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, 3, res.Rejected[0].Row)
	assert.Equal(t, "duplicate of row 2", res.Rejected[0].Error)

	runHTTPTests(t, e, []httpTest{
		{
			name: "file required", method: http.MethodPost, path: "/v1/students/import", token: p.adminToken,
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"file": "this field is required"}),
		},
	})
}
