package tests

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
	"github.com/MarMar-mg/school-managment-system-sub000/core/stats"
	"github.com/MarMar-mg/school-managment-system-sub000/services/excel"
	testutil "github.com/MarMar-mg/school-managment-system-sub000/tests"
)

const period = "1403-07"

func Test_scoreApi_andStats(t *testing.T) {
	e := setup(t)
	p := e.seed(t)
	math := testutil.CreateCourse(t, e.courses, "Math", &p.class.ID, &p.teacher.ID)
	physics := testutil.CreateCourse(t, e.courses, "Physics", &p.class.ID, &p.teacher.ID)
	other := testutil.CreateCourse(t, e.courses, "History", &p.class.ID, nil)
	sara := testutil.CreateStudent(t, e.students, "Sara Ahmadi", "1002", &p.class.ID, "")

	record := func(studentID, courseID int, v float64) score.Score {
		t.Helper()
		rec := e.do(t, http.MethodPost, "/v1/scores", p.teacherToken, score.NewScore{StudentID: studentID, CourseID: courseID, Value: core.FloatPtr(v), Period: period})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var s score.Score
		decode(t, rec, &s)
		return s
	}
	record(p.student.ID, math.ID, 17)
	first := record(p.student.ID, math.ID, 18) // same key: replaced
	record(p.student.ID, physics.ID, 10)
	record(sara.ID, math.ID, 13)
	assert.Equal(t, 18.0, first.Value)
	assert.Equal(t, period, first.Period)
	assert.Equal(t, 3, e.db.Count("scores"))

	runHTTPTests(t, e, []httpTest{
		{
			name: "record: above 20", method: http.MethodPost, path: "/v1/scores", token: p.teacherToken,
			body: score.NewScore{StudentID: p.student.ID, CourseID: math.ID, Value: core.FloatPtr(21)}, wantCode: http.StatusBadRequest,
		},
		{
			name: "record: value required", method: http.MethodPost, path: "/v1/scores", token: p.teacherToken,
			body:     map[string]int{"student_id": p.student.ID, "course_id": math.ID},
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"value": "this field is required"}),
		},
		{
			name: "record: bad period", method: http.MethodPost, path: "/v1/scores", token: p.teacherToken,
			body: score.NewScore{StudentID: p.student.ID, CourseID: math.ID, Value: core.FloatPtr(12), Period: "1403-13"}, wantCode: http.StatusBadRequest,
		},
		{
			name: "record: not their course", method: http.MethodPost, path: "/v1/scores", token: p.teacherToken,
			body: score.NewScore{StudentID: p.student.ID, CourseID: other.ID, Value: core.FloatPtr(12)}, wantCode: http.StatusForbidden,
		},
		{
			name: "record: students cannot", method: http.MethodPost, path: "/v1/scores", token: p.studentToken,
			body: score.NewScore{StudentID: p.student.ID, CourseID: math.ID, Value: core.FloatPtr(20)}, wantCode: http.StatusForbidden,
		},
		{name: "overview: admin only", path: "/v1/stats/overview", token: p.teacherToken, wantCode: http.StatusForbidden},
		{name: "class stats: not students", path: fmt.Sprintf("/v1/stats/classes/%d", p.class.ID), token: p.studentToken, wantCode: http.StatusForbidden},
		{name: "class stats: unknown", path: "/v1/stats/classes/999", token: p.adminToken, wantCode: http.StatusNotFound},
		{name: "report: someone else", path: fmt.Sprintf("/v1/stats/students/%d", sara.ID), token: p.studentToken, wantCode: http.StatusForbidden},
		{name: "export: class required", path: "/v1/scores/export", token: p.teacherToken, wantCode: http.StatusBadRequest},
		{name: "export: bad period", path: fmt.Sprintf("/v1/scores/export?class_id=%d&period=lol", p.class.ID), token: p.teacherToken, wantCode: http.StatusBadRequest},
	})

	// students only see their own scores
	rec := e.do(t, http.MethodGet, "/v1/scores", p.studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mine []score.Score
	decode(t, rec, &mine)
	require.Len(t, mine, 2)
	for _, s := range mine {
		assert.Equal(t, p.student.ID, s.StudentID)
	}

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/v1/stats/classes/%d", p.class.ID), p.teacherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cs stats.ClassStatistics
	decode(t, rec, &cs)
	assert.Equal(t, 2, cs.StudentCount)
	assert.Equal(t, 3, cs.ScoreCount)
	assert.Equal(t, 13.7, cs.Average)
	assert.Equal(t, 67, cs.PassRate)
	require.Len(t, cs.Histogram, 5)
	assert.Equal(t, stats.Bucket18To20, cs.Histogram[0].Label)
	assert.Equal(t, 1, cs.Histogram[0].Count)
	require.NotEmpty(t, cs.TopPerformers)
	assert.Equal(t, "Ali Rahimi", cs.TopPerformers[0].Name)

	rec = e.do(t, http.MethodGet, fmt.Sprintf("/v1/stats/students/%d", p.student.ID), p.studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report stats.StudentReport
	decode(t, rec, &report)
	assert.Equal(t, 14.0, report.Average)
	assert.Equal(t, 50, report.PassRate)
	assert.Len(t, report.Latest, 2)

	rec = e.do(t, http.MethodGet, "/v1/stats/overview", p.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var overview stats.Overview
	decode(t, rec, &overview)
	assert.Equal(t, 2, overview.StudentCount)
	assert.Equal(t, 1, overview.TeacherCount)
	assert.Equal(t, 3, overview.CourseCount)
	assert.Equal(t, 3, overview.ScoreCount)

	// export
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/v1/scores/export?class_id=%d&period=%s", p.class.ID, period), p.teacherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, excel.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), fmt.Sprintf("scores-class-%d.xlsx", p.class.ID))

	book, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer book.Close()
	rows, err := book.GetRows(book.GetSheetList()[0])
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"code", "name", "History", "Math", "Physics", "average"}, rows[0])
	assert.Equal(t, []string{"1001", "Ali Rahimi"}, rows[1][:2])
	assert.Equal(t, []string{"1002", "Sara Ahmadi"}, rows[2][:2])

	// deleting
	runHTTPTests(t, e, []httpTest{
		{name: "delete: students cannot", method: http.MethodDelete, path: fmt.Sprintf("/v1/scores/%d", first.ID), token: p.studentToken, wantCode: http.StatusForbidden},
		{name: "delete", method: http.MethodDelete, path: fmt.Sprintf("/v1/scores/%d", first.ID), token: p.teacherToken, wantCode: http.StatusNoContent},
		{name: "delete: gone", method: http.MethodDelete, path: fmt.Sprintf("/v1/scores/%d", first.ID), token: p.teacherToken, wantCode: http.StatusNotFound},
	})
	assert.Equal(t, 2, e.db.Count("scores"))
}
