package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/score"
	inmemdb "github.com/MarMar-mg/school-managment-system-sub000/storage/database/inmem"
	testutil "github.com/MarMar-mg/school-managment-system-sub000/tests"
)

type fixture struct {
	svc    Service
	deps   Deps
	clsA   int
	clsB   int
	math   int
	phys   int
	ali    int
	sara   int
	reza   int
	scored time.Time
}

func setup(t *testing.T) fixture {
	t.Helper()
	db := inmemdb.Open()
	deps := Deps{
		Conf:     core.NewTestConfig(),
		Scores:   inmemdb.NewScoreRepository(db),
		Classes:  inmemdb.NewClassRepository(db),
		Courses:  inmemdb.NewCourseRepository(db),
		Students: inmemdb.NewStudentRepository(db),
		Teachers: inmemdb.NewTeacherRepository(db),
	}
	f := fixture{svc: NewService(deps), deps: deps, scored: time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)}

	f.clsA = testutil.CreateClass(t, deps.Classes, "10-A").ID
	f.clsB = testutil.CreateClass(t, deps.Classes, "10-B").ID
	f.math = testutil.CreateCourse(t, deps.Courses, "Math", &f.clsA, nil).ID
	f.phys = testutil.CreateCourse(t, deps.Courses, "Physics", &f.clsA, nil).ID
	f.ali = testutil.CreateStudent(t, deps.Students, "Ali", "s1", &f.clsA, "").ID
	f.sara = testutil.CreateStudent(t, deps.Students, "Sara", "s2", &f.clsA, "").ID
	f.reza = testutil.CreateStudent(t, deps.Students, "Reza", "s3", &f.clsB, "").ID
	return f
}

func (f *fixture) score(t *testing.T, student, course, class int, v float64, period string) {
	t.Helper()
	f.scored = f.scored.Add(time.Minute)
	_, err := f.deps.Scores.UpsertScore(context.Background(), score.Score{
		StudentID: student,
		CourseID:  course,
		ClassID:   core.IntPtr(class),
		Value:     v,
		Period:    period,
		CreatedAt: f.scored,
		UpdatedAt: f.scored,
	})
	require.NoError(t, err)
}

func TestService_ClassStatistics(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	empty, err := f.svc.ClassStatistics(ctx, f.clsA)
	require.NoError(t, err)
	assert.Equal(t, 2, empty.StudentCount)
	assert.Equal(t, 0, empty.ScoreCount)
	assert.Equal(t, float64(0), empty.Average)
	assert.Equal(t, 0, empty.PassRate)
	assert.Equal(t, []Performer{}, empty.TopPerformers)
	assert.Equal(t, []Subject{}, empty.Subjects)

	f.score(t, f.ali, f.math, f.clsA, 20, "1403-07")
	f.score(t, f.sara, f.math, f.clsA, 15, "1403-07")
	f.score(t, f.ali, f.phys, f.clsA, 13, "1403-07")
	f.score(t, f.sara, f.phys, f.clsA, 8, "1403-07")
	f.score(t, f.reza, f.math, f.clsB, 19, "1403-07")

	st, err := f.svc.ClassStatistics(ctx, f.clsA)
	require.NoError(t, err)
	assert.Equal(t, 4, st.ScoreCount)
	assert.Equal(t, 14.0, st.Average)
	assert.Equal(t, 75, st.PassRate)
	assert.Equal(t, []int{1, 0, 1, 1, 1}, counts(st.Histogram))
	require.Len(t, st.TopPerformers, 2)
	assert.Equal(t, "Ali", st.TopPerformers[0].Name)
	assert.Equal(t, 16.5, st.TopPerformers[0].Average)
	assert.Equal(t, []Subject{
		{Name: "Math", Average: 17.5, Count: 2},
		{Name: "Physics", Average: 10.5, Count: 2},
	}, st.Subjects)

	_, err = f.svc.ClassStatistics(ctx, 999)
	assert.True(t, core.IsNotFound(err))
}

func TestService_OverviewAndComparison(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.score(t, f.ali, f.math, f.clsA, 10, "1403-07")
	f.score(t, f.reza, f.math, f.clsB, 18, "1403-07")

	ov, err := f.svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ov.StudentCount)
	assert.Equal(t, 2, ov.ClassCount)
	assert.Equal(t, 2, ov.CourseCount)
	assert.Equal(t, 2, ov.ScoreCount)
	assert.Equal(t, 14.0, ov.Average)
	assert.Equal(t, 50, ov.PassRate)

	cmp, err := f.svc.ClassComparison(ctx)
	require.NoError(t, err)
	require.Len(t, cmp, 2)
	assert.Equal(t, f.clsB, cmp[0].ClassID)
	assert.Equal(t, 18.0, cmp[0].Average)
	assert.Equal(t, 1, cmp[0].StudentCount)
	assert.Equal(t, f.clsA, cmp[1].ClassID)
	assert.Equal(t, 2, cmp[1].StudentCount)
}

func TestService_StudentReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.score(t, f.ali, f.math, f.clsA, 20, "1403-06")
	f.score(t, f.ali, f.math, f.clsA, 14, "1403-07")
	f.score(t, f.ali, f.phys, f.clsA, 11, "1403-07")

	ali, err := f.deps.Students.GetStudent(ctx, f.ali)
	require.NoError(t, err)
	sara, err := f.deps.Students.GetStudent(ctx, f.sara)
	require.NoError(t, err)

	rep, err := f.svc.StudentReport(ctx, access.StudentActor{Student: ali}, f.ali)
	require.NoError(t, err)
	assert.Equal(t, 15.0, rep.Average)
	assert.Equal(t, 67, rep.PassRate)
	require.Len(t, rep.Latest, 3)
	assert.Equal(t, 11.0, rep.Latest[0].Value)

	_, err = f.svc.StudentReport(ctx, access.StudentActor{Student: sara}, f.ali)
	assert.IsType(t, &core.AuthorizationError{}, err)

	_, err = f.svc.StudentReport(ctx, access.AdminActor{}, f.ali)
	assert.NoError(t, err)
}

func TestService_ClassSheet(t *testing.T) {
	f := setup(t)

	f.score(t, f.ali, f.math, f.clsA, 20, "1403-07")
	f.score(t, f.ali, f.phys, f.clsA, 15, "1403-07")
	f.score(t, f.sara, f.math, f.clsA, 12, "1403-06")

	sheet, err := f.svc.ClassSheet(context.Background(), f.clsA, "1403-07")
	require.NoError(t, err)
	assert.Equal(t, "10-A", sheet.Name)
	assert.Equal(t, []string{"code", "name", "Math", "Physics", "average"}, sheet.Header)
	assert.Equal(t, [][]interface{}{
		{"s1", "Ali", 20.0, 15.0, 17.5},
		{"s2", "Sara", "", "", 0.0},
	}, sheet.Rows)
}
