package grading

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/assessment"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
	emailsvc "github.com/MarMar-mg/school-managment-system-sub000/services/email"
	inmemdb "github.com/MarMar-mg/school-managment-system-sub000/storage/database/inmem"
	testutil "github.com/MarMar-mg/school-managment-system-sub000/tests"
)

type fixture struct {
	db       *inmemdb.DB
	svc      Service
	subs     assessment.Repository
	teacher  access.Actor
	stranger access.Actor
	student  access.Actor
	exam     assessment.Assignment
	linked   school.Student // has a user account
	unlinked school.Student
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)
	courses := inmemdb.NewCourseRepository(db)
	students := inmemdb.NewStudentRepository(db)
	teachers := inmemdb.NewTeacherRepository(db)
	subs := inmemdb.NewAssessmentRepository(db)
	mail := emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})

	f := fixture{db: db, subs: subs}
	f.svc = NewService(Deps{
		Tx:          inmemdb.NewTransactor(db),
		Assignments: subs,
		Courses:     courses,
		Students:    students,
		Dispatcher:  notification.NewDispatcher(conf, inmemdb.NewNotificationRepository(db), users, mail, testutil.NopLogger{}, nil),
	})

	cls := testutil.CreateClass(t, inmemdb.NewClassRepository(db), "10-A")
	tchUsr := testutil.CreateUser(t, users, "Reza Karimi", "rkarimi", "reza@school.test", "", user.RoleTeacher, true)
	tch := testutil.CreateTeacher(t, teachers, "Reza Karimi", tchUsr.ID)
	other := testutil.CreateTeacher(t, teachers, "Mina Sadeghi", "")
	crs := testutil.CreateCourse(t, courses, "Math", &cls.ID, &tch.ID)

	stdUsr := testutil.CreateUser(t, users, "Ali Rahimi", "arahimi", "ali@school.test", "", user.RoleStudent, true)
	f.linked = testutil.CreateStudent(t, students, "Ali Rahimi", "s1", &cls.ID, stdUsr.ID)
	f.unlinked = testutil.CreateStudent(t, students, "Sara Ahmadi", "s2", &cls.ID, "")

	f.teacher = access.TeacherActor{Usr: tchUsr, Teacher: tch}
	f.stranger = access.TeacherActor{Teacher: other}
	f.student = access.StudentActor{Usr: stdUsr, Student: f.linked}

	start := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
	exam, err := subs.CreateAssignment(context.Background(), assessment.Assignment{
		Kind:     assessment.KindExam,
		Title:    "Midterm",
		CourseID: crs.ID,
		ClassID:  &cls.ID,
		StartAt:  start,
		EndAt:    start.Add(2 * time.Hour),
		MaxScore: core.FloatPtr(20),
	})
	require.NoError(t, err)
	f.exam = exam
	return f
}

func (f fixture) input(studentID int, v float64) ScoreInput {
	return ScoreInput{Kind: assessment.KindExam, AssignmentID: f.exam.ID, StudentID: studentID, Value: core.FloatPtr(v)}
}

func TestService_SubmitScore(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	sub, err := f.svc.SubmitScore(ctx, f.teacher, f.input(f.linked.ID, 15))
	require.NoError(t, err)
	assert.Equal(t, 15.0, *sub.Score)
	assert.Equal(t, assessment.TeacherAssignedDescription, sub.Description)
	assert.Nil(t, sub.SubmittedAt)

	// a second score updates the same row
	sub2, err := f.svc.SubmitScore(ctx, f.teacher, f.input(f.linked.ID, 18.5))
	require.NoError(t, err)
	assert.Equal(t, sub.ID, sub2.ID)
	assert.Equal(t, 18.5, *sub2.Score)
	assert.Equal(t, sub.Version+1, sub2.Version)
	assert.Equal(t, 1, f.db.Count("exam_submissions"))

	notes := f.db.Notifications()
	require.Len(t, notes, 2)
	for _, n := range notes {
		assert.Equal(t, f.linked.UserID, n.UserID)
		assert.Equal(t, notification.TypeGrade, n.Type)
		assert.Equal(t, f.exam.ID, *n.RelatedID)
		assert.Equal(t, notification.RelatedExam, *n.RelatedType)
	}
	assert.Contains(t, notes[1].Body, "18.5")

	// students without an account are graded silently
	_, err = f.svc.SubmitScore(ctx, f.teacher, f.input(f.unlinked.ID, 12))
	require.NoError(t, err)
	assert.Len(t, f.db.Notifications(), 2)
}

func TestService_SubmitScore_rejects(t *testing.T) {
	f := setup(t)

	tests := []struct {
		name    string
		actor   access.Actor
		in      ScoreInput
		wantErr interface{}
	}{
		{name: "negative", actor: f.teacher, in: f.input(f.linked.ID, -1), wantErr: &core.ValidationError{}},
		{name: "above max", actor: f.teacher, in: f.input(f.linked.ID, 20.5), wantErr: &core.ValidationError{}},
		{name: "student", actor: f.student, in: f.input(f.linked.ID, 20), wantErr: &core.AuthorizationError{}},
		{name: "other teacher", actor: f.stranger, in: f.input(f.linked.ID, 20), wantErr: &core.AuthorizationError{}},
		{name: "unknown student", actor: f.teacher, in: f.input(999, 10), wantErr: &core.NotFoundError{}},
		{name: "missing score", actor: f.teacher, in: ScoreInput{Kind: assessment.KindExam, AssignmentID: f.exam.ID, StudentID: f.linked.ID}, wantErr: &core.ValidationError{}},
		{name: "unknown exam", actor: access.AdminActor{}, in: ScoreInput{Kind: assessment.KindExam, AssignmentID: 999, StudentID: f.linked.ID, Value: core.FloatPtr(10)}, wantErr: &core.NotFoundError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SubmitScore(context.Background(), tt.actor, tt.in)
			require.Error(t, err)
			assert.IsType(t, tt.wantErr, errors.Cause(err))
			assert.Equal(t, 0, f.db.Count("exam_submissions"))
			assert.Empty(t, f.db.Notifications())
		})
	}
}

func TestService_SubmitScore_zero(t *testing.T) {
	f := setup(t)

	sub, err := f.svc.SubmitScore(context.Background(), f.teacher, f.input(f.linked.ID, 0))
	require.NoError(t, err)
	require.NotNil(t, sub.Score)
	assert.Equal(t, 0.0, *sub.Score)
}

// createExercise stores an exercise of the exam's course without a maximum score.
func (f fixture) createExercise(t *testing.T) assessment.Assignment {
	t.Helper()
	ex, err := f.subs.CreateAssignment(context.Background(), assessment.Assignment{
		Kind:     assessment.KindExercise,
		Title:    "Homework 1",
		CourseID: f.exam.CourseID,
		ClassID:  f.exam.ClassID,
		StartAt:  f.exam.StartAt,
		EndAt:    f.exam.EndAt.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Nil(t, ex.MaxScore)
	return ex
}

func TestService_unboundedExercise(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ex := f.createExercise(t)
	input := func(v float64) ScoreInput {
		return ScoreInput{Kind: assessment.KindExercise, AssignmentID: ex.ID, StudentID: f.linked.ID, Value: core.FloatPtr(v)}
	}

	sub, err := f.svc.SubmitScore(ctx, f.teacher, input(35))
	require.NoError(t, err)
	assert.Equal(t, 35.0, *sub.Score)

	_, err = f.svc.SubmitScore(ctx, f.teacher, input(-1))
	assert.IsType(t, &core.ValidationError{}, errors.Cause(err))

	updated, err := f.svc.BatchSubmitScores(ctx, f.teacher, assessment.KindExercise, ex.ID, []ScoreUpdate{
		{SubmissionID: sub.ID, Value: core.FloatPtr(120)},
	})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, 120.0, *updated[0].Score)

	_, err = f.svc.BatchSubmitScores(ctx, f.teacher, assessment.KindExercise, ex.ID, []ScoreUpdate{
		{SubmissionID: sub.ID, Value: core.FloatPtr(-2)},
	})
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, []core.FieldError{{Field: "scores[0]", Error: "score cannot be negative"}}, vErr.Fields)

	got, err := f.subs.GetSubmission(ctx, assessment.KindExercise, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 120.0, *got.Score)
	assert.Zero(t, f.db.Count("exam_submissions"))
}

func TestService_SubmitScore_rollsBackOnNotificationFailure(t *testing.T) {
	f := setup(t)
	f.db.FailOn["CreateNotifications"] = errors.New("disk full")

	_, err := f.svc.SubmitScore(context.Background(), f.teacher, f.input(f.linked.ID, 15))
	require.Error(t, err)
	assert.Equal(t, 0, f.db.Count("exam_submissions"))
}

func (f fixture) seedSubmissions(t *testing.T) (assessment.Submission, assessment.Submission) {
	t.Helper()
	ctx := context.Background()
	a, err := f.svc.SubmitScore(ctx, access.AdminActor{}, f.input(f.linked.ID, 10))
	require.NoError(t, err)
	b, err := f.svc.SubmitScore(ctx, access.AdminActor{}, f.input(f.unlinked.ID, 11))
	require.NoError(t, err)
	return a, b
}

func TestService_BatchSubmitScores(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, b := f.seedSubmissions(t)
	notesBefore := len(f.db.Notifications())

	updated, err := f.svc.BatchSubmitScores(ctx, f.teacher, assessment.KindExam, f.exam.ID, []ScoreUpdate{
		{SubmissionID: a.ID, Value: core.FloatPtr(17), Version: core.IntPtr(a.Version)},
		{SubmissionID: b.ID, Value: core.FloatPtr(19)},
		{SubmissionID: 999, Value: core.FloatPtr(12)},
	})
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, 17.0, *updated[0].Score)
	assert.Equal(t, 19.0, *updated[1].Score)
	// only the linked student is notified
	assert.Len(t, f.db.Notifications(), notesBefore+1)
}

func TestService_BatchSubmitScores_allOrNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a, b := f.seedSubmissions(t)
	notesBefore := len(f.db.Notifications())

	check := func(t *testing.T) {
		t.Helper()
		for _, want := range []assessment.Submission{a, b} {
			got, err := f.subs.GetSubmission(ctx, assessment.KindExam, want.ID)
			require.NoError(t, err)
			assert.Equal(t, *want.Score, *got.Score)
			assert.Equal(t, want.Version, got.Version)
		}
		assert.Len(t, f.db.Notifications(), notesBefore)
	}

	t.Run("invalid value", func(t *testing.T) {
		_, err := f.svc.BatchSubmitScores(ctx, f.teacher, assessment.KindExam, f.exam.ID, []ScoreUpdate{
			{SubmissionID: a.ID, Value: core.FloatPtr(15)},
			{SubmissionID: b.ID, Value: core.FloatPtr(25)},
		})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		require.Len(t, vErr.Fields, 1)
		assert.Equal(t, "scores[1]", vErr.Fields[0].Field)
		check(t)
	})

	t.Run("missing value", func(t *testing.T) {
		_, err := f.svc.BatchSubmitScores(ctx, f.teacher, assessment.KindExam, f.exam.ID, []ScoreUpdate{
			{SubmissionID: a.ID, Value: core.FloatPtr(15)},
			{SubmissionID: b.ID},
		})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, []core.FieldError{{Field: "scores[1]", Error: "this field is required"}}, vErr.Fields)
		check(t)
	})

	t.Run("repeated submission", func(t *testing.T) {
		_, err := f.svc.BatchSubmitScores(ctx, f.teacher, assessment.KindExam, f.exam.ID, []ScoreUpdate{
			{SubmissionID: a.ID, Value: core.FloatPtr(12)},
			{SubmissionID: b.ID, Value: core.FloatPtr(13)},
			{SubmissionID: a.ID, Value: core.FloatPtr(14)},
		})
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, []core.FieldError{{Field: "scores[2]", Error: "duplicate of scores[0]"}}, vErr.Fields)
		check(t)
	})

	t.Run("stale version", func(t *testing.T) {
		_, err := f.svc.BatchSubmitScores(ctx, f.teacher, assessment.KindExam, f.exam.ID, []ScoreUpdate{
			{SubmissionID: a.ID, Value: core.FloatPtr(15)},
			{SubmissionID: b.ID, Value: core.FloatPtr(16), Version: core.IntPtr(b.Version - 1)},
		})
		assert.True(t, core.IsConflict(err))
		check(t)
	})

	t.Run("storage failure", func(t *testing.T) {
		f.db.FailOn["UpdateSubmission"] = errors.New("disk full")
		defer delete(f.db.FailOn, "UpdateSubmission")

		_, err := f.svc.BatchSubmitScores(ctx, f.teacher, assessment.KindExam, f.exam.ID, []ScoreUpdate{
			{SubmissionID: a.ID, Value: core.FloatPtr(15)},
		})
		assert.Error(t, err)
		check(t)
	})

	t.Run("not your course", func(t *testing.T) {
		_, err := f.svc.BatchSubmitScores(ctx, f.stranger, assessment.KindExam, f.exam.ID, []ScoreUpdate{
			{SubmissionID: a.ID, Value: core.FloatPtr(15)},
		})
		assert.IsType(t, &core.AuthorizationError{}, err)
		check(t)
	})
}
