package roster

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
	emailsvc "github.com/MarMar-mg/school-managment-system-sub000/services/email"
	inmemdb "github.com/MarMar-mg/school-managment-system-sub000/storage/database/inmem"
	testutil "github.com/MarMar-mg/school-managment-system-sub000/tests"
)

type fixture struct {
	db      *inmemdb.DB
	svc     Service
	courses school.CourseRepository
	course  school.Course
	t1, t2  school.Teacher
	pupils  []string // user ids of the class students
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)
	courses := inmemdb.NewCourseRepository(db)
	students := inmemdb.NewStudentRepository(db)
	teachers := inmemdb.NewTeacherRepository(db)
	mail := emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})

	f := fixture{db: db, courses: courses}
	f.svc = NewService(Deps{
		Tx:         inmemdb.NewTransactor(db),
		Courses:    courses,
		Teachers:   teachers,
		Students:   students,
		Dispatcher: notification.NewDispatcher(conf, inmemdb.NewNotificationRepository(db), users, mail, testutil.NopLogger{}, nil),
	})

	cls := testutil.CreateClass(t, inmemdb.NewClassRepository(db), "10-A")
	f.course = testutil.CreateCourse(t, courses, "Math", &cls.ID, nil)

	u1 := testutil.CreateUser(t, users, "Reza Karimi", "rkarimi", "", "", user.RoleTeacher, true)
	u2 := testutil.CreateUser(t, users, "Mina Sadeghi", "msadeghi", "", "", user.RoleTeacher, true)
	f.t1 = testutil.CreateTeacher(t, teachers, "Reza Karimi", u1.ID)
	f.t2 = testutil.CreateTeacher(t, teachers, "Mina Sadeghi", u2.ID)

	for _, code := range []string{"s1", "s2"} {
		u := testutil.CreateUser(t, users, "Student "+code, "student"+code, "", "", user.RoleStudent, true)
		testutil.CreateStudent(t, students, "Student "+code, code, &cls.ID, u.ID)
		f.pupils = append(f.pupils, u.ID)
	}
	testutil.CreateStudent(t, students, "No Account", "s3", &cls.ID, "")
	return f
}

// recipients maps notification types to recipient user ids, skipping the first n notifications.
func (f fixture) recipients(n int) map[string][]string {
	got := make(map[string][]string)
	for _, note := range f.db.Notifications()[n:] {
		got[note.Type] = append(got[note.Type], note.UserID)
	}
	return got
}

func TestService_AssignTeacher(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	course, err := f.svc.AssignTeacher(ctx, f.course.ID, f.t1.ID)
	require.NoError(t, err)
	assert.Equal(t, f.t1.ID, *course.TeacherID)
	assert.Equal(t, f.course.Version+1, course.Version)
	assert.Equal(t, map[string][]string{
		notification.TypeCourseTeacherChanged:  f.pupils,
		notification.TypeTeacherCourseAssigned: {f.t1.UserID},
	}, f.recipients(0))

	t.Run("replace", func(t *testing.T) {
		seen := len(f.db.Notifications())
		course, err := f.svc.AssignTeacher(ctx, f.course.ID, f.t2.ID)
		require.NoError(t, err)
		assert.Equal(t, f.t2.ID, *course.TeacherID)
		assert.Equal(t, map[string][]string{
			notification.TypeCourseTeacherChanged:    f.pupils,
			notification.TypeTeacherCourseAssigned:   {f.t2.UserID},
			notification.TypeTeacherCourseUnassigned: {f.t1.UserID},
		}, f.recipients(seen))
	})

	t.Run("same teacher", func(t *testing.T) {
		seen := len(f.db.Notifications())
		course, err := f.svc.AssignTeacher(ctx, f.course.ID, f.t2.ID)
		require.NoError(t, err)
		assert.Equal(t, f.t2.ID, *course.TeacherID)
		assert.Equal(t, map[string][]string{
			notification.TypeCourseTeacherChanged:  f.pupils,
			notification.TypeTeacherCourseAssigned: {f.t2.UserID},
		}, f.recipients(seen))
	})
}

func TestService_AssignTeacher_classless(t *testing.T) {
	f := setup(t)
	course := testutil.CreateCourse(t, f.courses, "Art", nil, nil)

	_, err := f.svc.AssignTeacher(context.Background(), course.ID, f.t1.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		notification.TypeTeacherCourseAssigned: {f.t1.UserID},
	}, f.recipients(0))
}

func TestService_AssignTeacher_rejects(t *testing.T) {
	tests := []struct {
		name      string
		course    func(f fixture) int
		teacher   func(f fixture) int
		failOn    string
		wantFound bool
	}{
		{name: "unknown course", course: func(fixture) int { return 999 }, teacher: func(f fixture) int { return f.t1.ID }},
		{name: "unknown teacher", course: func(f fixture) int { return f.course.ID }, teacher: func(fixture) int { return 999 }},
		{name: "update fails", course: func(f fixture) int { return f.course.ID }, teacher: func(f fixture) int { return f.t1.ID }, failOn: "UpdateCourse", wantFound: true},
		{name: "notify fails", course: func(f fixture) int { return f.course.ID }, teacher: func(f fixture) int { return f.t1.ID }, failOn: "CreateNotifications", wantFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			if tt.failOn != "" {
				f.db.FailOn[tt.failOn] = errors.New("disk full")
			}
			_, err := f.svc.AssignTeacher(context.Background(), tt.course(f), tt.teacher(f))
			require.Error(t, err)
			assert.Equal(t, !tt.wantFound, core.IsNotFound(err))

			course, err := f.courses.GetCourse(context.Background(), f.course.ID)
			require.NoError(t, err)
			assert.Nil(t, course.TeacherID)
			assert.Equal(t, f.course.Version, course.Version)
			assert.Empty(t, f.db.Notifications())
		})
	}
}

func TestService_UnassignTeacher(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.AssignTeacher(ctx, f.course.ID, f.t1.ID)
	require.NoError(t, err)
	seen := len(f.db.Notifications())

	course, err := f.svc.UnassignTeacher(ctx, f.course.ID)
	require.NoError(t, err)
	assert.Nil(t, course.TeacherID)
	assert.Equal(t, map[string][]string{
		notification.TypeCourseTeacherRemoved:    f.pupils,
		notification.TypeTeacherCourseUnassigned: {f.t1.UserID},
	}, f.recipients(seen))

	t.Run("no teacher", func(t *testing.T) {
		seen := len(f.db.Notifications())
		again, err := f.svc.UnassignTeacher(ctx, f.course.ID)
		require.NoError(t, err)
		assert.Nil(t, again.TeacherID)
		assert.Equal(t, course.Version, again.Version)
		assert.Len(t, f.db.Notifications(), seen)
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := f.svc.UnassignTeacher(ctx, 999)
		assert.True(t, core.IsNotFound(err))
	})
}
