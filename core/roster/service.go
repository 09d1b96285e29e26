// Package roster assigns teachers to courses and tells the affected users.
package roster

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
)

type (
	Service interface {
		AssignTeacher(ctx context.Context, courseID, teacherID int) (school.Course, error)
		// UnassignTeacher clears the course teacher. A course without a teacher is left as is.
		UnassignTeacher(ctx context.Context, courseID int) (school.Course, error)
	}

	Deps struct {
		Tx         core.Transactor
		Courses    school.CourseRepository
		Teachers   school.TeacherRepository
		Students   school.StudentRepository
		Dispatcher notification.Dispatcher
	}

	service struct {
		Deps
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	return &service{Deps: deps}
}

func (svc *service) classUserIDs(ctx context.Context, classID *int) ([]string, error) {
	if classID == nil {
		return nil, nil
	}
	students, err := svc.Students.QueryStudents(ctx, school.StudentFilter{ClassID: classID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "loading class students")
	}
	ids := make([]string, 0, len(students))
	for _, st := range students {
		if st.UserID != "" {
			ids = append(ids, st.UserID)
		}
	}
	return ids, nil
}

// previousTeacher returns the teacher of course, if it still exists.
func (svc *service) previousTeacher(ctx context.Context, course school.Course) (*school.Teacher, error) {
	if course.TeacherID == nil {
		return nil, nil
	}
	t, err := svc.Teachers.GetTeacher(ctx, *course.TeacherID)
	if err != nil {
		if errors.Cause(err) == school.ErrTeacherNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func courseMessage(typ string, course school.Course, title, body string) notification.Message {
	return notification.Message{
		Title:       title,
		Body:        body,
		Type:        typ,
		RelatedID:   core.IntPtr(course.ID),
		RelatedType: notification.RelatedCourse,
	}
}

func (svc *service) AssignTeacher(ctx context.Context, courseID, teacherID int) (school.Course, error) {
	var (
		course school.Course
		notes  []notification.Notification
	)
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if course, err = svc.Courses.GetCourse(ctx, courseID); err != nil {
			return err
		}
		teacher, err := svc.Teachers.GetTeacher(ctx, teacherID)
		if err != nil {
			return err
		}
		prevID := course.TeacherID

		course.TeacherID = core.IntPtr(teacher.ID)
		if course, err = svc.Courses.UpdateCourse(ctx, course); err != nil {
			return err
		}

		notify := func(userIDs []string, msg notification.Message) error {
			created, err := svc.Dispatcher.NotifyMany(ctx, userIDs, msg)
			notes = append(notes, created...)
			return err
		}

		userIDs, err := svc.classUserIDs(ctx, course.ClassID)
		if err != nil {
			return err
		}
		if err = notify(userIDs, courseMessage(notification.TypeCourseTeacherChanged, course,
			"Course teacher changed",
			fmt.Sprintf("%s now teaches %s", teacher.Name, course.Name),
		)); err != nil {
			return err
		}

		if teacher.UserID != "" {
			if err = notify([]string{teacher.UserID}, courseMessage(notification.TypeTeacherCourseAssigned, course,
				"New course",
				fmt.Sprintf("You were assigned to teach %s", course.Name),
			)); err != nil {
				return err
			}
		}

		if prevID == nil || *prevID == teacher.ID {
			return nil
		}
		prev, err := svc.previousTeacher(ctx, school.Course{TeacherID: prevID})
		if err != nil || prev == nil || prev.UserID == "" {
			return err
		}
		return notify([]string{prev.UserID}, courseMessage(notification.TypeTeacherCourseUnassigned, course,
			"Course unassigned",
			fmt.Sprintf("You no longer teach %s", course.Name),
		))
	})
	if err != nil {
		return school.Course{}, err
	}
	svc.Dispatcher.Deliver(ctx, notes...)
	return course, nil
}

func (svc *service) UnassignTeacher(ctx context.Context, courseID int) (school.Course, error) {
	var (
		course school.Course
		notes  []notification.Notification
	)
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if course, err = svc.Courses.GetCourse(ctx, courseID); err != nil {
			return err
		}
		if course.TeacherID == nil {
			return nil
		}
		prev, err := svc.previousTeacher(ctx, course)
		if err != nil {
			return err
		}

		userIDs, err := svc.classUserIDs(ctx, course.ClassID)
		if err != nil {
			return err
		}
		created, err := svc.Dispatcher.NotifyMany(ctx, userIDs, courseMessage(notification.TypeCourseTeacherRemoved, course,
			"Course teacher removed",
			fmt.Sprintf("%s has no teacher for now", course.Name),
		))
		if err != nil {
			return err
		}
		notes = append(notes, created...)

		if prev != nil && prev.UserID != "" {
			note, err := svc.Dispatcher.Notify(ctx, prev.UserID, courseMessage(notification.TypeTeacherCourseUnassigned, course,
				"Course unassigned",
				fmt.Sprintf("You no longer teach %s", course.Name),
			))
			if err != nil {
				return err
			}
			notes = append(notes, note)
		}

		course.TeacherID = nil
		course, err = svc.Courses.UpdateCourse(ctx, course)
		return err
	})
	if err != nil {
		return school.Course{}, err
	}
	svc.Dispatcher.Deliver(ctx, notes...)
	return course, nil
}
