// Package access resolves the authenticated user into the role-specific actor
// the workflows authorize against.
package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
)

var (
	ErrNoActor          = errors.New("no actor in context")
	errProfileNotLinked = core.NewAuthorizationError("your account is not linked to a school profile")
)

// Actor is one of StudentActor, TeacherActor or AdminActor.
type Actor interface {
	User() user.User
	actor()
}

type StudentActor struct {
	Usr     user.User
	Student school.Student
}

type TeacherActor struct {
	Usr     user.User
	Teacher school.Teacher
}

// AdminActor covers admins and managers.
type AdminActor struct {
	Usr user.User
}

func (a StudentActor) User() user.User { return a.Usr }
func (a TeacherActor) User() user.User { return a.Usr }
func (a AdminActor) User() user.User   { return a.Usr }

func (StudentActor) actor() {}
func (TeacherActor) actor() {}
func (AdminActor) actor()   {}

type Resolver interface {
	Resolve(ctx context.Context, usr user.User) (Actor, error)
}

type resolver struct {
	students school.StudentRepository
	teachers school.TeacherRepository
}

func NewResolver(students school.StudentRepository, teachers school.TeacherRepository) Resolver {
	return &resolver{students: students, teachers: teachers}
}

// Resolve loads the profile matching usr's role. Users whose profile is missing get an AuthorizationError.
func (r *resolver) Resolve(ctx context.Context, usr user.User) (Actor, error) {
	switch usr.Role {
	case user.RoleAdmin, user.RoleManager:
		return AdminActor{Usr: usr}, nil
	case user.RoleTeacher:
		t, err := r.teachers.GetTeacherByUserID(ctx, usr.ID)
		if err != nil {
			if errors.Cause(err) == school.ErrTeacherNotFound {
				return nil, errProfileNotLinked
			}
			return nil, err
		}
		return TeacherActor{Usr: usr, Teacher: t}, nil
	case user.RoleStudent:
		st, err := r.students.GetStudentByUserID(ctx, usr.ID)
		if err != nil {
			if errors.Cause(err) == school.ErrStudentNotFound {
				return nil, errProfileNotLinked
			}
			return nil, err
		}
		return StudentActor{Usr: usr, Student: st}, nil
	}
	return nil, core.NewAuthorizationError("unknown role " + usr.Role)
}

type ctxKey struct{}

func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func FromContext(ctx context.Context) (Actor, error) {
	a, ok := ctx.Value(ctxKey{}).(Actor)
	if !ok {
		return nil, ErrNoActor
	}
	return a, nil
}

// CanTeach reports whether a may grade and manage assignments of course.
func CanTeach(a Actor, course school.Course) bool {
	switch a := a.(type) {
	case AdminActor:
		return true
	case TeacherActor:
		return course.TeacherID != nil && *course.TeacherID == a.Teacher.ID
	}
	return false
}
