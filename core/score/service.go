package score

import (
	"context"
	"time"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/calendar"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
)

var (
	ErrNotFound error = &core.NotFoundError{Entity: "score"}

	errNotYourCourse = core.NewAuthorizationError("you do not teach this course")
	errStudents      = core.NewAuthorizationError("students may not record scores")

	nowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	Repository interface {
		// UpsertScore updates the score with the same student, course and period, or creates it.
		UpsertScore(ctx context.Context, s Score) (Score, error)
		GetScore(ctx context.Context, id int) (Score, error)
		// QueryScores returns scores oldest first.
		QueryScores(ctx context.Context, filter Filter) ([]Score, error)
		DeleteScores(ctx context.Context, ids ...int) (int, error)
	}

	Service interface {
		Record(ctx context.Context, actor access.Actor, ns NewScore) (Score, error)
		Query(ctx context.Context, actor access.Actor, filter Filter) ([]Score, error)
		Delete(ctx context.Context, actor access.Actor, id int) error
	}

	Deps struct {
		Tx       core.Transactor
		Repo     Repository
		Courses  school.CourseRepository
		Students school.StudentRepository
		Metrics  core.Metrics
	}

	service struct {
		Deps
	}
)

var _ Service = (*service)(nil)

func NewService(deps Deps) Service {
	if deps.Metrics == nil {
		deps.Metrics = core.NopMetrics
	}
	return &service{Deps: deps}
}

func (svc *service) teachable(ctx context.Context, actor access.Actor, courseID int) (school.Course, error) {
	if _, ok := actor.(access.StudentActor); ok {
		return school.Course{}, errStudents
	}
	course, err := svc.Courses.GetCourse(ctx, courseID)
	if err != nil {
		return school.Course{}, err
	}
	if !access.CanTeach(actor, course) {
		return school.Course{}, errNotYourCourse
	}
	return course, nil
}

func (svc *service) Record(ctx context.Context, actor access.Actor, ns NewScore) (Score, error) {
	if ns.Value == nil {
		return Score{}, core.NewValidationError(nil, core.FieldError{Field: "value", Error: "this field is required"})
	}
	var s Score
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		course, err := svc.teachable(ctx, actor, ns.CourseID)
		if err != nil {
			return err
		}
		st, err := svc.Students.GetStudent(ctx, ns.StudentID)
		if err != nil {
			return err
		}
		now := nowFunc()
		period := ns.Period
		if period == "" {
			period = calendar.Period(now)
		} else if period, err = calendar.ParsePeriod(period); err != nil {
			return core.NewValidationError(err, core.FieldError{Field: "period", Error: err.Error()})
		}
		s, err = svc.Repo.UpsertScore(ctx, Score{
			StudentID: st.ID,
			CourseID:  course.ID,
			ClassID:   st.ClassID,
			Value:     *ns.Value,
			Period:    period,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return Score{}, err
	}
	svc.Metrics.ScoresSubmitted("score", 1)
	return s, nil
}

// Query limits students to their own scores and teachers to the courses they teach.
func (svc *service) Query(ctx context.Context, actor access.Actor, filter Filter) ([]Score, error) {
	switch actor := actor.(type) {
	case access.StudentActor:
		filter.StudentID = core.IntPtr(actor.Student.ID)
	case access.TeacherActor:
		if filter.CourseID == nil {
			return svc.teacherScores(ctx, actor, filter)
		}
		if _, err := svc.teachable(ctx, actor, *filter.CourseID); err != nil {
			return nil, err
		}
	}
	return svc.Repo.QueryScores(ctx, filter)
}

func (svc *service) teacherScores(ctx context.Context, actor access.TeacherActor, filter Filter) ([]Score, error) {
	courses, err := svc.Courses.QueryCourses(ctx, school.CourseFilter{TeacherID: core.IntPtr(actor.Teacher.ID)}, nil)
	if err != nil {
		return nil, err
	}
	res := []Score{}
	for _, c := range courses {
		filter.CourseID = core.IntPtr(c.ID)
		scores, err := svc.Repo.QueryScores(ctx, filter)
		if err != nil {
			return nil, err
		}
		res = append(res, scores...)
	}
	return res, nil
}

func (svc *service) Delete(ctx context.Context, actor access.Actor, id int) error {
	return svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		s, err := svc.Repo.GetScore(ctx, id)
		if err != nil {
			return err
		}
		if _, err = svc.teachable(ctx, actor, s.CourseID); err != nil {
			return err
		}
		_, err = svc.Repo.DeleteScores(ctx, id)
		return err
	})
}
