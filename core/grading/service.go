// Package grading records teacher-assigned scores on exam and exercise submissions.
package grading

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/access"
	"github.com/MarMar-mg/school-managment-system-sub000/core/assessment"
	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
)

var (
	errNegativeScore  = errors.New("score cannot be negative")
	errScoreRequired  = errors.New("this field is required")
	errNotYourCourse  = core.NewAuthorizationError("you do not teach this course")
	errStudentGrading = core.NewAuthorizationError("students may not grade")

	nowFunc = func() time.Time { return time.Now().UTC() }
)

type (
	ScoreInput struct {
		Kind         assessment.Kind `json:"-"`
		AssignmentID int             `json:"-"`
		StudentID    int             `json:"student_id" validate:"required"`
		Value        *float64        `json:"score" validate:"required"`
	}

	// ScoreUpdate sets the score of an existing submission.
	// A non-nil Version must match the stored submission version.
	ScoreUpdate struct {
		SubmissionID int      `json:"submission_id" validate:"required"`
		Value        *float64 `json:"score" validate:"required"`
		Version      *int     `json:"version"`
	}

	Service interface {
		// SubmitScore sets the score of the student's submission, creating it when absent,
		// and notifies the student.
		SubmitScore(ctx context.Context, actor access.Actor, in ScoreInput) (assessment.Submission, error)
		// BatchSubmitScores checks every value before writing any. A submission may appear once.
		// Unknown submissions are skipped.
		BatchSubmitScores(ctx context.Context, actor access.Actor, kind assessment.Kind, assignmentID int, updates []ScoreUpdate) ([]assessment.Submission, error)
	}

	Deps struct {
		Tx          core.Transactor
		Assignments assessment.Repository
		Courses     school.CourseRepository
		Students    school.StudentRepository
		Dispatcher  notification.Dispatcher
		Metrics     core.Metrics
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

// checkValue returns a non-empty message when v is missing or out of [0, max].
// A nil max has no upper bound.
func checkValue(v *float64, max *float64) string {
	switch {
	case v == nil:
		return errScoreRequired.Error()
	case *v < 0:
		return errNegativeScore.Error()
	case max != nil && *v > *max:
		return "score cannot exceed " + strconv.FormatFloat(*max, 'f', -1, 64)
	}
	return ""
}

func (svc *service) gradable(ctx context.Context, actor access.Actor, kind assessment.Kind, id int) (assessment.Assignment, error) {
	if _, ok := actor.(access.StudentActor); ok {
		return assessment.Assignment{}, errStudentGrading
	}
	a, err := svc.Assignments.GetAssignment(ctx, kind, id)
	if err != nil {
		return assessment.Assignment{}, err
	}
	course, err := svc.Courses.GetCourse(ctx, a.CourseID)
	if err != nil && !core.IsNotFound(err) {
		return assessment.Assignment{}, err
	}
	if !access.CanTeach(actor, course) {
		return assessment.Assignment{}, errNotYourCourse
	}
	return a, nil
}

func gradeMessage(a assessment.Assignment, v float64) notification.Message {
	return notification.Message{
		Title:       "New grade",
		Body:        fmt.Sprintf("You received %s for %q", strconv.FormatFloat(v, 'f', -1, 64), a.Title),
		Type:        notification.TypeGrade,
		RelatedID:   core.IntPtr(a.ID),
		RelatedType: string(a.Kind),
	}
}

func (svc *service) SubmitScore(ctx context.Context, actor access.Actor, in ScoreInput) (assessment.Submission, error) {
	if msg := checkValue(in.Value, nil); msg != "" {
		return assessment.Submission{}, core.NewValidationError(nil, core.FieldError{Field: "score", Error: msg})
	}

	var (
		sub   assessment.Submission
		notes []notification.Notification
	)
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := svc.gradable(ctx, actor, in.Kind, in.AssignmentID)
		if err != nil {
			return err
		}
		st, err := svc.Students.GetStudent(ctx, in.StudentID)
		if err != nil {
			return err
		}
		if msg := checkValue(in.Value, a.MaxScore); msg != "" {
			return core.NewValidationError(nil, core.FieldError{Field: "score", Error: msg})
		}

		now := nowFunc()
		v := *in.Value
		sub, err = svc.Assignments.GetStudentSubmission(ctx, in.Kind, a.ID, st.ID)
		switch {
		case err == nil:
			sub.Score = &v
			sub.UpdatedAt = now
			sub, err = svc.Assignments.UpdateSubmission(ctx, in.Kind, sub)
		case errors.Cause(err) == assessment.ErrSubmissionNotFound:
			sub, err = svc.Assignments.CreateSubmission(ctx, in.Kind, assessment.Submission{
				AssignmentID: a.ID,
				StudentID:    st.ID,
				Score:        &v,
				Description:  assessment.TeacherAssignedDescription,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		if err != nil {
			return err
		}

		// students without a user are not notified
		if st.UserID == "" {
			return nil
		}
		note, err := svc.Dispatcher.Notify(ctx, st.UserID, gradeMessage(a, v))
		if err != nil {
			return err
		}
		notes = append(notes, note)
		return nil
	})
	if err != nil {
		return assessment.Submission{}, err
	}
	svc.Metrics.ScoresSubmitted(string(in.Kind), 1)
	svc.Dispatcher.Deliver(ctx, notes...)
	return sub, nil
}

func (svc *service) BatchSubmitScores(ctx context.Context, actor access.Actor, kind assessment.Kind, assignmentID int, updates []ScoreUpdate) ([]assessment.Submission, error) {
	var (
		updated []assessment.Submission
		notes   []notification.Notification
	)
	err := svc.Tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := svc.gradable(ctx, actor, kind, assignmentID)
		if err != nil {
			return err
		}

		var fldErrs []core.FieldError
		first := make(map[int]int, len(updates))
		for i, upd := range updates {
			field := fmt.Sprintf("scores[%d]", i)
			if j, ok := first[upd.SubmissionID]; ok {
				fldErrs = append(fldErrs, core.FieldError{Field: field, Error: fmt.Sprintf("duplicate of scores[%d]", j)})
				continue
			}
			first[upd.SubmissionID] = i
			if msg := checkValue(upd.Value, a.MaxScore); msg != "" {
				fldErrs = append(fldErrs, core.FieldError{Field: field, Error: msg})
			}
		}
		if len(fldErrs) > 0 {
			return core.NewValidationError(errors.Errorf("%d invalid scores", len(fldErrs)), fldErrs...)
		}

		ids := make([]int, 0, len(updates))
		for _, upd := range updates {
			ids = append(ids, upd.SubmissionID)
		}
		subs, err := svc.Assignments.QuerySubmissions(ctx, kind, assessment.SubmissionFilter{
			AssignmentID: core.IntPtr(a.ID),
			IDs:          ids,
		})
		if err != nil {
			return err
		}
		byID := make(map[int]assessment.Submission, len(subs))
		for _, sub := range subs {
			byID[sub.ID] = sub
		}

		now := nowFunc()
		for _, upd := range updates {
			sub, ok := byID[upd.SubmissionID]
			if !ok {
				continue
			}
			if upd.Version != nil && *upd.Version != sub.Version {
				return core.NewConflictError("submission", sub.ID)
			}
			v := *upd.Value
			sub.Score = &v
			sub.UpdatedAt = now
			if sub, err = svc.Assignments.UpdateSubmission(ctx, kind, sub); err != nil {
				return err
			}
			byID[sub.ID] = sub
			updated = append(updated, sub)
		}
		if len(updated) == 0 {
			return nil
		}

		studentIDs := make([]int, 0, len(updated))
		for _, sub := range updated {
			studentIDs = append(studentIDs, sub.StudentID)
		}
		students, err := svc.Students.QueryStudents(ctx, school.StudentFilter{IDs: studentIDs}, nil)
		if err != nil {
			return err
		}
		userOf := make(map[int]string, len(students))
		for _, st := range students {
			userOf[st.ID] = st.UserID
		}
		for _, sub := range updated {
			userID := userOf[sub.StudentID]
			if userID == "" {
				continue
			}
			note, err := svc.Dispatcher.Notify(ctx, userID, gradeMessage(a, *sub.Score))
			if err != nil {
				return err
			}
			notes = append(notes, note)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.Metrics.ScoresSubmitted(string(kind), len(updated))
	svc.Dispatcher.Deliver(ctx, notes...)
	return updated, nil
}
