package assessment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/calendar"
	"github.com/MarMar-mg/school-managment-system-sub000/core/school"
)

type Kind string

const (
	KindExam     Kind = "exam"
	KindExercise Kind = "exercise"
)

// Assignment statuses relative to now
const (
	StatusUpcoming = "upcoming"
	StatusActive   = "active"
	StatusPassed   = "passed"
)

const TeacherAssignedDescription = "score assigned by teacher without a student answer"

var (
	ErrInvalidKind       = errors.New("assignment kind must be exam or exercise")
	errEndBeforeStart    = errors.New("end must be after start")
	errMaxScoreRequired  = errors.New("exams require a possible score")
	errPartialWindow     = errors.New("start and end date and time must be given together")
	errWindowNotOpen     = errors.New("submission window is not open yet")
	errWindowClosed      = errors.New("submission window is closed")
	errNotInClass        = core.NewAuthorizationError("this assignment is not for your class")
	errNotYourCourse     = core.NewAuthorizationError("you do not teach this course")
	errStudentsForbidden = core.NewAuthorizationError("students may not manage assignments")
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindExam, KindExercise:
		return k, nil
	}
	return "", ErrInvalidKind
}

type Assignment struct {
	ID          int       `json:"id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CourseID    int       `json:"course_id"`
	ClassID     *int      `json:"class_id"`
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	MaxScore    *float64  `json:"max_score"`
	Attachment  string    `json:"attachment,omitempty"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

func (a Assignment) Window() calendar.Window {
	return calendar.Window{Start: a.StartAt, End: a.EndAt}
}

func (a Assignment) Status(now time.Time) string {
	w := a.Window()
	switch {
	case w.Upcoming(now):
		return StatusUpcoming
	case w.Passed(now):
		return StatusPassed
	}
	return StatusActive
}

// Submission is the answer and/or score of one student for one assignment.
// A nil SubmittedAt means the student has not submitted an answer.
type Submission struct {
	ID           int        `json:"id"`
	AssignmentID int        `json:"assignment_id"`
	StudentID    int        `json:"student_id"`
	Score        *float64   `json:"score"`
	AnswerFile   *string    `json:"answer_file"`
	Description  string     `json:"description"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// SubmissionView is one row of an assignment's roster. Submission is nil until the student submits or is graded.
type SubmissionView struct {
	Student    school.Student `json:"student"`
	Submission *Submission    `json:"submission"`
}

type StudentAssignment struct {
	Assignment
	Status     string      `json:"status"`
	Submission *Submission `json:"submission"`
}

type NewAssignment struct {
	Title       string   `json:"title" validate:"required,notblank"`
	Description string   `json:"description"`
	CourseID    int      `json:"course_id" validate:"required"`
	StartDate   string   `json:"start_date" validate:"required,jalali_date"`
	StartTime   string   `json:"start_time" validate:"required,clock"`
	EndDate     string   `json:"end_date" validate:"required,jalali_date"`
	EndTime     string   `json:"end_time" validate:"required,clock"`
	MaxScore    *float64 `json:"max_score" validate:"omitempty,gte=0"`

	startAt time.Time
	endAt   time.Time
}

func (na *NewAssignment) Validate(kind Kind, validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if err := validate.Struct(na); err != nil {
		return err
	}
	if kind == KindExam && na.MaxScore == nil {
		return core.NewValidationError(errMaxScoreRequired, core.FieldError{Field: "max_score", Error: errMaxScoreRequired.Error()})
	}
	var err error
	if na.startAt, err = calendar.ParseDateTime(na.StartDate, na.StartTime); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "start_date", Error: err.Error()})
	}
	if na.endAt, err = calendar.ParseDateTime(na.EndDate, na.EndTime); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "end_date", Error: err.Error()})
	}
	if !na.endAt.After(na.startAt) {
		return core.NewValidationError(errEndBeforeStart, core.FieldError{Field: "end_date", Error: errEndBeforeStart.Error()})
	}
	return nil
}

// UpdateAssignment replaces the window only when all four date and time fields are given.
type UpdateAssignment struct {
	Title         *string  `json:"title" validate:"omitempty,notblank"`
	Description   *string  `json:"description"`
	StartDate     string   `json:"start_date" validate:"omitempty,jalali_date"`
	StartTime     string   `json:"start_time" validate:"omitempty,clock"`
	EndDate       string   `json:"end_date" validate:"omitempty,jalali_date"`
	EndTime       string   `json:"end_time" validate:"omitempty,clock"`
	MaxScore      *float64 `json:"max_score" validate:"omitempty,gte=0"`
	ClearMaxScore bool     `json:"clear_max_score"`

	startAt time.Time
	endAt   time.Time
}

func (ua *UpdateAssignment) Validate(kind Kind, validate *validator.Validate) error {
	if err := validate.Struct(ua); err != nil {
		return err
	}
	if kind == KindExam && ua.ClearMaxScore {
		return core.NewValidationError(errMaxScoreRequired, core.FieldError{Field: "max_score", Error: errMaxScoreRequired.Error()})
	}
	switch {
	case ua.StartDate == "" && ua.StartTime == "" && ua.EndDate == "" && ua.EndTime == "":
		return nil
	case ua.StartDate == "" || ua.StartTime == "" || ua.EndDate == "" || ua.EndTime == "":
		return core.NewValidationError(errPartialWindow, core.FieldError{Field: "start_date", Error: errPartialWindow.Error()})
	}
	var err error
	if ua.startAt, err = calendar.ParseDateTime(ua.StartDate, ua.StartTime); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "start_date", Error: err.Error()})
	}
	if ua.endAt, err = calendar.ParseDateTime(ua.EndDate, ua.EndTime); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "end_date", Error: err.Error()})
	}
	if !ua.endAt.After(ua.startAt) {
		return core.NewValidationError(errEndBeforeStart, core.FieldError{Field: "end_date", Error: errEndBeforeStart.Error()})
	}
	return nil
}

type Filter struct {
	CourseID  *int
	ClassID   *int
	CourseIDs []int
}

type SubmissionFilter struct {
	AssignmentID *int
	StudentID    *int
	IDs          []int
}
