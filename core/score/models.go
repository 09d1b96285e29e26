package score

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

// Score is one course grade of a student for a Jalali month ("1403-07").
type Score struct {
	ID        int       `json:"id"`
	StudentID int       `json:"student_id"`
	CourseID  int       `json:"course_id"`
	ClassID   *int      `json:"class_id"`
	Value     float64   `json:"value"`
	Period    string    `json:"period"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewScore struct {
	StudentID int      `json:"student_id" validate:"required"`
	CourseID  int      `json:"course_id" validate:"required"`
	Value     *float64 `json:"value" validate:"required,gte=0,lte=20"`
	Period    string   `json:"period" validate:"omitempty,period"`
}

func (ns *NewScore) Validate(validate *validator.Validate) error {
	ns.Period = core.CleanString(ns.Period)
	return validate.Struct(ns)
}

type Filter struct {
	StudentID  *int
	CourseID   *int
	ClassID    *int
	StudentIDs []int
	Period     string
}
