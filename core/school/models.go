package school

import (
	"github.com/go-playground/validator/v10"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

type Class struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Grade    string `json:"grade"`
	Capacity int    `json:"capacity"`
}

// Course.ClassID and Course.TeacherID are weak references: deleting the target leaves them dangling.
type Course struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ClassID   *int   `json:"class_id"`
	TeacherID *int   `json:"teacher_id"`
	Version   int    `json:"version"`
}

type Student struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Code    string `json:"code"`
	ClassID *int   `json:"class_id"`
	UserID  string `json:"user_id,omitempty"`
}

type Teacher struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	NationalCode string `json:"national_code,omitempty"`
	Phone        string `json:"phone,omitempty"`
	UserID       string `json:"user_id,omitempty"`
}

type NewClass struct {
	Name     string `json:"name" validate:"required,notblank"`
	Grade    string `json:"grade"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Grade = core.CleanString(nc.Grade)
	return validate.Struct(nc)
}

type UpdateClass struct {
	Name     *string `json:"name" validate:"omitempty,notblank"`
	Grade    *string `json:"grade"`
	Capacity *int    `json:"capacity" validate:"omitempty,gte=0"`
}

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	return validate.Struct(uc)
}

type NewCourse struct {
	Name    string `json:"name" validate:"required,notblank"`
	ClassID *int   `json:"class_id"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// UpdateCourse never touches the teacher: see roster.Service.
type UpdateCourse struct {
	Name       *string `json:"name" validate:"omitempty,notblank"`
	ClassID    *int    `json:"class_id"`
	ClearClass bool    `json:"clear_class"`
	Version    int     `json:"version" validate:"required"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	return validate.Struct(uc)
}

type NewStudent struct {
	Name     string `json:"name" validate:"required,notblank"`
	Code     string `json:"code" validate:"required,alphanum_"`
	ClassID  *int   `json:"class_id"`
	Username string `json:"username" validate:"omitempty,min=4,alphanum_"`
	Email    string `json:"email" validate:"omitempty,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code)
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	if ns.Username == "" {
		ns.Username = ns.Code
	}
	return validate.Struct(ns)
}

type UpdateStudent struct {
	Name       *string `json:"name" validate:"omitempty,notblank"`
	Code       *string `json:"code" validate:"omitempty,alphanum_"`
	ClassID    *int    `json:"class_id"`
	ClearClass bool    `json:"clear_class"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Password   string  `json:"password" validate:"omitempty,min=6"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	return validate.Struct(us)
}

type NewTeacher struct {
	Name         string `json:"name" validate:"required,notblank"`
	NationalCode string `json:"national_code" validate:"omitempty,numeric,len=10"`
	Phone        string `json:"phone" validate:"omitempty,phone"`
	Username     string `json:"username" validate:"required,min=4,alphanum_"`
	Email        string `json:"email" validate:"omitempty,email"`
	Password     string `json:"password" validate:"required,min=6"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.NationalCode = core.CleanString(nt.NationalCode)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Username = core.CleanString(nt.Username, true /* lower */)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	return validate.Struct(nt)
}

type UpdateTeacher struct {
	Name         *string `json:"name" validate:"omitempty,notblank"`
	NationalCode *string `json:"national_code" validate:"omitempty,numeric,len=10"`
	Phone        *string `json:"phone" validate:"omitempty,phone"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Password     string  `json:"password" validate:"omitempty,min=6"`
}

func (upd *UpdateTeacher) Validate(validate *validator.Validate) error {
	return validate.Struct(upd)
}

type ClassFilter struct {
	Search string
}

type CourseFilter struct {
	Search    string
	ClassID   *int
	TeacherID *int
}

type StudentFilter struct {
	Search  string
	ClassID *int
	IDs     []int
}

type TeacherFilter struct {
	Search string
}
