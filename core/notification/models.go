package notification

import (
	"time"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

// Types
const (
	TypeGrade                   = "grade"
	TypeCourseTeacherChanged    = "course_teacher_changed"
	TypeCourseTeacherRemoved    = "course_teacher_removed"
	TypeTeacherCourseAssigned   = "teacher_course_assigned"
	TypeTeacherCourseUnassigned = "teacher_course_unassigned"
	TypeExamCreated             = "exam_created"
	TypeExerciseCreated         = "exercise_created"
)

// Related types
const (
	RelatedCourse   = "course"
	RelatedExam     = "exam"
	RelatedExercise = "exercise"
)

// Notification is immutable except for IsRead and ReadAt.
type Notification struct {
	ID          int        `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Type        string     `json:"type"`
	RelatedID   *int       `json:"related_id"`
	RelatedType *string    `json:"related_type"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
	IsRead      bool       `json:"is_read"`
	ReadAt      *time.Time `json:"read_at"`
}

type Message struct {
	Title       string
	Body        string
	Type        string
	RelatedID   *int
	RelatedType string
}

func (m Message) toNotification(userID string, now time.Time) Notification {
	n := Notification{
		UserID:    userID,
		Title:     m.Title,
		Body:      m.Body,
		Type:      m.Type,
		RelatedID: m.RelatedID,
		CreatedAt: now,
	}
	if m.RelatedType != "" {
		rt := m.RelatedType
		n.RelatedType = &rt
	}
	return n
}

type QueryFilter struct {
	UserID     string
	UnreadOnly bool
	Page       core.Page
}

// IDs selects notifications by id. Empty means all notifications of the user.
type IDs struct {
	IDs []int `json:"ids"`
}
