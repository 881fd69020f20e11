package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/recedu/reconline/core"
)

// Session is a scheduled class meeting students check in to.
type Session struct {
	ID        int       `json:"id"`
	CourseID  int       `json:"course_id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	CreatedBy int       `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

// Record marks one student present at one session.
type Record struct {
	ID          int       `json:"id"`
	SessionID   int       `json:"session_id"`
	StudentID   int       `json:"student_id"`
	CheckedInAt time.Time `json:"checked_in_at"`
}

// NewSession contains information needed to schedule a Session.
type NewSession struct {
	CourseID int       `json:"course_id" validate:"required"`
	Title    string    `json:"title" validate:"required"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
}

func (ns *NewSession) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	return validate.Struct(ns)
}
