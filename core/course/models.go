package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/recedu/reconline/core"
)

// Enrollment statuses.
const (
	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusWithdrawn = "withdrawn"
)

type Course struct {
	ID          int       `json:"id"`
	Code        string    `json:"code"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	TeacherID   int       `json:"teacher_id"`
	Capacity    int       `json:"capacity"` // 0 means unlimited
	AutoApprove bool      `json:"auto_approve"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Enrollment struct {
	ID        int       `json:"id"`
	CourseID  int       `json:"course_id"`
	StudentID int       `json:"student_id"`
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"` // reviewer feedback on rejection
	DecidedBy int       `json:"decided_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e Enrollment) IsPending() bool  { return e.Status == StatusPending }
func (e Enrollment) IsApproved() bool { return e.Status == StatusApproved }

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Code        string `json:"code" validate:"required,coursecode"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	TeacherID   int    `json:"teacher_id" validate:"required"`
	Capacity    int    `json:"capacity" validate:"omitempty,min=0"`
	AutoApprove bool   `json:"auto_approve"`
}

func (nc *NewCourse) Validate(validate *validator.Validate, svc *Service) error {
	nc.Code = core.CleanString(nc.Code, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.checkCodeUniqueness(nc.Code)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Code        string `json:"code" validate:"omitempty,coursecode"`
	Title       string `json:"title"`
	Description string `json:"description"`
	TeacherID   int    `json:"teacher_id"`
	Capacity    *int   `json:"capacity" validate:"omitempty,min=0"`
	AutoApprove *bool  `json:"auto_approve"`
	IsPublished *bool  `json:"is_published"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate, origCourse Course, svc *Service) error {
	code := core.CleanString(uc.Code, true /* lower */)
	if code != "" {
		uc.Code = code
	} else {
		uc.Code = origCourse.Code
	}

	title := core.CleanString(uc.Title)
	if title != "" {
		uc.Title = title
	} else {
		uc.Title = origCourse.Title
	}
	uc.Description = core.CleanString(uc.Description)

	if err := validate.Struct(uc); err != nil {
		return err
	}
	return svc.checkCodeUniqueness(uc.Code, origCourse)
}

// QueryFilter applies an AND operation on its non-zero fields.
// Search does a case-insensitive match on one of Code or Title.
type QueryFilter struct {
	Search      string
	TeacherID   int
	IsPublished *bool
}

func (f QueryFilter) IsEmpty() bool {
	return f.Search == "" && f.TeacherID == 0 && f.IsPublished == nil
}
