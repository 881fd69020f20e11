package course

import (
	"errors"
	"time"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("course not found")
	ErrEnrollmentNotFound = errors.New("enrollment not found")
	ErrCodeExists         = errors.New("a course with this code already exists")
	ErrAlreadyEnrolled    = errors.New("student is already enrolled in this course")
	ErrCourseFull         = errors.New("course is at full capacity")
	ErrNotPublished       = errors.New("course is not published")
	ErrNotPending         = errors.New("enrollment has already been decided")
	ErrReviewForbidden    = errors.New("only admins may decide enrollments")
)

type (
	Repository interface {
		CheckCodeUniqueness(code string, excludedCourses ...Course) error
		CreateCourse(crs Course) (Course, error)
		QueryAllCourses() ([]Course, error)
		GetCourseByID(id int) (Course, error)
		GetCourseByCode(code string) (Course, error)
		// FilterCourses applies an AND operation on available QueryFilter fields.
		FilterCourses(filter QueryFilter) ([]Course, error)
		UpdateCourse(crs Course, capacity *int, autoApprove, isPublished *bool) (Course, error)
		DeleteCoursesByID(ids ...int) error

		CreateEnrollment(enr Enrollment) (Enrollment, error)
		GetEnrollmentByID(id int) (Enrollment, error)
		GetEnrollment(courseID, studentID int) (Enrollment, error)
		QueryEnrollmentsByCourse(courseID int) ([]Enrollment, error)
		QueryEnrollmentsByStudent(studentID int) ([]Enrollment, error)
		CountEnrollments(courseID int, status string) (int, error)
		UpdateEnrollment(enr Enrollment) (Enrollment, error)
	}

	Service struct {
		repo Repository
		conf *core.Config
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, conf: conf}
}

func (svc *Service) checkCodeUniqueness(code string, exclCourses ...Course) error {
	if err := svc.repo.CheckCodeUniqueness(code, exclCourses...); err != nil {
		if err == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		Code:        nc.Code,
		Title:       nc.Title,
		Description: nc.Description,
		TeacherID:   nc.TeacherID,
		Capacity:    nc.Capacity,
		AutoApprove: nc.AutoApprove,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateCourse(crs)
}

func (svc *Service) QueryAll() ([]Course, error) {
	return svc.repo.QueryAllCourses()
}

func (svc *Service) GetByID(id int) (Course, error) {
	return svc.repo.GetCourseByID(id)
}

func (svc *Service) GetByCode(code string) (Course, error) {
	return svc.repo.GetCourseByCode(core.CleanString(code, true /* lower */))
}

func (svc *Service) Filter(filter QueryFilter) ([]Course, error) {
	if filter.IsEmpty() {
		return svc.repo.QueryAllCourses()
	}
	return svc.repo.FilterCourses(filter)
}

func (svc *Service) Update(id int, uc UpdateCourse) (Course, error) {
	crs := Course{
		ID:          id,
		Code:        uc.Code,
		Title:       uc.Title,
		Description: uc.Description,
		TeacherID:   uc.TeacherID,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateCourse(crs, uc.Capacity, uc.AutoApprove, uc.IsPublished)
}

func (svc *Service) Delete(ids ...int) error {
	return svc.repo.DeleteCoursesByID(ids...)
}

// Apply creates an enrollment application for a student on a published course.
// Courses flagged AutoApprove admit the student immediately, subject to capacity.
func (svc *Service) Apply(courseID int, student user.User) (Enrollment, error) {
	crs, err := svc.repo.GetCourseByID(courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if !crs.IsPublished {
		return Enrollment{}, ErrNotPublished
	}

	if prev, err := svc.repo.GetEnrollment(courseID, student.ID); err == nil {
		if prev.Status != StatusWithdrawn && prev.Status != StatusRejected {
			return Enrollment{}, ErrAlreadyEnrolled
		}
	} else if err != ErrEnrollmentNotFound {
		return Enrollment{}, err
	}

	now := time.Now().UTC()
	enr := Enrollment{
		CourseID:  courseID,
		StudentID: student.ID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if crs.AutoApprove {
		if err := svc.checkCapacity(crs); err != nil {
			return Enrollment{}, err
		}
		enr.Status = StatusApproved
	}
	return svc.repo.CreateEnrollment(enr)
}

// Approve admits a pending applicant. Only admins decide; capacity is
// enforced here, at decision time, not at application time.
func (svc *Service) Approve(enrollmentID int, reviewer user.User) (Enrollment, error) {
	enr, err := svc.pendingForReview(enrollmentID, reviewer)
	if err != nil {
		return Enrollment{}, err
	}
	crs, err := svc.repo.GetCourseByID(enr.CourseID)
	if err != nil {
		return Enrollment{}, err
	}
	if err := svc.checkCapacity(crs); err != nil {
		return Enrollment{}, err
	}

	enr.Status = StatusApproved
	enr.DecidedBy = reviewer.ID
	enr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEnrollment(enr)
}

// Reject declines a pending applicant with an optional note.
func (svc *Service) Reject(enrollmentID int, reviewer user.User, note string) (Enrollment, error) {
	enr, err := svc.pendingForReview(enrollmentID, reviewer)
	if err != nil {
		return Enrollment{}, err
	}

	enr.Status = StatusRejected
	enr.Note = core.CleanString(note)
	enr.DecidedBy = reviewer.ID
	enr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEnrollment(enr)
}

// Withdraw lets a student leave a course they applied to or are enrolled in.
func (svc *Service) Withdraw(courseID int, student user.User) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(courseID, student.ID)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.Status != StatusPending && enr.Status != StatusApproved {
		return Enrollment{}, ErrNotPending
	}

	enr.Status = StatusWithdrawn
	enr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateEnrollment(enr)
}

func (svc *Service) GetEnrollment(courseID, studentID int) (Enrollment, error) {
	return svc.repo.GetEnrollment(courseID, studentID)
}

func (svc *Service) CourseEnrollments(courseID int) ([]Enrollment, error) {
	return svc.repo.QueryEnrollmentsByCourse(courseID)
}

func (svc *Service) StudentEnrollments(studentID int) ([]Enrollment, error) {
	return svc.repo.QueryEnrollmentsByStudent(studentID)
}

// IsEnrolled reports whether the student holds an approved enrollment.
func (svc *Service) IsEnrolled(courseID, studentID int) (bool, error) {
	enr, err := svc.repo.GetEnrollment(courseID, studentID)
	if err != nil {
		if err == ErrEnrollmentNotFound {
			return false, nil
		}
		return false, err
	}
	return enr.IsApproved(), nil
}

func (svc *Service) pendingForReview(enrollmentID int, reviewer user.User) (Enrollment, error) {
	if !reviewer.IsAdmin() {
		return Enrollment{}, ErrReviewForbidden
	}
	enr, err := svc.repo.GetEnrollmentByID(enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	if !enr.IsPending() {
		return Enrollment{}, ErrNotPending
	}
	return enr, nil
}

func (svc *Service) checkCapacity(crs Course) error {
	if crs.Capacity <= 0 {
		return nil
	}
	approved, err := svc.repo.CountEnrollments(crs.ID, StatusApproved)
	if err != nil {
		return err
	}
	if approved >= crs.Capacity {
		return ErrCourseFull
	}
	return nil
}
