package assignment

import (
	"errors"
	"time"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/user"
)

var (
	// errors
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrAlreadySubmitted   = errors.New("assignment has already been submitted")
	ErrPastDue            = errors.New("assignment is past its due date")
	ErrNotSubmitted       = errors.New("submission is not awaiting review")
	ErrReviewForbidden    = errors.New("only staff may review submissions")
)

type (
	Repository interface {
		CreateAssignment(asg Assignment) (Assignment, error)
		GetAssignmentByID(id int) (Assignment, error)
		QueryAssignmentsByCourse(courseID int) ([]Assignment, error)
		UpdateAssignment(asg Assignment, dueAt *time.Time) (Assignment, error)
		DeleteAssignmentsByID(ids ...int) error

		CreateSubmission(sub Submission) (Submission, error)
		GetSubmissionByID(id int) (Submission, error)
		GetSubmission(assignmentID, studentID int) (Submission, error)
		QuerySubmissionsByAssignment(assignmentID int) ([]Submission, error)
		QuerySubmissionsByStudent(studentID int) ([]Submission, error)
		UpdateSubmission(sub Submission) (Submission, error)
	}

	Service struct {
		repo Repository
		conf *core.Config
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, conf: conf}
}

func (svc *Service) Create(na NewAssignment) (Assignment, error) {
	now := time.Now().UTC()
	asg := Assignment{
		CourseID:    na.CourseID,
		Title:       na.Title,
		Description: na.Description,
		DueAt:       na.DueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateAssignment(asg)
}

func (svc *Service) GetByID(id int) (Assignment, error) {
	return svc.repo.GetAssignmentByID(id)
}

func (svc *Service) QueryByCourse(courseID int) ([]Assignment, error) {
	return svc.repo.QueryAssignmentsByCourse(courseID)
}

func (svc *Service) Update(id int, ua UpdateAssignment) (Assignment, error) {
	asg := Assignment{
		ID:          id,
		Title:       ua.Title,
		Description: ua.Description,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateAssignment(asg, ua.DueAt)
}

func (svc *Service) Delete(ids ...int) error {
	return svc.repo.DeleteAssignmentsByID(ids...)
}

// Submit records a student's answer. A returned submission may be submitted
// again with new content; a submission under or past review may not.
func (svc *Service) Submit(assignmentID int, student user.User, ns NewSubmission) (Submission, error) {
	asg, err := svc.repo.GetAssignmentByID(assignmentID)
	if err != nil {
		return Submission{}, err
	}
	now := time.Now().UTC()
	if !asg.DueAt.IsZero() && now.After(asg.DueAt) {
		return Submission{}, ErrPastDue
	}

	if prev, err := svc.repo.GetSubmission(assignmentID, student.ID); err == nil {
		if prev.Status != StatusReturned {
			return Submission{}, ErrAlreadySubmitted
		}
		prev.Content = ns.Content
		prev.Status = StatusSubmitted
		prev.Feedback = ""
		prev.ReviewedBy = 0
		prev.SubmittedAt = now
		prev.UpdatedAt = now
		return svc.repo.UpdateSubmission(prev)
	} else if err != ErrSubmissionNotFound {
		return Submission{}, err
	}

	sub := Submission{
		AssignmentID: assignmentID,
		StudentID:    student.ID,
		Content:      ns.Content,
		Status:       StatusSubmitted,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateSubmission(sub)
}

// Approve accepts a submission. Teachers and admins review.
func (svc *Service) Approve(submissionID int, reviewer user.User) (Submission, error) {
	sub, err := svc.submittedForReview(submissionID, reviewer)
	if err != nil {
		return Submission{}, err
	}
	sub.Status = StatusApproved
	sub.ReviewedBy = reviewer.ID
	sub.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubmission(sub)
}

// Return hands a submission back to the student with feedback for rework.
func (svc *Service) Return(submissionID int, reviewer user.User, feedback string) (Submission, error) {
	sub, err := svc.submittedForReview(submissionID, reviewer)
	if err != nil {
		return Submission{}, err
	}
	sub.Status = StatusReturned
	sub.Feedback = core.CleanString(feedback)
	sub.ReviewedBy = reviewer.ID
	sub.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateSubmission(sub)
}

func (svc *Service) GetSubmission(assignmentID, studentID int) (Submission, error) {
	return svc.repo.GetSubmission(assignmentID, studentID)
}

func (svc *Service) AssignmentSubmissions(assignmentID int) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByAssignment(assignmentID)
}

func (svc *Service) StudentSubmissions(studentID int) ([]Submission, error) {
	return svc.repo.QuerySubmissionsByStudent(studentID)
}

func (svc *Service) submittedForReview(submissionID int, reviewer user.User) (Submission, error) {
	if !(reviewer.IsTeacher() || reviewer.IsAdmin()) {
		return Submission{}, ErrReviewForbidden
	}
	sub, err := svc.repo.GetSubmissionByID(submissionID)
	if err != nil {
		return Submission{}, err
	}
	if !sub.IsSubmitted() {
		return Submission{}, ErrNotSubmitted
	}
	return sub, nil
}
