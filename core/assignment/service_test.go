package assignment_test

import (
	"testing"
	"time"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/assignment"
	"github.com/recedu/reconline/core/user"
	inmemdb "github.com/recedu/reconline/storage/database/inmem"
)

func newTestService(t *testing.T) *assignment.Service {
	t.Helper()
	return assignment.NewService(inmemdb.NewAssignmentRepository(inmemdb.NewDB()), core.NewTestConfig())
}

func TestSubmissionReviewWorkflow(t *testing.T) {
	svc := newTestService(t)

	teacher := user.User{ID: 1, Roles: []string{user.RoleTeacher}}
	student := user.User{ID: 2, Roles: []string{user.RoleStudent}}

	asg, err := svc.Create(assignment.NewAssignment{CourseID: 1, Title: "Essay 1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sub, err := svc.Submit(asg.ID, student, assignment.NewSubmission{Content: "first draft"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if sub.Status != assignment.StatusSubmitted {
		t.Errorf("Status = %q, want %q", sub.Status, assignment.StatusSubmitted)
	}

	t.Run("double submit rejected", func(t *testing.T) {
		if _, err := svc.Submit(asg.ID, student, assignment.NewSubmission{Content: "oops"}); err != assignment.ErrAlreadySubmitted {
			t.Errorf("Submit() error = %v, want %v", err, assignment.ErrAlreadySubmitted)
		}
	})

	t.Run("students cannot review", func(t *testing.T) {
		if _, err := svc.Approve(sub.ID, student); err != assignment.ErrReviewForbidden {
			t.Errorf("Approve() error = %v, want %v", err, assignment.ErrReviewForbidden)
		}
	})

	t.Run("return with feedback then resubmit", func(t *testing.T) {
		got, err := svc.Return(sub.ID, teacher, "needs sources")
		if err != nil {
			t.Fatalf("Return() error = %v", err)
		}
		if got.Status != assignment.StatusReturned || got.Feedback != "needs sources" {
			t.Errorf("got status %q feedback %q", got.Status, got.Feedback)
		}

		resub, err := svc.Submit(asg.ID, student, assignment.NewSubmission{Content: "second draft"})
		if err != nil {
			t.Fatalf("Submit() after return error = %v", err)
		}
		if resub.ID != sub.ID {
			t.Errorf("resubmission created new record: ID = %d, want %d", resub.ID, sub.ID)
		}
		if resub.Status != assignment.StatusSubmitted || resub.Content != "second draft" {
			t.Errorf("got status %q content %q", resub.Status, resub.Content)
		}
		if resub.Feedback != "" || resub.ReviewedBy != 0 {
			t.Error("review fields not cleared on resubmission")
		}
	})

	t.Run("approve", func(t *testing.T) {
		got, err := svc.Approve(sub.ID, teacher)
		if err != nil {
			t.Fatalf("Approve() error = %v", err)
		}
		if got.Status != assignment.StatusApproved || got.ReviewedBy != teacher.ID {
			t.Errorf("got status %q reviewer %d", got.Status, got.ReviewedBy)
		}

		// approved work is final
		if _, err := svc.Return(sub.ID, teacher, "too late"); err != assignment.ErrNotSubmitted {
			t.Errorf("Return() error = %v, want %v", err, assignment.ErrNotSubmitted)
		}
	})
}

func TestSubmitPastDue(t *testing.T) {
	svc := newTestService(t)

	asg, err := svc.Create(assignment.NewAssignment{
		CourseID: 1,
		Title:    "Late Essay",
		DueAt:    time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := svc.Submit(asg.ID, user.User{ID: 2}, assignment.NewSubmission{Content: "sorry"}); err != assignment.ErrPastDue {
		t.Errorf("Submit() error = %v, want %v", err, assignment.ErrPastDue)
	}
}
