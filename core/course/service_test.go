package course_test

import (
	"testing"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/course"
	"github.com/recedu/reconline/core/user"
	inmemdb "github.com/recedu/reconline/storage/database/inmem"
)

func newTestService(t *testing.T) *course.Service {
	t.Helper()
	return course.NewService(inmemdb.NewCourseRepository(inmemdb.NewDB()), core.NewTestConfig())
}

func mustCreate(t *testing.T, svc *course.Service, nc course.NewCourse, publish bool) course.Course {
	t.Helper()
	crs, err := svc.Create(nc)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if publish {
		pub := true
		if crs, err = svc.Update(crs.ID, course.UpdateCourse{IsPublished: &pub}); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}
	return crs
}

func TestEnrollmentWorkflow(t *testing.T) {
	svc := newTestService(t)

	admin := user.User{ID: 100, Roles: []string{user.RoleAdmin}}
	teacher := user.User{ID: 101, Roles: []string{user.RoleTeacher}}
	student := user.User{ID: 102, Roles: []string{user.RoleStudent}}

	crs := mustCreate(t, svc, course.NewCourse{Code: "go101", Title: "Intro to Go", TeacherID: teacher.ID}, false)

	t.Run("apply to unpublished course fails", func(t *testing.T) {
		if _, err := svc.Apply(crs.ID, student); err != course.ErrNotPublished {
			t.Errorf("Apply() error = %v, want %v", err, course.ErrNotPublished)
		}
	})

	pub := true
	crs, err := svc.Update(crs.ID, course.UpdateCourse{IsPublished: &pub})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	var enr course.Enrollment

	t.Run("apply creates pending enrollment", func(t *testing.T) {
		enr, err = svc.Apply(crs.ID, student)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if enr.Status != course.StatusPending {
			t.Errorf("Status = %q, want %q", enr.Status, course.StatusPending)
		}
	})

	t.Run("duplicate application rejected", func(t *testing.T) {
		if _, err := svc.Apply(crs.ID, student); err != course.ErrAlreadyEnrolled {
			t.Errorf("Apply() error = %v, want %v", err, course.ErrAlreadyEnrolled)
		}
	})

	t.Run("only admins approve", func(t *testing.T) {
		if _, err := svc.Approve(enr.ID, teacher); err != course.ErrReviewForbidden {
			t.Errorf("Approve() error = %v, want %v", err, course.ErrReviewForbidden)
		}
	})

	t.Run("admin approves", func(t *testing.T) {
		got, err := svc.Approve(enr.ID, admin)
		if err != nil {
			t.Fatalf("Approve() error = %v", err)
		}
		if got.Status != course.StatusApproved {
			t.Errorf("Status = %q, want %q", got.Status, course.StatusApproved)
		}
		if got.DecidedBy != admin.ID {
			t.Errorf("DecidedBy = %d, want %d", got.DecidedBy, admin.ID)
		}
		if enrolled, _ := svc.IsEnrolled(crs.ID, student.ID); !enrolled {
			t.Error("IsEnrolled() = false, want true")
		}
	})

	t.Run("approved enrollment cannot be re-decided", func(t *testing.T) {
		if _, err := svc.Approve(enr.ID, admin); err != course.ErrNotPending {
			t.Errorf("Approve() error = %v, want %v", err, course.ErrNotPending)
		}
	})

	t.Run("withdraw then reapply", func(t *testing.T) {
		got, err := svc.Withdraw(crs.ID, student)
		if err != nil {
			t.Fatalf("Withdraw() error = %v", err)
		}
		if got.Status != course.StatusWithdrawn {
			t.Errorf("Status = %q, want %q", got.Status, course.StatusWithdrawn)
		}
		if _, err := svc.Apply(crs.ID, student); err != nil {
			t.Errorf("Apply() after withdraw error = %v", err)
		}
	})
}

func TestEnrollmentRejection(t *testing.T) {
	svc := newTestService(t)
	admin := user.User{ID: 1, Roles: []string{user.RoleAdmin}}
	student := user.User{ID: 2, Roles: []string{user.RoleStudent}}

	crs := mustCreate(t, svc, course.NewCourse{Code: "go102", Title: "More Go", TeacherID: 3}, true)
	enr, err := svc.Apply(crs.ID, student)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	got, err := svc.Reject(enr.ID, admin, "prerequisites not met")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if got.Status != course.StatusRejected {
		t.Errorf("Status = %q, want %q", got.Status, course.StatusRejected)
	}
	if got.Note != "prerequisites not met" {
		t.Errorf("Note = %q", got.Note)
	}

	// a rejected student may apply again
	if _, err := svc.Apply(crs.ID, student); err != nil {
		t.Errorf("Apply() after rejection error = %v", err)
	}
}

func TestCapacityEnforcedAtApproval(t *testing.T) {
	svc := newTestService(t)
	admin := user.User{ID: 1, Roles: []string{user.RoleAdmin}}

	crs := mustCreate(t, svc, course.NewCourse{Code: "go103", Title: "Tiny Go", TeacherID: 3, Capacity: 1}, true)

	enr1, err := svc.Apply(crs.ID, user.User{ID: 10})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	enr2, err := svc.Apply(crs.ID, user.User{ID: 11})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if _, err := svc.Approve(enr1.ID, admin); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if _, err := svc.Approve(enr2.ID, admin); err != course.ErrCourseFull {
		t.Errorf("Approve() error = %v, want %v", err, course.ErrCourseFull)
	}
}

func TestAutoApprove(t *testing.T) {
	svc := newTestService(t)

	crs := mustCreate(t, svc, course.NewCourse{Code: "go104", Title: "Open Go", TeacherID: 3, Capacity: 1, AutoApprove: true}, true)

	enr, err := svc.Apply(crs.ID, user.User{ID: 10})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if enr.Status != course.StatusApproved {
		t.Errorf("Status = %q, want %q", enr.Status, course.StatusApproved)
	}

	// capacity still binds auto-approved applications
	if _, err := svc.Apply(crs.ID, user.User{ID: 11}); err != course.ErrCourseFull {
		t.Errorf("Apply() error = %v, want %v", err, course.ErrCourseFull)
	}
}
