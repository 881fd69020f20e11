package forum_test

import (
	"testing"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/forum"
	"github.com/recedu/reconline/core/user"
	inmemdb "github.com/recedu/reconline/storage/database/inmem"
)

func newTestService(t *testing.T) *forum.Service {
	t.Helper()
	return forum.NewService(inmemdb.NewForumRepository(inmemdb.NewDB()), core.NewTestConfig())
}

func TestThreadLifecycle(t *testing.T) {
	svc := newTestService(t)
	teacher := user.User{ID: 1, Roles: []string{user.RoleTeacher}}
	student := user.User{ID: 2, Roles: []string{user.RoleStudent}}

	th, err := svc.CreateThread(student, forum.NewThread{CourseID: 1, Title: "Homework help", Body: "How do slices work?"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	if th.PostCount != 1 {
		t.Errorf("PostCount = %d, want 1", th.PostCount)
	}

	if _, err := svc.Reply(th.ID, teacher, forum.NewPost{Body: "They are views over arrays."}); err != nil {
		t.Fatalf("Reply() error = %v", err)
	}

	got, err := svc.GetThread(th.ID)
	if err != nil {
		t.Fatalf("GetThread() error = %v", err)
	}
	if got.PostCount != 2 {
		t.Errorf("PostCount = %d, want 2", got.PostCount)
	}

	posts, err := svc.ThreadPosts(th.ID)
	if err != nil {
		t.Fatalf("ThreadPosts() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("len(posts) = %d, want 2", len(posts))
	}

	t.Run("students cannot lock", func(t *testing.T) {
		if _, err := svc.SetLocked(th.ID, student, true); err != forum.ErrLockForbidden {
			t.Errorf("SetLocked() error = %v, want %v", err, forum.ErrLockForbidden)
		}
	})

	t.Run("locked thread takes no replies", func(t *testing.T) {
		if _, err := svc.SetLocked(th.ID, teacher, true); err != nil {
			t.Fatalf("SetLocked() error = %v", err)
		}
		if _, err := svc.Reply(th.ID, student, forum.NewPost{Body: "one more thing"}); err != forum.ErrThreadLocked {
			t.Errorf("Reply() error = %v, want %v", err, forum.ErrThreadLocked)
		}
	})

	t.Run("unlock reopens", func(t *testing.T) {
		if _, err := svc.SetLocked(th.ID, teacher, false); err != nil {
			t.Fatalf("SetLocked() error = %v", err)
		}
		if _, err := svc.Reply(th.ID, student, forum.NewPost{Body: "thanks!"}); err != nil {
			t.Errorf("Reply() error = %v", err)
		}
	})
}

func TestDeletePost(t *testing.T) {
	svc := newTestService(t)
	teacher := user.User{ID: 1, Roles: []string{user.RoleTeacher}}
	author := user.User{ID: 2, Roles: []string{user.RoleStudent}}
	other := user.User{ID: 3, Roles: []string{user.RoleStudent}}

	th, err := svc.CreateThread(author, forum.NewThread{CourseID: 1, Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	p, err := svc.Reply(th.ID, author, forum.NewPost{Body: "my post"})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}

	if err := svc.DeletePost(p.ID, other); err != forum.ErrDeleteForbidden {
		t.Errorf("DeletePost() error = %v, want %v", err, forum.ErrDeleteForbidden)
	}
	if err := svc.DeletePost(p.ID, author); err != nil {
		t.Errorf("DeletePost() by author error = %v", err)
	}

	p2, err := svc.Reply(th.ID, author, forum.NewPost{Body: "another"})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	if err := svc.DeletePost(p2.ID, teacher); err != nil {
		t.Errorf("DeletePost() by staff error = %v", err)
	}
}
