package forum

import (
	"errors"
	"time"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/user"
)

var (
	// errors
	ErrThreadNotFound  = errors.New("thread not found")
	ErrPostNotFound    = errors.New("post not found")
	ErrThreadLocked    = errors.New("thread is locked")
	ErrLockForbidden   = errors.New("only staff may lock threads")
	ErrDeleteForbidden = errors.New("only staff or the author may delete a post")
)

type (
	Repository interface {
		CreateThread(th Thread) (Thread, error)
		GetThreadByID(id int) (Thread, error)
		QueryThreadsByCourse(courseID int) ([]Thread, error)
		UpdateThread(th Thread, isLocked *bool) (Thread, error)
		DeleteThreadsByID(ids ...int) error

		CreatePost(p Post) (Post, error)
		GetPostByID(id int) (Post, error)
		QueryPostsByThread(threadID int) ([]Post, error)
		CountPosts(threadID int) (int, error)
		DeletePostsByID(ids ...int) error
	}

	Service struct {
		repo Repository
		conf *core.Config
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, conf: conf}
}

// CreateThread opens a thread with its first post.
func (svc *Service) CreateThread(author user.User, nt NewThread) (Thread, error) {
	now := time.Now().UTC()
	th, err := svc.repo.CreateThread(Thread{
		CourseID:  nt.CourseID,
		Title:     nt.Title,
		CreatedBy: author.ID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return Thread{}, err
	}
	if _, err = svc.repo.CreatePost(Post{
		ThreadID:  th.ID,
		AuthorID:  author.ID,
		Body:      nt.Body,
		CreatedAt: now,
	}); err != nil {
		return Thread{}, err
	}
	th.PostCount = 1
	return th, nil
}

func (svc *Service) GetThread(id int) (Thread, error) {
	th, err := svc.repo.GetThreadByID(id)
	if err != nil {
		return Thread{}, err
	}
	if th.PostCount, err = svc.repo.CountPosts(th.ID); err != nil {
		return Thread{}, err
	}
	return th, nil
}

func (svc *Service) CourseThreads(courseID int) ([]Thread, error) {
	threads, err := svc.repo.QueryThreadsByCourse(courseID)
	if err != nil {
		return nil, err
	}
	for i := range threads {
		if threads[i].PostCount, err = svc.repo.CountPosts(threads[i].ID); err != nil {
			return nil, err
		}
	}
	return threads, nil
}

// SetLocked locks or unlocks a thread. Staff only.
func (svc *Service) SetLocked(threadID int, locker user.User, locked bool) (Thread, error) {
	if !(locker.IsTeacher() || locker.IsAdmin()) {
		return Thread{}, ErrLockForbidden
	}
	th := Thread{ID: threadID, UpdatedAt: time.Now().UTC()}
	return svc.repo.UpdateThread(th, &locked)
}

func (svc *Service) DeleteThreads(ids ...int) error {
	return svc.repo.DeleteThreadsByID(ids...)
}

// Reply appends a post to an unlocked thread.
func (svc *Service) Reply(threadID int, author user.User, np NewPost) (Post, error) {
	th, err := svc.repo.GetThreadByID(threadID)
	if err != nil {
		return Post{}, err
	}
	if th.IsLocked {
		return Post{}, ErrThreadLocked
	}
	return svc.repo.CreatePost(Post{
		ThreadID:  threadID,
		AuthorID:  author.ID,
		Body:      np.Body,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *Service) ThreadPosts(threadID int) ([]Post, error) {
	if _, err := svc.repo.GetThreadByID(threadID); err != nil {
		return nil, err
	}
	return svc.repo.QueryPostsByThread(threadID)
}

// DeletePost removes a post. The author or staff may delete.
func (svc *Service) DeletePost(postID int, requester user.User) error {
	p, err := svc.repo.GetPostByID(postID)
	if err != nil {
		return err
	}
	if p.AuthorID != requester.ID && !(requester.IsTeacher() || requester.IsAdmin()) {
		return ErrDeleteForbidden
	}
	return svc.repo.DeletePostsByID(postID)
}
