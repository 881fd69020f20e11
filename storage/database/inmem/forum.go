package inmemdb

import (
	"sort"

	"github.com/recedu/reconline/core/forum"
)

type forumRepository struct {
	db *DB
}

func NewForumRepository(db *DB) forum.Repository {
	return &forumRepository{db: db}
}

func (repo *forumRepository) CreateThread(th forum.Thread) (forum.Thread, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	th.ID = repo.db.nextID()
	repo.db.threads[th.ID] = &th
	return th, nil
}

func (repo *forumRepository) GetThreadByID(id int) (forum.Thread, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if th, ok := repo.db.threads[id]; ok {
		return *th, nil
	}
	return forum.Thread{}, forum.ErrThreadNotFound
}

func (repo *forumRepository) QueryThreadsByCourse(courseID int) ([]forum.Thread, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var threads []forum.Thread
	for _, th := range repo.db.threads {
		if th.CourseID == courseID {
			threads = append(threads, *th)
		}
	}
	sort.Slice(threads, func(i, j int) bool { return threads[i].ID < threads[j].ID })
	return threads, nil
}

func (repo *forumRepository) UpdateThread(th forum.Thread, isLocked *bool) (forum.Thread, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.threads[th.ID]
	if !ok {
		return forum.Thread{}, forum.ErrThreadNotFound
	}
	if th.Title != "" {
		orig.Title = th.Title
	}
	if isLocked != nil {
		orig.IsLocked = *isLocked
	}
	if !th.UpdatedAt.IsZero() {
		orig.UpdatedAt = th.UpdatedAt
	}
	return *orig, nil
}

func (repo *forumRepository) DeleteThreadsByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.threads, id)
	}
	return nil
}

func (repo *forumRepository) CreatePost(p forum.Post) (forum.Post, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	p.ID = repo.db.nextID()
	repo.db.posts[p.ID] = &p
	return p, nil
}

func (repo *forumRepository) GetPostByID(id int) (forum.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if p, ok := repo.db.posts[id]; ok {
		return *p, nil
	}
	return forum.Post{}, forum.ErrPostNotFound
}

func (repo *forumRepository) QueryPostsByThread(threadID int) ([]forum.Post, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var posts []forum.Post
	for _, p := range repo.db.posts {
		if p.ThreadID == threadID {
			posts = append(posts, *p)
		}
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

func (repo *forumRepository) CountPosts(threadID int) (int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var count int
	for _, p := range repo.db.posts {
		if p.ThreadID == threadID {
			count++
		}
	}
	return count, nil
}

func (repo *forumRepository) DeletePostsByID(ids ...int) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.posts, id)
	}
	return nil
}
