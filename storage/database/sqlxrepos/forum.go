package sqlxrepos

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/recedu/reconline/core/forum"
)

type forumRepository struct {
	db *sqlx.DB
}

var _ forum.Repository = (*forumRepository)(nil) // interface compliance check

func NewForumRepository(db *sqlx.DB) *forumRepository {
	return &forumRepository{db: db}
}

type threadRow struct {
	ID        int       `db:"id"`
	CourseID  int       `db:"course_id"`
	Title     string    `db:"title"`
	CreatedBy int       `db:"created_by"`
	IsLocked  bool      `db:"is_locked"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// PostCount is filled in by the service layer, not stored.
func (r threadRow) toThread() forum.Thread {
	return forum.Thread{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		CreatedBy: r.CreatedBy,
		IsLocked:  r.IsLocked,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type postRow struct {
	ID        int       `db:"id"`
	ThreadID  int       `db:"thread_id"`
	AuthorID  int       `db:"author_id"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

func (r postRow) toPost() forum.Post {
	return forum.Post(r)
}

const (
	threadColumns = `id, course_id, title, created_by, is_locked, created_at, updated_at`
	postColumns   = `id, thread_id, author_id, body, created_at`
)

func (repo *forumRepository) CreateThread(th forum.Thread) (forum.Thread, error) {
	var row threadRow
	err := repo.db.Get(&row, `
		INSERT INTO forum_thread (course_id, title, created_by, is_locked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+threadColumns,
		th.CourseID, th.Title, th.CreatedBy, th.IsLocked, th.CreatedAt.UTC(), th.UpdatedAt.UTC(),
	)
	if err != nil {
		return forum.Thread{}, errors.Wrap(err, "inserting thread")
	}
	return row.toThread(), nil
}

func (repo *forumRepository) GetThreadByID(id int) (forum.Thread, error) {
	var row threadRow
	if err := repo.db.Get(&row, `SELECT `+threadColumns+` FROM forum_thread WHERE id = $1`, id); err != nil {
		return forum.Thread{}, trapNoRowsErr(err, forum.ErrThreadNotFound, "finding thread")
	}
	return row.toThread(), nil
}

func (repo *forumRepository) QueryThreadsByCourse(courseID int) ([]forum.Thread, error) {
	var rows []threadRow
	err := repo.db.Select(&rows, `SELECT `+threadColumns+` FROM forum_thread WHERE course_id = $1 ORDER BY updated_at DESC, id DESC`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying threads")
	}
	threads := make([]forum.Thread, 0, len(rows))
	for _, r := range rows {
		threads = append(threads, r.toThread())
	}
	return threads, nil
}

func (repo *forumRepository) UpdateThread(th forum.Thread, isLocked *bool) (forum.Thread, error) {
	var row threadRow
	err := repo.db.Get(&row, `
		UPDATE forum_thread SET
			title      = COALESCE(NULLIF($2, ''), title),
			is_locked  = COALESCE($3, is_locked),
			updated_at = COALESCE($4, updated_at)
		WHERE id = $1
		RETURNING `+threadColumns,
		th.ID, th.Title, null.BoolFromPtr(isLocked),
		null.NewTime(th.UpdatedAt.UTC(), !th.UpdatedAt.IsZero()),
	)
	if err != nil {
		return forum.Thread{}, trapNoRowsErr(err, forum.ErrThreadNotFound, "updating thread")
	}
	return row.toThread(), nil
}

func (repo *forumRepository) DeleteThreadsByID(ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM forum_thread WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting threads")
	}
	return nil
}

func (repo *forumRepository) CreatePost(p forum.Post) (forum.Post, error) {
	var row postRow
	err := repo.db.Get(&row, `
		INSERT INTO forum_post (thread_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING `+postColumns,
		p.ThreadID, p.AuthorID, p.Body, p.CreatedAt.UTC(),
	)
	if err != nil {
		return forum.Post{}, errors.Wrap(err, "inserting post")
	}
	return row.toPost(), nil
}

func (repo *forumRepository) GetPostByID(id int) (forum.Post, error) {
	var row postRow
	if err := repo.db.Get(&row, `SELECT `+postColumns+` FROM forum_post WHERE id = $1`, id); err != nil {
		return forum.Post{}, trapNoRowsErr(err, forum.ErrPostNotFound, "finding post")
	}
	return row.toPost(), nil
}

func (repo *forumRepository) QueryPostsByThread(threadID int) ([]forum.Post, error) {
	var rows []postRow
	err := repo.db.Select(&rows, `SELECT `+postColumns+` FROM forum_post WHERE thread_id = $1 ORDER BY id`, threadID)
	if err != nil {
		return nil, errors.Wrap(err, "querying posts")
	}
	posts := make([]forum.Post, 0, len(rows))
	for _, r := range rows {
		posts = append(posts, r.toPost())
	}
	return posts, nil
}

func (repo *forumRepository) CountPosts(threadID int) (int, error) {
	var count int
	if err := repo.db.Get(&count, `SELECT COUNT(*) FROM forum_post WHERE thread_id = $1`, threadID); err != nil {
		return 0, errors.Wrap(err, "counting posts")
	}
	return count, nil
}

func (repo *forumRepository) DeletePostsByID(ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM forum_post WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting posts")
	}
	return nil
}
