package inmemdb

import (
	"sync"

	"github.com/recedu/reconline/core/assignment"
	"github.com/recedu/reconline/core/attendance"
	"github.com/recedu/reconline/core/chat"
	"github.com/recedu/reconline/core/course"
	"github.com/recedu/reconline/core/forum"
	"github.com/recedu/reconline/core/user"
)

// DB is an in-memory database. It backs unit tests and the dev server
// when no Postgres instance is around.
type DB struct {
	mutex sync.RWMutex
	seq   int

	users       map[int]*user.User
	courses     map[int]*course.Course
	enrollments map[int]*course.Enrollment
	assignments map[int]*assignment.Assignment
	submissions map[int]*assignment.Submission
	sessions    map[int]*attendance.Session
	records     map[int]*attendance.Record
	threads     map[int]*forum.Thread
	posts       map[int]*forum.Post
	rooms       map[int]*chat.Room
	messages    map[string]*chat.Message
}

func NewDB() *DB {
	return &DB{
		users:       make(map[int]*user.User),
		courses:     make(map[int]*course.Course),
		enrollments: make(map[int]*course.Enrollment),
		assignments: make(map[int]*assignment.Assignment),
		submissions: make(map[int]*assignment.Submission),
		sessions:    make(map[int]*attendance.Session),
		records:     make(map[int]*attendance.Record),
		threads:     make(map[int]*forum.Thread),
		posts:       make(map[int]*forum.Post),
		rooms:       make(map[int]*chat.Room),
		messages:    make(map[string]*chat.Message),
	}
}

// nextID must be called with db.mutex held.
func (db *DB) nextID() int {
	db.seq++
	return db.seq
}
