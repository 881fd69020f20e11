package attendance

import (
	"errors"
	"time"

	"github.com/recedu/reconline/core"
	"github.com/recedu/reconline/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("session not found")
	ErrRecordNotFound   = errors.New("attendance record not found")
	ErrAlreadyCheckedIn = errors.New("student has already checked in to this session")
	ErrMintForbidden    = errors.New("only staff may mint check-in tokens")
)

type (
	Repository interface {
		CreateSession(ses Session) (Session, error)
		GetSessionByID(id int) (Session, error)
		QuerySessionsByCourse(courseID int) ([]Session, error)
		DeleteSessionsByID(ids ...int) error

		CreateRecord(rec Record) (Record, error)
		GetRecord(sessionID, studentID int) (Record, error)
		QueryRecordsBySession(sessionID int) ([]Record, error)
		QueryRecordsByStudent(studentID int) ([]Record, error)
	}

	Service struct {
		repo Repository
		conf *core.Config
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, conf: conf}
}

func (svc *Service) CreateSession(creator user.User, ns NewSession) (Session, error) {
	if !(creator.IsTeacher() || creator.IsAdmin()) {
		return Session{}, ErrMintForbidden
	}
	ses := Session{
		CourseID:  ns.CourseID,
		Title:     ns.Title,
		StartsAt:  ns.StartsAt,
		EndsAt:    ns.EndsAt,
		CreatedBy: creator.ID,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateSession(ses)
}

func (svc *Service) GetSession(id int) (Session, error) {
	return svc.repo.GetSessionByID(id)
}

func (svc *Service) CourseSessions(courseID int) ([]Session, error) {
	return svc.repo.QuerySessionsByCourse(courseID)
}

func (svc *Service) DeleteSessions(ids ...int) error {
	return svc.repo.DeleteSessionsByID(ids...)
}

// MintCheckInToken produces the signed token a teacher projects as a QR
// code at the start of class.
func (svc *Service) MintCheckInToken(sessionID int, minter user.User) (string, error) {
	if !(minter.IsTeacher() || minter.IsAdmin()) {
		return "", ErrMintForbidden
	}
	if _, err := svc.repo.GetSessionByID(sessionID); err != nil {
		return "", err
	}
	return MakeCheckInToken(svc.conf, sessionID)
}

// CheckIn verifies the scanned token and records attendance. A student is
// recorded at most once per session; repeat scans fail with
// ErrAlreadyCheckedIn.
func (svc *Service) CheckIn(sessionID int, token string, student user.User) (Record, error) {
	if _, err := svc.repo.GetSessionByID(sessionID); err != nil {
		return Record{}, err
	}
	if err := VerifyCheckInToken(svc.conf, sessionID, token); err != nil {
		return Record{}, err
	}

	if _, err := svc.repo.GetRecord(sessionID, student.ID); err == nil {
		return Record{}, ErrAlreadyCheckedIn
	} else if err != ErrRecordNotFound {
		return Record{}, err
	}

	rec := Record{
		SessionID:   sessionID,
		StudentID:   student.ID,
		CheckedInAt: time.Now().UTC(),
	}
	return svc.repo.CreateRecord(rec)
}

func (svc *Service) SessionRecords(sessionID int) ([]Record, error) {
	return svc.repo.QueryRecordsBySession(sessionID)
}

func (svc *Service) StudentRecords(studentID int) ([]Record, error) {
	return svc.repo.QueryRecordsByStudent(studentID)
}
