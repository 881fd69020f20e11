package sqlxrepos

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/recedu/reconline/core/attendance"
)

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

type sessionRow struct {
	ID        int       `db:"id"`
	CourseID  int       `db:"course_id"`
	Title     string    `db:"title"`
	StartsAt  time.Time `db:"starts_at"`
	EndsAt    time.Time `db:"ends_at"`
	CreatedBy int       `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

func (r sessionRow) toSession() attendance.Session {
	return attendance.Session(r)
}

type recordRow struct {
	ID          int       `db:"id"`
	SessionID   int       `db:"session_id"`
	StudentID   int       `db:"student_id"`
	CheckedInAt time.Time `db:"checked_in_at"`
}

func (r recordRow) toRecord() attendance.Record {
	return attendance.Record(r)
}

const (
	sessionColumns = `id, course_id, title, starts_at, ends_at, created_by, created_at`
	recordColumns  = `id, session_id, student_id, checked_in_at`
)

func (repo *attendanceRepository) CreateSession(ses attendance.Session) (attendance.Session, error) {
	var row sessionRow
	err := repo.db.Get(&row, `
		INSERT INTO attendance_session (course_id, title, starts_at, ends_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+sessionColumns,
		ses.CourseID, ses.Title, ses.StartsAt.UTC(), ses.EndsAt.UTC(), ses.CreatedBy, ses.CreatedAt.UTC(),
	)
	if err != nil {
		return attendance.Session{}, errors.Wrap(err, "inserting session")
	}
	return row.toSession(), nil
}

func (repo *attendanceRepository) GetSessionByID(id int) (attendance.Session, error) {
	var row sessionRow
	if err := repo.db.Get(&row, `SELECT `+sessionColumns+` FROM attendance_session WHERE id = $1`, id); err != nil {
		return attendance.Session{}, trapNoRowsErr(err, attendance.ErrNotFound, "finding session")
	}
	return row.toSession(), nil
}

func (repo *attendanceRepository) QuerySessionsByCourse(courseID int) ([]attendance.Session, error) {
	var rows []sessionRow
	err := repo.db.Select(&rows, `
		SELECT `+sessionColumns+` FROM attendance_session WHERE course_id = $1 ORDER BY starts_at, id`,
		courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]attendance.Session, 0, len(rows))
	for _, r := range rows {
		sessions = append(sessions, r.toSession())
	}
	return sessions, nil
}

func (repo *attendanceRepository) DeleteSessionsByID(ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM attendance_session WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting sessions")
	}
	return nil
}

func (repo *attendanceRepository) CreateRecord(rec attendance.Record) (attendance.Record, error) {
	var row recordRow
	err := repo.db.Get(&row, `
		INSERT INTO attendance_record (session_id, student_id, checked_in_at)
		VALUES ($1, $2, $3)
		RETURNING `+recordColumns,
		rec.SessionID, rec.StudentID, rec.CheckedInAt.UTC(),
	)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "inserting record")
	}
	return row.toRecord(), nil
}

func (repo *attendanceRepository) GetRecord(sessionID, studentID int) (attendance.Record, error) {
	var row recordRow
	err := repo.db.Get(&row, `SELECT `+recordColumns+` FROM attendance_record WHERE session_id = $1 AND student_id = $2`,
		sessionID, studentID)
	if err != nil {
		return attendance.Record{}, trapNoRowsErr(err, attendance.ErrRecordNotFound, "finding record")
	}
	return row.toRecord(), nil
}

func (repo *attendanceRepository) QueryRecordsBySession(sessionID int) ([]attendance.Record, error) {
	return repo.queryRecords("session_id = $1", sessionID)
}

func (repo *attendanceRepository) QueryRecordsByStudent(studentID int) ([]attendance.Record, error) {
	return repo.queryRecords("student_id = $1", studentID)
}

func (repo *attendanceRepository) queryRecords(where string, args ...interface{}) ([]attendance.Record, error) {
	var rows []recordRow
	if err := repo.db.Select(&rows, `SELECT `+recordColumns+` FROM attendance_record WHERE `+where+` ORDER BY id`, args...); err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	recs := make([]attendance.Record, 0, len(rows))
	for _, r := range rows {
		recs = append(recs, r.toRecord())
	}
	return recs, nil
}
