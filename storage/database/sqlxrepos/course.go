package sqlxrepos

import (
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/recedu/reconline/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

type courseRow struct {
	ID          int       `db:"id"`
	Code        string    `db:"code"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	TeacherID   int       `db:"teacher_id"`
	Capacity    int       `db:"capacity"`
	AutoApprove bool      `db:"auto_approve"`
	IsPublished bool      `db:"is_published"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r courseRow) toCourse() course.Course {
	return course.Course(r)
}

type enrollmentRow struct {
	ID        int       `db:"id"`
	CourseID  int       `db:"course_id"`
	StudentID int       `db:"student_id"`
	Status    string    `db:"status"`
	Note      string    `db:"note"`
	DecidedBy null.Int  `db:"decided_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r enrollmentRow) toEnrollment() course.Enrollment {
	return course.Enrollment{
		ID:        r.ID,
		CourseID:  r.CourseID,
		StudentID: r.StudentID,
		Status:    r.Status,
		Note:      r.Note,
		DecidedBy: r.DecidedBy.Int,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const (
	courseColumns     = `id, code, title, description, teacher_id, capacity, auto_approve, is_published, created_at, updated_at`
	enrollmentColumns = `id, course_id, student_id, status, note, decided_by, created_at, updated_at`
)

func (repo *courseRepository) CheckCodeUniqueness(code string, excludedCourses ...course.Course) error {
	exclIDs := make([]int, 0, len(excludedCourses))
	for _, c := range excludedCourses {
		exclIDs = append(exclIDs, c.ID)
	}
	exclIDs = append(exclIDs, 0) // IN () is invalid sql

	q, args, err := sqlx.In(`SELECT EXISTS (SELECT 1 FROM course WHERE code = ? AND id NOT IN (?))`, code, exclIDs)
	if err != nil {
		return errors.Wrap(err, "building uniqueness query")
	}
	var exists bool
	if err := repo.db.Get(&exists, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking course uniqueness")
	}
	if exists {
		return course.ErrCodeExists
	}
	return nil
}

func (repo *courseRepository) CreateCourse(crs course.Course) (course.Course, error) {
	var row courseRow
	err := repo.db.Get(&row, `
		INSERT INTO course (code, title, description, teacher_id, capacity, auto_approve, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+courseColumns,
		crs.Code, crs.Title, crs.Description, crs.TeacherID, crs.Capacity, crs.AutoApprove,
		crs.IsPublished, crs.CreatedAt.UTC(), crs.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) QueryAllCourses() ([]course.Course, error) {
	var rows []courseRow
	if err := repo.db.Select(&rows, `SELECT `+courseColumns+` FROM course ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) GetCourseByID(id int) (course.Course, error) {
	var row courseRow
	if err := repo.db.Get(&row, `SELECT `+courseColumns+` FROM course WHERE id = $1`, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) GetCourseByCode(code string) (course.Course, error) {
	var row courseRow
	if err := repo.db.Get(&row, `SELECT `+courseColumns+` FROM course WHERE code = $1`, code); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "finding course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) FilterCourses(filter course.QueryFilter) ([]course.Course, error) {
	where := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "?"
	}

	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		where = append(where, "(code ILIKE "+arg(val)+" OR title ILIKE "+arg(val)+")")
	}
	if filter.TeacherID != 0 {
		where = append(where, "teacher_id = "+arg(filter.TeacherID))
	}
	if filter.IsPublished != nil {
		where = append(where, "is_published = "+arg(*filter.IsPublished))
	}

	q := `SELECT ` + courseColumns + ` FROM course`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"

	var rows []courseRow
	if err := repo.db.Select(&rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "filtering courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(crs course.Course, capacity *int, autoApprove, isPublished *bool) (course.Course, error) {
	var row courseRow
	err := repo.db.Get(&row, `
		UPDATE course SET
			code         = COALESCE(NULLIF($2, ''), code),
			title        = COALESCE(NULLIF($3, ''), title),
			description  = COALESCE(NULLIF($4, ''), description),
			teacher_id   = COALESCE(NULLIF($5, 0), teacher_id),
			capacity     = COALESCE($6, capacity),
			auto_approve = COALESCE($7, auto_approve),
			is_published = COALESCE($8, is_published),
			updated_at   = COALESCE($9, updated_at)
		WHERE id = $1
		RETURNING `+courseColumns,
		crs.ID, crs.Code, crs.Title, crs.Description, crs.TeacherID,
		null.IntFromPtr(capacity), null.BoolFromPtr(autoApprove), null.BoolFromPtr(isPublished),
		null.NewTime(crs.UpdatedAt.UTC(), !crs.UpdatedAt.IsZero()),
	)
	if err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound, "updating course")
	}
	return row.toCourse(), nil
}

func (repo *courseRepository) DeleteCoursesByID(ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM course WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting courses")
	}
	return nil
}

func (repo *courseRepository) CreateEnrollment(enr course.Enrollment) (course.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.Get(&row, `
		INSERT INTO enrollment (course_id, student_id, status, note, decided_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, $7)
		RETURNING `+enrollmentColumns,
		enr.CourseID, enr.StudentID, enr.Status, enr.Note, enr.DecidedBy,
		enr.CreatedAt.UTC(), enr.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *courseRepository) GetEnrollmentByID(id int) (course.Enrollment, error) {
	var row enrollmentRow
	if err := repo.db.Get(&row, `SELECT `+enrollmentColumns+` FROM enrollment WHERE id = $1`, id); err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrEnrollmentNotFound, "finding enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *courseRepository) GetEnrollment(courseID, studentID int) (course.Enrollment, error) {
	var row enrollmentRow
	// latest application wins
	err := repo.db.Get(&row, `
		SELECT `+enrollmentColumns+` FROM enrollment
		WHERE course_id = $1 AND student_id = $2
		ORDER BY id DESC LIMIT 1`,
		courseID, studentID,
	)
	if err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrEnrollmentNotFound, "finding enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *courseRepository) QueryEnrollmentsByCourse(courseID int) ([]course.Enrollment, error) {
	return repo.queryEnrollments("course_id = $1", courseID)
}

func (repo *courseRepository) QueryEnrollmentsByStudent(studentID int) ([]course.Enrollment, error) {
	return repo.queryEnrollments("student_id = $1", studentID)
}

func (repo *courseRepository) queryEnrollments(where string, args ...interface{}) ([]course.Enrollment, error) {
	var rows []enrollmentRow
	if err := repo.db.Select(&rows, `SELECT `+enrollmentColumns+` FROM enrollment WHERE `+where+` ORDER BY id`, args...); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	enrs := make([]course.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrs = append(enrs, r.toEnrollment())
	}
	return enrs, nil
}

func (repo *courseRepository) CountEnrollments(courseID int, status string) (int, error) {
	var count int
	err := repo.db.Get(&count, `SELECT COUNT(*) FROM enrollment WHERE course_id = $1 AND status = $2`, courseID, status)
	if err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return count, nil
}

func (repo *courseRepository) UpdateEnrollment(enr course.Enrollment) (course.Enrollment, error) {
	var row enrollmentRow
	err := repo.db.Get(&row, `
		UPDATE enrollment SET
			status     = $2,
			note       = $3,
			decided_by = NULLIF($4, 0),
			updated_at = $5
		WHERE id = $1
		RETURNING `+enrollmentColumns,
		enr.ID, enr.Status, enr.Note, enr.DecidedBy, enr.UpdatedAt.UTC(),
	)
	if err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrEnrollmentNotFound, "updating enrollment")
	}
	return row.toEnrollment(), nil
}
