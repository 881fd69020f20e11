package sqlxrepos

import (
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/recedu/reconline/core/assignment"
)

type assignmentRepository struct {
	db *sqlx.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{db: db}
}

type assignmentRow struct {
	ID          int       `db:"id"`
	CourseID    int       `db:"course_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	DueAt       null.Time `db:"due_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r assignmentRow) toAssignment() assignment.Assignment {
	return assignment.Assignment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		DueAt:       r.DueAt.Time,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type submissionRow struct {
	ID           int       `db:"id"`
	AssignmentID int       `db:"assignment_id"`
	StudentID    int       `db:"student_id"`
	Content      string    `db:"content"`
	Status       string    `db:"status"`
	Feedback     string    `db:"feedback"`
	ReviewedBy   null.Int  `db:"reviewed_by"`
	SubmittedAt  time.Time `db:"submitted_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r submissionRow) toSubmission() assignment.Submission {
	return assignment.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Content:      r.Content,
		Status:       r.Status,
		Feedback:     r.Feedback,
		ReviewedBy:   r.ReviewedBy.Int,
		SubmittedAt:  r.SubmittedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const (
	assignmentColumns = `id, course_id, title, description, due_at, created_at, updated_at`
	submissionColumns = `id, assignment_id, student_id, content, status, feedback, reviewed_by, submitted_at, updated_at`
)

func (repo *assignmentRepository) CreateAssignment(asg assignment.Assignment) (assignment.Assignment, error) {
	var row assignmentRow
	err := repo.db.Get(&row, `
		INSERT INTO assignment (course_id, title, description, due_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+assignmentColumns,
		asg.CourseID, asg.Title, asg.Description,
		null.NewTime(asg.DueAt.UTC(), !asg.DueAt.IsZero()),
		asg.CreatedAt.UTC(), asg.UpdatedAt.UTC(),
	)
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return row.toAssignment(), nil
}

func (repo *assignmentRepository) GetAssignmentByID(id int) (assignment.Assignment, error) {
	var row assignmentRow
	if err := repo.db.Get(&row, `SELECT `+assignmentColumns+` FROM assignment WHERE id = $1`, id); err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "finding assignment")
	}
	return row.toAssignment(), nil
}

func (repo *assignmentRepository) QueryAssignmentsByCourse(courseID int) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	err := repo.db.Select(&rows, `SELECT `+assignmentColumns+` FROM assignment WHERE course_id = $1 ORDER BY id`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	asgs := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		asgs = append(asgs, r.toAssignment())
	}
	return asgs, nil
}

func (repo *assignmentRepository) UpdateAssignment(asg assignment.Assignment, dueAt *time.Time) (assignment.Assignment, error) {
	var row assignmentRow
	err := repo.db.Get(&row, `
		UPDATE assignment SET
			title       = COALESCE(NULLIF($2, ''), title),
			description = COALESCE(NULLIF($3, ''), description),
			due_at      = COALESCE($4, due_at),
			updated_at  = COALESCE($5, updated_at)
		WHERE id = $1
		RETURNING `+assignmentColumns,
		asg.ID, asg.Title, asg.Description,
		null.TimeFromPtr(dueAt),
		null.NewTime(asg.UpdatedAt.UTC(), !asg.UpdatedAt.IsZero()),
	)
	if err != nil {
		return assignment.Assignment{}, trapNoRowsErr(err, assignment.ErrNotFound, "updating assignment")
	}
	return row.toAssignment(), nil
}

func (repo *assignmentRepository) DeleteAssignmentsByID(ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM assignment WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err := repo.db.Exec(repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting assignments")
	}
	return nil
}

func (repo *assignmentRepository) CreateSubmission(sub assignment.Submission) (assignment.Submission, error) {
	var row submissionRow
	err := repo.db.Get(&row, `
		INSERT INTO submission (assignment_id, student_id, content, status, feedback, reviewed_by, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0), $7, $8)
		RETURNING `+submissionColumns,
		sub.AssignmentID, sub.StudentID, sub.Content, sub.Status, sub.Feedback, sub.ReviewedBy,
		sub.SubmittedAt.UTC(), sub.UpdatedAt.UTC(),
	)
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "inserting submission")
	}
	return row.toSubmission(), nil
}

func (repo *assignmentRepository) GetSubmissionByID(id int) (assignment.Submission, error) {
	var row submissionRow
	if err := repo.db.Get(&row, `SELECT `+submissionColumns+` FROM submission WHERE id = $1`, id); err != nil {
		return assignment.Submission{}, trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "finding submission")
	}
	return row.toSubmission(), nil
}

func (repo *assignmentRepository) GetSubmission(assignmentID, studentID int) (assignment.Submission, error) {
	var row submissionRow
	err := repo.db.Get(&row, `SELECT `+submissionColumns+` FROM submission WHERE assignment_id = $1 AND student_id = $2`,
		assignmentID, studentID)
	if err != nil {
		return assignment.Submission{}, trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "finding submission")
	}
	return row.toSubmission(), nil
}

func (repo *assignmentRepository) QuerySubmissionsByAssignment(assignmentID int) ([]assignment.Submission, error) {
	return repo.querySubmissions("assignment_id = $1", assignmentID)
}

func (repo *assignmentRepository) QuerySubmissionsByStudent(studentID int) ([]assignment.Submission, error) {
	return repo.querySubmissions("student_id = $1", studentID)
}

func (repo *assignmentRepository) querySubmissions(where string, args ...interface{}) ([]assignment.Submission, error) {
	var rows []submissionRow
	if err := repo.db.Select(&rows, `SELECT `+submissionColumns+` FROM submission WHERE `+where+` ORDER BY id`, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]assignment.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}

func (repo *assignmentRepository) UpdateSubmission(sub assignment.Submission) (assignment.Submission, error) {
	var row submissionRow
	err := repo.db.Get(&row, `
		UPDATE submission SET
			content      = $2,
			status       = $3,
			feedback     = $4,
			reviewed_by  = NULLIF($5, 0),
			submitted_at = $6,
			updated_at   = $7
		WHERE id = $1
		RETURNING `+submissionColumns,
		sub.ID, sub.Content, sub.Status, sub.Feedback, sub.ReviewedBy,
		sub.SubmittedAt.UTC(), sub.UpdatedAt.UTC(),
	)
	if err != nil {
		return assignment.Submission{}, trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "updating submission")
	}
	return row.toSubmission(), nil
}
