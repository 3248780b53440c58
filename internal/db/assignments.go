package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Spok95/course-tracker/internal/models"
	"github.com/lib/pq"
)

const assignmentColumns = `a.id, a.user_id, a.week, a.file_ref, a.original_name, a.submitted_at, a.status,
	a.grade, a.feedback, a.reviewed_at, a.reviewed_by`

type rowScanner interface{ Scan(...any) error }

func scanAssignment(row rowScanner, extra ...any) (*models.Assignment, error) {
	var a models.Assignment
	var status string
	dest := []any{&a.ID, &a.UserID, &a.Week, &a.FileRef, &a.OriginalName, &a.SubmittedAt, &status,
		&a.Grade, &a.Feedback, &a.ReviewedAt, &a.ReviewedBy}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	a.Status = models.AssignmentStatus(status)
	return &a, nil
}

// UpsertSubmission: первая сдача создаёт строку, повторная перезаписывает её на месте
// и сбрасывает результат проверки.
func UpsertSubmission(ctx context.Context, q Querier, userID int64, week int, fileRef, originalName string, now time.Time) (*models.Assignment, error) {
	row := q.QueryRowContext(ctx, `
		INSERT INTO assignments AS a (user_id, week, file_ref, original_name, submitted_at, status)
		VALUES ($1, $2, $3, $4, $5, 'submitted')
		ON CONFLICT (user_id, week) DO UPDATE
		SET file_ref      = EXCLUDED.file_ref,
		    original_name = EXCLUDED.original_name,
		    submitted_at  = EXCLUDED.submitted_at,
		    status        = 'submitted',
		    grade         = NULL,
		    feedback      = NULL,
		    reviewed_at   = NULL,
		    reviewed_by   = NULL
		RETURNING `+assignmentColumns,
		userID, week, fileRef, originalName, now,
	)
	return scanAssignment(row)
}

// GetAssignmentByID возвращает (nil, nil), если не найдено.
func GetAssignmentByID(ctx context.Context, q Querier, id int64) (*models.Assignment, error) {
	a, err := scanAssignment(q.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments a WHERE a.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

// GetAssignment возвращает (nil, nil), если сдачи нет.
func GetAssignment(ctx context.Context, q Querier, userID int64, week int) (*models.Assignment, error) {
	a, err := scanAssignment(q.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+` FROM assignments a WHERE a.user_id = $1 AND a.week = $2`, userID, week))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return a, err
}

type Review struct {
	Status     models.AssignmentStatus
	Grade      *float64
	Feedback   *string
	ReviewedBy int64
	ReviewedAt time.Time
}

// SetReview возвращает false, если задания с таким id нет.
func SetReview(ctx context.Context, q Querier, id int64, r Review) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE assignments
		SET status = $1, grade = $2, feedback = $3, reviewed_at = $4, reviewed_by = $5
		WHERE id = $6`,
		string(r.Status), r.Grade, r.Feedback, r.ReviewedAt, r.ReviewedBy, id,
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListAssignments возвращает очередь проверки: все сдачи, свежие сверху.
func ListAssignments(ctx context.Context, q Querier) ([]models.AssignmentWithUser, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+assignmentColumns+`, u.username, u.cohort
		FROM assignments a
		JOIN users u ON u.id = a.user_id
		ORDER BY a.submitted_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.AssignmentWithUser
	for rows.Next() {
		var item models.AssignmentWithUser
		a, err := scanAssignment(rows, &item.Username, &item.Cohort)
		if err != nil {
			return nil, err
		}
		item.Assignment = *a
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListUserAssignments: сдачи пользователя по неделям.
func ListUserAssignments(ctx context.Context, q Querier, userID int64) ([]models.Assignment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments a
		WHERE a.user_id = $1
		ORDER BY a.week`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CountFinalGraded: сколько из weeks имеют принятую работу с оценкой.
func CountFinalGraded(ctx context.Context, q Querier, userID int64, weeks []int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM assignments
		WHERE user_id = $1
		  AND week = ANY($2)
		  AND status = 'approved'
		  AND grade IS NOT NULL`,
		userID, pq.Array(weeks),
	).Scan(&n)
	return n, err
}
