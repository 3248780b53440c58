package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Spok95/course-tracker/internal/models"
)

const userColumns = `id, username, full_name, email, role, cohort, active, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var role string
	if err := row.Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &role, &u.Cohort, &u.IsActive, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

type NewUser struct {
	Username     string
	FullName     *string
	Email        *string
	Role         models.Role
	Cohort       string
	PasswordHash []byte
}

func CreateUser(ctx context.Context, q Querier, u NewUser) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO users (username, full_name, email, role, cohort, password_hash, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, now())
		RETURNING id`,
		u.Username, u.FullName, u.Email, string(u.Role), u.Cohort, u.PasswordHash,
	).Scan(&id)
	return id, err
}

// GetUserByID возвращает (nil, nil), если пользователя нет.
func GetUserByID(ctx context.Context, q Querier, id int64) (*models.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetUserByUsername возвращает (nil, nil), если пользователя нет.
func GetUserByUsername(ctx context.Context, q Querier, username string) (*models.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// GetCredentials: пользователь и хэш пароля по логину; (nil, nil, nil), если нет.
func GetCredentials(ctx context.Context, q Querier, username string) (*models.User, []byte, error) {
	var hash []byte
	var u models.User
	var role string
	err := q.QueryRowContext(ctx, `SELECT `+userColumns+`, password_hash FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &role, &u.Cohort, &u.IsActive, &u.CreatedAt, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	u.Role = models.Role(role)
	return &u, hash, nil
}

func UserExists(ctx context.Context, q Querier, id int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// SetPasswordHash возвращает false, если логин не найден.
func SetPasswordHash(ctx context.Context, q Querier, username string, hash []byte) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE username = $2`, hash, username)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func SetUserActive(ctx context.Context, q Querier, id int64, active bool) (bool, error) {
	res, err := q.ExecContext(ctx, `UPDATE users SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func ListStudents(ctx context.Context, q Querier) ([]models.User, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'student'
		ORDER BY cohort, LOWER(username)`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func ListStudentIDs(ctx context.Context, q Querier) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM users WHERE role = 'student' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func ListCohorts(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT DISTINCT cohort FROM users WHERE role = 'student' ORDER BY cohort`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
