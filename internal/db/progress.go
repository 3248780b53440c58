package db

import (
	"context"
	"time"

	"github.com/Spok95/course-tracker/internal/models"
)

// SeedProgress создаёт строки для недель 0..totalWeeks, существующие не трогает.
func SeedProgress(ctx context.Context, q Querier, userID int64, totalWeeks int, now time.Time) error {
	for week := 0; week <= totalWeeks; week++ {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO progress (user_id, week, status, override_by_admin, updated_at)
			VALUES ($1, $2, $3, FALSE, $4)
			ON CONFLICT (user_id, week) DO NOTHING`,
			userID, week, string(models.DefaultStatus(week)), now,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetProgress: записи пользователя по возрастанию недели (только существующие).
func GetProgress(ctx context.Context, q Querier, userID int64) ([]models.ProgressRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, week, status, override_by_admin, updated_at
		FROM progress
		WHERE user_id = $1
		ORDER BY week`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.ProgressRecord
	for rows.Next() {
		var r models.ProgressRecord
		var status string
		if err := rows.Scan(&r.UserID, &r.Week, &status, &r.OverrideByAdmin, &r.UpdatedAt); err != nil {
			return nil, err
		}
		r.Status = models.WeekStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetWeekStatus: upsert статуса недели. override=nil оставляет флаг как есть (для новой строки: false).
func SetWeekStatus(ctx context.Context, q Querier, userID int64, week int, status models.WeekStatus, override *bool, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO progress (user_id, week, status, override_by_admin, updated_at)
		VALUES ($1, $2, $3, COALESCE($4, FALSE), $5)
		ON CONFLICT (user_id, week) DO UPDATE
		SET status = EXCLUDED.status,
		    override_by_admin = COALESCE($4, progress.override_by_admin),
		    updated_at = EXCLUDED.updated_at`,
		userID, week, string(status), override, now,
	)
	return err
}

// UnlockIfNotOverridden открывает неделю, только если админ её не трогал и она ещё заблокирована.
// Возвращает true, если строка изменилась.
func UnlockIfNotOverridden(ctx context.Context, q Querier, userID int64, week int, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE progress
		SET status = 'unlocked', updated_at = $3
		WHERE user_id = $1 AND week = $2
		  AND override_by_admin = FALSE
		  AND status = 'locked'`,
		userID, week, now,
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
