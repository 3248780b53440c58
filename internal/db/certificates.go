package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Spok95/course-tracker/internal/models"
)

// GetCertificate возвращает (nil, nil), если сертификата нет.
func GetCertificate(ctx context.Context, q Querier, userID int64) (*models.Certificate, error) {
	var c models.Certificate
	err := q.QueryRowContext(ctx, `
		SELECT id, user_id, serial, issued_at, file_ref
		FROM certificates
		WHERE user_id = $1`, userID,
	).Scan(&c.ID, &c.UserID, &c.Serial, &c.IssuedAt, &c.FileRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func InsertCertificate(ctx context.Context, q Querier, userID int64, serial, fileRef string, issuedAt time.Time) (*models.Certificate, error) {
	c := models.Certificate{UserID: userID, Serial: serial, FileRef: fileRef, IssuedAt: issuedAt}
	err := q.QueryRowContext(ctx, `
		INSERT INTO certificates (user_id, serial, issued_at, file_ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		userID, serial, issuedAt, fileRef,
	).Scan(&c.ID)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func CountCertificates(ctx context.Context, q Querier, userID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM certificates WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
