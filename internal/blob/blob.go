// Package blob хранит файлы сдач и сертификатов.
// Ключ стабилен для (user, week), поэтому повторная сдача перезаписывает файл, а не копит сироты.
package blob

import (
	"context"
	"fmt"
)

// Store: хранилище двоичных объектов.
type Store interface {
	// Put записывает data под ключом и возвращает локатор (что кладётся в БД).
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// Get читает объект по локатору; apperr.ErrNotFound, если его нет.
	Get(ctx context.Context, locator string) ([]byte, error)
}

func AssignmentKey(userID int64, week int) string {
	return fmt.Sprintf("assignments/user%d/week%d", userID, week)
}

func CertificateKey(userID int64) string {
	return fmt.Sprintf("certificates/user%d.png", userID)
}
