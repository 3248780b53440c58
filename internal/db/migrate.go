package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	gooseOnce sync.Once
	gooseErr  error
)

// настройки goose глобальные, выставляем один раз на процесс
func setupGoose() error {
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations)
		gooseErr = goose.SetDialect("postgres")
	})
	return gooseErr
}

// Migrate применяет упорядоченный список версионных миграций один раз при старте.
func Migrate(ctx context.Context, database *sql.DB, log *zap.SugaredLogger) error {
	if err := setupGoose(); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if log != nil {
		goose.SetLogger(gooseLogger{log})
	} else {
		goose.SetLogger(goose.NopLogger())
	}
	if err := goose.UpContext(ctx, database, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SchemaVersion: текущая версия схемы (для /healthz и CLI).
// Читает таблицу goose напрямую и не трогает глобальное состояние goose, поэтому безопасна из параллельных запросов.
func SchemaVersion(ctx context.Context, q Querier) (int64, error) {
	var v int64
	err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return v, nil
}

type gooseLogger struct{ s *zap.SugaredLogger }

func (l gooseLogger) Fatalf(format string, v ...interface{}) { l.s.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...interface{}) { l.s.Infof(format, v...) }
