// Package app собирает сервисы курса из конфигурации.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/Spok95/course-tracker/internal/assignment"
	"github.com/Spok95/course-tracker/internal/auth"
	"github.com/Spok95/course-tracker/internal/blob"
	"github.com/Spok95/course-tracker/internal/certrender"
	"github.com/Spok95/course-tracker/internal/config"
	"github.com/Spok95/course-tracker/internal/eligibility"
	"github.com/Spok95/course-tracker/internal/export"
	"github.com/Spok95/course-tracker/internal/guard"
	"github.com/Spok95/course-tracker/internal/models"
	"github.com/Spok95/course-tracker/internal/notify"
	"github.com/Spok95/course-tracker/internal/progress"
)

type App struct {
	Guard        *guard.Guard
	Progress     *progress.Service
	Assignments  *assignment.Service
	Certificates *eligibility.Service
	Auth         *auth.Service
	Export       *export.Exporter
	Renderer     *certrender.Renderer
	TotalWeeks   int
}

// NewStore выбирает хранилище файлов по STORAGE.
func NewStore(ctx context.Context, cfg config.StorageConfig) (blob.Store, error) {
	switch cfg.Type {
	case "minio":
		return blob.NewMinioStore(ctx, blob.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Secure:    cfg.MinioSecure,
		})
	default:
		return blob.NewFSStore(cfg.UploadDir)
	}
}

// NewNotifier: Telegram при заданных BOT_TOKEN и ADMIN_IDS, иначе заглушка.
func NewNotifier(cfg *config.Config, log *zap.Logger) notify.Notifier {
	if cfg.BotToken == "" || len(cfg.AdminIDs) == 0 {
		return notify.Nop{}
	}
	tg, err := notify.NewTelegram(cfg.BotToken, cfg.AdminIDs, log)
	if err != nil {
		log.Warn("telegram notifier disabled", zap.Error(err))
		return notify.Nop{}
	}
	return tg
}

func New(ctx context.Context, cfg *config.Config, database *sql.DB, store blob.Store, notifier notify.Notifier, log *zap.Logger) (*App, error) {
	badges, err := assignment.ParseThresholds(cfg.BadgeThresholds, cfg.BadgeFallback)
	if err != nil {
		return nil, fmt.Errorf("BADGE_THRESHOLDS: %w", err)
	}
	renderer, err := certrender.New(cfg.CertFont)
	if err != nil {
		return nil, err
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	g := guard.New(database, log, guard.Options{Timeout: cfg.WriteLockTimeout, ReadTimeout: cfg.DBTimeout})
	prog := progress.New(g, cfg.TotalWeeks, log)
	assign := assignment.New(g, store, assignment.Options{
		TotalWeeks: cfg.TotalWeeks, Badges: badges, Notifier: notifier, Log: log,
	})
	certs := eligibility.New(g, store, eligibility.Program{
		Title: cfg.ProgramTitle, Issuer: cfg.ProgramIssuer, TotalWeeks: cfg.TotalWeeks,
	}, notifier, log)
	authSvc, err := auth.New(g, prog, cfg.BcryptCost, log)
	if err != nil {
		return nil, err
	}

	return &App{
		Guard:        g,
		Progress:     prog,
		Assignments:  assign,
		Certificates: certs,
		Auth:         authSvc,
		Export:       export.New(authSvc, prog, assign, certs),
		Renderer:     renderer,
		TotalWeeks:   cfg.TotalWeeks,
	}, nil
}

// IssueCertificate выдаёт сертификат штатным рендерером.
func (a *App) IssueCertificate(ctx context.Context, userID int64) (*models.Certificate, error) {
	return a.Certificates.Issue(ctx, userID, a.Renderer)
}
