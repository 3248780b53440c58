// Package eligibility решает, положен ли студенту сертификат, и выдаёт его.
// Допуск считается на лету по текущему состоянию заданий и нигде не кэшируется.
package eligibility

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/course-tracker/internal/apperr"
	"github.com/Spok95/course-tracker/internal/blob"
	"github.com/Spok95/course-tracker/internal/ctxutil"
	"github.com/Spok95/course-tracker/internal/db"
	"github.com/Spok95/course-tracker/internal/guard"
	"github.com/Spok95/course-tracker/internal/metrics"
	"github.com/Spok95/course-tracker/internal/models"
	"github.com/Spok95/course-tracker/internal/notify"
)

// Renderer рисует бланк; внешний коллаборатор без доступа к хранилищу.
type Renderer interface {
	Render(fullName string, meta models.ProgramMeta) ([]byte, error)
}

// Program: постоянная часть данных для бланка.
type Program struct {
	Title      string
	Issuer     string
	TotalWeeks int
}

type Service struct {
	g        *guard.Guard
	store    blob.Store
	program  Program
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
	serial   func() string
}

func New(g *guard.Guard, store blob.Store, program Program, notifier notify.Notifier, log *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		g:        g,
		store:    store,
		program:  program,
		notifier: notifier,
		log:      log.Named("eligibility"),
		now:      func() time.Time { return time.Now().UTC() },
		serial:   NewSerial,
	}
}

// NewSerial: номер вида CCA-1A2B3C4D.
func NewSerial() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "CCA-" + strings.ToUpper(id[:8])
}

func (s *Service) requiredWeeks() []int64 {
	weeks := make([]int64, 0, s.program.TotalWeeks)
	for w := 1; w <= s.program.TotalWeeks; w++ {
		weeks = append(weeks, int64(w))
	}
	return weeks
}

func (s *Service) eligible(ctx context.Context, q db.Querier, userID int64) (bool, error) {
	n, err := db.CountFinalGraded(ctx, q, userID, s.requiredWeeks())
	if err != nil {
		return false, err
	}
	return n == s.program.TotalWeeks, nil
}

// CanIssue: все недели 1..N приняты с оценкой.
func (s *Service) CanIssue(ctx context.Context, userID int64) (bool, error) {
	const op = "eligibility.CanIssue"
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()

	ok, err := db.UserExists(ctx, s.g.DB(), userID)
	if err != nil {
		return false, apperr.FromDB(op, err)
	}
	if !ok {
		return false, apperr.NotFound(op, fmt.Sprintf("user %d", userID))
	}
	can, err := s.eligible(ctx, s.g.DB(), userID)
	if err != nil {
		return false, apperr.FromDB(op, err)
	}
	return can, nil
}

// Get: выданный сертификат или nil.
func (s *Service) Get(ctx context.Context, userID int64) (*models.Certificate, error) {
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()
	c, err := db.GetCertificate(ctx, s.g.DB(), userID)
	if err != nil {
		return nil, apperr.FromDB("eligibility.Get", err)
	}
	return c, nil
}

// Open: PNG выданного сертификата.
func (s *Service) Open(ctx context.Context, userID int64) ([]byte, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("eligibility.Open", fmt.Sprintf("no certificate for user %d", userID))
	}
	return s.store.Get(ctx, c.FileRef)
}

// Issue выдаёт сертификат один раз. Уже выданный возвращается как есть, без перерисовки.
// Существование и допуск перепроверяются под блокировкой записи, так что параллельные вызовы дают одну запись.
func (s *Service) Issue(ctx context.Context, userID int64, r Renderer) (*models.Certificate, error) {
	const op = "eligibility.Issue"
	ctx = ctxutil.WithUserID(ctx, userID)

	if c, err := s.Get(ctx, userID); err != nil || c != nil {
		return c, err
	}

	var (
		out     *models.Certificate
		created bool
		user    *models.User
	)
	err := s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := db.GetCertificate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			out = existing
			return nil
		}

		user, err = db.GetUserByID(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperr.NotFound(op, fmt.Sprintf("user %d", userID))
		}
		ok, err := s.eligible(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation(op, "not every required week is approved with a grade")
		}

		issuedAt := s.now()
		serial := s.serial()
		png, err := r.Render(user.DisplayName(), models.ProgramMeta{
			Title: s.program.Title, Issuer: s.program.Issuer, TotalWeeks: s.program.TotalWeeks,
			Serial: serial, IssuedAt: issuedAt,
		})
		if err != nil {
			return fmt.Errorf("render certificate: %w", err)
		}
		ref, err := s.store.Put(ctx, blob.CertificateKey(userID), png, "image/png")
		if err != nil {
			return apperr.Wrap(op, apperr.ErrStorage, "store certificate", err)
		}
		out, err = db.InsertCertificate(ctx, tx, userID, serial, ref, issuedAt)
		created = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}
	if created {
		metrics.CertificatesIssued.Inc()
		s.log.Info("certificate issued", zap.Int64("user_id", userID), zap.String("serial", out.Serial))
		s.notifier.Notify(ctx, notify.Event{Kind: notify.CertificateIssued, UserID: userID, Username: user.Username, Serial: out.Serial})
	}
	return out, nil
}
