// Package guard сериализует все записи в общее хранилище.
//
// Запись проходит два уровня блокировки: семафор процесса и транзакционная
// advisory-блокировка PostgreSQL (на случай нескольких процессов на одной БД).
// Обе освобождаются на любом выходе: коммит, ошибка, паника.
// Чтение идёт мимо блокировок по отдельным соединениям пула.
package guard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Spok95/course-tracker/internal/apperr"
	"github.com/Spok95/course-tracker/internal/ctxutil"
	"github.com/Spok95/course-tracker/internal/metrics"
	"github.com/Spok95/course-tracker/internal/observability"
)

// DefaultLockKey: ключ pg_advisory_xact_lock для записей курса.
const DefaultLockKey int64 = 0x4c4d53 // "LMS"

type Options struct {
	Timeout     time.Duration // ожидание блокировки и длительность транзакции
	ReadTimeout time.Duration
	LockKey     int64
}

type Guard struct {
	db      *sql.DB
	sem     chan struct{}
	timeout time.Duration
	read    time.Duration
	lockKey int64
	log     *zap.Logger
	tracer  trace.Tracer
}

// TxFunc выполняется под блокировкой внутри транзакции. Ошибка приводит к откату.
type TxFunc func(ctx context.Context, tx *sql.Tx) error

func New(database *sql.DB, log *zap.Logger, opts Options) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = ctxutil.DefaultDBTimeout
	}
	if opts.LockKey == 0 {
		opts.LockKey = DefaultLockKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{
		db:      database,
		sem:     make(chan struct{}, 1),
		timeout: opts.Timeout,
		read:    opts.ReadTimeout,
		lockKey: opts.LockKey,
		log:     log.Named("guard"),
		tracer:  otel.Tracer("github.com/Spok95/course-tracker/internal/guard"),
	}
}

// DB: пул для чтения.
func (g *Guard) DB() *sql.DB { return g.db }

// Timeout: предел ожидания блокировки и длительности записи.
func (g *Guard) Timeout() time.Duration { return g.timeout }

// ReadContext: контекст с таймаутом чтения.
func (g *Guard) ReadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return ctxutil.WithDBTimeoutOf(ctx, g.read)
}

// Write захватывает блокировку записи, открывает транзакцию и выполняет fn.
// Повторов нет: при ErrBusy решение о повторе принимает вызывающий.
func (g *Guard) Write(ctx context.Context, op string, fn TxFunc) (err error) {
	ctx = ctxutil.WithOp(ctx, op)
	ctx, span := g.tracer.Start(ctx, op)
	defer span.End()
	if uid, ok := ctxutil.UserID(ctx); ok {
		span.SetAttributes(attribute.Int64("user_id", uid))
	}

	waitStart := time.Now()
	release, err := g.acquire(ctx, op)
	metrics.LockWait.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		g.finish(ctx, span, op, err, 0)
		return err
	}
	defer release()

	// После захвата операцию нельзя отменить снаружи, но она ограничена таймаутом.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	held := time.Now()
	defer func() {
		if r := recover(); r != nil {
			g.finish(ctx, span, op, fmt.Errorf("panic: %v", r), time.Since(held))
			panic(r)
		}
		g.finish(ctx, span, op, err, time.Since(held))
	}()
	return g.runTx(wctx, op, fn)
}

func (g *Guard) acquire(ctx context.Context, op string) (func(), error) {
	t := time.NewTimer(g.timeout)
	defer t.Stop()
	select {
	case g.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-g.sem }) }, nil
	case <-t.C:
		return nil, apperr.New(op, apperr.ErrBusy, fmt.Sprintf("write lock not acquired within %s", g.timeout))
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperr.Wrap(op, apperr.ErrBusy, "deadline while waiting for write lock", ctx.Err())
		}
		return nil, ctx.Err()
	}
}

func (g *Guard) runTx(ctx context.Context, op string, fn TxFunc) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.FromDB(op, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", g.timeout.Milliseconds())); err != nil {
		return apperr.FromDB(op, err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, g.lockKey); err != nil {
		return apperr.FromDB(op, err)
	}
	if err := fn(ctx, tx); err != nil {
		return apperr.FromDB(op, err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.FromDB(op, err)
	}
	committed = true
	return nil
}

func (g *Guard) finish(ctx context.Context, span trace.Span, op string, err error, held time.Duration) {
	outcome := Outcome(err)
	metrics.ObserveWrite(op, outcome, held)

	fields := append(ctxutil.Fields(ctx), zap.String("outcome", outcome), zap.Duration("held", held))
	if err == nil {
		g.log.Debug("write committed", fields...)
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	if apperr.Expected(err) {
		g.log.Info("write rejected", append(fields, zap.Error(err))...)
		return
	}
	g.log.Error("write failed", append(fields, zap.Error(err))...)
	observability.CaptureErrCtx(ctx, err)
}

// Outcome: метка исхода для метрик.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, apperr.ErrValidation):
		return "validation"
	case errors.Is(err, apperr.ErrNotFound):
		return "not_found"
	case errors.Is(err, apperr.ErrStorage):
		return "storage"
	case errors.Is(err, apperr.ErrBusy):
		return "busy"
	case errors.Is(err, apperr.ErrIntegrity):
		return "integrity"
	case errors.Is(err, apperr.ErrAuth):
		return "auth"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "error"
}
