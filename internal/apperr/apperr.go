// Package apperr: типизированные ошибки ядра.
// Вызывающий код проверяет вид ошибки через errors.Is(err, apperr.ErrNotFound) и т.п.
package apperr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Виды ошибок.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrStorage    = errors.New("storage error")
	ErrBusy       = errors.New("busy")
	ErrIntegrity  = errors.New("integrity violation")
	ErrAuth       = errors.New("authentication failed")
)

// Error: ошибка с контекстом операции.
type Error struct {
	Op   string // например "progress.AdminLock"
	Kind error  // один из Err*
	Msg  string
	Err  error // первопричина, может быть nil
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is сопоставляет по виду ошибки, затем по первопричине.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && e.Kind == target {
		return true
	}
	return false
}

func New(op string, kind error, msg string) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg}
}

func Wrap(op string, kind error, msg string, err error) *Error {
	return &Error{Op: op, Kind: kind, Msg: msg, Err: err}
}

func Validation(op, msg string) error { return New(op, ErrValidation, msg) }
func NotFound(op, msg string) error   { return New(op, ErrNotFound, msg) }

// Retryable: можно ли повторить операцию позже (решает вызывающий, ядро само не повторяет).
func Retryable(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrStorage)
}

// Known: ошибка уже классифицирована одним из видов.
func Known(err error) bool {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrStorage, ErrBusy, ErrIntegrity, ErrAuth} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// Expected: штатный исход, который не надо отправлять в Sentry.
// Кроме классифицированных видов сюда входит отмена запроса вызывающим.
func Expected(err error) bool {
	return Known(err) || errors.Is(err, context.Canceled)
}

// SQLSTATE коды, которые имеют смысл для ядра.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeLockNotAvailable    = "55P03"
	codeQueryCanceled       = "57014"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// FromDB переводит ошибку драйвера в вид ядра. Уже классифицированные ошибки возвращаются как есть,
// неизвестные: тоже как есть (их дальше отправляют в Sentry).
func FromDB(op string, err error) error {
	if err == nil || Known(err) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(op, ErrNotFound, "", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(op, ErrBusy, "timed out", err)
	}
	switch sqlState(err) {
	case codeUniqueViolation:
		return Wrap(op, ErrIntegrity, "duplicate", err)
	case codeForeignKeyViolation:
		return Wrap(op, ErrNotFound, "referenced row does not exist", err)
	case codeCheckViolation:
		return Wrap(op, ErrValidation, "constraint check failed", err)
	case codeLockNotAvailable, codeQueryCanceled:
		return Wrap(op, ErrBusy, "lock wait timed out", err)
	}
	return err
}
