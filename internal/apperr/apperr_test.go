package apperr

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestError_IsKindAndUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("outer: %w", Wrap("blob.Put", ErrStorage, "write", cause))

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.True(t, Retryable(err))
	assert.Equal(t, "outer: blob.Put: write: disk full", err.Error())

	assert.Equal(t, "x.Op: not found", New("x.Op", ErrNotFound, "").Error())
}

func TestFromDB_Classification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"deadline", context.DeadlineExceeded, ErrBusy},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, ErrIntegrity},
		{"pgx fk", &pgconn.PgError{Code: "23503"}, ErrNotFound},
		{"pgx check", &pgconn.PgError{Code: "23514"}, ErrValidation},
		{"pgx lock timeout", &pgconn.PgError{Code: "55P03"}, ErrBusy},
		{"pq unique", &pq.Error{Code: "23505"}, ErrIntegrity},
		{"pq canceled", &pq.Error{Code: "57014"}, ErrBusy},
		{"wrapped pq", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), ErrIntegrity},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.ErrorIs(t, FromDB("op", c.err), c.want)
		})
	}
}

func TestFromDB_PassThrough(t *testing.T) {
	assert.Nil(t, FromDB("op", nil))

	known := Validation("v", "bad")
	assert.Same(t, known, FromDB("op", known))

	unknown := errors.New("weird")
	got := FromDB("op", unknown)
	assert.Equal(t, unknown, got)
	assert.False(t, Known(got))
	assert.False(t, Retryable(got))
}

func TestExpected_CancelledIsNotUnexpected(t *testing.T) {
	cancelled := fmt.Errorf("read: %w", context.Canceled)
	assert.True(t, Expected(cancelled))
	assert.False(t, Known(cancelled))
	assert.True(t, Expected(FromDB("x.Read", cancelled)))

	assert.True(t, Expected(NotFound("x", "none")))
	assert.False(t, Expected(errors.New("boom")))
	assert.False(t, Expected(nil))
}
