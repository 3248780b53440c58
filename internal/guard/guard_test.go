package guard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/course-tracker/internal/apperr"
)

func TestWrite_BusyWhenLockHeld(t *testing.T) {
	g := New(nil, nil, Options{Timeout: 50 * time.Millisecond})
	g.sem <- struct{}{} // блокировку держит кто-то другой
	defer func() { <-g.sem }()

	called := false
	err := g.Write(context.Background(), "test.busy", func(context.Context, *sql.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrBusy))
	assert.True(t, apperr.Retryable(err))
	assert.False(t, called, "fn не должна вызываться без блокировки")
}

func TestWrite_CancelledWhileWaiting(t *testing.T) {
	g := New(nil, nil, Options{Timeout: time.Minute})
	g.sem <- struct{}{}
	defer func() { <-g.sem }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.Write(ctx, "test.cancel", func(context.Context, *sql.Tx) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestWrite_DeadlineWhileWaitingIsBusy(t *testing.T) {
	g := New(nil, nil, Options{Timeout: time.Minute})
	g.sem <- struct{}{}
	defer func() { <-g.sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := g.Write(ctx, "test.deadline", func(context.Context, *sql.Tx) error { return nil })
	require.ErrorIs(t, err, apperr.ErrBusy)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", Outcome(nil))
	assert.Equal(t, "validation", Outcome(apperr.Validation("x", "bad")))
	assert.Equal(t, "not_found", Outcome(apperr.NotFound("x", "none")))
	assert.Equal(t, "busy", Outcome(apperr.New("x", apperr.ErrBusy, "")))
	assert.Equal(t, "storage", Outcome(apperr.Wrap("x", apperr.ErrStorage, "", errors.New("disk full"))))
	assert.Equal(t, "canceled", Outcome(fmt.Errorf("read: %w", context.Canceled)))
	assert.Equal(t, "error", Outcome(errors.New("boom")))
}

func TestKeyed_SerialisesSameKey(t *testing.T) {
	l := NewKeyed(time.Minute)
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "test.keyed", "u1/w1")
			if err != nil {
				t.Error(err)
				return
			}
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.size(), "ключи должны удаляться после освобождения")
}

func TestKeyed_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewKeyed(time.Minute)
	unlockA, err := l.Lock(context.Background(), "test.keyed", "a")
	require.NoError(t, err)
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock, err := l.Lock(context.Background(), "test.keyed", "b")
		if err != nil {
			t.Error(err)
			return
		}
		unlock()
		unlock() // повторный вызов безопасен
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ключ b заблокирован ключом a")
	}
}

func TestKeyed_BusyAfterTimeout(t *testing.T) {
	l := NewKeyed(50 * time.Millisecond)
	unlock, err := l.Lock(context.Background(), "test.keyed", "u1/w1")
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Lock(context.Background(), "test.keyed", "u1/w1")
	require.ErrorIs(t, err, apperr.ErrBusy)
	assert.True(t, apperr.Retryable(err))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.Equal(t, 1, l.size(), "неудачная попытка не должна оставлять ссылку на ключ")

	unlock()
	assert.Equal(t, 0, l.size())
	unlock2, err := l.Lock(context.Background(), "test.keyed", "u1/w1")
	require.NoError(t, err, "после освобождения ключ снова доступен")
	unlock2()
}

func TestKeyed_ContextWhileWaiting(t *testing.T) {
	l := NewKeyed(time.Minute)
	unlock, err := l.Lock(context.Background(), "test.keyed", "k")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Lock(ctx, "test.keyed", "k")
	require.ErrorIs(t, err, context.Canceled)

	dctx, dcancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer dcancel()
	_, err = l.Lock(dctx, "test.keyed", "k")
	require.ErrorIs(t, err, apperr.ErrBusy)
}
