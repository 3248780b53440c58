package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Spok95/course-tracker/internal/apperr"
)

// Keyed держит блокировку на ключ и не даёт двум сценариям с одним ключом идти одновременно.
// Используется для пары «запись файла + коммит строки» по (user, week).
// Ожидание ограничено так же, как у Guard.Write: по таймауту ErrBusy.
type Keyed struct {
	mu      sync.Mutex
	byKey   map[string]*keyedEntry
	timeout time.Duration
}

type keyedEntry struct {
	ch   chan struct{} // буфер 1: занят, пока в канале лежит значение
	refs int
}

func NewKeyed(timeout time.Duration) *Keyed {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Keyed{byKey: make(map[string]*keyedEntry), timeout: timeout}
}

func (l *Keyed) ref(key string) *keyedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.byKey[key]
	if !ok {
		e = &keyedEntry{ch: make(chan struct{}, 1)}
		l.byKey[key] = e
	}
	e.refs++
	return e
}

func (l *Keyed) unref(key string, e *keyedEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.byKey, key)
	}
}

// Lock блокирует ключ и возвращает функцию освобождения. Неиспользуемые ключи удаляются.
func (l *Keyed) Lock(ctx context.Context, op, key string) (func(), error) {
	e := l.ref(key)

	t := time.NewTimer(l.timeout)
	defer t.Stop()
	select {
	case e.ch <- struct{}{}:
	case <-t.C:
		l.unref(key, e)
		return nil, apperr.New(op, apperr.ErrBusy, fmt.Sprintf("%s: lock not acquired within %s", key, l.timeout))
	case <-ctx.Done():
		l.unref(key, e)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperr.Wrap(op, apperr.ErrBusy, key+": deadline while waiting for lock", ctx.Err())
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.unref(key, e)
		})
	}, nil
}

func (l *Keyed) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}
