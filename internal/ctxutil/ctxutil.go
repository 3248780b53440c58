package ctxutil

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// приватные ключи, чтобы исключить коллизии
type key int

const (
	keyUserID key = iota
	keyActorID
	keyOpName
)

// WithUserID /UserID: над чьими данными идёт операция
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, keyUserID, userID)
}

func UserID(ctx context.Context) (int64, bool) {
	v := ctx.Value(keyUserID)
	if v == nil {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// WithActorID /ActorID: кто выполняет операцию (админ при проверке, студент при сдаче)
func WithActorID(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, keyActorID, actorID)
}

func ActorID(ctx context.Context) (int64, bool) {
	v := ctx.Value(keyActorID)
	if v == nil {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// WithOp /Op: имя операции (для логов/трейса)
func WithOp(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, keyOpName, name)
}

func Op(ctx context.Context) (string, bool) {
	v := ctx.Value(keyOpName)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Fields: поля контекста для zap.
func Fields(ctx context.Context) []zap.Field {
	var out []zap.Field
	if op, ok := Op(ctx); ok {
		out = append(out, zap.String("op", op))
	}
	if id, ok := UserID(ctx); ok {
		out = append(out, zap.Int64("user_id", id))
	}
	if id, ok := ActorID(ctx); ok {
		out = append(out, zap.Int64("actor_id", id))
	}
	return out
}

var (
	DefaultDBTimeout = 5 * time.Second
)

// WithTimeout: удобная обёртка над context.WithTimeout.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}

// WithDBTimeout: стандартный таймаут для чтения из БД.
func WithDBTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return WithDBTimeoutOf(parent, DefaultDBTimeout)
}

// WithDBTimeoutOf: то же с явным таймаутом. Если у родителя осталось меньше, берём остаток.
func WithDBTimeoutOf(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if dl, ok := parent.Deadline(); ok {
		if remain := time.Until(dl); remain < d {
			return context.WithTimeout(parent, remain)
		}
	}
	return WithTimeout(parent, d)
}
