package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Spok95/course-tracker/internal/apperr"
	"github.com/Spok95/course-tracker/internal/ctxutil"
)

// InitSentry включает отправку ошибок, если задан SENTRY_DSN. Возвращает flush для defer в main.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          release,
		ServerName:       "lms",
		AttachStacktrace: true,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr отправляет только неожиданные ошибки. Валидация, not found, busy и отмена запроса считаются штатными исходами.
func CaptureErr(err error) {
	if err == nil || apperr.Expected(err) {
		return
	}
	sentry.CaptureException(err)
}

// CaptureErrCtx: то же, с тегами операции и пользователя из ctx.
func CaptureErrCtx(ctx context.Context, err error) {
	if err == nil || apperr.Expected(err) {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(eventTags(ctx))
		sentry.CaptureException(err)
	})
}

func eventTags(ctx context.Context) map[string]string {
	tags := map[string]string{}
	if op, ok := ctxutil.Op(ctx); ok {
		tags["op"] = op
	}
	if id, ok := ctxutil.UserID(ctx); ok {
		tags["user_id"] = strconv.FormatInt(id, 10)
	}
	if id, ok := ctxutil.ActorID(ctx); ok {
		tags["actor_id"] = strconv.FormatInt(id, 10)
	}
	return tags
}
