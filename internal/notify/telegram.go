package notify

import (
	"context"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/Spok95/course-tracker/internal/metrics"
	"github.com/Spok95/course-tracker/internal/observability"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram рассылает события в личку админам из ADMIN_IDS.
type Telegram struct {
	bot    sender
	admins []int64
	log    *zap.Logger
}

// sendTimeout ограничивает один запрос к Bot API.
const sendTimeout = 10 * time.Second

func NewTelegram(token string, admins []int64, log *zap.Logger) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: sendTimeout})
	if err != nil {
		return nil, err
	}
	return newTelegram(bot, admins, log), nil
}

func newTelegram(bot sender, admins []int64, log *zap.Logger) *Telegram {
	if log == nil {
		log = zap.NewNop()
	}
	return &Telegram{bot: bot, admins: admins, log: log.Named("notify")}
}

// Notify не возвращает ошибок: уведомление не влияет на исход операции. Отменённый ctx прекращает рассылку.
func (t *Telegram) Notify(ctx context.Context, e Event) {
	text := Text(e)
	for _, chatID := range t.admins {
		if ctx.Err() != nil {
			t.log.Warn("telegram notify aborted", zap.String("kind", string(e.Kind)), zap.Error(ctx.Err()))
			return
		}
		if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
			metrics.NotifyErrors.Inc()
			t.log.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.String("kind", string(e.Kind)), zap.Error(err))
			if isSystemErr(err) {
				observability.CaptureErr(err)
			}
		}
	}
}

// Системные: 5xx, 429, timeout. 400-ки и типичные телеграм-валидации в Sentry не шлём.
func isSystemErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	if strings.Contains(s, "Bad Request") ||
		strings.Contains(s, "chat not found") ||
		strings.Contains(s, "bot was blocked") {
		return false
	}
	return strings.Contains(s, "429") || strings.Contains(s, "502") || strings.Contains(s, "503") || strings.Contains(s, "timeout")
}
