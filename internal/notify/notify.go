// Package notify: уведомления админам о событиях курса.
// Доставка best-effort: вызывается после коммита, ошибки только логируются и на результат операции не влияют.
package notify

import (
	"context"
	"fmt"
	"strings"
)

type Kind string

const (
	SubmissionReceived Kind = "submission_received"
	AssignmentReviewed Kind = "assignment_reviewed"
	CertificateIssued  Kind = "certificate_issued"
)

type Event struct {
	Kind         Kind
	UserID       int64
	Username     string
	Week         int
	OriginalName string
	Status       string
	Grade        *float64
	Badge        string
	Serial       string
}

type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Nop: уведомления выключены.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Text: текст сообщения для события.
func Text(e Event) string {
	who := e.Username
	if who == "" {
		who = fmt.Sprintf("user #%d", e.UserID)
	}
	switch e.Kind {
	case SubmissionReceived:
		name := strings.TrimSpace(e.OriginalName)
		if name == "" {
			return fmt.Sprintf("📥 %s сдал(а) задание за неделю %d.", who, e.Week)
		}
		return fmt.Sprintf("📥 %s сдал(а) задание за неделю %d: %s", who, e.Week, name)
	case AssignmentReviewed:
		s := fmt.Sprintf("📝 Неделя %d у %s: %s", e.Week, who, e.Status)
		if e.Grade != nil {
			s += fmt.Sprintf(", оценка %g", *e.Grade)
			if e.Badge != "" {
				s += fmt.Sprintf(" (%s)", e.Badge)
			}
		}
		return s
	case CertificateIssued:
		return fmt.Sprintf("🎓 %s получил(а) сертификат %s.", who, e.Serial)
	}
	return fmt.Sprintf("%s: %s", e.Kind, who)
}
