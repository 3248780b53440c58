// Package assignment: сдача и проверка недельных заданий.
//
// Жизненный цикл: (нет) → submitted → approved | rejected. Повторная сдача из любого состояния
// возвращает строку в submitted и стирает результат проверки.
// Файл пишется в хранилище до коммита строки: строка никогда не ссылается на отсутствующий файл.
package assignment

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/course-tracker/internal/apperr"
	"github.com/Spok95/course-tracker/internal/blob"
	"github.com/Spok95/course-tracker/internal/ctxutil"
	"github.com/Spok95/course-tracker/internal/db"
	"github.com/Spok95/course-tracker/internal/guard"
	"github.com/Spok95/course-tracker/internal/models"
	"github.com/Spok95/course-tracker/internal/notify"
)

type Service struct {
	g          *guard.Guard
	store      blob.Store
	badges     *BadgeTable
	notifier   notify.Notifier
	totalWeeks int
	files      *guard.Keyed
	log        *zap.Logger
	now        func() time.Time
}

type Options struct {
	TotalWeeks int
	Badges     *BadgeTable
	Notifier   notify.Notifier
	Log        *zap.Logger
}

func New(g *guard.Guard, store blob.Store, opts Options) *Service {
	if opts.Badges == nil {
		opts.Badges = MustDefaultTable()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Service{
		g:          g,
		store:      store,
		badges:     opts.Badges,
		notifier:   opts.Notifier,
		totalWeeks: opts.TotalWeeks,
		files:      guard.NewKeyed(g.Timeout()),
		log:        opts.Log.Named("assignment"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Badges() *BadgeTable { return s.badges }

// Задания есть только у недель 1..N, у ориентации сдачи нет.
func (s *Service) checkWeek(op string, week int) error {
	if week < 1 || week > s.totalWeeks {
		return apperr.Validation(op, fmt.Sprintf("week %d out of range 1..%d", week, s.totalWeeks))
	}
	return nil
}

// Submit сохраняет файл и фиксирует сдачу. Если файл не записался, строка в БД не трогается.
func (s *Service) Submit(ctx context.Context, userID int64, week int, file []byte, originalName string) (*models.Assignment, error) {
	const op = "assignment.Submit"
	if err := s.checkWeek(op, week); err != nil {
		return nil, err
	}
	if len(file) == 0 {
		return nil, apperr.Validation(op, "file is empty")
	}
	originalName = cleanName(originalName)
	ctx = ctxutil.WithUserID(ctx, userID)

	user, err := s.user(ctx, op, userID)
	if err != nil {
		return nil, err
	}

	out, err := s.storeAndCommit(ctx, op, userID, week, file, originalName)
	if err != nil {
		return nil, err
	}
	s.log.Info("assignment submitted", zap.Int64("user_id", userID), zap.Int("week", week), zap.Int64("assignment_id", out.ID))
	s.notifier.Notify(ctx, notify.Event{
		Kind: notify.SubmissionReceived, UserID: userID, Username: user.Username, Week: week, OriginalName: originalName,
	})
	return out, nil
}

// Файл и строка одной сдачи должны принадлежать одной попытке, поэтому обе записи идут под блокировкой ключа.
// Блокировка снимается сразу после коммита, до уведомлений.
func (s *Service) storeAndCommit(ctx context.Context, op string, userID int64, week int, file []byte, originalName string) (*models.Assignment, error) {
	key := blob.AssignmentKey(userID, week)
	unlock, err := s.files.Lock(ctx, op, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	putCtx, cancel := context.WithTimeout(ctx, s.g.Timeout())
	ref, err := s.store.Put(putCtx, key, file, contentType(originalName))
	cancel()
	if err != nil {
		s.log.Warn("submission file not stored", zap.Int64("user_id", userID), zap.Int("week", week), zap.Error(err))
		return nil, apperr.Wrap(op, apperr.ErrStorage, "store file", err)
	}

	var out *models.Assignment
	err = s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		a, err := db.UpsertSubmission(ctx, tx, userID, week, ref, originalName, s.now())
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Decision: решение проверяющего.
type Decision struct {
	Status     models.AssignmentStatus // approved | rejected
	Grade      *float64
	Feedback   string
	ReviewerID int64
}

func (d Decision) validate(op string) error {
	switch d.Status {
	case models.Approved:
		if d.Grade == nil {
			return apperr.Validation(op, "approved assignment needs a grade")
		}
	case models.Rejected:
	default:
		return apperr.Validation(op, fmt.Sprintf("decision must be approved or rejected, got %q", d.Status))
	}
	if d.Grade != nil {
		g := *d.Grade
		if math.IsNaN(g) || g < 0 || g > 100 {
			return apperr.Validation(op, fmt.Sprintf("grade %v out of range 0..100", g))
		}
	}
	return nil
}

// Review выставляет решение по заданию. Некорректная оценка не меняет ничего.
func (s *Service) Review(ctx context.Context, assignmentID int64, d Decision) (*models.Assignment, error) {
	const op = "assignment.Review"
	if err := d.validate(op); err != nil {
		return nil, err
	}
	ctx = ctxutil.WithActorID(ctx, d.ReviewerID)

	var feedback *string
	if f := strings.TrimSpace(d.Feedback); f != "" {
		feedback = &f
	}
	var out *models.Assignment
	var username string
	err := s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		ok, err := db.SetReview(ctx, tx, assignmentID, db.Review{
			Status: d.Status, Grade: d.Grade, Feedback: feedback, ReviewedBy: d.ReviewerID, ReviewedAt: s.now(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound(op, fmt.Sprintf("assignment %d", assignmentID))
		}
		a, err := db.GetAssignmentByID(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		out = a
		u, err := db.GetUserByID(ctx, tx, a.UserID)
		if err == nil && u != nil {
			username = u.Username
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	ev := notify.Event{Kind: notify.AssignmentReviewed, UserID: out.UserID, Username: username, Week: out.Week,
		Status: string(out.Status), Grade: out.Grade}
	if out.Grade != nil {
		ev.Badge = s.badges.GradeToBadge(*out.Grade)
	}
	s.log.Info("assignment reviewed",
		zap.Int64("assignment_id", assignmentID), zap.Int64("user_id", out.UserID), zap.Int("week", out.Week),
		zap.String("status", string(out.Status)), zap.Int64("reviewer_id", d.ReviewerID))
	s.notifier.Notify(ctx, ev)
	return out, nil
}

func (s *Service) HasSubmission(ctx context.Context, userID int64, week int) (bool, error) {
	a, err := s.find(ctx, "assignment.HasSubmission", userID, week)
	return a != nil, err
}

// Grade: итоговая оценка недели с бейджем.
type Grade struct {
	Value float64
	Badge string
}

// GetGrade возвращает nil, пока работа не принята с оценкой. Оценка сброшенной сдачи не возвращается.
func (s *Service) GetGrade(ctx context.Context, userID int64, week int) (*Grade, error) {
	a, err := s.find(ctx, "assignment.GetGrade", userID, week)
	if err != nil || a == nil {
		return nil, err
	}
	if !a.Status.Final() || a.Grade == nil {
		return nil, nil
	}
	return &Grade{Value: *a.Grade, Badge: s.badges.GradeToBadge(*a.Grade)}, nil
}

// Find: сдача за неделю или nil.
func (s *Service) Find(ctx context.Context, userID int64, week int) (*models.Assignment, error) {
	return s.find(ctx, "assignment.Find", userID, week)
}

func (s *Service) find(ctx context.Context, op string, userID int64, week int) (*models.Assignment, error) {
	if err := s.checkWeek(op, week); err != nil {
		return nil, err
	}
	if _, err := s.user(ctx, op, userID); err != nil {
		return nil, err
	}
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()
	a, err := db.GetAssignment(ctx, s.g.DB(), userID, week)
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*models.Assignment, error) {
	const op = "assignment.Get"
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()
	a, err := db.GetAssignmentByID(ctx, s.g.DB(), id)
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	if a == nil {
		return nil, apperr.NotFound(op, fmt.Sprintf("assignment %d", id))
	}
	return a, nil
}

// ListAll: очередь проверки для админа.
func (s *Service) ListAll(ctx context.Context) ([]models.AssignmentWithUser, error) {
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()
	items, err := db.ListAssignments(ctx, s.g.DB())
	if err != nil {
		return nil, apperr.FromDB("assignment.ListAll", err)
	}
	return items, nil
}

// Summary: результат по каждой неделе 1..N. Несданные недели идут с пустым статусом.
func (s *Service) Summary(ctx context.Context, userID int64) ([]models.WeekResult, error) {
	const op = "assignment.Summary"
	if _, err := s.user(ctx, op, userID); err != nil {
		return nil, err
	}
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()
	list, err := db.ListUserAssignments(ctx, s.g.DB(), userID)
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return summarize(list, s.totalWeeks, s.badges), nil
}

func summarize(list []models.Assignment, totalWeeks int, badges *BadgeTable) []models.WeekResult {
	byWeek := make(map[int]models.Assignment, len(list))
	for _, a := range list {
		byWeek[a.Week] = a
	}
	out := make([]models.WeekResult, 0, totalWeeks)
	for week := 1; week <= totalWeeks; week++ {
		r := models.WeekResult{Week: week}
		if a, ok := byWeek[week]; ok {
			r.Status = a.Status
			if a.Status.Final() && a.Grade != nil {
				r.Grade = a.Grade
				r.Badge = badges.GradeToBadge(*a.Grade)
			}
		}
		out = append(out, r)
	}
	return out
}

// Open: содержимое сданного файла и его исходное имя.
func (s *Service) Open(ctx context.Context, userID int64, week int) ([]byte, string, error) {
	const op = "assignment.Open"
	a, err := s.find(ctx, op, userID, week)
	if err != nil {
		return nil, "", err
	}
	if a == nil {
		return nil, "", apperr.NotFound(op, fmt.Sprintf("no submission for user %d week %d", userID, week))
	}
	data, err := s.store.Get(ctx, a.FileRef)
	if err != nil {
		return nil, "", err
	}
	return data, a.OriginalName, nil
}

func (s *Service) user(ctx context.Context, op string, userID int64) (*models.User, error) {
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()
	u, err := db.GetUserByID(ctx, s.g.DB(), userID)
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	if u == nil {
		return nil, apperr.NotFound(op, fmt.Sprintf("user %d", userID))
	}
	return u, nil
}

// cleanName оставляет только базовое имя файла от клиента.
func cleanName(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if name == "" {
		return ""
	}
	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".doc":
		return "application/msword"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".zip":
		return "application/zip"
	}
	return "application/octet-stream"
}
