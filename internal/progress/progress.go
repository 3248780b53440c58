// Package progress: доступ студента к неделям курса.
//
// Статусы: locked, unlocked, completed. Неделя 0 (ориентация) никогда не бывает locked.
// Единственный автоматический переход между неделями: завершение ориентации открывает неделю 1,
// если админ её не переопределял.
package progress

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/course-tracker/internal/apperr"
	"github.com/Spok95/course-tracker/internal/ctxutil"
	"github.com/Spok95/course-tracker/internal/db"
	"github.com/Spok95/course-tracker/internal/guard"
	"github.com/Spok95/course-tracker/internal/models"
)

type Service struct {
	g          *guard.Guard
	totalWeeks int
	log        *zap.Logger
	now        func() time.Time
}

func New(g *guard.Guard, totalWeeks int, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{g: g, totalWeeks: totalWeeks, log: log.Named("progress"), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) TotalWeeks() int { return s.totalWeeks }

// Map: статус каждой недели 0..N.
type Map map[int]models.WeekStatus

func (s *Service) checkWeek(op string, week int) error {
	if week < 0 || week > s.totalWeeks {
		return apperr.Validation(op, fmt.Sprintf("week %d out of range 0..%d", week, s.totalWeeks))
	}
	return nil
}

func requireUser(ctx context.Context, q db.Querier, op string, userID int64) error {
	ok, err := db.UserExists(ctx, q, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(op, fmt.Sprintf("user %d", userID))
	}
	return nil
}

// Seed создаёт записи 0..N: неделя 0 открыта, остальные закрыты. Повторный вызов ничего не меняет.
func (s *Service) Seed(ctx context.Context, userID int64) error {
	const op = "progress.Seed"
	ctx = ctxutil.WithUserID(ctx, userID)
	return s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireUser(ctx, tx, op, userID); err != nil {
			return err
		}
		return db.SeedProgress(ctx, tx, userID, s.totalWeeks, s.now())
	})
}

// SeedTx: то же внутри чужой транзакции (зачисление при создании пользователя).
func (s *Service) SeedTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	return db.SeedProgress(ctx, tx, userID, s.totalWeeks, s.now())
}

// Sync дозаполняет недостающие недели всем студентам (после увеличения TOTAL_WEEKS и т.п.).
func (s *Service) Sync(ctx context.Context) (int, error) {
	const op = "progress.Sync"
	var n int
	err := s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		ids, err := db.ListStudentIDs(ctx, tx)
		if err != nil {
			return err
		}
		now := s.now()
		for _, id := range ids {
			if err := db.SeedProgress(ctx, tx, id, s.totalWeeks, now); err != nil {
				return err
			}
		}
		n = len(ids)
		return nil
	})
	return n, err
}

// CompleteOrientation: неделя 0 → completed; неделя 1 → unlocked, если админ её не трогал.
func (s *Service) CompleteOrientation(ctx context.Context, userID int64) error {
	const op = "progress.CompleteOrientation"
	ctx = ctxutil.WithUserID(ctx, userID)
	var week1Opened bool
	err := s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireUser(ctx, tx, op, userID); err != nil {
			return err
		}
		now := s.now()
		if err := db.SeedProgress(ctx, tx, userID, s.totalWeeks, now); err != nil {
			return err
		}
		if err := db.SetWeekStatus(ctx, tx, userID, models.OrientationWeek, models.Completed, nil, now); err != nil {
			return err
		}
		opened, err := db.UnlockIfNotOverridden(ctx, tx, userID, 1, now)
		week1Opened = opened
		return err
	})
	if err == nil {
		s.log.Info("orientation completed", zap.Int64("user_id", userID), zap.Bool("week1_unlocked", week1Opened))
	}
	return err
}

// CompleteWeek отмечает неделю завершённой. Для недели 0: то же, что CompleteOrientation.
func (s *Service) CompleteWeek(ctx context.Context, userID int64, week int) error {
	const op = "progress.CompleteWeek"
	if err := s.checkWeek(op, week); err != nil {
		return err
	}
	if week == models.OrientationWeek {
		return s.CompleteOrientation(ctx, userID)
	}
	ctx = ctxutil.WithUserID(ctx, userID)
	return s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireUser(ctx, tx, op, userID); err != nil {
			return err
		}
		return db.SetWeekStatus(ctx, tx, userID, week, models.Completed, nil, s.now())
	})
}

// AdminUnlock открывает неделю и помечает её как переопределённую админом.
func (s *Service) AdminUnlock(ctx context.Context, userID int64, week int) error {
	return s.adminSet(ctx, "progress.AdminUnlock", userID, week, models.Unlocked)
}

// AdminLock закрывает неделю. Неделю 0 закрыть нельзя: она принудительно остаётся unlocked.
func (s *Service) AdminLock(ctx context.Context, userID int64, week int) error {
	return s.adminSet(ctx, "progress.AdminLock", userID, week, models.Locked)
}

func (s *Service) adminSet(ctx context.Context, op string, userID int64, week int, status models.WeekStatus) error {
	if err := s.checkWeek(op, week); err != nil {
		return err
	}
	if week == models.OrientationWeek && status == models.Locked {
		s.log.Warn("orientation cannot be locked, forcing unlocked", zap.Int64("user_id", userID))
		status = models.Unlocked
	}
	ctx = ctxutil.WithUserID(ctx, userID)
	override := true
	return s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		if err := requireUser(ctx, tx, op, userID); err != nil {
			return err
		}
		return db.SetWeekStatus(ctx, tx, userID, week, status, &override, s.now())
	})
}

// Get: статусы 0..N. Недостающие недели подставляются по умолчанию, дыр не бывает.
func (s *Service) Get(ctx context.Context, userID int64) (Map, error) {
	recs, err := s.Records(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(Map, len(recs))
	for _, r := range recs {
		out[r.Week] = r.Status
	}
	return out, nil
}

// Records: полные записи 0..N, с подстановкой по умолчанию.
func (s *Service) Records(ctx context.Context, userID int64) ([]models.ProgressRecord, error) {
	const op = "progress.Get"
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()

	if err := requireUser(ctx, s.g.DB(), op, userID); err != nil {
		return nil, apperr.FromDB(op, err)
	}
	stored, err := db.GetProgress(ctx, s.g.DB(), userID)
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	return fill(userID, s.totalWeeks, stored), nil
}

func fill(userID int64, totalWeeks int, stored []models.ProgressRecord) []models.ProgressRecord {
	byWeek := make(map[int]models.ProgressRecord, len(stored))
	for _, r := range stored {
		if r.Week == models.OrientationWeek && r.Status == models.Locked {
			r.Status = models.Unlocked
		}
		byWeek[r.Week] = r
	}
	out := make([]models.ProgressRecord, 0, totalWeeks+1)
	for week := 0; week <= totalWeeks; week++ {
		r, ok := byWeek[week]
		if !ok {
			r = models.ProgressRecord{UserID: userID, Week: week, Status: models.DefaultStatus(week)}
		}
		out = append(out, r)
	}
	return out
}

// IsWeekUnlocked: неделя открыта или завершена.
func (s *Service) IsWeekUnlocked(ctx context.Context, userID int64, week int) (bool, error) {
	if err := s.checkWeek("progress.IsWeekUnlocked", week); err != nil {
		return false, err
	}
	m, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return m[week].Accessible(), nil
}

func (s *Service) IsOrientationCompleted(ctx context.Context, userID int64) (bool, error) {
	m, err := s.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return m[models.OrientationWeek] == models.Completed, nil
}
