// Package auth: учётные записи и проверка пароля.
// Пароль хранится только как bcrypt-хэш с собственной солью и настраиваемой стоимостью.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/Spok95/course-tracker/internal/apperr"
	"github.com/Spok95/course-tracker/internal/db"
	"github.com/Spok95/course-tracker/internal/guard"
	"github.com/Spok95/course-tracker/internal/models"
	"github.com/Spok95/course-tracker/internal/progress"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // предел bcrypt
)

type Service struct {
	g        *guard.Guard
	progress *progress.Service
	cost     int
	dummy    []byte
	log      *zap.Logger
}

func New(g *guard.Guard, prog *progress.Service, cost int, log *zap.Logger) (*Service, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range %d..%d", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if log == nil {
		log = zap.NewNop()
	}
	// хэш-заглушка: сравнение для несуществующего логина занимает столько же времени
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, err
	}
	return &Service{g: g, progress: prog, cost: cost, dummy: dummy, log: log.Named("auth")}, nil
}

type NewUser struct {
	Username string
	Password string
	FullName string
	Email    string
	Role     models.Role
	Cohort   string
}

func checkPassword(op, password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return apperr.Validation(op, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return apperr.Validation(op, fmt.Sprintf("password must be at most %d bytes", maxPasswordLen))
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// CreateUser заводит пользователя. Студент сразу получает прогресс 0..N в той же транзакции.
func (s *Service) CreateUser(ctx context.Context, u NewUser) (*models.User, error) {
	const op = "auth.CreateUser"
	u.Username = strings.TrimSpace(u.Username)
	if u.Username == "" {
		return nil, apperr.Validation(op, "username is required")
	}
	if u.Role == "" {
		u.Role = models.Student
	}
	if !u.Role.Valid() {
		return nil, apperr.Validation(op, fmt.Sprintf("unknown role %q", u.Role))
	}
	if err := checkPassword(op, u.Password); err != nil {
		return nil, err
	}
	cohort := strings.TrimSpace(u.Cohort)
	if cohort == "" {
		cohort = "Cohort 1"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("%s: hash password: %w", op, err)
	}

	var out *models.User
	err = s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		id, err := db.CreateUser(ctx, tx, db.NewUser{
			Username: u.Username, FullName: optional(u.FullName), Email: optional(u.Email),
			Role: u.Role, Cohort: cohort, PasswordHash: hash,
		})
		if err != nil {
			if e := apperr.FromDB(op, err); errors.Is(e, apperr.ErrIntegrity) {
				return apperr.Wrap(op, apperr.ErrIntegrity, fmt.Sprintf("username %q already exists", u.Username), err)
			}
			return err
		}
		if u.Role == models.Student {
			if err := s.progress.SeedTx(ctx, tx, id); err != nil {
				return err
			}
		}
		out, err = db.GetUserByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.Int64("user_id", out.ID), zap.String("role", string(out.Role)), zap.String("cohort", out.Cohort))
	return out, nil
}

// Verify проверяет логин и пароль. Неверная пара и отключённая учётка дают одну и ту же ErrAuth.
func (s *Service) Verify(ctx context.Context, username, password string) (*models.User, error) {
	const op = "auth.Verify"
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()

	u, hash, err := db.GetCredentials(ctx, s.g.DB(), strings.TrimSpace(username))
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	if u == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return nil, apperr.New(op, apperr.ErrAuth, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		return nil, apperr.New(op, apperr.ErrAuth, "invalid credentials")
	}
	if !u.IsActive {
		s.log.Info("login of inactive user", zap.Int64("user_id", u.ID))
		return nil, apperr.New(op, apperr.ErrAuth, "invalid credentials")
	}
	return u, nil
}

func (s *Service) ResetPassword(ctx context.Context, username, password string) error {
	const op = "auth.ResetPassword"
	if err := checkPassword(op, password); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("%s: hash password: %w", op, err)
	}
	return s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		ok, err := db.SetPasswordHash(ctx, tx, strings.TrimSpace(username), hash)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound(op, fmt.Sprintf("user %q", username))
		}
		return nil
	})
}

func (s *Service) SetActive(ctx context.Context, userID int64, active bool) error {
	const op = "auth.SetActive"
	return s.g.Write(ctx, op, func(ctx context.Context, tx *sql.Tx) error {
		ok, err := db.SetUserActive(ctx, tx, userID, active)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound(op, fmt.Sprintf("user %d", userID))
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, userID int64) (*models.User, error) {
	const op = "auth.Get"
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

// Lookup: пользователь по логину (для CLI).
func (s *Service) Lookup(ctx context.Context, username string) (*models.User, error) {
	const op = "auth.Lookup"
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()
	username = strings.TrimSpace(username)
	u, err := db.GetUserByUsername(ctx, s.g.DB(), username)
	if err != nil {
		return nil, apperr.FromDB(op, err)
	}
	if u == nil {
		return nil, apperr.NotFound(op, fmt.Sprintf("user %q", username))
	}
	return u, nil
}

func (s *Service) ListStudents(ctx context.Context) ([]models.User, error) {
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()
	users, err := db.ListStudents(ctx, s.g.DB())
	return users, apperr.FromDB("auth.ListStudents", err)
}

func (s *Service) ListCohorts(ctx context.Context) ([]string, error) {
	ctx, cancel := s.g.ReadContext(ctx)
	defer cancel()
	cohorts, err := db.ListCohorts(ctx, s.g.DB())
	return cohorts, apperr.FromDB("auth.ListCohorts", err)
}
