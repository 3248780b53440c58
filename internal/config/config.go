package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string
	TotalWeeks  int // graded weeks 1..N, неделя 0: ориентация

	WriteLockTimeout time.Duration
	DBTimeout        time.Duration

	Storage StorageConfig

	BadgeThresholds string // "Distinction:80,Merit:65,Pass:50"
	BadgeFallback   string
	BcryptCost      int

	ProgramTitle  string
	ProgramIssuer string
	CertFont      string

	HTTPAddr   string
	LogLevel   string
	LogFile    string
	Env        string // dev|prod
	SentryDSN  string
	OTelStdout bool

	BotToken string
	AdminIDs []int64
}

type StorageConfig struct {
	Type      string // fs|minio
	UploadDir string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSecure    bool
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	weeks, err := getInt("TOTAL_WEEKS", 6)
	if err != nil {
		return nil, err
	}
	if weeks < 1 {
		return nil, fmt.Errorf("TOTAL_WEEKS: must be >= 1, got %d", weeks)
	}
	lockTimeout, err := getDuration("WRITE_LOCK_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	dbTimeout, err := getDuration("DB_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	cost, err := getInt("BCRYPT_COST", 12)
	if err != nil {
		return nil, err
	}
	adminIDs, err := parseIDs(os.Getenv("ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS: %w", err)
	}

	cfg := &Config{
		DatabaseURL:      dbURL,
		TotalWeeks:       weeks,
		WriteLockTimeout: lockTimeout,
		DBTimeout:        dbTimeout,
		Storage: StorageConfig{
			Type:           strings.ToLower(getenv("STORAGE", "fs")),
			UploadDir:      getenv("UPLOAD_DIR", "./data/uploads"),
			MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
			MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
			MinioBucket:    getenv("MINIO_BUCKET", "lms"),
			MinioSecure:    getBool("MINIO_SECURE"),
		},
		BadgeThresholds: getenv("BADGE_THRESHOLDS", "Distinction:80,Merit:65,Pass:50"),
		BadgeFallback:   getenv("BADGE_FALLBACK", "Fail"),
		BcryptCost:      cost,
		ProgramTitle:    getenv("PROGRAM_TITLE", "AI Essentials: From Zero to Confident AI User"),
		ProgramIssuer:   getenv("PROGRAM_ISSUER", "Chumcred Academy"),
		CertFont:        os.Getenv("CERT_FONT"),
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFile:         os.Getenv("LOG_FILE"),
		Env:             getenv("ENV", "dev"),
		SentryDSN:       os.Getenv("SENTRY_DSN"),
		OTelStdout:      getBool("OTEL_STDOUT"),
		BotToken:        os.Getenv("BOT_TOKEN"),
		AdminIDs:        adminIDs,
	}

	switch cfg.Storage.Type {
	case "fs":
	case "minio":
		if cfg.Storage.MinioEndpoint == "" {
			return nil, fmt.Errorf("MINIO_ENDPOINT is empty while STORAGE=minio")
		}
	default:
		return nil, fmt.Errorf("STORAGE: unknown type %q", cfg.Storage.Type)
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", k)
	}
	return d, nil
}

func getBool(k string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
