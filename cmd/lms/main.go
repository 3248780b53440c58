package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/Spok95/course-tracker/internal/app"
	"github.com/Spok95/course-tracker/internal/auth"
	"github.com/Spok95/course-tracker/internal/config"
	"github.com/Spok95/course-tracker/internal/db"
	"github.com/Spok95/course-tracker/internal/logging"
	"github.com/Spok95/course-tracker/internal/models"
	"github.com/Spok95/course-tracker/internal/observability"
)

const usage = `usage: lms [command]

commands:
  serve                   run health/metrics server (default)
  migrate                 apply schema migrations and exit
  passwd <username>       set a new password (prompt or stdin)
  adduser [flags] <name>  create a user (password: prompt or stdin)
  sync-progress           add missing progress rows for every student
  issue-certificate <name>
                          issue the completion certificate if the student is eligible
  export [-o dir] transcript <name> | gradebook [cohort]
                          write an .xlsx report
`

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Не удалось загрузить .env файл, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg := logging.MustInit(cfg.LogLevel, cfg.Env, cfg.LogFile)
	defer lg.Closer()

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "")
	if err != nil {
		lg.Base.Warn("sentry init failed", zap.Error(err))
	}
	defer flushSentry()

	shutdownTracing, err := observability.InitTracing(cfg.OTelStdout)
	if err != nil {
		lg.Base.Fatal("tracing init", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	if err := run(ctx, cmd, args, cfg, lg); err != nil {
		lg.Base.Error("command failed", zap.String("command", cmd), zap.Error(err))
		lg.Closer()
		flushSentry()
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string, cfg *config.Config, lg *logging.Log) error {
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		fmt.Print(usage)
		return nil
	}

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	if err := db.Migrate(ctx, database, lg.Sugar); err != nil {
		return err
	}
	if cmd == "migrate" {
		v, err := db.SchemaVersion(ctx, database)
		if err != nil {
			return err
		}
		lg.Base.Info("schema is up to date", zap.Int64("version", v))
		return nil
	}

	if cmd == "serve" {
		return serve(ctx, cfg, database, lg.Base)
	}

	store, err := app.NewStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, database, store, app.NewNotifier(cfg, lg.Base), lg.Base)
	if err != nil {
		return err
	}

	switch cmd {
	case "sync-progress":
		n, err := a.Progress.Sync(ctx)
		if err != nil {
			return err
		}
		lg.Base.Info("progress synced", zap.Int("students", n), zap.Int("weeks", cfg.TotalWeeks))
		return nil
	case "passwd":
		if len(args) != 1 {
			return errors.New("usage: lms passwd <username>")
		}
		pw, err := promptPassword()
		if err != nil {
			return err
		}
		if err := a.Auth.ResetPassword(ctx, args[0], pw); err != nil {
			return err
		}
		lg.Base.Info("password updated", zap.String("username", args[0]))
		return nil
	case "adduser":
		return addUser(ctx, a, args, lg.Base)
	case "issue-certificate":
		return issueCertificate(ctx, a, args, lg.Base)
	case "export":
		return exportReport(ctx, a, args, lg.Base)
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func serve(ctx context.Context, cfg *config.Config, database *sql.DB, log *zap.Logger) error {
	app.StartHTTP(ctx, cfg.HTTPAddr, database, log)
	log.Info("lms started", zap.String("http", cfg.HTTPAddr), zap.Int("weeks", cfg.TotalWeeks), zap.String("storage", cfg.Storage.Type))
	<-ctx.Done()
	log.Info("shutting down")
	// даём серверу закрыться
	time.Sleep(200 * time.Millisecond)
	return nil
}

func addUser(ctx context.Context, a *app.App, args []string, log *zap.Logger) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	role := fs.String("role", string(models.Student), "student|admin")
	cohort := fs.String("cohort", "Cohort 1", "cohort name")
	fullName := fs.String("name", "", "full name for the certificate")
	email := fs.String("email", "", "email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: lms adduser [-role admin] [-cohort C] [-name N] [-email E] <username>")
	}
	pw, err := promptPassword()
	if err != nil {
		return err
	}
	u, err := a.Auth.CreateUser(ctx, auth.NewUser{
		Username: fs.Arg(0), Password: pw, FullName: *fullName, Email: *email,
		Role: models.Role(*role), Cohort: *cohort,
	})
	if err != nil {
		return err
	}
	log.Info("user created", zap.Int64("user_id", u.ID), zap.String("username", u.Username), zap.String("role", string(u.Role)))
	return nil
}

func issueCertificate(ctx context.Context, a *app.App, args []string, log *zap.Logger) error {
	if len(args) != 1 {
		return errors.New("usage: lms issue-certificate <username>")
	}
	u, err := a.Auth.Lookup(ctx, args[0])
	if err != nil {
		return err
	}
	cert, err := a.IssueCertificate(ctx, u.ID)
	if err != nil {
		return err
	}
	log.Info("certificate ready", zap.Int64("user_id", u.ID), zap.String("serial", cert.Serial), zap.Time("issued_at", cert.IssuedAt))
	return nil
}

type exportRequest struct {
	kind   string // transcript | gradebook
	target string // логин для transcript, когорта для gradebook
	dir    string
}

func parseExportArgs(args []string) (exportRequest, error) {
	const usage = "usage: lms export [-o dir] transcript <username> | gradebook [cohort]"
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dir := fs.String("o", ".", "output directory")
	if err := fs.Parse(args); err != nil {
		return exportRequest{}, fmt.Errorf("%s: %w", usage, err)
	}
	req := exportRequest{kind: fs.Arg(0), dir: *dir}
	switch {
	case req.kind == "transcript" && fs.NArg() == 2:
		req.target = fs.Arg(1)
	case req.kind == "gradebook" && fs.NArg() <= 2:
		req.target = fs.Arg(1)
	default:
		return exportRequest{}, errors.New(usage)
	}
	return req, nil
}

func exportReport(ctx context.Context, a *app.App, args []string, log *zap.Logger) error {
	req, err := parseExportArgs(args)
	if err != nil {
		return err
	}
	var data []byte
	var name string
	switch req.kind {
	case "transcript":
		u, err := a.Auth.Lookup(ctx, req.target)
		if err != nil {
			return err
		}
		data, name, err = a.Export.Transcript(ctx, u.ID)
		if err != nil {
			return err
		}
	case "gradebook":
		data, name, err = a.Export.Gradebook(ctx, req.target, a.TotalWeeks)
		if err != nil {
			return err
		}
	}
	path := filepath.Join(req.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Info("report written", zap.String("kind", req.kind), zap.String("path", path), zap.Int("bytes", len(data)))
	return nil
}

// promptPassword спрашивает пароль без эха в терминале, иначе читает первую строку stdin.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readPassword(os.Stdin)
	}
	fmt.Fprint(os.Stderr, "Password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", errors.New("empty password")
	}
	return string(b), nil
}

// readPassword: первая строка из r.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	pw := strings.TrimRight(line, "\r\n")
	if pw == "" {
		return "", errors.New("empty password on stdin")
	}
	return pw, nil
}
