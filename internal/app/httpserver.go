package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/course-tracker/internal/db"
	"github.com/Spok95/course-tracker/internal/metrics"
)

type HTTPServer struct {
	srv *http.Server
}

type health struct {
	Status        string `json:"status"`
	SchemaVersion int64  `json:"schema_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Handler: /healthz и /metrics.
func Handler(database *sql.DB) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		w.Header().Set("Content-Type", "application/json")

		t0 := time.Now()
		if err := database.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(health{Status: "db not ok", Error: err.Error()})
			return
		}
		metrics.ObserveDBPing(time.Since(t0))

		v, err := db.SchemaVersion(ctx, database)
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(health{Status: "schema unknown", Error: err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(health{Status: "ok", SchemaVersion: v})
	})

	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// StartHTTP поднимает сервер и гасит его по отмене ctx.
func StartHTTP(ctx context.Context, addr string, database *sql.DB, log *zap.Logger) *HTTPServer {
	srv := &http.Server{Addr: addr, Handler: Handler(database), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	return &HTTPServer{srv: srv}
}
