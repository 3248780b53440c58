package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WriteOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lms", Name: "write_ops_total", Help: "Guarded write operations by outcome",
	}, []string{"op", "outcome"})
	LockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lms", Name: "write_lock_wait_seconds", Help: "Time spent waiting for the write lock",
		Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10, 30},
	})
	WriteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lms", Name: "write_duration_seconds", Help: "Guarded write duration (lock held)",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	CertificatesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lms", Name: "certificates_issued_total", Help: "Certificates created",
	})
	NotifyErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lms", Name: "notify_errors_total", Help: "Failed admin notifications",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lms", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(WriteOps, LockWait, WriteDuration, CertificatesIssued, NotifyErrors, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

// ObserveWrite учитывает завершённую запись; held: время удержания блокировки.
func ObserveWrite(op, outcome string, held time.Duration) {
	WriteOps.WithLabelValues(op, outcome).Inc()
	if held > 0 {
		WriteDuration.WithLabelValues(op).Observe(held.Seconds())
	}
}
