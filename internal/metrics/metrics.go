package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rowriver/internal/river"
)

var (
	rowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "river_rows_total",
		Help: "Total number of rows read from sources",
	}, []string{"river"})

	flushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "river_flushes_total",
		Help: "Total number of documents handed to sinks, by operation",
	}, []string{"river", "op"})

	suppressedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "river_flush_suppressed_total",
		Help: "Total number of flushes suppressed by the digest gate",
	}, []string{"river"})

	unknownOpTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "river_unknown_optype_total",
		Help: "Total number of rows with an unrecognised operation type",
	}, []string{"river"})

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "river_run_duration_seconds",
		Help:    "Time taken by one river run",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"river", "status"})
)

// Observer counts flushes and anomalies of one river.
type Observer struct {
	River string
}

func (o Observer) Anomaly(err error) {
	if errors.Is(err, river.ErrUnknownOperation) {
		unknownOpTotal.WithLabelValues(o.River).Inc()
	}
}

func (o Observer) Flushed(ev river.FlushEvent) {
	if ev.Suppressed {
		suppressedTotal.WithLabelValues(o.River).Inc()
		return
	}
	flushesTotal.WithLabelValues(o.River, ev.Op).Inc()
}

// ObserveRun records the outcome of a finished run.
func ObserveRun(name, status string, rows int, d time.Duration) {
	rowsTotal.WithLabelValues(name).Add(float64(rows))
	runDuration.WithLabelValues(name, status).Observe(d.Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics endpoint listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
