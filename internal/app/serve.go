package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"rowriver/internal/etl"
	"rowriver/internal/metrics"
)

// Serve starts the scheduled and file-watch triggers and the metrics
// endpoint, then blocks until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	metricsErr := make(chan error, 1)
	if addr := a.cfg.Metrics.Addr; addr != "" {
		go func() { metricsErr <- metrics.Serve(ctx, addr, a.log) }()
	}

	a.checkConnections(ctx)
	a.rivers.Start(ctx)
	a.log.Info("river service started")

	select {
	case <-ctx.Done():
		a.log.Info("shutting down")
		return nil
	case err := <-metricsErr:
		if err != nil {
			return fmt.Errorf("metrics endpoint: %w", err)
		}
		<-ctx.Done()
		return nil
	}
}

// RunOnce runs a single river by name and returns its result.
func (a *App) RunOnce(ctx context.Context, name string) (*etl.SyncResult, error) {
	if name == "" {
		return nil, errors.New("a river name is required")
	}
	res, err := a.rivers.RunJobByName(ctx, name)
	if err != nil {
		return res, err
	}
	a.log.Info("river run succeeded",
		zap.String("river", name),
		zap.Int("rows", res.RowsRead),
		zap.Int("created", res.Stats.Created),
		zap.Int("indexed", res.Stats.Indexed),
		zap.Int("deleted", res.Stats.Deleted),
		zap.Int("suppressed", res.Stats.Suppressed),
	)
	return res, nil
}

// checkConnections logs the reachability of every declared connection.
// Unreachable databases only fail the rivers that use them.
func (a *App) checkConnections(ctx context.Context) {
	for _, st := range a.conns.TestAll(ctx) {
		if st.OK {
			a.log.Info("connection reachable",
				zap.String("connection", st.Name), zap.Duration("latency", st.Latency))
			continue
		}
		a.log.Warn("connection unreachable",
			zap.String("connection", st.Name), zap.String("error", st.Error))
	}
}
