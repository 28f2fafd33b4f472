package logging

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rowriver/internal/river"
)

// New builds a logger. format is "json" (production encoder) or "text"
// (console encoder); level is any zap level name, "info" when empty.
func New(level, format string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}

	var cfg zap.Config
	switch format {
	case "", "json":
		cfg = zap.NewProductionConfig()
	case "text", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// Observer reports river anomalies and flushes to a logger.
type Observer struct {
	Log *zap.Logger
}

func (o Observer) Anomaly(err error) {
	var uoe *river.UnknownOperationError
	if errors.As(err, &uoe) {
		o.Log.Warn("unknown operation type, indexing instead",
			zap.String("op_type", uoe.OpType),
			zap.String("id", uoe.ID),
		)
		return
	}
	o.Log.Warn("river anomaly", zap.Error(err))
}

func (o Observer) Flushed(ev river.FlushEvent) {
	if ev.Suppressed {
		o.Log.Debug("flush suppressed, document unchanged",
			zap.String("key", ev.Key.String()),
			zap.Int("rows", ev.Rows),
		)
		return
	}
	o.Log.Debug("flushed document",
		zap.String("op", ev.Op),
		zap.String("id", ev.Key.ID),
		zap.Int("rows", ev.Rows),
	)
}

// Tee fans river events out to several observers, skipping nils.
type Tee []river.Observer

func (t Tee) Anomaly(err error) {
	for _, o := range t {
		if o != nil {
			o.Anomaly(err)
		}
	}
}

func (t Tee) Flushed(ev river.FlushEvent) {
	for _, o := range t {
		if o != nil {
			o.Flushed(ev)
		}
	}
}
