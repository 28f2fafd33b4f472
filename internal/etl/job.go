package etl

import (
	"fmt"
	"time"

	"rowriver/internal/river"
)

// Trigger types.
const (
	TriggerManual    = "manual"
	TriggerSchedule  = "schedule"
	TriggerFileWatch = "file_watch"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusError   = "error"
)

// ── Job ────────────────────────────────────────────────────

// Job is a configured river: a row source, the session options that shape
// its documents, and the sink they land in.
type Job struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	SourceType     string       `json:"sourceType"`
	SourceCfg      SourceConfig `json:"sourceConfig"`
	SinkType       string       `json:"sinkType"`       // "localdb" | "mongodb"
	SinkConnection string       `json:"sinkConnection"` // connection name, mongodb only
	Target         string       `json:"target"`         // collection
	Options        RiverOptions `json:"options"`
	TriggerType    string       `json:"triggerType"`   // "manual" | "schedule" | "file_watch"
	TriggerConfig  string       `json:"triggerConfig"` // cron expression or watch path
	Enabled        bool         `json:"enabled"`
	LastRunAt      time.Time    `json:"lastRunAt"`
	LastStatus     string       `json:"lastStatus"` // "success" | "error" | "running" | ""
	LastError      string       `json:"lastError"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// RiverOptions is the persisted form of the session options.
type RiverOptions struct {
	IDColumn        string `json:"idColumn,omitempty" yaml:"id_column"`
	OpTypeColumn    string `json:"opTypeColumn,omitempty" yaml:"optype_column"`
	Delimiter       string `json:"delimiter,omitempty" yaml:"delimiter"`
	Digest          bool   `json:"digest,omitempty" yaml:"digest"`
	DigestScope     string `json:"digestScope,omitempty" yaml:"digest_scope"` // "id" | "key"
	IDPrefix        string `json:"idPrefix,omitempty" yaml:"id_prefix"`
	SingletonArrays bool   `json:"singletonArrays,omitempty" yaml:"singleton_arrays"`
}

// SessionOptions converts o into river options.
func (o RiverOptions) SessionOptions() ([]river.Option, error) {
	var opts []river.Option
	if o.IDColumn != "" {
		opts = append(opts, river.WithIDColumn(o.IDColumn))
	}
	if o.OpTypeColumn != "" {
		opts = append(opts, river.WithOpTypeColumn(o.OpTypeColumn))
	}
	if o.Delimiter != "" {
		opts = append(opts, river.WithDelimiter(o.Delimiter))
	}
	if o.Digest {
		scope, err := river.ParseDigestScope(o.DigestScope)
		if err != nil {
			return nil, fmt.Errorf("river options: %w", err)
		}
		opts = append(opts, river.WithDigest(scope))
	}
	if o.IDPrefix != "" {
		opts = append(opts, river.WithIDPrefix(o.IDPrefix))
	}
	if o.SingletonArrays {
		opts = append(opts, river.WithSingletonArrays(true))
	}
	return opts, nil
}

// SyncResult is the outcome of running a job.
type SyncResult struct {
	JobID    string        `json:"jobId"`
	Status   string        `json:"status"` // "success" | "error"
	RowsRead int           `json:"rowsRead"`
	Stats    river.Stats   `json:"stats"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// SyncRunLog is a historical record of a run.
type SyncRunLog struct {
	ID         string      `json:"id"`
	JobID      string      `json:"jobId"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt"`
	Status     string      `json:"status"`
	RowsRead   int         `json:"rowsRead"`
	Stats      river.Stats `json:"stats"`
	Error      string      `json:"error,omitempty"`
}
