package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"rowriver/internal/domain"
	"rowriver/internal/etl"
	"rowriver/internal/logging"
	"rowriver/internal/metrics"
	"rowriver/internal/river"
	"rowriver/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// River Service: business logic for river jobs
// ─────────────────────────────────────────────────────────────

// EventRunCompleted is emitted after every run with a RunEvent payload.
const EventRunCompleted = "river:run-completed"

// RunEvent is the payload of EventRunCompleted.
type RunEvent struct {
	JobID  string      `json:"jobId"`
	Name   string      `json:"name"`
	Status string      `json:"status"`
	Stats  river.Stats `json:"stats"`
	Error  string      `json:"error,omitempty"`
}

// RiverService manages river jobs, scheduling, and file watching.
type RiverService struct {
	store   *storage.JobStore
	engine  *etl.Engine
	emitter EventEmitter
	log     *zap.Logger
	active  activeRuns

	// RunTimeout bounds a single run.
	RunTimeout time.Duration

	// watcher / cron lifecycle
	mu          sync.Mutex
	baseCtx     context.Context
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewRiverService creates a RiverService ready for use.
func NewRiverService(
	store *storage.JobStore,
	engine *etl.Engine,
	emitter EventEmitter,
	logger *zap.Logger,
) *RiverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RiverService{
		store:      store,
		engine:     engine,
		emitter:    emitter,
		log:        logger,
		RunTimeout: 30 * time.Minute,
	}
}

// NewEngine wires the sinks and observers used by river runs: documents land
// in the local store or in MongoDB, and every session reports to the logger
// and the Prometheus counters.
func NewEngine(docs domain.DocumentStore, conns domain.ConnectionResolver, logger *zap.Logger) *etl.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &etl.Engine{
		Destinations: map[string]etl.Destination{
			etl.SinkLocalDB: &etl.LocalDBDestination{Store: docs},
			etl.SinkMongoDB: &etl.MongoDestination{Connections: conns},
		},
		Logger: logger,
		Observer: func(job *etl.Job) river.Observer {
			return logging.Tee{
				logging.Observer{Log: logger.With(zap.String("river", job.Name))},
				metrics.Observer{River: job.Name},
			}
		},
	}
}

// ── Job CRUD ───────────────────────────────────────────────

type CreateRiverInput struct {
	Name           string           `json:"name"`
	SourceType     string           `json:"sourceType"`
	SourceConfig   map[string]any   `json:"sourceConfig"`
	SinkType       string           `json:"sinkType"`
	SinkConnection string           `json:"sinkConnection"`
	Target         string           `json:"target"`
	Options        etl.RiverOptions `json:"options"`
	TriggerType    string           `json:"triggerType"`
	TriggerConfig  string           `json:"triggerConfig"`
	Enabled        bool             `json:"enabled"`
}

func (in CreateRiverInput) apply(job *etl.Job) error {
	if in.Name == "" {
		return errors.New("river name is required")
	}
	if _, err := etl.GetSource(in.SourceType); err != nil {
		return err
	}
	if _, err := in.Options.SessionOptions(); err != nil {
		return err
	}
	job.Name = in.Name
	job.SourceType = in.SourceType
	job.SourceCfg = in.SourceConfig
	job.SinkType = in.SinkType
	job.SinkConnection = in.SinkConnection
	job.Target = in.Target
	job.Options = in.Options
	job.TriggerType = in.TriggerType
	job.TriggerConfig = in.TriggerConfig
	job.Enabled = in.Enabled
	if job.SinkType == "" {
		job.SinkType = etl.SinkLocalDB
	}
	if job.TriggerType == "" {
		job.TriggerType = etl.TriggerManual
	}
	return nil
}

func (s *RiverService) CreateJob(input CreateRiverInput) (*etl.Job, error) {
	job := &etl.Job{}
	if err := input.apply(job); err != nil {
		return nil, err
	}
	if err := s.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create river job: %w", err)
	}
	s.RestartWatchers()
	return job, nil
}

func (s *RiverService) GetJob(id string) (*etl.Job, error) {
	return s.store.GetJob(id)
}

func (s *RiverService) GetJobByName(name string) (*etl.Job, error) {
	return s.store.GetJobByName(name)
}

func (s *RiverService) ListJobs() ([]etl.Job, error) {
	return s.store.ListJobs()
}

func (s *RiverService) UpdateJob(id string, input CreateRiverInput) error {
	job, err := s.store.GetJob(id)
	if err != nil {
		return err
	}
	if err := input.apply(job); err != nil {
		return err
	}
	if err := s.store.UpdateJob(job); err != nil {
		return err
	}
	s.RestartWatchers()
	return nil
}

func (s *RiverService) DeleteJob(id string) error {
	err := s.store.DeleteJob(id)
	if err == nil {
		s.RestartWatchers()
	}
	return err
}

// SyncConfigJobs makes the stored jobs match the rivers declared in the
// config file. Jobs are matched by name so their ids and run history survive
// a restart; stored jobs missing from the config are removed.
func (s *RiverService) SyncConfigJobs(jobs []etl.Job) error {
	declared := make(map[string]bool, len(jobs))
	for i := range jobs {
		job := jobs[i]
		declared[job.Name] = true

		existing, err := s.store.GetJobByName(job.Name)
		switch {
		case errors.Is(err, storage.ErrJobNotFound):
			if err := s.store.CreateJob(&job); err != nil {
				return fmt.Errorf("create river %s: %w", job.Name, err)
			}
			s.log.Info("river registered", zap.String("river", job.Name), zap.String("id", job.ID))
		case err != nil:
			return err
		default:
			job.ID = existing.ID
			if err := s.store.UpdateJob(&job); err != nil {
				return fmt.Errorf("update river %s: %w", job.Name, err)
			}
		}
	}

	stored, err := s.store.ListJobs()
	if err != nil {
		return err
	}
	for _, j := range stored {
		if declared[j.Name] {
			continue
		}
		if err := s.store.DeleteJob(j.ID); err != nil {
			return fmt.Errorf("remove river %s: %w", j.Name, err)
		}
		s.log.Info("river removed", zap.String("river", j.Name))
	}

	s.RestartWatchers()
	return nil
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes a single river job synchronously, records a run log and
// emits EventRunCompleted.
func (s *RiverService) RunJob(ctx context.Context, id string) (*etl.SyncResult, error) {
	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}

	release, err := s.beginRun(job)
	if err != nil {
		return nil, err
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, s.RunTimeout)
	defer cancel()

	start := time.Now()
	result, runErr := s.engine.RunSync(runCtx, job)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	runLog := &etl.SyncRunLog{
		JobID:      id,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Status:     result.Status,
		RowsRead:   result.RowsRead,
		Stats:      result.Stats,
		Error:      errMsg,
	}
	if err := s.store.CreateRunLog(runLog); err != nil {
		s.log.Warn("write run log", zap.String("river", job.Name), zap.Error(err))
	}
	if err := s.store.UpdateJobStatus(id, result.Status, errMsg); err != nil {
		s.log.Warn("update job status", zap.String("river", job.Name), zap.Error(err))
	}
	metrics.ObserveRun(job.Name, result.Status, result.RowsRead, result.Duration)

	if runErr != nil {
		s.log.Error("river run failed", zap.String("river", job.Name), zap.Error(runErr))
	}
	s.emitter.Emit(ctx, EventRunCompleted, RunEvent{
		JobID:  id,
		Name:   job.Name,
		Status: result.Status,
		Stats:  result.Stats,
		Error:  errMsg,
	})

	return result, runErr
}

// RunJobByName resolves a job by name and runs it.
func (s *RiverService) RunJobByName(ctx context.Context, name string) (*etl.SyncResult, error) {
	job, err := s.store.GetJobByName(name)
	if err != nil {
		return nil, err
	}
	return s.RunJob(ctx, job.ID)
}

// ListSources returns the available row source descriptors.
func (s *RiverService) ListSources() []etl.SourceSpec {
	return etl.ListSources()
}

// ListRunLogs returns the most recent run logs for a job, newest first.
func (s *RiverService) ListRunLogs(jobID string, limit int) ([]etl.SyncRunLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListRunLogs(jobID, limit)
}

// ── Preview ────────────────────────────────────────────────

// PreviewJob builds the first documents of a stored job without writing them.
func (s *RiverService) PreviewJob(ctx context.Context, id string, maxDocs int) (*etl.PreviewResult, error) {
	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}
	return s.Preview(ctx, job.SourceType, job.SourceCfg, job.Options, maxDocs)
}

// Preview builds the first documents of an ad hoc source without writing them.
func (s *RiverService) Preview(ctx context.Context, sourceType string, cfg etl.SourceConfig, options etl.RiverOptions, maxDocs int) (*etl.PreviewResult, error) {
	if maxDocs <= 0 {
		maxDocs = 10
	}
	previewCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.engine.Preview(previewCtx, sourceType, cfg, options, maxDocs)
}

// ── Watchers (cron + file_watch) ──────────────────────────

// Start enables scheduled and file-watch triggers. Triggered runs use ctx.
func (s *RiverService) Start(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()
	s.RestartWatchers()
}

// RestartWatchers tears down the current watcher/cron and rebuilds them from
// the stored jobs. It does nothing until Start has been called.
func (s *RiverService) RestartWatchers() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopWatchersLocked()
	if s.baseCtx == nil {
		return
	}
	ctx := s.baseCtx

	jobs, err := s.store.ListEnabledScheduledJobs()
	if err != nil {
		s.log.Error("river watcher: failed to list jobs", zap.Error(err))
		return
	}

	// ── Cron jobs ──
	c := cron.New()
	scheduled := 0
	for _, j := range jobs {
		if j.TriggerType != etl.TriggerSchedule || j.TriggerConfig == "" {
			continue
		}
		jid, name := j.ID, j.Name
		_, err := c.AddFunc(j.TriggerConfig, func() {
			s.log.Info("river cron: running", zap.String("river", name))
			if _, err := s.RunJob(ctx, jid); err != nil {
				s.log.Warn("river cron: run failed", zap.String("river", name), zap.Error(err))
			}
		})
		if err != nil {
			s.log.Error("river cron: invalid expression",
				zap.String("river", name), zap.String("expr", j.TriggerConfig), zap.Error(err))
			continue
		}
		scheduled++
	}
	if scheduled > 0 {
		c.Start()
		s.cronSched = c
		s.log.Info("river cron: scheduled", zap.Int("jobs", scheduled))
	}

	// ── File watchers ──
	pathToJob := make(map[string]string)
	for _, j := range jobs {
		if j.TriggerType != etl.TriggerFileWatch || j.TriggerConfig == "" {
			continue
		}
		absPath, err := filepath.Abs(j.TriggerConfig)
		if err != nil {
			s.log.Warn("river watcher: bad path", zap.String("path", j.TriggerConfig), zap.Error(err))
			continue
		}
		pathToJob[absPath] = j.ID
	}
	if len(pathToJob) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.log.Error("river watcher: failed to create watcher", zap.Error(err))
		return
	}
	s.watcher = watcher

	// Parent directories are watched, not the files themselves.
	watchedDirs := make(map[string]bool)
	for absPath := range pathToJob {
		dir := filepath.Dir(absPath)
		if watchedDirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			s.log.Warn("river watcher: failed to watch dir", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watchedDirs[dir] = true
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchCancel = cancel
	go s.watchLoop(watchCtx, watcher, pathToJob)

	s.log.Info("river watcher: watching", zap.Int("files", len(pathToJob)))
}

// fileDebounce collapses the burst of events produced by a single save.
const fileDebounce = 500 * time.Millisecond

func (s *RiverService) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, pathToJob map[string]string) {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			absPath, _ := filepath.Abs(event.Name)
			jobID, ok := pathToJob[absPath]
			if !ok {
				continue
			}
			if t, exists := timers[jobID]; exists {
				t.Stop()
			}
			jid := jobID
			timers[jobID] = time.AfterFunc(fileDebounce, func() {
				s.log.Info("river watcher: file changed", zap.String("path", absPath), zap.String("job", jid))
				if _, err := s.RunJob(ctx, jid); err != nil {
					s.log.Warn("river watcher: run failed", zap.String("job", jid), zap.Error(err))
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("river watcher: error", zap.Error(err))
		}
	}
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *RiverService) WaitRunning(ctx context.Context) {
	s.active.wait(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *RiverService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopWatchersLocked()
	s.baseCtx = nil
}

func (s *RiverService) stopWatchersLocked() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}
