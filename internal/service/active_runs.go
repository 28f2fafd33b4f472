package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"rowriver/internal/etl"
)

// ErrRunInProgress is returned when a river is started while an earlier run
// of the same river has not finished.
var ErrRunInProgress = errors.New("river run already in progress")

// ActiveRun describes a river run that has started and not yet finished.
type ActiveRun struct {
	JobID     string    `json:"jobId"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"startedAt"`
}

// ─────────────────────────────────────────────────────────────
// activeRuns: one run per river at a time
// ─────────────────────────────────────────────────────────────

// activeRuns tracks in-flight runs keyed by job ID. The zero value is ready
// for use.
type activeRuns struct {
	mu   sync.Mutex
	runs map[string]ActiveRun
	wg   sync.WaitGroup
}

func (a *activeRuns) claim(job *etl.Job, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runs == nil {
		a.runs = make(map[string]ActiveRun)
	}
	if _, busy := a.runs[job.ID]; busy {
		return false
	}
	a.runs[job.ID] = ActiveRun{JobID: job.ID, Name: job.Name, StartedAt: now}
	a.wg.Add(1)
	return true
}

func (a *activeRuns) release(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.runs[jobID]; !ok {
		return
	}
	delete(a.runs, jobID)
	a.wg.Done()
}

// list returns the active runs, oldest first.
func (a *activeRuns) list() []ActiveRun {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ActiveRun, 0, len(a.runs))
	for _, r := range a.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

func (a *activeRuns) wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// beginRun claims the river for one run and marks it running in the store.
// The returned func releases the claim.
func (s *RiverService) beginRun(job *etl.Job) (func(), error) {
	if !s.active.claim(job, time.Now()) {
		return nil, fmt.Errorf("river %s: %w", job.Name, ErrRunInProgress)
	}
	if err := s.store.UpdateJobStatus(job.ID, etl.StatusRunning, ""); err != nil {
		s.log.Warn("update job status", zap.String("river", job.Name), zap.Error(err))
	}
	return func() { s.active.release(job.ID) }, nil
}

// ActiveRuns lists the rivers currently running, oldest first.
func (s *RiverService) ActiveRuns() []ActiveRun {
	return s.active.list()
}
