package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rowriver/internal/etl"

	"github.com/google/uuid"
)

// ErrJobNotFound is returned when no river job matches the lookup.
var ErrJobNotFound = errors.New("river job not found")

// JobStore implements persistence for river jobs and run logs.
type JobStore struct {
	db *DB
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `id, name, source_type, source_config, sink_type, sink_connection, target,
	 options, trigger_type, trigger_config, enabled,
	 last_run_at, last_status, last_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*etl.Job, error) {
	job := &etl.Job{}
	var srcCfg, options string
	var lastRun sql.NullTime
	if err := row.Scan(
		&job.ID, &job.Name, &job.SourceType, &srcCfg,
		&job.SinkType, &job.SinkConnection, &job.Target,
		&options, &job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&lastRun, &job.LastStatus, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if lastRun.Valid {
		job.LastRunAt = lastRun.Time
	}
	if err := json.Unmarshal([]byte(srcCfg), &job.SourceCfg); err != nil {
		return nil, fmt.Errorf("decode source config of %s: %w", job.Name, err)
	}
	if err := json.Unmarshal([]byte(options), &job.Options); err != nil {
		return nil, fmt.Errorf("decode options of %s: %w", job.Name, err)
	}
	return job, nil
}

// ── Job CRUD ───────────────────────────────────────────────

func (s *JobStore) CreateJob(job *etl.Job) error {
	now := time.Now()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now

	srcCfg, _ := json.Marshal(job.SourceCfg)
	options, _ := json.Marshal(job.Options)

	_, err := s.db.conn.Exec(
		`INSERT INTO river_jobs (id, name, source_type, source_config, sink_type, sink_connection,
		 target, options, trigger_type, trigger_config, enabled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.SourceType, string(srcCfg), job.SinkType, job.SinkConnection,
		job.Target, string(options), job.TriggerType, job.TriggerConfig, job.Enabled,
		job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *JobStore) GetJob(id string) (*etl.Job, error) {
	job, err := scanJob(s.db.conn.QueryRow(`SELECT `+jobColumns+` FROM river_jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, err
}

func (s *JobStore) GetJobByName(name string) (*etl.Job, error) {
	job, err := scanJob(s.db.conn.QueryRow(`SELECT `+jobColumns+` FROM river_jobs WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return job, err
}

// UpdateJob rewrites the definition of a job. Run status columns are left alone.
func (s *JobStore) UpdateJob(job *etl.Job) error {
	job.UpdatedAt = time.Now()
	srcCfg, _ := json.Marshal(job.SourceCfg)
	options, _ := json.Marshal(job.Options)

	res, err := s.db.conn.Exec(
		`UPDATE river_jobs SET name=?, source_type=?, source_config=?, sink_type=?, sink_connection=?,
		 target=?, options=?, trigger_type=?, trigger_config=?, enabled=?, updated_at=? WHERE id=?`,
		job.Name, job.SourceType, string(srcCfg), job.SinkType, job.SinkConnection,
		job.Target, string(options), job.TriggerType, job.TriggerConfig, job.Enabled,
		job.UpdatedAt, job.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	}
	return nil
}

func (s *JobStore) UpdateJobStatus(id, status, errMsg string) error {
	now := time.Now()
	_, err := s.db.conn.Exec(
		`UPDATE river_jobs SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		now, status, errMsg, now, id,
	)
	return err
}

func (s *JobStore) DeleteJob(id string) error {
	// Delete run logs first.
	if _, err := s.db.conn.Exec(`DELETE FROM river_run_logs WHERE job_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM river_jobs WHERE id = ?`, id)
	return err
}

func (s *JobStore) ListJobs() ([]etl.Job, error) {
	return s.queryJobs(`SELECT ` + jobColumns + ` FROM river_jobs ORDER BY created_at ASC, name ASC`)
}

// ListEnabledScheduledJobs returns enabled jobs with a schedule or file watch trigger.
func (s *JobStore) ListEnabledScheduledJobs() ([]etl.Job, error) {
	return s.queryJobs(`SELECT ` + jobColumns + ` FROM river_jobs
		 WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		 ORDER BY created_at ASC, name ASC`)
}

func (s *JobStore) queryJobs(query string, args ...any) ([]etl.Job, error) {
	rows, err := s.db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []etl.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ── Run Logs ───────────────────────────────────────────────

func (s *JobStore) CreateRunLog(log *etl.SyncRunLog) error {
	log.ID = uuid.New().String()
	stats, _ := json.Marshal(log.Stats)
	_, err := s.db.conn.Exec(
		`INSERT INTO river_run_logs (id, job_id, started_at, finished_at, status, rows_read, stats, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobID, log.StartedAt, log.FinishedAt, log.Status, log.RowsRead, string(stats), log.Error,
	)
	return err
}

func (s *JobStore) ListRunLogs(jobID string, limit int) ([]etl.SyncRunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, started_at, finished_at, status, rows_read, stats, error
		 FROM river_run_logs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []etl.SyncRunLog
	for rows.Next() {
		var l etl.SyncRunLog
		var stats string
		if err := rows.Scan(&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt, &l.Status, &l.RowsRead, &stats, &l.Error); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stats), &l.Stats); err != nil {
			return nil, fmt.Errorf("decode run stats: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
