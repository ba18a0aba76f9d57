package renderdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusError   = "error"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("render job not found")

// Job is one recorded render invocation.
type Job struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Compositor string    `json:"compositor"`
	Params     string    `json:"params"` // JSON blob of camera/raster params
	OutputPath string    `json:"output_path,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CreateJob inserts a new pending job and assigns it a uuid.
func (db *DB) CreateJob(job *Job) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = StatusPending
	}
	if job.Params == "" {
		job.Params = "{}"
	}

	_, err := db.Exec(`
		INSERT INTO render_jobs (id, source, compositor, params, status)
		VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Source, job.Compositor, job.Params, job.Status)
	if err != nil {
		return fmt.Errorf("failed to insert render job: %w", err)
	}
	return nil
}

// GetJob fetches one job by id.
func (db *DB) GetJob(id string) (*Job, error) {
	row := db.QueryRow(`
		SELECT id, source, compositor, params, output_path, status, error,
		       duration_ms, created_at, updated_at
		FROM render_jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch render job %s: %w", id, err)
	}
	return job, nil
}

// MarkRunning transitions a job to the running state.
func (db *DB) MarkRunning(id string) error {
	return db.setStatus(id, StatusRunning, "", "", 0)
}

// MarkDone records a successful render.
func (db *DB) MarkDone(id, outputPath string, duration time.Duration) error {
	return db.setStatus(id, StatusDone, "", outputPath, duration.Milliseconds())
}

// MarkError records a failed render.
func (db *DB) MarkError(id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return db.setStatus(id, StatusError, msg, "", 0)
}

func (db *DB) setStatus(id, status, errMsg, outputPath string, durationMS int64) error {
	res, err := db.Exec(`
		UPDATE render_jobs
		SET status = ?, error = ?,
		    output_path = CASE WHEN ? != '' THEN ? ELSE output_path END,
		    duration_ms = CASE WHEN ? > 0 THEN ? ELSE duration_ms END,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		status, errMsg, outputPath, outputPath, durationMS, durationMS, id)
	if err != nil {
		return fmt.Errorf("failed to update render job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// RecentJobs lists up to limit jobs, newest first.
func (db *DB) RecentJobs(limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, source, compositor, params, output_path, status, error,
		       duration_ms, created_at, updated_at
		FROM render_jobs
		ORDER BY rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list render jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan render job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// NextPending returns the oldest pending job, or nil when the queue is
// empty. Ordering is by rowid rather than created_at: CURRENT_TIMESTAMP has
// one-second resolution, so jobs enqueued within the same second would
// otherwise drain in uuid order instead of insertion order.
func (db *DB) NextPending() (*Job, error) {
	row := db.QueryRow(`
		SELECT id, source, compositor, params, output_path, status, error,
		       duration_ms, created_at, updated_at
		FROM render_jobs
		WHERE status = ?
		ORDER BY rowid
		LIMIT 1`, StatusPending)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending job: %w", err)
	}
	return job, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (*Job, error) {
	var job Job
	err := r.Scan(&job.ID, &job.Source, &job.Compositor, &job.Params,
		&job.OutputPath, &job.Status, &job.Error, &job.DurationMS,
		&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}
