package jobs

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/djcrate/engine/internal/model"
)

// Status is the lifecycle state of an extraction job.
type Status string

const (
	StatusPending  Status = "pending"
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Job is one audio file's extraction work item.
type Job struct {
	ID          int64
	TrackPath   string
	Status      Status
	Attempts    int
	MaxAttempts int
	Result      *model.FeatureRecord
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// EnqueueBatch inserts one pending job per path, skipping paths already
// enqueued (a rerun over a directory that partially completed does not
// duplicate work).
func (d *DB) EnqueueBatch(paths []string) (int, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO jobs (track_path, status) VALUES (?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range paths {
		res, err := stmt.Exec(p, string(StatusPending))
		if err != nil {
			return inserted, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, tx.Commit()
}

// ClaimJob atomically claims the oldest pending job with attempts left.
// Returns nil, nil when no job is available.
func (d *DB) ClaimJob() (*Job, error) {
	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRow(`
		SELECT id, track_path, status, attempts, max_attempts, created_at
		FROM jobs
		WHERE status = ? AND attempts < max_attempts
		ORDER BY created_at ASC
		LIMIT 1
	`, string(StatusPending))

	job := &Job{}
	var createdAt string
	if err := row.Scan(&job.ID, &job.TrackPath, &job.Status, &job.Attempts, &job.MaxAttempts, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	now := time.Now()
	if _, err := tx.Exec(`
		UPDATE jobs SET status = ?, started_at = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = ?
	`, string(StatusRunning), now, now, job.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	job.Status = StatusRunning
	job.Attempts++
	job.StartedAt = &now
	return job, nil
}

// CompleteJob records a job's extracted FeatureRecord and marks it done.
func (d *DB) CompleteJob(jobID int64, record model.FeatureRecord) error {
	resultJSON, err := json.Marshal(record)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = d.db.Exec(`
		UPDATE jobs SET status = ?, result_json = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`, string(StatusComplete), string(resultJSON), now, now, jobID)
	return err
}

// FailJob records an extraction failure. The job remains eligible for
// retry until attempts reaches max_attempts.
func (d *DB) FailJob(jobID int64, errMsg string) error {
	now := time.Now()
	_, err := d.db.Exec(`
		UPDATE jobs SET status = ?, error = ?, updated_at = ?
		WHERE id = ? AND attempts >= max_attempts
	`, string(StatusFailed), errMsg, now, jobID)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(`
		UPDATE jobs SET status = ?, error = ?, updated_at = ?
		WHERE id = ? AND attempts < max_attempts
	`, string(StatusPending), errMsg, now, jobID)
	return err
}

// ResetStalledJobs requeues jobs stuck in "running" past timeout,
// recovering from a worker that crashed mid-extraction.
func (d *DB) ResetStalledJobs(timeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-timeout)
	result, err := d.db.Exec(`
		UPDATE jobs SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE status = ? AND started_at < ? AND attempts < max_attempts
	`, string(StatusPending), string(StatusRunning), cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// PendingCount returns the number of jobs still awaiting a worker.
func (d *DB) PendingCount() (int, error) {
	var count int
	row := d.db.QueryRow(`SELECT COUNT(*) FROM jobs WHERE status = ?`, string(StatusPending))
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CompletedRecords returns the FeatureRecord of every completed job,
// the input to C5/C6/C7 once a batch extraction run finishes.
func (d *DB) CompletedRecords() ([]model.FeatureRecord, error) {
	rows, err := d.db.Query(`SELECT result_json FROM jobs WHERE status = ? AND result_json IS NOT NULL`, string(StatusComplete))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.FeatureRecord
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec model.FeatureRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
