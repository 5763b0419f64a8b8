package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kirthikaaMK/drug-discovery/pkg/report"
)

const createJobsTableSQL = `
CREATE TABLE IF NOT EXISTS jobs (
    id VARCHAR(255) PRIMARY KEY,
    query TEXT NOT NULL,
    analysis_type VARCHAR(50),
    agents TEXT NOT NULL,
    status VARCHAR(20) NOT NULL,
    tasks TEXT NOT NULL,
    report TEXT,
    errors TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    deadline TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
`

// SQLiteStore is a SQLite-backed implementation of Store. Agent tasks,
// the agent subset, and the report are stored as JSON columns; the
// terminal-idempotence check runs inside a transaction so concurrent
// writers to the same job serialize on the database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures
// the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createJobsTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func marshalField(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize job field: %w", err)
	}
	return string(data), nil
}

func (s *SQLiteStore) insertJob(ctx context.Context, j *Job) error {
	agents, err := marshalField(j.Agents)
	if err != nil {
		return err
	}
	tasks, err := marshalField(j.Tasks)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO jobs (id, query, analysis_type, agents, status, tasks, report, errors, created_at, updated_at, deadline)
VALUES (?, ?, ?, ?, ?, ?, NULL, '[]', ?, ?, ?)`,
		j.ID, j.Query, j.AnalysisType, agents, string(j.Status), tasks,
		j.CreatedAt, j.UpdatedAt, j.Deadline)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// Create creates a new pending job.
func (s *SQLiteStore) Create(ctx context.Context, query, analysisType string, agents []string, deadline time.Time) (*Job, error) {
	now := time.Now()
	j := &Job{
		ID:           newJobID(),
		Query:        query,
		AnalysisType: analysisType,
		Agents:       append([]string(nil), agents...),
		Status:       StatusPending,
		Tasks:        make(map[string]*AgentTask, len(agents)),
		CreatedAt:    now,
		UpdatedAt:    now,
		Deadline:     deadline,
	}
	for _, name := range agents {
		j.Tasks[name] = &AgentTask{Agent: name, SubStatus: SubStatusQueued}
	}

	if err := s.insertJob(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

func scanJob(scanner interface{ Scan(...any) error }) (*Job, error) {
	var (
		j          Job
		status     string
		agentsJSON string
		tasksJSON  string
		reportJSON sql.NullString
		errorsJSON sql.NullString
	)
	err := scanner.Scan(&j.ID, &j.Query, &j.AnalysisType, &agentsJSON, &status,
		&tasksJSON, &reportJSON, &errorsJSON, &j.CreatedAt, &j.UpdatedAt, &j.Deadline)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	j.Status = Status(status)
	if err := json.Unmarshal([]byte(agentsJSON), &j.Agents); err != nil {
		return nil, fmt.Errorf("failed to decode agents: %w", err)
	}
	if err := json.Unmarshal([]byte(tasksJSON), &j.Tasks); err != nil {
		return nil, fmt.Errorf("failed to decode tasks: %w", err)
	}
	if reportJSON.Valid && reportJSON.String != "" {
		j.Report = &report.Report{}
		if err := json.Unmarshal([]byte(reportJSON.String), j.Report); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
	}
	if errorsJSON.Valid && errorsJSON.String != "" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &j.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode errors: %w", err)
		}
	}
	return &j, nil
}

const selectJobSQL = `
SELECT id, query, analysis_type, agents, status, tasks, report, errors, created_at, updated_at, deadline
FROM jobs`

// Get returns a snapshot of the job.
func (s *SQLiteStore) Get(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectJobSQL+` WHERE id = ?`, jobID)
	return scanJob(row)
}

// MarkRunning transitions a pending job to running.
func (s *SQLiteStore) MarkRunning(ctx context.Context, jobID string) error {
	return s.mutate(ctx, jobID, func(j *Job) error {
		if j.Status.IsTerminal() {
			return ErrJobTerminal
		}
		if j.Status == StatusPending {
			j.Status = StatusRunning
		}
		return nil
	})
}

// RecordTaskUpdate writes one agent task update.
func (s *SQLiteStore) RecordTaskUpdate(ctx context.Context, jobID string, task *AgentTask) error {
	return s.mutate(ctx, jobID, func(j *Job) error {
		if existing, ok := j.Tasks[task.Agent]; ok && existing.SubStatus.IsTerminal() {
			return ErrLateUpdate
		}
		j.Tasks[task.Agent] = task.Clone()
		if task.SubStatus == SubStatusFailed || task.SubStatus == SubStatusTimedOut {
			j.Errors = append(j.Errors, task.Agent+": "+task.ErrorDetail)
		}
		return nil
	})
}

// SetFinalReport writes the report and terminal status.
func (s *SQLiteStore) SetFinalReport(ctx context.Context, jobID string, status Status, rep *report.Report) error {
	return s.mutate(ctx, jobID, func(j *Job) error {
		if j.Status.IsTerminal() {
			return ErrJobTerminal
		}
		j.Status = status
		j.Report = rep
		return nil
	})
}

// mutate runs a read-modify-write of one job record in a transaction.
func (s *SQLiteStore) mutate(ctx context.Context, jobID string, fn func(*Job) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, selectJobSQL+` WHERE id = ?`, jobID)
	j, err := scanJob(row)
	if err != nil {
		return err
	}

	if err := fn(j); err != nil {
		return err
	}
	j.UpdatedAt = time.Now()

	tasks, err := marshalField(j.Tasks)
	if err != nil {
		return err
	}
	errs, err := marshalField(j.Errors)
	if err != nil {
		return err
	}
	var reportJSON any
	if j.Report != nil {
		reportJSON, err = marshalField(j.Report)
		if err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
UPDATE jobs SET status = ?, tasks = ?, report = ?, errors = ?, updated_at = ? WHERE id = ?`,
		string(j.Status), tasks, reportJSON, errs, j.UpdatedAt, j.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return tx.Commit()
}

// ListByStatus returns all jobs with the given status.
func (s *SQLiteStore) ListByStatus(ctx context.Context, status Status) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, selectJobSQL+` WHERE status = ? ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}
	return result, rows.Err()
}

// CountByStatus returns the number of jobs per status.
func (s *SQLiteStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[Status(status)] = n
	}
	return counts, rows.Err()
}

// Sweep evicts settled jobs older than ttl, then the oldest settled
// jobs beyond maxJobs.
func (s *SQLiteStore) Sweep(ctx context.Context, ttl time.Duration, maxJobs int) (int, error) {
	cutoff := time.Now().Add(-ttl)
	terminal := []any{string(StatusCompleted), string(StatusPartial), string(StatusFailed)}

	res, err := s.db.ExecContext(ctx, `
DELETE FROM jobs WHERE status IN (?, ?, ?) AND created_at < ?`,
		append(terminal, cutoff)...)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired jobs: %w", err)
	}
	removed, _ := res.RowsAffected()

	if maxJobs > 0 {
		res, err = s.db.ExecContext(ctx, `
DELETE FROM jobs WHERE id IN (
    SELECT id FROM jobs WHERE status IN (?, ?, ?)
    ORDER BY created_at ASC
    LIMIT MAX(0, (SELECT COUNT(*) FROM jobs) - ?)
)`, append(terminal, maxJobs)...)
		if err != nil {
			return int(removed), fmt.Errorf("failed to sweep excess jobs: %w", err)
		}
		excess, _ := res.RowsAffected()
		removed += excess
	}
	return int(removed), nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
