package job

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirthikaaMK/drug-discovery/pkg/report"
)

// Store persists job records.
//
// RecordTaskUpdate is idempotent once a task is terminal: a late
// duplicate update is rejected with ErrLateUpdate, which callers log
// and swallow. Get always returns a consistent snapshot — a reader
// never observes a terminal job with a non-terminal task.
type Store interface {
	// Create creates a new pending job and returns it.
	Create(ctx context.Context, query, analysisType string, agents []string, deadline time.Time) (*Job, error)

	// Get returns a snapshot of the job.
	Get(ctx context.Context, jobID string) (*Job, error)

	// MarkRunning transitions a pending job to running.
	MarkRunning(ctx context.Context, jobID string) error

	// RecordTaskUpdate writes one agent task update.
	RecordTaskUpdate(ctx context.Context, jobID string, task *AgentTask) error

	// SetFinalReport writes the aggregated report and the terminal status.
	SetFinalReport(ctx context.Context, jobID string, status Status, rep *report.Report) error

	// ListByStatus returns snapshots of all jobs with the given status.
	ListByStatus(ctx context.Context, status Status) ([]*Job, error)

	// CountByStatus returns the number of jobs per status.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// Sweep evicts settled jobs older than ttl and, if more than
	// maxJobs remain, the oldest beyond the cap. Returns the number
	// of evicted jobs. Retention policy belongs to the caller; the
	// orchestration core never invokes Sweep itself.
	Sweep(ctx context.Context, ttl time.Duration, maxJobs int) (int, error)

	// Close releases store resources.
	Close() error
}

// Errors
var (
	ErrJobNotFound = &StoreError{Code: "job_not_found", Message: "job not found"}
	ErrJobTerminal = &StoreError{Code: "job_terminal", Message: "job is in terminal state"}
	ErrLateUpdate  = &StoreError{Code: "late_update", Message: "task already terminal"}
)

// StoreError is a job store error.
type StoreError struct {
	Code    string
	Message string
}

func (e *StoreError) Error() string {
	return e.Message
}

func newJobID() string {
	return uuid.New().String()
}

// entry pairs a job record with its own lock so writers on different
// jobs never contend. The store-level lock only guards the map.
type entry struct {
	mu  sync.RWMutex
	job *Job
}

// InMemoryStore is an in-memory implementation of Store.
type InMemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewInMemoryStore creates a new in-memory job store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		jobs: make(map[string]*entry),
	}
}

// Create creates a new pending job.
func (s *InMemoryStore) Create(_ context.Context, query, analysisType string, agents []string, deadline time.Time) (*Job, error) {
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

	s.mu.Lock()
	s.jobs[j.ID] = &entry{job: j}
	s.mu.Unlock()

	return j.Clone(), nil
}

func (s *InMemoryStore) entry(jobID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return e, nil
}

// Get returns a snapshot of the job.
func (s *InMemoryStore) Get(_ context.Context, jobID string) (*Job, error) {
	e, err := s.entry(jobID)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.job.Clone(), nil
}

// MarkRunning transitions a pending job to running.
func (s *InMemoryStore) MarkRunning(_ context.Context, jobID string) error {
	e, err := s.entry(jobID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job.Status.IsTerminal() {
		return ErrJobTerminal
	}
	if e.job.Status == StatusPending {
		e.job.Status = StatusRunning
		e.job.UpdatedAt = time.Now()
	}
	return nil
}

// RecordTaskUpdate writes one agent task update. Once a task is
// terminal, further updates for it are rejected with ErrLateUpdate.
func (s *InMemoryStore) RecordTaskUpdate(_ context.Context, jobID string, task *AgentTask) error {
	e, err := s.entry(jobID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if existing, ok := e.job.Tasks[task.Agent]; ok && existing.SubStatus.IsTerminal() {
		return ErrLateUpdate
	}
	e.job.Tasks[task.Agent] = task.Clone()
	if task.SubStatus == SubStatusFailed || task.SubStatus == SubStatusTimedOut {
		e.job.Errors = append(e.job.Errors, task.Agent+": "+task.ErrorDetail)
	}
	e.job.UpdatedAt = time.Now()
	return nil
}

// SetFinalReport writes the report and terminal status.
func (s *InMemoryStore) SetFinalReport(_ context.Context, jobID string, status Status, rep *report.Report) error {
	e, err := s.entry(jobID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.job.Status.IsTerminal() {
		return ErrJobTerminal
	}
	e.job.Status = status
	e.job.Report = rep
	e.job.UpdatedAt = time.Now()
	return nil
}

// ListByStatus returns snapshots of all jobs with the given status.
func (s *InMemoryStore) ListByStatus(_ context.Context, status Status) ([]*Job, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	var result []*Job
	for _, e := range entries {
		e.mu.RLock()
		if e.job.Status == status {
			result = append(result, e.job.Clone())
		}
		e.mu.RUnlock()
	}
	return result, nil
}

// CountByStatus returns the number of jobs per status.
func (s *InMemoryStore) CountByStatus(_ context.Context) (map[Status]int, error) {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	counts := make(map[Status]int)
	for _, e := range entries {
		e.mu.RLock()
		counts[e.job.Status]++
		e.mu.RUnlock()
	}
	return counts, nil
}

// Sweep evicts settled jobs older than ttl, then the oldest settled
// jobs beyond maxJobs. Running jobs are never evicted.
func (s *InMemoryStore) Sweep(_ context.Context, ttl time.Duration, maxJobs int) (int, error) {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	type aged struct {
		id      string
		created time.Time
	}
	var settled []aged

	removed := 0
	for id, e := range s.jobs {
		e.mu.RLock()
		terminal := e.job.Status.IsTerminal()
		created := e.job.CreatedAt
		e.mu.RUnlock()

		if !terminal {
			continue
		}
		if created.Before(cutoff) {
			delete(s.jobs, id)
			removed++
			continue
		}
		settled = append(settled, aged{id: id, created: created})
	}

	if maxJobs > 0 && len(s.jobs) > maxJobs {
		sort.Slice(settled, func(i, j int) bool {
			return settled[i].created.Before(settled[j].created)
		})
		for _, a := range settled {
			if len(s.jobs) <= maxJobs {
				break
			}
			delete(s.jobs, a.id)
			removed++
		}
	}
	return removed, nil
}

// Close releases store resources.
func (s *InMemoryStore) Close() error {
	return nil
}
