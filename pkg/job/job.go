// Package job provides the job state store.
//
// A Job is one query-processing request spanning a set of agents. The
// store tracks per-agent task outcomes and the overall job lifecycle
// (pending → running → completed/partial/failed). Status transitions
// are monotonic: a terminal job or task never changes again.
package job

import (
	"time"

	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/report"
)

// Status is the overall job status.
type Status string

const (
	// StatusPending means the job has been created but not dispatched.
	StatusPending Status = "pending"

	// StatusRunning means agents are being dispatched.
	StatusRunning Status = "running"

	// StatusCompleted means every agent produced a usable result.
	StatusCompleted Status = "completed"

	// StatusPartial means some agents failed but the report is usable.
	StatusPartial Status = "partial"

	// StatusFailed means no agent produced a usable result.
	StatusFailed Status = "failed"
)

// IsTerminal returns whether this status is terminal.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusPartial, StatusFailed:
		return true
	}
	return false
}

// FromComposite maps a report composite status to a job status.
func FromComposite(cs report.CompositeStatus) Status {
	switch cs {
	case report.StatusComplete:
		return StatusCompleted
	case report.StatusPartial:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// SubStatus is the per-agent task status.
type SubStatus string

const (
	// SubStatusQueued means the task has not started yet.
	SubStatusQueued SubStatus = "queued"

	// SubStatusRunning means the agent invocation is in flight.
	SubStatusRunning SubStatus = "running"

	// SubStatusSucceeded means the live call produced a result.
	SubStatusSucceeded SubStatus = "succeeded"

	// SubStatusFailed means neither the live nor the fallback path
	// produced a result.
	SubStatusFailed SubStatus = "failed"

	// SubStatusFallbackUsed means the fallback path produced the result.
	SubStatusFallbackUsed SubStatus = "fallback_used"

	// SubStatusTimedOut means the task was force-settled at the job deadline.
	SubStatusTimedOut SubStatus = "timed_out"
)

// IsTerminal returns whether this sub-status is terminal.
func (s SubStatus) IsTerminal() bool {
	switch s {
	case SubStatusSucceeded, SubStatusFailed, SubStatusFallbackUsed, SubStatusTimedOut:
		return true
	}
	return false
}

// Usable reports whether the task contributed a result to the report.
func (s SubStatus) Usable() bool {
	return s == SubStatusSucceeded || s == SubStatusFallbackUsed
}

// AgentTask is the execution record for one (job, agent) pair.
type AgentTask struct {
	Agent       string          `json:"agent"`
	SubStatus   SubStatus       `json:"sub_status"`
	Source      agent.Source    `json:"source,omitempty"`
	StartedAt   time.Time       `json:"started_at,omitempty"`
	FinishedAt  time.Time       `json:"finished_at,omitempty"`
	Result      *agent.Result   `json:"result,omitempty"`
	ErrorKind   agent.ErrorKind `json:"error_kind,omitempty"`
	ErrorDetail string          `json:"error_detail,omitempty"`
}

// Clone returns a copy of the task. The result payload is shared: it
// is written once at settlement and treated as immutable afterwards.
func (t *AgentTask) Clone() *AgentTask {
	c := *t
	return &c
}

// Job is one tracked analysis request.
type Job struct {
	ID           string `json:"id"`
	Query        string `json:"query"`
	AnalysisType string `json:"analysis_type,omitempty"`

	// Agents is the requested agent subset, in submission order.
	Agents []string `json:"agents"`

	Status Status                `json:"status"`
	Tasks  map[string]*AgentTask `json:"tasks"`

	// Report is nil until aggregation.
	Report *report.Report `json:"report,omitempty"`

	// Errors summarizes per-agent failures for diagnostics.
	Errors []string `json:"errors,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Deadline  time.Time `json:"deadline"`
}

// Progress returns the fraction of requested agents that have settled.
func (j *Job) Progress() float64 {
	if len(j.Agents) == 0 {
		return 0
	}
	settled := 0
	for _, t := range j.Tasks {
		if t.SubStatus.IsTerminal() {
			settled++
		}
	}
	return float64(settled) / float64(len(j.Agents))
}

// Clone returns a deep-enough copy for handing out as a snapshot.
func (j *Job) Clone() *Job {
	c := *j
	c.Agents = append([]string(nil), j.Agents...)
	c.Errors = append([]string(nil), j.Errors...)
	c.Tasks = make(map[string]*AgentTask, len(j.Tasks))
	for name, t := range j.Tasks {
		c.Tasks[name] = t.Clone()
	}
	return &c
}
