// Package agent defines the uniform contract every analysis agent
// implements: a live analysis path, a degraded fallback path, and a
// declared per-invocation timeout. The orchestration core invokes
// agents only through this contract and never performs I/O itself.
package agent

import (
	"context"
	"fmt"
	"time"
)

// Source identifies where a result came from.
type Source string

const (
	// SourceLive means the result came from the agent's upstream source.
	SourceLive Source = "live"

	// SourceFallback means the result came from the agent's degraded
	// local data path.
	SourceFallback Source = "fallback"

	// SourceCached means the result was served from a cache.
	SourceCached Source = "cached"
)

// ErrorKind classifies agent failures.
type ErrorKind string

const (
	// KindTimeout means the agent could not finish within its deadline.
	KindTimeout ErrorKind = "timeout"

	// KindUpstream means the agent's upstream data source failed.
	KindUpstream ErrorKind = "upstream_error"

	// KindInvalidInput means the query was unusable for this agent.
	KindInvalidInput ErrorKind = "invalid_input"

	// KindInternal means the agent itself failed.
	KindInternal ErrorKind = "internal"
)

// Error is a classified agent failure.
type Error struct {
	Agent string
	Kind  ErrorKind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s: %s: %v", e.Agent, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// CountsAgainstBreaker reports whether this failure should trip the
// agent's circuit breaker. Only upstream health signals count; bad
// input and agent bugs say nothing about the upstream source.
func (e *Error) CountsAgainstBreaker() bool {
	return e.Kind == KindTimeout || e.Kind == KindUpstream
}

// NewError builds a classified agent error.
func NewError(agent string, kind ErrorKind, err error) *Error {
	return &Error{Agent: agent, Kind: kind, Err: err}
}

// Result is the envelope every agent returns. The payload fields
// (Insights, Data, Charts) are opaque to the orchestration core.
type Result struct {
	// Agent is the display name of the producing agent.
	Agent string `json:"agent"`

	// Insights is a prose summary of the analysis.
	Insights string `json:"insights"`

	// Data holds tabular records backing the insights.
	Data []map[string]any `json:"data"`

	// Charts holds named chart series for presentation.
	Charts map[string]any `json:"charts"`

	// Confidence is the agent's quality flag for this result, in [0,1].
	Confidence float64 `json:"confidence"`

	// Source records which data path produced the result.
	Source Source `json:"source"`

	// GeneratedAt is when the result was produced.
	GeneratedAt time.Time `json:"generated_at"`
}

// Capability is the contract every concrete agent implements.
//
// Analyze is the live path: it must honor ctx and return a KindTimeout
// error itself rather than block past the deadline (the dispatcher
// also enforces a hard external timeout as a backstop). Fallback is
// the degraded path and must not perform network I/O.
type Capability interface {
	// Name returns the agent's registry name.
	Name() string

	// Analyze runs the live analysis for the query.
	Analyze(ctx context.Context, query string) (*Result, error)

	// Fallback runs the degraded local analysis for the query.
	Fallback(ctx context.Context, query string) (*Result, error)

	// Timeout is the declared per-invocation timeout for the live path.
	Timeout() time.Duration
}
