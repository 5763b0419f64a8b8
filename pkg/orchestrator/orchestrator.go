// Package orchestrator is the job orchestration engine: it validates
// submissions, fans a query out to the requested agents, shields each
// agent behind a circuit breaker, and aggregates the settled tasks
// into a final report.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/agents"
	"github.com/kirthikaaMK/drug-discovery/pkg/breaker"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
	"github.com/kirthikaaMK/drug-discovery/pkg/job"
	"github.com/kirthikaaMK/drug-discovery/pkg/logger"
	"github.com/kirthikaaMK/drug-discovery/pkg/observability"
	"github.com/kirthikaaMK/drug-discovery/pkg/report"
)

// Engine coordinates job execution end to end. Submissions return
// immediately; the fan-out runs on background goroutines and callers
// observe progress through Status and Result.
type Engine struct {
	cfg      config.OrchestratorConfig
	registry *agent.Registry
	store    job.Store
	breakers *breaker.Table
	metrics  *observability.Metrics
	logger   *slog.Logger

	wg sync.WaitGroup
}

// New builds an engine over the given registry and store. Breaker
// settings are shared by all agents; each agent gets its own breaker
// lazily on first dispatch.
func New(cfg *config.Config, reg *agent.Registry, store job.Store, metrics *observability.Metrics) *Engine {
	return &Engine{
		cfg:      cfg.Orchestrator,
		registry: reg,
		store:    store,
		breakers: breaker.NewTable(
			cfg.Breaker.FailureThreshold,
			time.Duration(cfg.Breaker.OpenDuration),
			time.Duration(cfg.Breaker.MaxOpenDuration),
		),
		metrics: metrics,
		logger:  logger.GetLogger(),
	}
}

// Breakers exposes the breaker table for health reporting.
func (e *Engine) Breakers() *breaker.Table {
	return e.breakers
}

// Store exposes the job store for retention and health reporting.
func (e *Engine) Store() job.Store {
	return e.store
}

// Submit validates the request, creates a pending job, and starts the
// fan-out in the background. The returned snapshot reflects the job
// before any agent has run.
func (e *Engine) Submit(ctx context.Context, query, analysisType string, agentNames []string) (*job.Job, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, NewInvalidQueryError("query must not be empty")
	}
	if max := e.cfg.MaxQueryLength; max > 0 && utf8.RuneCountInString(query) > max {
		return nil, NewInvalidQueryError("query exceeds maximum length of %d characters", max)
	}

	if analysisType == "" {
		analysisType = agents.AnalysisComprehensive
	}
	if !agents.KnownAnalysisType(analysisType) {
		e.logger.Warn("Unknown analysis type, defaulting to comprehensive",
			"analysis_type", analysisType)
		analysisType = agents.AnalysisComprehensive
	}

	if len(agentNames) == 0 {
		if analysisType == agents.AnalysisComprehensive && len(e.cfg.DefaultAgents) > 0 {
			agentNames = e.cfg.DefaultAgents
		} else {
			agentNames = agents.Preset(analysisType)
		}
	}

	// Validate the subset before any state is created: one unknown
	// agent rejects the whole submission.
	selected := make([]string, 0, len(agentNames))
	seen := make(map[string]bool, len(agentNames))
	for _, name := range agentNames {
		if _, ok := e.registry.Get(name); !ok {
			return nil, NewInvalidQueryError("unknown agent %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, name)
	}

	deadline := time.Now().Add(time.Duration(e.cfg.JobDeadline))
	j, err := e.store.Create(ctx, query, analysisType, selected, deadline)
	if err != nil {
		return nil, err
	}

	e.metrics.RecordJobSubmitted(ctx, analysisType)
	e.logger.Info("Job submitted",
		"job_id", j.ID,
		"analysis_type", analysisType,
		"agents", len(selected))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runJob(j.ID, j.Query, selected, deadline)
	}()

	return j, nil
}

// Status returns a snapshot of the job.
func (e *Engine) Status(ctx context.Context, jobID string) (*job.Job, error) {
	j, err := e.store.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return nil, NewNotFoundError(jobID)
		}
		return nil, err
	}
	return j, nil
}

// Result returns the final report. Polling before the job settles
// yields a not-ready error; repeated polls after settlement return
// the identical report.
func (e *Engine) Result(ctx context.Context, jobID string) (*report.Report, error) {
	j, err := e.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !j.Status.IsTerminal() || j.Report == nil {
		return nil, NewNotReadyError(jobID)
	}
	return j.Report, nil
}

// Close waits for in-flight jobs to settle.
func (e *Engine) Close() error {
	e.wg.Wait()
	return nil
}
