package orchestrator

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/breaker"
	"github.com/kirthikaaMK/drug-discovery/pkg/job"
)

// maxConcurrentAgents bounds the fan-out per job.
const maxConcurrentAgents = 10

// runJob executes the fan-out for one job and aggregates the outcome.
// It runs on its own goroutine with a deadline-bound context detached
// from the submitting request.
func (e *Engine) runJob(jobID, query string, agentNames []string, deadline time.Time) {
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	started := time.Now()

	if err := e.store.MarkRunning(ctx, jobID); err != nil {
		e.logger.Error("Failed to mark job running", "job_id", jobID, "error", err)
		// The job must still settle: fail every task and write a
		// terminal report rather than leaving the job pending forever.
		for _, name := range agentNames {
			e.settle(ctx, jobID, &job.AgentTask{
				Agent:       name,
				SubStatus:   job.SubStatusFailed,
				ErrorKind:   agent.KindInternal,
				ErrorDetail: "job failed to start: " + err.Error(),
				FinishedAt:  time.Now(),
			})
		}
		e.aggregate(jobID, started)
		return
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrentAgents)
	for _, name := range agentNames {
		name := name
		g.Go(func() error {
			e.runAgent(ctx, jobID, query, name)
			return nil
		})
	}
	_ = g.Wait()

	e.aggregate(jobID, started)
}

// runAgent drives one agent task from queued to a terminal sub-status
// and writes every transition to the store as it happens.
func (e *Engine) runAgent(ctx context.Context, jobID, query, name string) {
	ag, ok := e.registry.Get(name)
	if !ok {
		// Validated at submission; losing an agent mid-flight still
		// settles the task rather than leaving it queued.
		e.settle(ctx, jobID, &job.AgentTask{
			Agent:       name,
			SubStatus:   job.SubStatusFailed,
			ErrorKind:   agent.KindInternal,
			ErrorDetail: "agent not registered",
			FinishedAt:  time.Now(),
		})
		return
	}

	startedAt := time.Now()
	if err := e.store.RecordTaskUpdate(ctx, jobID, &job.AgentTask{
		Agent:     name,
		SubStatus: job.SubStatusRunning,
		StartedAt: startedAt,
	}); err != nil {
		e.logger.Warn("Failed to mark task running", "job_id", jobID, "agent", name, "error", err)
	}

	br := e.breakers.Get(name)

	if !br.Allow() {
		// Open breaker: skip the live path entirely.
		e.logger.Info("Breaker open, using fallback", "job_id", jobID, "agent", name)
		e.runFallback(ctx, jobID, query, name, ag, startedAt, agent.KindUpstream, "circuit breaker open")
		return
	}

	res, err := e.callLive(ctx, ag, query)
	if err == nil {
		br.RecordSuccess()
		e.metrics.RecordAgentCall(ctx, name, string(res.Source), time.Since(startedAt))
		e.settle(ctx, jobID, &job.AgentTask{
			Agent:      name,
			SubStatus:  job.SubStatusSucceeded,
			Source:     res.Source,
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
			Result:     res,
		})
		return
	}

	kind, detail := classifyFailure(name, err)
	e.metrics.RecordAgentError(ctx, name, string(kind))

	var aerr *agent.Error
	if errors.As(err, &aerr) && aerr.CountsAgainstBreaker() {
		wasClosed := br.State() == breaker.StateClosed
		br.RecordFailure()
		if wasClosed && br.State() == breaker.StateOpen {
			e.metrics.RecordBreakerOpen(ctx, name)
			e.logger.Warn("Circuit breaker opened", "agent", name)
		}
	} else {
		// The failure says nothing about upstream health, but a
		// half-open trial slot must still be released.
		br.RecordNonCounting()
	}

	e.logger.Warn("Agent live path failed, trying fallback",
		"job_id", jobID, "agent", name, "kind", kind, "error", err)
	e.runFallback(ctx, jobID, query, name, ag, startedAt, kind, detail)
}

// callLive invokes the agent's live path under its declared timeout.
// A hung agent is abandoned at the deadline; its eventual return is
// discarded.
func (e *Engine) callLive(ctx context.Context, ag agent.Capability, query string) (*agent.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, ag.Timeout())
	defer cancel()

	type outcome struct {
		res *agent.Result
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := ag.Analyze(ctx, query)
		ch <- outcome{res, err}
	}()

	select {
	case o := <-ch:
		return o.res, o.err
	case <-ctx.Done():
		return nil, agent.NewError(ag.Name(), agent.KindTimeout, ctx.Err())
	}
}

// runFallback runs the degraded path after a live failure or an open
// breaker and settles the task. Fallback failures settle the task as
// failed (or timed out, when the live failure was a timeout) so the
// aggregate never waits on a lost agent.
func (e *Engine) runFallback(ctx context.Context, jobID, query, name string, ag agent.Capability, startedAt time.Time, liveKind agent.ErrorKind, liveDetail string) {
	if ctx.Err() != nil {
		// The job deadline has passed; the task is forced to a
		// terminal state without a fallback attempt.
		e.settle(ctx, jobID, &job.AgentTask{
			Agent:       name,
			SubStatus:   job.SubStatusTimedOut,
			StartedAt:   startedAt,
			FinishedAt:  time.Now(),
			ErrorKind:   agent.KindTimeout,
			ErrorDetail: liveDetail + "; job deadline exceeded",
		})
		return
	}

	res, err := ag.Fallback(ctx, query)
	if err == nil && res != nil {
		res.Source = agent.SourceFallback
		e.metrics.RecordAgentCall(ctx, name, string(agent.SourceFallback), time.Since(startedAt))
		e.settle(ctx, jobID, &job.AgentTask{
			Agent:      name,
			SubStatus:  job.SubStatusFallbackUsed,
			Source:     agent.SourceFallback,
			StartedAt:  startedAt,
			FinishedAt: time.Now(),
			Result:     res,
			// Keep the live failure for diagnostics even though the
			// task produced a usable result.
			ErrorKind:   liveKind,
			ErrorDetail: liveDetail,
		})
		return
	}

	sub := job.SubStatusFailed
	if liveKind == agent.KindTimeout {
		sub = job.SubStatusTimedOut
	}
	detail := liveDetail
	if err != nil {
		detail = detail + "; fallback: " + err.Error()
		e.logger.Error("Agent fallback failed", "job_id", jobID, "agent", name, "error", err)
	}
	e.settle(ctx, jobID, &job.AgentTask{
		Agent:       name,
		SubStatus:   sub,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
		ErrorKind:   liveKind,
		ErrorDetail: detail,
	})
}

// settle writes a terminal task update. A late-update rejection is
// logged and dropped; the stored outcome stands.
func (e *Engine) settle(ctx context.Context, jobID string, task *job.AgentTask) {
	// Settlement must reach the store even when the job deadline has
	// expired the context.
	err := e.store.RecordTaskUpdate(context.WithoutCancel(ctx), jobID, task)
	if err == nil {
		return
	}
	if errors.Is(err, job.ErrLateUpdate) {
		e.logger.Warn("Dropping late task update",
			"job_id", jobID, "agent", task.Agent, "sub_status", task.SubStatus)
		return
	}
	e.logger.Error("Failed to record task update",
		"job_id", jobID, "agent", task.Agent, "error", err)
}

// classifyFailure extracts the error kind and detail from an agent
// error, defaulting to internal for unclassified failures.
func classifyFailure(name string, err error) (agent.ErrorKind, string) {
	var aerr *agent.Error
	if errors.As(err, &aerr) {
		return aerr.Kind, aerr.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return agent.KindTimeout, err.Error()
	}
	return agent.KindInternal, err.Error()
}
