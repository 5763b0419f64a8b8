package orchestrator

import (
	"context"
	"time"

	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/job"
	"github.com/kirthikaaMK/drug-discovery/pkg/report"
)

// aggregate builds the final report from the settled tasks and writes
// it together with the terminal job status. It runs exactly once per
// job, after every task has settled.
func (e *Engine) aggregate(jobID string, started time.Time) {
	ctx := context.Background()

	j, err := e.store.Get(ctx, jobID)
	if err != nil {
		e.logger.Error("Failed to load job for aggregation", "job_id", jobID, "error", err)
		return
	}

	results := make(map[string]*agent.Result)
	failures := make(map[string]*report.FailureNote)

	for _, name := range j.Agents {
		t, ok := j.Tasks[name]
		switch {
		case ok && t.SubStatus.Usable() && t.Result != nil:
			results[name] = t.Result
		case ok:
			kind := t.ErrorKind
			if kind == "" {
				kind = agent.KindInternal
			}
			failures[name] = &report.FailureNote{
				Agent:  name,
				Kind:   kind,
				Detail: t.ErrorDetail,
			}
		default:
			failures[name] = &report.FailureNote{
				Agent:  name,
				Kind:   agent.KindInternal,
				Detail: "task never dispatched",
			}
		}
	}

	coverage := 0.0
	if len(j.Agents) > 0 {
		coverage = float64(len(results)) / float64(len(j.Agents))
	}

	var status report.CompositeStatus
	switch {
	case len(failures) == 0 && coverage == 1:
		status = report.StatusComplete
	case len(results) == 0:
		status = report.StatusFailed
	default:
		status = report.StatusPartial
	}

	rep := &report.Report{
		JobID:       jobID,
		Query:       j.Query,
		GeneratedAt: time.Now(),
		Status:      status,
		Coverage:    coverage,
		Results:     results,
		Failures:    failures,
		Summary:     report.Synthesize(j.Query, results, failures),
	}

	final := job.FromComposite(status)
	if err := e.store.SetFinalReport(ctx, jobID, final, rep); err != nil {
		e.logger.Error("Failed to store final report", "job_id", jobID, "error", err)
		return
	}

	e.metrics.RecordJobFinished(ctx, string(final), time.Since(started))
	e.logger.Info("Job finished",
		"job_id", jobID,
		"status", final,
		"coverage", coverage,
		"duration", time.Since(started).Round(time.Millisecond))
}
