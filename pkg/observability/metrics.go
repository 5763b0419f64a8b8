// Package observability exposes Prometheus metrics for the
// orchestration engine via the OpenTelemetry metrics SDK. A nil or
// disabled Metrics value is safe to record against.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the engine's instruments.
type Metrics struct {
	jobsSubmitted metric.Int64Counter
	jobsFinished  metric.Int64Counter
	jobDuration   metric.Float64Histogram

	agentCalls    metric.Int64Counter
	agentErrors   metric.Int64Counter
	agentDuration metric.Float64Histogram

	breakerOpens metric.Int64Counter
}

// Init builds the Prometheus exporter and all instruments. When
// enabled is false it returns an inert Metrics value.
func Init(ctx context.Context, enabled bool) (*Metrics, error) {
	if !enabled {
		return &Metrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("drugdiscovery")

	jobsSubmitted, err := meter.Int64Counter(
		"drugdiscovery_jobs_submitted_total",
		metric.WithDescription("Total jobs submitted"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs submitted counter: %w", err)
	}

	jobsFinished, err := meter.Int64Counter(
		"drugdiscovery_jobs_finished_total",
		metric.WithDescription("Total jobs finished, by terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create jobs finished counter: %w", err)
	}

	jobDuration, err := meter.Float64Histogram(
		"drugdiscovery_job_duration_seconds",
		metric.WithDescription("Job duration from submission to aggregation in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create job duration histogram: %w", err)
	}

	agentCalls, err := meter.Int64Counter(
		"drugdiscovery_agent_calls_total",
		metric.WithDescription("Total agent invocations, by agent and source"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent calls counter: %w", err)
	}

	agentErrors, err := meter.Int64Counter(
		"drugdiscovery_agent_errors_total",
		metric.WithDescription("Total agent failures, by agent and error kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent errors counter: %w", err)
	}

	agentDuration, err := meter.Float64Histogram(
		"drugdiscovery_agent_call_duration_seconds",
		metric.WithDescription("Agent call duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent duration histogram: %w", err)
	}

	breakerOpens, err := meter.Int64Counter(
		"drugdiscovery_breaker_opens_total",
		metric.WithDescription("Total circuit breaker open transitions, by agent"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create breaker opens counter: %w", err)
	}

	return &Metrics{
		jobsSubmitted: jobsSubmitted,
		jobsFinished:  jobsFinished,
		jobDuration:   jobDuration,
		agentCalls:    agentCalls,
		agentErrors:   agentErrors,
		agentDuration: agentDuration,
		breakerOpens:  breakerOpens,
	}, nil
}

// RecordJobSubmitted counts one submission.
func (m *Metrics) RecordJobSubmitted(ctx context.Context, analysisType string) {
	if m == nil || m.jobsSubmitted == nil {
		return
	}
	m.jobsSubmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("analysis_type", analysisType)))
}

// RecordJobFinished counts one terminal job and its duration.
func (m *Metrics) RecordJobFinished(ctx context.Context, status string, duration time.Duration) {
	if m == nil || m.jobsFinished == nil {
		return
	}
	m.jobsFinished.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)))
	m.jobDuration.Record(ctx, duration.Seconds())
}

// RecordAgentCall counts one agent invocation.
func (m *Metrics) RecordAgentCall(ctx context.Context, agent, source string, duration time.Duration) {
	if m == nil || m.agentCalls == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("source", source),
	)
	m.agentCalls.Add(ctx, 1, attrs)
	m.agentDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("agent", agent)))
}

// RecordAgentError counts one classified agent failure.
func (m *Metrics) RecordAgentError(ctx context.Context, agent, kind string) {
	if m == nil || m.agentErrors == nil {
		return
	}
	m.agentErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("kind", kind),
	))
}

// RecordBreakerOpen counts one closed-to-open transition.
func (m *Metrics) RecordBreakerOpen(ctx context.Context, agent string) {
	if m == nil || m.breakerOpens == nil {
		return
	}
	m.breakerOpens.Add(ctx, 1,
		metric.WithAttributes(attribute.String("agent", agent)))
}
