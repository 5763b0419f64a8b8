// Package report defines the aggregated analysis report: the merged
// per-agent results, the coverage ratio, the composite status, and the
// synthesized executive summary.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
)

// CompositeStatus classifies the overall outcome of a job.
type CompositeStatus string

const (
	// StatusComplete means every requested agent produced a usable result.
	StatusComplete CompositeStatus = "complete"

	// StatusPartial means some agents failed but at least one result is usable.
	StatusPartial CompositeStatus = "partial"

	// StatusFailed means no agent produced a usable result.
	StatusFailed CompositeStatus = "failed"
)

// FailureNote is the structured record of one agent that produced no
// usable result.
type FailureNote struct {
	Agent  string          `json:"agent"`
	Kind   agent.ErrorKind `json:"kind"`
	Detail string          `json:"detail"`
}

// Report is the consolidated output of one job. Every requested agent
// appears either in Results or in Failures, never both, never neither.
type Report struct {
	JobID       string    `json:"job_id"`
	Query       string    `json:"query"`
	GeneratedAt time.Time `json:"generated_at"`

	Status CompositeStatus `json:"status"`

	// Coverage is usable results / requested agents, in [0,1].
	Coverage float64 `json:"coverage"`

	Results  map[string]*agent.Result `json:"results"`
	Failures map[string]*FailureNote  `json:"failures,omitempty"`

	// Summary is the synthesized markdown executive summary.
	Summary string `json:"summary"`
}

// AgentNames returns all agent names in the report, sorted.
func (r *Report) AgentNames() []string {
	names := make([]string, 0, len(r.Results)+len(r.Failures))
	for name := range r.Results {
		names = append(names, name)
	}
	for name := range r.Failures {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Synthesize renders the markdown executive summary over the per-agent
// insights. It never interprets agent payloads beyond the envelope.
func Synthesize(query string, results map[string]*agent.Result, failures map[string]*FailureNote) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Analysis Summary for '%s'\n\n", query)
	b.WriteString("### Executive Summary\n")
	fmt.Fprintf(&b, "This analysis covers %d aspects of the query '%s'.\n\n", len(results), query)

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := results[name]
		insights := res.Insights
		if len(insights) > 200 {
			insights = insights[:200] + "..."
		}
		fmt.Fprintf(&b, "**%s Insights:** %s\n\n", res.Agent, insights)
	}

	if len(failures) > 0 {
		failed := make([]string, 0, len(failures))
		for name := range failures {
			failed = append(failed, name)
		}
		sort.Strings(failed)
		fmt.Fprintf(&b, "### Unavailable Sources\n")
		for _, name := range failed {
			fmt.Fprintf(&b, "- %s: %s\n", name, failures[name].Detail)
		}
		b.WriteString("\n")
	}

	b.WriteString("### Strategic Recommendations\n")
	b.WriteString("- Review patent landscape for IP opportunities\n")
	b.WriteString("- Monitor clinical trial progress\n")
	b.WriteString("- Assess market potential and competition\n")
	b.WriteString("- Consider regulatory and trade implications\n")
	b.WriteString("- Review latest scientific literature\n")

	return b.String()
}
