package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
)

func sampleReport() *Report {
	return &Report{
		JobID:       "job-1",
		Query:       "imatinib",
		GeneratedAt: time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
		Status:      StatusPartial,
		Coverage:    0.5,
		Results: map[string]*agent.Result{
			"market": {
				Agent:      "Market Intelligence",
				Insights:   "Market analysis for 'imatinib'",
				Confidence: 0.85,
				Source:     agent.SourceLive,
				Data: []map[string]any{
					{"Molecule": "imatinib", "Therapy Area": "Oncology"},
				},
			},
		},
		Failures: map[string]*FailureNote{
			"patent": {Agent: "patent", Kind: agent.KindUpstream, Detail: "upstream exploded"},
		},
	}
}

func TestSynthesizeSummary(t *testing.T) {
	r := sampleReport()
	summary := Synthesize(r.Query, r.Results, r.Failures)

	assert.Contains(t, summary, "## Analysis Summary for 'imatinib'")
	assert.Contains(t, summary, "This analysis covers 1 aspects")
	assert.Contains(t, summary, "**Market Intelligence Insights:**")
	assert.Contains(t, summary, "### Unavailable Sources")
	assert.Contains(t, summary, "- patent: upstream exploded")
	assert.Contains(t, summary, "### Strategic Recommendations")
}

func TestSynthesizeTruncatesLongInsights(t *testing.T) {
	results := map[string]*agent.Result{
		"market": {
			Agent:    "Market Intelligence",
			Insights: strings.Repeat("x", 300),
		},
	}
	summary := Synthesize("imatinib", results, nil)

	assert.Contains(t, summary, strings.Repeat("x", 200)+"...")
	assert.NotContains(t, summary, strings.Repeat("x", 201))
	assert.NotContains(t, summary, "Unavailable Sources")
}

func TestAgentNames(t *testing.T) {
	r := sampleReport()
	assert.Equal(t, []string{"market", "patent"}, r.AgentNames())
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(sampleReport(), &buf))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Contains(t, sheets, "Summary")

	rows, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	var flat []string
	for _, row := range rows {
		flat = append(flat, row...)
	}
	joined := strings.Join(flat, "|")
	assert.Contains(t, joined, "imatinib")
	assert.Contains(t, joined, "Market Intelligence")
}
