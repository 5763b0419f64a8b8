package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
)

type internalDoc struct {
	ID      string
	Title   string
	Content string
	Author  string
	Date    string
}

// Seed knowledge base searched when no upstream document store is
// configured.
var internalDocs = []internalDoc{
	{
		ID:      "DOC-001",
		Title:   "Oncology pipeline review Q2",
		Content: "Internal review of kinase inhibitor candidates including imatinib analogues and resistance profiles across CML cohorts.",
		Author:  "Research Strategy",
		Date:    "2025-04-18",
	},
	{
		ID:      "DOC-002",
		Title:   "Formulation stability study: insulin delivery",
		Content: "Stability data for oral insulin formulations under accelerated conditions, with excipient compatibility notes.",
		Author:  "Formulation Sciences",
		Date:    "2025-02-03",
	},
	{
		ID:      "DOC-003",
		Title:   "Competitive landscape: antiviral portfolio",
		Content: "Assessment of remdesivir-class antivirals and in-licensing opportunities for respiratory virus programs.",
		Author:  "Business Development",
		Date:    "2024-11-27",
	},
	{
		ID:      "DOC-004",
		Title:   "Pharmacovigilance summary: analgesic franchise",
		Content: "Aggregate safety review of the pain management portfolio including morphine derivatives and adverse event trends.",
		Author:  "Drug Safety",
		Date:    "2025-06-09",
	},
	{
		ID:      "DOC-005",
		Title:   "Biomarker strategy for immuno-oncology trials",
		Content: "Proposal for PD-L1 expression stratification in pembrolizumab combination studies.",
		Author:  "Translational Medicine",
		Date:    "2025-01-15",
	},
}

// InternalAgent searches the internal document knowledge base.
type InternalAgent struct {
	baseAgent
}

func NewInternalAgent(cfg *config.AgentConfig, client *httpclient.Client) *InternalAgent {
	return &InternalAgent{baseAgent{
		name:    "internal",
		display: "Internal Knowledge",
		cfg:     cfg,
		http:    client,
	}}
}

func (a *InternalAgent) Analyze(ctx context.Context, query string) (*agent.Result, error) {
	if a.cfg.UseAPI {
		res, ok, err := a.fetchAPI(ctx, query, "internal_knowledge")
		if err != nil {
			return nil, err
		}
		if ok {
			return res, nil
		}
	}
	return a.local(query, agent.SourceLive), nil
}

func (a *InternalAgent) Fallback(ctx context.Context, query string) (*agent.Result, error) {
	return a.local(query, agent.SourceFallback), nil
}

func (a *InternalAgent) local(query string, src agent.Source) *agent.Result {
	q := strings.ToLower(query)

	var matched []internalDoc
	for _, doc := range internalDocs {
		if strings.Contains(strings.ToLower(doc.Title), q) ||
			strings.Contains(strings.ToLower(doc.Content), q) {
			matched = append(matched, doc)
		}
	}

	var insights string
	docs := matched
	if len(matched) > 0 {
		titles := make([]string, 0, 3)
		for _, doc := range matched[:min(len(matched), 3)] {
			titles = append(titles, doc.Title)
		}
		insights = fmt.Sprintf("Found %d relevant internal documents for '%s': %s",
			len(matched), query, strings.Join(titles, ", "))
		if len(matched) > 3 {
			insights += fmt.Sprintf(" and %d more", len(matched)-3)
		}
	} else {
		insights = fmt.Sprintf("No internal documents found for '%s'. Total documents in knowledge base: %d",
			query, len(internalDocs))
		docs = internalDocs[:3]
	}

	data := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		data = append(data, map[string]any{
			"id":      doc.ID,
			"title":   doc.Title,
			"content": doc.Content,
			"author":  doc.Author,
			"date":    doc.Date,
		})
	}

	return a.result(src, insights, data, nil)
}
