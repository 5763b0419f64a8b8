package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
)

// Curated web sources keyed by drug name. Queries that match none of
// these get a generic regulatory/news set.
var webSources = map[string][]map[string]any{
	"remdesivir": {
		{"title": "FDA Approves Remdesivir for COVID-19", "source": "FDA.gov", "date": "2020-10-22"},
		{"title": "Remdesivir Patent Updates", "source": "USPTO", "date": "2023-05-15"},
		{"title": "Market Analysis: Antiviral Drugs", "source": "PharmaNews", "date": "2023-08-10"},
	},
	"pembrolizumab": {
		{"title": "Keytruda Shows Promise in Lung Cancer", "source": "ASCO", "date": "2023-06-05"},
		{"title": "Merck Announces Patent Extension", "source": "Merck.com", "date": "2023-07-20"},
		{"title": "Immunotherapy Market Growth", "source": "BioSpace", "date": "2023-09-15"},
	},
	"insulin": {
		{"title": "New Insulin Formulations Approved", "source": "EMA", "date": "2023-04-12"},
		{"title": "Diabetes Treatment Guidelines Updated", "source": "ADA", "date": "2023-01-01"},
		{"title": "Biosimilar Insulin Market", "source": "PharmExec", "date": "2023-11-08"},
	},
	"morphine": {
		{"title": "Opioid Crisis: Morphine Regulation Updates", "source": "CDC.gov", "date": "2023-09-01"},
		{"title": "Morphine Patent Expiry Analysis", "source": "PharmaIntel", "date": "2023-06-20"},
		{"title": "Pain Management Market Trends", "source": "Medscape", "date": "2023-10-15"},
	},
	"bivalirudin": {
		{"title": "Bivalirudin vs Heparin in PCI: Latest Evidence", "source": "NEJM", "date": "2023-08-25"},
		{"title": "Anticoagulant Market Analysis 2023", "source": "PharmaMarket", "date": "2023-07-10"},
		{"title": "Bivalirudin Patent Status Update", "source": "USPTO", "date": "2023-05-30"},
	},
}

// WebAgent gathers news, regulatory updates, and guidelines.
type WebAgent struct {
	baseAgent
}

func NewWebAgent(cfg *config.AgentConfig, client *httpclient.Client) *WebAgent {
	return &WebAgent{baseAgent{
		name:    "web",
		display: "Web Intelligence",
		cfg:     cfg,
		http:    client,
	}}
}

func (a *WebAgent) Analyze(ctx context.Context, query string) (*agent.Result, error) {
	if a.cfg.UseAPI {
		res, ok, err := a.fetchAPI(ctx, query, "web_intelligence")
		if err != nil {
			return nil, err
		}
		if ok {
			return res, nil
		}
	}
	return a.local(query, agent.SourceLive), nil
}

func (a *WebAgent) Fallback(ctx context.Context, query string) (*agent.Result, error) {
	return a.local(query, agent.SourceFallback), nil
}

func (a *WebAgent) local(query string, src agent.Source) *agent.Result {
	q := strings.ToLower(query)

	var sources []map[string]any
	for key, entries := range webSources {
		if strings.Contains(q, key) {
			sources = append(sources, entries...)
		}
	}
	if len(sources) == 0 {
		sources = []map[string]any{
			{"title": fmt.Sprintf("General Guidelines for %s", query), "source": "WHO", "date": "2023-10-01"},
			{"title": fmt.Sprintf("Industry News on %s", query), "source": "PharmaTimes", "date": "2023-09-20"},
			{"title": fmt.Sprintf("Regulatory Updates for %s", query), "source": "FDA", "date": "2023-08-15"},
		}
	}

	insights := fmt.Sprintf(
		"Web intelligence for '%s': Found %d relevant sources including regulatory updates, news, and guidelines.",
		query, len(sources))

	return a.result(src, insights, sources, nil)
}
