package agents

import (
	"context"
	"fmt"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
)

// MarketAgent estimates market size, growth, and therapy area for a
// compound or indication.
type MarketAgent struct {
	baseAgent
}

func NewMarketAgent(cfg *config.AgentConfig, client *httpclient.Client) *MarketAgent {
	return &MarketAgent{baseAgent{
		name:    "market",
		display: "Market Intelligence",
		cfg:     cfg,
		http:    client,
	}}
}

func (a *MarketAgent) Analyze(ctx context.Context, query string) (*agent.Result, error) {
	if a.cfg.UseAPI {
		res, ok, err := a.fetchAPI(ctx, query, "market_intelligence")
		if err != nil {
			return nil, err
		}
		if ok {
			return res, nil
		}
		// Upstream answered with an empty payload; serve the local model.
	}
	return a.local(query, agent.SourceLive), nil
}

func (a *MarketAgent) Fallback(ctx context.Context, query string) (*agent.Result, error) {
	return a.local(query, agent.SourceFallback), nil
}

func (a *MarketAgent) local(query string, src agent.Source) *agent.Result {
	area := inferTherapyArea(query)
	size := estimateMarketSize(query)
	growth := estimateGrowthRate(query)

	insights := fmt.Sprintf(
		"Market analysis for '%s': Estimated market size: $%.1fB, Projected growth: %.1f%%, Therapy area: %s",
		query, size, growth, area)

	data := []map[string]any{{
		"Molecule":          query,
		"Therapy Area":      area,
		"Market Size (USD)": fmt.Sprintf("$%.1fB", size),
		"Growth Rate (%)":   growth,
		"Competitors":       "Multiple pharmaceutical companies",
		"Key Insights":      fmt.Sprintf("Innovative treatment in %s", area),
	}}

	charts := map[string]any{
		"market_sizes": map[string]any{query: size},
		"growth_rates": map[string]any{query: growth},
	}

	return a.result(src, insights, data, charts)
}
