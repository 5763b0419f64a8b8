package agents

import (
	"context"
	"fmt"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
)

// GenerativeAgent proposes novel candidate compounds derived from the
// query molecule. Without an upstream generation service it derives
// candidate names and descriptor-based structures locally.
type GenerativeAgent struct {
	baseAgent
}

func NewGenerativeAgent(cfg *config.AgentConfig, client *httpclient.Client) *GenerativeAgent {
	return &GenerativeAgent{baseAgent{
		name:    "generative_ai",
		display: "Generative AI",
		cfg:     cfg,
		http:    client,
	}}
}

func (a *GenerativeAgent) Analyze(ctx context.Context, query string) (*agent.Result, error) {
	if a.cfg.UseAPI {
		res, ok, err := a.fetchAPI(ctx, query, "candidate_generation")
		if err != nil {
			return nil, err
		}
		if ok {
			return res, nil
		}
	}
	return a.local(query, agent.SourceLive), nil
}

func (a *GenerativeAgent) Fallback(ctx context.Context, query string) (*agent.Result, error) {
	return a.local(query, agent.SourceFallback), nil
}

func (a *GenerativeAgent) local(query string, src agent.Source) *agent.Result {
	h := queryHash(query)

	names := []string{
		fmt.Sprintf("%s-analogue-1", query),
		fmt.Sprintf("Novel-%s-derivative", query),
		fmt.Sprintf("%s-prodrug-A", query),
		fmt.Sprintf("Optimized-%s-variant", query),
		fmt.Sprintf("%s-hybrid-compound", query),
	}

	data := make([]map[string]any, 0, len(names))
	labels := make([]string, 0, len(names))
	confidences := make([]float64, 0, len(names))
	for i, name := range names {
		conf := 0.70 + float64((h+i*73)%26)/100.0
		data = append(data, map[string]any{
			"candidate_id": fmt.Sprintf("CAND-%03d", i+1),
			"name":         name,
			"structure": fmt.Sprintf("C%dH%dN%dO%d",
				10+(h+i*7)%21, 15+(h+i*13)%36, (h+i*3)%6, 1+(h+i*5)%8),
			"predicted_activity": fmt.Sprintf("IC50: %.2f μM", 0.1+float64((h+i*41)%990)/100.0),
			"confidence":         conf,
		})
		labels = append(labels, fmt.Sprintf("Candidate %d", i+1))
		confidences = append(confidences, conf)
	}

	charts := map[string]any{
		"confidence_distribution": map[string]any{
			"labels": labels,
			"values": confidences,
			"type":   "line",
			"colors": []string{"#ff9ff3", "#54a0ff", "#5f27cd", "#00d2d3", "#ff9f43"},
		},
	}

	insights := fmt.Sprintf(
		"Generated %d novel drug candidate suggestions inspired by '%s' using generative AI.",
		len(names), query)

	return a.result(src, insights, data, charts)
}
