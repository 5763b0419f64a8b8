package agents

import (
	"context"
	"fmt"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
)

// MLPredictionAgent predicts ADMET-style properties from molecular
// descriptors. Without an upstream model service it scores the
// descriptors with Lipinski-style rules so predictions stay stable
// across runs.
type MLPredictionAgent struct {
	baseAgent
}

func NewMLPredictionAgent(cfg *config.AgentConfig, client *httpclient.Client) *MLPredictionAgent {
	return &MLPredictionAgent{baseAgent{
		name:    "ml_prediction",
		display: "ML Predictions",
		cfg:     cfg,
		http:    client,
	}}
}

func (a *MLPredictionAgent) Analyze(ctx context.Context, query string) (*agent.Result, error) {
	if a.cfg.UseAPI {
		res, ok, err := a.fetchAPI(ctx, query, "property_prediction")
		if err != nil {
			return nil, err
		}
		if ok {
			return res, nil
		}
	}
	return a.local(query, agent.SourceLive), nil
}

func (a *MLPredictionAgent) Fallback(ctx context.Context, query string) (*agent.Result, error) {
	return a.local(query, agent.SourceFallback), nil
}

func (a *MLPredictionAgent) local(query string, src agent.Source) *agent.Result {
	d := molecularDescriptors(query)

	toxicity := predictToxicity(d)
	solubility := predictSolubility(d)
	bioavail := predictBioavailability(d)

	insights := fmt.Sprintf(
		"ML predictions for '%s': Toxicity risk: %.2f, Solubility: %.2f, Bioavailability: %.1f%%",
		query, toxicity, solubility, bioavail)

	data := []map[string]any{
		{"property": "Toxicity Risk", "value": toxicity, "unit": "score (0-1)"},
		{"property": "Solubility", "value": solubility, "unit": "logS"},
		{"property": "Bioavailability", "value": bioavail, "unit": "%"},
		{"property": "Molecular Weight", "value": d["molecular_weight"], "unit": "g/mol"},
		{"property": "LogP", "value": d["logp"], "unit": ""},
		{"property": "TPSA", "value": d["tpsa"], "unit": "Å²"},
	}

	charts := map[string]any{
		"predictions": map[string]any{
			"labels": []string{"Toxicity Risk", "Solubility (logS)", "Bioavailability (%)"},
			"values": []float64{toxicity, solubility, bioavail},
			"type":   "bar",
			"colors": []string{"#ff6b6b", "#4ecdc4", "#45b7d1"},
		},
	}

	return a.result(src, insights, data, charts)
}

// predictToxicity scores risk in [0,1]: heavier, more lipophilic
// molecules score higher.
func predictToxicity(d map[string]float64) float64 {
	score := 0.1
	score += clamp((d["molecular_weight"]-200)/600, 0, 0.4)
	score += clamp(d["logp"]/15, 0, 0.3)
	score += clamp(d["hbd"]/40, 0, 0.2)
	return clamp(score, 0, 1)
}

// predictSolubility estimates logS: lipophilicity hurts, polar
// surface area helps.
func predictSolubility(d map[string]float64) float64 {
	logS := 0.5 - d["logp"]*0.8 - d["molecular_weight"]/400 + d["tpsa"]/100
	return clamp(logS, -10, 2)
}

// predictBioavailability scores oral bioavailability percent via
// rule-of-five style penalties.
func predictBioavailability(d map[string]float64) float64 {
	pct := 85.0
	if d["molecular_weight"] > 500 {
		pct -= 25
	}
	if d["logp"] > 5 {
		pct -= 20
	}
	if d["hbd"] > 5 {
		pct -= 15
	}
	if d["hba"] > 10 {
		pct -= 15
	}
	pct -= d["tpsa"] / 10
	return clamp(pct, 5, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
