package agents

import (
	"fmt"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
)

// Analysis types select which agents run for a submission.
const (
	AnalysisComprehensive = "comprehensive"
	AnalysisPatentFocus   = "patent_focus"
	AnalysisClinicalFocus = "clinical_focus"
	AnalysisMarketFocus   = "market_focus"
)

// AllNames lists every built-in agent in dispatch order.
var AllNames = []string{
	"market", "exim", "patent", "clinical", "internal",
	"web", "literature", "ml_prediction", "generative_ai", "nlp_analysis",
}

// presets maps each analysis type to its agent subset.
var presets = map[string][]string{
	AnalysisComprehensive: AllNames,
	AnalysisPatentFocus:   {"patent", "clinical", "internal", "literature", "nlp_analysis"},
	AnalysisClinicalFocus: {"clinical", "market", "internal", "literature", "ml_prediction", "nlp_analysis"},
	AnalysisMarketFocus:   {"market", "exim", "web", "literature", "ml_prediction"},
}

// Preset returns the agent subset for an analysis type. Unknown types
// fall back to the comprehensive set, matching the permissive handling
// of submission parameters elsewhere.
func Preset(analysisType string) []string {
	if names, ok := presets[analysisType]; ok {
		return names
	}
	return presets[AnalysisComprehensive]
}

// KnownAnalysisType reports whether the analysis type has a preset.
func KnownAnalysisType(analysisType string) bool {
	_, ok := presets[analysisType]
	return ok
}

// RegisterAll constructs every built-in agent with its configuration
// and registers it. All agents share one HTTP client.
func RegisterAll(reg *agent.Registry, cfg *config.Config, client *httpclient.Client) error {
	if client == nil {
		client = httpclient.New()
	}

	all := []agent.Capability{
		NewMarketAgent(cfg.Agent("market"), client),
		NewEximAgent(cfg.Agent("exim"), client),
		NewPatentAgent(cfg.Agent("patent"), client),
		NewClinicalAgent(cfg.Agent("clinical"), client),
		NewInternalAgent(cfg.Agent("internal"), client),
		NewWebAgent(cfg.Agent("web"), client),
		NewLiteratureAgent(cfg.Agent("literature"), client),
		NewMLPredictionAgent(cfg.Agent("ml_prediction"), client),
		NewGenerativeAgent(cfg.Agent("generative_ai"), client),
		NewNLPAnalysisAgent(cfg.Agent("nlp_analysis"), client),
	}

	for _, a := range all {
		if err := reg.Register(a); err != nil {
			return fmt.Errorf("failed to register agent %s: %w", a.Name(), err)
		}
	}
	return nil
}
