package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
)

var tradeCountries = []string{
	"United States", "China", "Germany", "India", "Japan", "United Kingdom",
	"France", "Italy", "Canada", "Brazil", "Australia", "South Korea",
}

// EximAgent reports import/export trade figures for a compound.
type EximAgent struct {
	baseAgent
}

func NewEximAgent(cfg *config.AgentConfig, client *httpclient.Client) *EximAgent {
	return &EximAgent{baseAgent{
		name:    "exim",
		display: "EXIM Trends",
		cfg:     cfg,
		http:    client,
	}}
}

func (a *EximAgent) Analyze(ctx context.Context, query string) (*agent.Result, error) {
	if a.cfg.UseAPI {
		res, ok, err := a.fetchAPI(ctx, query, "trade_trends")
		if err != nil {
			return nil, err
		}
		if ok {
			return res, nil
		}
	}
	return a.local(query, agent.SourceLive), nil
}

func (a *EximAgent) Fallback(ctx context.Context, query string) (*agent.Result, error) {
	return a.local(query, agent.SourceFallback), nil
}

func (a *EximAgent) local(query string, src agent.Source) *agent.Result {
	h := queryHash(query)
	count := 3 + h%3

	var (
		data          []map[string]any
		names         []string
		totalImport   int
		totalExport   int
		totalValueUSD int
	)
	imports := map[string]any{}
	exports := map[string]any{}

	for i := 0; i < count; i++ {
		country := tradeCountries[(h+i*5)%len(tradeCountries)]
		importVol := 10 + (h+i*137)%491
		exportVol := 5 + (h+i*211)%296
		value := (importVol + exportVol) * (1000 + (h+i*37)%4001)

		data = append(data, map[string]any{
			"Molecule":             query,
			"Country":              country,
			"Import Volume (tons)": importVol,
			"Export Volume (tons)": exportVol,
			"Trade Value (USD)":    value,
		})
		names = append(names, country)
		imports[country] = importVol
		exports[country] = exportVol
		totalImport += importVol
		totalExport += exportVol
		totalValueUSD += value
	}

	insights := fmt.Sprintf(
		"Trade analysis for '%s': Total imports: %d tons, Exports: %d tons, Trade value: $%d, Active in countries: %s",
		query, totalImport, totalExport, totalValueUSD, strings.Join(names, ", "))

	charts := map[string]any{
		"imports_by_country": imports,
		"exports_by_country": exports,
	}

	return a.result(src, insights, data, charts)
}
