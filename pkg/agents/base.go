// Package agents holds the concrete analysis agents. Every agent
// implements agent.Capability: a live path that may call an upstream
// API, and a fallback path that serves deterministic local analysis.
package agents

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
)

// apiEnvelope is the payload shape expected from upstream agent APIs.
type apiEnvelope struct {
	Insights string           `json:"insights"`
	Data     []map[string]any `json:"data"`
	Charts   map[string]any   `json:"charts"`
}

// baseAgent carries the pieces shared by all agents: the registry
// name, the display name used in result envelopes, the per-agent
// configuration, and the shared HTTP client for live paths.
type baseAgent struct {
	name    string
	display string
	cfg     *config.AgentConfig
	http    *httpclient.Client
}

func (b *baseAgent) Name() string { return b.name }

func (b *baseAgent) Timeout() time.Duration { return time.Duration(b.cfg.Timeout) }

// fetchAPI queries the configured upstream endpoint. ok is false when
// the upstream answered but returned nothing useful, in which case the
// caller should serve its local analysis instead.
func (b *baseAgent) fetchAPI(ctx context.Context, query, analysisType string) (res *agent.Result, ok bool, err error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", analysisType)

	var env apiEnvelope
	if err := b.http.GetJSON(ctx, b.cfg.APIURL, b.cfg.APIKey, params, &env); err != nil {
		return nil, false, b.classify(err)
	}
	if env.Insights == "" && len(env.Data) == 0 {
		return nil, false, nil
	}
	return &agent.Result{
		Agent:       b.display,
		Insights:    env.Insights,
		Data:        env.Data,
		Charts:      env.Charts,
		Confidence:  0.9,
		Source:      agent.SourceLive,
		GeneratedAt: time.Now(),
	}, true, nil
}

// classify maps a transport error to a classified agent error.
// Context expiry is a timeout; everything else from the wire is an
// upstream fault.
func (b *baseAgent) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return agent.NewError(b.name, agent.KindTimeout, err)
	}
	return agent.NewError(b.name, agent.KindUpstream, err)
}

// result builds an envelope for a locally produced analysis.
// Fallback results carry a lower confidence than live ones.
func (b *baseAgent) result(src agent.Source, insights string, data []map[string]any, charts map[string]any) *agent.Result {
	conf := 0.85
	if src == agent.SourceFallback {
		conf = 0.6
	}
	return &agent.Result{
		Agent:       b.display,
		Insights:    insights,
		Data:        data,
		Charts:      charts,
		Confidence:  conf,
		Source:      src,
		GeneratedAt: time.Now(),
	}
}
