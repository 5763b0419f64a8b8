package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirthikaaMK/drug-discovery/internal/httpclient"
	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/agents"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
	"github.com/kirthikaaMK/drug-discovery/pkg/job"
	"github.com/kirthikaaMK/drug-discovery/pkg/observability"
	"github.com/kirthikaaMK/drug-discovery/pkg/orchestrator"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	cfg := &config.Config{
		Agents: map[string]*config.AgentConfig{
			"market": {APIKey: "super-secret-key"},
		},
	}
	cfg.SetDefaults()

	reg := agent.NewRegistry()
	require.NoError(t, agents.RegisterAll(reg, cfg, httpclient.New()))

	metrics, err := observability.Init(context.Background(), false)
	require.NoError(t, err)

	engine := orchestrator.New(cfg, reg, job.NewInMemoryStore(), metrics)
	t.Cleanup(func() { _ = engine.Close() })

	srv := New(cfg, engine)
	return srv, srv.routes()
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	buf, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// submitAndWait submits a job and polls status until it settles.
func submitAndWait(t *testing.T, h http.Handler, body any) string {
	t.Helper()

	rec := postJSON(t, h, "/analyze", body)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var submitted analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &submitted))
	require.NotEmpty(t, submitted.JobID)

	require.Eventually(t, func() bool {
		var status statusResponse
		resp := get(h, "/status/"+submitted.JobID)
		if resp.Code != http.StatusOK {
			return false
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &status); err != nil {
			return false
		}
		return status.Status.IsTerminal()
	}, 10*time.Second, 20*time.Millisecond)

	return submitted.JobID
}

func TestAnalyzeAcceptsJob(t *testing.T) {
	_, h := newTestServer(t)

	rec := postJSON(t, h, "/analyze", analyzeRequest{Query: "imatinib"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "comprehensive", resp.AnalysisType)
	assert.Equal(t, 10, resp.Agents)
}

func TestAnalyzeRejectsEmptyQuery(t *testing.T) {
	_, h := newTestServer(t)

	rec := postJSON(t, h, "/analyze", analyzeRequest{Query: "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orchestrator.CodeInvalidQuery, resp.Code)
}

func TestAnalyzeRejectsMalformedBody(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orchestrator.CodeInvalidQuery, resp.Code)
}

func TestAnalyzeRejectsUnknownAgent(t *testing.T) {
	_, h := newTestServer(t)

	rec := postJSON(t, h, "/analyze", analyzeRequest{
		Query:  "imatinib",
		Agents: []string{"market", "astrology"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusUnknownJob(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(h, "/status/no-such-job")
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orchestrator.CodeNotFound, resp.Code)
}

func TestResultsBeforeCompletion(t *testing.T) {
	srv, h := newTestServer(t)

	j, err := srv.engine.Store().Create(context.Background(),
		"imatinib", "comprehensive", []string{"market"}, time.Now().Add(time.Minute))
	require.NoError(t, err)

	rec := get(h, "/results/"+j.ID)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, orchestrator.CodeNotReady, resp.Code)
}

func TestAnalyzeStatusResultsFlow(t *testing.T) {
	_, h := newTestServer(t)

	jobID := submitAndWait(t, h, analyzeRequest{
		Query:        "pembrolizumab",
		AnalysisType: "market_focus",
	})

	statusRec := get(h, "/status/"+jobID)
	require.Equal(t, http.StatusOK, statusRec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(statusRec.Body.Bytes(), &status))
	assert.Equal(t, job.StatusCompleted, status.Status)
	assert.InDelta(t, 1.0, status.Progress, 0.001)
	assert.Len(t, status.Tasks, 5)
	for name, task := range status.Tasks {
		assert.Equal(t, job.SubStatusSucceeded, task.SubStatus, "task %s", name)
	}

	resultsRec := get(h, "/results/"+jobID)
	require.Equal(t, http.StatusOK, resultsRec.Code)

	var rep struct {
		JobID    string         `json:"job_id"`
		Status   string         `json:"status"`
		Coverage float64        `json:"coverage"`
		Results  map[string]any `json:"results"`
		Summary  string         `json:"summary"`
		Failures map[string]any `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(resultsRec.Body.Bytes(), &rep))
	assert.Equal(t, jobID, rep.JobID)
	assert.Equal(t, "complete", rep.Status)
	assert.InDelta(t, 1.0, rep.Coverage, 0.001)
	assert.Len(t, rep.Results, 5)
	assert.Empty(t, rep.Failures)
	assert.Contains(t, rep.Summary, "pembrolizumab")
}

func TestDownloadStreamsWorkbook(t *testing.T) {
	_, h := newTestServer(t)

	jobID := submitAndWait(t, h, analyzeRequest{
		Query:        "insulin",
		AnalysisType: "patent_focus",
	})

	rec := get(h, "/download/"+jobID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Equal(t,
		fmt.Sprintf(`attachment; filename="analysis_%s.xlsx"`, jobID),
		rec.Header().Get("Content-Disposition"))
	assert.NotZero(t, rec.Body.Len())
}

func TestHealthReportsJobsAndBreakers(t *testing.T) {
	_, h := newTestServer(t)

	submitAndWait(t, h, analyzeRequest{Query: "morphine"})

	rec := get(h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string         `json:"status"`
		Jobs   map[string]int `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Jobs[string(job.StatusCompleted)])
}

func TestConfigOmitsSecrets(t *testing.T) {
	_, h := newTestServer(t)

	rec := get(h, "/config")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `"market"`)
	assert.NotContains(t, body, "super-secret-key")
	assert.NotContains(t, body, "api_key")
}

func TestMetricsEndpointGatedByConfig(t *testing.T) {
	srv, h := newTestServer(t)

	rec := get(h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)

	disabled := false
	srv.cfg.Metrics.Enabled = &disabled
	rec = get(srv.routes(), "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/analyze", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
