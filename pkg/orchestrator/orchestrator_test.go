package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirthikaaMK/drug-discovery/pkg/agent"
	"github.com/kirthikaaMK/drug-discovery/pkg/breaker"
	"github.com/kirthikaaMK/drug-discovery/pkg/config"
	"github.com/kirthikaaMK/drug-discovery/pkg/job"
	"github.com/kirthikaaMK/drug-discovery/pkg/observability"
	"github.com/kirthikaaMK/drug-discovery/pkg/report"
)

// stubAgent is a scriptable agent for engine tests.
type stubAgent struct {
	name        string
	timeout     time.Duration
	analyzeFn   func(ctx context.Context, query string) (*agent.Result, error)
	fallbackFn  func(ctx context.Context, query string) (*agent.Result, error)
	liveCalls   atomic.Int64
	fallbackUse atomic.Int64
}

func (a *stubAgent) Name() string { return a.name }

func (a *stubAgent) Timeout() time.Duration {
	if a.timeout == 0 {
		return time.Second
	}
	return a.timeout
}

func (a *stubAgent) Analyze(ctx context.Context, query string) (*agent.Result, error) {
	a.liveCalls.Add(1)
	if a.analyzeFn != nil {
		return a.analyzeFn(ctx, query)
	}
	return &agent.Result{Agent: a.name, Insights: "ok", Source: agent.SourceLive}, nil
}

func (a *stubAgent) Fallback(ctx context.Context, query string) (*agent.Result, error) {
	a.fallbackUse.Add(1)
	if a.fallbackFn != nil {
		return a.fallbackFn(ctx, query)
	}
	return &agent.Result{Agent: a.name, Insights: "degraded", Source: agent.SourceFallback}, nil
}

func failingAnalyze(kind agent.ErrorKind) func(ctx context.Context, query string) (*agent.Result, error) {
	return func(_ context.Context, _ string) (*agent.Result, error) {
		return nil, agent.NewError("stub", kind, errors.New("boom"))
	}
}

func newTestEngine(t *testing.T, stubs ...*stubAgent) (*Engine, job.Store) {
	t.Helper()

	cfg := &config.Config{}
	cfg.SetDefaults()

	reg := agent.NewRegistry()
	for _, s := range stubs {
		require.NoError(t, reg.Register(s))
	}

	metrics, err := observability.Init(context.Background(), false)
	require.NoError(t, err)

	store := job.NewInMemoryStore()
	return New(cfg, reg, store, metrics), store
}

func names(stubs []*stubAgent) []string {
	out := make([]string, len(stubs))
	for i, s := range stubs {
		out[i] = s.name
	}
	return out
}

func waitTerminal(t *testing.T, e *Engine, jobID string) *job.Job {
	t.Helper()
	var j *job.Job
	require.Eventually(t, func() bool {
		got, err := e.Status(context.Background(), jobID)
		if err != nil {
			return false
		}
		j = got
		return j.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return j
}

func TestSubmitRejectsEmptyQuery(t *testing.T) {
	e, _ := newTestEngine(t, &stubAgent{name: "market"})

	_, err := e.Submit(context.Background(), "   ", "", []string{"market"})
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, CodeInvalidQuery, oerr.Code)
}

func TestSubmitRejectsOverlongQuery(t *testing.T) {
	e, _ := newTestEngine(t, &stubAgent{name: "market"})

	_, err := e.Submit(context.Background(), strings.Repeat("x", 501), "", []string{"market"})
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, CodeInvalidQuery, oerr.Code)
}

func TestSubmitRejectsUnknownAgent(t *testing.T) {
	e, store := newTestEngine(t, &stubAgent{name: "market"})

	_, err := e.Submit(context.Background(), "imatinib", "", []string{"market", "astrology"})
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, CodeInvalidQuery, oerr.Code)

	// No job state may exist after a rejected submission.
	counts, err := store.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func TestAllAgentsSucceed(t *testing.T) {
	stubs := make([]*stubAgent, 0, 10)
	for _, n := range []string{"market", "exim", "patent", "clinical", "internal", "web", "literature", "ml_prediction", "generative_ai", "nlp_analysis"} {
		stubs = append(stubs, &stubAgent{name: n})
	}
	e, _ := newTestEngine(t, stubs...)

	j, err := e.Submit(context.Background(), "imatinib", "", names(stubs))
	require.NoError(t, err)
	require.Len(t, j.Tasks, 10)

	final := waitTerminal(t, e, j.ID)
	assert.Equal(t, job.StatusCompleted, final.Status)

	rep, err := e.Result(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusComplete, rep.Status)
	assert.InDelta(t, 1.0, rep.Coverage, 1e-9)
	assert.Len(t, rep.Results, 10)
	assert.Empty(t, rep.Failures)

	for _, task := range final.Tasks {
		assert.Equal(t, job.SubStatusSucceeded, task.SubStatus)
	}
}

func TestLiveFailureFallsBack(t *testing.T) {
	broken := &stubAgent{name: "market", analyzeFn: failingAnalyze(agent.KindUpstream)}
	e, _ := newTestEngine(t, broken)

	j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
	require.NoError(t, err)

	final := waitTerminal(t, e, j.ID)
	task := final.Tasks["market"]
	require.NotNil(t, task)
	assert.Equal(t, job.SubStatusFallbackUsed, task.SubStatus)
	assert.Equal(t, agent.SourceFallback, task.Source)

	// A usable fallback result still counts toward full coverage.
	rep, err := e.Result(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusComplete, rep.Status)
	assert.Equal(t, agent.SourceFallback, rep.Results["market"].Source)
}

func TestOpenBreakerSkipsLivePath(t *testing.T) {
	stub := &stubAgent{name: "market"}
	e, _ := newTestEngine(t, stub)

	br := e.Breakers().Get("market")
	for i := 0; i < 3; i++ {
		br.RecordFailure()
	}
	require.Equal(t, breaker.StateOpen, br.State())

	j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
	require.NoError(t, err)

	final := waitTerminal(t, e, j.ID)
	task := final.Tasks["market"]
	assert.Equal(t, job.SubStatusFallbackUsed, task.SubStatus)
	assert.Equal(t, agent.SourceFallback, task.Source)
	assert.Zero(t, stub.liveCalls.Load(), "open breaker must suppress the live path")
	assert.Equal(t, int64(1), stub.fallbackUse.Load())

	// The agent is represented in the report, never omitted.
	rep, err := e.Result(context.Background(), j.ID)
	require.NoError(t, err)
	require.Contains(t, rep.Results, "market")
	assert.NotEqual(t, agent.SourceLive, rep.Results["market"].Source)
}

func TestConsecutiveFailuresOpenBreaker(t *testing.T) {
	broken := &stubAgent{name: "market", analyzeFn: failingAnalyze(agent.KindUpstream)}
	e, _ := newTestEngine(t, broken)

	for i := 0; i < 3; i++ {
		j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
		require.NoError(t, err)
		waitTerminal(t, e, j.ID)
	}
	assert.Equal(t, breaker.StateOpen, e.Breakers().Get("market").State())

	// The next job goes straight to fallback.
	before := broken.liveCalls.Load()
	j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
	require.NoError(t, err)
	waitTerminal(t, e, j.ID)
	assert.Equal(t, before, broken.liveCalls.Load())
}

func TestInvalidInputDoesNotTripBreaker(t *testing.T) {
	broken := &stubAgent{name: "market", analyzeFn: failingAnalyze(agent.KindInvalidInput)}
	e, _ := newTestEngine(t, broken)

	for i := 0; i < 5; i++ {
		j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
		require.NoError(t, err)
		waitTerminal(t, e, j.ID)
	}
	assert.Equal(t, breaker.StateClosed, e.Breakers().Get("market").State())
}

func TestHalfOpenTrialWithInternalFailureRecovers(t *testing.T) {
	var mode atomic.Int64
	ag := &stubAgent{name: "market"}
	ag.analyzeFn = func(_ context.Context, _ string) (*agent.Result, error) {
		switch mode.Load() {
		case 0:
			return nil, agent.NewError("market", agent.KindUpstream, errors.New("upstream down"))
		case 1:
			return nil, agent.NewError("market", agent.KindInternal, errors.New("response parser fault"))
		default:
			return &agent.Result{Agent: "market", Insights: "ok", Source: agent.SourceLive}, nil
		}
	}

	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Breaker.OpenDuration = config.Duration(150 * time.Millisecond)
	cfg.Breaker.MaxOpenDuration = config.Duration(600 * time.Millisecond)

	reg := agent.NewRegistry()
	require.NoError(t, reg.Register(ag))
	metrics, err := observability.Init(context.Background(), false)
	require.NoError(t, err)
	e := New(cfg, reg, job.NewInMemoryStore(), metrics)

	for i := 0; i < 3; i++ {
		j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
		require.NoError(t, err)
		waitTerminal(t, e, j.ID)
	}
	require.Equal(t, breaker.StateOpen, e.Breakers().Get("market").State())

	// Past the open window the single trial call fails internally.
	// That outcome says nothing about upstream health, so the trial
	// slot must come back rather than wedging the breaker half-open.
	time.Sleep(200 * time.Millisecond)
	mode.Store(1)
	j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
	require.NoError(t, err)
	final := waitTerminal(t, e, j.ID)
	require.Equal(t, job.SubStatusFallbackUsed, final.Tasks["market"].SubStatus)

	mode.Store(2)
	liveBefore := ag.liveCalls.Load()
	j, err = e.Submit(context.Background(), "imatinib", "", []string{"market"})
	require.NoError(t, err)
	final = waitTerminal(t, e, j.ID)

	assert.Equal(t, job.SubStatusSucceeded, final.Tasks["market"].SubStatus)
	assert.Equal(t, liveBefore+1, ag.liveCalls.Load())
	assert.Equal(t, breaker.StateClosed, e.Breakers().Get("market").State())
}

func TestSubmitCountsQueryLengthInRunes(t *testing.T) {
	e, _ := newTestEngine(t, &stubAgent{name: "market"})

	// 400 two-byte runes exceed 500 bytes but not the 500-rune limit.
	j, err := e.Submit(context.Background(), strings.Repeat("ß", 400), "", []string{"market"})
	require.NoError(t, err)
	waitTerminal(t, e, j.ID)

	_, err = e.Submit(context.Background(), strings.Repeat("ß", 501), "", []string{"market"})
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, CodeInvalidQuery, oerr.Code)
}

// failingStartStore refuses the pending-to-running transition.
type failingStartStore struct {
	job.Store
}

func (s *failingStartStore) MarkRunning(_ context.Context, _ string) error {
	return errors.New("database is locked")
}

func TestMarkRunningFailureStillSettlesJob(t *testing.T) {
	stub := &stubAgent{name: "market"}
	cfg := &config.Config{}
	cfg.SetDefaults()

	reg := agent.NewRegistry()
	require.NoError(t, reg.Register(stub))
	metrics, err := observability.Init(context.Background(), false)
	require.NoError(t, err)

	store := &failingStartStore{Store: job.NewInMemoryStore()}
	e := New(cfg, reg, store, metrics)

	j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
	require.NoError(t, err)

	final := waitTerminal(t, e, j.ID)
	assert.Equal(t, job.StatusFailed, final.Status)
	assert.Equal(t, job.SubStatusFailed, final.Tasks["market"].SubStatus)
	assert.Contains(t, final.Tasks["market"].ErrorDetail, "job failed to start")
	assert.Zero(t, stub.liveCalls.Load())

	rep, err := e.Result(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusFailed, rep.Status)
	assert.Zero(t, rep.Coverage)
}

func TestBothPathsFail(t *testing.T) {
	dead := &stubAgent{
		name:      "market",
		analyzeFn: failingAnalyze(agent.KindUpstream),
		fallbackFn: func(_ context.Context, _ string) (*agent.Result, error) {
			return nil, agent.NewError("market", agent.KindInternal, errors.New("no local data"))
		},
	}
	e, _ := newTestEngine(t, dead)

	j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
	require.NoError(t, err)

	final := waitTerminal(t, e, j.ID)
	assert.Equal(t, job.StatusFailed, final.Status)
	assert.Equal(t, job.SubStatusFailed, final.Tasks["market"].SubStatus)

	rep, err := e.Result(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusFailed, rep.Status)
	assert.Zero(t, rep.Coverage)
	require.Contains(t, rep.Failures, "market")
	assert.Equal(t, agent.KindUpstream, rep.Failures["market"].Kind)
}

func TestMixedOutcomeIsPartial(t *testing.T) {
	good := &stubAgent{name: "market"}
	dead := &stubAgent{
		name:      "patent",
		analyzeFn: failingAnalyze(agent.KindUpstream),
		fallbackFn: func(_ context.Context, _ string) (*agent.Result, error) {
			return nil, errors.New("no local data")
		},
	}
	e, _ := newTestEngine(t, good, dead)

	j, err := e.Submit(context.Background(), "imatinib", "", []string{"market", "patent"})
	require.NoError(t, err)

	final := waitTerminal(t, e, j.ID)
	assert.Equal(t, job.StatusPartial, final.Status)

	rep, err := e.Result(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusPartial, rep.Status)
	assert.InDelta(t, 0.5, rep.Coverage, 1e-9)
	assert.Contains(t, rep.Results, "market")
	assert.Contains(t, rep.Failures, "patent")
}

func TestHungAgentTimesOut(t *testing.T) {
	hung := &stubAgent{
		name:    "web",
		timeout: 50 * time.Millisecond,
		analyzeFn: func(ctx context.Context, _ string) (*agent.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
		fallbackFn: func(_ context.Context, _ string) (*agent.Result, error) {
			return nil, errors.New("no local data")
		},
	}
	good := &stubAgent{name: "market"}
	e, _ := newTestEngine(t, hung, good)

	j, err := e.Submit(context.Background(), "imatinib", "", []string{"web", "market"})
	require.NoError(t, err)

	final := waitTerminal(t, e, j.ID)
	assert.Equal(t, job.StatusPartial, final.Status)
	assert.Equal(t, job.SubStatusTimedOut, final.Tasks["web"].SubStatus)
	assert.Equal(t, job.SubStatusSucceeded, final.Tasks["market"].SubStatus)

	rep, err := e.Result(context.Background(), j.ID)
	require.NoError(t, err)
	require.Contains(t, rep.Failures, "web")
	assert.Equal(t, agent.KindTimeout, rep.Failures["web"].Kind)
}

func TestJobDeadlineForcesTimedOut(t *testing.T) {
	slow := &stubAgent{
		name: "web",
		analyzeFn: func(ctx context.Context, _ string) (*agent.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	e, _ := newTestEngine(t, slow)
	e.cfg.JobDeadline = config.Duration(50 * time.Millisecond)

	j, err := e.Submit(context.Background(), "imatinib", "", []string{"web"})
	require.NoError(t, err)

	final := waitTerminal(t, e, j.ID)
	assert.Equal(t, job.StatusFailed, final.Status)
	assert.Equal(t, job.SubStatusTimedOut, final.Tasks["web"].SubStatus)

	// The fallback does not run once the job deadline has passed.
	assert.Equal(t, int64(0), slow.fallbackUse.Load())
	assert.Contains(t, final.Tasks["web"].ErrorDetail, "job deadline exceeded")
}

func TestResultNotReady(t *testing.T) {
	slow := &stubAgent{
		name:    "market",
		timeout: 2 * time.Second,
		analyzeFn: func(ctx context.Context, _ string) (*agent.Result, error) {
			select {
			case <-time.After(300 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return &agent.Result{Agent: "market", Source: agent.SourceLive}, nil
		},
	}
	e, _ := newTestEngine(t, slow)

	j, err := e.Submit(context.Background(), "imatinib", "", []string{"market"})
	require.NoError(t, err)

	_, err = e.Result(context.Background(), j.ID)
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, CodeNotReady, oerr.Code)

	waitTerminal(t, e, j.ID)
	rep1, err := e.Result(context.Background(), j.ID)
	require.NoError(t, err)

	// Terminal reads are idempotent.
	rep2, err := e.Result(context.Background(), j.ID)
	require.NoError(t, err)
	assert.Equal(t, rep1.GeneratedAt, rep2.GeneratedAt)
	assert.Equal(t, rep1.Status, rep2.Status)
}

func TestStatusUnknownJob(t *testing.T) {
	e, _ := newTestEngine(t, &stubAgent{name: "market"})

	_, err := e.Status(context.Background(), "no-such-job")
	var oerr *Error
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, CodeNotFound, oerr.Code)
}

func TestSubmitDeduplicatesAgents(t *testing.T) {
	stub := &stubAgent{name: "market"}
	e, _ := newTestEngine(t, stub)

	j, err := e.Submit(context.Background(), "imatinib", "", []string{"market", "market", "market"})
	require.NoError(t, err)
	assert.Len(t, j.Agents, 1)
	assert.Len(t, j.Tasks, 1)
}
