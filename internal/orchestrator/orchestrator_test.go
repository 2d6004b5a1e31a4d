package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobarthurs/queryinsight/internal/plan"
	"github.com/jacobarthurs/queryinsight/internal/recommendation"
)

type fakeFetcher struct {
	plan  *plan.ExplainOutput
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (f *fakeFetcher) FetchPlan(ctx context.Context, _ string) (*plan.ExplainOutput, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.plan, f.err
}

type fakeRecorder struct {
	mu       sync.Mutex
	attached map[string]*plan.ExplainOutput
	err      error
}

func (r *fakeRecorder) AttachPlan(_ context.Context, id string, p *plan.ExplainOutput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.attached == nil {
		r.attached = make(map[string]*plan.ExplainOutput)
	}
	r.attached[id] = p
	return nil
}

func discard() Option {
	return WithLogger(slog.New(slog.DiscardHandler))
}

func seqScanPlan() *plan.ExplainOutput {
	return &plan.ExplainOutput{
		Plan: plan.PlanNode{
			NodeType:     "Seq Scan",
			RelationName: "orders",
			TotalCost:    18334,
			PlanRows:     500000,
			Filter:       "(status = 'open'::text)",
		},
	}
}

func kinds(recs []recommendation.Recommendation) []recommendation.Kind {
	out := make([]recommendation.Kind, len(recs))
	for i, r := range recs {
		out[i] = r.Kind
	}
	return out
}

func TestAnalyze_SuppressesRawSeqScanFinding(t *testing.T) {
	o := New(discard())

	res, err := o.Analyze(context.Background(), Query{
		ID:      "q1",
		SQLText: "SELECT * FROM orders WHERE status = 'open'",
		Plan:    seqScanPlan(),
	})
	require.NoError(t, err)

	assert.Equal(t, PathPlan, res.Path)
	require.Len(t, res.Recommendations, 1)
	rec := res.Recommendations[0]
	assert.Equal(t, "Add index on orders (status)", rec.Title)
	assert.Equal(t, "CREATE INDEX idx_orders_status ON orders (status);", rec.SQLSuggestion)
	for _, r := range res.Recommendations {
		assert.NotContains(t, r.Title, "Sequential Scan")
	}
}

func TestAnalyze_NonIndexFindingsScaled(t *testing.T) {
	actual := int64(250000)
	p := &plan.ExplainOutput{Plan: plan.PlanNode{
		NodeType:   "Nested Loop",
		TotalCost:  2e6,
		PlanRows:   100,
		ActualRows: &actual,
	}}

	res, err := New(discard()).Analyze(context.Background(), Query{ID: "q", SQLText: "SELECT 1", Plan: p})
	require.NoError(t, err)

	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, []recommendation.Kind{recommendation.Rewrite, recommendation.SchemaChange}, kinds(res.Recommendations))
	assert.InDelta(t, 70.0, res.Recommendations[0].EstimatedImpact, 1e-9)
	assert.InDelta(t, 50.0, res.Recommendations[1].EstimatedImpact, 1e-9)
}

func TestAnalyze_PlanFindingsBeforeAdvisor(t *testing.T) {
	actual := int64(400000)
	p := seqScanPlan()
	p.Plan.ActualRows = &actual
	p.Plan.PlanRows = 2000

	res, err := New(discard()).Analyze(context.Background(), Query{ID: "q", SQLText: "SELECT * FROM orders", Plan: p})
	require.NoError(t, err)

	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, recommendation.SchemaChange, res.Recommendations[0].Kind)
	assert.Equal(t, recommendation.Index, res.Recommendations[1].Kind)
	assert.NotEmpty(t, res.Recommendations[1].SQLSuggestion)
}

func TestAnalyze_FetchesAndAttachesPlan(t *testing.T) {
	fetcher := &fakeFetcher{plan: seqScanPlan()}
	recorder := &fakeRecorder{}
	o := New(WithFetcher(fetcher), WithRecorder(recorder), discard())

	res, err := o.Analyze(context.Background(), Query{ID: "q1", SQLText: "SELECT * FROM orders WHERE status = 'x'"})
	require.NoError(t, err)

	assert.Equal(t, PathPlan, res.Path)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Same(t, fetcher.plan, recorder.attached["q1"])
	assert.Equal(t, "SELECT * FROM orders WHERE status = $1", res.Fingerprint)
}

func TestAnalyze_AttachFailureIsError(t *testing.T) {
	o := New(WithRecorder(&fakeRecorder{err: errors.New("disk full")}), discard())

	_, err := o.Analyze(context.Background(), Query{ID: "q1", SQLText: "SELECT 1", Plan: seqScanPlan()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestAnalyze_NonSelectUsesHeuristics(t *testing.T) {
	fetcher := &fakeFetcher{plan: seqScanPlan()}
	o := New(WithFetcher(fetcher), discard())

	res, err := o.Analyze(context.Background(), Query{ID: "u", SQLText: "UPDATE orders SET status = 'x'", ExecutionTimeMs: 500})
	require.NoError(t, err)

	assert.Equal(t, PathHeuristic, res.Path)
	assert.Equal(t, int32(0), fetcher.calls.Load(), "non-SELECT statements must not be explained")
}

func TestAnalyze_FetchErrorFallsBack(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("permission denied")}
	recorder := &fakeRecorder{}
	o := New(WithFetcher(fetcher), WithRecorder(recorder), discard())

	res, err := o.Analyze(context.Background(), Query{ID: "q", SQLText: "SELECT * FROM users", ExecutionTimeMs: 3000})
	require.NoError(t, err)

	assert.Equal(t, PathHeuristic, res.Path)
	assert.GreaterOrEqual(t, len(res.Recommendations), 2)
	assert.Empty(t, recorder.attached)
}

func TestAnalyze_NilPlanFallsBack(t *testing.T) {
	o := New(WithFetcher(&fakeFetcher{}), discard())

	res, err := o.Analyze(context.Background(), Query{SQLText: "SELECT id FROM users WHERE id = 1 LIMIT 1", ExecutionTimeMs: 1})
	require.NoError(t, err)

	assert.Equal(t, PathHeuristic, res.Path)
	assert.Empty(t, res.Recommendations)
}

func TestAnalyze_NoFetcher(t *testing.T) {
	res, err := New(discard()).Analyze(context.Background(), Query{SQLText: "SELECT * FROM t"})
	require.NoError(t, err)
	assert.Equal(t, PathHeuristic, res.Path)
}

func TestAnalyzeAll_PreservesOrderAndOmitsFailures(t *testing.T) {
	recorder := &fakeRecorder{}
	o := New(WithFetcher(&fakeFetcher{plan: seqScanPlan(), delay: time.Millisecond}), WithRecorder(recorder), discard())

	var queries []Query
	for i := 0; i < 20; i++ {
		queries = append(queries, Query{ID: fmt.Sprintf("q%02d", i), SQLText: fmt.Sprintf("SELECT * FROM orders WHERE id = %d", i)})
	}
	// Every plan attach fails here, so only heuristic queries survive.
	bad := &fakeRecorder{err: errors.New("boom")}
	failing := New(WithRecorder(bad), discard())

	results, err := o.AnalyzeAll(context.Background(), queries, 4)
	require.NoError(t, err)
	require.Len(t, results, len(queries))
	for i, r := range results {
		assert.Equal(t, queries[i].ID, r.QueryID)
	}
	assert.Len(t, recorder.attached, len(queries))

	mixed := []Query{
		{ID: "a", SQLText: "UPDATE t SET x = 1"},
		{ID: "b", SQLText: "SELECT 1", Plan: seqScanPlan()},
		{ID: "c", SQLText: "DELETE FROM t"},
	}
	results, err = failing.AnalyzeAll(context.Background(), mixed, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].QueryID)
	assert.Equal(t, "c", results[1].QueryID)
}

func TestAnalyzeAll_ZeroWorkers(t *testing.T) {
	results, err := New(discard()).AnalyzeAll(context.Background(), []Query{{ID: "x", SQLText: "SELECT 1"}}, 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestAnalyzeAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(discard()).AnalyzeAll(ctx, []Query{{ID: "x", SQLText: "SELECT 1"}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
