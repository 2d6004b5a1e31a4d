package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jacobarthurs/queryinsight/internal/advisor"
	"github.com/jacobarthurs/queryinsight/internal/analyzer"
	"github.com/jacobarthurs/queryinsight/internal/fingerprint"
	"github.com/jacobarthurs/queryinsight/internal/heuristic"
	"github.com/jacobarthurs/queryinsight/internal/plan"
	"github.com/jacobarthurs/queryinsight/internal/recommendation"
)

// PlanFetcher obtains a plan for a statement. A nil plan with a nil error
// means no plan is available.
type PlanFetcher interface {
	FetchPlan(ctx context.Context, sqlText string) (*plan.ExplainOutput, error)
}

// PlanRecorder persists a plan against the query it was captured for.
type PlanRecorder interface {
	AttachPlan(ctx context.Context, queryID string, p *plan.ExplainOutput) error
}

type Query struct {
	ID              string
	SQLText         string
	ExecutionTimeMs float64
	// Plan, when set, is used instead of fetching one.
	Plan *plan.ExplainOutput
}

type Path string

const (
	PathPlan      Path = "plan"
	PathHeuristic Path = "heuristic"
)

type Result struct {
	QueryID         string                          `json:"query_id,omitempty"`
	Fingerprint     string                          `json:"fingerprint"`
	Path            Path                            `json:"path"`
	Recommendations []recommendation.Recommendation `json:"recommendations"`
}

type Orchestrator struct {
	fetcher  PlanFetcher
	recorder PlanRecorder
	logger   *slog.Logger
}

type Option func(*Orchestrator)

func WithFetcher(f PlanFetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

func WithRecorder(r PlanRecorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// Analyze produces recommendations for one query. With a plan, the plan
// analyzer and index advisor run and index-kind plan findings are replaced
// by the advisor's DDL suggestions. Without one, the heuristic analyzer runs.
// Only a failure to record an obtained plan is returned as an error.
func (o *Orchestrator) Analyze(ctx context.Context, q Query) (Result, error) {
	result := Result{
		QueryID:     q.ID,
		Fingerprint: fingerprint.Normalize(q.SQLText),
	}

	p := q.Plan
	if p == nil {
		p = o.fetchPlan(ctx, q)
	}

	if p == nil {
		o.logger.Debug("no plan available, using heuristics", "query_id", q.ID)
		result.Path = PathHeuristic
		result.Recommendations = heuristic.Analyze(q.SQLText, q.ExecutionTimeMs)
		return result, nil
	}

	if o.recorder != nil {
		if err := o.recorder.AttachPlan(ctx, q.ID, p); err != nil {
			return Result{}, fmt.Errorf("attaching plan to query %s: %w", q.ID, err)
		}
	}

	findings := analyzer.AnalyzeOutput(p)
	o.logger.Debug("plan analyzed", "query_id", q.ID, "findings", len(findings))

	result.Path = PathPlan
	result.Recommendations = planRecommendations(q.SQLText, findings)
	return result, nil
}

func (o *Orchestrator) fetchPlan(ctx context.Context, q Query) *plan.ExplainOutput {
	if o.fetcher == nil || !plan.IsSelect(q.SQLText) {
		return nil
	}
	p, err := o.fetcher.FetchPlan(ctx, q.SQLText)
	if err != nil {
		o.logger.Warn("plan fetch failed, falling back to heuristics", "query_id", q.ID, "error", err)
		return nil
	}
	return p
}

func planRecommendations(sqlText string, findings []analyzer.Finding) []recommendation.Recommendation {
	var recs []recommendation.Recommendation
	for _, f := range findings {
		if f.Kind == recommendation.Index {
			continue
		}
		recs = append(recs, f.Recommendation())
	}
	return append(recs, advisor.Advise(sqlText, findings)...)
}

// AnalyzeAll analyzes queries concurrently with at most workers in flight.
// Results keep input order; queries that fail are logged and left out. The
// returned error is the context's, if it was cancelled.
func (o *Orchestrator) AnalyzeAll(ctx context.Context, queries []Query, workers int) ([]Result, error) {
	if workers < 1 {
		workers = 1
	}

	slots := make([]*Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range queries {
		q := queries[i]
		g.Go(func() error {
			res, err := o.Analyze(gctx, q)
			if err != nil {
				o.logger.Warn("analysis failed", "query_id", q.ID, "error", err)
				return nil // don't fail the batch
			}
			slots[i] = &res
			return nil
		})
	}

	_ = g.Wait()

	results := make([]Result, 0, len(queries))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results, ctx.Err()
}
