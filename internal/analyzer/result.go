package analyzer

import (
	"github.com/jacobarthurs/queryinsight/internal/plan"
	"github.com/jacobarthurs/queryinsight/internal/recommendation"
)

type RuleID string

const (
	RuleSeqScan         RuleID = "seq_scan"
	RuleNestedLoop      RuleID = "nested_loop"
	RuleStaleStatistics RuleID = "stale_statistics"
	RuleLargeSort       RuleID = "large_sort"
)

// Finding is a rule hit before it becomes a Recommendation. Node points into
// the analyzed plan so the index advisor can recover relation, filter and
// sort context.
type Finding struct {
	Rule        RuleID
	Kind        recommendation.Kind
	Title       string
	Description string
	Impact      float64 // 0-1
	Confidence  float64
	Node        *plan.PlanNode
}

func (f Finding) Recommendation() recommendation.Recommendation {
	return recommendation.Recommendation{
		Kind:            f.Kind,
		Title:           f.Title,
		Description:     f.Description,
		EstimatedImpact: f.Impact * 100,
		Confidence:      f.Confidence,
	}
}
