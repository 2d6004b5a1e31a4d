package analyzer

import (
	"fmt"
	"math"

	"github.com/jacobarthurs/queryinsight/internal/plan"
	"github.com/jacobarthurs/queryinsight/internal/recommendation"
)

const (
	MinRowsForSeqScan    = 1000
	MinRowsForNestedLoop = 5000
	MinRowsForLargeSort  = 10000

	StaleStatsHighRatio = 10.0
	StaleStatsLowRatio  = 0.1

	SeqScanWeight    = 0.8
	NestedLoopWeight = 0.7
	LargeSortWeight  = 0.6

	SeqScanConfidence    = 0.9
	NestedLoopConfidence = 0.75
	StaleStatsConfidence = 0.8
	LargeSortConfidence  = 0.85

	StaleStatsImpact = 0.5

	// Total cost at which the cost score saturates, as a power of ten.
	costScoreCeilingExp = 6.0
)

type Rule struct {
	ID    RuleID
	Check func(node *plan.PlanNode) (Finding, bool)
}

var defaultRules = []Rule{
	{RuleSeqScan, checkSeqScan},
	{RuleNestedLoop, checkNestedLoop},
	{RuleStaleStatistics, checkStaleStatistics},
	{RuleLargeSort, checkLargeSort},
}

func checkSeqScan(node *plan.PlanNode) (Finding, bool) {
	if node.NodeType != "Seq Scan" || node.PlanRows <= MinRowsForSeqScan {
		return Finding{}, false
	}

	relation := displayRelation(node.RelationName)
	filter := node.Filter
	if filter == "" {
		filter = "N/A"
	}

	return Finding{
		Kind:  recommendation.Index,
		Title: fmt.Sprintf("Sequential Scan detected on %s", relation),
		Description: fmt.Sprintf(
			"The query is performing a sequential scan on %s, estimated at %d rows (cost %.2f). "+
				"An index on the filter columns (%s) could turn this into an index scan.",
			relation, node.PlanRows, node.TotalCost, filter,
		),
		Impact:     costScore(node.TotalCost, SeqScanWeight),
		Confidence: SeqScanConfidence,
	}, true
}

func checkNestedLoop(node *plan.PlanNode) (Finding, bool) {
	if node.NodeType != "Nested Loop" {
		return Finding{}, false
	}
	rows := node.Rows()
	if rows <= MinRowsForNestedLoop {
		return Finding{}, false
	}

	return Finding{
		Kind:  recommendation.Rewrite,
		Title: "Large Nested Loop detected",
		Description: fmt.Sprintf(
			"A nested loop join produced %d rows (cost %.2f). A hash join or merge join is usually "+
				"cheaper at this size; missing join indexes or outdated statistics often cause this plan.",
			rows, node.TotalCost,
		),
		Impact:     costScore(node.TotalCost, NestedLoopWeight),
		Confidence: NestedLoopConfidence,
	}, true
}

func checkStaleStatistics(node *plan.PlanNode) (Finding, bool) {
	actual, ok := node.Actual()
	if !ok || node.PlanRows <= 0 {
		return Finding{}, false
	}

	ratio := float64(max(actual, 1)) / float64(max(node.PlanRows, 1))
	if ratio <= StaleStatsHighRatio && ratio >= StaleStatsLowRatio {
		return Finding{}, false
	}

	target := node.NodeType
	if node.RelationName != "" {
		target = fmt.Sprintf("%s on %s", node.NodeType, node.RelationName)
	}

	return Finding{
		Kind:  recommendation.SchemaChange,
		Title: fmt.Sprintf("Outdated statistics on %s", target),
		Description: fmt.Sprintf(
			"The planner estimated %d rows for %s but %d were returned (%.1fx off). "+
				"Run ANALYZE on the affected tables so the planner can choose better strategies.",
			node.PlanRows, target, actual, ratio,
		),
		Impact:     StaleStatsImpact,
		Confidence: StaleStatsConfidence,
	}, true
}

func checkLargeSort(node *plan.PlanNode) (Finding, bool) {
	if node.NodeType != "Sort" {
		return Finding{}, false
	}
	rows := node.Rows()
	if rows <= MinRowsForLargeSort {
		return Finding{}, false
	}

	return Finding{
		Kind:  recommendation.Index,
		Title: "Large sort operation detected",
		Description: fmt.Sprintf(
			"Sorting %d rows (cost %.2f). An index matching the sort order can return rows "+
				"pre-sorted and remove the explicit sort.",
			rows, node.TotalCost,
		),
		Impact:     costScore(node.TotalCost, LargeSortWeight),
		Confidence: LargeSortConfidence,
	}, true
}

// costScore maps total cost onto (0, weight] on a log scale.
func costScore(totalCost, weight float64) float64 {
	score := math.Min(math.Log10(math.Max(totalCost, 1))/costScoreCeilingExp, 1.0)
	return round2(score * weight)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func displayRelation(rel string) string {
	if rel == "" {
		return "unknown table"
	}
	return rel
}
