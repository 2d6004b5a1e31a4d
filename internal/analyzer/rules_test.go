package analyzer

import (
	"strings"
	"testing"

	"github.com/jacobarthurs/queryinsight/internal/plan"
	"github.com/jacobarthurs/queryinsight/internal/recommendation"
)

// --- Helpers ---

func rowsPtr(n int64) *int64 {
	return &n
}

type check func(*plan.PlanNode) (Finding, bool)

func requireFinding(t *testing.T, rule check, node *plan.PlanNode) Finding {
	t.Helper()
	f, ok := rule(node)
	if !ok {
		t.Fatal("expected a finding")
	}
	return f
}

func requireNoFinding(t *testing.T, rule check, node *plan.PlanNode) {
	t.Helper()
	if f, ok := rule(node); ok {
		t.Fatalf("expected no finding, got %+v", f)
	}
}

func TestSeqScan_RowThreshold(t *testing.T) {
	below := &plan.PlanNode{NodeType: "Seq Scan", RelationName: "users", TotalCost: 50, PlanRows: 999}
	requireNoFinding(t, checkSeqScan, below)

	atLimit := &plan.PlanNode{NodeType: "Seq Scan", RelationName: "users", TotalCost: 50, PlanRows: 1000}
	requireNoFinding(t, checkSeqScan, atLimit)

	above := &plan.PlanNode{NodeType: "Seq Scan", RelationName: "users", TotalCost: 50, PlanRows: 1001}
	f := requireFinding(t, checkSeqScan, above)
	if f.Impact <= 0 || f.Impact > 1 {
		t.Errorf("impact = %v, want in (0,1]", f.Impact)
	}
	if f.Kind != recommendation.Index {
		t.Errorf("kind = %v, want index", f.Kind)
	}
	if f.Confidence != SeqScanConfidence {
		t.Errorf("confidence = %v, want %v", f.Confidence, SeqScanConfidence)
	}
}

func TestSeqScan_ExactlyOneFindingFromTree(t *testing.T) {
	root := &plan.PlanNode{NodeType: "Seq Scan", RelationName: "users", TotalCost: 50, PlanRows: 1001}
	var seqScans int
	for _, f := range Analyze(root) {
		if f.Rule == RuleSeqScan {
			seqScans++
		}
	}
	if seqScans != 1 {
		t.Errorf("expected exactly 1 seq scan finding, got %d", seqScans)
	}
}

func TestSeqScan_DescriptionCitesEvidence(t *testing.T) {
	node := &plan.PlanNode{
		NodeType:     "Seq Scan",
		RelationName: "orders",
		TotalCost:    18334,
		PlanRows:     500000,
		Filter:       "(status = 'shipped'::text)",
	}
	f := requireFinding(t, checkSeqScan, node)
	if f.Title != "Sequential Scan detected on orders" {
		t.Errorf("title = %q", f.Title)
	}
	for _, want := range []string{"orders", "500000", "18334.00", "status = 'shipped'"} {
		if !strings.Contains(f.Description, want) {
			t.Errorf("description missing %q: %s", want, f.Description)
		}
	}
}

func TestSeqScan_IgnoresOtherScans(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Index Scan", RelationName: "orders", TotalCost: 9000, PlanRows: 500000}
	requireNoFinding(t, checkSeqScan, node)
}

func TestNestedLoop_FallsBackToEstimate(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Nested Loop", TotalCost: 1000, PlanRows: 6000}
	f := requireFinding(t, checkNestedLoop, node)
	if f.Kind != recommendation.Rewrite {
		t.Errorf("kind = %v, want rewrite", f.Kind)
	}
	if !strings.Contains(f.Description, "6000") {
		t.Errorf("description should cite row count: %s", f.Description)
	}
}

func TestNestedLoop_ActualOverridesEstimate(t *testing.T) {
	node := &plan.PlanNode{NodeType: "Nested Loop", TotalCost: 1000, PlanRows: 6000, ActualRows: rowsPtr(100)}
	requireNoFinding(t, checkNestedLoop, node)

	node = &plan.PlanNode{NodeType: "Nested Loop", TotalCost: 1000, PlanRows: 10, ActualRows: rowsPtr(5001)}
	requireFinding(t, checkNestedLoop, node)
}

func TestStaleStatistics(t *testing.T) {
	tests := []struct {
		name   string
		node   plan.PlanNode
		expect bool
	}{
		{"no actual rows", plan.PlanNode{NodeType: "Seq Scan", PlanRows: 10}, false},
		{"zero estimate", plan.PlanNode{NodeType: "Seq Scan", PlanRows: 0, ActualRows: rowsPtr(5000)}, false},
		{"accurate", plan.PlanNode{NodeType: "Seq Scan", PlanRows: 100, ActualRows: rowsPtr(120)}, false},
		{"exactly 10x", plan.PlanNode{NodeType: "Seq Scan", PlanRows: 100, ActualRows: rowsPtr(1000)}, false},
		{"underestimate", plan.PlanNode{NodeType: "Hash Join", PlanRows: 100, ActualRows: rowsPtr(1100)}, true},
		{"overestimate", plan.PlanNode{NodeType: "Index Scan", PlanRows: 20, ActualRows: rowsPtr(1)}, true},
		{"zero actual", plan.PlanNode{NodeType: "Index Scan", PlanRows: 20, ActualRows: rowsPtr(0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := checkStaleStatistics(&tt.node)
			if ok != tt.expect {
				t.Fatalf("fired = %v, want %v", ok, tt.expect)
			}
			if !ok {
				return
			}
			if f.Kind != recommendation.SchemaChange {
				t.Errorf("kind = %v, want schema_change", f.Kind)
			}
			if f.Impact != StaleStatsImpact || f.Confidence != StaleStatsConfidence {
				t.Errorf("impact/confidence = %v/%v", f.Impact, f.Confidence)
			}
		})
	}
}

func TestStaleStatistics_CoFiresWithSeqScan(t *testing.T) {
	root := &plan.PlanNode{
		NodeType:     "Seq Scan",
		RelationName: "events",
		TotalCost:    4000,
		PlanRows:     2000,
		ActualRows:   rowsPtr(400000),
	}
	findings := Analyze(root)
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings on one node, got %d", len(findings))
	}
	rules := map[RuleID]bool{}
	for _, f := range findings {
		rules[f.Rule] = true
	}
	if !rules[RuleSeqScan] || !rules[RuleStaleStatistics] {
		t.Errorf("expected seq scan and stale statistics, got %v", rules)
	}
}

func TestLargeSort(t *testing.T) {
	small := &plan.PlanNode{NodeType: "Sort", TotalCost: 900, PlanRows: 10000}
	requireNoFinding(t, checkLargeSort, small)

	large := &plan.PlanNode{NodeType: "Sort", TotalCost: 900, PlanRows: 100, ActualRows: rowsPtr(10001)}
	f := requireFinding(t, checkLargeSort, large)
	if f.Kind != recommendation.Index {
		t.Errorf("kind = %v, want index", f.Kind)
	}
	if f.Confidence != LargeSortConfidence {
		t.Errorf("confidence = %v", f.Confidence)
	}
}

func TestCostScore(t *testing.T) {
	tests := []struct {
		cost   float64
		weight float64
		want   float64
	}{
		{0, 0.8, 0},
		{1, 0.8, 0},
		{1e6, 0.8, 0.8},
		{1e12, 0.7, 0.7},
		{1000, 0.6, 0.3},
	}
	for _, tt := range tests {
		if got := costScore(tt.cost, tt.weight); got != tt.want {
			t.Errorf("costScore(%v, %v) = %v, want %v", tt.cost, tt.weight, got, tt.want)
		}
	}
}

func TestRules_TableOrder(t *testing.T) {
	want := []RuleID{RuleSeqScan, RuleNestedLoop, RuleStaleStatistics, RuleLargeSort}
	got := defaultRules
	if len(got) != len(want) {
		t.Fatalf("got %d rules, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Errorf("rule %d = %s, want %s", i, got[i].ID, want[i])
		}
	}
}
