package analyzer

import (
	"sort"

	"github.com/jacobarthurs/queryinsight/internal/plan"
)

// Analyze walks the plan tree in pre-order, evaluating every rule at every
// node, and returns the findings ordered by impact (highest first). The tree
// is not modified.
func Analyze(root *plan.PlanNode) []Finding {
	if root == nil {
		return nil
	}

	var findings []Finding
	walkTree(root, defaultRules, &findings)

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Impact > findings[j].Impact
	})

	return findings
}

func AnalyzeOutput(output *plan.ExplainOutput) []Finding {
	if output == nil {
		return nil
	}
	return Analyze(&output.Plan)
}

func walkTree(node *plan.PlanNode, rules []Rule, findings *[]Finding) {
	for _, rule := range rules {
		if f, ok := rule.Check(node); ok {
			f.Rule = rule.ID
			f.Node = node
			*findings = append(*findings, f)
		}
	}

	for i := range node.Plans {
		walkTree(&node.Plans[i], rules, findings)
	}
}
