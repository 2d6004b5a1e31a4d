package plan

type PlanNode struct {
	NodeType           string `json:"Node Type"`
	ParentRelationship string `json:"Parent Relationship,omitempty"`

	// Estimates vs actuals. ActualRows is nil when the plan was not executed.
	StartupCost     float64 `json:"Startup Cost"`
	TotalCost       float64 `json:"Total Cost"`
	PlanRows        int64   `json:"Plan Rows"`
	ActualTotalTime float64 `json:"Actual Total Time,omitempty"`
	ActualRows      *int64  `json:"Actual Rows,omitempty"`
	ActualLoops     int64   `json:"Actual Loops,omitempty"`

	Schema       string `json:"Schema,omitempty"`
	RelationName string `json:"Relation Name,omitempty"`
	Alias        string `json:"Alias,omitempty"`
	IndexName    string `json:"Index Name,omitempty"`

	IndexCond string `json:"Index Cond,omitempty"`
	Filter    string `json:"Filter,omitempty"`
	JoinType  string `json:"Join Type,omitempty"`
	HashCond  string `json:"Hash Cond,omitempty"`

	SortKey []string `json:"Sort Key,omitempty"`

	Plans []PlanNode `json:"Plans,omitempty"`
}

// Actual returns the actual row count and whether the node carries one.
func (n *PlanNode) Actual() (int64, bool) {
	if n.ActualRows == nil {
		return 0, false
	}
	return *n.ActualRows, true
}

// Rows returns the actual row count, falling back to the planner estimate.
func (n *PlanNode) Rows() int64 {
	if actual, ok := n.Actual(); ok {
		return actual
	}
	return n.PlanRows
}

// FindRelation returns the first relation name in the subtree rooted at n.
func (n *PlanNode) FindRelation() string {
	if n.RelationName != "" {
		return n.RelationName
	}
	for i := range n.Plans {
		if rel := n.Plans[i].FindRelation(); rel != "" {
			return rel
		}
	}
	return ""
}

// ExplainOutput represents the top-level EXPLAIN JSON output from PostgreSQL.
type ExplainOutput struct {
	Plan          PlanNode `json:"Plan"`
	PlanningTime  float64  `json:"Planning Time,omitempty"`
	ExecutionTime float64  `json:"Execution Time,omitempty"`
}
