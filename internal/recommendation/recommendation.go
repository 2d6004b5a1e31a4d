package recommendation

type Kind string

const (
	Index            Kind = "index"
	Rewrite          Kind = "rewrite"
	Partition        Kind = "partition"
	MaterializedView Kind = "materialized_view"
	QueryCache       Kind = "query_cache"
	Denormalize      Kind = "denormalize"
	Limit            Kind = "limit"
	AvoidNPlusOne    Kind = "avoid_n_plus_one"
	Scaling          Kind = "scaling"
	SchemaChange     Kind = "schema_change"
)

func (k Kind) Valid() bool {
	switch k {
	case Index, Rewrite, Partition, MaterializedView, QueryCache,
		Denormalize, Limit, AvoidNPlusOne, Scaling, SchemaChange:
		return true
	}
	return false
}

type Status string

const (
	Pending   Status = "pending"
	Applied   Status = "applied"
	Dismissed Status = "dismissed"
	Testing   Status = "testing"
)

func (s Status) Valid() bool {
	switch s {
	case Pending, Applied, Dismissed, Testing:
		return true
	}
	return false
}

const HighImpactThreshold = 50.0

// Recommendation is a single optimization suggestion for one query.
// EstimatedImpact is a percentage in [0,100]; Confidence is in [0,1].
type Recommendation struct {
	Kind            Kind    `json:"kind"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	SQLSuggestion   string  `json:"sql_suggestion,omitempty"`
	EstimatedImpact float64 `json:"estimated_impact"`
	Confidence      float64 `json:"confidence"`
}

func (r Recommendation) IsHighImpact(threshold float64) bool {
	return r.EstimatedImpact >= threshold
}
