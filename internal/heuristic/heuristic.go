package heuristic

import (
	"fmt"
	"regexp"

	"github.com/jacobarthurs/queryinsight/internal/recommendation"
)

type CheckID string

const (
	CheckSelectStar      CheckID = "select_star"
	CheckMissingLimit    CheckID = "missing_limit"
	CheckMissingWhere    CheckID = "missing_where"
	CheckLeadingWildcard CheckID = "leading_wildcard"
	CheckExcessOr        CheckID = "excess_or"
	CheckSelectSubquery  CheckID = "select_subquery"
	CheckDistinctNoOrder CheckID = "distinct_no_order"
)

const (
	MissingLimitMinMs = 100.0
	MissingWhereMinMs = 50.0
	DistinctMinMs     = 100.0
	MaxOrConditions   = 2
)

// Check inspects query text and its observed execution time. Checks are
// independent; each emits at most one recommendation.
type Check struct {
	ID  CheckID
	Run func(sqlText string, execMs float64) (recommendation.Recommendation, bool)
}

var defaultChecks = []Check{
	{CheckSelectStar, checkSelectStar},
	{CheckMissingLimit, checkMissingLimit},
	{CheckMissingWhere, checkMissingWhere},
	{CheckLeadingWildcard, checkLeadingWildcard},
	{CheckExcessOr, checkExcessOr},
	{CheckSelectSubquery, checkSelectSubquery},
	{CheckDistinctNoOrder, checkDistinctNoOrder},
}

// Analyze runs every textual check against sqlText. It is used when no
// execution plan is available.
func Analyze(sqlText string, executionTimeMs float64) []recommendation.Recommendation {
	var recs []recommendation.Recommendation
	for _, c := range defaultChecks {
		if rec, ok := c.Run(sqlText, executionTimeMs); ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

var (
	selectStarRe  = regexp.MustCompile(`(?i)SELECT\s+\*`)
	limitRe       = regexp.MustCompile(`(?i)\bLIMIT\b`)
	whereRe       = regexp.MustCompile(`(?i)\bWHERE\b`)
	fromRe        = regexp.MustCompile(`(?i)\bFROM\b`)
	leadingLikeRe = regexp.MustCompile(`(?i)LIKE\s+['"]%`)
	orRe          = regexp.MustCompile(`(?i)\bOR\b`)
	subqueryRe    = regexp.MustCompile(`(?is)SELECT.*\(\s*SELECT`)
	distinctRe    = regexp.MustCompile(`(?i)\bDISTINCT\b`)
	orderByRe     = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
)

func checkSelectStar(sqlText string, _ float64) (recommendation.Recommendation, bool) {
	if !selectStarRe.MatchString(sqlText) {
		return recommendation.Recommendation{}, false
	}
	return recommendation.Recommendation{
		Kind:            recommendation.Rewrite,
		Title:           "Avoid SELECT *",
		Description:     "Selecting all columns transfers more data than needed and prevents index-only scans. List only the columns you use.",
		EstimatedImpact: 15.0,
		Confidence:      0.7,
	}, true
}

func checkMissingLimit(sqlText string, execMs float64) (recommendation.Recommendation, bool) {
	if limitRe.MatchString(sqlText) || execMs <= MissingLimitMinMs {
		return recommendation.Recommendation{}, false
	}
	return recommendation.Recommendation{
		Kind:            recommendation.Limit,
		Title:           "Add LIMIT clause",
		Description:     fmt.Sprintf("Query took %.0fms without a LIMIT clause and may return more rows than needed. Paginate with LIMIT.", execMs),
		EstimatedImpact: 25.0,
		Confidence:      0.6,
	}, true
}

func checkMissingWhere(sqlText string, execMs float64) (recommendation.Recommendation, bool) {
	if whereRe.MatchString(sqlText) || !fromRe.MatchString(sqlText) || execMs <= MissingWhereMinMs {
		return recommendation.Recommendation{}, false
	}
	return recommendation.Recommendation{
		Kind:            recommendation.Rewrite,
		Title:           "Missing WHERE clause",
		Description:     fmt.Sprintf("Query has no WHERE clause and took %.0fms; it likely reads the entire table. Add filtering conditions.", execMs),
		EstimatedImpact: 40.0,
		Confidence:      0.8,
	}, true
}

func checkLeadingWildcard(sqlText string, _ float64) (recommendation.Recommendation, bool) {
	if !leadingLikeRe.MatchString(sqlText) {
		return recommendation.Recommendation{}, false
	}
	return recommendation.Recommendation{
		Kind:            recommendation.Index,
		Title:           "Inefficient LIKE pattern",
		Description:     "LIKE patterns with a leading wildcard ('%...') cannot use a B-tree index. Consider full-text search or a trigram index.",
		EstimatedImpact: 30.0,
		Confidence:      0.75,
	}, true
}

func checkExcessOr(sqlText string, _ float64) (recommendation.Recommendation, bool) {
	count := len(orRe.FindAllStringIndex(sqlText, -1))
	if count <= MaxOrConditions {
		return recommendation.Recommendation{}, false
	}
	return recommendation.Recommendation{
		Kind:            recommendation.Rewrite,
		Title:           "Multiple OR conditions",
		Description:     fmt.Sprintf("Query has %d OR conditions, which can prevent efficient index usage. Consider IN or UNION instead.", count),
		EstimatedImpact: 20.0,
		Confidence:      0.65,
	}, true
}

func checkSelectSubquery(sqlText string, _ float64) (recommendation.Recommendation, bool) {
	if !subqueryRe.MatchString(sqlText) {
		return recommendation.Recommendation{}, false
	}
	return recommendation.Recommendation{
		Kind:            recommendation.Rewrite,
		Title:           "Subquery in SELECT clause",
		Description:     "A subquery in the SELECT list runs once per output row. Rewrite it as a JOIN or window function.",
		EstimatedImpact: 35.0,
		Confidence:      0.7,
	}, true
}

func checkDistinctNoOrder(sqlText string, execMs float64) (recommendation.Recommendation, bool) {
	if !distinctRe.MatchString(sqlText) || orderByRe.MatchString(sqlText) || execMs <= DistinctMinMs {
		return recommendation.Recommendation{}, false
	}
	return recommendation.Recommendation{
		Kind:            recommendation.Rewrite,
		Title:           "DISTINCT without ORDER BY",
		Description:     fmt.Sprintf("DISTINCT took %.0fms here. Confirm it is needed, and add ORDER BY if callers rely on a stable order.", execMs),
		EstimatedImpact: 15.0,
		Confidence:      0.5,
	}, true
}
