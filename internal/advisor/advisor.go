package advisor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jacobarthurs/queryinsight/internal/analyzer"
	"github.com/jacobarthurs/queryinsight/internal/plan"
	"github.com/jacobarthurs/queryinsight/internal/recommendation"
)

const (
	IndexImpact     = 80.0
	IndexConfidence = 0.85

	// PostgreSQL truncates identifiers longer than NAMEDATALEN-1.
	MaxIdentifierLen = 63
)

// Advise turns seq scan and sort findings into concrete CREATE INDEX
// suggestions. Findings with no extractable columns or no target table are
// skipped. The result is deduplicated by title, keeping the first.
func Advise(sqlText string, findings []analyzer.Finding) []recommendation.Recommendation {
	var recs []recommendation.Recommendation
	seen := make(map[string]bool)

	for _, f := range findings {
		if f.Node == nil {
			continue
		}

		var rec recommendation.Recommendation
		var ok bool
		switch f.Rule {
		case analyzer.RuleSeqScan:
			rec, ok = adviseSeqScan(f.Node)
		case analyzer.RuleLargeSort:
			rec, ok = adviseSort(f.Node, sqlText)
		}
		if !ok || seen[rec.Title] {
			continue
		}
		seen[rec.Title] = true
		recs = append(recs, rec)
	}

	return recs
}

func adviseSeqScan(node *plan.PlanNode) (recommendation.Recommendation, bool) {
	if node.RelationName == "" {
		return recommendation.Recommendation{}, false
	}
	cols := FilterColumns(node.Filter)
	if len(cols) == 0 {
		return recommendation.Recommendation{}, false
	}

	table := quoteIdent(node.RelationName)
	rec := newIndex(table, cols)
	rec.Description = fmt.Sprintf(
		"Adding an index on %s (%s) lets the planner replace the sequential scan over an estimated %d rows with an index scan.",
		table, strings.Join(cols, ", "), node.PlanRows,
	)
	return rec, true
}

func adviseSort(node *plan.PlanNode, sqlText string) (recommendation.Recommendation, bool) {
	cols := SortColumns(node.SortKey)
	if len(cols) == 0 {
		return recommendation.Recommendation{}, false
	}
	table := fromTable(sqlText)
	if rel := node.FindRelation(); rel != "" {
		table = quoteIdent(rel)
	}
	if table == "" {
		return recommendation.Recommendation{}, false
	}

	rec := newIndex(table, cols)
	rec.Description = fmt.Sprintf(
		"An index on %s (%s) returns rows already ordered, removing the explicit sort of %d rows.",
		table, strings.Join(cols, ", "), node.Rows(),
	)
	return rec, true
}

func newIndex(table string, cols []string) recommendation.Recommendation {
	colList := strings.Join(cols, ", ")
	name := IndexName(table, cols)
	return recommendation.Recommendation{
		Kind:            recommendation.Index,
		Title:           fmt.Sprintf("Add index on %s (%s)", table, colList),
		SQLSuggestion:   fmt.Sprintf("CREATE INDEX %s ON %s (%s);", name, table, colList),
		EstimatedImpact: IndexImpact,
		Confidence:      IndexConfidence,
	}
}

// IndexName builds idx_<table>_<cols> from unquoted, lower-cased parts,
// truncated to the identifier limit.
func IndexName(table string, cols []string) string {
	parts := append([]string{"idx", strings.ReplaceAll(table, ".", "_")}, cols...)
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.ReplaceAll(p, `"`, ""))
	}
	name := strings.Join(parts, "_")
	if len(name) > MaxIdentifierLen {
		name = name[:MaxIdentifierLen]
	}
	return name
}

var (
	stringLiteralRe = regexp.MustCompile(`'(?:[^']|'')*'`)
	castColRe       = regexp.MustCompile(`\(("(?:[^"]|"")+"|[a-zA-Z_]\w*)\)::`)
	castRe          = regexp.MustCompile(`(?i)::"?\w+(?:\s+varying|\s+precision|\s+(?:with|without)\s+time\s+zone)?"?(?:\[\])?`)
	comparedColRe   = regexp.MustCompile(`(?i)("(?:[^"\s()]|"")+"|\b\w+)(?:\s*[=<>!~]+\*?|\s+(?:NOT\s+)?(?:I?LIKE|IN)\b)`)
	digitsRe        = regexp.MustCompile(`^\d+$`)
	plainIdentRe    = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
	fromRe          = regexp.MustCompile(`(?i)\bFROM\s+([a-zA-Z_][\w.]*)`)
)

var filterKeywords = map[string]bool{
	"and":  true,
	"or":   true,
	"not":  true,
	"null": true,
}

// FilterColumns extracts the columns compared in a plan filter predicate,
// in first-seen order. Unquoted names are lower-cased; quoted names that
// need quoting keep their quotes.
func FilterColumns(filter string) []string {
	if filter == "" {
		return nil
	}

	cleaned := stringLiteralRe.ReplaceAllString(filter, "''")
	cleaned = castColRe.ReplaceAllString(cleaned, "$1::")
	cleaned = castRe.ReplaceAllString(cleaned, "")

	seen := make(map[string]bool)
	var cols []string
	for _, m := range comparedColRe.FindAllStringSubmatch(cleaned, -1) {
		if !strings.HasPrefix(m[1], `"`) && (filterKeywords[strings.ToLower(m[1])] || digitsRe.MatchString(m[1])) {
			continue
		}
		col := columnName(m[1])
		if seen[col] {
			continue
		}
		seen[col] = true
		cols = append(cols, col)
	}
	return cols
}

var (
	sortSuffixRe = regexp.MustCompile(`(?i)(\s+(ASC|DESC))?(\s+NULLS\s+(FIRST|LAST))?\s*$`)
	sortIdentRe  = regexp.MustCompile(`(?:(?:"(?:[^"]|"")+"|[a-zA-Z_]\w*)\.)*("(?:[^"]|"")+"|[a-zA-Z_]\w*)`)
)

// SortColumns returns the leading column of each sort key expression with
// direction, NULLS ordering and table qualifiers removed. Quoting follows
// FilterColumns.
func SortColumns(keys []string) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, key := range keys {
		col := leadingColumn(key)
		if col == "" || seen[col] {
			continue
		}
		seen[col] = true
		cols = append(cols, col)
	}
	return cols
}

func leadingColumn(expr string) string {
	expr = castRe.ReplaceAllString(expr, "")
	expr = sortSuffixRe.ReplaceAllString(expr, "")

	for _, loc := range sortIdentRe.FindAllStringSubmatchIndex(expr, -1) {
		rest := strings.TrimLeft(expr[loc[1]:], " ")
		if strings.HasPrefix(rest, "(") {
			continue // function name
		}
		return columnName(expr[loc[2]:loc[3]])
	}
	return ""
}

func columnName(raw string) string {
	if !strings.HasPrefix(raw, `"`) {
		return strings.ToLower(raw)
	}
	return quoteIdent(strings.ReplaceAll(raw[1:len(raw)-1], `""`, `"`))
}

// quoteIdent quotes name unless it survives identifier case folding as is.
func quoteIdent(name string) string {
	if plainIdentRe.MatchString(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func fromTable(sqlText string) string {
	m := fromRe.FindStringSubmatch(sqlText)
	if m == nil {
		return ""
	}
	return strings.TrimSuffix(m[1], ".")
}
