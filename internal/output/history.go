package output

import (
	"io"
	"strings"

	"github.com/jacobarthurs/queryinsight/internal/store"
	"github.com/jacobarthurs/queryinsight/internal/trend"
)

const maxSQLPreview = 80

func RenderQueriesText(w io.Writer, queries []store.QueryRecord) error {
	tw := &textWriter{w: w}

	if len(queries) == 0 {
		tw.printf("%s%sNo queries stored.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	tw.heading("Queries (%d)", len(queries))
	for i, q := range queries {
		planMark := ""
		if q.Plan != nil {
			planMark = "  plan"
		}
		tw.printf("  %s%s%s  %s  %s%s%s\n",
			colorBold, q.ID, colorReset, formatTime(q.ObservedAt), colorDim, q.Source+planMark, colorReset)
		tw.printf("    %.2f ms avg over %d calls\n", q.ExecutionTimeMs, q.Calls)
		tw.printf("    %s\n", preview(q.SQLText))
		if i < len(queries)-1 {
			tw.printf("\n")
		}
	}
	return tw.err
}

// RenderQueryDetailText prints one stored query with its plan summary, when
// a plan was captured, and the recommendations stored for it.
func RenderQueryDetailText(w io.Writer, q store.QueryRecord, recs []store.RecommendationRecord) error {
	tw := &textWriter{w: w}

	tw.heading("Query %s", q.ID)
	tw.printf("  %sSource:%s      %s\n", colorDim, colorReset, q.Source)
	tw.printf("  %sObserved:%s    %s\n", colorDim, colorReset, formatTime(q.ObservedAt))
	tw.printf("  %sExecution:%s   %.2f ms avg over %d calls\n", colorDim, colorReset, q.ExecutionTimeMs, q.Calls)
	tw.printf("  %sFingerprint:%s %s\n\n", colorDim, colorReset, q.Fingerprint)
	tw.printf("%s\n\n", strings.TrimSpace(q.SQLText))

	if q.Plan != nil {
		tw.renderPlanSummary(q.Plan)
	}

	if len(recs) == 0 {
		tw.printf("%s%sNo recommendations stored.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	tw.heading("Recommendations (%d)", len(recs))
	for i, r := range recs {
		tw.printf("  %s%s%s  %s%s%s\n", colorBold, r.ID, colorReset, statusColor(r.Status), r.Status, colorReset)
		tw.renderRecommendation("  ", r.Recommendation)
		if i < len(recs)-1 {
			tw.printf("\n")
		}
	}
	return tw.err
}

func RenderPatternsText(w io.Writer, stats []trend.WindowStat) error {
	tw := &textWriter{w: w}

	if len(stats) == 0 {
		tw.printf("%s%sNo queries observed in window.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	tw.heading("Patterns (%d)", len(stats))
	for i, st := range stats {
		tw.printf("  %s%s%s\n", colorBold, preview(st.Fingerprint), colorReset)
		tw.printf("    %d observations, %.2f ms avg, %slast seen %s%s\n",
			st.Count, st.AvgExecTimeMs, colorDim, formatTime(st.LastSeen), colorReset)
		if i < len(stats)-1 {
			tw.printf("\n")
		}
	}
	return tw.err
}

func RenderRunsText(w io.Writer, runs []store.CollectionRun) error {
	tw := &textWriter{w: w}

	if len(runs) == 0 {
		tw.printf("%s%sNo collection runs recorded.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	tw.heading("Collection Runs (%d)", len(runs))
	for _, r := range runs {
		tw.printf("  %s  %s%d queries%s, %d calls, %.2f ms avg  %s(threshold %.0f ms)%s\n",
			formatTime(r.CollectedAt), colorBold, r.QueryCount, colorReset, r.TotalCalls, r.AvgExecTimeMs,
			colorDim, r.ThresholdMs, colorReset)
	}
	return tw.err
}

func preview(sqlText string) string {
	r := []rune(strings.Join(strings.Fields(sqlText), " "))
	if len(r) <= maxSQLPreview {
		return string(r)
	}
	return string(r[:maxSQLPreview-3]) + "..."
}
