package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jacobarthurs/queryinsight/internal/orchestrator"
	"github.com/jacobarthurs/queryinsight/internal/plan"
	"github.com/jacobarthurs/queryinsight/internal/recommendation"
	"github.com/jacobarthurs/queryinsight/internal/store"
	"github.com/jacobarthurs/queryinsight/internal/trend"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

const mediumImpactThreshold = 25.0

type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func (tw *textWriter) heading(format string, args ...any) {
	tw.printf("%s%s%s%s\n\n", colorBold, colorCyan, fmt.Sprintf(format, args...), colorReset)
}

// RenderResultText prints one analysis result. The plan summary block is
// shown when p is not nil.
func RenderResultText(w io.Writer, res orchestrator.Result, p *plan.ExplainOutput) error {
	tw := &textWriter{w: w}

	if p != nil {
		tw.renderPlanSummary(p)
	}

	tw.renderResult(res)
	return tw.err
}

func (tw *textWriter) renderPlanSummary(p *plan.ExplainOutput) {
	tw.heading("Plan Summary")
	tw.printf("  Root Node:      %s\n", p.Plan.NodeType)
	tw.printf("  Total Cost:     %.2f\n", p.Plan.TotalCost)
	if p.ExecutionTime > 0 {
		tw.printf("  Execution Time: %.3f ms\n", p.ExecutionTime)
	}
	if p.PlanningTime > 0 {
		tw.printf("  Planning Time:  %.3f ms\n", p.PlanningTime)
	}
	tw.printf("\n")
}

// RenderResultsText prints a batch of results separated by blank lines.
func RenderResultsText(w io.Writer, results []orchestrator.Result) error {
	tw := &textWriter{w: w}

	if len(results) == 0 {
		tw.printf("%s%sNo queries analyzed.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	for i, res := range results {
		if res.QueryID != "" {
			tw.printf("%sQuery %s%s\n", colorBold, res.QueryID, colorReset)
		}
		tw.renderResult(res)
		if i < len(results)-1 {
			tw.printf("\n")
		}
	}
	return tw.err
}

func (tw *textWriter) renderResult(res orchestrator.Result) {
	tw.printf("  %sFingerprint:%s %s\n", colorDim, colorReset, res.Fingerprint)
	tw.printf("  %sAnalysis:%s    %s\n\n", colorDim, colorReset, pathLabel(res.Path))

	if len(res.Recommendations) == 0 {
		tw.printf("%s%sNo issues found.%s\n", colorBold, colorGreen, colorReset)
		return
	}

	tw.heading("Recommendations (%d)", len(res.Recommendations))
	for i, r := range res.Recommendations {
		tw.renderRecommendation("  ", r)
		if i < len(res.Recommendations)-1 {
			tw.printf("\n")
		}
	}
}

func (tw *textWriter) renderRecommendation(indent string, r recommendation.Recommendation) {
	label, color := impactFormat(r)
	tw.printf("%s%s%-6s%s %s %s[%s, impact %.0f%%, confidence %.0f%%]%s\n",
		indent, color, label, colorReset, r.Title, colorDim, r.Kind, r.EstimatedImpact, r.Confidence*100, colorReset)
	tw.printf("%s%s→ %s%s\n", indent, colorDim, r.Description, colorReset)
	if r.SQLSuggestion != "" {
		tw.printf("%s  %s%s%s\n", indent, colorGreen, r.SQLSuggestion, colorReset)
	}
}

func impactFormat(r recommendation.Recommendation) (string, string) {
	switch {
	case r.IsHighImpact(recommendation.HighImpactThreshold):
		return "HIGH", colorRed
	case r.IsHighImpact(mediumImpactThreshold):
		return "MEDIUM", colorYellow
	default:
		return "LOW", colorCyan
	}
}

func pathLabel(p orchestrator.Path) string {
	if p == orchestrator.PathPlan {
		return "execution plan"
	}
	return "query text heuristics"
}

func RenderRegressionsText(w io.Writer, regs []trend.Regression) error {
	tw := &textWriter{w: w}

	if len(regs) == 0 {
		tw.printf("%s%sNo regressions detected.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	tw.heading("Regressions (%d)", len(regs))
	for i, r := range regs {
		tw.printf("  %s%s%s\n", colorBold, r.Fingerprint, colorReset)
		tw.printf("    avg: %s\n", formatDelta(r.BaselineAvgMs, r.RecentAvgMs, r.IncreasePct, trend.Regressed, "%.2f ms"))
		tw.printf("    %sexecutions: %d, last seen %s%s\n", colorDim, r.Count, formatTime(r.LastSeen), colorReset)
		if i < len(regs)-1 {
			tw.printf("\n")
		}
	}
	return tw.err
}

// RenderChangesText prints every fingerprint's movement between windows,
// flagging the ones that count as regressions.
func RenderChangesText(w io.Writer, changes []trend.Change) error {
	tw := &textWriter{w: w}

	if len(changes) == 0 {
		tw.printf("%s%sNo fingerprints with a usable baseline.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	var regressed, improved int
	for _, c := range changes {
		switch c.Direction {
		case trend.Regressed:
			regressed++
		case trend.Improved:
			improved++
		}
	}

	tw.heading("Trends (%d)", len(changes))
	tw.printf("  Changes: %d regressed, %d improved, %d unchanged\n\n",
		regressed, improved, len(changes)-regressed-improved)

	for _, c := range changes {
		marker := " "
		if c.Regression {
			marker = colorRed + "!" + colorReset
		}
		tw.printf("  %s %s\n", marker, c.Fingerprint)
		tw.printf("      avg: %s\n", formatDelta(c.BaselineAvgMs, c.RecentAvgMs, c.ChangePct, c.Direction, "%.2f ms"))
	}
	return tw.err
}

func RenderRecordsText(w io.Writer, recs []store.RecommendationRecord) error {
	tw := &textWriter{w: w}

	if len(recs) == 0 {
		tw.printf("%s%sNo recommendations stored.%s\n", colorBold, colorGreen, colorReset)
		return tw.err
	}

	tw.heading("Recommendations (%d)", len(recs))
	for i, r := range recs {
		tw.printf("  %s%s%s  %s%s  query %s  %s%s\n",
			colorBold, r.ID, colorReset, statusColor(r.Status), r.Status, r.QueryID, formatTime(r.CreatedAt), colorReset)
		tw.renderRecommendation("  ", r.Recommendation)
		if i < len(recs)-1 {
			tw.printf("\n")
		}
	}
	return tw.err
}

func statusColor(s recommendation.Status) string {
	switch s {
	case recommendation.Applied:
		return colorGreen
	case recommendation.Dismissed:
		return colorDim
	case recommendation.Testing:
		return colorYellow
	default:
		return ""
	}
}

func formatDelta(oldVal, newVal, pct float64, dir trend.Direction, fmtStr string) string {
	color := dirColor(dir)
	arrow := dirArrow(dir)
	oldStr := fmt.Sprintf(fmtStr, oldVal)
	newStr := fmt.Sprintf(fmtStr, newVal)
	return fmt.Sprintf("%s → %s%s %s (%+.1f%%)%s", oldStr, color, newStr, arrow, pct, colorReset)
}

func dirColor(d trend.Direction) string {
	switch d {
	case trend.Improved:
		return colorGreen
	case trend.Regressed:
		return colorRed
	default:
		return ""
	}
}

func dirArrow(d trend.Direction) string {
	switch d {
	case trend.Improved:
		return "↓"
	case trend.Regressed:
		return "↑"
	default:
		return ""
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}
