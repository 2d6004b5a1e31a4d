package trend

import (
	"math"
	"sort"
	"time"
)

const (
	MinBaselineCount    = 5
	RelativeThreshold   = 0.3
	AbsoluteThresholdMs = 50.0

	// Below this relative change Compare reports Unchanged.
	SignificanceThresholdPct = 5.0
)

// WindowStat aggregates executions of one fingerprint within a time window.
type WindowStat struct {
	Fingerprint   string    `json:"fingerprint"`
	Count         int64     `json:"count"`
	AvgExecTimeMs float64   `json:"avg_exec_time_ms"`
	LastSeen      time.Time `json:"last_seen"`
}

type Regression struct {
	Fingerprint   string    `json:"fingerprint"`
	RecentAvgMs   float64   `json:"recent_avg_ms"`
	BaselineAvgMs float64   `json:"baseline_avg_ms"`
	IncreasePct   float64   `json:"increase_percentage"`
	Count         int64     `json:"count"`
	LastSeen      time.Time `json:"last_seen"`
}

func (r Regression) IncreaseMs() float64 {
	return r.RecentAvgMs - r.BaselineAvgMs
}

// Detect compares each recent fingerprint against its baseline and returns
// the ones that got slower by both more than RelativeThreshold and more than
// AbsoluteThresholdMs, largest absolute increase first. Fingerprints with
// fewer than MinBaselineCount baseline executions are skipped.
func Detect(recent, baseline []WindowStat) []Regression {
	base := indexByFingerprint(baseline)

	var out []Regression
	for _, r := range recent {
		b, ok := base[r.Fingerprint]
		if !ok || b.Count < MinBaselineCount || b.AvgExecTimeMs <= 0 {
			continue
		}
		if r.AvgExecTimeMs <= b.AvgExecTimeMs*(1+RelativeThreshold) {
			continue
		}
		if r.AvgExecTimeMs-b.AvgExecTimeMs <= AbsoluteThresholdMs {
			continue
		}
		out = append(out, Regression{
			Fingerprint:   r.Fingerprint,
			RecentAvgMs:   r.AvgExecTimeMs,
			BaselineAvgMs: b.AvgExecTimeMs,
			IncreasePct:   pctChange(b.AvgExecTimeMs, r.AvgExecTimeMs),
			Count:         r.Count,
			LastSeen:      r.LastSeen,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IncreaseMs() > out[j].IncreaseMs()
	})
	return out
}

type Direction int

const (
	Unchanged Direction = 0
	Improved  Direction = 1
	Regressed Direction = 2
)

func (d Direction) String() string {
	switch d {
	case Improved:
		return "improved"
	case Regressed:
		return "regressed"
	default:
		return "unchanged"
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Change is the movement of one fingerprint between windows, whether or not
// it qualifies as a regression.
type Change struct {
	Fingerprint   string    `json:"fingerprint"`
	RecentAvgMs   float64   `json:"recent_avg_ms"`
	BaselineAvgMs float64   `json:"baseline_avg_ms"`
	ChangePct     float64   `json:"change_percentage"`
	Direction     Direction `json:"direction"`
	Regression    bool      `json:"regression"`
	Count         int64     `json:"count"`
	LastSeen      time.Time `json:"last_seen"`
}

// Compare reports every recent fingerprint with a usable baseline, ordered
// by absolute change (largest first). Regression marks the entries Detect
// would return.
func Compare(recent, baseline []WindowStat) []Change {
	base := indexByFingerprint(baseline)
	flagged := make(map[string]bool)
	for _, r := range Detect(recent, baseline) {
		flagged[r.Fingerprint] = true
	}

	var out []Change
	for _, r := range recent {
		b, ok := base[r.Fingerprint]
		if !ok || b.Count < MinBaselineCount || b.AvgExecTimeMs <= 0 {
			continue
		}
		pct := pctChange(b.AvgExecTimeMs, r.AvgExecTimeMs)
		out = append(out, Change{
			Fingerprint:   r.Fingerprint,
			RecentAvgMs:   r.AvgExecTimeMs,
			BaselineAvgMs: b.AvgExecTimeMs,
			ChangePct:     pct,
			Direction:     direction(pct),
			Regression:    flagged[r.Fingerprint],
			Count:         r.Count,
			LastSeen:      r.LastSeen,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].RecentAvgMs-out[i].BaselineAvgMs) > math.Abs(out[j].RecentAvgMs-out[j].BaselineAvgMs)
	})
	return out
}

// Windows returns the recent window [now-recent, now) and the baseline
// window [now-baseline, now-recent). The windows do not overlap.
func Windows(now time.Time, recentHours, baselineHours int) (recentFrom, recentTo, baselineFrom, baselineTo time.Time) {
	recentTo = now
	recentFrom = now.Add(-time.Duration(recentHours) * time.Hour)
	baselineTo = recentFrom
	baselineFrom = now.Add(-time.Duration(baselineHours) * time.Hour)
	return
}

func indexByFingerprint(stats []WindowStat) map[string]WindowStat {
	m := make(map[string]WindowStat, len(stats))
	for _, s := range stats {
		m[s.Fingerprint] = s
	}
	return m
}

func direction(pct float64) Direction {
	if math.Abs(pct) < SignificanceThresholdPct {
		return Unchanged
	}
	if pct > 0 {
		return Regressed
	}
	return Improved
}

func pctChange(old, new float64) float64 {
	if old == 0 {
		return 0
	}
	return (new/old - 1) * 100
}
