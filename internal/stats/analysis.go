package stats

import "github.com/landerd/landerd/internal/store"

// Analysis is the full report for an experiment: the primary comparison
// between the first two variant stat rows (control vs first treatment),
// plus pairwise control-vs-each comparisons for experiments with more
// than two variants.
type Analysis struct {
	Significant bool         `json:"significant"`
	Reason      string       `json:"reason,omitempty"`
	PValue      float64      `json:"pValue,omitempty"`
	ZScore      float64      `json:"zScore,omitempty"`
	Improvement float64      `json:"improvement,omitempty"`
	WinnerID    string       `json:"winnerId,omitempty"`
	Confidence  float64      `json:"confidence,omitempty"`
	Comparisons []Comparison `json:"comparisons,omitempty"`
	Intervals   []Interval   `json:"intervals,omitempty"`
}

// Interval is a per-variant Wilson score confidence interval.
type Interval struct {
	VariantID string  `json:"variantId"`
	Rate      float64 `json:"rate"`
	Lower     float64 `json:"lower"`
	Upper     float64 `json:"upper"`
}

// Analyze compares the control (first stat row) against every other
// variant. With exactly two variants this reduces to a single
// two-proportion z-test. With more, each pairwise test runs at a
// Bonferroni-corrected threshold (threshold / number of comparisons) and
// the reported winner is the best significant treatment, falling back to
// the control when no treatment wins.
func Analyze(statsRows []store.VariantStats, threshold float64) Analysis {
	if threshold <= 0 {
		threshold = 0.05
	}
	if len(statsRows) < 2 {
		return Analysis{Reason: ReasonInsufficientData}
	}

	control := statsRows[0]
	treatments := statsRows[1:]

	perTest := threshold
	if len(treatments) > 1 {
		perTest = threshold / float64(len(treatments))
	}

	a := Analysis{}
	for _, v := range statsRows {
		rate := 0.0
		if v.Visitors > 0 {
			rate = float64(v.Conversions) / float64(v.Visitors)
		}
		lower, upper := WilsonInterval(int(v.Conversions), int(v.Visitors), 0.95)
		a.Intervals = append(a.Intervals, Interval{
			VariantID: v.VariantID, Rate: rate, Lower: lower, Upper: upper,
		})
	}

	bestImprovement := 0.0
	for _, t := range treatments {
		c := Compare(control, t, perTest)
		a.Comparisons = append(a.Comparisons, c)
		if c.Significant && c.WinnerID == t.VariantID && c.Improvement > bestImprovement {
			a.Significant = true
			a.WinnerID = t.VariantID
			a.Improvement = c.Improvement
			a.PValue = c.PValue
			a.ZScore = c.ZScore
			a.Confidence = 1 - c.PValue
			bestImprovement = c.Improvement
		}
	}

	// Primary pair drives the headline numbers when no treatment won.
	primary := a.Comparisons[0]
	if !a.Significant {
		a.Reason = primary.Reason
		a.PValue = primary.PValue
		a.ZScore = primary.ZScore
		a.Improvement = primary.Improvement
		a.WinnerID = primary.WinnerID
		a.Significant = primary.Significant
		if primary.Significant {
			a.Confidence = 1 - primary.PValue
		}
		if primary.Reason == ReasonInsufficientData {
			a.WinnerID = ""
		}
	}
	return a
}
