// Package stats holds the pure statistical analysis for experiments. It
// has no storage coupling; callers pass counter snapshots in.
package stats

import (
	"math"

	"github.com/landerd/landerd/internal/store"
)

// ReasonInsufficientData is returned when either variant has fewer than
// MinVisitors visitors. It is a documented success response, not an error.
const ReasonInsufficientData = "insufficient_data"

// MinVisitors is the per-variant sample floor below which no comparison
// is attempted.
const MinVisitors = 30

// Comparison is the outcome of a two-proportion z-test between a control
// and one treatment variant.
type Comparison struct {
	ControlID   string  `json:"controlId"`
	TreatmentID string  `json:"treatmentId"`
	Significant bool    `json:"significant"`
	Reason      string  `json:"reason,omitempty"`
	PValue      float64 `json:"pValue"`
	ZScore      float64 `json:"zScore"`
	Improvement float64 `json:"improvement"` // percent, relative to control
	WinnerID    string  `json:"winnerId,omitempty"`
}

// Compare runs a two-tailed two-proportion z-test between control and
// treatment at the given significance threshold. Both variants need at
// least MinVisitors visitors; otherwise the comparison is reported as
// insufficient data.
func Compare(control, treatment store.VariantStats, threshold float64) Comparison {
	c := Comparison{ControlID: control.VariantID, TreatmentID: treatment.VariantID}

	if control.Visitors < MinVisitors || treatment.Visitors < MinVisitors {
		c.Reason = ReasonInsufficientData
		return c
	}

	p1 := float64(control.Conversions) / float64(control.Visitors)
	p2 := float64(treatment.Conversions) / float64(treatment.Visitors)
	n1 := float64(control.Visitors)
	n2 := float64(treatment.Visitors)

	pooled := float64(control.Conversions+treatment.Conversions) / (n1 + n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/n1 + 1/n2))
	if se == 0 {
		// Identical degenerate rates (all zero or all one); nothing to test.
		c.PValue = 1
		return c
	}

	c.ZScore = math.Abs(p1-p2) / se
	c.PValue = 2 * (1 - NormalCDF(c.ZScore))
	c.Significant = c.PValue < threshold

	if p1 != 0 {
		c.Improvement = (p2 - p1) / p1 * 100
	}
	if p2 > p1 {
		c.WinnerID = treatment.VariantID
	} else {
		c.WinnerID = control.VariantID
	}
	return c
}

// NormalCDF is the standard normal cumulative distribution function,
// computed as 0.5*(1+erf(x/sqrt(2))).
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + erf(x/math.Sqrt2))
}

// erf approximates the error function using the Abramowitz and Stegun
// rational approximation (Handbook of Mathematical Functions, 7.1.26).
// Maximum absolute error 1.5e-7.
func erf(x float64) float64 {
	a1 := 0.254829592
	a2 := -0.284496736
	a3 := 1.421413741
	a4 := -1.453152027
	a5 := 1.061405429
	p := 0.3275911

	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x)

	t := 1.0 / (1.0 + p*x)
	y := 1.0 - (((((a5*t+a4)*t)+a3)*t+a2)*t+a1)*t*math.Exp(-x*x)

	return sign * y
}
