package payoff

import (
	"math"

	"optionlab/internal/models"
)

// ProfitableRegion describes where curve.Y is strictly positive.
//
// With zero-set Z (Y <= 0) and positive set P:
//   - P empty: never profitable.
//   - Z empty: (0, ∞).
//   - Z strictly inside the grid: (0, ceil(S[Z0-1])) and (floor(S[Zn+1]), ∞).
//   - Z touching an end of the grid: one interval floor(S[P0]) .. ceil(S[Pn]),
//     open below when P0 is the first point and open above when Pn is the last.
//
// A single point where Y is exactly zero between two profitable neighbours
// is a tangency (a zero-premium straddle at its strike) and is not counted in Z.
func ProfitableRegion(curve models.PayoffCurve) models.Region {
	y := curve.Y
	n := len(y)
	if n == 0 {
		return models.Region{Never: true}
	}

	positive := make([]bool, n)
	for i, v := range y {
		positive[i] = math.Max(v, 0) > 0
	}
	for i := 1; i < n-1; i++ {
		if y[i] == 0 && positive[i-1] && positive[i+1] {
			positive[i] = true
		}
	}

	var idxZero, idxPos []int
	for i, p := range positive {
		if p {
			idxPos = append(idxPos, i)
		} else {
			idxZero = append(idxZero, i)
		}
	}

	switch {
	case len(idxPos) == 0:
		return models.Region{Never: true}
	case len(idxZero) == 0:
		return models.Region{Intervals: []models.Interval{{}}}
	}

	s := curve.S
	firstZero, lastZero := idxZero[0], idxZero[len(idxZero)-1]
	if firstZero != 0 && lastZero != n-1 {
		return models.Region{Intervals: []models.Interval{
			{Upper: bound(math.Ceil(s[firstZero-1]))},
			{Lower: bound(math.Floor(s[lastZero+1]))},
		}}
	}

	var iv models.Interval
	firstPos, lastPos := idxPos[0], idxPos[len(idxPos)-1]
	if firstPos != 0 {
		iv.Lower = bound(math.Floor(s[firstPos]))
	}
	if lastPos != n-1 {
		iv.Upper = bound(math.Ceil(s[lastPos]))
	}
	return models.Region{Intervals: []models.Interval{iv}}
}

func bound(v float64) *float64 {
	return &v
}
