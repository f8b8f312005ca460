package search

import (
	"math"

	"github.com/google/uuid"
)

// normalize min-max scales a candidate set into [0,1] over its own members.
// With zero spread (including a single candidate) every score becomes 1.0.
func normalize(scores map[uuid.UUID]float64) map[uuid.UUID]float64 {
	if len(scores) == 0 {
		return scores
	}
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, s := range scores {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	out := make(map[uuid.UUID]float64, len(scores))
	spread := hi - lo
	for id, s := range scores {
		if spread == 0 {
			out[id] = 1.0
		} else {
			out[id] = (s - lo) / spread
		}
	}
	return out
}

// round4 rounds a score to four decimals for presentation.
func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
