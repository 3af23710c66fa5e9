// Package sm2 implements the phase-based spaced-repetition scheduler: a
// three-phase state machine with fixed interval ladders for the first two
// phases and SM-2 ease-factor growth after that.
package sm2

import "math"

// Interval ladders, in seconds. These values are part of the scheduler's
// observable behaviour and must not change.
var (
	// 5s, 25s, 2min, 10min
	Phase1Intervals = [...]float64{5, 25, 120, 600}
	// 1d, 3d, 7d, 14d
	Phase2Intervals = [...]float64{86400, 259200, 604800, 1209600}
)

const (
	// MatureInterval is the interval a card gets on entering phase 3 (30 days).
	MatureInterval = 2592000.0

	MinEaseFactor = 1.3

	// Grade thresholds on the adjusted 0-5 scale.
	passGrade    = 3.0 // EF is updated at or above this; phases 2 and 3 demote below it
	successGrade = 4.0 // counts as a correct answer for streaks and the phase 1 ladder

	maxGrade = 5.0
)

// Promotion rules.
const (
	promotionStreak       = 3
	promotionResponseTime = 4.0  // seconds, average over the last reviews
	promotionWindow       = 3    // number of prior reviews averaged
	slowResponseTime      = 10.0 // seconds; a hesitant pass in phase 2 demotes
)

// HistoryWindow is the number of most recent review logs Grade looks at.
// Callers need not load more.
const HistoryWindow = promotionWindow

// Penalty maps a response time in seconds to a grade adjustment (<= 0).
type Penalty func(responseTime float64) float64

// NoPenalty leaves every grade as given. It is the default policy.
func NoPenalty(float64) float64 { return 0 }

// StepPenalty lowers the grade of slow answers: nothing up to 3s, half a
// point up to 6s, one point up to 10s and two points beyond.
func StepPenalty(responseTime float64) float64 {
	switch {
	case responseTime <= 3:
		return 0
	case responseTime <= 6:
		return -0.5
	case responseTime <= 10:
		return -1
	default:
		return -2
	}
}

// AdjustGrade applies the penalty to the base grade and clamps the result
// to [0, 5]. A nil penalty behaves like NoPenalty.
func AdjustGrade(base int, responseTime float64, penalty Penalty) float64 {
	adj := 0.0
	if penalty != nil {
		adj = penalty(responseTime)
	}
	return math.Max(0, math.Min(maxGrade, float64(base)+adj))
}

// NextEaseFactor applies the SM-2 ease update for adjusted grade q:
//
//	EF' = EF + (0.1 - (5 - q) * (0.08 + (5 - q) * 0.02))
//
// floored at MinEaseFactor.
func NextEaseFactor(ef, q float64) float64 {
	d := maxGrade - q
	return math.Max(MinEaseFactor, ef+(0.1-d*(0.08+d*0.02)))
}

// ladderIndex finds interval on the ladder, comparing whole seconds. It
// returns -1 when the interval is not a ladder value.
func ladderIndex(ladder []float64, interval float64) int {
	whole := math.Trunc(interval)
	for i, v := range ladder {
		if v == whole {
			return i
		}
	}
	return -1
}

// nextPhase1Interval steps up the phase 1 ladder on success (staying on the
// last rung) and goes back to the first rung on failure. An interval that is
// not on the ladder counts as the first rung.
func nextPhase1Interval(interval float64, success bool) float64 {
	if !success {
		return Phase1Intervals[0]
	}
	i := ladderIndex(Phase1Intervals[:], interval)
	if i < 0 {
		i = 0
	}
	return Phase1Intervals[min(i+1, len(Phase1Intervals)-1)]
}

// nextPhase2Interval steps up the phase 2 ladder and switches to EF growth
// once the ladder is exhausted. ok is false when the grade sends the card
// back to phase 1.
func nextPhase2Interval(interval, ef, q float64) (next float64, ok bool) {
	if q < passGrade {
		return 0, false
	}
	i := ladderIndex(Phase2Intervals[:], interval)
	switch {
	case i < 0:
		return Phase2Intervals[0], true
	case i < len(Phase2Intervals)-1:
		return Phase2Intervals[i+1], true
	default:
		return interval * ef, true
	}
}
