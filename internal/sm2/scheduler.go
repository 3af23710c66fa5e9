package sm2

import (
	"fmt"
	"math"
	"time"

	"github.com/conorfennell/repaso/internal/domain"
)

// Response is a graded answer. Grade must already be validated to 0-5 and
// ResponseTime to be non-negative.
type Response struct {
	Grade        int
	ResponseTime float64 // seconds
}

// Scheduler computes the next state of a card after a graded response.
type Scheduler struct {
	penalty Penalty
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithPenalty sets the time-based grade penalty.
func WithPenalty(p Penalty) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.penalty = p
		}
	}
}

// New returns a scheduler. Without options no time penalty is applied.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{penalty: NoPenalty}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grade applies one graded response to card and returns the updated card and
// the log entry to append. history holds the card's earlier review logs,
// newest first; only the most recent few are looked at.
//
// A card whose phase is not 1, 2 or 3 is rejected with domain.ErrInvalidPhase.
func (s *Scheduler) Grade(card domain.Card, history []domain.ReviewLog, r Response, now time.Time) (domain.Card, domain.ReviewLog, error) {
	if !card.Phase.Valid() {
		return card, domain.ReviewLog{}, fmt.Errorf("card %d: %w: %d", card.ID, domain.ErrInvalidPhase, int(card.Phase))
	}

	q := AdjustGrade(r.Grade, r.ResponseTime, s.penalty)

	if q >= passGrade {
		card.EaseFactor = NextEaseFactor(card.EaseFactor, q)
	}

	if q >= successGrade {
		card.CorrectStreak++
		card.IncorrectStreak = 0
	} else {
		card.IncorrectStreak++
		card.CorrectStreak = 0
	}

	card.LastResponseTime = r.ResponseTime
	card.LastAdjustedGrade = q
	reviewed := now
	card.LastReviewedAt = &reviewed

	before := card.Phase

	// A phase change consumes the cycle: the entry interval of the new phase
	// is used as is.
	if transition(&card, q, r.ResponseTime, history) {
		card.NextReviewAt = now.Add(seconds(card.Interval))
		return card, newLog(card, r, q, before, now), nil
	}

	switch card.Phase {
	case domain.PhaseIntensive:
		card.Interval = nextPhase1Interval(card.Interval, q >= successGrade)
	case domain.PhaseConsolidation:
		next, ok := nextPhase2Interval(card.Interval, card.EaseFactor, q)
		if !ok {
			enterPhase(&card, domain.PhaseIntensive, domain.StateLearning, Phase1Intervals[0])
			next = card.Interval
		}
		card.Interval = next
	case domain.PhaseMaintenance:
		card.Interval *= card.EaseFactor
	}

	card.NextReviewAt = now.Add(seconds(card.Interval))
	if card.State == domain.StateNew {
		card.State = domain.StateLearning
	}
	return card, newLog(card, r, q, before, now), nil
}

// transition evaluates the phase transition table and applies the first rule
// that fires. It reports whether the phase changed.
func transition(card *domain.Card, q, responseTime float64, history []domain.ReviewLog) bool {
	switch card.Phase {
	case domain.PhaseIntensive:
		if card.CorrectStreak >= promotionStreak &&
			card.Interval >= Phase1Intervals[len(Phase1Intervals)-1] &&
			fastRecall(history) {
			enterPhase(card, domain.PhaseConsolidation, domain.StateConsolidating, Phase2Intervals[0])
			return true
		}
	case domain.PhaseConsolidation:
		if q < passGrade || (q < successGrade && responseTime > slowResponseTime) {
			enterPhase(card, domain.PhaseIntensive, domain.StateLearning, Phase1Intervals[0])
			return true
		}
		if card.CorrectStreak >= promotionStreak && card.Interval >= Phase2Intervals[len(Phase2Intervals)-1] {
			enterPhase(card, domain.PhaseMaintenance, domain.StateMature, MatureInterval)
			return true
		}
	case domain.PhaseMaintenance:
		if q < passGrade {
			enterPhase(card, domain.PhaseConsolidation, domain.StateConsolidating, Phase2Intervals[0])
			return true
		}
	}
	return false
}

// enterPhase moves the card to phase p (in either direction), starting it at
// interval and clearing the correct streak.
func enterPhase(card *domain.Card, p domain.Phase, st domain.State, interval float64) {
	card.Phase = p
	card.State = st
	card.Interval = interval
	card.CorrectStreak = 0
}

// fastRecall reports whether at least promotionWindow earlier reviews exist
// and the newest of them average under promotionResponseTime seconds.
func fastRecall(history []domain.ReviewLog) bool {
	if len(history) < promotionWindow {
		return false
	}
	var sum float64
	for _, l := range history[:promotionWindow] {
		sum += l.ResponseTime
	}
	return sum/promotionWindow < promotionResponseTime
}

func newLog(card domain.Card, r Response, q float64, before domain.Phase, now time.Time) domain.ReviewLog {
	return domain.ReviewLog{
		CardID:        card.ID,
		ReviewedAt:    now,
		BaseGrade:     r.Grade,
		ResponseTime:  r.ResponseTime,
		AdjustedGrade: q,
		PhaseBefore:   before,
		PhaseAfter:    card.Phase,
	}
}

// seconds converts an interval to a duration, saturating at the largest
// representable duration instead of wrapping negative.
func seconds(s float64) time.Duration {
	d := s * float64(time.Second)
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
