package sm2

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/conorfennell/repaso/internal/domain"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func freshCard() domain.Card {
	c := domain.NewCard(1, "What is the capital of France?", "Paris", "", t0.Add(-time.Hour))
	c.ID = 42
	return c
}

func cardIn(phase domain.Phase, state domain.State, interval float64, streak int) domain.Card {
	c := freshCard()
	c.Phase = phase
	c.State = state
	c.Interval = interval
	c.CorrectStreak = streak
	return c
}

func logs(responseTimes ...float64) []domain.ReviewLog {
	out := make([]domain.ReviewLog, len(responseTimes))
	for i, rt := range responseTimes {
		out[i] = domain.ReviewLog{CardID: 42, ResponseTime: rt, BaseGrade: 5, AdjustedGrade: 5}
	}
	return out
}

func mustGrade(t *testing.T, s *Scheduler, c domain.Card, history []domain.ReviewLog, grade int, rt float64) (domain.Card, domain.ReviewLog) {
	t.Helper()
	out, log, err := s.Grade(c, history, Response{Grade: grade, ResponseTime: rt}, t0)
	if err != nil {
		t.Fatalf("Grade returned an unexpected error: %v", err)
	}
	return out, log
}

func assertFloat(t *testing.T, name string, got, expected float64) {
	t.Helper()
	if math.Abs(got-expected) > 1e-6 {
		t.Errorf("%s: expected %.4f, but got %.4f", name, expected, got)
	}
}

func assertDueIn(t *testing.T, c domain.Card, interval float64) {
	t.Helper()
	expected := t0.Add(time.Duration(interval * float64(time.Second)))
	if !c.NextReviewAt.Equal(expected) {
		t.Errorf("Expected next review at %v, but got %v", expected, c.NextReviewAt)
	}
}

func TestGradeFreshCardCorrect(t *testing.T) {
	c, log := mustGrade(t, New(), freshCard(), nil, 5, 2)

	if c.CorrectStreak != 1 || c.IncorrectStreak != 0 {
		t.Errorf("Expected streaks 1/0, but got %d/%d", c.CorrectStreak, c.IncorrectStreak)
	}
	if c.State != domain.StateLearning {
		t.Errorf("Expected state learning, but got %v", c.State)
	}
	if c.Phase != domain.PhaseIntensive {
		t.Errorf("Expected phase 1, but got %v", c.Phase)
	}
	assertFloat(t, "interval", c.Interval, 25)
	assertFloat(t, "ease factor", c.EaseFactor, 2.6)
	assertDueIn(t, c, 25)

	if c.LastReviewedAt == nil || !c.LastReviewedAt.Equal(t0) {
		t.Errorf("Expected last review at %v, but got %v", t0, c.LastReviewedAt)
	}
	if c.LastResponseTime != 2 || c.LastAdjustedGrade != 5 {
		t.Errorf("Expected telemetry 2s/5, but got %.1fs/%.1f", c.LastResponseTime, c.LastAdjustedGrade)
	}

	if log.CardID != 42 || log.BaseGrade != 5 || log.AdjustedGrade != 5 || log.ResponseTime != 2 {
		t.Errorf("Unexpected log entry: %+v", log)
	}
	if log.PhaseBefore != domain.PhaseIntensive || log.PhaseAfter != domain.PhaseIntensive {
		t.Errorf("Expected log phases 1->1, but got %v->%v", log.PhaseBefore, log.PhaseAfter)
	}
	if !log.ReviewedAt.Equal(t0) {
		t.Errorf("Expected log time %v, but got %v", t0, log.ReviewedAt)
	}
}

func TestGradeDoesNotTouchInput(t *testing.T) {
	in := freshCard()
	_, _ = mustGrade(t, New(), in, nil, 5, 2)
	if in.State != domain.StateNew || in.CorrectStreak != 0 || in.LastReviewedAt != nil {
		t.Errorf("Expected the input card to be unchanged, got %+v", in)
	}
}

func TestGradePhase1Failure(t *testing.T) {
	testCases := []struct {
		name       string
		grade      int
		rt         float64
		expectedEF float64
	}{
		{"forgotten", 1, 15, 2.5},
		{"blackout", 0, 3, 2.5},
		{"passed with effort", 3, 4, 2.36},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := cardIn(domain.PhaseIntensive, domain.StateLearning, 120, 2)
			c, _ := mustGrade(t, New(), in, nil, tc.grade, tc.rt)

			assertFloat(t, "interval", c.Interval, Phase1Intervals[0])
			assertFloat(t, "ease factor", c.EaseFactor, tc.expectedEF)
			if c.IncorrectStreak != 1 || c.CorrectStreak != 0 {
				t.Errorf("Expected streaks 0/1, but got %d/%d", c.CorrectStreak, c.IncorrectStreak)
			}
			assertDueIn(t, c, 5)
		})
	}
}

func TestGradeFreshCardFailure(t *testing.T) {
	c, _ := mustGrade(t, New(), freshCard(), nil, 1, 15)

	if c.IncorrectStreak != 1 || c.CorrectStreak != 0 {
		t.Errorf("Expected streaks 0/1, but got %d/%d", c.CorrectStreak, c.IncorrectStreak)
	}
	assertFloat(t, "interval", c.Interval, 5)
	if c.State != domain.StateLearning {
		t.Errorf("Expected state learning, but got %v", c.State)
	}
}

func TestGradePhase1LadderTop(t *testing.T) {
	// Streak too short to promote: stays on the last rung.
	in := cardIn(domain.PhaseIntensive, domain.StateLearning, 600, 0)
	c, log := mustGrade(t, New(), in, logs(1, 1, 1), 5, 1)

	assertFloat(t, "interval", c.Interval, 600)
	if c.Phase != domain.PhaseIntensive || log.PhaseAfter != domain.PhaseIntensive {
		t.Errorf("Expected to stay in phase 1, but got %v", c.Phase)
	}
}

func TestPromotionToPhase2(t *testing.T) {
	in := cardIn(domain.PhaseIntensive, domain.StateLearning, 600, 2)
	c, log := mustGrade(t, New(), in, logs(2, 3, 1, 30), 5, 2)

	if c.Phase != domain.PhaseConsolidation || c.State != domain.StateConsolidating {
		t.Fatalf("Expected phase 2/consolidating, but got %v/%v", c.Phase, c.State)
	}
	assertFloat(t, "interval", c.Interval, Phase2Intervals[0])
	if c.CorrectStreak != 0 {
		t.Errorf("Expected correct streak to reset on promotion, but got %d", c.CorrectStreak)
	}
	assertDueIn(t, c, 86400)
	if log.PhaseBefore != domain.PhaseIntensive || log.PhaseAfter != domain.PhaseConsolidation {
		t.Errorf("Expected log phases 1->2, but got %v->%v", log.PhaseBefore, log.PhaseAfter)
	}
}

func TestPromotionToPhase2RequiresAllConditions(t *testing.T) {
	testCases := []struct {
		name     string
		interval float64
		streak   int
		history  []domain.ReviewLog
	}{
		{"streak too short", 600, 1, logs(1, 1, 1)},
		{"interval too short", 120, 2, logs(1, 1, 1)},
		{"too few reviews", 600, 2, logs(1, 1)},
		{"no reviews", 600, 2, nil},
		{"too slow on average", 600, 2, logs(4, 4, 4)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := cardIn(domain.PhaseIntensive, domain.StateLearning, tc.interval, tc.streak)
			c, log := mustGrade(t, New(), in, tc.history, 5, 1)
			if c.Phase != domain.PhaseIntensive || log.PhaseAfter != domain.PhaseIntensive {
				t.Errorf("Expected no promotion, but the card moved to %v", c.Phase)
			}
		})
	}
}

func TestPhase2Demotion(t *testing.T) {
	testCases := []struct {
		name  string
		grade int
		rt    float64
	}{
		{"failing grade", 2, 3},
		{"blackout", 0, 1},
		{"hesitant pass", 3, 11},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := cardIn(domain.PhaseConsolidation, domain.StateConsolidating, 604800, 2)
			c, log := mustGrade(t, New(), in, logs(1, 1, 1), tc.grade, tc.rt)

			if c.Phase != domain.PhaseIntensive || c.State != domain.StateLearning {
				t.Fatalf("Expected phase 1/learning, but got %v/%v", c.Phase, c.State)
			}
			assertFloat(t, "interval", c.Interval, Phase1Intervals[0])
			assertDueIn(t, c, 5)
			if c.CorrectStreak != 0 || c.IncorrectStreak != 1 {
				t.Errorf("Expected streaks 0/1, but got %d/%d", c.CorrectStreak, c.IncorrectStreak)
			}
			if log.PhaseBefore != domain.PhaseConsolidation || log.PhaseAfter != domain.PhaseIntensive {
				t.Errorf("Expected log phases 2->1, but got %v->%v", log.PhaseBefore, log.PhaseAfter)
			}
		})
	}
}

func TestPhase2QuickPassAdvances(t *testing.T) {
	in := cardIn(domain.PhaseConsolidation, domain.StateConsolidating, 86400, 1)
	c, _ := mustGrade(t, New(), in, nil, 3, 5)

	if c.Phase != domain.PhaseConsolidation {
		t.Fatalf("Expected to stay in phase 2, but got %v", c.Phase)
	}
	assertFloat(t, "interval", c.Interval, 259200)
	if c.CorrectStreak != 0 || c.IncorrectStreak != 1 {
		t.Errorf("Expected a grade of 3 to count as incorrect, got streaks %d/%d", c.CorrectStreak, c.IncorrectStreak)
	}
}

func TestPhase2Ladder(t *testing.T) {
	testCases := []struct {
		name     string
		interval float64
		expected float64
	}{
		{"one day to three", 86400, 259200},
		{"three days to seven", 259200, 604800},
		{"seven days to fourteen", 604800, 1209600},
		{"ladder exhausted uses EF", 1209600, 1209600 * 2.6},
		{"off the ladder restarts", 1209600 * 2.6, 86400},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in := cardIn(domain.PhaseConsolidation, domain.StateConsolidating, tc.interval, 0)
			c, _ := mustGrade(t, New(), in, nil, 5, 2)
			assertFloat(t, "interval", c.Interval, tc.expected)
			assertDueIn(t, c, c.Interval)
		})
	}
}

func TestPromotionToPhase3(t *testing.T) {
	in := cardIn(domain.PhaseConsolidation, domain.StateConsolidating, 1209600, 2)
	c, log := mustGrade(t, New(), in, nil, 4, 6)

	if c.Phase != domain.PhaseMaintenance || c.State != domain.StateMature {
		t.Fatalf("Expected phase 3/mature, but got %v/%v", c.Phase, c.State)
	}
	assertFloat(t, "interval", c.Interval, MatureInterval)
	assertDueIn(t, c, MatureInterval)
	if c.CorrectStreak != 0 {
		t.Errorf("Expected correct streak to reset on promotion, but got %d", c.CorrectStreak)
	}
	if log.PhaseAfter != domain.PhaseMaintenance {
		t.Errorf("Expected log phase after 3, but got %v", log.PhaseAfter)
	}
}

func TestPhase3Growth(t *testing.T) {
	in := cardIn(domain.PhaseMaintenance, domain.StateMature, MatureInterval, 0)
	in.EaseFactor = 2.0
	c, _ := mustGrade(t, New(), in, nil, 5, 2)

	assertFloat(t, "ease factor", c.EaseFactor, 2.1)
	assertFloat(t, "interval", c.Interval, MatureInterval*2.1)
	if c.Phase != domain.PhaseMaintenance {
		t.Errorf("Expected to stay in phase 3, but got %v", c.Phase)
	}

	// A pass below 4 still grows the interval in phase 3.
	c2, _ := mustGrade(t, New(), c, nil, 3, 20)
	assertFloat(t, "interval", c2.Interval, c.Interval*c2.EaseFactor)
}

func TestPhase3HugeIntervalStaysInFuture(t *testing.T) {
	in := cardIn(domain.PhaseMaintenance, domain.StateMature, 3.36e12, 0)
	in.EaseFactor = 2.6
	c, _ := mustGrade(t, New(), in, nil, 5, 2)

	if !c.NextReviewAt.After(t0) {
		t.Errorf("Expected next review after %v, but got %v", t0, c.NextReviewAt)
	}
	if c.IsDue(t0) {
		t.Error("Expected a card with a huge interval not to be due")
	}
}

func TestPhase3Demotion(t *testing.T) {
	in := cardIn(domain.PhaseMaintenance, domain.StateMature, MatureInterval*2, 1)
	c, log := mustGrade(t, New(), in, nil, 2, 3)

	if c.Phase != domain.PhaseConsolidation || c.State != domain.StateConsolidating {
		t.Fatalf("Expected phase 2/consolidating, but got %v/%v", c.Phase, c.State)
	}
	assertFloat(t, "interval", c.Interval, Phase2Intervals[0])
	assertFloat(t, "ease factor", c.EaseFactor, 2.5)
	if log.PhaseBefore != domain.PhaseMaintenance || log.PhaseAfter != domain.PhaseConsolidation {
		t.Errorf("Expected log phases 3->2, but got %v->%v", log.PhaseBefore, log.PhaseAfter)
	}
}

func TestGradeWithStepPenalty(t *testing.T) {
	s := New(WithPenalty(StepPenalty))

	c, log := mustGrade(t, s, freshCard(), nil, 5, 8)
	if log.AdjustedGrade != 4 {
		t.Errorf("Expected adjusted grade 4, but got %.1f", log.AdjustedGrade)
	}
	if c.CorrectStreak != 1 {
		t.Errorf("Expected an adjusted 4 to count as correct, got streak %d", c.CorrectStreak)
	}

	c, log = mustGrade(t, s, freshCard(), nil, 4, 5)
	if log.AdjustedGrade != 3.5 || log.BaseGrade != 4 {
		t.Errorf("Expected grades 4/3.5, but got %d/%.1f", log.BaseGrade, log.AdjustedGrade)
	}
	if c.IncorrectStreak != 1 {
		t.Errorf("Expected an adjusted 3.5 to count as incorrect, got streak %d", c.IncorrectStreak)
	}
}

func TestGradeRejectsUnknownPhase(t *testing.T) {
	for _, p := range []domain.Phase{0, 4} {
		in := freshCard()
		in.Phase = p
		out, _, err := New().Grade(in, nil, Response{Grade: 5, ResponseTime: 1}, t0)
		if !errors.Is(err, domain.ErrInvalidPhase) {
			t.Errorf("phase %d: expected ErrInvalidPhase, but got %v", int(p), err)
		}
		if out.LastReviewedAt != nil || out.CorrectStreak != 0 {
			t.Errorf("phase %d: expected the card to be left untouched", int(p))
		}
	}
}

func TestStreakCountersAreExclusive(t *testing.T) {
	s := New()
	c := freshCard()
	var history []domain.ReviewLog
	for i, g := range []int{5, 4, 1, 2, 5, 5, 3, 0, 4} {
		var log domain.ReviewLog
		c, log = mustGrade(t, s, c, history, g, 2)
		history = append([]domain.ReviewLog{log}, history...)
		if c.CorrectStreak != 0 && c.IncorrectStreak != 0 {
			t.Fatalf("step %d: both streaks nonzero (%d/%d)", i, c.CorrectStreak, c.IncorrectStreak)
		}
		if c.EaseFactor < MinEaseFactor || c.Interval <= 0 {
			t.Fatalf("step %d: invariant broken, EF %.2f interval %.1f", i, c.EaseFactor, c.Interval)
		}
	}
}

func TestFullProgression(t *testing.T) {
	s := New()
	c := freshCard()
	var history []domain.ReviewLog
	review := func(g int, rt float64) domain.ReviewLog {
		var log domain.ReviewLog
		c, log = mustGrade(t, s, c, history, g, rt)
		history = append([]domain.ReviewLog{log}, history...)
		return log
	}

	// 5 -> 25 -> 120 -> 600 on the phase 1 ladder.
	for _, expected := range []float64{25, 120, 600} {
		review(5, 1)
		assertFloat(t, "phase 1 interval", c.Interval, expected)
	}
	// Streak is 3 and the card sits at 600s with fast answers: promoted.
	if log := review(5, 1); log.PhaseAfter != domain.PhaseConsolidation {
		t.Fatalf("Expected promotion to phase 2, got phase %v", log.PhaseAfter)
	}
	for _, expected := range []float64{259200, 604800, 1209600} {
		review(5, 1)
		assertFloat(t, "phase 2 interval", c.Interval, expected)
	}
	if log := review(5, 1); log.PhaseAfter != domain.PhaseMaintenance {
		t.Fatalf("Expected promotion to phase 3, got phase %v", log.PhaseAfter)
	}
	assertFloat(t, "mature interval", c.Interval, MatureInterval)
}
