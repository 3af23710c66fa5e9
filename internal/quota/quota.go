// Package quota enforces the per-user limit on new cards introduced per day.
package quota

import (
	"errors"
	"time"

	"github.com/conorfennell/repaso/internal/domain"
)

// ErrExhausted is returned when the user already introduced the maximum
// number of new cards today.
var ErrExhausted = errors.New("quota: daily new-card limit reached")

// Today returns midnight of now's calendar day in loc. A nil loc means the
// location of now.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc != nil {
		now = now.In(loc)
	}
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

// EnsureDailyReset zeroes the counter when the last reset happened before
// today. It reports whether anything changed; calling it again on the same
// day is a no-op. Callers run it before reading or writing NewCardsToday.
func EnsureDailyReset(s *domain.UserSchedulingState, today time.Time) bool {
	if !s.LastResetDate.Before(today) {
		return false
	}
	s.NewCardsToday = 0
	s.LastResetDate = today
	return true
}

// Reserve takes one slot of today's quota.
func Reserve(s *domain.UserSchedulingState) error {
	if s.NewCardsToday >= s.MaxNewCardsPerDay {
		return ErrExhausted
	}
	s.NewCardsToday++
	return nil
}

// Remaining returns how many new cards may still be introduced today.
func Remaining(s domain.UserSchedulingState) int {
	return max(0, s.MaxNewCardsPerDay-s.NewCardsToday)
}
