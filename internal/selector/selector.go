// Package selector picks the card a learner should see next.
package selector

import (
	"slices"
	"time"

	"github.com/conorfennell/repaso/internal/domain"
)

// SelectNext returns the most overdue reviewable card: state other than new
// and next review time at or before now. Ties keep the input order. The
// second result is false when nothing is due.
//
// Cards in state new are never returned; they must be graded or introduced
// by the caller first.
func SelectNext(cards []domain.Card, now time.Time) (domain.Card, bool) {
	best := -1
	for i, c := range cards {
		if !reviewable(c, now) {
			continue
		}
		if best < 0 || c.NextReviewAt.Before(cards[best].NextReviewAt) {
			best = i
		}
	}
	if best < 0 {
		return domain.Card{}, false
	}
	return cards[best], true
}

// Due returns every reviewable card, most overdue first.
func Due(cards []domain.Card, now time.Time) []domain.Card {
	var due []domain.Card
	for _, c := range cards {
		if reviewable(c, now) {
			due = append(due, c)
		}
	}
	slices.SortStableFunc(due, func(a, b domain.Card) int {
		return a.NextReviewAt.Compare(b.NextReviewAt)
	})
	return due
}

func reviewable(c domain.Card, now time.Time) bool {
	return c.State != domain.StateNew && c.IsDue(now)
}
