package review

import (
	"context"

	"github.com/conorfennell/repaso/internal/domain"
	"github.com/conorfennell/repaso/internal/quota"
	"github.com/conorfennell/repaso/internal/selector"
)

// Stats summarises a user's collection.
type Stats struct {
	Total        int
	ByPhase      map[domain.Phase]int
	ByState      map[domain.State]int
	Due          int
	NewToday     int
	MaxNewPerDay int
	RemainingNew int
}

// Stats counts the user's cards and reports today's quota usage. An unknown
// user has empty stats.
func (s *Service) Stats(ctx context.Context, user string) (Stats, error) {
	st := Stats{
		ByPhase: make(map[domain.Phase]int),
		ByState: make(map[domain.State]int),
	}
	u, err := s.db.FindUserByName(ctx, user)
	if err != nil || u == nil {
		return st, err
	}
	cards, err := s.db.CardsByUser(ctx, u.UserID)
	if err != nil {
		return st, err
	}

	now := s.now()
	st.Total = len(cards)
	for _, c := range cards {
		st.ByPhase[c.Phase]++
		st.ByState[c.State]++
	}
	st.Due = len(selector.Due(cards, now))

	// reset a copy so a stale counter from yesterday is not reported
	q := *u
	quota.EnsureDailyReset(&q, quota.Today(now, s.loc))
	st.NewToday = q.NewCardsToday
	st.MaxNewPerDay = q.MaxNewCardsPerDay
	st.RemainingNew = quota.Remaining(q)
	return st, nil
}
