package review

import (
	"context"
	"fmt"

	"github.com/conorfennell/repaso/internal/domain"
	"github.com/conorfennell/repaso/internal/sm2"
	"github.com/conorfennell/repaso/internal/storage"
)

// Issue is one integrity problem found on a stored card.
type Issue struct {
	CardID   int64
	Problem  string
	Repaired bool
}

// CheckReport is the result of Check.
type CheckReport struct {
	Checked int
	Issues  []Issue
}

// Check scans every card for values the scheduler cannot work with. With
// repair set, a non-positive interval is restored to the initial interval and
// an ease factor below the floor is raised to it. Unknown phases and states
// are only reported.
func (s *Service) Check(ctx context.Context, repair bool) (CheckReport, error) {
	var report CheckReport
	scan := func(st *storage.Store) error {
		cards, err := st.AllCards(ctx)
		if err != nil {
			return err
		}
		report.Checked = len(cards)
		for _, c := range cards {
			issues, fixed := inspect(&c, repair)
			report.Issues = append(report.Issues, issues...)
			if fixed {
				if err := st.UpdateCard(ctx, c); err != nil {
					return err
				}
			}
		}
		return nil
	}

	var err error
	if repair {
		err = s.db.Tx(ctx, scan)
	} else {
		err = scan(&s.db.Store)
	}
	if err != nil {
		return CheckReport{}, err
	}

	for _, is := range report.Issues {
		s.logger.Warn("card integrity problem", "card_id", is.CardID, "problem", is.Problem, "repaired", is.Repaired)
	}
	return report, nil
}

func inspect(c *domain.Card, repair bool) (issues []Issue, fixed bool) {
	if !(c.Interval > 0) {
		issues = append(issues, Issue{CardID: c.ID, Problem: fmt.Sprintf("interval %v is not positive", c.Interval), Repaired: repair})
		if repair {
			c.Interval = domain.InitialInterval
			fixed = true
		}
	}
	if !(c.EaseFactor >= sm2.MinEaseFactor) {
		issues = append(issues, Issue{CardID: c.ID, Problem: fmt.Sprintf("ease factor %v is below %v", c.EaseFactor, sm2.MinEaseFactor), Repaired: repair})
		if repair {
			c.EaseFactor = sm2.MinEaseFactor
			fixed = true
		}
	}
	if !c.Phase.Valid() {
		issues = append(issues, Issue{CardID: c.ID, Problem: fmt.Sprintf("unknown phase %d", int(c.Phase))})
	}
	if !c.State.Valid() {
		issues = append(issues, Issue{CardID: c.ID, Problem: fmt.Sprintf("unknown state %q", string(c.State))})
	}
	return issues, fixed
}
