package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/conorfennell/repaso/internal/domain"
	"github.com/conorfennell/repaso/internal/review"
)

func addCommand(a *app) *cobra.Command {
	var cardContext string
	cmd := &cobra.Command{
		Use:   "add QUESTION ANSWER",
		Short: "Add a card by hand",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.reviews.AddCard(ctxOf(cmd), review.NewCardRequest{
				User:     a.user(),
				Question: args[0],
				Answer:   args[1],
				Context:  cardContext,
			})
			if err != nil {
				return err
			}
			a.printf("added card %d\n", c.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cardContext, "context", "c", "", "Optional context shown with the answer")
	return cmd
}

func parseID(what, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s id %q", review.ErrInvalidInput, what, s)
	}
	return id, nil
}

func gradeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grade CARD GRADE SECONDS",
		Short: "Record a graded answer (grade 0-5, response time in seconds)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			grade, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("%w: grade %q", review.ErrInvalidInput, args[1])
			}
			seconds, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("%w: response time %q", review.ErrInvalidInput, args[2])
			}

			c, entry, err := a.reviews.Grade(ctxOf(cmd), review.GradeRequest{
				User:         a.user(),
				CardID:       id,
				Grade:        grade,
				ResponseTime: seconds,
			})
			if err != nil {
				return err
			}
			a.printCard(c)
			if entry.PhaseBefore != entry.PhaseAfter {
				a.printf("phase %s -> %s\n", entry.PhaseBefore, entry.PhaseAfter)
			}
			return nil
		},
	}
}

func nextCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Show the most overdue card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, ok, err := a.reviews.Next(ctxOf(cmd), a.user())
			if err != nil {
				return err
			}
			if !ok {
				a.printf("nothing due\n")
				return nil
			}
			a.printf("%d\t%s\n", c.ID, c.Question)
			return nil
		},
	}
}

func resetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset CARD",
		Short: "Put a card back to its initial schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("card", args[0])
			if err != nil {
				return err
			}
			c, err := a.reviews.Reset(ctxOf(cmd), a.user(), id)
			if err != nil {
				return err
			}
			a.printCard(c)
			return nil
		},
	}
}

func (a *app) printCard(c domain.Card) {
	a.printf("card %d: phase %s, %s, interval %s, ease %.2f, next review %s\n",
		c.ID, c.Phase, c.State, formatSeconds(c.Interval), c.EaseFactor,
		c.NextReviewAt.Local().Format("2006-01-02 15:04:05"))
}

func formatSeconds(s float64) string {
	switch {
	case s < 60:
		return fmt.Sprintf("%.0fs", s)
	case s < 3600:
		return fmt.Sprintf("%.0fm", s/60)
	case s < 86400:
		return fmt.Sprintf("%.1fh", s/3600)
	default:
		return fmt.Sprintf("%.1fd", s/86400)
	}
}
