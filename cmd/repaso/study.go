package main

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conorfennell/repaso/internal/domain"
	"github.com/conorfennell/repaso/internal/review"
)

func studyCommand(a *app) *cobra.Command {
	var withNew bool
	cmd := &cobra.Command{
		Use:   "study",
		Short: "Review due cards interactively",
		Long: `Shows due cards one at a time, most overdue first. Press Enter to reveal
the answer, then grade your recall from 0 (blackout) to 5 (perfect).
The time until Enter is recorded as the response time. Enter q to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := ctxOf(cmd)
			in := bufio.NewScanner(a.in)
			var reviewed int
			for ctx.Err() == nil {
				c, ok, err := a.reviews.Next(ctx, a.user())
				if err != nil {
					return err
				}
				if !ok && withNew {
					c, ok, err = a.reviews.NextNew(ctx, a.user())
					if err != nil {
						return err
					}
				}
				if !ok {
					break
				}

				grade, seconds, quit := a.ask(in, c)
				if quit {
					break
				}
				updated, _, err := a.reviews.Grade(ctx, review.GradeRequest{
					User:         a.user(),
					CardID:       c.ID,
					Grade:        grade,
					ResponseTime: seconds,
				})
				if err != nil {
					return err
				}
				reviewed++
				a.printf("next review in %s\n\n", formatSeconds(updated.Interval))
			}
			a.printf("reviewed %d cards\n", reviewed)
			return ctx.Err()
		},
	}
	cmd.Flags().BoolVar(&withNew, "new", false, "Introduce new cards when nothing is due")
	return cmd
}

// ask shows the card and reads a grade. It reports quit on "q" or end of input.
func (a *app) ask(in *bufio.Scanner, c domain.Card) (grade int, seconds float64, quit bool) {
	a.printf("Q: %s\n", c.Question)
	shown := a.now()
	if !in.Scan() || strings.TrimSpace(in.Text()) == "q" {
		return 0, 0, true
	}
	seconds = a.now().Sub(shown).Seconds()

	a.printf("A: %s\n", c.Answer)
	if c.Context != "" {
		a.printf("C: %s\n", c.Context)
	}
	for {
		a.printf("grade 0-5: ")
		if !in.Scan() {
			return 0, 0, true
		}
		text := strings.TrimSpace(in.Text())
		if text == "q" {
			return 0, 0, true
		}
		g, err := strconv.Atoi(text)
		if err == nil && g >= 0 && g <= 5 {
			return g, seconds, false
		}
		a.printf("not a grade: %q\n", text)
	}
}
