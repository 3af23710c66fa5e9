package main

import (
	"github.com/spf13/cobra"

	"github.com/conorfennell/repaso/internal/domain"
)

func statsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show card counts and today's quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.reviews.Stats(ctxOf(cmd), a.user())
			if err != nil {
				return err
			}
			a.printf("cards: %d (due %d)\n", st.Total, st.Due)
			for _, p := range []domain.Phase{domain.PhaseIntensive, domain.PhaseConsolidation, domain.PhaseMaintenance} {
				a.printf("  phase %d %-13s %d\n", int(p), p.String(), st.ByPhase[p])
			}
			for _, s := range domain.States {
				a.printf("  %-22s %d\n", s, st.ByState[s])
			}
			a.printf("new today: %d/%d (%d left)\n", st.NewToday, st.MaxNewPerDay, st.RemainingNew)
			return nil
		},
	}
}

func checkCommand(a *app) *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Look for cards with invalid scheduling data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.reviews.Check(ctxOf(cmd), repair)
			if err != nil {
				return err
			}
			for _, is := range report.Issues {
				status := ""
				if is.Repaired {
					status = " (repaired)"
				}
				a.printf("card %d: %s%s\n", is.CardID, is.Problem, status)
			}
			a.printf("checked %d cards, %d problems\n", report.Checked, len(report.Issues))
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "Fix intervals and ease factors that are out of range")
	return cmd
}
