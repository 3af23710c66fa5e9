package main

import (
	"github.com/spf13/cobra"

	"github.com/conorfennell/repaso/internal/config"
)

// newRootCommand builds the command tree. Every command except help and
// completion runs with configuration loaded and the database open.
func newRootCommand(a *app) *cobra.Command {
	d := config.Default()

	rootCmd := &cobra.Command{
		Use:           "repaso",
		Short:         "Spaced-repetition study cards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
				return nil
			}
			return a.setup(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to the YAML config file (default "+config.DefaultFile+" if present)")
	flags.String("db", d.DB, "Path to the SQLite database file")
	flags.StringP("user", "u", d.User, "User whose cards are studied")
	flags.String("repos-dir", d.ReposDir, "Directory for git deck checkouts")
	flags.String("log-level", d.Log.Level, "Log level: debug, info, warn or error")
	flags.String("log-format", d.Log.Format, "Log format: text or json")
	flags.Int("max-new", d.Quota.MaxNewPerDay, "Daily new-card limit for newly created users")
	flags.String("timezone", d.Quota.Timezone, "Time zone whose midnight resets the daily quota")
	flags.Bool("time-penalty", d.Scheduler.TimePenalty, "Lower grades of slow answers")
	flags.String("metrics-textfile", d.Metrics.Textfile, "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		addCommand(a),
		gradeCommand(a),
		nextCommand(a),
		studyCommand(a),
		resetCommand(a),
		statsCommand(a),
		checkCommand(a),
		sourceCommand(a),
		syncCommand(a),
	)
	return rootCmd
}
