package main

import (
	"github.com/spf13/cobra"
)

func sourceCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage markdown deck sources",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add PATH|URL",
		Short: "Register a local deck directory or a git repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.importer.AddSource(ctxOf(cmd), a.user(), args[0])
			if err != nil {
				return err
			}
			a.printf("added %s source %d: %s\n", src.Type, src.ID, src.Path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := a.importer.Sources(ctxOf(cmd), a.user())
			if err != nil {
				return err
			}
			for _, s := range sources {
				scanned := "never"
				if s.LastScanned.Valid {
					scanned = s.LastScanned.Time.Local().Format("2006-01-02 15:04")
				}
				a.printf("%d\t%s\t%s\t%s\n", s.ID, s.Type, s.Path, scanned)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove ID",
		Short: "Unregister a source and delete its cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("source", args[0])
			if err != nil {
				return err
			}
			if err := a.importer.RemoveSource(ctxOf(cmd), a.user(), id); err != nil {
				return err
			}
			a.printf("removed source %d\n", id)
			return nil
		},
	})
	return cmd
}

func syncCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import new cards from all sources and drop removed ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.importer.Sync(ctxOf(cmd), a.user())
			if err != nil {
				return err
			}
			for _, r := range report.Sources {
				if r.Err != nil {
					a.printf("%s: failed: %v\n", r.Source.Path, r.Err)
					continue
				}
				a.printf("%s: %d added, %d deferred, %d removed\n", r.Source.Path, r.Added, r.Deferred, r.Removed)
				for _, p := range r.Problems {
					a.printf("  %v\n", p)
				}
			}
			if len(report.Sources) == 0 {
				a.printf("no sources; add one with: repaso source add PATH\n")
			}
			return nil
		},
	}
	cmd.Flags().Int("concurrency", 4, "Git repositories fetched in parallel")
	return cmd
}
