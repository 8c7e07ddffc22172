package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawyersteven/KindleManager-sub001/internal/library"
)

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Catalog every book below a directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib := a.cfg.Library
			root := lib.Root
			if len(args) == 1 {
				root = args[0]
			}
			if cmd.Flags().Changed("workers") {
				lib.Workers, _ = cmd.Flags().GetInt("workers")
			}

			catalog := library.NewMemoryCatalog()
			s, err := library.NewScanner(catalog, lib.Workers, lib.CacheSize)
			if err != nil {
				return err
			}
			s.Patterns = lib.Patterns

			report, err := s.Scan(ctxOf(cmd), root)
			if err != nil {
				return err
			}

			p := newPrinter(outputFormat(cmd), cmd.OutOrStdout())
			books := catalog.All()
			if p.format == "json" {
				if err := p.json(books); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(books))
				for _, md := range books {
					rows = append(rows, []string{md.Title, md.Author, string(md.Format), md.Path})
				}
				p.table([]string{"TITLE", "AUTHOR", "FORMAT", "PATH"}, rows)
			}
			for _, f := range report.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed: %v\n", f)
			}
			if n := len(report.Failures); n > 0 {
				return fmt.Errorf("%d of %d books failed", n, report.Found)
			}
			return nil
		},
	}
	cmd.Flags().Int("workers", 0, "books opened at once (default from config)")
	return cmd
}
