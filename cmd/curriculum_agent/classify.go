package main

import (
	"github.com/jonathan/curriculum-fetcher/internal/crawling"
	"github.com/jonathan/curriculum-fetcher/internal/observability"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "classify <anchor text>...",
		Short:   "Show which document an anchor text selects",
		Example: `  curriculum_agent classify "Individueller Studienplan ab WS 2018/19" "Modulhandbuch"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			observability.NewPrinter(cmd.OutOrStdout()).PrintClassification(args, crawling.DefaultTargets())
			return nil
		},
	}
}
