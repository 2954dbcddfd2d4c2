package main

import (
	"fmt"

	"github.com/jonathan/curriculum-fetcher/internal/config"
	"github.com/jonathan/curriculum-fetcher/internal/observability"
	"github.com/spf13/cobra"
)

func newListCmd(g *globalOptions) *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the directions linked from the index page",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadSettings(func(c *config.Config) {
				if len(only) > 0 {
					c.Only = only
				}
			})
			if err != nil {
				return err
			}

			logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
			crawler, err := newCrawler(cfg, "", logger)
			if err != nil {
				return err
			}

			links, err := crawler.Discover(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to discover directions: %w", err)
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintDirections(links)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "Only list these direction identifiers")
	return cmd
}
