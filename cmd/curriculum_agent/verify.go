package main

import (
	"fmt"

	"github.com/jonathan/curriculum-fetcher/internal/config"
	"github.com/jonathan/curriculum-fetcher/internal/crawling"
	"github.com/jonathan/curriculum-fetcher/internal/observability"
	"github.com/jonathan/curriculum-fetcher/internal/verify"
	"github.com/spf13/cobra"
)

func newVerifyCmd(g *globalOptions) *cobra.Command {
	var (
		out    string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Audit the downloaded PDFs below the output root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadSettings(func(c *config.Config) {
				if out != "" {
					c.OutputRoot = out
				}
			})
			if err != nil {
				return err
			}

			targets := crawling.DefaultTargets().All()
			filenames := make([]string, 0, len(targets))
			for _, t := range targets {
				filenames = append(filenames, t.Filename)
			}

			entries, err := verify.Tree(cfg.OutputRoot, cfg.DirPrefix, filenames)
			if err != nil {
				return err
			}
			observability.NewPrinter(cmd.OutOrStdout()).PrintAudit(entries)

			if strict {
				for _, e := range entries {
					if e.Status != verify.StatusValid {
						return fmt.Errorf("%s/%s is %s", e.Dir, e.Filename, e.Status)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output root to audit")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any expected file is missing or invalid")
	return cmd
}
