package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonathan/curriculum-fetcher/internal/config"
	"github.com/jonathan/curriculum-fetcher/internal/observability"
	"github.com/spf13/cobra"
)

type runOptions struct {
	out         string
	only        []string
	dryRun      bool
	validatePDF bool
	useBrowser  bool
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download the curriculum PDFs of every direction",
		Long: "Fetches the index page, visits every direction page in order and stores the three " +
			"curriculum documents below the output root. Files already present are never fetched again.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, g, o)
		},
	}

	cmd.Flags().StringVarP(&o.out, "out", "o", "", "Output root (default \""+config.DefaultOutputRoot+"\")")
	cmd.Flags().StringSliceVar(&o.only, "only", nil, "Only process these direction identifiers (comma separated)")
	cmd.Flags().BoolVar(&o.dryRun, "dry-run", false, "Resolve documents without writing anything")
	cmd.Flags().BoolVar(&o.validatePDF, "validate-pdf", false, "Reject downloads that fail structural PDF validation")
	cmd.Flags().BoolVar(&o.useBrowser, "use-browser", false, "Render pages without links in headless Chrome")

	return cmd
}

func runCrawl(cmd *cobra.Command, g *globalOptions, o *runOptions) error {
	flags := cmd.Flags()
	cfg, err := g.loadSettings(func(c *config.Config) {
		if o.out != "" {
			c.OutputRoot = o.out
		}
		if len(o.only) > 0 {
			c.Only = o.only
		}
		if flags.Changed("dry-run") {
			c.DryRun = o.dryRun
		}
		if flags.Changed("validate-pdf") {
			c.ValidatePDF = o.validatePDF
		}
		if flags.Changed("use-browser") {
			c.UseBrowser = o.useBrowser
		}
	})
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
	crawler, err := newCrawler(cfg, runID, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Per-direction and per-file failures are part of the summary, not the exit status.
	summary := crawler.Run(ctx)
	observability.NewPrinter(cmd.OutOrStdout()).PrintSummary(summary, crawler.Processor().Targets())
	return nil
}
