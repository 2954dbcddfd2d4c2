package main

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/jonathan/curriculum-fetcher/internal/config"
	"github.com/jonathan/curriculum-fetcher/internal/crawling"
	"github.com/jonathan/curriculum-fetcher/internal/fetch"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags shared by all commands.
type globalOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "curriculum_agent",
		Short: "KIT ETIT curriculum PDF fetcher",
		Long: "Discovers every specialisation direction linked from the ETIT master index page " +
			"and downloads its exemplary curriculum, individual study plan and recommended elective modules.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Path to a JSON config file")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newRunCmd(g),
		newListCmd(g),
		newClassifyCmd(),
		newVerifyCmd(g),
	)
	return root
}

// loadSettings builds the effective configuration. Later sources win:
// defaults, config file, environment, command flags.
func (g *globalOptions) loadSettings(override func(*config.Config)) (config.Config, error) {
	cfg := &config.Config{}
	if g.configPath != "" {
		loaded, err := config.LoadConfig(g.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return config.Config{}, err
	}
	if override != nil {
		override(cfg)
	}
	if g.verbose {
		cfg.Verbose = true
	}

	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	_, noColor := os.LookupEnv("NO_COLOR")
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    noColor,
	}))
}

func newFetchClient(cfg config.Config, logger *slog.Logger) *fetch.Client {
	return fetch.NewClient(&fetch.Options{
		Timeout:              cfg.RequestTimeout(),
		ResolveTimeout:       cfg.ResolveTimeout(),
		UserAgent:            cfg.UserAgent,
		Headers:              cfg.Headers(),
		ResolveRatePerSecond: cfg.ResolveRatePerSecond,
		UseBrowser:           cfg.UseBrowser,
		Logger:               logger,
	})
}

func newCrawler(cfg config.Config, runID string, logger *slog.Logger) (*crawling.Crawler, error) {
	startURL, err := cfg.StartURL()
	if err != nil {
		return nil, err
	}

	client := newFetchClient(cfg, logger)
	processor := crawling.NewProcessor(client, client, client, crawling.ProcessorConfig{
		OutputRoot:    cfg.OutputRoot,
		DirPrefix:     cfg.DirPrefix,
		DownloadDelay: cfg.DownloadDelay(),
		ValidatePDF:   cfg.ValidatePDF,
		DryRun:        cfg.DryRun,
	}, logger)

	return crawling.NewCrawler(client, processor, crawling.CrawlerConfig{
		StartURL: startURL,
		Only:     cfg.Only,
		RunID:    runID,
	}, logger), nil
}
