package crawling

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// CrawlerConfig holds the settings of a crawl run.
type CrawlerConfig struct {
	StartURL string
	// Only restricts processing to these direction identifiers when non-empty.
	Only  []string
	RunID string
}

// DirectionFailure records a direction that was skipped.
type DirectionFailure struct {
	Direction DirectionLink
	Err       error
}

// RunSummary is the outcome of a crawl run.
type RunSummary struct {
	RunID        string
	StartedAt    time.Time
	FinishedAt   time.Time
	// Discovered counts the direction pages found on the index before filtering.
	Discovered   int
	// Directions are the directions selected for processing, in crawl order.
	Directions   []DirectionLink
	Reports      []*DirectionReport
	Failures     []DirectionFailure
	DiscoveryErr error
}

// Downloaded returns the number of files written during the run.
func (s *RunSummary) Downloaded() int {
	n := 0
	for _, r := range s.Reports {
		n += len(r.Downloaded)
	}
	return n
}

// Existing returns the number of files skipped because they were already on disk.
func (s *RunSummary) Existing() int {
	n := 0
	for _, r := range s.Reports {
		n += len(r.Existing)
	}
	return n
}

// FailedFiles returns the number of resolved documents that could not be stored.
func (s *RunSummary) FailedFiles() int {
	n := 0
	for _, r := range s.Reports {
		n += len(r.Failed)
	}
	return n
}

// Crawler runs discovery once and then processes each direction in order.
type Crawler struct {
	pages     PageFetcher
	processor *Processor
	cfg       CrawlerConfig
	logger    *slog.Logger
}

// NewCrawler creates a Crawler.
func NewCrawler(pages PageFetcher, processor *Processor, cfg CrawlerConfig, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RunID != "" {
		logger = logger.With("run_id", cfg.RunID)
	}
	return &Crawler{
		pages:     pages,
		processor: processor,
		cfg:       cfg,
		logger:    logger,
	}
}

// Processor returns the direction processor used by the crawler.
func (c *Crawler) Processor() *Processor {
	return c.processor
}

// Discover runs the index resolver and applies the identifier filter.
func (c *Crawler) Discover(ctx context.Context) ([]DirectionLink, error) {
	links, err := ResolveDirections(ctx, c.pages, c.cfg.StartURL, c.logger)
	if err != nil {
		return nil, err
	}
	return filterDirections(links, c.cfg.Only), nil
}

// Run crawls every discovered direction. Failures are logged and recorded in
// the summary; Run itself never fails.
func (c *Crawler) Run(ctx context.Context) (summary *RunSummary) {
	summary = &RunSummary{RunID: c.cfg.RunID, StartedAt: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			err := &CrawlError{Message: fmt.Sprintf("run aborted: %v", r)}
			c.logger.ErrorContext(ctx, "crawl run failed", "err", err)
			summary.DiscoveryErr = err
		}
		summary.FinishedAt = time.Now()
	}()

	links, err := ResolveDirections(ctx, c.pages, c.cfg.StartURL, c.logger)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to discover direction pages", "err", err)
		summary.DiscoveryErr = err
		return summary
	}
	summary.Discovered = len(links)
	links = filterDirections(links, c.cfg.Only)
	if len(links) < summary.Discovered {
		c.logger.InfoContext(ctx, "directions filtered", "selected", len(links), "discovered", summary.Discovered)
	}
	summary.Directions = links

	total := len(links)
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			c.logger.WarnContext(ctx, "run interrupted", "processed", i, "total", total)
			break
		}
		c.logger.InfoContext(ctx, "progress", "current", i+1, "total", total, "direction", link.Identifier)

		report, err := c.processSafely(ctx, link)
		if report != nil {
			summary.Reports = append(summary.Reports, report)
		}
		if err != nil {
			c.logger.ErrorContext(ctx, "direction skipped", "direction", link.Identifier, "err", err)
			summary.Failures = append(summary.Failures, DirectionFailure{Direction: link, Err: err})
		}
	}

	c.logger.InfoContext(ctx, "all directions processed",
		"directions", total,
		"downloaded", summary.Downloaded(),
		"existing", summary.Existing(),
		"skipped", len(summary.Failures),
	)
	return summary
}

// processSafely isolates one direction so that a panic cannot stop the run.
func (c *Crawler) processSafely(ctx context.Context, link DirectionLink) (report *DirectionReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			report = nil
			err = &CrawlError{Message: fmt.Sprintf("panic while processing direction %s: %v", link.Identifier, r)}
		}
	}()
	return c.processor.Process(ctx, link)
}

func filterDirections(links []DirectionLink, only []string) []DirectionLink {
	if len(only) == 0 {
		return links
	}
	keep := make(map[string]bool, len(only))
	for _, id := range only {
		keep[id] = true
	}
	filtered := make([]DirectionLink, 0, len(links))
	for _, l := range links {
		if keep[l.Identifier] {
			filtered = append(filtered, l)
		}
	}
	return filtered
}
