package crawling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultDirPrefix starts every direction folder name
	DefaultDirPrefix = "vertiefungsrichtung_"
	// DefaultRateLimitDelay is the pause after each successful download
	DefaultRateLimitDelay = 1 * time.Second
)

// Resolver follows a candidate link to its final URL.
type Resolver interface {
	Resolve(ctx context.Context, url string) (string, error)
}

// Downloader retrieves the full body of a file.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// ProcessorConfig holds the static settings of a Processor.
type ProcessorConfig struct {
	OutputRoot    string
	DirPrefix     string
	Targets       Targets
	DownloadDelay time.Duration
	// ValidatePDF runs a structural check on each body before it is written.
	ValidatePDF bool
	// DryRun resolves documents but creates no directories or files.
	DryRun bool
}

// ResolvedDocument is a classified link whose final URL is a PDF.
type ResolvedDocument struct {
	Key       DocumentKey
	SourceURL string
	Filename  string
}

// FileFailure records a document that was resolved but not stored.
type FileFailure struct {
	Key DocumentKey
	Err error
}

// DirectionReport describes the outcome of processing one direction.
type DirectionReport struct {
	Direction  DirectionLink
	Name       string
	Dir        string
	Expected   int
	Resolved   []ResolvedDocument
	Downloaded []DocumentKey
	Existing   []DocumentKey
	Planned    []DocumentKey
	Failed     []FileFailure
}

// Missing returns the expected keys for which no PDF link was resolved.
func (r *DirectionReport) Missing(targets Targets) []DocumentKey {
	found := make(map[DocumentKey]bool, len(r.Resolved))
	for _, d := range r.Resolved {
		found[d.Key] = true
	}
	var missing []DocumentKey
	for _, t := range targets.All() {
		if !found[t.Key] {
			missing = append(missing, t.Key)
		}
	}
	return missing
}

// Processor handles a single direction page at a time.
type Processor struct {
	pages      PageFetcher
	resolver   Resolver
	downloader Downloader
	cfg        ProcessorConfig
	logger     *slog.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewProcessor creates a Processor. An empty target set falls back to DefaultTargets.
func NewProcessor(pages PageFetcher, resolver Resolver, downloader Downloader, cfg ProcessorConfig, logger *slog.Logger) *Processor {
	if cfg.Targets.Len() == 0 {
		cfg.Targets = DefaultTargets()
	}
	if cfg.DirPrefix == "" {
		cfg.DirPrefix = DefaultDirPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		pages:      pages,
		resolver:   resolver,
		downloader: downloader,
		cfg:        cfg,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Targets returns the processor's target set.
func (p *Processor) Targets() Targets {
	return p.cfg.Targets
}

// Process fetches a direction page, creates its folder and downloads every
// target document that is not already on disk. Errors returned here mean the
// whole direction was skipped; per-file problems are recorded in the report.
func (p *Processor) Process(ctx context.Context, link DirectionLink) (*DirectionReport, error) {
	logger := p.logger.With("direction", link.Identifier)
	logger.InfoContext(ctx, "processing direction", "url", link.URL)

	page, err := p.pages.Page(ctx, link.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, &CrawlError{Message: "failed to parse direction page", Cause: err}
	}

	name := DisplayName(doc, link.Identifier)
	dir := filepath.Join(p.cfg.OutputRoot, DirectoryName(p.cfg.DirPrefix, link.Identifier, name))
	if !p.cfg.DryRun {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, &DirectoryError{Path: dir, Cause: err}
		}
		logger.DebugContext(ctx, "output directory ready", "dir", dir)
	}

	report := &DirectionReport{
		Direction: link,
		Name:      name,
		Dir:       dir,
		Expected:  p.cfg.Targets.Len(),
	}
	report.Resolved = p.resolveDocuments(ctx, logger, doc, link.URL)

	for _, rd := range report.Resolved {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p.store(ctx, logger, dir, rd, report)
	}

	logger.InfoContext(ctx, "direction complete",
		"name", name,
		"downloaded", fmt.Sprintf("%d/%d", len(report.Downloaded), report.Expected),
		"existing", len(report.Existing),
		"failed", len(report.Failed),
	)
	return report, nil
}

// resolveDocuments classifies every anchor on the page and resolves matches to
// PDF URLs. A later successful match for a key replaces an earlier one.
func (p *Processor) resolveDocuments(ctx context.Context, logger *slog.Logger, doc *goquery.Document, pageURL string) []ResolvedDocument {
	base, err := url.Parse(pageURL)
	if err != nil {
		logger.WarnContext(ctx, "cannot parse direction URL", "url", pageURL, "err", err)
		return nil
	}

	found := make(map[DocumentKey]ResolvedDocument)
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if ctx.Err() != nil {
			return false
		}

		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return true
		}

		target, ok := p.cfg.Targets.Classify(s.Text())
		if !ok {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			logger.DebugContext(ctx, "skipping malformed href", "href", href, "err", err)
			return true
		}
		candidate := base.ResolveReference(ref).String()

		rd, err := p.resolve(ctx, target, candidate)
		if err != nil {
			logger.WarnContext(ctx, "document not resolved", "key", target.Key, "err", err)
			return true
		}
		logger.DebugContext(ctx, "document resolved", "key", target.Key, "url", rd.SourceURL)
		found[target.Key] = rd
		return true
	})

	resolved := make([]ResolvedDocument, 0, len(found))
	for _, t := range p.cfg.Targets.All() {
		if rd, ok := found[t.Key]; ok {
			resolved = append(resolved, rd)
		}
	}
	return resolved
}

func (p *Processor) resolve(ctx context.Context, target TargetDocument, candidate string) (ResolvedDocument, error) {
	final, err := p.resolver.Resolve(ctx, candidate)
	if err != nil {
		return ResolvedDocument{}, &ResolutionError{
			Key:     target.Key,
			URL:     candidate,
			Message: "redirect resolution failed",
			Cause:   err,
		}
	}
	if !IsPDFURL(final) {
		return ResolvedDocument{}, &ResolutionError{
			Key:      target.Key,
			URL:      candidate,
			FinalURL: final,
			Message:  "final URL is not a PDF",
		}
	}
	return ResolvedDocument{
		Key:       target.Key,
		SourceURL: final,
		Filename:  target.Filename,
	}, nil
}

// store downloads one document into dir unless the file already exists.
func (p *Processor) store(ctx context.Context, logger *slog.Logger, dir string, rd ResolvedDocument, report *DirectionReport) {
	path := filepath.Join(dir, rd.Filename)
	if fileExists(path) {
		logger.InfoContext(ctx, "file already exists", "file", rd.Filename)
		report.Existing = append(report.Existing, rd.Key)
		return
	}

	if p.cfg.DryRun {
		logger.InfoContext(ctx, "would download", "file", rd.Filename, "url", rd.SourceURL)
		report.Planned = append(report.Planned, rd.Key)
		return
	}

	logger.InfoContext(ctx, "downloading", "file", rd.Filename, "url", rd.SourceURL)
	if err := p.download(ctx, rd, path); err != nil {
		logger.ErrorContext(ctx, "download failed", "file", rd.Filename, "err", err)
		report.Failed = append(report.Failed, FileFailure{Key: rd.Key, Err: err})
		return
	}
	report.Downloaded = append(report.Downloaded, rd.Key)

	if err := p.sleep(ctx, p.cfg.DownloadDelay); err != nil && !errors.Is(err, context.Canceled) {
		logger.DebugContext(ctx, "download delay interrupted", "err", err)
	}
}

// DisplayName returns the trimmed text after the last colon of the first h1.
// Pages without an h1 get a placeholder built from the identifier.
func DisplayName(doc *goquery.Document, identifier string) string {
	h1 := doc.Find("h1").First()
	if h1.Length() == 0 {
		return "Unnamed_" + identifier
	}
	text := h1.Text()
	if i := strings.LastIndex(text, ":"); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(text)
}

// DirectoryName builds the folder name for a direction.
func DirectoryName(prefix, identifier, name string) string {
	return prefix + identifier + "_" + sanitizePathSegment(name)
}

// sanitizePathSegment replaces characters that are not allowed in a single
// path segment on common file systems.
func sanitizePathSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		case '\t', '\n', '\r':
			return ' '
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, s)
	return strings.TrimRight(s, ". ")
}

// IsPDFURL reports whether the URL ends in ".pdf", ignoring case.
func IsPDFURL(u string) bool {
	return strings.HasSuffix(strings.ToLower(u), ".pdf")
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
