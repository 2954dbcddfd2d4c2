package crawling

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/PuerkitoBio/purell"
	"github.com/jonathan/curriculum-fetcher/internal/fetch"
)

// directionHref matches direction page links such as vertiefungsrichtung_25.php.
var directionHref = regexp.MustCompile(`(?i)vertiefungsrichtung_(\d+)\.php`)

// DirectionLink is a discovered direction page.
type DirectionLink struct {
	URL        string
	Identifier string
}

// PageFetcher retrieves HTML pages.
type PageFetcher interface {
	Page(ctx context.Context, url string) (*fetch.Result, error)
}

// ResolveDirections fetches the start page and returns its direction links in
// first-seen order. A page without direction links yields an empty slice.
func ResolveDirections(ctx context.Context, pages PageFetcher, startURL string, logger *slog.Logger) ([]DirectionLink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.InfoContext(ctx, "fetching start page", "url", startURL)
	result, err := pages.Page(ctx, startURL)
	if err != nil {
		return nil, err
	}

	links, err := ExtractDirectionLinks(result.HTML, startURL)
	if err != nil {
		return nil, err
	}

	if len(links) == 0 {
		logger.WarnContext(ctx, "no direction pages found on start page", "url", startURL)
		return links, nil
	}
	logger.InfoContext(ctx, "found direction pages", "count", len(links))
	return links, nil
}

// ExtractDirectionLinks extracts direction page links from HTML content,
// resolving them against baseURL and dropping repeats of the same page.
func ExtractDirectionLinks(htmlContent string, baseURL string) ([]DirectionLink, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse base URL",
			Cause:   err,
		}
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, &LinkExtractionError{
			Message: fmt.Sprintf("invalid base URL: %s (must have scheme and host)", baseURL),
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, &LinkExtractionError{
			Message: "failed to parse HTML",
			Cause:   err,
		}
	}

	seen := newOrderedSet[DirectionLink]()
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if !directionHref.MatchString(href) {
			return
		}

		linkURL, err := url.Parse(href)
		if err != nil {
			return
		}
		absoluteURL := base.ResolveReference(linkURL)

		match := directionHref.FindStringSubmatch(absoluteURL.Path)
		if match == nil {
			return
		}

		seen.Add(directionKey(absoluteURL), DirectionLink{
			URL:        absoluteURL.String(),
			Identifier: match[1],
		})
	})

	return seen.Values(), nil
}

// directionKey normalizes a direction URL for deduplication. The site links
// the same page with differently cased file names, so the key is case-folded.
func directionKey(u *url.URL) string {
	normalized := *u
	key := purell.NormalizeURL(&normalized,
		purell.FlagsSafe|
			purell.FlagRemoveDotSegments|
			purell.FlagRemoveDuplicateSlashes|
			purell.FlagRemoveFragment,
	)
	return strings.ToLower(key)
}

// orderedSet keeps the first value added per key, in insertion order.
type orderedSet[T any] struct {
	index  map[string]int
	values []T
}

func newOrderedSet[T any]() *orderedSet[T] {
	return &orderedSet[T]{index: make(map[string]int)}
}

// Add stores v under key unless the key is already present.
func (s *orderedSet[T]) Add(key string, v T) bool {
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.values)
	s.values = append(s.values, v)
	return true
}

// Values returns the stored values in insertion order.
func (s *orderedSet[T]) Values() []T {
	return append(make([]T, 0, len(s.values)), s.values...)
}
