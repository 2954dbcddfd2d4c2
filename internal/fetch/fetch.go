// Package fetch provides the HTTP transport used by the crawler.
// Every request carries the same browser-like header set; pages, redirect
// resolution and file downloads share one resty client.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// DefaultTimeout is the default HTTP request timeout for page and file fetches.
const DefaultTimeout = 30 * time.Second

// DefaultResolveTimeout bounds a single redirect-resolution request.
const DefaultResolveTimeout = 10 * time.Second

// DefaultUserAgent is the user agent string for HTTP requests.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// DefaultAcceptLanguage prefers the German variant of the site.
const DefaultAcceptLanguage = "de-DE,de;q=0.9"

const maxRedirects = 10

// Operation names reported in Error.Op.
const (
	OpPage     = "page"
	OpResolve  = "resolve"
	OpDownload = "download"
)

// Result holds the content of a fetched page.
type Result struct {
	URL         string
	FinalURL    string
	HTML        string
	ContentType string
	StatusCode  int
	Rendered    bool
}

// Error represents a failed retrieval: network failure, timeout or a non-2xx status.
type Error struct {
	URL        string
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error (%s) for %s: %s: %v", e.Op, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error (%s) for %s: %s", e.Op, e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Options configures the client.
type Options struct {
	Timeout        time.Duration
	ResolveTimeout time.Duration
	UserAgent      string
	Headers        map[string]string
	// ResolveRatePerSecond caps redirect-resolution requests; zero disables pacing.
	ResolveRatePerSecond float64
	// UseBrowser re-renders pages without any anchors in a headless browser.
	UseBrowser bool
	Logger     *slog.Logger
}

// DefaultOptions returns sensible defaults for fetching.
func DefaultOptions() *Options {
	return &Options{
		Timeout:        DefaultTimeout,
		ResolveTimeout: DefaultResolveTimeout,
		UserAgent:      DefaultUserAgent,
		Headers: map[string]string{
			"Accept-Language": DefaultAcceptLanguage,
		},
	}
}

// Renderer renders a page with JavaScript and returns the resulting HTML.
type Renderer func(ctx context.Context, url string, timeout time.Duration, userAgent string) (string, error)

// Client performs page fetches, redirect resolution and downloads.
type Client struct {
	http           *resty.Client
	opts           Options
	resolveLimiter *rate.Limiter
	render         Renderer
	logger         *slog.Logger
}

// NewClient creates a client. Zero-valued options fall back to defaults.
func NewClient(opts *Options) *Client {
	defaults := DefaultOptions()
	if opts == nil {
		opts = defaults
	}
	o := *opts
	if o.Timeout <= 0 {
		o.Timeout = defaults.Timeout
	}
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = defaults.ResolveTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = defaults.UserAgent
	}
	if o.Headers == nil {
		o.Headers = defaults.Headers
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	client := resty.New().
		SetTimeout(o.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetHeaders(o.Headers).
		SetHeader("User-Agent", o.UserAgent)

	c := &Client{
		http:   client,
		opts:   o,
		render: RenderWithBrowser,
		logger: o.Logger,
	}
	if o.ResolveRatePerSecond > 0 {
		c.resolveLimiter = rate.NewLimiter(rate.Limit(o.ResolveRatePerSecond), 1)
	}
	return c
}

// Page retrieves the HTML of a page.
func (c *Client) Page(ctx context.Context, urlStr string) (*Result, error) {
	if err := validateURL(urlStr, OpPage); err != nil {
		return nil, err
	}

	res, err := c.http.R().SetContext(ctx).Get(urlStr)
	if err != nil {
		return nil, &Error{URL: urlStr, Op: OpPage, Message: "HTTP request failed", Cause: err}
	}

	result := &Result{
		URL:         urlStr,
		FinalURL:    finalURL(res, urlStr),
		HTML:        string(res.Body()),
		ContentType: res.Header().Get("Content-Type"),
		StatusCode:  res.StatusCode(),
	}
	if !res.IsSuccess() {
		return result, &Error{
			URL:        urlStr,
			Op:         OpPage,
			StatusCode: res.StatusCode(),
			Message:    fmt.Sprintf("HTTP status %d", res.StatusCode()),
		}
	}

	if c.opts.UseBrowser && !HasAnchors(result.HTML) {
		c.logger.DebugContext(ctx, "page has no anchors, rendering in browser", "url", urlStr)
		html, err := c.render(ctx, urlStr, c.opts.Timeout, c.opts.UserAgent)
		if err != nil {
			c.logger.WarnContext(ctx, "browser rendering failed, using HTTP content", "url", urlStr, "err", err)
			return result, nil
		}
		result.HTML = html
		result.Rendered = true
	}

	return result, nil
}

// Resolve issues a HEAD request that follows redirects and returns the final
// URL as reported after the last hop. The extension is not checked here.
func (c *Client) Resolve(ctx context.Context, urlStr string) (string, error) {
	if err := validateURL(urlStr, OpResolve); err != nil {
		return "", err
	}

	if c.resolveLimiter != nil {
		if err := c.resolveLimiter.Wait(ctx); err != nil {
			return "", &Error{URL: urlStr, Op: OpResolve, Message: "rate limiter wait failed", Cause: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.ResolveTimeout)
	defer cancel()

	res, err := c.http.R().SetContext(ctx).Head(urlStr)
	if err != nil {
		return "", &Error{URL: urlStr, Op: OpResolve, Message: "HEAD request failed", Cause: err}
	}
	if !res.IsSuccess() {
		return "", &Error{
			URL:        urlStr,
			Op:         OpResolve,
			StatusCode: res.StatusCode(),
			Message:    fmt.Sprintf("HTTP status %d", res.StatusCode()),
		}
	}

	return finalURL(res, urlStr), nil
}

// Download retrieves the full body of a file.
func (c *Client) Download(ctx context.Context, urlStr string) ([]byte, error) {
	if err := validateURL(urlStr, OpDownload); err != nil {
		return nil, err
	}

	res, err := c.http.R().SetContext(ctx).Get(urlStr)
	if err != nil {
		return nil, &Error{URL: urlStr, Op: OpDownload, Message: "HTTP request failed", Cause: err}
	}
	if !res.IsSuccess() {
		return nil, &Error{
			URL:        urlStr,
			Op:         OpDownload,
			StatusCode: res.StatusCode(),
			Message:    fmt.Sprintf("HTTP status %d", res.StatusCode()),
		}
	}

	return res.Body(), nil
}

// HasAnchors reports whether the HTML contains at least one a[href] element.
func HasAnchors(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	return doc.Find("a[href]").Length() > 0
}

func validateURL(urlStr, op string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return &Error{URL: urlStr, Op: op, Message: "invalid URL", Cause: err}
	}
	return nil
}

// finalURL returns the URL of the last request in the redirect chain.
func finalURL(res *resty.Response, fallback string) string {
	if res == nil || res.RawResponse == nil || res.RawResponse.Request == nil {
		return fallback
	}
	if res.RawResponse.Request.URL == nil {
		return fallback
	}
	return res.RawResponse.Request.URL.String()
}
