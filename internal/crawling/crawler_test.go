package crawling

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/curriculum-fetcher/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves an index page, two healthy direction pages, one broken
// direction page and PDFs behind a redirecting download endpoint.
type fakeSite struct {
	server    *httptest.Server
	downloads atomic.Int32
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{}
	mux := http.NewServeMux()

	mux.HandleFunc("/vertiefungsrichtungen_master.php", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body>
			<a href="vertiefungsrichtung_7.php">Robotics</a>
			<a href="vertiefungsrichtung_9.php">Broken</a>
			<a href="Vertiefungsrichtung_7.php">Robotics (again)</a>
			<a href="vertiefungsrichtung_25.php">Optics</a>
		</body></html>`)
	})
	mux.HandleFunc("/vertiefungsrichtung_7.php", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><h1>Vertiefungsrichtung 7: Robotics and Control</h1>
			<a href="download.php?f=7-ex">Exemplarischer Studienplan</a>
			<a href="download.php?f=7-ind">Individueller Studienplan ab WS 2018/19</a>
			<a href="download.php?f=7-el">Empfohlene Wahlmodule</a>
		</body></html>`)
	})
	mux.HandleFunc("/vertiefungsrichtung_9.php", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/vertiefungsrichtung_25.php", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body><h1>Optics</h1>
			<a href="download.php?f=25-ex">Exemplary Curriculum</a>
			<a href="download.php?f=25-ind">Individual Study Plan starting from winter semester 2018/19</a>
			<a href="download.php?f=missing">Recommended Elective Modules</a>
		</body></html>`)
	})
	mux.HandleFunc("/download.php", func(w http.ResponseWriter, r *http.Request) {
		f := r.URL.Query().Get("f")
		if f == "missing" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/media/"+f+".pdf", http.StatusFound)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		if r.Method == http.MethodGet {
			site.downloads.Add(1)
		}
		_, _ = fmt.Fprintf(w, "%%PDF-1.4\n%s\n", r.URL.Path)
	})

	site.server = httptest.NewServer(mux)
	t.Cleanup(site.server.Close)
	return site
}

func newSiteCrawler(site *fakeSite, root string, only ...string) *Crawler {
	client := fetch.NewClient(&fetch.Options{Logger: discardLogger()})
	processor := NewProcessor(client, client, client, ProcessorConfig{
		OutputRoot: root,
		Targets:    DefaultTargets(),
	}, discardLogger())
	return NewCrawler(client, processor, CrawlerConfig{
		StartURL: site.server.URL + "/vertiefungsrichtungen_master.php",
		Only:     only,
		RunID:    "test-run",
	}, discardLogger())
}

func TestCrawler_RunIsIdempotent(t *testing.T) {
	site := newFakeSite(t)
	root := t.TempDir()

	first := newSiteCrawler(site, root).Run(context.Background())
	require.NoError(t, first.DiscoveryErr)
	assert.Equal(t, 3, first.Discovered)
	require.Len(t, first.Directions, 3)
	assert.Equal(t, []string{"7", "9", "25"}, identifiers(first.Directions))

	assert.Equal(t, 5, first.Downloaded())
	assert.Equal(t, int32(5), site.downloads.Load())
	require.Len(t, first.Failures, 1)
	assert.Equal(t, "9", first.Failures[0].Direction.Identifier)

	robotics := filepath.Join(root, "vertiefungsrichtung_7_Robotics and Control")
	for _, name := range []string{"Exemplary_Curriculum.pdf", "Individual_Study_Plan.pdf", "Recommended_Elective_Modules.pdf"} {
		_, err := os.Stat(filepath.Join(robotics, name))
		assert.NoError(t, err, name)
	}
	_, err := os.Stat(filepath.Join(root, "vertiefungsrichtung_25_Optics", "Recommended_Elective_Modules.pdf"))
	assert.True(t, os.IsNotExist(err))

	second := newSiteCrawler(site, root).Run(context.Background())
	assert.Equal(t, 0, second.Downloaded())
	assert.Equal(t, 5, second.Existing())
	assert.Equal(t, int32(5), site.downloads.Load())
}

func TestCrawler_OnlyFilter(t *testing.T) {
	site := newFakeSite(t)
	root := t.TempDir()

	summary := newSiteCrawler(site, root, "25").Run(context.Background())
	require.NoError(t, summary.DiscoveryErr)
	// The discovered count covers the whole index, not just the selection.
	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, []string{"25"}, identifiers(summary.Directions))
	assert.Equal(t, 2, summary.Downloaded())
	assert.Empty(t, summary.Failures)
}

func TestCrawler_DiscoveryFailureEndsRunQuietly(t *testing.T) {
	client := fetch.NewClient(&fetch.Options{Logger: discardLogger()})
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	processor := NewProcessor(client, client, client, ProcessorConfig{OutputRoot: t.TempDir()}, discardLogger())
	summary := NewCrawler(client, processor, CrawlerConfig{StartURL: server.URL + "/index.php"}, discardLogger()).
		Run(context.Background())

	require.Error(t, summary.DiscoveryErr)
	assert.Zero(t, summary.Discovered)
	assert.Empty(t, summary.Directions)
	assert.False(t, summary.FinishedAt.Before(summary.StartedAt))
}

type panickingResolver struct{}

func (panickingResolver) Resolve(context.Context, string) (string, error) {
	panic("resolver exploded")
}

func TestCrawler_PanicInOneDirectionIsIsolated(t *testing.T) {
	site := newFakeSite(t)
	client := fetch.NewClient(&fetch.Options{Logger: discardLogger()})
	processor := NewProcessor(client, panickingResolver{}, client, ProcessorConfig{OutputRoot: t.TempDir()}, discardLogger())

	summary := NewCrawler(client, processor, CrawlerConfig{
		StartURL: site.server.URL + "/vertiefungsrichtungen_master.php",
	}, discardLogger()).Run(context.Background())

	require.NoError(t, summary.DiscoveryErr)
	// 7 and 25 panic during resolution, 9 fails to fetch
	require.Len(t, summary.Failures, 3)
	var crawlErr *CrawlError
	assert.ErrorAs(t, summary.Failures[0].Err, &crawlErr)
	assert.Contains(t, crawlErr.Message, "resolver exploded")
}

func TestCrawler_CancelledContextStopsBeforeNextDirection(t *testing.T) {
	site := newFakeSite(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := fetch.NewClient(&fetch.Options{Logger: discardLogger()})
	processor := NewProcessor(client, client, client, ProcessorConfig{OutputRoot: t.TempDir()}, discardLogger())
	processor.sleep = func(context.Context, time.Duration) error {
		cancel()
		return nil
	}

	summary := NewCrawler(client, processor, CrawlerConfig{
		StartURL: site.server.URL + "/vertiefungsrichtungen_master.php",
	}, discardLogger()).Run(ctx)

	require.Len(t, summary.Reports, 1)
	assert.Equal(t, "7", summary.Reports[0].Direction.Identifier)
	assert.Len(t, summary.Reports[0].Downloaded, 1)
	require.Len(t, summary.Failures, 1)
	assert.ErrorIs(t, summary.Failures[0].Err, context.Canceled)
}

func TestFilterDirections(t *testing.T) {
	links := []DirectionLink{{Identifier: "1"}, {Identifier: "2"}, {Identifier: "3"}}
	assert.Equal(t, links, filterDirections(links, nil))
	assert.Equal(t, []DirectionLink{{Identifier: "1"}, {Identifier: "3"}}, filterDirections(links, []string{"3", "1"}))
}

func identifiers(links []DirectionLink) []string {
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.Identifier)
	}
	return ids
}
