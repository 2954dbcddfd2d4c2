// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jonathan/curriculum-fetcher/internal/crawling"
	"github.com/jonathan/curriculum-fetcher/internal/verify"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxErrLen caps error messages inside table cells
	maxErrLen = 70
)

// Printer handles formatted output for the CLI commands
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func (p *Printer) newTable(header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(p.out)
	t.AppendHeader(header)
	t.SetStyle(table.StyleRounded)
	return t
}

// PrintDirections lists the discovered directions in crawl order.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintDirections(links []crawling.DirectionLink) {
	if len(links) == 0 {
		fmt.Fprintln(p.out, "No directions found.")
		return
	}

	t := p.newTable(table.Row{"#", "ID", "URL"})
	for i, l := range links {
		t.AppendRow(table.Row{i + 1, l.Identifier, l.URL})
	}
	t.AppendFooter(table.Row{"", "Total", len(links)})
	t.Render()
}

// PrintSummary outputs the totals of a run followed by one row per processed direction.
func (p *Printer) PrintSummary(summary *crawling.RunSummary, targets crawling.Targets) {
	if summary == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:         %s\n", summary.RunID))
	sb.WriteString(fmt.Sprintf("Duration:    %s\n", summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond)))
	sb.WriteString(fmt.Sprintf("Directions:  %d found, %d processed, %d failed\n",
		summary.Discovered, len(summary.Reports), len(summary.Failures)))
	sb.WriteString(fmt.Sprintf("Files:       %d downloaded, %d existing, %d failed",
		summary.Downloaded(), summary.Existing(), summary.FailedFiles()))
	if summary.DiscoveryErr != nil {
		sb.WriteString(fmt.Sprintf("\n\n⚠ discovery failed: %v", summary.DiscoveryErr))
	}
	p.printBox("CRAWL SUMMARY", sb.String())

	if len(summary.Reports) > 0 {
		t := p.newTable(table.Row{"ID", "Name", "Downloaded", "Existing", "Planned", "Failed", "Missing"})
		for _, r := range summary.Reports {
			t.AppendRow(table.Row{
				r.Direction.Identifier,
				r.Name,
				len(r.Downloaded),
				len(r.Existing),
				len(r.Planned),
				len(r.Failed),
				joinKeys(r.Missing(targets)),
			})
		}
		t.Render()
	}

	if len(summary.Failures) > 0 || summary.FailedFiles() > 0 {
		t := p.newTable(table.Row{"ID", "Document", "Error"})
		for _, f := range summary.Failures {
			t.AppendRow(table.Row{f.Direction.Identifier, "", truncate(f.Err.Error(), maxErrLen)})
		}
		for _, r := range summary.Reports {
			for _, f := range r.Failed {
				t.AppendRow(table.Row{r.Direction.Identifier, string(f.Key), truncate(f.Err.Error(), maxErrLen)})
			}
		}
		t.Render()
	}
}

// PrintClassification shows which document, if any, each anchor text selects.
func (p *Printer) PrintClassification(texts []string, targets crawling.Targets) {
	t := p.newTable(table.Row{"Text", "Normalized", "Document", "Filename"})
	for _, text := range texts {
		normalized := crawling.NormalizeText(text)
		key, filename := "-", "-"
		if target, ok := targets.Classify(normalized); ok {
			key, filename = string(target.Key), target.Filename
		}
		t.AppendRow(table.Row{text, normalized, key, filename})
	}
	t.Render()
}

// PrintAudit lists the state of every expected file below the output root.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintAudit(entries []verify.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(p.out, "No direction folders found.")
		return
	}

	counts := map[verify.Status]int{}
	t := p.newTable(table.Row{"Folder", "File", "Status", "Pages", "Detail"})
	for _, e := range entries {
		counts[e.Status]++
		pages, detail := "", ""
		if e.Status == verify.StatusValid {
			pages = fmt.Sprint(e.Pages)
		}
		if e.Err != nil {
			detail = truncate(e.Err.Error(), maxErrLen)
		}
		t.AppendRow(table.Row{e.Dir, e.Filename, string(e.Status), pages, detail})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d valid", counts[verify.StatusValid]),
		fmt.Sprintf("%d invalid", counts[verify.StatusInvalid]), fmt.Sprintf("%d missing", counts[verify.StatusMissing])})
	t.Render()
}

func joinKeys(keys []crawling.DocumentKey) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
