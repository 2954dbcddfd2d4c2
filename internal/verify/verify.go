// Package verify checks downloaded curriculum PDFs with pdfcpu.
package verify

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// headerWindow is how far into a file the %PDF- marker may appear.
const headerWindow = 1024

var pdfMarker = []byte("%PDF-")

func init() {
	// pdfcpu would otherwise create a config directory in the user's home.
	api.DisableConfigDir()
}

// Info describes a structurally valid PDF.
type Info struct {
	Pages int
}

// HasHeader reports whether body carries a PDF header near its start.
func HasHeader(body []byte) bool {
	window := body
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	return bytes.Contains(window, pdfMarker)
}

// Reader validates a PDF in relaxed mode and returns its page count.
func Reader(rs io.ReadSeeker) (*Info, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(rs, conf); err != nil {
		return nil, fmt.Errorf("invalid PDF: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind PDF: %w", err)
	}
	pages, err := api.PageCount(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	return &Info{Pages: pages}, nil
}

// Bytes validates an in-memory PDF.
func Bytes(body []byte) (*Info, error) {
	if !HasHeader(body) {
		return nil, fmt.Errorf("invalid PDF: missing %%PDF- header")
	}
	return Reader(bytes.NewReader(body))
}

// File validates a PDF on disk.
func File(path string) (*Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Reader(f)
}

// Status of an expected file in the output tree.
type Status string

const (
	// StatusValid means the file exists and passed validation
	StatusValid Status = "valid"
	// StatusInvalid means the file exists but failed validation
	StatusInvalid Status = "invalid"
	// StatusMissing means the file does not exist
	StatusMissing Status = "missing"
)

// Entry is the audit result of one expected file.
type Entry struct {
	Dir      string
	Filename string
	Status   Status
	Pages    int
	Err      error
}

// Tree walks the direction folders directly below root whose names start with
// prefix and checks every expected filename in each of them.
func Tree(root, prefix string, filenames []string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read output root %s: %w", root, err)
	}

	var dirs []string
	for _, de := range dirEntries {
		if de.IsDir() && strings.HasPrefix(strings.ToLower(de.Name()), strings.ToLower(prefix)) {
			dirs = append(dirs, de.Name())
		}
	}
	sort.Strings(dirs)

	entries := make([]Entry, 0, len(dirs)*len(filenames))
	for _, dir := range dirs {
		for _, name := range filenames {
			entry := Entry{Dir: dir, Filename: name}
			info, err := File(filepath.Join(root, dir, name))
			switch {
			case os.IsNotExist(err):
				entry.Status = StatusMissing
			case err != nil:
				entry.Status = StatusInvalid
				entry.Err = err
			default:
				entry.Status = StatusValid
				entry.Pages = info.Pages
			}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}
