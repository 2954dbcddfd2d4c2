// Package crawling discovers direction pages, classifies their curriculum
// links and downloads the referenced PDF documents.
package crawling

import "fmt"

// CrawlError represents a general crawling failure
type CrawlError struct {
	Message string
	Cause   error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error: %s", e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// LinkExtractionError represents a failure in extracting links from HTML
type LinkExtractionError struct {
	Message string
	Cause   error
}

func (e *LinkExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("link extraction error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("link extraction error: %s", e.Message)
}

func (e *LinkExtractionError) Unwrap() error {
	return e.Cause
}

// ResolutionError means a candidate link could not be followed to a PDF.
type ResolutionError struct {
	Key      DocumentKey
	URL      string
	FinalURL string
	Message  string
	Cause    error
}

func (e *ResolutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("resolution error for %s (%s): %s: %v", e.URL, e.Key, e.Message, e.Cause)
	}
	if e.FinalURL != "" {
		return fmt.Sprintf("resolution error for %s (%s): %s: %s", e.URL, e.Key, e.Message, e.FinalURL)
	}
	return fmt.Sprintf("resolution error for %s (%s): %s", e.URL, e.Key, e.Message)
}

func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// DirectoryError means a direction's output directory could not be created.
type DirectoryError struct {
	Path  string
	Cause error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("directory error: cannot create %s: %v", e.Path, e.Cause)
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// DownloadError represents a failure to fetch or persist a single document.
type DownloadError struct {
	Key     DocumentKey
	URL     string
	Path    string
	Message string
	Cause   error
}

func (e *DownloadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("download error for %s (%s): %s: %v", e.URL, e.Key, e.Message, e.Cause)
	}
	return fmt.Sprintf("download error for %s (%s): %s", e.URL, e.Key, e.Message)
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}
