package crawling

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jonathan/curriculum-fetcher/internal/verify"
)

// download fetches a resolved document and writes it to path.
func (p *Processor) download(ctx context.Context, rd ResolvedDocument, path string) error {
	body, err := p.downloader.Download(ctx, rd.SourceURL)
	if err != nil {
		return &DownloadError{Key: rd.Key, URL: rd.SourceURL, Path: path, Message: "request failed", Cause: err}
	}

	if !verify.HasHeader(body) {
		return &DownloadError{Key: rd.Key, URL: rd.SourceURL, Path: path, Message: "response is not a PDF document"}
	}
	if p.cfg.ValidatePDF {
		if _, err := verify.Bytes(body); err != nil {
			return &DownloadError{Key: rd.Key, URL: rd.SourceURL, Path: path, Message: "PDF validation failed", Cause: err}
		}
	}

	if err := writeFileAtomic(path, body); err != nil {
		return &DownloadError{Key: rd.Key, URL: rd.SourceURL, Path: path, Message: "failed to write file", Cause: err}
	}
	return nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place, so an interrupted run never leaves a truncated target file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
