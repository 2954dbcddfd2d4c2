package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jonathan/curriculum-fetcher/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommand_DownloadsAllDocuments(t *testing.T) {
	newTestSite(t)
	out := t.TempDir()

	stdout, stderr, err := execute(t, "run", "--out", out)
	require.NoError(t, err)

	assert.Contains(t, stdout, "CRAWL SUMMARY")
	assert.Contains(t, stdout, "6 downloaded, 0 existing, 0 failed")
	assert.Contains(t, stderr, "run_id")

	for _, dir := range []string{"vertiefungsrichtung_3_Direction 3", "vertiefungsrichtung_11_Direction 11"} {
		for _, name := range []string{"Exemplary_Curriculum.pdf", "Individual_Study_Plan.pdf", "Recommended_Elective_Modules.pdf"} {
			_, err := os.Stat(filepath.Join(out, dir, name))
			assert.NoError(t, err, filepath.Join(dir, name))
		}
	}

	// Second run finds everything on disk.
	stdout, _, err = execute(t, "run", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 downloaded, 6 existing, 0 failed")
}

func TestRunCommand_OnlyAndDryRun(t *testing.T) {
	newTestSite(t)
	out := t.TempDir()

	stdout, _, err := execute(t, "run", "--out", out, "--only", "11", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "2 found, 1 processed, 0 failed")
	assert.Contains(t, stdout, "0 downloaded")

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunCommand_DiscoveryFailureExitsZero(t *testing.T) {
	newTestSite(t)
	t.Setenv(config.EnvBaseURL, "http://127.0.0.1:1/")

	stdout, _, err := execute(t, "run", "--out", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, stdout, "discovery failed")
}

func TestRunCommand_InvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"download_delay_ms": "slow"}`), 0644))

	_, _, err := execute(t, "--config", path, "run")
	require.Error(t, err)
}

func TestRunCommand_RejectsNonNumericOnly(t *testing.T) {
	_, _, err := execute(t, "run", "--only", "seven")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numeric")
}

func TestListCommand(t *testing.T) {
	newTestSite(t)

	stdout, _, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "vertiefungsrichtung_3.php")
	assert.Contains(t, stdout, "vertiefungsrichtung_11.php")

	stdout, _, err = execute(t, "list", "--only", "3")
	require.NoError(t, err)
	assert.Contains(t, stdout, "vertiefungsrichtung_3.php")
	assert.NotContains(t, stdout, "vertiefungsrichtung_11.php")
}

func TestListCommand_RejectsNonNumericOnly(t *testing.T) {
	_, _, err := execute(t, "list", "--only", "3,x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numeric")
}

func TestClassifyCommand(t *testing.T) {
	stdout, _, err := execute(t, "classify", "Empfohlene Wahlmodule", "Individueller Studienplan ab WS 2016/17")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Recommended_Elective_Modules.pdf")
	assert.NotContains(t, stdout, "Individual_Study_Plan.pdf")
}

func TestClassifyCommand_RequiresArgs(t *testing.T) {
	_, _, err := execute(t, "classify")
	require.Error(t, err)
}

func TestVerifyCommand(t *testing.T) {
	out := t.TempDir()
	dir := filepath.Join(out, "vertiefungsrichtung_3_Energy")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Exemplary_Curriculum.pdf"), []byte("not a pdf"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(out, "unrelated"), 0755))

	stdout, _, err := execute(t, "verify", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "vertiefungsrichtung_3_Energy")
	assert.NotContains(t, stdout, "unrelated")
	assert.Contains(t, stdout, "Recommended_Elective_Modules.pdf")

	_, _, err = execute(t, "verify", "--out", out, "--strict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Exemplary_Curriculum.pdf is invalid")
}

func TestVerifyCommand_MissingRoot(t *testing.T) {
	_, _, err := execute(t, "verify", "--out", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read output root")
}
