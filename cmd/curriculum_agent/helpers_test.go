package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// execute runs the CLI in-process and returns what it wrote to stdout and stderr.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

// newTestSite serves an index with two directions whose documents sit behind a
// redirecting download endpoint, and points the CLI at it through the environment.
func newTestSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/vertiefungsrichtungen_master.php", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprint(w, `<html><body>
			<a href="vertiefungsrichtung_3.php">Energy</a>
			<a href="vertiefungsrichtung_11.php">Photonics</a>
		</body></html>`)
	})
	for _, id := range []string{"3", "11"} {
		id := id
		mux.HandleFunc("/vertiefungsrichtung_"+id+".php", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = fmt.Fprintf(w, `<html><body><h1>Vertiefungsrichtung %[1]s: Direction %[1]s</h1>
				<a href="download.php?f=%[1]s-ex">Exemplarischer Studienplan</a>
				<a href="download.php?f=%[1]s-ind">Individueller Studienplan ab WS 2018/19</a>
				<a href="download.php?f=%[1]s-el">Empfohlene Wahlmodule</a>
			</body></html>`, id)
		})
	}
	mux.HandleFunc("/download.php", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/"+r.URL.Query().Get("f")+".pdf", http.StatusFound)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = fmt.Fprintf(w, "%%PDF-1.4\n%s\n", r.URL.Path)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	t.Setenv("CURRICULUM_BASE_URL", server.URL+"/")
	t.Setenv("CURRICULUM_DOWNLOAD_DELAY_MS", "1")
	t.Setenv("NO_COLOR", "1")
	return server
}
