package dataset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fetchServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/good.tfrecord.gz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("shard-bytes"))
	})
	mux.HandleFunc("/missing.tfrecord.gz", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := fetchServer(t)
	dir := t.TempDir()

	results, err := Fetch(context.Background(), dir, []string{srv.URL + "/good.tfrecord.gz"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Err != nil {
		t.Errorf("unexpected result error: %v", r.Err)
	}
	if r.Path != filepath.Join(dir, "good.tfrecord.gz") {
		t.Errorf("unexpected path: %s", r.Path)
	}
	if r.Size != int64(len("shard-bytes")) {
		t.Errorf("expected %d bytes, got %d", len("shard-bytes"), r.Size)
	}
	if _, err := os.Stat(r.Path); err != nil {
		t.Errorf("downloaded file missing: %v", err)
	}
}

func TestFetchRecordsPerURLFailures(t *testing.T) {
	srv := fetchServer(t)
	dir := t.TempDir()

	urls := []string{
		srv.URL + "/missing.tfrecord.gz",
		srv.URL + "/good.tfrecord.gz",
	}
	results, err := Fetch(context.Background(), dir, urls)
	if err == nil {
		t.Fatal("expected a summary error when a download fails")
	}
	if !strings.Contains(err.Error(), "1 of 2 downloads failed") {
		t.Errorf("unexpected summary error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Err == nil {
		t.Error("expected an error on the missing URL")
	}
	if results[1].Err != nil {
		t.Errorf("good URL should still download: %v", results[1].Err)
	}
	if _, err := os.Stat(filepath.Join(dir, "good.tfrecord.gz")); err != nil {
		t.Errorf("good shard missing after partial failure: %v", err)
	}
}

func TestFetchNoURLs(t *testing.T) {
	if _, err := Fetch(context.Background(), t.TempDir(), nil); err == nil {
		t.Fatal("expected error for empty URL list")
	}
}
