package artwork

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func newTestFetcher(t *testing.T, handler http.Handler) (*Fetcher, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	f, err := New(filepath.Join(t.TempDir(), "artwork"), srv.Client(), hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f, srv
}

func TestFetchDownloadsOnce(t *testing.T) {
	var hits atomic.Int64
	f, srv := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("poster-bytes"))
	}))

	ref := srv.URL + "/w342/matrix.jpg"
	path, err := f.Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%q) error = %v", path, err)
	}
	if string(data) != "poster-bytes" {
		t.Errorf("poster content = %q, want %q", data, "poster-bytes")
	}

	// Same reference again: the existing file short-circuits the network.
	again, err := f.Fetch(context.Background(), ref)
	if err != nil {
		t.Fatalf("Fetch() second error = %v", err)
	}
	if again != path {
		t.Errorf("second Fetch() = %q, want %q", again, path)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1", got)
	}
}

func TestFetchCollapsesConcurrentRequests(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	f, srv := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte("poster-bytes"))
	}))

	ref := srv.URL + "/w342/matrix.jpg"
	var wg sync.WaitGroup
	paths := make([]string, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = f.Fetch(context.Background(), ref)
		}(i)
	}
	close(release)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("Fetch() goroutine %d error = %v", i, errs[i])
		}
		if paths[i] != paths[0] {
			t.Errorf("Fetch() goroutine %d path = %q, want %q", i, paths[i], paths[0])
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hits = %d, want 1 download for concurrent fetches", got)
	}
}

func TestFetchNon200LeavesNoFile(t *testing.T) {
	f, srv := newTestFetcher(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	ref := srv.URL + "/w342/missing.jpg"
	if _, err := f.Fetch(context.Background(), ref); err == nil {
		t.Fatal("Fetch() of 404 = nil error, want error")
	}
	if _, err := os.Stat(f.Path(ref)); !os.IsNotExist(err) {
		t.Errorf("Stat() after failed fetch = %v, want not-exist", err)
	}

	// No temp files either.
	entries, err := os.ReadDir(filepath.Dir(f.Path(ref)))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("artwork dir entries after failure = %d, want 0", len(entries))
	}
}

func TestPathIsContentAddressed(t *testing.T) {
	f, err := New(t.TempDir(), nil, hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	a := f.Path("https://image.tmdb.org/t/p/w342/matrix.jpg")
	b := f.Path("https://image.tmdb.org/t/p/w342/matrix.jpg")
	c := f.Path("https://image.tmdb.org/t/p/w342/other.png")

	if a != b {
		t.Errorf("Path() not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("Path() collision for distinct references: %q", a)
	}
	if !strings.HasSuffix(a, ".jpg") {
		t.Errorf("Path(%q) = %q, want .jpg suffix", "matrix.jpg", a)
	}
	if !strings.HasSuffix(c, ".png") {
		t.Errorf("Path() = %q, want .png suffix", c)
	}
}

func TestPathExtensionFallback(t *testing.T) {
	f, err := New(t.TempDir(), nil, hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if got := f.Path("https://img.test/poster"); !strings.HasSuffix(got, ".jpg") {
		t.Errorf("Path() without extension = %q, want .jpg fallback", got)
	}
}
