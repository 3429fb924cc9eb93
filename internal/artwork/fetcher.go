// Package artwork downloads poster images into a content-addressed
// directory. Two programmes resolving to the same poster reference share
// one file; existence on disk is proof of a prior successful fetch.
package artwork

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	csmap "github.com/mhmtszr/concurrent-swiss-map"
)

// Fetcher downloads posters into dir. Safe for concurrent use; concurrent
// fetches of the same reference collapse into a single download.
type Fetcher struct {
	dir    string
	client *http.Client
	log    hclog.Logger

	mu       sync.Mutex
	inflight *csmap.CsMap[string, chan struct{}]
}

// New creates a Fetcher writing into dir, creating it when needed. A nil
// client gets a 30 second timeout default.
func New(dir string, client *http.Client, log hclog.Logger) (*Fetcher, error) {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artwork dir: %w", err)
	}
	return &Fetcher{
		dir:      dir,
		client:   client,
		log:      log.Named("artwork"),
		inflight: csmap.Create[string, chan struct{}](),
	}, nil
}

// Path returns the content-addressed file path for a poster reference
// without fetching anything.
func (f *Fetcher) Path(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])[:32]+extOf(ref))
}

// Fetch ensures the poster behind ref exists on disk and returns its path.
// A file already present is returned without network access. The download
// lands in a temp file first and is renamed into place, so a concurrent or
// interrupted run never observes a partial poster.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (string, error) {
	dest := f.Path(ref)

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	// Collapse concurrent fetches of the same reference: the first caller
	// downloads, the rest wait for its completion signal.
	f.mu.Lock()
	if _, err := os.Stat(dest); err == nil {
		// Another fetch completed between the unlocked check and here.
		f.mu.Unlock()
		return dest, nil
	}
	if done, ok := f.inflight.Load(dest); ok {
		f.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if _, err := os.Stat(dest); err == nil {
			return dest, nil
		}
		return "", fmt.Errorf("artwork: concurrent fetch of %s failed", ref)
	}
	done := make(chan struct{})
	f.inflight.Store(dest, done)
	f.mu.Unlock()

	defer func() {
		f.inflight.Delete(dest)
		close(done)
	}()

	if err := f.download(ctx, ref, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func (f *Fetcher) download(ctx context.Context, ref, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return fmt.Errorf("artwork request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("artwork fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artwork fetch: unexpected status %s", resp.Status)
	}

	tmp, err := os.CreateTemp(f.dir, ".poster-*")
	if err != nil {
		return fmt.Errorf("artwork temp: %w", err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, resp.Body)
	if err == nil && n == 0 {
		err = fmt.Errorf("empty response body")
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artwork write: %w", err)
	}

	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("artwork rename: %w", err)
	}

	f.log.Debug("poster stored", "ref", ref, "path", dest, "bytes", n)
	return nil
}

func extOf(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ".jpg"
	}
	switch ext := strings.ToLower(path.Ext(u.Path)); ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".gif":
		return ext
	default:
		return ".jpg"
	}
}
