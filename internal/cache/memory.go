package cache

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/lepresidente/xmltv-enrich/internal/provider"
)

func init() {
	// go-cache persists through encoding/gob; concrete entry types must be
	// registered before SaveFile/LoadFile.
	gob.Register(Entry{})
	gob.Register(&provider.Record{})
}

// Memory is the local default Store used when no Redis backend is
// configured. Entries survive between runs through a gob snapshot under
// the user's cache directory.
type Memory struct {
	cache *gocache.Cache
	file  string
}

// NewMemory creates a local store with the given default TTL. When file is
// non-empty a previous snapshot is loaded from it; a missing or stale
// snapshot is simply an empty cache.
func NewMemory(defaultTTL time.Duration, file string) *Memory {
	m := &Memory{
		cache: gocache.New(defaultTTL, 10*time.Minute),
		file:  file,
	}
	if file != "" {
		if _, err := os.Stat(file); err == nil {
			_ = m.cache.LoadFile(file)
		}
	}
	return m
}

func (m *Memory) Get(_ context.Context, key string) (Entry, bool) {
	v, found := m.cache.Get(key)
	if !found {
		return Entry{}, false
	}
	entry, ok := v.(Entry)
	if !ok {
		return Entry{}, false
	}
	return entry, true
}

func (m *Memory) Set(_ context.Context, key string, entry Entry, ttl time.Duration) {
	m.cache.Set(key, entry, ttl)
}

// Save persists the cache snapshot for the next run.
func (m *Memory) Save() error {
	if m.file == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.file), 0o755); err != nil {
		return err
	}
	return m.cache.SaveFile(m.file)
}
