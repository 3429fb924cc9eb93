// Package cache persists lookup results between runs so repeated guide
// processing does not hammer the metadata provider.
package cache

import (
	"context"
	"time"

	"github.com/lepresidente/xmltv-enrich/internal/provider"
)

// Entry is one cached lookup result. A NotFound entry records that the
// provider had nothing for the key, so future runs skip the lookup until
// the entry expires.
type Entry struct {
	Record   *provider.Record `json:"record,omitempty"`
	NotFound bool             `json:"not_found,omitempty"`
}

// Store is the metadata cache contract. Implementations must be safe for
// concurrent use; last-writer-wins on a key is acceptable because writes
// for equal keys are idempotent. A backend failure must surface as a miss,
// never as an error: correctness of the run does not depend on the cache.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool)
	Set(ctx context.Context, key string, entry Entry, ttl time.Duration)
}

// Nop is a Store that caches nothing. It stands in when no backend is
// usable at all.
type Nop struct{}

func (Nop) Get(context.Context, string) (Entry, bool)         { return Entry{}, false }
func (Nop) Set(context.Context, string, Entry, time.Duration) {}
