// Package provider defines the types shared by metadata providers and the
// enrichment engine.
package provider

import (
	"context"
	"fmt"
	"time"
)

// Kind classifies a guide entry for lookup purposes.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindSeries  Kind = "series"
	KindEpisode Kind = "episode"
)

// Query is a provider search request.
type Query struct {
	Title string
	Year  string
	Kind  Kind
}

// Candidate is one provider search result, in provider ranking order.
type Candidate struct {
	ID         string
	Title      string
	Year       string
	PosterPath string
	// Rank is the zero-based position in the provider's result list.
	Rank int
}

// Record is the metadata fetched for a matched candidate. Records are
// immutable once stored in the cache.
type Record struct {
	Provider    string    `json:"provider"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Year        string    `json:"year,omitempty"`
	Overview    string    `json:"overview,omitempty"`
	Rating      float32   `json:"rating,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
	Runtime     int       `json:"runtime,omitempty"`
	PosterURL   string    `json:"poster_url,omitempty"`
	EpisodeName string    `json:"episode_name,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Provider is a remote metadata source.
type Provider interface {
	Name() string
	// Search returns candidate summaries for the query, best first.
	Search(ctx context.Context, query Query) ([]Candidate, error)
	// Details resolves a candidate into a full record.
	Details(ctx context.Context, candidate Candidate, kind Kind) (*Record, error)
}

// EpisodeDetailer is implemented by providers that can resolve individual
// episodes of a matched series.
type EpisodeDetailer interface {
	EpisodeDetails(ctx context.Context, showID string, season, episode int) (*Record, error)
}

// CacheKey builds the canonical cache key for a lookup. Equal lookups from
// any run join on this key.
func CacheKey(kind Kind, name, year string, season, episode int) string {
	switch kind {
	case KindEpisode:
		return fmt.Sprintf("episode:%s:%s:%d:%d", name, year, season, episode)
	default:
		return fmt.Sprintf("%s:%s:%s", kind, name, year)
	}
}

// ProviderError carries a machine-readable failure class from a provider.
type ProviderError struct {
	Provider   string
	Code       string
	Message    string
	Retry      bool
	RetryAfter int // Seconds to wait before retry
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Error codes shared by all providers.
const (
	CodeAuthFailed  = "AUTH_FAILED"
	CodeRateLimited = "RATE_LIMITED"
	CodeNotFound    = "NOT_FOUND"
	CodeUnavailable = "UNAVAILABLE"
	CodeUnknown     = "UNKNOWN"
)
