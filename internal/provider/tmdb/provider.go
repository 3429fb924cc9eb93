// Package tmdb implements the metadata provider backed by The Movie
// Database.
package tmdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/lepresidente/xmltv-enrich/internal/provider"
	tmdb "github.com/ryanbradynd05/go-tmdb"
)

const (
	providerName = "tmdb"

	// Poster rendition requested for artwork downloads.
	posterSize = "w342"

	// Fallback when the configuration endpoint is unreachable.
	defaultImageBase = "https://image.tmdb.org/t/p/"
)

// Client is the subset of *tmdb.TMDb used by the provider, extracted for
// testing.
type Client interface {
	SearchMovie(name string, options map[string]string) (*tmdb.MovieSearchResults, error)
	SearchTv(name string, options map[string]string) (*tmdb.TvSearchResults, error)
	GetMovieInfo(id int, options map[string]string) (*tmdb.Movie, error)
	GetTvInfo(id int, options map[string]string) (*tmdb.TV, error)
	GetTvEpisodeInfo(showID, seasonNum, episodeNum int, options map[string]string) (*tmdb.TvEpisode, error)
	GetConfiguration() (*tmdb.Configuration, error)
}

// Provider implements provider.Provider for TMDB.
type Provider struct {
	client      Client
	language    string
	rateLimiter *rateLimiter

	imageOnce sync.Once
	imageBase string
}

// New creates a TMDB provider for the given API key.
func New(apiKey, language string) *Provider {
	if language == "" {
		language = "en-US"
	}
	return &Provider{
		client:      tmdb.Init(tmdb.Config{APIKey: apiKey}),
		language:    language,
		rateLimiter: newRateLimiter(38, 10*time.Second), // 38 requests per 10 seconds
	}
}

// NewWithClient creates a provider over an injected client, for tests.
func NewWithClient(client Client, language string) *Provider {
	p := New("", language)
	p.client = client
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Verify makes one cheap authenticated call so a bad API key fails the run
// up front instead of once per entry. Any failure other than AUTH_FAILED is
// swallowed: the run can proceed and degrade per entry.
func (p *Provider) Verify(ctx context.Context) error {
	if err := p.rateLimiter.wait(ctx); err != nil {
		return err
	}
	_, err := p.client.GetConfiguration()
	if err == nil {
		return nil
	}
	mapped := p.mapError(err)
	var provErr *provider.ProviderError
	if errors.As(mapped, &provErr) && provErr.Code == provider.CodeAuthFailed {
		return mapped
	}
	return nil
}

// mapError maps TMDB errors to provider errors.
func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "401") || strings.Contains(errStr, "unauthorized") || strings.Contains(errStr, "invalid api key") {
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "TMDB authentication failed: " + err.Error(),
			Retry:    false,
		}
	}
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    "TMDB rate limit exceeded",
			Retry:      true,
			RetryAfter: 10,
		}
	}
	if strings.Contains(errStr, "503") || strings.Contains(errStr, "unavailable") {
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeUnavailable,
			Message:    "TMDB service unavailable",
			Retry:      true,
			RetryAfter: 30,
		}
	}

	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeUnknown,
		Message:  "TMDB error: " + err.Error(),
		Retry:    false,
	}
}

// posterURL expands a TMDB poster path into a downloadable URL using the
// API-reported image base. The base is fetched once per provider instance.
func (p *Provider) posterURL(path string) string {
	if path == "" {
		return ""
	}
	p.imageOnce.Do(func() {
		p.imageBase = defaultImageBase
		if conf, err := p.client.GetConfiguration(); err == nil && conf != nil && conf.Images.BaseURL != "" {
			p.imageBase = conf.Images.BaseURL
		}
	})
	return p.imageBase + posterSize + path
}
