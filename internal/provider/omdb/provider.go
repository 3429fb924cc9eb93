// Package omdb supplements matched records with IMDb-scale ratings and plot
// text from the Open Movie Database.
package omdb

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Digital-Shane/omdb"
	"github.com/lepresidente/xmltv-enrich/internal/provider"
)

const providerName = "omdb"

// Provider wraps the OMDb client.
type Provider struct {
	client *omdb.Client
}

// New creates an OMDb provider. A nil httpClient gets a 10 second timeout
// default.
func New(apiKey string, httpClient *http.Client) *Provider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Provider{client: omdb.NewClient(strings.TrimSpace(apiKey), httpClient)}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// Lookup fetches the OMDb record for a title. Only the fields used to
// supplement a TMDB match are populated.
func (p *Provider) Lookup(ctx context.Context, title, year string, kind provider.Kind) (*provider.Record, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     "INVALID_REQUEST",
			Message:  "lookup requires a title",
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	searchType := "movie"
	if kind != provider.KindMovie {
		searchType = "series"
	}
	query := omdb.QueryData{
		Title:      title,
		Year:       year,
		SearchType: searchType,
		Plot:       "full",
	}

	result, err := p.client.SearchByTitle(query)
	if err != nil {
		return nil, p.mapError(err)
	}

	switch r := result.(type) {
	case omdb.MovieResult:
		return movieToRecord(&r), nil
	case *omdb.MovieResult:
		return movieToRecord(r), nil
	case omdb.SeriesResult:
		return seriesToRecord(&r), nil
	case *omdb.SeriesResult:
		return seriesToRecord(r), nil
	default:
		return nil, &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  "title not found",
		}
	}
}

func movieToRecord(result *omdb.MovieResult) *provider.Record {
	return &provider.Record{
		Provider:  providerName,
		ID:        result.ImdbID,
		Title:     result.Title,
		Year:      omdb.FirstYear(result.Year),
		Overview:  result.Plot,
		Rating:    omdb.ParseRating(result.ImdbRating),
		Genres:    omdb.SplitAndTrim(result.Genre),
		FetchedAt: time.Now().UTC(),
	}
}

func seriesToRecord(result *omdb.SeriesResult) *provider.Record {
	return &provider.Record{
		Provider:  providerName,
		ID:        result.ImdbID,
		Title:     result.Title,
		Year:      omdb.FirstYear(result.Year),
		Overview:  result.Plot,
		Rating:    omdb.ParseRating(result.ImdbRating),
		Genres:    omdb.SplitAndTrim(result.Genre),
		FetchedAt: time.Now().UTC(),
	}
}

func (p *Provider) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "invalid api key"), strings.Contains(lower, "missing omdb api key"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeAuthFailed,
			Message:  "OMDb authentication failed: " + msg,
			Retry:    false,
		}
	case strings.Contains(lower, "request limit reached"), strings.Contains(lower, "429"):
		return &provider.ProviderError{
			Provider:   providerName,
			Code:       provider.CodeRateLimited,
			Message:    "OMDb rate limit exceeded",
			Retry:      true,
			RetryAfter: 10,
		}
	case strings.Contains(lower, "not found"):
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeNotFound,
			Message:  msg,
			Retry:    false,
		}
	default:
		return &provider.ProviderError{
			Provider: providerName,
			Code:     provider.CodeUnknown,
			Message:  "OMDb error: " + msg,
			Retry:    false,
		}
	}
}
