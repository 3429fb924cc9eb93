package tmdb

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lepresidente/xmltv-enrich/internal/provider"
	tmdb "github.com/ryanbradynd05/go-tmdb"
)

// Search returns candidate summaries for a query, in TMDB ranking order.
func (p *Provider) Search(ctx context.Context, query provider.Query) ([]provider.Candidate, error) {
	options := map[string]string{"language": p.language}
	if query.Year != "" {
		if query.Kind == provider.KindMovie {
			options["year"] = query.Year
		} else {
			options["first_air_date_year"] = query.Year
		}
	}

	if err := p.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	if query.Kind == provider.KindMovie {
		results, err := p.client.SearchMovie(query.Title, options)
		if err != nil {
			return nil, p.mapError(err)
		}
		if results == nil {
			return nil, nil
		}
		candidates := make([]provider.Candidate, 0, len(results.Results))
		for i, movie := range results.Results {
			candidates = append(candidates, provider.Candidate{
				ID:         strconv.Itoa(movie.ID),
				Title:      movie.Title,
				Year:       yearOf(movie.ReleaseDate),
				PosterPath: movie.PosterPath,
				Rank:       i,
			})
		}
		return candidates, nil
	}

	results, err := p.client.SearchTv(query.Title, options)
	if err != nil {
		return nil, p.mapError(err)
	}
	if results == nil {
		return nil, nil
	}
	candidates := make([]provider.Candidate, 0, len(results.Results))
	for i := range results.Results {
		show := results.Results[i]
		candidates = append(candidates, provider.Candidate{
			ID:         strconv.Itoa(show.ID),
			Title:      show.Name,
			Year:       yearOf(show.FirstAirDate),
			PosterPath: show.PosterPath,
			Rank:       i,
		})
	}
	return candidates, nil
}

// Details fetches the full record for a selected candidate.
func (p *Provider) Details(ctx context.Context, candidate provider.Candidate, kind provider.Kind) (*provider.Record, error) {
	id, err := strconv.Atoi(candidate.ID)
	if err != nil {
		return nil, fmt.Errorf("tmdb: bad candidate id %q: %w", candidate.ID, err)
	}

	options := map[string]string{"language": p.language}

	if err := p.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	if kind == provider.KindMovie {
		movie, err := p.client.GetMovieInfo(id, options)
		if err != nil {
			return nil, p.mapError(err)
		}
		if movie == nil {
			return nil, notFound(fmt.Sprintf("movie %d not found", id))
		}
		return p.movieToRecord(movie), nil
	}

	show, err := p.client.GetTvInfo(id, options)
	if err != nil {
		return nil, p.mapError(err)
	}
	if show == nil {
		return nil, notFound(fmt.Sprintf("show %d not found", id))
	}
	return p.tvToRecord(show), nil
}

// EpisodeDetails fetches one episode of an already matched series.
func (p *Provider) EpisodeDetails(ctx context.Context, showID string, season, episode int) (*provider.Record, error) {
	id, err := strconv.Atoi(showID)
	if err != nil {
		return nil, fmt.Errorf("tmdb: bad show id %q: %w", showID, err)
	}

	if err := p.rateLimiter.wait(ctx); err != nil {
		return nil, err
	}

	ep, err := p.client.GetTvEpisodeInfo(id, season, episode, map[string]string{"language": p.language})
	if err != nil {
		return nil, p.mapError(err)
	}
	if ep == nil {
		return nil, notFound(fmt.Sprintf("episode S%02dE%02d not found", season, episode))
	}

	return &provider.Record{
		Provider:    providerName,
		ID:          strconv.Itoa(ep.ID),
		EpisodeName: ep.Name,
		Overview:    ep.Overview,
		Rating:      ep.VoteAverage,
		FetchedAt:   time.Now().UTC(),
	}, nil
}

func (p *Provider) movieToRecord(movie *tmdb.Movie) *provider.Record {
	genres := make([]string, 0, len(movie.Genres))
	for _, g := range movie.Genres {
		genres = append(genres, g.Name)
	}

	return &provider.Record{
		Provider:  providerName,
		ID:        strconv.Itoa(movie.ID),
		Title:     movie.Title,
		Year:      yearOf(movie.ReleaseDate),
		Overview:  movie.Overview,
		Rating:    movie.VoteAverage,
		Genres:    genres,
		Runtime:   int(movie.Runtime),
		PosterURL: p.posterURL(movie.PosterPath),
		FetchedAt: time.Now().UTC(),
	}
}

func (p *Provider) tvToRecord(show *tmdb.TV) *provider.Record {
	genres := make([]string, 0, len(show.Genres))
	for _, g := range show.Genres {
		genres = append(genres, g.Name)
	}

	return &provider.Record{
		Provider:  providerName,
		ID:        strconv.Itoa(show.ID),
		Title:     show.Name,
		Year:      yearOf(show.FirstAirDate),
		Overview:  show.Overview,
		Rating:    show.VoteAverage,
		Genres:    genres,
		PosterURL: p.posterURL(show.PosterPath),
		FetchedAt: time.Now().UTC(),
	}
}

func notFound(msg string) error {
	return &provider.ProviderError{
		Provider: providerName,
		Code:     provider.CodeNotFound,
		Message:  msg,
		Retry:    false,
	}
}

func yearOf(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}
