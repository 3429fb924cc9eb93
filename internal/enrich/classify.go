package enrich

import (
	"time"

	"github.com/lepresidente/xmltv-enrich/internal/provider"
	"github.com/lepresidente/xmltv-enrich/internal/title"
	"github.com/lepresidente/xmltv-enrich/internal/xmltv"
)

// Duration gates carried over from the guide heuristics: movie candidates
// run between 90 minutes and 4 hours, series lookups are skipped above 90
// minutes.
const (
	movieMinDuration  = 90 * time.Minute
	movieMaxDuration  = 4 * time.Hour
	seriesMaxDuration = 90 * time.Minute
)

// Classification is the lookup decision for one programme.
type Classification struct {
	Kind    provider.Kind
	Season  int
	Episode int
	// Eligible is false when the entry should pass through unenriched
	// (unparsable times, durations outside the heuristic gates).
	Eligible bool
}

// Classify decides whether a programme is a movie, a series showing, or a
// numbered episode. The rules are ordered; ambiguity lands on series, the
// low-risk default for repeated programming.
func Classify(p *xmltv.Programme) Classification {
	d, haveDuration := p.Duration()

	// Explicit episode numbering wins over everything.
	if season, episode, ok := p.EpisodeNumXMLTV(); ok {
		return Classification{
			Kind:     provider.KindEpisode,
			Season:   season,
			Episode:  episode,
			Eligible: haveDuration && d <= seriesMaxDuration,
		}
	}
	if season, episode, ok := title.ParseEpisodeHint(p.Title()); ok {
		return Classification{
			Kind:     provider.KindEpisode,
			Season:   season,
			Episode:  episode,
			Eligible: haveDuration && d <= seriesMaxDuration,
		}
	}

	// An explicit movie category trusts the guide regardless of duration.
	if p.HasCategory("movie") || p.HasCategory("film") {
		return Classification{Kind: provider.KindMovie, Eligible: true}
	}

	// No numbering and a feature-length slot: probably a movie.
	if haveDuration && d > movieMinDuration && d <= movieMaxDuration {
		return Classification{Kind: provider.KindMovie, Eligible: true}
	}

	return Classification{
		Kind:     provider.KindSeries,
		Eligible: haveDuration && d <= seriesMaxDuration,
	}
}
