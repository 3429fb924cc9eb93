package enrich

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/lepresidente/xmltv-enrich/internal/cache"
	"github.com/lepresidente/xmltv-enrich/internal/provider"
	"github.com/lepresidente/xmltv-enrich/internal/title"
)

// Matcher resolves a lookup key against a provider through the cache. Every
// outcome, hit or not-found, is written back so later runs and duplicate
// titles within a run skip the network entirely.
type Matcher struct {
	provider    provider.Provider
	cache       cache.Store
	log         hclog.Logger
	maxAttempts int
	ttl         time.Duration
}

// NewMatcher wires a provider to a cache store. maxAttempts bounds retries
// on retryable provider errors; ttl governs both hit and not-found entries.
func NewMatcher(p provider.Provider, store cache.Store, log hclog.Logger, maxAttempts int, ttl time.Duration) *Matcher {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Matcher{
		provider:    p,
		cache:       store,
		log:         log.Named("matcher"),
		maxAttempts: maxAttempts,
		ttl:         ttl,
	}
}

// Resolve looks up a title key as the given kind. A (nil, nil) return is a
// definitive miss: either a cached not-found entry or an exhausted variant
// list, in which case a not-found sentinel is stored under the primary key.
func (m *Matcher) Resolve(ctx context.Context, key title.Key, kind provider.Kind) (*provider.Record, error) {
	searchKind := kind
	if searchKind == provider.KindEpisode {
		searchKind = provider.KindSeries
	}

	for _, v := range key.Variants {
		ck := provider.CacheKey(searchKind, v.Title, v.Year, 0, 0)
		if entry, ok := m.cache.Get(ctx, ck); ok {
			if entry.NotFound {
				return nil, nil
			}
			if entry.Record != nil {
				return entry.Record, nil
			}
		}

		query := provider.Query{Title: key.Display, Year: v.Year, Kind: searchKind}
		var candidates []provider.Candidate
		err := m.retry(ctx, func() error {
			var serr error
			candidates, serr = m.provider.Search(ctx, query)
			return serr
		})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		if len(candidates) == 0 {
			continue
		}

		best := SelectCandidate(key, candidates)
		var rec *provider.Record
		err = m.retry(ctx, func() error {
			var derr error
			rec, derr = m.provider.Details(ctx, best, searchKind)
			return derr
		})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}

		m.cache.Set(ctx, ck, cache.Entry{Record: rec}, m.ttl)
		return rec, nil
	}

	// Nothing matched under any variant. Remember that under the primary
	// key so the next run does not repeat the search.
	primary := provider.CacheKey(searchKind, key.Primary, "", 0, 0)
	m.cache.Set(ctx, primary, cache.Entry{NotFound: true}, m.ttl)
	m.log.Debug("no match", "title", key.Display, "kind", kind)
	return nil, nil
}

// ResolveEpisode resolves the series behind key and then the numbered
// episode, both through the cache. season and episode are one-based. The
// series record is returned alongside so callers can fall back to series
// fields when the episode record is sparse.
func (m *Matcher) ResolveEpisode(ctx context.Context, key title.Key, season, episode int) (series, ep *provider.Record, err error) {
	series, err = m.Resolve(ctx, key, provider.KindSeries)
	if err != nil || series == nil {
		return series, nil, err
	}

	detailer, ok := m.provider.(provider.EpisodeDetailer)
	if !ok {
		return series, nil, nil
	}

	ck := provider.CacheKey(provider.KindEpisode, key.Primary, key.Year, season, episode)
	if entry, found := m.cache.Get(ctx, ck); found {
		if entry.NotFound {
			return series, nil, nil
		}
		if entry.Record != nil {
			return series, entry.Record, nil
		}
	}

	err = m.retry(ctx, func() error {
		var derr error
		ep, derr = detailer.EpisodeDetails(ctx, series.ID, season, episode)
		return derr
	})
	if err != nil {
		if isNotFound(err) {
			m.cache.Set(ctx, ck, cache.Entry{NotFound: true}, m.ttl)
			return series, nil, nil
		}
		return series, nil, err
	}

	m.cache.Set(ctx, ck, cache.Entry{Record: ep}, m.ttl)
	return series, ep, nil
}

// SelectCandidate picks the best match from a non-empty candidate list:
// exact normalized-title matches beat everything, a matching year breaks
// ties, and provider ranking decides the rest.
func SelectCandidate(key title.Key, candidates []provider.Candidate) provider.Candidate {
	ranked := make([]provider.Candidate, len(candidates))
	copy(ranked, candidates)

	score := func(c provider.Candidate) int {
		s := 0
		if title.NormalizeKey(c.Title) == key.Primary {
			s += 2
		}
		if key.Year != "" && c.Year == key.Year {
			s++
		}
		return s
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := score(ranked[i]), score(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].Rank < ranked[j].Rank
	})
	return ranked[0]
}

// retry runs op, backing off and repeating on retryable provider errors up
// to maxAttempts. The backoff doubles per attempt but is bounded, and a
// provider-supplied Retry-After extends it.
func (m *Matcher) retry(ctx context.Context, op func() error) error {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		var perr *provider.ProviderError
		if !errors.As(err, &perr) || !perr.Retry || attempt >= m.maxAttempts {
			return err
		}

		wait := time.Duration(2<<uint(min(attempt, 4))) * time.Second
		if after := time.Duration(perr.RetryAfter) * time.Second; after > wait {
			wait = after
		}
		m.log.Debug("retrying provider call", "attempt", attempt, "wait", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func isNotFound(err error) bool {
	var perr *provider.ProviderError
	return errors.As(err, &perr) && perr.Code == provider.CodeNotFound
}
