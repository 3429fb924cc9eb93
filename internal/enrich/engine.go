// Package enrich runs the guide enrichment pipeline: classify each
// programme, resolve it against the metadata provider through the cache,
// and merge the result back into the document.
package enrich

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-hclog"
	csmap "github.com/mhmtszr/concurrent-swiss-map"

	"github.com/lepresidente/xmltv-enrich/internal/provider"
	"github.com/lepresidente/xmltv-enrich/internal/title"
	"github.com/lepresidente/xmltv-enrich/internal/xmltv"
)

// Supplementer fills rating and plot gaps in a matched record from a
// secondary source.
type Supplementer interface {
	Lookup(ctx context.Context, title, year string, kind provider.Kind) (*provider.Record, error)
}

// PosterFetcher materializes a poster reference as a local file path.
type PosterFetcher interface {
	Fetch(ctx context.Context, ref string) (string, error)
}

// Config assembles an Engine.
type Config struct {
	Matcher *Matcher
	// Supplement is optional; nil disables secondary lookups.
	Supplement Supplementer
	// Artwork is optional; nil disables poster downloads.
	Artwork PosterFetcher
	Workers int
	Log     hclog.Logger
}

// Summary reports what one Run did.
type Summary struct {
	Programmes    int
	Enriched      int
	Misses        int
	Skipped       int
	Failures      int
	ArtworkErrors int
}

// Engine enriches a guide document with a bounded worker pool. Equal titles
// are resolved once per run through an in-run memo, so duplicate lookups
// stay cheap even when the cache backend is unavailable.
type Engine struct {
	matcher    *Matcher
	supplement Supplementer
	artwork    PosterFetcher
	workers    int
	log        hclog.Logger

	memoMu sync.Mutex
	memo   *csmap.CsMap[string, *memoCell]

	sumMu   sync.Mutex
	summary Summary
}

// memoCell is a lazily-resolved lookup shared by every programme with the
// same key within one run.
type memoCell struct {
	once   sync.Once
	record *provider.Record
	ep     *provider.Record
	err    error
}

// New creates an Engine. Worker counts below one are clamped to one.
func New(cfg Config) *Engine {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	log := cfg.Log
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Engine{
		matcher:    cfg.Matcher,
		supplement: cfg.Supplement,
		artwork:    cfg.Artwork,
		workers:    workers,
		log:        log.Named("enrich"),
		memo:       csmap.Create[string, *memoCell](),
	}
}

// Run enriches every programme in doc and returns counts of what happened.
// Cancellation stops feeding new work; programmes already picked up finish
// or abort on their own context checks, and the document stays valid either
// way since entries are only ever modified in place.
func (e *Engine) Run(ctx context.Context, doc *xmltv.TV) Summary {
	e.sumMu.Lock()
	e.summary = Summary{Programmes: len(doc.Programmes)}
	e.sumMu.Unlock()

	// Deterministic local rewrites happen up front, outside the pool.
	for _, p := range doc.Programmes {
		LiftEpisodeNumbers(p)
		ExtractSubtitle(p)
		FlagHD(p)
	}

	workers := e.workers
	if n := len(doc.Programmes); n < workers {
		workers = n
	}

	workCh := make(chan *xmltv.Programme)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range workCh {
				if ctx.Err() != nil {
					continue
				}
				e.enrichOne(ctx, p)
			}
		}()
	}

feed:
	for _, p := range doc.Programmes {
		select {
		case <-ctx.Done():
			break feed
		case workCh <- p:
		}
	}
	close(workCh)
	wg.Wait()

	e.sumMu.Lock()
	defer e.sumMu.Unlock()
	return e.summary
}

func (e *Engine) enrichOne(ctx context.Context, p *xmltv.Programme) {
	cls := Classify(p)
	if !cls.Eligible {
		e.bump(func(s *Summary) { s.Skipped++ })
		return
	}

	key := title.Normalize(p.Title())
	if key.Primary == "" {
		e.bump(func(s *Summary) { s.Skipped++ })
		return
	}

	switch cls.Kind {
	case provider.KindEpisode:
		cell := e.memoize(fmt.Sprintf("episode:%s:%s:%d:%d", key.Primary, key.Year, cls.Season, cls.Episode), func(c *memoCell) {
			c.record, c.ep, c.err = e.matcher.ResolveEpisode(ctx, key, cls.Season, cls.Episode)
		})
		if !e.checkResolved(p, key, cell) {
			return
		}
		ApplyEpisode(p, cell.record, cell.ep, e.poster(ctx, cell.record.PosterURL))

	case provider.KindMovie:
		cell := e.resolveTitle(ctx, key, provider.KindMovie)
		if !e.checkResolved(p, key, cell) {
			return
		}
		ApplyMovie(p, cell.record, e.poster(ctx, cell.record.PosterURL))

	default:
		cell := e.resolveTitle(ctx, key, provider.KindSeries)
		if !e.checkResolved(p, key, cell) {
			return
		}
		ApplySeries(p, cell.record, e.poster(ctx, cell.record.PosterURL))
	}

	e.bump(func(s *Summary) { s.Enriched++ })
}

// resolveTitle resolves a movie or series key once per run, applying the
// secondary supplement to the shared result.
func (e *Engine) resolveTitle(ctx context.Context, key title.Key, kind provider.Kind) *memoCell {
	return e.memoize(string(kind)+":"+key.Primary+":"+key.Year, func(c *memoCell) {
		rec, err := e.matcher.Resolve(ctx, key, kind)
		if err != nil || rec == nil {
			c.record, c.err = rec, err
			return
		}
		c.record = e.supplemented(ctx, rec, kind)
	})
}

// memoize returns the cell for a key, running resolve exactly once across
// all workers.
func (e *Engine) memoize(memoKey string, resolve func(*memoCell)) *memoCell {
	e.memoMu.Lock()
	cell, ok := e.memo.Load(memoKey)
	if !ok {
		cell = &memoCell{}
		e.memo.Store(memoKey, cell)
	}
	e.memoMu.Unlock()

	cell.once.Do(func() { resolve(cell) })
	return cell
}

// checkResolved counts misses and failures; true means the cell holds a
// usable record.
func (e *Engine) checkResolved(p *xmltv.Programme, key title.Key, cell *memoCell) bool {
	if cell.err != nil {
		e.log.Warn("lookup failed, leaving entry unchanged",
			"title", key.Display, "error", cell.err)
		e.bump(func(s *Summary) { s.Failures++ })
		return false
	}
	if cell.record == nil {
		e.log.Debug("no metadata match", "title", key.Display, "programme", p.Title())
		e.bump(func(s *Summary) { s.Misses++ })
		return false
	}
	return true
}

// supplemented fills rating and plot gaps from the secondary source. The
// supplement is best effort; its failures never fail the lookup.
func (e *Engine) supplemented(ctx context.Context, rec *provider.Record, kind provider.Kind) *provider.Record {
	if e.supplement == nil || (rec.Rating > 0 && rec.Overview != "") {
		return rec
	}

	sup, err := e.supplement.Lookup(ctx, rec.Title, rec.Year, kind)
	if err != nil || sup == nil {
		if err != nil {
			e.log.Debug("supplement lookup failed", "title", rec.Title, "error", err)
		}
		return rec
	}

	merged := *rec
	if merged.Rating == 0 && sup.Rating > 0 {
		merged.Rating = sup.Rating
	}
	if merged.Overview == "" && sup.Overview != "" {
		merged.Overview = sup.Overview
	}
	if len(merged.Genres) == 0 && len(sup.Genres) > 0 {
		merged.Genres = sup.Genres
	}
	return &merged
}

// poster fetches the artwork behind ref, returning "" when artwork is
// disabled, ref is empty, or the download fails. Artwork problems never
// block metadata enrichment.
func (e *Engine) poster(ctx context.Context, ref string) string {
	if e.artwork == nil || ref == "" {
		return ""
	}
	path, err := e.artwork.Fetch(ctx, ref)
	if err != nil {
		e.log.Warn("poster fetch failed", "ref", ref, "error", err)
		e.bump(func(s *Summary) { s.ArtworkErrors++ })
		return ""
	}
	return path
}

func (e *Engine) bump(f func(*Summary)) {
	e.sumMu.Lock()
	f(&e.summary)
	e.sumMu.Unlock()
}
