package enrich

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-hclog"

	"github.com/lepresidente/xmltv-enrich/internal/cache"
	"github.com/lepresidente/xmltv-enrich/internal/provider"
	"github.com/lepresidente/xmltv-enrich/internal/xmltv"
)

// catalogProvider resolves a fixed set of titles, keyed case-insensitively.
func catalogProvider(records map[string]*provider.Record) *fakeProvider {
	find := func(q string) *provider.Record {
		for name, rec := range records {
			if strings.EqualFold(name, q) {
				return rec
			}
		}
		return nil
	}
	p := &fakeProvider{}
	p.searchFunc = func(_ context.Context, q provider.Query) ([]provider.Candidate, error) {
		rec := find(q.Title)
		if rec == nil {
			return nil, nil
		}
		return []provider.Candidate{{ID: rec.ID, Title: rec.Title, Year: rec.Year}}, nil
	}
	p.detailsFunc = func(_ context.Context, c provider.Candidate, _ provider.Kind) (*provider.Record, error) {
		for _, rec := range records {
			if rec.ID == c.ID {
				return rec, nil
			}
		}
		return nil, &provider.ProviderError{Provider: "fake", Code: provider.CodeNotFound, Message: "gone"}
	}
	return p
}

type fakeSupplement struct {
	lookupFunc func(ctx context.Context, title, year string, kind provider.Kind) (*provider.Record, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeSupplement) Lookup(ctx context.Context, title, year string, kind provider.Kind) (*provider.Record, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.lookupFunc(ctx, title, year, kind)
}

type fakePosters struct {
	mu      sync.Mutex
	fetched []string
	err     error
}

func (f *fakePosters) Fetch(_ context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.fetched = append(f.fetched, ref)
	return "artwork/" + ref, nil
}

func testEngine(p provider.Provider, store cache.Store, opts ...func(*Config)) *Engine {
	cfg := Config{
		Matcher: NewMatcher(p, store, hclog.NewNullLogger(), 1, time.Hour),
		Workers: 4,
		Log:     hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

func testGuide() *xmltv.TV {
	movie := programme("The Matrix (1999)", "20260115200000 +0000", "20260115220000 +0000")
	ep := programme("Mysteries", "20260116200000 +0000", "20260116204500 +0000")
	ep.AddEpisodeNumXMLTV(2, 4)
	series1 := programme("The News", "20260117200000 +0000", "20260117203000 +0000")
	series2 := programme("The News", "20260118200000 +0000", "20260118203000 +0000")
	unknown := programme("Totally Obscure", "20260119200000 +0000", "20260119203000 +0000")
	marathon := programme("Election Night", "20260120200000 +0000", "20260121030000 +0000")

	return &xmltv.TV{
		Channels:   []xmltv.Channel{{ID: "test.ch", DisplayName: []xmltv.Text{{Value: "Test"}}}},
		Programmes: []*xmltv.Programme{movie, ep, series1, series2, unknown, marathon},
	}
}

func testCatalog() map[string]*provider.Record {
	return map[string]*provider.Record{
		"The Matrix": {
			Provider: "fake", ID: "603", Title: "The Matrix", Year: "1999",
			Overview: "A hacker learns the truth.", Rating: 8.2,
			Genres: []string{"Action"}, Runtime: 136, PosterURL: "matrix.jpg",
		},
		"Mysteries": {
			Provider: "fake", ID: "42", Title: "Mysteries",
			Overview: "Crime of the week.", Rating: 7.1,
			Genres: []string{"Crime"}, PosterURL: "mysteries.jpg",
		},
		"The News": {
			Provider: "fake", ID: "7", Title: "The News",
			Overview: "Daily headlines.", Rating: 6.0, PosterURL: "news.jpg",
		},
	}
}

func TestEngineRun(t *testing.T) {
	p := catalogProvider(testCatalog())
	p.episodeFunc = func(_ context.Context, showID string, season, episode int) (*provider.Record, error) {
		return &provider.Record{
			Provider: "fake", ID: "1042",
			EpisodeName: "The Heist", Overview: "One last job.", Rating: 8.4,
		}, nil
	}
	posters := &fakePosters{}
	engine := testEngine(p, newMemStore(), func(c *Config) { c.Artwork = posters })

	doc := testGuide()
	summary := engine.Run(context.Background(), doc)

	want := Summary{Programmes: 6, Enriched: 4, Misses: 1, Skipped: 1}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("Run() summary mismatch (-want +got):\n%s", diff)
	}

	movie := doc.Programmes[0]
	if got := movie.Desc(); got != "A hacker learns the truth." {
		t.Errorf("movie desc = %q, want overview", got)
	}
	if !movie.HasCategory("movie") || !movie.HasCategory("Action") {
		t.Errorf("movie categories = %+v, want movie and Action", movie.Categories)
	}

	ep := doc.Programmes[1]
	if got := ep.SubTitle(); got != "The Heist" {
		t.Errorf("episode sub-title = %q, want %q", got, "The Heist")
	}
	if diff := cmp.Diff([]xmltv.StarRating{{Value: "8.4/10"}}, ep.StarRatings); diff != "" {
		t.Errorf("episode rating mismatch (-want +got):\n%s", diff)
	}

	unknown := doc.Programmes[4]
	if got := unknown.Desc(); got != "" {
		t.Errorf("unmatched programme gained a desc: %q", got)
	}
	if len(unknown.Icons) != 0 {
		t.Errorf("unmatched programme gained icons: %+v", unknown.Icons)
	}

	marathon := doc.Programmes[5]
	if len(marathon.StarRatings) != 0 {
		t.Errorf("skipped programme gained ratings: %+v", marathon.StarRatings)
	}
}

func TestEngineDeduplicatesLookupsWithoutCache(t *testing.T) {
	p := catalogProvider(testCatalog())
	engine := testEngine(p, cache.Nop{})

	doc := &xmltv.TV{Programmes: []*xmltv.Programme{
		programme("The News", "20260117200000", "20260117203000"),
		programme("The News", "20260118200000", "20260118203000"),
		programme("The News", "20260119200000", "20260119203000"),
	}}
	engine.Run(context.Background(), doc)

	if p.searchCount() != 1 {
		t.Errorf("provider searches = %d, want 1 for three equal titles", p.searchCount())
	}
}

func TestEngineSupplementFillsGaps(t *testing.T) {
	records := map[string]*provider.Record{
		"Obscure Film": {Provider: "fake", ID: "9", Title: "Obscure Film"},
	}
	sup := &fakeSupplement{
		lookupFunc: func(_ context.Context, title, year string, _ provider.Kind) (*provider.Record, error) {
			return &provider.Record{
				Provider: "omdb", ID: "tt0000001", Title: title,
				Rating: 6.7, Overview: "A forgotten classic.",
			}, nil
		},
	}
	engine := testEngine(catalogProvider(records), newMemStore(), func(c *Config) { c.Supplement = sup })

	p := programme("Obscure Film", "20260115200000", "20260115220000")
	doc := &xmltv.TV{Programmes: []*xmltv.Programme{p}}
	engine.Run(context.Background(), doc)

	if diff := cmp.Diff([]xmltv.StarRating{{Value: "6.7/10"}}, p.StarRatings); diff != "" {
		t.Errorf("supplemented rating mismatch (-want +got):\n%s", diff)
	}
	if got := p.Desc(); got != "A forgotten classic." {
		t.Errorf("supplemented desc = %q, want plot", got)
	}
}

func TestEngineSupplementFailureIsNotFatal(t *testing.T) {
	records := map[string]*provider.Record{
		"Obscure Film": {Provider: "fake", ID: "9", Title: "Obscure Film", Overview: "Primary plot."},
	}
	sup := &fakeSupplement{
		lookupFunc: func(context.Context, string, string, provider.Kind) (*provider.Record, error) {
			return nil, &provider.ProviderError{Provider: "omdb", Code: provider.CodeUnknown, Message: "boom"}
		},
	}
	engine := testEngine(catalogProvider(records), newMemStore(), func(c *Config) { c.Supplement = sup })

	p := programme("Obscure Film", "20260115200000", "20260115220000")
	summary := engine.Run(context.Background(), &xmltv.TV{Programmes: []*xmltv.Programme{p}})

	if summary.Enriched != 1 || summary.Failures != 0 {
		t.Errorf("summary = %+v, want one enriched and no failures", summary)
	}
	if got := p.Desc(); got != "Primary plot." {
		t.Errorf("desc = %q, want primary overview", got)
	}
}

func TestEngineArtworkFailureIsNotFatal(t *testing.T) {
	p := catalogProvider(testCatalog())
	posters := &fakePosters{err: context.DeadlineExceeded}
	engine := testEngine(p, newMemStore(), func(c *Config) { c.Artwork = posters })

	movie := programme("The Matrix", "20260115200000", "20260115220000")
	summary := engine.Run(context.Background(), &xmltv.TV{Programmes: []*xmltv.Programme{movie}})

	if summary.Enriched != 1 || summary.ArtworkErrors != 1 {
		t.Errorf("summary = %+v, want enriched with one artwork error", summary)
	}
	if got := movie.Desc(); got != "A hacker learns the truth." {
		t.Errorf("desc = %q, metadata should apply despite artwork failure", got)
	}
	if len(movie.Icons) != 0 {
		t.Errorf("icons = %+v, want none after failed fetch", movie.Icons)
	}
}

func TestEngineLookupFailureLeavesEntryUnchanged(t *testing.T) {
	p := &fakeProvider{
		searchFunc: func(context.Context, provider.Query) ([]provider.Candidate, error) {
			return nil, &provider.ProviderError{Provider: "fake", Code: provider.CodeUnavailable, Message: "down"}
		},
	}
	engine := testEngine(p, newMemStore())

	entry := programme("The News", "20260117200000", "20260117203000")
	entry.SetDesc("Original text.")
	summary := engine.Run(context.Background(), &xmltv.TV{Programmes: []*xmltv.Programme{entry}})

	if summary.Failures != 1 || summary.Enriched != 0 {
		t.Errorf("summary = %+v, want one failure", summary)
	}
	if got := entry.Desc(); got != "Original text." {
		t.Errorf("desc = %q, want original preserved", got)
	}
}

func TestEngineRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	doc := testGuide()

	p1 := catalogProvider(testCatalog())
	testEngine(p1, store).Run(context.Background(), doc)
	after1, err := xmltv.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	p2 := catalogProvider(testCatalog())
	testEngine(p2, store).Run(context.Background(), doc)
	after2, err := xmltv.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	if diff := cmp.Diff(string(after1), string(after2)); diff != "" {
		t.Errorf("second run changed the document (-first +second):\n%s", diff)
	}
}

func TestEngineCanceledContextLeavesGuideValid(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := catalogProvider(testCatalog())
	engine := testEngine(p, newMemStore())
	doc := testGuide()

	engine.Run(ctx, doc)

	if _, err := xmltv.Marshal(doc); err != nil {
		t.Errorf("Marshal() after canceled run error = %v", err)
	}
	if p.searchCount() != 0 {
		t.Errorf("provider searches after pre-canceled run = %d, want 0", p.searchCount())
	}
}
