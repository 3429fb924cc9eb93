// Package cmd wires the CLI: flags, configuration, and the enrichment run.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/lepresidente/xmltv-enrich/internal/artwork"
	"github.com/lepresidente/xmltv-enrich/internal/cache"
	"github.com/lepresidente/xmltv-enrich/internal/config"
	"github.com/lepresidente/xmltv-enrich/internal/enrich"
	omdbprov "github.com/lepresidente/xmltv-enrich/internal/provider/omdb"
	tmdbprov "github.com/lepresidente/xmltv-enrich/internal/provider/tmdb"
	"github.com/lepresidente/xmltv-enrich/internal/xmltv"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xmltv-enrich [guide.xml]",
	Short: "Enrich an XMLTV guide with movie and series metadata",
	Long: `xmltv-enrich reads an XMLTV guide, looks up each movie and series against
TMDB (with optional OMDb supplements), and writes an enriched guide with
descriptions, ratings, genres, episode titles, and poster artwork.

Lookups are cached between runs, so reprocessing tomorrow's guide only
fetches what yesterday's did not. The guide is read from the file argument,
or from standard input when no argument is given.`,
	Args:          cobra.MaximumNArgs(1),
	RunE:          run,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	outputPath string
	artworkDir string
	workers    int
	noArtwork  bool
	verbose    bool
	debugLog   bool
)

func init() {
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "enhanced-xmltv.xml", "Path for the enriched guide")
	rootCmd.Flags().StringVar(&artworkDir, "artwork", "", "Directory for poster downloads (overrides config)")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "Concurrent lookup workers (overrides config)")
	rootCmd.Flags().BoolVar(&noArtwork, "no-artwork", false, "Skip poster downloads")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log progress at info level")
	rootCmd.Flags().BoolVarP(&debugLog, "debug", "d", false, "Log at debug level")
}

func run(cmd *cobra.Command, args []string) error {
	log := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.TMDBAPIKey == "" {
		return fmt.Errorf("no TMDB API key configured: set tmdb_api_key in the config file or the TMDB_API environment variable")
	}
	if workers > 0 {
		cfg.WorkerCount = workers
	}
	if artworkDir != "" {
		cfg.ArtworkDir = artworkDir
	}

	doc, err := loadGuide(args)
	if err != nil {
		return err
	}
	log.Info("guide loaded", "channels", len(doc.Channels), "programmes", len(doc.Programmes))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tmdb := tmdbprov.New(cfg.TMDBAPIKey, cfg.TMDBLanguage)
	if err := tmdb.Verify(ctx); err != nil {
		return fmt.Errorf("TMDB key check failed: %w", err)
	}

	ttl := time.Duration(cfg.CacheTTLDays) * 24 * time.Hour
	store, flush := openCache(cfg, ttl, log)
	defer flush()

	var supplement enrich.Supplementer
	if cfg.OMDBAPIKey != "" {
		supplement = omdbprov.New(cfg.OMDBAPIKey, nil)
	}

	var posters enrich.PosterFetcher
	if !noArtwork {
		fetcher, err := artwork.New(cfg.ArtworkDir, nil, log)
		if err != nil {
			return err
		}
		posters = fetcher
	}

	engine := enrich.New(enrich.Config{
		Matcher:    enrich.NewMatcher(tmdb, store, log, cfg.MaxAttempts, ttl),
		Supplement: supplement,
		Artwork:    posters,
		Workers:    cfg.WorkerCount,
		Log:        log,
	})

	summary := engine.Run(ctx, doc)
	log.Info("enrichment finished",
		"programmes", summary.Programmes,
		"enriched", summary.Enriched,
		"misses", summary.Misses,
		"skipped", summary.Skipped,
		"failures", summary.Failures,
		"artwork_errors", summary.ArtworkErrors,
	)

	// The enriched guide is written even on cancellation; entries are only
	// ever modified in place, so a partial run is still a valid document.
	if err := xmltv.Write(doc, outputPath); err != nil {
		return fmt.Errorf("write guide: %w", err)
	}
	log.Info("guide written", "path", outputPath)

	return ctx.Err()
}

func newLogger() hclog.Logger {
	level := hclog.Warn
	if verbose {
		level = hclog.Info
	}
	if debugLog {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "xmltv-enrich",
		Level:  level,
		Output: os.Stderr,
	})
}

func loadGuide(args []string) (*xmltv.TV, error) {
	if len(args) == 1 {
		return xmltv.Load(args[0])
	}
	doc, err := xmltv.Parse(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read guide from stdin: %w", err)
	}
	return doc, nil
}

// openCache selects the cache backend: Redis when a host is configured,
// otherwise the local file-backed store. The returned flush persists the
// local snapshot and is a no-op for Redis.
func openCache(cfg *config.Config, ttl time.Duration, log hclog.Logger) (cache.Store, func()) {
	if cfg.RedisHost != "" {
		log.Debug("using redis cache", "host", cfg.RedisHost, "port", cfg.RedisPort)
		return cache.NewRedis(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, log), func() {}
	}

	file, err := config.CacheFilePath()
	if err != nil {
		log.Warn("cache snapshot disabled", "error", err)
		file = ""
	}
	mem := cache.NewMemory(ttl, file)
	return mem, func() {
		if err := mem.Save(); err != nil {
			log.Warn("cache snapshot not saved", "error", err)
		}
	}
}
