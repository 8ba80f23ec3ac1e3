// Package main provides the song server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/osa030/rhythmical/internal/api/httpapi"
	"github.com/osa030/rhythmical/internal/app/filter"
	"github.com/osa030/rhythmical/internal/app/library"
	"github.com/osa030/rhythmical/internal/infra/config"
	"github.com/osa030/rhythmical/internal/infra/lastfm"
	"github.com/osa030/rhythmical/internal/infra/logger"
	"github.com/osa030/rhythmical/internal/infra/rhythmdb"
	"github.com/osa030/rhythmical/internal/infra/spotify"
	"github.com/osa030/rhythmical/internal/infra/storage"
)

var (
	app        = kingpin.New("rhythmical-server", "rhythmical song server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// import-rhythmdb command
	importCmd         = app.Command("import-rhythmdb", "Convert a Rhythmbox database into a library file")
	importInput       = importCmd.Arg("input", "Path to rhythmdb.xml").Required().String()
	importOutput      = importCmd.Arg("output", "Path of the library file to write").Required().String()
	importPrefix      = importCmd.Arg("location-prefix", "Location prefix to strip, e.g. /home/me/Music").Required().String()
	importIDPrefix    = importCmd.Flag("id-prefix", "Prefix for generated song ids").String()
	importNoOverwrite = importCmd.Flag("no-overwrite", "Fail if the output file exists").Bool()

	// sync-rhythmdb command
	syncCmd     = app.Command("sync-rhythmdb", "Merge a Rhythmbox database into an existing library file")
	syncInput   = syncCmd.Arg("input", "Path to rhythmdb.xml").Required().String()
	syncLibrary = syncCmd.Arg("library", "Path of the library file to update").Required().String()
	syncPrefix  = syncCmd.Arg("location-prefix", "Location prefix to strip").Required().String()
	syncDryRun  = syncCmd.Flag("dry-run", "Report changes without writing").Bool()

	// validate-library command
	validateCmd    = app.Command("validate-library", "Report songs whose contents are missing")
	validateDryRun = validateCmd.Flag("dry-run", "Report only; do not rewrite file sources").Bool()

	// list-playlists command
	listPlaylistsCmd = app.Command("list-playlists", "List built-in playlists and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listPlaylistsCmd.FullCommand() {
		printPlaylists()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	switch command {
	case importCmd.FullCommand():
		err = importRhythmDB()
	case syncCmd.FullCommand():
		err = syncRhythmDB()
	default:
		var cfg *config.ServerConfig
		zlog.Info().Msgf("Loading config from %s", *configPath)
		cfg, err = config.LoadServer(*configPath)
		if err != nil {
			zlog.Fatal().Msgf("Failed to load config: %v", err)
		}
		if command == validateCmd.FullCommand() {
			err = validateLibrary(cfg)
		} else {
			err = run(cfg)
		}
	}
	if err != nil {
		zlog.Error().Msgf("Error: %v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.ServerConfig) error {
	ctx := context.Background()

	resolver, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	zlog.Info().Msgf("Using %s storage", resolver.Name())

	lib, err := loadLibrary(ctx, cfg)
	if err != nil {
		return err
	}

	metrics := httpapi.NewMetrics()
	router := httpapi.NewRouter(httpapi.Options{
		Library:   lib,
		Storage:   resolver,
		Metrics:   metrics,
		StaticDir: cfg.HTTP.StaticDir,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s songs=%d", cfg.HTTP.Addr, lib.Len())
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.HTTP.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.HTTP.Hooks.OnStopped, "on_stopped")

	return nil
}

// loadLibrary loads every configured source and optionally fills in genres.
func loadLibrary(ctx context.Context, cfg *config.ServerConfig) (*library.Library, error) {
	// An untyped nil keeps the source factory's nil check meaningful.
	var fetcher library.PlaylistFetcher
	if cfg.UsesSource("spotify") {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Spotify client: %w", err)
		}
		fetcher = client
	}

	chain, err := library.NewSourceChainFromConfig(&cfg.Library, fetcher)
	if err != nil {
		return nil, fmt.Errorf("invalid library config: %w", err)
	}
	lib, err := library.Load(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("failed to load library: %w", err)
	}

	if cfg.Library.EnrichGenre {
		lf, err := lastfm.New(lastfm.Config{APIKey: cfg.LastFM.APIKey})
		if err != nil {
			return nil, fmt.Errorf("failed to create Last.fm client: %w", err)
		}
		lib = library.New(library.NewGenreEnricher(lf).Enrich(ctx, lib.Entries()))
	}

	zlog.Info().Msgf("Library loaded: %d songs", lib.Len())
	return lib, nil
}

// importRhythmDB writes a library file from a Rhythmbox database.
func importRhythmDB() error {
	if *importNoOverwrite {
		if _, err := os.Stat(*importOutput); err == nil {
			return fmt.Errorf("%s already exists", *importOutput)
		}
	}

	parsed, err := rhythmdb.ParseFile(*importInput, *importPrefix)
	if err != nil {
		return err
	}
	entries := library.FromRhythmDB(parsed, *importIDPrefix)
	if err := library.SaveFile(*importOutput, entries); err != nil {
		return err
	}

	fmt.Printf("Imported %d songs into %s\n", len(entries), *importOutput)
	return nil
}

// syncRhythmDB merges a fresh import into an existing library file,
// keeping the ids of songs that are still present.
func syncRhythmDB() error {
	parsed, err := rhythmdb.ParseFile(*syncInput, *syncPrefix)
	if err != nil {
		return err
	}
	existing, err := library.LoadFile(*syncLibrary)
	if err != nil {
		return err
	}

	result := library.Sync(existing, library.FromRhythmDB(parsed, ""))
	fmt.Printf("Matched %d songs\n", result.Matched)
	fmt.Printf("Found %d new songs\n", result.Added)
	fmt.Printf("Found %d removed songs\n", result.Removed)

	if *syncDryRun {
		fmt.Println("Aborting because this is a dry run")
		return nil
	}

	if err := library.SaveFile(*syncLibrary, result.Entries); err != nil {
		return err
	}
	fmt.Printf("Wrote library with %d songs to %s\n", len(result.Entries), *syncLibrary)
	return nil
}

// validateLibrary reports songs without contents and, unless dry-run is
// set, removes them from file sources.
func validateLibrary(cfg *config.ServerConfig) error {
	ctx := context.Background()

	resolver, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	lib, err := loadLibrary(ctx, cfg)
	if err != nil {
		return err
	}

	report, err := library.Validate(ctx, lib.Entries(), resolver)
	if err != nil {
		return err
	}
	fmt.Printf("Checked %d songs, found %d without contents\n", report.Checked, len(report.Missing))
	if len(report.Missing) == 0 {
		return nil
	}

	missing := make(map[string]struct{}, len(report.Missing))
	for _, e := range report.Missing {
		missing[e.ID] = struct{}{}
		if *validateDryRun {
			fmt.Printf("Would remove %s (%s) at %s\n", e.ID, e.DisplayName(), e.Location)
		} else {
			fmt.Printf("Removing %s (%s) at %s\n", e.ID, e.DisplayName(), e.Location)
		}
	}
	if *validateDryRun {
		return nil
	}

	for _, src := range cfg.Library.Sources {
		if src.Type != "file" {
			continue
		}
		path, _ := src.Settings["path"].(string)
		if path == "" {
			continue
		}
		if err := pruneFile(path, missing); err != nil {
			return err
		}
	}
	return nil
}

func pruneFile(path string, missing map[string]struct{}) error {
	entries, err := library.LoadFile(path)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if _, ok := missing[e.ID]; !ok {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	if err := library.SaveFile(path, kept); err != nil {
		return err
	}
	fmt.Printf("Removed %d songs from %s\n", len(entries)-len(kept), path)
	return nil
}

// printPlaylists prints the built-in playlists and the registered kinds.
func printPlaylists() {
	set, err := filter.NewSet(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build playlists: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Built-in Playlists:")
	for _, p := range set.Playlists() {
		fmt.Printf("  %-12s - %s\n", p.Name(), p.Description())
	}
	fmt.Println("Playlist Kinds:")
	for kind := range filter.GetRegistered() {
		fmt.Printf("  %s\n", kind)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
