// Package main provides the player entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/rhythmical/internal/api/connect"
	"github.com/osa030/rhythmical/internal/app/filter"
	"github.com/osa030/rhythmical/internal/app/notification"
	"github.com/osa030/rhythmical/internal/app/playback"
	"github.com/osa030/rhythmical/internal/domain/catalog"
	"github.com/osa030/rhythmical/internal/infra/apiclient"
	"github.com/osa030/rhythmical/internal/infra/audio"
	"github.com/osa030/rhythmical/internal/infra/config"
	"github.com/osa030/rhythmical/internal/infra/logger"
)

var (
	app         = kingpin.New("rhythmical-player", "rhythmical music player")
	configPath  = app.Flag("config", "Path to config file").Default("config/player.yaml").String()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile     = app.Flag("logfile", "Path to log file (default: stdout)").String()
	audioOutput = app.Flag("audio", "Audio output, overrides the config").Enum("speaker", "simulated")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
		Fields: map[string]string{"session": uuid.New().String()},
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

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.LoadPlayer(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}
	if *audioOutput != "" {
		cfg.Audio.Output = *audioOutput
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Player error: %v", err)
		os.Exit(1)
	}
}

// run executes the main player logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.PlayerConfig) error {
	ctx := context.Background()

	api, err := apiclient.New(apiclient.Config{
		BaseURL:    cfg.API.URL,
		Timeout:    cfg.API.Timeout(),
		MaxRetries: cfg.API.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to create api client: %w", err)
	}

	cat, err := catalog.Load(ctx, api)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	zlog.Info().Msgf("Catalog loaded: %d songs from %s", cat.Len(), cfg.API.URL)

	playlists, err := filter.NewSet(playlistDefinitions(cfg.Playlists))
	if err != nil {
		return fmt.Errorf("invalid playlist config: %w", err)
	}

	output, err := newOutput(cfg)
	if err != nil {
		return err
	}

	player := playback.NewCoordinator(cat, api, output, playback.Config{
		QueueLength:     cfg.Playback.QueueLength,
		HistoryCapacity: cfg.Playback.HistoryCapacity,
		ResolveTimeout:  cfg.Playback.ResolveTimeout(),
	})
	defer player.Close()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	notifications := notification.NewManager()
	defer notifications.Close()
	go notifications.Run(runCtx, player.Events(), player.Lookup)

	service := apiconnect.NewPlayerService(player, playlists, notifications, apiconnect.Options{
		Token:         cfg.Control.Token,
		UpcomingCount: cfg.Playback.UpcomingCount,
		Done:          runCtx.Done(),
		Songs:         api,
	})
	applied, err := service.ApplyFilter(cfg.Initial.Playlist, cfg.Initial.Search)
	if err != nil {
		return fmt.Errorf("invalid initial filter: %w", err)
	}
	zlog.Info().Msgf("Initial filter %q: %d songs", applied.FilterKey, applied.FilteredCount)

	if cfg.Playback.Autoplay && !player.Next() {
		zlog.Warn().Msg("Autoplay requested but no song matches the initial filter")
	}

	mux := http.NewServeMux()
	mux.Handle(service.Handler())
	if cfg.Control.Token == "" {
		zlog.Warn().Msg("Control token not set, the control API is unauthenticated")
	}

	server := &http.Server{
		Addr:              cfg.Control.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting control server: addr=%s", cfg.Control.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

wait:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				reloadCatalog(service, cfg.API.Timeout())
				continue
			}
			zlog.Info().Msg("Received shutdown signal...")
			break wait
		case err := <-serverErrCh:
			return fmt.Errorf("server error: %w", err)
		}
	}

	// End subscription streams before shutting the server down
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Player stopped")
	return nil
}

// reloadCatalog re-fetches the song list on SIGHUP. A failed fetch keeps
// the current catalog.
func reloadCatalog(service *apiconnect.PlayerService, timeout time.Duration) {
	zlog.Info().Msg("Received SIGHUP, reloading catalog...")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := service.ReloadCatalog(ctx)
	if err != nil {
		zlog.Error().Msgf("Failed to reload catalog: %v", err)
		return
	}
	zlog.Info().Msgf("Catalog reloaded: %d songs, %d in the active filter", resp.SongCount, resp.FilteredCount)
}

func playlistDefinitions(playlists []config.PlaylistConfig) []filter.Definition {
	defs := make([]filter.Definition, 0, len(playlists))
	for _, p := range playlists {
		defs = append(defs, filter.Definition{Name: p.Name, Kind: p.Kind, Settings: p.Settings})
	}
	return defs
}

// newOutput picks the configured audio output, falling back to the
// simulated one when this build has no sound support.
func newOutput(cfg *config.PlayerConfig) (audio.Output, error) {
	if cfg.Audio.Output == "speaker" {
		if audio.Available {
			// Downloads are bounded by the resolve timeout, not a client timeout
			out, err := audio.NewSpeakerOutput(audio.NewFetcher(nil))
			if err != nil {
				return nil, fmt.Errorf("failed to create speaker output: %w", err)
			}
			return out, nil
		}
		zlog.Warn().Msg("Sound is not available in this build, using simulated output")
	}

	out := audio.NewSimulatedOutput()
	out.DefaultDuration = time.Duration(cfg.Audio.SimulatedDurationSec) * time.Second
	return out, nil
}
