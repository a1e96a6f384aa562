// Command leaguedraft serves the league draft engine: the JSON API, turn
// timers, the sweep, the outbox relay and the WebSocket gateway.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	services, err := setupServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Close()

	srv := setupServer(cfg, services)

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range services.runners {
		g.Go(func() error {
			log.Info().Str("component", r.name).Msg("starting")
			if err := r.run(gctx); err != nil {
				log.Error().Err(err).Str("component", r.name).Msg("component failed")
				return err
			}
			log.Info().Str("component", r.name).Msg("stopped")
			return nil
		})
	}
	g.Go(func() error {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Engine.StoreBackend).
			Str("scheduler", cfg.Engine.SchedulerBackend).
			Bool("jetstream", cfg.NATSURL != "").
			Msg("league draft server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		services.Close()
		os.Exit(1)
	}
	log.Info().Msg("graceful shutdown complete")
}

func setupLogging(cfg *Config) {
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
