// Command draft-relay relays committed draft activities from the Postgres
// outbox to JetStream, or to the log when NATS_URL is unset.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mcdev12/leaguedraft/go/internal/dbconfig"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	cfg := dbconfig.NewConfigFromEnv()
	dsn := cfg.DSN()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("ping database")
	}
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("connected to database")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Without NATS_URL the relay logs events instead of publishing them.
	var (
		nc        *nats.Conn
		publisher outbox.Publisher = outbox.LogPublisher{}
	)
	if url := os.Getenv("NATS_URL"); url != "" {
		jsCfg := outbox.DefaultJetStreamConfig()
		jsCfg.URL = url
		nc, err = outbox.ConnectNATS(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("connect to NATS")
		}
		defer nc.Close()

		publisher, err = outbox.NewJetStreamPublisher(ctx, nc, jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("create JetStream publisher")
		}
	} else {
		log.Warn().Msg("NATS_URL not set, relaying outbox events to the log")
	}

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dsn
	if iv := os.Getenv("FALLBACK_INTERVAL"); iv != "" {
		if d, err := time.ParseDuration(iv); err == nil {
			ltCfg.FallbackInterval = d
		}
	}

	listener, err := outbox.NewListener(db, publisher, ltCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("create outbox listener")
	}

	healthAddr := os.Getenv("RELAY_HEALTH_ADDR")
	if healthAddr == "" {
		healthAddr = ":8081"
	}
	mux := http.NewServeMux()
	mux.Handle("/health", outbox.NewRelayHealthChecker(listener, db, nc, 5*time.Minute))
	srv := &http.Server{Addr: healthAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msg("starting outbox listener")
		return listener.Start(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", healthAddr).Msg("health endpoint listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("relay exited with error")
		os.Exit(1)
	}
	log.Info().Msg("graceful shutdown complete")
}
