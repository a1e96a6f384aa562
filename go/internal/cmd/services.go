package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/draft/gateway"
	"github.com/mcdev12/leaguedraft/go/internal/draft/outbox"
	"github.com/mcdev12/leaguedraft/go/internal/draft/store/memory"
	"github.com/mcdev12/leaguedraft/go/internal/draft/store/postgres"
	"github.com/mcdev12/leaguedraft/go/internal/draft/timer"
	"github.com/mcdev12/leaguedraft/go/internal/fixtures"
)

// runner is a long-lived component started under the errgroup in main.
type runner struct {
	name string
	run  func(ctx context.Context) error
}

// timerBackend is a draft.Scheduler that also fires the tasks it holds.
type timerBackend interface {
	draft.Scheduler
	Run(ctx context.Context, handler draft.ResolveFunc) error
}

type Services struct {
	Engine  *draft.Engine
	Draft   *draft.Service
	Gateway *gateway.Service
	Relay   *outbox.Listener // nil unless the Postgres outbox is relayed in-process

	db      *sql.DB
	nc      *nats.Conn
	runners []runner
	closers []func()
}

// Close releases connections in reverse order of creation.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func setupServices(ctx context.Context, cfg *Config) (_ *Services, err error) {
	s := &Services{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	clock := clockwork.NewRealClock()

	// Store
	var (
		store       draft.Store
		provisioner draft.Provisioner
		memStore    *memory.Store
	)
	switch cfg.Engine.StoreBackend {
	case StorePostgres:
		pool, err := postgres.Connect(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, pool.Close)
		pgStore := postgres.New(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			return nil, err
		}
		store, provisioner = pgStore, pgStore
		logPool(pool, cfg)
	default:
		memStore = memory.New(clock)
		store, provisioner = memStore, memStore
	}

	// Scheduler
	var scheduler timerBackend
	switch cfg.Engine.SchedulerBackend {
	case SchedulerRedis:
		client, err := setupRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = client.Close() })
		scheduler = timer.NewRedis(client, clock, timer.RedisConfig{Workers: cfg.Engine.TimerWorkers})
	default:
		scheduler = timer.NewLocal(clock, cfg.Engine.TimerWorkers)
	}

	// Engine
	engine := draft.NewEngine(store, scheduler, draft.NewSelector(nil), clock, draft.Config{
		AutoDraftDelay: cfg.Engine.AutoDraftDelay,
	})
	sweeper := draft.NewSweeper(store, engine, clock, draft.SweeperConfig{
		Interval:  cfg.Engine.SweepInterval,
		Workers:   cfg.Engine.SweepWorkers,
		BatchSize: cfg.Engine.SweepBatchSize,
	})
	s.Engine = engine
	s.Draft = draft.NewService(engine)

	s.runners = append(s.runners,
		runner{name: "timer", run: func(ctx context.Context) error { return scheduler.Run(ctx, engine.HandleResolveTask) }},
		runner{name: "sweeper", run: sweeper.Run},
	)

	// Event bus
	if cfg.NATSURL != "" {
		jsCfg := outbox.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		nc, err := outbox.ConnectNATS(jsCfg)
		if err != nil {
			return nil, err
		}
		s.nc = nc
		s.closers = append(s.closers, nc.Close)
	}

	// Gateway. With a broker it consumes JetStream; without one it receives events directly.
	var publisher outbox.Publisher
	if s.nc != nil {
		jsPublisher, err := outbox.NewJetStreamPublisher(ctx, s.nc, outbox.DefaultJetStreamConfig())
		if err != nil {
			return nil, err
		}
		publisher = jsPublisher
	}
	gw, err := gateway.NewService(ctx, gateway.DefaultConfig(), engine, s.nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft gateway: %w", err)
	}
	if publisher == nil {
		publisher = gw
	}
	s.Gateway = gw
	s.runners = append(s.runners, runner{name: "gateway", run: gw.Start})

	// Outbox
	retry := outbox.RetryPolicy{MaxRetries: 5, RetryDelay: 200 * time.Millisecond}
	switch {
	case memStore != nil:
		dispatcher := outbox.NewDispatcher(publisher, retry)
		memStore.SetActivitySink(dispatcher.Enqueue)
		s.runners = append(s.runners, runner{name: "dispatcher", run: dispatcher.Run})
	case cfg.Engine.EmbeddedRelay:
		if err := s.setupRelay(cfg, publisher, retry); err != nil {
			return nil, err
		}
	default:
		log.Info().Msg("outbox relay runs out of process")
	}

	if err := fixtures.Provision(ctx, provisioner, cfg.Engine.Fixtures, cfg.Engine.DefaultPickTimeLimit); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Services) setupRelay(cfg *Config, publisher outbox.Publisher, retry outbox.RetryPolicy) error {
	dsn := cfg.Database.DSN()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	s.closers = append(s.closers, func() { _ = db.Close() })
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	s.db = db

	ltCfg := outbox.DefaultListenerConfig()
	ltCfg.DatabaseURL = dsn
	ltCfg.MaxRetries = retry.MaxRetries
	ltCfg.RetryDelay = retry.RetryDelay
	listener, err := outbox.NewListener(db, publisher, ltCfg)
	if err != nil {
		return err
	}
	s.Relay = listener
	s.runners = append(s.runners, runner{name: "outbox-relay", run: listener.Start})
	return nil
}

func setupRedis(ctx context.Context, cfg *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Int("db", cfg.RedisDB).Msg("connected to redis")
	return client, nil
}

func logPool(pool *pgxpool.Pool, cfg *Config) {
	log.Info().
		Str("host", cfg.Database.Host).
		Int("port", cfg.Database.Port).
		Str("database", cfg.Database.Database).
		Int32("max_conns", pool.Config().MaxConns).
		Msg("connected to database")
}
