package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/leaguedraft/go/internal/dbconfig"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/mcdev12/leaguedraft/go/internal/fixtures"
	"github.com/mcdev12/leaguedraft/go/internal/models"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	SchedulerLocal = "local"
	SchedulerRedis = "redis"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	Database dbconfig.Config
	NATSURL  string

	RedisAddr string
	RedisDB   int

	Engine EngineConfig
}

// EngineConfig is the optional YAML file named by ENGINE_CONFIG.
type EngineConfig struct {
	StoreBackend         string            `yaml:"store_backend"`
	SchedulerBackend     string            `yaml:"scheduler_backend"`
	DefaultPickTimeLimit time.Duration     `yaml:"default_pick_time_limit"`
	AutoDraftDelay       time.Duration     `yaml:"autodraft_delay"`
	SweepInterval        time.Duration     `yaml:"sweep_interval"`
	SweepWorkers         int               `yaml:"sweep_workers"`
	SweepBatchSize       int               `yaml:"sweep_batch_size"`
	TimerWorkers         int               `yaml:"timer_workers"`
	EmbeddedRelay        bool              `yaml:"embedded_relay"`
	Fixtures             []fixtures.League `yaml:"fixtures"`
}

func defaultEngineConfig() EngineConfig {
	return EngineConfig{
		StoreBackend:         StoreMemory,
		SchedulerBackend:     SchedulerLocal,
		DefaultPickTimeLimit: time.Duration(models.DefaultPickTimeLimitMs) * time.Millisecond,
		AutoDraftDelay:       draft.DefaultAutoDraftDelay,
		SweepInterval:        draft.DefaultSweepInterval,
		SweepWorkers:         draft.DefaultSweepWorkers,
		SweepBatchSize:       draft.DefaultSweepBatchSize,
		TimerWorkers:         10,
		EmbeddedRelay:        true,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// loadConfig reads the environment, then the engine file if ENGINE_CONFIG is set.
// STORE_BACKEND and SCHEDULER_BACKEND override the file.
func loadConfig() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
		Database:  dbconfig.NewConfigFromEnv(),
		NATSURL:   os.Getenv("NATS_URL"),
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:   getEnvAsInt("REDIS_DB", 0),
		Engine:    defaultEngineConfig(),
	}

	if path := os.Getenv("ENGINE_CONFIG"); path != "" {
		engine, err := loadEngineConfig(path)
		if err != nil {
			return nil, err
		}
		cfg.Engine = engine
	}

	cfg.Engine.StoreBackend = getEnv("STORE_BACKEND", cfg.Engine.StoreBackend)
	cfg.Engine.SchedulerBackend = getEnv("SCHEDULER_BACKEND", cfg.Engine.SchedulerBackend)
	cfg.Engine.SweepInterval = getEnvDuration("SWEEP_INTERVAL", cfg.Engine.SweepInterval)

	if err := cfg.Engine.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEngineConfig(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultEngineConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

func (c EngineConfig) validate() error {
	switch c.StoreBackend {
	case StoreMemory, StorePostgres:
	default:
		return fmt.Errorf("unknown store_backend %q", c.StoreBackend)
	}
	switch c.SchedulerBackend {
	case SchedulerLocal, SchedulerRedis:
	default:
		return fmt.Errorf("unknown scheduler_backend %q", c.SchedulerBackend)
	}
	if c.StoreBackend == StoreMemory && c.SchedulerBackend == SchedulerRedis {
		return fmt.Errorf("scheduler_backend %q needs a shared store, not %q", SchedulerRedis, StoreMemory)
	}
	return nil
}
