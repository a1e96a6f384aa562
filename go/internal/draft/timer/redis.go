package timer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/leaguedraft/go/internal/draft"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	timersKey = "draft:timers"
	tasksKey  = "draft:timer_tasks"

	DefaultPollInterval = 250 * time.Millisecond
	DefaultPollBatch    = 100
)

// RedisConfig tunes the Redis scheduler.
type RedisConfig struct {
	KeyPrefix    string
	PollInterval time.Duration
	BatchSize    int
	Workers      int
}

// Redis keeps resolve tasks in a sorted set scored by due time so any instance can fire them.
// An instance claims a due task by removing it from the set; only one ZREM succeeds.
type Redis struct {
	client       *redis.Client
	clock        clockwork.Clock
	timersKey    string
	tasksKey     string
	pollInterval time.Duration
	batchSize    int
	numWorkers   int
	instanceID   string
}

func NewRedis(client *redis.Client, clock clockwork.Clock, cfg RedisConfig) *Redis {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultPollBatch
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Redis{
		client:       client,
		clock:        clock,
		timersKey:    cfg.KeyPrefix + timersKey,
		tasksKey:     cfg.KeyPrefix + tasksKey,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		numWorkers:   cfg.Workers,
		instanceID:   uuid.New().String()[:8],
	}
}

func (r *Redis) Schedule(ctx context.Context, delay time.Duration, task draft.ResolveTask) (string, error) {
	payload, err := json.Marshal(task)
	if err != nil {
		return "", fmt.Errorf("failed to marshal resolve task: %w", err)
	}

	handle := uuid.NewString()
	due := r.clock.Now().Add(delay).UnixMilli()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.tasksKey, handle, payload)
		pipe.ZAdd(ctx, r.timersKey, redis.Z{Score: float64(due), Member: handle})
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to store resolve task: %w", err)
	}
	return handle, nil
}

func (r *Redis) Cancel(ctx context.Context, handle string) error {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.ZRem(ctx, r.timersKey, handle)
		pipe.HDel(ctx, r.tasksKey, handle)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cancel resolve task: %w", err)
	}
	if removed.Val() == 0 {
		return ErrUnknownHandle
	}
	return nil
}

// Run polls for due tasks until ctx is cancelled.
func (r *Redis) Run(ctx context.Context, handler draft.ResolveFunc) error {
	log.Info().
		Str("instance", r.instanceID).
		Dur("poll_interval", r.pollInterval).
		Msg("redis turn timer started")

	ticker := r.clock.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", r.instanceID).Msg("shutting down turn timer")
			return nil
		case <-ticker.Chan():
			if _, err := r.Poll(ctx, handler); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("instance", r.instanceID).Msg("failed to poll due timers")
			}
		}
	}
}

// Poll claims every task due now and runs handler for each. It returns how many it claimed.
func (r *Redis) Poll(ctx context.Context, handler draft.ResolveFunc) (int, error) {
	now := r.clock.Now().UnixMilli()
	handles, err := r.client.ZRangeByScore(ctx, r.timersKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now, 10),
		Count: int64(r.batchSize),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read due timers: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.numWorkers)
	claimed := 0

	for i, handle := range handles {
		task, ok, err := r.claim(ctx, handle)
		if err != nil {
			log.Error().Err(err).Str("handle", handle).Msg("failed to claim timer")
			continue
		}
		if !ok {
			continue
		}
		claimed++

		workerID := i % r.numWorkers
		g.Go(func() error {
			dispatch(gctx, r.instanceID, workerID, task, handler)
			return nil
		})
	}
	_ = g.Wait()
	return claimed, nil
}

func (r *Redis) claim(ctx context.Context, handle string) (draft.ResolveTask, bool, error) {
	var task draft.ResolveTask

	n, err := r.client.ZRem(ctx, r.timersKey, handle).Result()
	if err != nil {
		return task, false, err
	}
	if n == 0 {
		// Another instance claimed it or it was cancelled.
		return task, false, nil
	}

	payload, err := r.client.HGet(ctx, r.tasksKey, handle).Bytes()
	if errors.Is(err, redis.Nil) {
		return task, false, nil
	}
	if err != nil {
		return task, false, err
	}
	if err := r.client.HDel(ctx, r.tasksKey, handle).Err(); err != nil {
		// The timer entry is already gone, so the task still fires once.
		log.Warn().Err(err).Str("handle", handle).Msg("failed to remove claimed timer payload")
	}

	if err := json.Unmarshal(payload, &task); err != nil {
		return task, false, fmt.Errorf("failed to decode resolve task %s: %w", handle, err)
	}
	return task, true, nil
}
