package worker

// retry_cron.go
// Background goroutine that periodically moves dead-lettered closing summaries
// back to their queue, so emails lost during an SMTP outage still go out once
// it recovers. Skips the tick while the SMTP circuit breaker is open.

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"parkingcash/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redriveTickInterval = 10 * time.Minute
	redriveBatchSize    = 20

	// MaxRedrives bounds how often one job returns from the DLQ. After that
	// it stays there for manual inspection.
	MaxRedrives = 3
)

// dlqStore is the slice of the Redis client the re-drive needs.
type dlqStore interface {
	listPusher
	RPop(ctx context.Context, key string) *redis.StringCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// RedriveConfig holds all dependencies for the re-drive goroutine.
type RedriveConfig struct {
	RDB   dlqStore
	CB    *infra.CircuitBreaker // optional
	Queue string                // defaults to QueueCierre
}

// StartDLQRedrive launches the re-drive loop. It respects ctx for graceful shutdown.
func StartDLQRedrive(ctx context.Context, cfg RedriveConfig) {
	if cfg.Queue == "" {
		cfg.Queue = QueueCierre
	}
	go func() {
		ticker := time.NewTicker(redriveTickInterval)
		defer ticker.Stop()

		log.Info().Str("queue", cfg.Queue).Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				redrive(ctx, cfg)
			}
		}
	}()
}

// redrive moves up to redriveBatchSize entries back to the queue and returns
// how many it moved.
func redrive(ctx context.Context, cfg RedriveConfig) int {
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return 0
	}

	dlqKey := DLQPrefix + cfg.Queue
	pending, err := cfg.RDB.LLen(ctx, dlqKey).Result()
	if err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: failed to read DLQ length")
		return 0
	}
	if pending > redriveBatchSize {
		pending = redriveBatchSize
	}

	moved := 0
	// Each entry is popped once per tick; exhausted ones go back to the head,
	// so they are not seen again in this pass.
	for i := int64(0); i < pending; i++ {
		raw, err := cfg.RDB.RPop(ctx, dlqKey).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			log.Error().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: RPOP failed")
			break
		}

		var entry DLQEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			log.Error().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: dropping unreadable DLQ entry")
			continue
		}
		if entry.Redrives >= MaxRedrives || entry.JobType == "unknown" {
			if err := cfg.RDB.LPush(ctx, dlqKey, raw).Err(); err != nil {
				log.Error().Err(err).Str("dlq_key", dlqKey).Msg("retry_cron: failed to park entry")
			}
			continue
		}

		job := Job{Type: entry.JobType, Payload: entry.Payload, Redrives: entry.Redrives + 1}
		if err := push(ctx, cfg.RDB, entry.OriginalQueue, job); err != nil {
			log.Error().Err(err).Str("queue", entry.OriginalQueue).Msg("retry_cron: re-queue failed")
			_ = cfg.RDB.LPush(ctx, dlqKey, raw).Err()
			continue
		}
		moved++
	}

	if moved > 0 {
		log.Info().Int("count", moved).Str("queue", cfg.Queue).Msg("retry_cron: DLQ entries re-queued")
	}
	return moved
}
