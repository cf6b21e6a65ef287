package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"parkingcash/internal/dto"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueCierre = "jobs:cierre_caja"

	JobCierreCaja   = "cierre_caja"
	JobEventoCierre = "evento_cierre"

	// MaxJobAttempts includes the first try.
	MaxJobAttempts = 3

	// brpopBackoff is the pause after a BRPOP error other than an empty queue.
	brpopBackoff = 2 * time.Second
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	// Redrives counts how many times the job came back from the DLQ.
	Redrives int `json:"redrives,omitempty"`
}

// JobHandler processes one job payload. A returned error schedules a retry.
type JobHandler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

// listPusher is the slice of the Redis client the queue code needs.
type listPusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// queueClient adds the blocking pop the pool consumes with.
type queueClient interface {
	listPusher
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// Dispatcher enqueues the async work that follows a close. It only touches
// Redis; email and broker delivery happen in the pool.
type Dispatcher struct {
	rdb           listPusher
	publishEvents bool
}

// NewDispatcher builds a Dispatcher. With publishEvents set, every close also
// queues a JobEventoCierre for the broker.
func NewDispatcher(rdb listPusher, publishEvents bool) *Dispatcher {
	return &Dispatcher{rdb: rdb, publishEvents: publishEvents}
}

// NotifySessionClosed queues the closing-summary email and, when enabled,
// the closing event. Both are attempted; errors are joined.
func (d *Dispatcher) NotifySessionClosed(ctx context.Context, ev dto.SessionClosedEvent) error {
	var errs []error
	if err := d.enqueue(ctx, QueueCierre, JobCierreCaja, ev); err != nil {
		errs = append(errs, fmt.Errorf("enqueue %s: %w", JobCierreCaja, err))
	}
	if d.publishEvents {
		if err := d.enqueue(ctx, QueueCierre, JobEventoCierre, ev); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", JobEventoCierre, err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return push(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func push(ctx context.Context, rdb listPusher, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// ── Pool ──────────────────────────────────────────────────────────────────────

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	rdb      queueClient
	handlers map[string]JobHandler
	backoff  time.Duration
}

func NewPool(rdb *redis.Client, handlers map[string]JobHandler) *Pool {
	return &Pool{rdb: rdb, handlers: handlers, backoff: brpopBackoff}
}

// Start launches numWorkers goroutines blocked on BRPOP; zero CPU when idle.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go p.run(ctx, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, QueueCierre).Result()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				if ctx.Err() == nil {
					log.Warn().Err(err).Int("worker", id).Msg("brpop failed, backing off")
				}
				select {
				case <-ctx.Done():
				case <-time.After(p.backoff):
				}
				continue
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, p.rdb, p.handlers, result[0], result[1])
		}
	}
}

// processJob runs the handler for raw. Failures are re-queued until
// MaxJobAttempts, then parked in the DLQ.
func processJob(ctx context.Context, rdb listPusher, handlers map[string]JobHandler, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, rdb, queue, Job{Type: "unknown"}, "invalid envelope: "+err.Error())
		return
	}
	h, ok := handlers[job.Type]
	if !ok {
		SendToDLQ(ctx, rdb, queue, job, "no handler for job type")
		return
	}

	job.Attempts++
	err := h.Process(ctx, job.Payload)
	if err == nil {
		log.Info().Str("type", job.Type).Int("attempt", job.Attempts).Msg("job processed")
		return
	}

	if job.Attempts >= MaxJobAttempts {
		SendToDLQ(ctx, rdb, queue, job, err.Error())
		return
	}
	log.Warn().Err(err).Str("type", job.Type).Int("attempt", job.Attempts).Msg("job failed, re-queued")
	if perr := push(ctx, rdb, queue, job); perr != nil {
		log.Error().Err(perr).Str("queue", queue).Msg("re-queue failed")
	}
}
