package worker

// event_worker.go: forwards each closed session to the message broker for
// evento_cierre jobs.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parkingcash/internal/dto"

	"github.com/rs/zerolog/log"
)

const publishTimeout = 10 * time.Second

// EventPublisher fans the closing event out to other systems.
// *infra.AMQPPublisher implements it.
type EventPublisher interface {
	PublishSessionClosed(ctx context.Context, ev dto.SessionClosedEvent) error
}

// ClosingEventWorker handles JobEventoCierre.
type ClosingEventWorker struct {
	publisher EventPublisher
	timeout   time.Duration
}

func NewClosingEventWorker(publisher EventPublisher) *ClosingEventWorker {
	return &ClosingEventWorker{publisher: publisher, timeout: publishTimeout}
}

// Process publishes the event under a deadline so a dead broker cannot hold
// a worker. Publish failures go back to the pool for retry.
func (w *ClosingEventWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var ev dto.SessionClosedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Error().Err(err).Msg("event_worker: invalid payload")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- w.publisher.PublishSessionClosed(ctx, ev) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("event_worker: publish closing event: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("event_worker: publish closing event: %w", ctx.Err())
	}
	log.Info().Str("session_id", ev.SessionID).Msg("event_worker: evento de cierre publicado")
	return nil
}
