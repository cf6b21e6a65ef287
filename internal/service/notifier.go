package service

import (
	"context"

	"parkingcash/internal/dto"
)

//go:generate mockgen -destination=mocks/mock_notifier.go -package=mocks parkingcash/internal/service SessionClosedNotifier

// SessionClosedNotifier receives the closing summary once a close has committed.
// Implementations may fail; the close itself is never rolled back for it.
type SessionClosedNotifier interface {
	NotifySessionClosed(ctx context.Context, ev dto.SessionClosedEvent) error
}
