package session

import (
	"context"
	"time"

	"github.com/webscout-ai/webscout/models"
)

// Store hands out conversation sessions. EnsureSession returns the
// existing session for id, or creates one (generating an id when the
// caller supplies none). Each touch refreshes the TTL.
type Store interface {
	EnsureSession(ctx context.Context, id string, ttl time.Duration) (Session, error)
}

// Session is one conversation's message history.
type Session interface {
	ID() string
	History(ctx context.Context) ([]models.Message, error)
	Append(ctx context.Context, msgs ...models.Message) error
}
