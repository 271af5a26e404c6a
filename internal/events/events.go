// Package events publishes account lifecycle notifications to a message
// broker so that other services can react to them.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gerardinho-server/GestionUsuarios/types"
	"github.com/rs/zerolog"
)

// Type names an account event.
type Type string

const (
	UserRegistered Type = "user.registered"
	UserUpdated    Type = "user.updated"
	UserDeleted    Type = "user.deleted"
)

// Event is the JSON payload sent to the broker. It never carries the email
// address or the password hash.
type Event struct {
	Type       Type       `json:"type"`
	UserID     int64      `json:"user_id"`
	Username   string     `json:"username,omitempty"`
	Role       types.Role `json:"role,omitempty"`
	ActorID    int64      `json:"actor_id,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Publisher serialises events and hands them to a backend.
type Publisher struct {
	backend Backend
	channel string
	logger  zerolog.Logger
	now     func() time.Time
}

// NewPublisher constructs a Publisher for the provided backend. A nil
// backend disables publishing.
func NewPublisher(backend Backend, channel string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		backend: backend,
		channel: channel,
		logger:  logger,
		now:     time.Now,
	}
}

// Publish sends the event. Failures are logged and otherwise ignored;
// notifications must never fail the request that caused them.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil || p.backend == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error().Err(err).Str("event", string(event.Type)).Msg("encode event")
		return
	}

	id, err := p.backend.Publish(ctx, p.channel, data, map[string]string{"event": string(event.Type)})
	if err != nil {
		p.logger.Warn().Err(err).Str("event", string(event.Type)).Int64("user_id", event.UserID).Msg("publish event")
		return
	}
	p.logger.Debug().Str("event", string(event.Type)).Str("message_id", id).Msg("event published")
}

// Close closes the underlying backend.
func (p *Publisher) Close() error {
	if p == nil || p.backend == nil {
		return nil
	}
	return p.backend.Close()
}
