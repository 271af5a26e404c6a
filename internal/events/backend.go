package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gerardinho-server/GestionUsuarios/config"
)

// NewBackend opens the broker selected by cfg.Backend. It returns a nil
// Backend when publishing is disabled.
func NewBackend(ctx context.Context, cfg config.EventsConfig) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "none":
		return nil, nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return client, nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}
