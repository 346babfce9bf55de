// Package event consumes the notifications the catalog publishes to RabbitMQ.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tuanvumaihuynh/product-catalog/internal/storage/mq"
)

type Service struct {
	logger     *slog.Logger
	mqConsumer mq.Consumer

	nameUpdateRoutingKey string
}

func New(
	logger *slog.Logger,
	mqConsumer mq.Consumer,
	nameUpdateRoutingKey string,
) *Service {
	return &Service{
		logger:               logger.With(slog.String("component", "event_service")),
		mqConsumer:           mqConsumer,
		nameUpdateRoutingKey: nameUpdateRoutingKey,
	}
}

type CleanupFunc func()

// Run registers every event handler and starts consuming. The returned cleanup stops the
// consumer and waits for in-flight deliveries.
func (s *Service) Run(ctx context.Context) (CleanupFunc, error) {
	handlers := map[string]mq.HandlerFunc{
		s.nameUpdateRoutingKey: jsonHandler(s.handleProductNameUpdatedEvent),
	}
	for routingKey, handler := range handlers {
		if err := s.mqConsumer.RegisterHandler(routingKey, handler); err != nil {
			return nil, fmt.Errorf("register handler for %q: %w", routingKey, err)
		}
	}

	mqCleanup, err := s.mqConsumer.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("run mq consumer: %w", err)
	}

	return CleanupFunc(mqCleanup), nil
}

type validatable interface {
	validate() error
}

// jsonHandler decodes the payload into E and rejects it before fn runs if it is invalid.
func jsonHandler[E validatable](fn func(ctx context.Context, ev E) error) mq.HandlerFunc {
	return func(ctx context.Context, routingKey string, payload []byte) error {
		var ev E
		if err := json.Unmarshal(payload, &ev); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", routingKey, err)
		}
		if err := ev.validate(); err != nil {
			return fmt.Errorf("invalid %s payload: %w", routingKey, err)
		}
		return fn(ctx, ev)
	}
}
