package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/pkg/msgheaders"
)

type HandlerFunc func(ctx context.Context, routingKey string, payload []byte) error

type CleanupFunc func()

type Consumer interface {
	RegisterHandler(routingKey string, handler HandlerFunc) error
	Run(ctx context.Context) (CleanupFunc, error)
}

var _ Consumer = (*RabbitMQConsumer)(nil)

// defaultQueueSuffix keeps the consumer off the publisher's queue when no suffix is configured.
const defaultQueueSuffix = "catalog"

// RabbitMQConsumer consumes a dedicated queue per registered routing key, bound next to the
// queue the publisher fills. A delivery is acked once its handler succeeds and rejected
// without requeue otherwise.
type RabbitMQConsumer struct {
	cfg         config.RabbitMQ
	prefetch    int
	queueSuffix string
	connManager *ConnectionManager
	logger      *slog.Logger

	newBackOff func() backoff.BackOff

	handlers map[string]HandlerFunc
}

func NewRabbitMQConsumer(
	cfg config.RabbitMQ,
	consumerCfg config.Consumer,
	connManager *ConnectionManager,
	logger *slog.Logger,
) *RabbitMQConsumer {
	return &RabbitMQConsumer{
		cfg:         cfg,
		prefetch:    consumerCfg.Prefetch,
		queueSuffix: consumerCfg.QueueSuffix,
		connManager: connManager,
		logger:      logger.With(slog.String("component", "rabbitmq_consumer")),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxInterval = cfg.ReconnectMaxInterval
			return bo
		},
		handlers: make(map[string]HandlerFunc),
	}
}

func (c *RabbitMQConsumer) RegisterHandler(routingKey string, handler HandlerFunc) error {
	if _, exists := c.handlers[routingKey]; exists {
		return fmt.Errorf("handler for routing key %s already registered", routingKey)
	}

	c.handlers[routingKey] = handler
	return nil
}

func (c *RabbitMQConsumer) Run(ctx context.Context) (CleanupFunc, error) {
	if len(c.handlers) == 0 {
		return nil, errors.New("no handlers registered")
	}

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup
	for routingKey, handler := range c.handlers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.consume(ctx, routingKey, handler)
		}()
	}

	cleanup := func() {
		cancel()
		wg.Wait()
	}

	return cleanup, nil
}

// QueueName returns the queue consumed for routingKey.
func (c *RabbitMQConsumer) QueueName(routingKey string) string {
	suffix := c.queueSuffix
	if suffix == "" {
		suffix = defaultQueueSuffix
	}
	return routingKey + "." + suffix
}

type subscription struct {
	ch         Channel
	deliveries <-chan amqp.Delivery
}

// consume keeps a subscription open on the routing key's consumer queue until ctx is done.
func (c *RabbitMQConsumer) consume(ctx context.Context, routingKey string, handler HandlerFunc) {
	logger := c.logger.With(
		slog.String("routing_key", routingKey),
		slog.String("queue", c.QueueName(routingKey)),
	)

	for {
		sub, err := c.subscribeWithRetry(ctx, routingKey)
		if err != nil {
			if ctx.Err() == nil {
				logger.ErrorContext(ctx, "error subscribing to queue, giving up", slog.Any("error", err))
			}
			return
		}

		logger.InfoContext(ctx, "consuming queue")
		c.drain(ctx, routingKey, handler, sub.deliveries)

		if err := sub.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			logger.WarnContext(ctx, "error closing channel", slog.Any("error", err))
		}

		if ctx.Err() != nil {
			return
		}
		logger.WarnContext(ctx, "delivery channel closed, resubscribing")
	}
}

func (c *RabbitMQConsumer) subscribeWithRetry(ctx context.Context, routingKey string) (subscription, error) {
	for {
		sub, err := backoff.Retry(ctx, func() (subscription, error) {
			sub, err := c.subscribe(ctx, routingKey)
			if errors.Is(err, ErrMissingConfig) {
				return subscription{}, backoff.Permanent(err)
			}
			return sub, err
		},
			backoff.WithBackOff(c.newBackOff()),
			backoff.WithNotify(func(err error, next time.Duration) {
				c.logger.WarnContext(ctx, "subscribe attempt failed",
					slog.String("routing_key", routingKey),
					slog.Any("error", err),
					slog.Duration("retry_in", next),
				)
			}),
		)
		if err == nil {
			return sub, nil
		}
		if ctx.Err() != nil || errors.Is(err, ErrMissingConfig) {
			return subscription{}, err
		}
	}
}

func (c *RabbitMQConsumer) subscribe(ctx context.Context, routingKey string) (subscription, error) {
	conn, err := c.connManager.GetConnection(ctx)
	if err != nil {
		return subscription{}, fmt.Errorf("get connection: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return subscription{}, err
	}

	queue := c.QueueName(routingKey)
	if err := c.setupChannel(ch, queue, routingKey); err != nil {
		_ = ch.Close()
		return subscription{}, err
	}

	deliveries, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		_ = ch.Close()
		return subscription{}, fmt.Errorf("consume queue %q: %w", queue, err)
	}

	return subscription{ch: ch, deliveries: deliveries}, nil
}

func (c *RabbitMQConsumer) setupChannel(ch Channel, queue, routingKey string) error {
	if err := declareTopology(ch, c.cfg.ProductsExchange, queue, routingKey); err != nil {
		return err
	}

	if c.prefetch > 0 {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
	}

	return nil
}

func (c *RabbitMQConsumer) drain(ctx context.Context, routingKey string, handler HandlerFunc, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(ctx, routingKey, handler, d)
		}
	}
}

func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, routingKey string, handler HandlerFunc, d amqp.Delivery) {
	ctx = msgheaders.ExtractContextFromHeaders(ctx, tableToHeaders(d.Headers))
	ctx, span := tracer.Start(ctx, "RabbitMQConsumer.Handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.rabbitmq.routing_key", routingKey),
			attribute.String("messaging.message_id", d.MessageId),
		),
	)
	defer span.End()

	err := c.invoke(ctx, routingKey, handler, d.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to handle message")
		consumeTotal.WithLabelValues(routingKey, resultFailure).Inc()

		c.logger.ErrorContext(ctx, "error handling message",
			slog.String("routing_key", routingKey),
			slog.String("message_id", d.MessageId),
			slog.Any("error", err),
		)

		if nackErr := d.Nack(false, false); nackErr != nil {
			c.logger.ErrorContext(ctx, "error rejecting message", slog.Any("error", nackErr))
		}
		return
	}

	consumeTotal.WithLabelValues(routingKey, resultSuccess).Inc()
	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.ErrorContext(ctx, "error acknowledging message", slog.Any("error", ackErr))
	}
}

func (c *RabbitMQConsumer) invoke(ctx context.Context, routingKey string, handler HandlerFunc, body []byte) (err error) {
	defer func() {
		if rvr := recover(); rvr != nil {
			c.logger.ErrorContext(ctx, "panic in message handler",
				slog.String("routing_key", routingKey),
				slog.Any("recover", rvr),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", rvr)
		}
	}()

	return handler(ctx, routingKey, body)
}
