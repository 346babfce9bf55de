package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
	"github.com/tuanvumaihuynh/product-catalog/pkg/msgheaders"
)

var (
	ErrPublishNacked     = errors.New("broker rejected published message")
	ErrPublishReturned   = errors.New("broker returned unroutable message")
	ErrConfirmChanClosed = errors.New("channel closed before publish confirmation")
)

// Publisher publishes JSON encoded events.
//
// Delivery is best effort and at most once: failures are logged by the publisher and
// never reported to the caller.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any)
}

var _ Publisher = (*RabbitMQPublisher)(nil)

type RabbitMQPublisher struct {
	cfg         config.RabbitMQ
	logger      *slog.Logger
	connManager *ConnectionManager
}

func NewRabbitMQPublisher(cfg config.RabbitMQ, logger *slog.Logger, connManager *ConnectionManager) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		cfg:         cfg,
		logger:      logger.With(slog.String("component", "rabbitmq_publisher")),
		connManager: connManager,
	}
}

// Publish sends payload to the products exchange with the given routing key as a persistent message.
func (p *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload any) {
	if err := p.publish(ctx, routingKey, payload); err != nil {
		publishTotal.WithLabelValues(routingKey, resultFailure).Inc()
		p.logger.ErrorContext(ctx, "error publishing message",
			slog.String("exchange", p.cfg.ProductsExchange),
			slog.String("routing_key", routingKey),
			slog.Any("error", err),
		)
		return
	}

	publishTotal.WithLabelValues(routingKey, resultSuccess).Inc()
	p.logger.InfoContext(ctx, "message published",
		slog.String("exchange", p.cfg.ProductsExchange),
		slog.String("routing_key", routingKey),
	)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, routingKey string, payload any) (err error) {
	ctx, span := tracer.Start(ctx, "RabbitMQPublisher.Publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination", p.cfg.ProductsExchange),
			attribute.String("messaging.rabbitmq.routing_key", routingKey),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to publish message")
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	if p.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.PublishTimeout)
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	conn, err := p.connManager.GetConnection(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := ch.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			p.logger.WarnContext(ctx, "error closing channel", slog.Any("error", cerr))
		}
	}()

	if err := declareTopology(ch, p.cfg.ProductsExchange, routingKey, routingKey); err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("enable publisher confirms: %w", err)
	}
	confirms := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	// The broker sends basic.return before the ack of an unroutable mandatory message.
	returns := ch.NotifyReturn(make(chan amqp.Return, 1))

	if err := ch.Publish(
		p.cfg.ProductsExchange, // exchange
		routingKey,             // routing key
		true,                   // mandatory
		false,                  // immediate
		amqp.Publishing{
			Headers:      headersToTable(msgheaders.BuildHeaders(ctx)),
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	span.SetAttributes(attribute.Int("messaging.message_payload_size_bytes", len(body)))

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait for publish confirmation: %w", ctx.Err())
	case confirm, ok := <-confirms:
		if !ok {
			return ErrConfirmChanClosed
		}
		if !confirm.Ack {
			return fmt.Errorf("%w: delivery tag %d", ErrPublishNacked, confirm.DeliveryTag)
		}
	}

	select {
	case ret, ok := <-returns:
		if ok {
			return fmt.Errorf("%w: %d %s", ErrPublishReturned, ret.ReplyCode, ret.ReplyText)
		}
	default:
	}

	return nil
}
