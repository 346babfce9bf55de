package mq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// declareTopology declares the durable direct exchange, the durable queue and the binding of
// the queue to the exchange by routing key. Every declaration is idempotent on the broker.
// Publishers use the routing key as the queue name.
func declareTopology(ch Channel, exchange, queue, routingKey string) error {
	if err := ch.ExchangeDeclare(
		exchange,            // name
		amqp.ExchangeDirect, // type
		true,                // durable
		false,               // auto-deleted
		false,               // internal
		false,               // no-wait
		nil,                 // arguments
	); err != nil {
		return fmt.Errorf("declare exchange %q: %w", exchange, err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // auto-deleted
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare queue %q: %w", queue, err)
	}

	if err := ch.QueueBind(queue, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %q to exchange %q: %w", queue, exchange, err)
	}

	return nil
}
