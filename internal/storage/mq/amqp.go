package mq

import (
	"fmt"

	"github.com/streadway/amqp"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
)

// Connection is the subset of *amqp.Connection used by this package.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

// Channel is the subset of *amqp.Channel used by this package.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	NotifyReturn(c chan amqp.Return) chan amqp.Return
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// DialFunc opens a new broker connection.
type DialFunc func(cfg config.RabbitMQ) (Connection, error)

var (
	_ Connection = (*amqpConnection)(nil)
	_ Channel    = (*amqp.Channel)(nil)
)

type amqpConnection struct {
	*amqp.Connection
}

func (c *amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialRabbitMQ(cfg config.RabbitMQ) (Connection, error) {
	conn, err := amqp.DialConfig(amqpURL(cfg), amqp.Config{
		Heartbeat: cfg.Heartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(cfg.DialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	return &amqpConnection{Connection: conn}, nil
}

func amqpURL(cfg config.RabbitMQ) string {
	return amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		Password: cfg.Password,
		Vhost:    cfg.VHost,
	}.String()
}

func tableToHeaders(table amqp.Table) map[string]string {
	headers := make(map[string]string, len(table))
	for k, v := range table {
		if s, ok := v.(string); ok {
			headers[k] = s
		}
	}
	return headers
}

func headersToTable(headers map[string]string) amqp.Table {
	table := make(amqp.Table, len(headers))
	for k, v := range headers {
		table[k] = v
	}
	return table
}
