package mq

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/streadway/amqp"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
)

// fakeBroker is an in-memory stand-in for a RabbitMQ server.
type fakeBroker struct {
	mu sync.Mutex

	dialDelay time.Duration
	dialErr   error
	dials     int
	conns     []*fakeConnection

	declareErr error
	nack       bool
	noConfirm  bool
	unroutable bool

	exchanges map[string]string
	queues    map[string]bool
	published []publishedMessage

	bindings map[string]string            // queue to the routing key it is bound with
	queued   map[string][]amqp.Publishing // routed messages of queues without a consumer

	channelsOpened int
	channelsClosed int

	deliveries    map[string]chan amqp.Delivery
	subscriptions map[string]int
	qos           int
}

type publishedMessage struct {
	exchange   string
	routingKey string
	mandatory  bool
	msg        amqp.Publishing
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		exchanges:     map[string]string{},
		queues:        map[string]bool{},
		bindings:      map[string]string{},
		queued:        map[string][]amqp.Publishing{},
		deliveries:    map[string]chan amqp.Delivery{},
		subscriptions: map[string]int{},
	}
}

func (b *fakeBroker) dial(config.RabbitMQ) (Connection, error) {
	if b.dialDelay > 0 {
		time.Sleep(b.dialDelay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}

	conn := &fakeConnection{broker: b}
	b.conns = append(b.conns, conn)
	return conn, nil
}

func (b *fakeBroker) setDialErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialErr = err
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) connection(i int) *fakeConnection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conns[i]
}

func (b *fakeBroker) messages() []publishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedMessage(nil), b.published...)
}

func (b *fakeBroker) channelCounts() (opened, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channelsOpened, b.channelsClosed
}

func (b *fakeBroker) subscriptionCount(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.subscriptions[queue]
}

// deliver pushes a message to the current consumer of queue.
func (b *fakeBroker) deliver(queue string, d amqp.Delivery) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.deliveries[queue]
	if !ok {
		return false
	}
	ch <- d
	return true
}

// cancelConsumer closes the delivery channel of the current consumer of queue.
func (b *fakeBroker) cancelConsumer(queue string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.deliveries[queue]; ok {
		close(ch)
		delete(b.deliveries, queue)
	}
}

// route copies msg to every queue bound with key. b.mu must be held.
func (b *fakeBroker) route(key string, msg amqp.Publishing) bool {
	routed := false
	for queue, bound := range b.bindings {
		if bound != key {
			continue
		}
		routed = true

		if deliveries, ok := b.deliveries[queue]; ok {
			deliveries <- amqp.Delivery{
				Acknowledger: newFakeAcknowledger(),
				Headers:      msg.Headers,
				MessageId:    msg.MessageId,
				RoutingKey:   key,
				Body:         msg.Body,
			}
			continue
		}
		b.queued[queue] = append(b.queued[queue], msg)
	}
	return routed
}

func (b *fakeBroker) queuedCount(queue string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queued[queue])
}

func (b *fakeBroker) binding(queue string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bindings[queue]
}

type fakeConnection struct {
	broker *fakeBroker

	mu       sync.Mutex
	closed   bool
	notifies []chan *amqp.Error
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, amqp.ErrClosed
	}

	c.broker.mu.Lock()
	c.broker.channelsOpened++
	c.broker.mu.Unlock()

	return &fakeChannel{conn: c, broker: c.broker}, nil
}

func (c *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		close(receiver)
		return receiver
	}
	c.notifies = append(c.notifies, receiver)
	return receiver
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return amqp.ErrClosed
	}
	c.closed = true
	for _, n := range c.notifies {
		close(n)
	}
	c.notifies = nil
	return nil
}

// drop simulates a transport failure reported by the broker.
func (c *fakeConnection) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	for _, n := range c.notifies {
		n <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "connection forced", Server: true}
		close(n)
	}
	c.notifies = nil
}

type fakeChannel struct {
	conn   *fakeConnection
	broker *fakeBroker

	mu       sync.Mutex
	closed   bool
	confirm  bool
	confirms []chan amqp.Confirmation
	returns  []chan amqp.Return
	tag      uint64
}

func (ch *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if ch.broker.declareErr != nil {
		return ch.broker.declareErr
	}
	if !durable || autoDelete || internal {
		return errors.New("unexpected exchange flags")
	}
	ch.broker.exchanges[name] = kind
	return nil
}

func (ch *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if !durable || autoDelete || exclusive {
		return amqp.Queue{}, errors.New("unexpected queue flags")
	}
	ch.broker.queues[name] = true
	return amqp.Queue{Name: name}, nil
}

func (ch *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if _, ok := ch.broker.exchanges[exchange]; !ok {
		return errors.New("no exchange " + exchange)
	}
	if !ch.broker.queues[name] {
		return errors.New("no queue " + name)
	}
	ch.broker.bindings[name] = key
	return nil
}

func (ch *fakeChannel) Confirm(noWait bool) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.confirm = true
	return nil
}

func (ch *fakeChannel) NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.confirms = append(ch.confirms, confirm)
	return confirm
}

func (ch *fakeChannel) NotifyReturn(c chan amqp.Return) chan amqp.Return {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.returns = append(ch.returns, c)
	return c
}

func (ch *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}

	ch.broker.mu.Lock()
	ch.broker.published = append(ch.broker.published, publishedMessage{
		exchange:   exchange,
		routingKey: key,
		mandatory:  mandatory,
		msg:        msg,
	})
	routed := !ch.broker.unroutable && ch.broker.route(key, msg)
	nack, noConfirm := ch.broker.nack, ch.broker.noConfirm
	ch.broker.mu.Unlock()

	if mandatory && !routed {
		for _, r := range ch.returns {
			r <- amqp.Return{ReplyCode: amqp.NoRoute, ReplyText: "NO_ROUTE", Exchange: exchange, RoutingKey: key}
		}
	}

	ch.tag++
	if ch.confirm && !noConfirm {
		for _, c := range ch.confirms {
			c <- amqp.Confirmation{DeliveryTag: ch.tag, Ack: !nack}
		}
	}
	return nil
}

func (ch *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()
	ch.broker.qos = prefetchCount
	return nil
}

func (ch *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	if autoAck {
		return nil, errors.New("auto-ack not expected")
	}

	ch.broker.mu.Lock()
	defer ch.broker.mu.Unlock()

	if !ch.broker.queues[queue] {
		return nil, errors.New("no queue " + queue)
	}

	deliveries := make(chan amqp.Delivery, 16)
	ch.broker.deliveries[queue] = deliveries
	ch.broker.subscriptions[queue]++
	return deliveries, nil
}

func (ch *fakeChannel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	if ch.closed {
		return amqp.ErrClosed
	}
	ch.closed = true
	for _, c := range ch.confirms {
		close(c)
	}
	ch.confirms = nil
	for _, r := range ch.returns {
		close(r)
	}
	ch.returns = nil

	ch.broker.mu.Lock()
	ch.broker.channelsClosed++
	ch.broker.mu.Unlock()
	return nil
}

// fakeAcknowledger records the outcome of a single delivery.
type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
	done    chan struct{}
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{done: make(chan struct{})}
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = true
	close(a.done)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = true
	a.requeue = requeue
	close(a.done)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func testRabbitMQConfig() config.RabbitMQ {
	return config.RabbitMQ{
		Host:                        "localhost",
		Port:                        5672,
		User:                        "guest",
		Password:                    "guest",
		VHost:                       "/",
		ProductsExchange:            "products",
		ProductNameUpdateRoutingKey: "product.name.updated",
		PublishTimeout:              time.Second,
		ReconnectMaxInterval:        time.Second,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func zeroBackOff() backoff.BackOff {
	return &backoff.ZeroBackOff{}
}

func newTestConnectionManager(cfg config.RabbitMQ, broker *fakeBroker) *ConnectionManager {
	m := NewConnectionManager(cfg, discardLogger())
	m.dial = broker.dial
	m.newBackOff = zeroBackOff
	return m
}
