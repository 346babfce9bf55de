package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/streadway/amqp"

	"github.com/tuanvumaihuynh/product-catalog/internal/config"
)

// ErrMissingConfig is returned when a required broker connection setting is absent.
// It is a configuration fault and is never retried.
var ErrMissingConfig = errors.New("missing rabbitmq configuration")

// ConnectionManager owns the single broker connection shared by all publishers and consumers.
// The connection is created lazily on first use and at most once.
type ConnectionManager struct {
	cfg    config.RabbitMQ
	logger *slog.Logger
	dial   DialFunc

	newBackOff func() backoff.BackOff

	conn atomic.Pointer[RecoveringConnection]
	// mu guards connection creation only.
	mu sync.Mutex
}

// NewConnectionManager creates a connection manager. No connection is opened until GetConnection is called.
func NewConnectionManager(cfg config.RabbitMQ, logger *slog.Logger) *ConnectionManager {
	return &ConnectionManager{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "rabbitmq")),
		dial:   dialRabbitMQ,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxInterval = cfg.ReconnectMaxInterval
			return bo
		},
	}
}

// GetConnection returns the shared connection, creating it on first use.
//
// A failed creation leaves nothing cached, so the next caller starts over.
func (m *ConnectionManager) GetConnection(ctx context.Context) (*RecoveringConnection, error) {
	if conn := m.conn.Load(); conn != nil {
		return conn, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if conn := m.conn.Load(); conn != nil {
		return conn, nil
	}

	if err := checkConnectionSettings(m.cfg); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "connecting to rabbitmq",
		slog.String("host", m.cfg.Host),
		slog.Int("port", m.cfg.Port),
	)

	raw, err := m.dial(m.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	conn := newRecoveringConnection(raw, func() (Connection, error) {
		return m.dial(m.cfg)
	}, m.newBackOff, m.logger)
	m.conn.Store(conn)

	m.logger.InfoContext(ctx, "connected to rabbitmq")

	return conn, nil
}

// Close closes the shared connection if one was created.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn := m.conn.Swap(nil)
	if conn == nil {
		return nil
	}

	return conn.Close()
}

func checkConnectionSettings(cfg config.RabbitMQ) error {
	var missing []string
	if cfg.Host == "" {
		missing = append(missing, "RABBITMQ_HOST")
	}
	if cfg.Port == 0 {
		missing = append(missing, "RABBITMQ_PORT")
	}
	if cfg.User == "" {
		missing = append(missing, "RABBITMQ_USER")
	}
	if cfg.Password == "" {
		missing = append(missing, "RABBITMQ_PASSWORD")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	return nil
}

// RecoveringConnection is a broker connection that redials in the background whenever the
// underlying transport is lost. Callers keep the same handle across reconnects.
type RecoveringConnection struct {
	dial       func() (Connection, error)
	newBackOff func() backoff.BackOff
	logger     *slog.Logger

	mu      sync.RWMutex
	current Connection

	closing   chan struct{}
	closeOnce sync.Once
	watchDone chan struct{}
}

func newRecoveringConnection(
	conn Connection,
	dial func() (Connection, error),
	newBackOff func() backoff.BackOff,
	logger *slog.Logger,
) *RecoveringConnection {
	c := &RecoveringConnection{
		dial:       dial,
		newBackOff: newBackOff,
		logger:     logger,
		current:    conn,
		closing:    make(chan struct{}),
		watchDone:  make(chan struct{}),
	}

	go c.watch(conn)

	return c
}

// Channel opens a new channel on the current underlying connection.
func (c *RecoveringConnection) Channel() (Channel, error) {
	c.mu.RLock()
	conn := c.current
	c.mu.RUnlock()

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return ch, nil
}

// Close stops reconnecting and closes the underlying connection.
func (c *RecoveringConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		<-c.watchDone

		c.mu.RLock()
		conn := c.current
		c.mu.RUnlock()

		if !conn.IsClosed() {
			err = conn.Close()
		}
	})
	return err
}

func (c *RecoveringConnection) watch(conn Connection) {
	defer close(c.watchDone)

	for {
		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closing:
			return
		case amqpErr := <-notifyClose:
			select {
			case <-c.closing:
				return
			default:
			}

			c.logger.Warn("rabbitmq connection lost, reconnecting", slog.Any("error", amqpErr))

			newConn, ok := c.redial()
			if !ok {
				return
			}

			c.mu.Lock()
			c.current = newConn
			c.mu.Unlock()
			conn = newConn

			c.logger.Info("reconnected to rabbitmq")
		}
	}
}

// redial keeps dialing with backoff until it succeeds or the connection is closed.
func (c *RecoveringConnection) redial() (Connection, bool) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-c.closing:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		conn, err := backoff.Retry(ctx, c.dial,
			backoff.WithBackOff(c.newBackOff()),
			backoff.WithNotify(func(err error, next time.Duration) {
				c.logger.Warn("rabbitmq reconnect attempt failed",
					slog.Any("error", err),
					slog.Duration("retry_in", next),
				)
			}),
		)
		if err == nil {
			return conn, true
		}
		if ctx.Err() != nil {
			return nil, false
		}
	}
}
