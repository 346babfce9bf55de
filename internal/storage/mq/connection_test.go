package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionManager_GetConnection(t *testing.T) {
	t.Run("Should dial once under concurrent first use", func(t *testing.T) {
		broker := newFakeBroker()
		broker.dialDelay = 20 * time.Millisecond
		m := newTestConnectionManager(testRabbitMQConfig(), broker)
		t.Cleanup(func() { _ = m.Close() })

		const callers = 32
		conns := make([]*RecoveringConnection, callers)
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				conn, err := m.GetConnection(context.Background())
				assert.NoError(t, err)
				conns[i] = conn
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, broker.dialCount())
		for _, conn := range conns {
			assert.Same(t, conns[0], conn)
		}
	})

	t.Run("Should not cache a failed connection", func(t *testing.T) {
		broker := newFakeBroker()
		broker.setDialErr(errors.New("connection refused"))
		m := newTestConnectionManager(testRabbitMQConfig(), broker)
		t.Cleanup(func() { _ = m.Close() })

		_, err := m.GetConnection(context.Background())
		require.ErrorContains(t, err, "connection refused")

		broker.setDialErr(nil)
		conn, err := m.GetConnection(context.Background())
		require.NoError(t, err)
		assert.NotNil(t, conn)
		assert.Equal(t, 2, broker.dialCount())
	})

	t.Run("Should report missing settings without dialing", func(t *testing.T) {
		broker := newFakeBroker()
		cfg := testRabbitMQConfig()
		cfg.Host = ""
		cfg.Password = ""
		m := newTestConnectionManager(cfg, broker)

		_, err := m.GetConnection(context.Background())
		require.ErrorIs(t, err, ErrMissingConfig)
		assert.ErrorContains(t, err, "RABBITMQ_HOST, RABBITMQ_PASSWORD")
		assert.Zero(t, broker.dialCount())
	})
}

func TestConnectionManager_Close(t *testing.T) {
	t.Run("Should be a no-op before first use", func(t *testing.T) {
		m := newTestConnectionManager(testRabbitMQConfig(), newFakeBroker())
		assert.NoError(t, m.Close())
	})

	t.Run("Should close the connection and allow a fresh one", func(t *testing.T) {
		broker := newFakeBroker()
		m := newTestConnectionManager(testRabbitMQConfig(), broker)

		first, err := m.GetConnection(context.Background())
		require.NoError(t, err)
		require.NoError(t, m.Close())
		assert.True(t, broker.connection(0).IsClosed())

		second, err := m.GetConnection(context.Background())
		require.NoError(t, err)
		t.Cleanup(func() { _ = m.Close() })
		assert.NotSame(t, first, second)
		assert.Equal(t, 2, broker.dialCount())
	})
}

func TestRecoveringConnection(t *testing.T) {
	t.Run("Should redial after the transport is lost", func(t *testing.T) {
		broker := newFakeBroker()
		m := newTestConnectionManager(testRabbitMQConfig(), broker)
		t.Cleanup(func() { _ = m.Close() })

		conn, err := m.GetConnection(context.Background())
		require.NoError(t, err)

		broker.connection(0).drop()

		require.Eventually(t, func() bool {
			return broker.dialCount() == 2
		}, time.Second, 5*time.Millisecond)

		require.Eventually(t, func() bool {
			ch, err := conn.Channel()
			if err != nil {
				return false
			}
			return ch.(*fakeChannel).conn == broker.connection(1)
		}, time.Second, 5*time.Millisecond)

		again, err := m.GetConnection(context.Background())
		require.NoError(t, err)
		assert.Same(t, conn, again)
	})

	t.Run("Should keep retrying until a dial succeeds", func(t *testing.T) {
		broker := newFakeBroker()
		m := newTestConnectionManager(testRabbitMQConfig(), broker)
		t.Cleanup(func() { _ = m.Close() })

		conn, err := m.GetConnection(context.Background())
		require.NoError(t, err)

		broker.setDialErr(errors.New("connection refused"))
		broker.connection(0).drop()

		require.Eventually(t, func() bool {
			return broker.dialCount() >= 3
		}, time.Second, time.Millisecond)

		_, err = conn.Channel()
		assert.Error(t, err)

		broker.setDialErr(nil)
		require.Eventually(t, func() bool {
			_, err := conn.Channel()
			return err == nil
		}, time.Second, 5*time.Millisecond)
	})
}
