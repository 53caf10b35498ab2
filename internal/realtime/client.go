// File: internal/realtime/client.go
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nexus-desktop/nexus-agent/api/schemas"
	"github.com/nexus-desktop/nexus-agent/internal/config"
)

// ErrReconnectExhausted is returned when the client has used up its
// reconnection budget without re-establishing the session.
var ErrReconnectExhausted = errors.New("realtime: reconnect attempts exhausted")

// Handler receives every event the server pushes to this client.
type Handler func(schemas.Event)

// Client maintains a websocket session against the hub, reconnecting with
// a doubling backoff for a bounded number of attempts.
type Client struct {
	url     string
	cfg     config.RealtimeConfig
	handler Handler
	log     *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient builds a client for the given ws:// URL. handler may be nil.
func NewClient(url string, cfg config.RealtimeConfig, handler Handler, logger *zap.Logger) *Client {
	if handler == nil {
		handler = func(schemas.Event) {}
	}
	return &Client{
		url:     url,
		cfg:     cfg,
		handler: handler,
		log:     logger.Named("realtime.client"),
	}
}

// Run connects and serves events until ctx is canceled or the reconnection
// budget runs out. A successful connection resets the attempt counter.
func (c *Client) Run(ctx context.Context) error {
	attempts := 0
	delay := c.cfg.ReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			attempts++
			if attempts > c.cfg.ReconnectAttempts {
				c.log.Error("giving up on reconnection", zap.Int("attempts", attempts-1))
				return fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, attempts-1, err)
			}
			c.log.Warn("connection failed, retrying",
				zap.Int("attempt", attempts),
				zap.Duration("delay", delay),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = nextDelay(delay, c.cfg.ReconnectDelayMax)
			continue
		}

		attempts = 0
		delay = c.cfg.ReconnectDelay
		c.setConn(conn)
		c.log.Info("connected", zap.String("url", c.url))

		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("connection dropped", zap.Error(err))
	}
}

// Send emits an event to the server. It fails when not connected.
func (c *Client) Send(eventType string, data any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("realtime: not connected")
	}
	return conn.WriteJSON(schemas.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Close tears down the current connection, if any.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.cfg.WriteWait))
	})

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var ev schemas.Event
		if err := conn.ReadJSON(&ev); err != nil {
			return err
		}
		c.handler(ev)
	}
}

// nextDelay doubles the backoff up to the configured ceiling.
func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if max > 0 && next > max {
		next = max
	}
	return next
}
