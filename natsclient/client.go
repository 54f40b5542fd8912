// Package natsclient provides a thin NATS connection manager for feeding
// records into the sink.
package natsclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/httpsink/errors"
	"github.com/c360/httpsink/pkg/retry"
)

// Config holds NATS connection settings.
type Config struct {
	URL            string        `json:"url"             yaml:"url"`
	Name           string        `json:"name"            yaml:"name"`
	MaxReconnects  int           `json:"max_reconnects"  yaml:"max_reconnects"`
	ReconnectWait  time.Duration `json:"reconnect_wait"  yaml:"reconnect_wait"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// DefaultConfig returns connection settings suitable for local development.
func DefaultConfig() Config {
	return Config{
		URL:            nats.DefaultURL,
		Name:           "httpsink",
		MaxReconnects:  -1, // reconnect forever
		ReconnectWait:  2 * time.Second,
		ConnectTimeout: 5 * time.Second,
	}
}

// Client manages one NATS connection and its subscriptions.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu   sync.Mutex
	conn *nats.Conn
	subs []*nats.Subscription
}

// New creates a client. Connect must be called before Subscribe.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: logger}
}

// Connect establishes the connection, retrying with backoff until the
// context is cancelled or the quick-retry budget is exhausted.
func (c *Client) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.Name(c.cfg.Name),
		nats.MaxReconnects(c.cfg.MaxReconnects),
		nats.ReconnectWait(c.cfg.ReconnectWait),
		nats.Timeout(c.cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			c.logger.Info("nats connection closed")
		}),
	}

	return retry.Do(ctx, retry.Quick(), func() error {
		conn, err := nats.Connect(c.cfg.URL, opts...)
		if err != nil {
			c.logger.Warn("nats connect failed, retrying", slog.String("error", err.Error()))
			return errors.WrapTransient(err, "Client", "Connect", "dial nats")
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.logger.Info("nats connected", slog.String("url", conn.ConnectedUrl()))
		return nil
	})
}

// Subscribe registers a handler for a subject. Message data is handed to the
// handler as-is.
func (c *Client) Subscribe(subject string, handler func(data []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return errors.WrapFatal(errors.ErrNotStarted, "Client", "Subscribe", "check connection")
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", "subscribe "+subject)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Drain unsubscribes all subscriptions and flushes pending messages.
func (c *Client) Drain() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, sub := range c.subs {
		if err := sub.Drain(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.subs = nil
	return firstErr
}

// Close drains and closes the connection.
func (c *Client) Close() {
	_ = c.Drain()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// IsConnected reports whether the underlying connection is up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.conn.IsConnected()
}
