package natsclient

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, nats.DefaultURL, cfg.URL)
	assert.Equal(t, "httpsink", cfg.Name)
	assert.Equal(t, -1, cfg.MaxReconnects)
	assert.Equal(t, 2*time.Second, cfg.ReconnectWait)
}

func TestNew_FillsURL(t *testing.T) {
	c := New(Config{}, nil)
	assert.Equal(t, nats.DefaultURL, c.cfg.URL)
}

func TestSubscribe_RequiresConnection(t *testing.T) {
	c := New(DefaultConfig(), nil)

	err := c.Subscribe("records.input", func([]byte) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}

func TestClient_NotConnected(t *testing.T) {
	c := New(DefaultConfig(), nil)

	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Drain())

	// Close on a never-connected client is a no-op
	c.Close()
}
