package transport

import (
	"context"
	"fmt"
	"time"
)

// DefaultRetryInterval is the pause between connection attempts.
const DefaultRetryInterval = 50 * time.Millisecond

// Client sends one request per connection. The server rebuilds its endpoint
// after every request, so dialing is retried until ctx is done.
type Client struct {
	cfg           Config
	RetryInterval time.Duration
}

// NewClient creates a client for the endpoint in cfg.
func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg, RetryInterval: DefaultRetryInterval}
}

// Do sends request and returns the single response message.
func (c *Client) Do(ctx context.Context, request string) (string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteMessage([]byte(request)); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	resp, err := conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	return string(resp), nil
}

func (c *Client) dial(ctx context.Context) (*Conn, error) {
	interval := c.RetryInterval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}

	for {
		conn, err := Dial(ctx, c.cfg)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to connect to %s: %w (last error: %v)", c.cfg.Endpoint, ctx.Err(), err)
		case <-time.After(interval):
		}
	}
}
