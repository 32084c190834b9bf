// Package transport carries framed messages over a local Unix socket.
//
// With network "unixpacket" each read or write is one message. With "unix"
// (a byte stream) every message is preceded by its length as a 4-byte
// big-endian integer.
package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"

	"github.com/RyanBlaney/sonido-verdict/config"
)

// DefaultMaxMessage is the largest message accepted when Config leaves it unset.
const DefaultMaxMessage = 64 * 1024

// ErrMessageTooLarge is returned for messages over the configured limit.
var ErrMessageTooLarge = errors.New("message too large")

// Config names an endpoint.
type Config struct {
	Network    string // "unixpacket" or "unix"
	Endpoint   string // socket path
	MaxMessage int
}

// ConfigFrom builds a transport config from the service config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Network:    cfg.Transport.Network,
		Endpoint:   cfg.Transport.Endpoint,
		MaxMessage: cfg.Transport.MaxMessage,
	}
}

func (c Config) normalized() (Config, error) {
	switch c.Network {
	case "":
		c.Network = "unixpacket"
	case "unixpacket", "unix":
	default:
		return c, fmt.Errorf("unsupported network %q", c.Network)
	}
	if c.Endpoint == "" {
		return c, errors.New("endpoint is required")
	}
	if c.MaxMessage <= 0 {
		c.MaxMessage = DefaultMaxMessage
	}
	return c, nil
}

// Listener accepts connections on one endpoint.
type Listener struct {
	ln  *net.UnixListener
	cfg Config
}

// Listen binds the endpoint. A stale socket file left by a previous process
// is removed first; any other file at the path is an error.
func Listen(cfg Config) (*Listener, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}

	if err := removeStaleSocket(cfg.Endpoint); err != nil {
		return nil, err
	}

	ln, err := net.ListenUnix(cfg.Network, &net.UnixAddr{Name: cfg.Endpoint, Net: cfg.Network})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.Endpoint, err)
	}
	ln.SetUnlinkOnClose(true)

	return &Listener{ln: ln, cfg: cfg}, nil
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if info.Mode()&fs.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove stale socket %s: %w", path, err)
	}
	return nil
}

// Accept waits for one client. Cancelling ctx closes the listener and
// unblocks the wait.
func (l *Listener) Accept(ctx context.Context) (*Conn, error) {
	stop := context.AfterFunc(ctx, func() { l.ln.Close() })
	defer stop()

	c, err := l.ln.AcceptUnix()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to accept: %w", err)
	}

	return newConn(c, l.cfg), nil
}

// Addr returns the socket path.
func (l *Listener) Addr() string {
	return l.cfg.Endpoint
}

// Close stops listening and unlinks the socket file.
func (l *Listener) Close() error {
	err := l.ln.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Conn is one framed connection.
type Conn struct {
	c   *net.UnixConn
	cfg Config
}

func newConn(c *net.UnixConn, cfg Config) *Conn {
	return &Conn{c: c, cfg: cfg}
}

// Dial connects to a listening endpoint.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	c, err := d.DialContext(ctx, cfg.Network, cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	return newConn(c.(*net.UnixConn), cfg), nil
}

// ReadMessage reads one framed message.
func (c *Conn) ReadMessage() ([]byte, error) {
	if c.cfg.Network == "unixpacket" {
		// one spare byte tells a full-size message from a truncated one
		buf := make([]byte, c.cfg.MaxMessage+1)
		n, err := c.c.Read(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, io.EOF
		}
		if n > c.cfg.MaxMessage {
			return nil, fmt.Errorf("%w: over %d bytes", ErrMessageTooLarge, c.cfg.MaxMessage)
		}
		return buf[:n], nil
	}

	var header [4]byte
	if _, err := io.ReadFull(c.c, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > uint32(c.cfg.MaxMessage) {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, size, c.cfg.MaxMessage)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(c.c, buf); err != nil {
		return nil, fmt.Errorf("short message: %w", err)
	}
	return buf, nil
}

// WriteMessage writes one framed message.
func (c *Conn) WriteMessage(msg []byte) error {
	if len(msg) > c.cfg.MaxMessage {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrMessageTooLarge, len(msg), c.cfg.MaxMessage)
	}

	if c.cfg.Network == "unixpacket" {
		_, err := c.c.Write(msg)
		return err
	}

	frame := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(frame, uint32(len(msg)))
	copy(frame[4:], msg)
	_, err := c.c.Write(frame)
	return err
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.c.Close()
}
