package logkv

import (
	"fmt"
	"net"
	"time"

	"github.com/4lexvav/logkv/internal/protocol"
	"github.com/4lexvav/logkv/pkg/kv"
)

// Client issues one request at a time over a single TCP connection.
// It is not safe for concurrent use; open one client per goroutine.
type Client struct {
	conn        net.Conn
	readTimeout time.Duration
}

// Connect dials a logkv server.
func Connect(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	addr := net.JoinHostPort(cfg.host, fmt.Sprintf("%d", cfg.port))

	conn, err := net.DialTimeout("tcp", addr, cfg.dialTimeout)
	if err != nil {
		return nil, err
	}

	return &Client{conn: conn, readTimeout: cfg.readTimeout}, nil
}

// Get returns the value for key. The boolean is false when the key does
// not exist on the server.
func (c *Client) Get(key string) (string, bool, error) {
	resp, err := c.roundTrip(protocol.OpGet, key, "")
	if err != nil {
		return "", false, err
	}

	switch resp.Status {
	case protocol.StatusValue:
		return resp.Payload, true, nil
	case protocol.StatusOK:
		return "", false, nil
	default:
		return "", false, serverError(resp.Payload)
	}
}

func (c *Client) Set(key, value string) error {
	resp, err := c.roundTrip(protocol.OpSet, key, value)
	if err != nil {
		return err
	}
	if resp.Status == protocol.StatusErr {
		return serverError(resp.Payload)
	}
	return nil
}

// Remove deletes key on the server. Returns kv.ErrKeyNotFound when the
// key does not exist.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(protocol.OpRemove, key, "")
	if err != nil {
		return err
	}
	if resp.Status == protocol.StatusErr {
		return serverError(resp.Payload)
	}
	return nil
}

// Reset deletes every key on the server.
func (c *Client) Reset() error {
	resp, err := c.roundTrip(protocol.OpReset, "", "")
	if err != nil {
		return err
	}
	if resp.Status == protocol.StatusErr {
		return serverError(resp.Payload)
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(op byte, key, value string) (*protocol.Response, error) {
	payload, err := protocol.EncodeRequest(op, key, value)
	if err != nil {
		return nil, err
	}

	if _, err := c.conn.Write(payload); err != nil {
		return nil, err
	}

	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return nil, err
		}
	}

	return protocol.DecodeResponse(c.conn)
}

// serverError maps the stable not-found message back to the sentinel so
// callers can test with errors.Is.
func serverError(message string) error {
	if message == kv.ErrKeyNotFound.Error() {
		return kv.ErrKeyNotFound
	}
	return fmt.Errorf("server error: %s", message)
}
