package bridge

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Client timeouts
const (
	DialTimeout  = 5 * time.Second
	WriteTimeout = 2 * time.Second
)

// Client is the isolated end of the socket bridge
type Client struct {
	mu      sync.Mutex
	conn    net.Conn
	closed  bool
	dropped atomic.Uint64
}

// Dial connects to a Server at addr ("tcp://host:port" or "unix:///path")
func Dial(addr string) (*Client, error) {
	network, address := splitAddr(addr)
	conn, err := net.DialTimeout(network, address, DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Send writes one message. Failures are counted and never reported to the caller.
func (c *Client) Send(event string, payload any) {
	line, err := encodeLine(event, payload)
	if err != nil {
		c.dropped.Add(1)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if _, err := c.conn.Write(line); err != nil {
		c.dropped.Add(1)
	}
}

// Dropped reports messages that were not written
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// Close closes the connection; later sends are dropped
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
