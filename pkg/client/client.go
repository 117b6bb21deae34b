// Package client is a small, dependency-free driver for the plain-TCP
// wire protocol: dial a node, write one command, half-close, read the
// response to EOF. It is used by the command-line tool.
package client

import (
	"fmt"
	"io"
	"net"
	"time"
)

// Client sends one command per connection to a single node address.
type Client struct {
	addr    string
	timeout time.Duration
}

// New builds a Client targeting addr ("host:port").
func New(addr string) *Client {
	return &Client{addr: addr, timeout: 5 * time.Second}
}

// WithTimeout overrides the default dial/read timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// Send dials addr, writes line followed by a half-close, then reads
// the full response until the peer closes its side.
func (c *Client) Send(line string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, c.timeout)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := fmt.Fprint(conn, line); err != nil {
		return "", fmt.Errorf("write to %s: %w", c.addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	body, err := io.ReadAll(conn)
	if err != nil {
		return "", fmt.Errorf("read from %s: %w", c.addr, err)
	}
	return string(body), nil
}

// Put sends "PUT key value" and returns the raw response.
func (c *Client) Put(key, value string) (string, error) {
	return c.Send(fmt.Sprintf("PUT %s %s", key, value))
}

// Read sends "READ key" and returns the raw response.
func (c *Client) Read(key string) (string, error) {
	return c.Send(fmt.Sprintf("READ %s", key))
}

// ReadRange sends "READRANGE start end" and returns the raw response.
func (c *Client) ReadRange(start, end string) (string, error) {
	return c.Send(fmt.Sprintf("READRANGE %s %s", start, end))
}

// Delete sends "DELETE key" and returns the raw response.
func (c *Client) Delete(key string) (string, error) {
	return c.Send(fmt.Sprintf("DELETE %s", key))
}
