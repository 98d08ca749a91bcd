package hub

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrNotConnected is returned by Client methods before Dial succeeds or
// after Close.
var ErrNotConnected = errors.New("hub: not connected")

// requestTimeout bounds a one-shot request/response exchange.
const requestTimeout = 30 * time.Second

// Client is a persistent connection to the hub, used from inside a
// helper container (or by the CLI on the host) for messaging and
// container control. For one-shot commands prefer SendRequest.
type Client struct {
	mu     sync.Mutex
	nc     net.Conn
	reader *bufio.Reader
}

// Dial connects to the hub socket.
func Dial(socketPath string) (*Client, error) {
	nc, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}
	return &Client{nc: nc, reader: bufio.NewReader(nc)}, nil
}

// Register binds this connection to a helper number so the hub can
// route messages to it.
func (c *Client) Register(helperNum int) error {
	resp, err := c.request(map[string]any{
		"action":     "register",
		"helper_num": helperNum,
	})
	if err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("registration failed: %s", resp.Message)
	}
	return nil
}

// Spawn asks the hub to launch helper helperNum. model and helpersDir
// are optional.
func (c *Client) Spawn(helperNum int, model, helpersDir string) (Response, error) {
	req := map[string]any{
		"action":     "spawn",
		"helper_num": helperNum,
	}
	if model != "" {
		req["model"] = model
	}
	if helpersDir != "" {
		req["helpers_dir"] = helpersDir
	}
	return c.request(req)
}

// StopContainer asks the hub to stop and remove a container by name.
func (c *Client) StopContainer(name string) (Response, error) {
	return c.request(map[string]any{
		"action":         "stop",
		"container_name": name,
	})
}

// Send routes payload to one helper.
func (c *Client) Send(to int, payload any) (Response, error) {
	return c.request(map[string]any{
		"action":  "send",
		"to":      to,
		"payload": payload,
	})
}

// Broadcast routes payload to every other registered helper.
func (c *Client) Broadcast(payload any) (Response, error) {
	return c.request(map[string]any{
		"action":  "broadcast",
		"payload": payload,
	})
}

// Recv blocks until a pushed message event arrives. A non-positive
// timeout blocks indefinitely; on timeout it returns (nil, nil) so
// callers can poll without treating it as a failure.
func (c *Client) Recv(timeout time.Duration) (*MessageEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc == nil {
		return nil, ErrNotConnected
	}

	if timeout > 0 {
		c.nc.SetReadDeadline(time.Now().Add(timeout))
	} else {
		c.nc.SetReadDeadline(time.Time{})
	}
	defer c.nc.SetReadDeadline(time.Time{})

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		return nil, err
	}

	var event MessageEvent
	if err := json.Unmarshal(line, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &event, nil
}

// Close closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc == nil {
		return nil
	}
	err := c.nc.Close()
	c.nc = nil
	return err
}

// request sends one request and reads the reply. The lock spans the
// pair so concurrent callers never interleave on the wire.
func (c *Client) request(req any) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.nc == nil {
		return Response{}, ErrNotConnected
	}

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}
	data = append(data, '\n')

	c.nc.SetDeadline(time.Now().Add(requestTimeout))
	defer c.nc.SetDeadline(time.Time{})

	if _, err := c.nc.Write(data); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	line, err := c.reader.ReadBytes('\n')
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// SendRequest is a one-shot convenience: connect, send req, read the
// reply, disconnect. For spawn/stop commands that don't need a
// persistent connection.
func SendRequest(socketPath string, req any) (Response, error) {
	c, err := Dial(socketPath)
	if err != nil {
		return Response{}, err
	}
	defer c.Close()
	return c.request(req)
}
