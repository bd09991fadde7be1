package apiclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/Alia5/ghostkey/apitypes"
)

// Client provides a high-level interface to the ghostkey control API, handling
// request formatting, response parsing, and error handling.
type Client struct{ transport *Transport }

// New constructs a high-level API client for the server at addr (host:port).
func New(addr string) *Client { return &Client{transport: NewTransport(addr)} }

// NewWithPassword constructs a client that authenticates with the given password.
func NewWithPassword(addr, password string) *Client {
	return &Client{transport: NewTransportWithPassword(addr, password)}
}

// NewWithConfig constructs a client with custom transport timeouts.
func NewWithConfig(addr string, cfg *Config) *Client {
	return &Client{transport: NewTransportWithConfig(addr, cfg)}
}

// WithTransport constructs a Client using a custom Transport implementation.
// This is primarily useful for testing.
func WithTransport(t *Transport) *Client { return &Client{transport: t} }

// Ping returns the version and identity of the server.
func (c *Client) Ping() (*apitypes.PingResponse, error) {
	return c.PingCtx(context.Background())
}

// PingCtx is the context-aware version of Ping.
func (c *Client) PingCtx(ctx context.Context) (*apitypes.PingResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "ping", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.PingResponse](raw)
}

// InjectStart arms a session for text. The server answers 400 for empty text,
// 409 while another session is live and 403 when the input permission is missing.
func (c *Client) InjectStart(text string) (*apitypes.InjectStartResponse, error) {
	return c.InjectStartCtx(context.Background(), text)
}

func (c *Client) InjectStartCtx(ctx context.Context, text string) (*apitypes.InjectStartResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "inject/start", apitypes.InjectStartRequest{Text: text}, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.InjectStartResponse](raw)
}

// InjectCancel cancels the live session. Cancelled is false when the server was idle.
func (c *Client) InjectCancel() (*apitypes.InjectCancelResponse, error) {
	return c.InjectCancelCtx(context.Background())
}

func (c *Client) InjectCancelCtx(ctx context.Context) (*apitypes.InjectCancelResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "inject/cancel", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.InjectCancelResponse](raw)
}

// InjectStatus returns the engine state and counters.
func (c *Client) InjectStatus() (*apitypes.InjectStatusResponse, error) {
	return c.InjectStatusCtx(context.Background())
}

func (c *Client) InjectStatusCtx(ctx context.Context) (*apitypes.InjectStatusResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "inject/status", nil, nil)
	if err != nil {
		return nil, err
	}
	return parse[apitypes.InjectStatusResponse](raw)
}

// EventStream reads session events from an open inject/events stream.
type EventStream struct {
	conn net.Conn
	r    *bufio.Reader
}

// Events opens the inject/events stream. Close the stream when done.
func (c *Client) Events(ctx context.Context) (*EventStream, error) {
	conn, err := c.transport.OpenStream(ctx, "inject/events", nil, nil)
	if err != nil {
		return nil, err
	}
	s := &EventStream{conn: conn, r: bufio.NewReader(conn)}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			_ = conn.Close()
		}()
	}
	return s, nil
}

// Next blocks for the next event. A problem+json line is returned as an error.
func (s *EventStream) Next() (*apitypes.InjectEvent, error) {
	line, err := s.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	return parse[apitypes.InjectEvent](string(bytes.TrimSuffix(line, []byte("\n"))))
}

// Close ends the stream.
func (s *EventStream) Close() error { return s.conn.Close() }

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem apitypes.ApiError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
