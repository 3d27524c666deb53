// Package ws implements the dial side of the game server protocol on top of
// gorilla/websocket: correlated command round-trips and ordered delivery of
// server-pushed events.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tktogether/motleycrowd/internal/game"
)

// ErrClosed is returned by Send when the connection has gone away.
var ErrClosed = errors.New("ws: client closed")

// commandFrame is an outbound command: {seq, command, payload}.
type commandFrame struct {
	Seq     uint64 `json:"seq"`
	Command string `json:"command"`
	Payload any    `json:"payload,omitempty"`
}

// serverFrame is any inbound frame: an ack ({seq, success, data}) or a pushed
// event ({event, payload}).
type serverFrame struct {
	Seq     uint64          `json:"seq,omitempty"`
	Success *bool           `json:"success,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Event   string          `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client is a websocket connection to the game server. It implements
// game.Commander and game.EventSource. Events are dispatched sequentially
// from the read loop, preserving server ordering.
type Client struct {
	conn   *websocket.Conn
	logger zerolog.Logger

	send chan commandFrame

	mu       sync.Mutex
	seq      uint64
	pending  map[uint64]chan game.Result
	handlers map[string][]func(json.RawMessage)

	closed    chan struct{}
	closeOnce sync.Once
}

// Dial connects to the game server at url and starts the write pump. The
// caller must run the read loop via Run and Close the client when done.
func Dial(ctx context.Context, url string, logger zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, logger), nil
}

// NewClient wraps an established connection. Exported for tests that upgrade
// their own side of the socket.
func NewClient(conn *websocket.Conn, logger zerolog.Logger) *Client {
	c := &Client{
		conn:     conn,
		logger:   logger,
		send:     make(chan commandFrame, 16),
		pending:  make(map[uint64]chan game.Result),
		handlers: make(map[string][]func(json.RawMessage)),
		closed:   make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Subscribe registers a handler for a pushed event. All registration must
// happen before Run starts consuming frames.
func (c *Client) Subscribe(event string, handler func(payload json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

// Send performs one command round-trip and waits for the server's ack.
func (c *Client) Send(ctx context.Context, command string, payload any) (game.Result, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	ack := make(chan game.Result, 1)
	c.pending[seq] = ack
	c.mu.Unlock()

	frame := commandFrame{Seq: seq, Command: command, Payload: payload}
	select {
	case c.send <- frame:
	case <-ctx.Done():
		c.drop(seq)
		return game.Result{}, ctx.Err()
	case <-c.closed:
		c.drop(seq)
		return game.Result{}, ErrClosed
	}

	select {
	case result := <-ack:
		return result, nil
	case <-ctx.Done():
		c.drop(seq)
		return game.Result{}, ctx.Err()
	case <-c.closed:
		c.drop(seq)
		return game.Result{}, ErrClosed
	}
}

// Run consumes inbound frames until the connection fails or is closed.
// Acks complete their pending round-trips; events run their handlers in
// arrival order on this goroutine.
func (c *Client) Run() error {
	defer c.Close()
	for {
		var frame serverFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			select {
			case <-c.closed:
				return nil
			default:
				return err
			}
		}

		if frame.Event != "" {
			c.mu.Lock()
			handlers := c.handlers[frame.Event]
			c.mu.Unlock()
			if len(handlers) == 0 {
				c.logger.Debug().Str("event", frame.Event).Msg("unhandled event")
			}
			for _, handler := range handlers {
				handler(frame.Payload)
			}
			continue
		}

		success := frame.Success != nil && *frame.Success
		c.mu.Lock()
		ack, ok := c.pending[frame.Seq]
		delete(c.pending, frame.Seq)
		c.mu.Unlock()
		if !ok {
			c.logger.Warn().Uint64("seq", frame.Seq).Msg("ack without pending command")
			continue
		}
		ack <- game.Result{Success: success, Data: frame.Data}
	}
}

// Close tears down the connection and fails all in-flight round-trips.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) drop(seq uint64) {
	c.mu.Lock()
	delete(c.pending, seq)
	c.mu.Unlock()
}

func (c *Client) writePump() {
	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteJSON(frame); err != nil {
				c.logger.Error().Err(err).Str("command", frame.Command).Msg("write frame")
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}
