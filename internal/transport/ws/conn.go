// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vestiary Contributors

// Package ws is the websocket transport boundary. It upgrades client
// connections, runs the hello handshake, and forwards decoded requests
// to the room runtime. The core never sees transport internals beyond
// the room.Connection interface.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/samber/oops"
)

// Envelope is the wire frame: a tagged union with an optional request
// id for request/response pairs.
type Envelope struct {
	Type    string          `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrConnClosed is returned when awaiting on a closed connection.
var ErrConnClosed = oops.In("ws").Errorf("connection closed")

// Conn is the room-facing side of one websocket client. Sends are
// fire-and-forget onto the outbound queue; a full queue drops the
// message rather than stalling the room.
type Conn struct {
	out    chan []byte
	logger *slog.Logger

	nextID  atomic.Uint64
	mu      sync.Mutex
	waiters map[uint64]chan json.RawMessage
	closed  chan struct{}
	once    sync.Once
}

func newConn(queueSize int, logger *slog.Logger) *Conn {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Conn{
		out:     make(chan []byte, queueSize),
		logger:  logger,
		waiters: make(map[uint64]chan json.RawMessage),
		closed:  make(chan struct{}),
	}
}

// close releases every pending waiter. Safe to call more than once.
func (c *Conn) close() {
	c.once.Do(func() {
		close(c.closed)
	})
}

// SendMessage queues one fire-and-forget message to the client.
func (c *Conn) SendMessage(msgType string, payload any) {
	c.send(Envelope{Type: msgType}, payload)
}

// AwaitResponse sends a request and blocks until the client answers
// with a response frame carrying the same id.
func (c *Conn) AwaitResponse(ctx context.Context, msgType string, payload any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.waiters[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.waiters, id)
		c.mu.Unlock()
	}()

	c.send(Envelope{Type: msgType, ID: id}, payload)

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.closed:
		return nil, ErrConnClosed
	case <-ctx.Done():
		return nil, oops.In("ws").Wrapf(ctx.Err(), "await response %q", msgType)
	}
}

// resolve delivers a client response frame to its waiter. Unknown ids
// are ignored; the waiter may have timed out already.
func (c *Conn) resolve(id uint64, payload json.RawMessage) {
	c.mu.Lock()
	ch, ok := c.waiters[id]
	delete(c.waiters, id)
	c.mu.Unlock()
	if ok {
		ch <- payload
	}
}

func (c *Conn) send(env Envelope, payload any) {
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.logger.Error("marshal outbound payload", "type", env.Type, "error", err)
			return
		}
		env.Payload = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		c.logger.Error("marshal outbound frame", "type", env.Type, "error", err)
		return
	}
	select {
	case <-c.closed:
	case c.out <- frame:
	default:
		c.logger.Warn("outbound queue full, dropping message", "type", env.Type)
	}
}
