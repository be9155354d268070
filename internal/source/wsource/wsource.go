// Package wsource is a demonstration transport (spec.md §1: "Transport
// (WebSocket, ...): a producer that hands Δ batches to the core"). It
// provides a client that reads the wire delta format of spec.md §6 off
// a WebSocket connection and feeds it into a circuit, and a server side
// that broadcasts a view's output Δ to subscribed WebSocket clients —
// the UI/dashboard collaborator named as out of core scope in §1.
//
// Grounded on internal/network/websocket.go's WebSocketConn (dial +
// background read-loop feeding a buffered channel) and
// websocket_server.go's upgrade-and-register-client server shape,
// trimmed of the port-scan/security payloads down to connect/decode/
// encode.
package wsource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sentra/internal/circuit"
	"sentra/internal/zset"
)

// Batch is one WebSocket text message: the input table id this batch
// targets, plus its ops in spec.md §6's wire delta format.
type Batch struct {
	Input string            `json:"input"`
	Ops   []circuit.DeltaOp `json:"ops"`
}

// Client dials a WebSocket endpoint and decodes inbound Batch messages
// into circuit.Step calls.
type Client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// Dial connects to url.
func Dial(url string) (*Client, error) {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsource: dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// Run reads Batch messages until ctx is cancelled or the connection
// closes, translating each into a circuit.Step call keyed by the
// batch's Input id.
func (c *Client) Run(ctx context.Context, step func(map[string][]circuit.DeltaOp) error) error {
	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			var batch Batch
			if err := json.Unmarshal(data, &batch); err != nil {
				done <- fmt.Errorf("wsource: decode batch: %w", err)
				return
			}
			if err := step(map[string][]circuit.DeltaOp{batch.Input: batch.Ops}); err != nil {
				done <- fmt.Errorf("wsource: step: %w", err)
				return
			}
		}
	}()
	select {
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Broadcaster is a WebSocket server that relays a view's output Δ to
// every currently connected client, JSON-encoded as a view-delta
// message. Sink returns the circuit.Sink to subscribe; Handler registers
// the connected clients — the UI/consumer collaborator of spec.md §1.
type Broadcaster struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// ViewMessage is the JSON shape pushed to every connected client.
type ViewMessage struct {
	View    string      `json:"view"`
	Entries []zset.Pair `json:"entries"`
}

// Handler upgrades incoming HTTP requests to WebSocket connections and
// registers them as broadcast targets.
func (b *Broadcaster) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	b.mu.Lock()
	b.clients[conn] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.clients, conn)
			b.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Sink returns a circuit.Sink that broadcasts delta's entries to every
// connected client, tagged with viewName.
func (b *Broadcaster) Sink(viewName string) circuit.Sink {
	return func(delta *zset.Set) error {
		if delta.IsEmpty() {
			return nil
		}
		msg := ViewMessage{View: viewName, Entries: delta.Entries()}
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("wsource: encode view message: %w", err)
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for conn := range b.clients {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				delete(b.clients, conn)
				conn.Close()
			}
		}
		return nil
	}
}
