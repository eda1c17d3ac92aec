// Package streamtest runs an in-process event-stream server speaking the
// live-monitoring websocket protocol, for tests and local development.
package streamtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Frame is a loosely-typed protocol frame as seen by the server.
type Frame map[string]any

// Type returns the frame's `type` discriminator.
func (f Frame) Type() string {
	s, _ := f["type"].(string)
	return s
}

// Client is one connected websocket client.
type Client struct {
	ID         string
	UserID     string
	Role       string
	ClientType string

	conn          *websocket.Conn
	send          chan []byte
	done          chan struct{}
	closeOnce     sync.Once
	authenticated bool
}

// Server accepts event-stream connections, answers authentication and
// keep-alive frames and broadcasts arbitrary frames to clients.
type Server struct {
	// RejectAuth makes the server answer authenticate with an error frame.
	RejectAuth bool

	http     *httptest.Server
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mu       sync.RWMutex
	clients  map[*Client]bool
	received []Frame
	accepted int
}

// NewServer starts a server on a loopback port. Close must be called.
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:  logger.Named("streamtest"),
		clients: make(map[*Client]bool),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.http = httptest.NewServer(http.HandlerFunc(s.serveWS))
	return s
}

// URL is the ws:// address of the stream endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.http.URL, "http") + "/ws"
}

// Close disconnects every client and shuts the listener down.
func (s *Server) Close() {
	s.DropAll()
	s.http.Close()
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[client] = true
	s.accepted++
	s.mu.Unlock()
	s.logger.Debug("client connected", zap.String("client_id", client.ID))

	go s.writeLoop(client)
	s.readLoop(client)
}

func (s *Server) writeLoop(c *Client) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.drop(c)
				return
			}
		}
	}
}

func (s *Server) readLoop(c *Client) {
	defer s.drop(c)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("client read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.queue(c, Frame{"type": "error", "message": "Invalid message format"})
			continue
		}

		s.mu.Lock()
		s.received = append(s.received, f)
		s.mu.Unlock()

		switch f.Type() {
		case "authenticate":
			s.authenticate(c, f)
		case "ping":
			s.queue(c, Frame{"type": "pong", "timestamp": time.Now().UTC()})
		}
	}
}

func (s *Server) authenticate(c *Client, f Frame) {
	if s.RejectAuth {
		s.queue(c, Frame{"type": "error", "message": "Authentication failed"})
		return
	}

	s.mu.Lock()
	c.UserID, _ = f["userId"].(string)
	c.Role, _ = f["userRole"].(string)
	c.ClientType, _ = f["clientType"].(string)
	c.authenticated = true
	s.mu.Unlock()

	s.queue(c, Frame{
		"type":       "authenticated",
		"message":    "Authentication successful",
		"userId":     c.UserID,
		"clientType": c.ClientType,
	})
}

func (s *Server) queue(c *Client, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to encode frame", zap.Error(err))
		return
	}
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		s.logger.Warn("client send buffer full, dropping frame", zap.String("client_id", c.ID))
	}
}

func (s *Server) drop(c *Client) {
	c.closeOnce.Do(func() {
		s.mu.Lock()
		delete(s.clients, c)
		s.mu.Unlock()
		close(c.done)
		c.conn.Close()
		s.logger.Debug("client disconnected", zap.String("client_id", c.ID))
	})
}

// Broadcast sends v, encoded as JSON, to every authenticated client.
func (s *Server) Broadcast(v any) {
	for _, c := range s.Clients() {
		s.queue(c, v)
	}
}

// BroadcastRaw sends raw bytes verbatim to every authenticated client.
func (s *Server) BroadcastRaw(raw []byte) {
	for _, c := range s.Clients() {
		select {
		case c.send <- raw:
		case <-c.done:
		}
	}
}

// DropAll closes every client connection without a close handshake.
func (s *Server) DropAll() {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		s.drop(c)
	}
}

// Clients returns the authenticated clients.
func (s *Server) Clients() []*Client {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Client
	for c := range s.clients {
		if c.authenticated {
			out = append(out, c)
		}
	}
	return out
}

// Accepted is the number of connections accepted since start.
func (s *Server) Accepted() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accepted
}

// Received returns every frame received so far, optionally filtered by type.
func (s *Server) Received(frameType string) []Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Frame
	for _, f := range s.received {
		if frameType == "" || f.Type() == frameType {
			out = append(out, f)
		}
	}
	return out
}
