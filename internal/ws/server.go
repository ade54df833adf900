package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"shoe-tracker/internal/round"
	"shoe-tracker/internal/tracker"
)

const (
	roleScraper = "scraper"
	roleWatcher = "watcher"

	sendBuffer = 16
)

// Tracker is the part of the shoe manager the socket server drives.
type Tracker interface {
	Observe(ctx context.Context, snap round.Snapshot) error
	Status() tracker.Status
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
	role string
}

type Server struct {
	tracker  Tracker
	upgrader websocket.Upgrader

	mu       sync.Mutex
	watchers map[*Client]bool
}

func NewServer(t Tracker) *Server {
	return &Server{
		tracker:  t,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		watchers: map[*Client]bool{},
	}
}

// HandleSnapshots accepts a scraper connection. Every text frame is one round
// snapshot and is answered with an Ack.
func (s *Server) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, roleScraper)
}

// HandleStatus accepts a watcher connection that receives a StatusUpdate after
// every accepted snapshot. Frames sent by watchers are ignored.
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	s.serve(w, r, roleWatcher)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request, role string) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &Client{conn: conn, send: make(chan []byte, sendBuffer), role: role}
	metricConnectionsActive.Add(1)
	log.Info().Str("role", role).Str("remote", r.RemoteAddr).Msg("ws_connected")

	if role == roleWatcher {
		s.mu.Lock()
		s.watchers[c] = true
		s.mu.Unlock()
		s.sendJSON(c, newStatusUpdate(s.tracker.Status()))
	}
	go s.writeLoop(c)
	s.readLoop(r.Context(), c)
}

func (s *Server) readLoop(ctx context.Context, c *Client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if c.role != roleScraper {
			continue
		}
		s.handleSnapshot(ctx, c, msg)
	}
}

func (s *Server) writeLoop(c *Client) {
	for msg := range c.send {
		_ = c.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *Server) handleSnapshot(ctx context.Context, c *Client, msg []byte) {
	metricFramesTotal.Add(1)
	snap, err := round.Decode(msg)
	if err == nil {
		err = s.tracker.Observe(ctx, snap)
	}
	if err != nil {
		metricFrameErrors.Add(1)
		_, code := tracker.MapError(err)
		log.Warn().Err(err).Str("game_id", snap.GameID).Str("code", code).Msg("ws_snapshot_rejected")
		s.sendJSON(c, Ack{Type: "ack", ProtocolVersion: ProtocolVersion, GameID: snap.GameID, Error: code})
		return
	}
	status := s.tracker.Status()
	s.sendJSON(c, Ack{Type: "ack", ProtocolVersion: ProtocolVersion, GameID: snap.GameID, Ok: true, ActiveShoe: status.ActiveShoe})
	s.broadcastStatus(status)
}

func newStatusUpdate(status tracker.Status) StatusUpdate {
	return StatusUpdate{
		Type:            "status_update",
		ProtocolVersion: ProtocolVersion,
		TimestampMS:     time.Now().UnixMilli(),
		Status:          status,
	}
}

func (s *Server) broadcastStatus(status tracker.Status) {
	msg, err := json.Marshal(newStatusUpdate(status))
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.watchers {
		trySend(c.send, msg)
	}
}

func (s *Server) sendJSON(c *Client, v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("ws_marshal_failed")
		return
	}
	safeSend(c.send, msg)
}

func (s *Server) unregister(c *Client) {
	s.mu.Lock()
	delete(s.watchers, c)
	s.mu.Unlock()
	metricConnectionsActive.Add(-1)
	safeClose(c.send)
	log.Info().Str("role", c.role).Msg("ws_disconnected")
}

// WatcherCount is the number of connected status watchers.
func (s *Server) WatcherCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func safeClose(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func safeSend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	ch <- msg
}

// trySend drops the message for a watcher whose buffer is full.
func trySend(ch chan []byte, msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case ch <- msg:
	default:
	}
}
