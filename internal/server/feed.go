package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vk/promptgridgo/internal/executor"
)

const (
	// writeWait bounds one websocket write.
	writeWait = 10 * time.Second
	// pongWait is how long a client may stay silent before it is dropped.
	pongWait = 60 * time.Second
	// pingPeriod must be shorter than pongWait.
	pingPeriod = 54 * time.Second
	// clientBuffer is the per-client event backlog before the client counts
	// as too slow.
	clientBuffer = 64
)

// Feed fans execution events out to every connected websocket client. It
// implements executor.EventSink, so the prompt queue hands it straight to
// the executor.
type Feed struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan executor.Event
}

// NewFeed creates an empty fan-out.
func NewFeed(logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{logger: logger, clients: make(map[*feedClient]struct{})}
}

// Publish implements executor.EventSink. A client whose backlog is full is
// dropped rather than allowed to stall the engine.
func (f *Feed) Publish(ctx context.Context, ev executor.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		select {
		case c.send <- ev:
		default:
			delete(f.clients, c)
			close(c.send)
			f.logger.Warn("Dropping slow feed client", "remote_addr", c.conn.RemoteAddr().String())
		}
	}
}

// ClientCount returns the number of connected clients.
func (f *Feed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *Feed) add(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[c] = struct{}{}
}

// remove is idempotent: Publish may already have dropped the client.
func (f *Feed) remove(c *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The feed is read-only telemetry, so any origin may subscribe.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleFeed upgrades the connection and streams events until the client
// goes away.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		s.logger.Warn("Websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	client := &feedClient{conn: conn, send: make(chan executor.Event, clientBuffer)}
	s.feed.add(client)
	s.logger.Debug("Feed client connected.", "remote_addr", r.RemoteAddr)

	go client.writeLoop()
	client.readLoop(s.feed)
	s.logger.Debug("Feed client disconnected.", "remote_addr", r.RemoteAddr)
}

func (c *feedClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages; its job is to notice disconnects and
// answer pings.
func (c *feedClient) readLoop(f *Feed) {
	defer func() {
		f.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
