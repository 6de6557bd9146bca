package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/folioserve/folioserve/internal/auth"
)

// event is one entry on the admin event feed.
type event struct {
	Type     string    `json:"type"`
	ObjectID string    `json:"objectId,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	Time     time.Time `json:"time"`
}

// eventHub fans events out to connected websocket clients. Slow clients are
// skipped rather than blocking the broadcaster.
type eventHub struct {
	clients map[*eventClient]bool
	mu      sync.RWMutex
}

type eventClient struct {
	send chan event
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*eventClient]bool)}
}

func (h *eventHub) register(c *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
	log.Debug().Int("clients", len(h.clients)).Msg("event client connected")
}

func (h *eventHub) unregister(c *eventClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		log.Debug().Int("clients", len(h.clients)).Msg("event client disconnected")
	}
}

func (h *eventHub) broadcast(e event) {
	e.Time = time.Now().UTC()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- e:
		default:
			log.Debug().Msg("event client buffer full, skipping event")
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// handleEvents upgrades to a websocket and streams repair/audit events.
// Admin only.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("event feed upgrade failed")
		return
	}

	client := &eventClient{send: make(chan event, 16)}
	s.events.register(client)
	defer func() {
		s.events.unregister(client)
		_ = conn.Close()
	}()

	log.Info().Str("admin", id.Username).Msg("event feed connected")

	// Drain reads so pings and close frames are processed; closing the
	// connection unblocks the write loop below.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-client.send:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
