package devserver

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// dev-only server bound to the loopback interface
		return true
	},
}

// LiveReloadHub tracks connected browsers and tells them to reload when the
// client sources change.
type LiveReloadHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	logger  *log.Logger
}

// NewLiveReloadHub initializes a new LiveReloadHub.
func NewLiveReloadHub(logger *log.Logger) *LiveReloadHub {
	if logger == nil {
		logger = log.New()
	}
	return &LiveReloadHub{
		clients: make(map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// HandleWS upgrades the request and registers the browser for reload
// notifications.
func (h *LiveReloadHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	// drain control frames until the browser goes away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

// Broadcast tells every connected browser to reload.
func (h *LiveReloadHub) Broadcast() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, []byte("reload")); err != nil {
			h.drop(conn)
		}
	}
}

// ClientCount returns the number of connected browsers.
func (h *LiveReloadHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *LiveReloadHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	conn.Close()
}
