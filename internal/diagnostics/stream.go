package diagnostics

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Stream broadcasts diagnostics to connected websocket clients as they are
// emitted, for an external dashboard to watch inference widen/diverge
// live. Entirely optional — nothing in internal/infer requires a Stream to
// exist; only an embedder that wants one attaches it to a Collector with
// Attach and serves it through ServeHTTP.
type Stream struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]bool
	upgrader websocket.Upgrader
}

func NewStream() *Stream {
	return &Stream{
		clients:  make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
}

// Attach wraps a Collector so every Emit is also broadcast to clients.
func (s *Stream) Attach(c *Collector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream = s
}

func (s *Stream) broadcast(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := d.String()
	for conn := range s.clients {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// ServeHTTP upgrades the request to a websocket and registers the
// connection as a diagnostics subscriber until it disconnects.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
}
