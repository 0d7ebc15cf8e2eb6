package wsconn

import (
	"sync"

	ws "nhooyr.io/websocket"
)

// Registry tracks live client connections by session so shutdown can close
// them all.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*ws.Conn
}

func NewRegistry() *Registry { return &Registry{conns: make(map[string]*ws.Conn)} }

func (r *Registry) Add(sessionID string, c *ws.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[sessionID] = c
}

func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, sessionID)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// CloseAll closes every live connection with StatusGoingAway.
func (r *Registry) CloseAll(reason string) {
	r.mu.Lock()
	conns := make([]*ws.Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.Unlock()
	for _, c := range conns {
		_ = c.Close(ws.StatusGoingAway, reason)
	}
}
