package server

import "sync"

// Registry tracks which identities currently have a live connection. It is
// the only source of truth for reachability; the map is never exposed.
// Policy is one connection per identity, last connect wins.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry returns an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register maps userID to c, replacing any previous handle, and returns
// the handle it replaced (nil if the user was offline).
func (r *Registry) Register(userID string, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.clients[userID]
	r.clients[userID] = c
	if prev == nil {
		activeConnections.Inc()
	}
	return prev
}

// Lookup returns the live handle for userID, if any.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

// Unregister removes the mapping only while it still points at c. A stale
// disconnect from a superseded connection must not evict the newer one.
// Reports whether the mapping was removed.
func (r *Registry) Unregister(userID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[userID] != c {
		return false
	}
	delete(r.clients, userID)
	activeConnections.Dec()
	return true
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
