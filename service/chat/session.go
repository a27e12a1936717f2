package chat

import (
	"sync"
)

// Registry tracks the single live connection per user on this gateway.
// A second connection for the same user replaces the first.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Client)}
}

// Attach registers c as the live connection for its user and returns the
// connection it replaced, if any. The caller force-closes the replaced one.
func (r *Registry) Attach(c *Client) (replaced *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced = r.conns[c.UserID]
	r.conns[c.UserID] = c
	return replaced
}

// DetachClient removes c only if it is still the registered connection for
// its user. Returns false when c was already replaced or removed, which
// makes teardown idempotent and keeps a replaced connection's teardown from
// evicting its successor.
func (r *Registry) DetachClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.conns[c.UserID]
	if !ok || cur != c {
		return false
	}
	delete(r.conns, c.UserID)
	return true
}

func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// FilterOnline returns the subset of userIDs with a live local connection,
// preserving input order.
func (r *Registry) FilterOnline(userIDs []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	online := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := r.conns[id]; ok {
			online = append(online, id)
		}
	}
	return online
}

// All snapshots every live client.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close force-closes every connection; used during shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}
