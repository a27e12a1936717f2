package chat

import (
	"sync"
	"time"
)

// Presence records per-user transition times. Online/offline itself is
// derived: a user is online on this gateway iff the registry holds a live
// connection. There is no cross-process aggregation.
type Presence struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

func NewPresence() *Presence {
	return &Presence{last: make(map[string]time.Time)}
}

// Touch records a connect or disconnect transition.
func (p *Presence) Touch(userID string) {
	p.mu.Lock()
	p.last[userID] = time.Now().UTC()
	p.mu.Unlock()
}

// LastTransition returns when the user last connected or disconnected here.
func (p *Presence) LastTransition(userID string) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	t, ok := p.last[userID]
	return t, ok
}
