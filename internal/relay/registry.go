package relay

import "sync"

// Registry maps each user to their single active connection. A user's entry
// is owned by whichever connection currently holds it; replacement on
// register and compare-and-remove on unregister are the only synchronization
// this requires.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Client)}
}

// Register installs client as the sole connection for userID and returns the
// connection it superseded, if any. The caller must close the returned
// connection so it stops receiving traffic addressed to the new one.
func (r *Registry) Register(userID string, client *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.conns[userID]
	r.conns[userID] = client
	if prev == client {
		return nil
	}
	return prev
}

func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.conns[userID]
	return client, ok
}

// Unregister removes the entry for userID only if it still points at client,
// and reports whether it removed anything. A stale connection closing late
// must not clobber a freshly registered one.
func (r *Registry) Unregister(userID string, client *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.conns[userID]; ok && current == client {
		delete(r.conns, userID)
		return true
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
