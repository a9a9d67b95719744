package telegram

import (
	"sync"
)

// Registry is the process-wide map of live connections, keyed by user ID.
// It is the only place live network handles live; nothing here is
// persisted. Constructed once at startup and injected into the manager
// and listener.
type Registry struct {
	mu      sync.RWMutex
	clients map[uint]Client
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[uint]Client),
	}
}

// Set stores the live connection for a user, replacing any previous entry.
func (r *Registry) Set(userID uint, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[userID] = client
}

// Get returns the live connection for a user, if any.
func (r *Registry) Get(userID uint) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[userID]
	return client, ok
}

// Remove drops the registry entry without closing the connection.
func (r *Registry) Remove(userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, userID)
}

// Release removes and closes the connection for a user. No-op when none
// is registered. Closing an already-broken connection must not raise, so
// close errors and panics from the underlying client are swallowed.
func (r *Registry) Release(userID uint) {
	r.mu.Lock()
	client, ok := r.clients[userID]
	delete(r.clients, userID)
	r.mu.Unlock()

	if !ok || client == nil {
		return
	}

	closeQuietly(client)
}

// closeQuietly closes a connection, swallowing errors and panics from
// an already-broken transport.
func closeQuietly(client Client) {
	defer func() { recover() }()
	_ = client.Close()
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
