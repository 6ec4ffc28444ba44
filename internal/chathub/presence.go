package chathub

import (
	"log"
	"sync"
	"time"
)

// PresenceSnapshot is the registry's contribution to the health document.
type PresenceSnapshot struct {
	Online      int       `json:"online"`
	Connects    int64     `json:"totalConnects"`
	Disconnects int64     `json:"totalDisconnects"`
	Errors      int64     `json:"errorCount"`
	LastError   string    `json:"lastError,omitempty"`
	LastErrorAt time.Time `json:"lastErrorAt,omitempty"`
}

// Presence maps an authenticated identity to its live connection and keeps
// connect/disconnect/error tallies for health reporting. It exclusively owns
// the client map; the stored Client values are non-owning references to the
// transport objects.
type Presence struct {
	mu      sync.RWMutex
	clients map[string]Client

	connects    int64
	disconnects int64
	errors      int64
	lastError   string
	lastErrorAt time.Time
}

// NewPresence створює порожній реєстр присутності.
func NewPresence() *Presence {
	return &Presence{clients: make(map[string]Client)}
}

// Register records the client for its user id. If the same user already has a
// live connection, the old one is closed and replaced.
func (p *Presence) Register(c Client) {
	p.mu.Lock()
	old, existed := p.clients[c.GetUserID()]
	p.clients[c.GetUserID()] = c
	p.connects++
	p.mu.Unlock()

	if existed && old != c {
		log.Printf("Replacing existing connection for user %s", c.GetUserID())
		old.Close()
	}
}

// Unregister removes the client if it is still the registered connection for
// its user. A stale unregister (the user already reconnected) is a no-op.
func (p *Presence) Unregister(c Client) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	current, ok := p.clients[c.GetUserID()]
	if !ok || current != c {
		return false
	}
	delete(p.clients, c.GetUserID())
	p.disconnects++
	return true
}

// Get повертає живе з'єднання користувача, якщо воно є.
func (p *Presence) Get(userID string) (Client, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.clients[userID]
	return c, ok
}

// IsOnline reports whether the user has a live connection.
func (p *Presence) IsOnline(userID string) bool {
	_, ok := p.Get(userID)
	return ok
}

// RecordError notes a connection-level error for health reporting.
func (p *Presence) RecordError(err error) {
	if err == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors++
	p.lastError = err.Error()
	p.lastErrorAt = time.Now()
}

// Snapshot returns current counters for the health endpoint.
func (p *Presence) Snapshot() PresenceSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return PresenceSnapshot{
		Online:      len(p.clients),
		Connects:    p.connects,
		Disconnects: p.disconnects,
		Errors:      p.errors,
		LastError:   p.lastError,
		LastErrorAt: p.lastErrorAt,
	}
}
