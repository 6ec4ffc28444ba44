package chathub_test

import (
	"sync"

	"friendfinder/backend/internal/models"
)

type MockClient struct {
	userID string
	anonID string
	// RecvChannel is what the hub sees as the client's send channel, so tests
	// can assert on delivered events.
	RecvChannel chan models.Event
	closed      bool

	mu        sync.Mutex
	sessionID string
}

func newMockClient(userID string) *MockClient {
	return &MockClient{
		userID:      userID,
		anonID:      "anon-" + userID,
		RecvChannel: make(chan models.Event, 16),
	}
}

func (c *MockClient) GetUserID() string { return c.userID }
func (c *MockClient) GetAnonID() string { return c.anonID }

func (c *MockClient) GetSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *MockClient) SetSessionID(sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
}

func (c *MockClient) GetSendChannel() chan<- models.Event {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed = true
}

// drainEvents collects everything currently buffered for the client.
func (c *MockClient) drainEvents() []models.Event {
	var events []models.Event
	for {
		select {
		case ev := <-c.RecvChannel:
			events = append(events, ev)
		default:
			return events
		}
	}
}

// lastEventNamed returns the most recent buffered event with the given name.
func (c *MockClient) lastEventNamed(name string) (models.Event, bool) {
	var found models.Event
	ok := false
	for _, ev := range c.drainEvents() {
		if ev.Name == name {
			found = ev
			ok = true
		}
	}
	return found, ok
}
