package chathub

import "friendfinder/backend/internal/models"

// Client is the interface for any type of connection (e.g., WebSocket, a test
// double). It abstracts the underlying communication mechanism, allowing the
// hub to manage different client types uniformly.
type Client interface {
	// GetUserID returns the unique identifier for the user associated with the client.
	GetUserID() string
	// GetAnonID returns the display handle the user carries into sessions.
	GetAnonID() string
	// GetSessionID returns the identifier of the session the client is
	// currently in, or "" when idle.
	GetSessionID() string
	// SetSessionID assigns the client to a session room. This is called by the
	// SessionService after a successful match and cleared on session end.
	SetSessionID(string)

	// GetSendChannel returns the channel to which the hub pushes events
	// intended for this specific client. It is a send-only channel.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps, which handle incoming and
	// outgoing events.
	Run()
	// Close gracefully shuts down the client's connection and associated channels.
	Close()
}
