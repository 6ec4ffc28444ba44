package chathub_test

import (
	"sync"
	"testing"

	"friendfinder/backend/internal/chathub"

	"github.com/stretchr/testify/assert"
)

// TestWebSocketClientSessionIDConcurrency: the session pointer is written by
// session-service goroutines while the pumps read it; the accessors must be
// safe under the race detector.
func TestWebSocketClientSessionIDConcurrency(t *testing.T) {
	client := &chathub.WebSocketClient{UserID: "user_A"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			client.SetSessionID("s1")
		}()
		go func() {
			defer wg.Done()
			_ = client.GetSessionID()
		}()
	}
	wg.Wait()

	assert.Equal(t, "s1", client.GetSessionID())
}
