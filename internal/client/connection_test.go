package client

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"friendfinder/backend/internal/config"
	"friendfinder/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, 1*time.Second, Backoff(0))
	assert.Equal(t, 2*time.Second, Backoff(1))
	assert.Equal(t, 4*time.Second, Backoff(2))
	assert.Equal(t, 16*time.Second, Backoff(4))
	assert.Equal(t, config.ReconnectMaxDelay, Backoff(5))
	assert.Equal(t, config.ReconnectMaxDelay, Backoff(20), "large retry counts stay at the cap")

	// Delays never decrease as retries accumulate.
	prev := time.Duration(0)
	for i := 0; i < 15; i++ {
		d := Backoff(i)
		assert.GreaterOrEqual(t, d, prev, "retry %d", i)
		prev = d
	}
}

func TestWebsocketURL(t *testing.T) {
	m := NewConnectionManager("http://localhost:8080", "secret token")
	wsURL, err := m.websocketURL()
	assert.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws?token=secret+token", wsURL)

	m = NewConnectionManager("https://chat.example.com", "tok")
	wsURL, err = m.websocketURL()
	assert.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/ws?token=tok", wsURL)
}

func TestConnectFailureSchedulesRetry(t *testing.T) {
	m := NewConnectionManager("http://localhost:1", "tok")
	m.dial = func(wsURL string) (*websocket.Conn, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	m.Connect()
	time.Sleep(100 * time.Millisecond)

	state := m.State()
	assert.Equal(t, StatusReconnecting, state.Status)
	assert.Equal(t, 1, state.RetryCount)
	assert.Equal(t, 1, state.ErrorCount)
	assert.Equal(t, 1, m.Summary.CountByType(ErrTypeConnection))

	m.Disconnect()
}

func TestTimeoutGoesStraightToFallback(t *testing.T) {
	m := NewConnectionManager("http://localhost:1", "tok")
	m.dial = func(wsURL string) (*websocket.Conn, error) {
		return nil, errors.New("i/o timeout")
	}

	m.Connect()
	time.Sleep(100 * time.Millisecond)

	state := m.State()
	assert.Equal(t, StatusFallback, state.Status)
	assert.Equal(t, TransportHTTP, state.Transport)
	assert.True(t, state.FallbackActive)
	assert.Equal(t, 0, state.RetryCount, "no retries burned before fallback")
}

func TestUnavailableGoesStraightToFallback(t *testing.T) {
	m := NewConnectionManager("http://localhost:1", "tok")
	m.dial = func(wsURL string) (*websocket.Conn, error) {
		return nil, errors.New("503 service unavailable")
	}

	m.Connect()
	time.Sleep(100 * time.Millisecond)

	assert.True(t, m.State().FallbackActive)
}

func TestExhaustedRetriesFallBack(t *testing.T) {
	m := NewConnectionManager("http://localhost:1", "tok")
	m.mu.Lock()
	m.state.RetryCount = config.MaxReconnectAttempts
	m.attempt = 1
	m.mu.Unlock()

	m.handleFailure(1, errors.New("dial tcp: connection refused"))

	state := m.State()
	assert.Equal(t, StatusFallback, state.Status)
	assert.True(t, state.FallbackActive)
}

func TestDisconnectCancelsPendingRetry(t *testing.T) {
	m := NewConnectionManager("http://localhost:1", "tok")
	m.dial = func(wsURL string) (*websocket.Conn, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	m.Connect()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StatusReconnecting, m.State().Status)

	m.Disconnect()

	m.mu.Lock()
	assert.Nil(t, m.retryTimer, "pending retry timer must be cancelled")
	m.mu.Unlock()
	assert.Equal(t, StatusDisconnected, m.State().Status)
}

func TestConnectAndReconnectAgainstLiveServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Keep the connection open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	m := NewConnectionManager(srv.URL, "tok")
	m.mu.Lock()
	m.state.RetryCount = 5 // pretend earlier attempts failed
	m.mu.Unlock()

	m.Reconnect()

	deadline := time.Now().Add(2 * time.Second)
	for m.State().Status != StatusConnected && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	state := m.State()
	assert.Equal(t, StatusConnected, state.Status)
	assert.Equal(t, 0, state.RetryCount, "successful connect resets the retry counter")
	assert.False(t, state.LastConnected.IsZero())

	assert.NoError(t, m.SendEvent(models.NewEvent(models.EventLeaveQueue, nil)))

	m.Disconnect()
	assert.Equal(t, StatusDisconnected, m.State().Status)
}

func TestSendEventNotConnected(t *testing.T) {
	m := NewConnectionManager("http://localhost:1", "tok")

	err := m.SendEvent(models.NewEvent(models.EventLeaveQueue, nil))

	assert.Error(t, err)
}

func TestEmitIsolatesPanickingHandlers(t *testing.T) {
	m := NewConnectionManager("http://localhost:1", "tok")

	m.On("ping", func(ev models.Event) { panic("boom") })
	reached := false
	m.On("ping", func(ev models.Event) { reached = true })

	m.emit(models.Event{Name: "ping"})

	assert.True(t, reached, "a panicking handler must not block the rest")
}

func TestOffRemovesHandlers(t *testing.T) {
	m := NewConnectionManager("http://localhost:1", "tok")

	called := false
	m.On("ping", func(ev models.Event) { called = true })
	m.Off("ping")

	m.emit(models.Event{Name: "ping"})

	assert.False(t, called)
}
