package client

import (
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"friendfinder/backend/internal/config"
	"friendfinder/backend/internal/models"

	"github.com/gorilla/websocket"
)

// Connection statuses.
const (
	StatusDisconnected = "disconnected"
	StatusConnecting   = "connecting"
	StatusConnected    = "connected"
	StatusReconnecting = "reconnecting"
	StatusFailed       = "failed"
	StatusFallback     = "fallback"
)

// Transports.
const (
	TransportWebSocket = "websocket"
	TransportPolling   = "polling"
	TransportHTTP      = "http"
)

// ConnectionState is the client-local connection snapshot. Not persisted.
type ConnectionState struct {
	Status         string    `json:"status"`
	Transport      string    `json:"transport"`
	RetryCount     int       `json:"retryCount"`
	ErrorCount     int       `json:"errorCount"`
	LastConnected  time.Time `json:"lastConnected,omitempty"`
	FallbackActive bool      `json:"fallbackActive"`
}

// EventHandler отримує подію від сервера.
type EventHandler func(ev models.Event)

// ConnectionManager owns one transport connection for an authenticated
// identity: it supervises the websocket, classifies failures, retries with
// exponential backoff, and flips to HTTP fallback when the channel cannot be
// established within its retry budget.
type ConnectionManager struct {
	BaseURL string
	Token   string

	Fallback *FallbackClient
	Summary  *ErrorSummary

	mu    sync.Mutex
	state ConnectionState
	conn  *websocket.Conn
	// attempt tags each connect so callbacks from superseded attempts are
	// discarded instead of clobbering newer state.
	attempt    int
	retryTimer *time.Timer

	handlers map[string][]EventHandler

	dial func(wsURL string) (*websocket.Conn, error)
	now  func() time.Time
}

// NewConnectionManager створює менеджер для baseURL (http(s)://host[:port]).
func NewConnectionManager(baseURL, token string) *ConnectionManager {
	m := &ConnectionManager{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Token:    token,
		Fallback: NewFallbackClient(baseURL, token),
		Summary:  NewErrorSummary(),
		state:    ConnectionState{Status: StatusDisconnected, Transport: TransportWebSocket},
		handlers: make(map[string][]EventHandler),
		now:      time.Now,
	}
	m.dial = func(wsURL string) (*websocket.Conn, error) {
		dialer := websocket.Dialer{HandshakeTimeout: config.ConnectTimeout}
		conn, _, err := dialer.Dial(wsURL, nil)
		return conn, err
	}
	return m
}

// State повертає копію поточного стану.
func (m *ConnectionManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// On registers a handler for a named event.
func (m *ConnectionManager) On(event string, h EventHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], h)
}

// Off removes all handlers for a named event.
func (m *ConnectionManager) Off(event string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, event)
}

// emit dispatches ev to every handler with error isolation: a panicking
// handler must not prevent the others from running.
func (m *ConnectionManager) emit(ev models.Event) {
	m.mu.Lock()
	hs := append([]EventHandler(nil), m.handlers[ev.Name]...)
	m.mu.Unlock()

	for _, h := range hs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("ERROR: Event handler for %s panicked: %v", ev.Name, r)
				}
			}()
			h(ev)
		}()
	}
}

// Connect opens the websocket. No-op when already connecting/connected.
func (m *ConnectionManager) Connect() {
	m.mu.Lock()
	if m.state.Status == StatusConnecting || m.state.Status == StatusConnected {
		m.mu.Unlock()
		return
	}
	m.state.Status = StatusConnecting
	m.attempt++
	attempt := m.attempt
	m.mu.Unlock()

	go m.connectAttempt(attempt)
}

// Reconnect resets the retry counter and forces a fresh attempt.
func (m *ConnectionManager) Reconnect() {
	m.mu.Lock()
	m.state.RetryCount = 0
	m.state.Status = StatusDisconnected
	m.cancelRetryLocked()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.mu.Unlock()
	m.Connect()
}

// Disconnect tears down the transport and clears any pending retry timer so
// no orphaned timer reconnects after explicit teardown.
func (m *ConnectionManager) Disconnect() {
	m.mu.Lock()
	m.attempt++ // інвалідовує колбеки незавершеної спроби
	m.cancelRetryLocked()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.state.Status = StatusDisconnected
	m.state.FallbackActive = false
	m.mu.Unlock()
}

func (m *ConnectionManager) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}

func (m *ConnectionManager) connectAttempt(attempt int) {
	wsURL, err := m.websocketURL()
	if err != nil {
		m.handleFailure(attempt, err)
		return
	}

	conn, err := m.dial(wsURL)

	m.mu.Lock()
	if attempt != m.attempt {
		// Спроба скасована новішим Connect/Reconnect/Disconnect.
		m.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		m.mu.Unlock()
		m.handleFailure(attempt, err)
		return
	}

	m.conn = conn
	m.state.Status = StatusConnected
	m.state.Transport = TransportWebSocket
	m.state.RetryCount = 0
	m.state.LastConnected = m.now()
	m.state.FallbackActive = false
	m.mu.Unlock()

	m.Summary.Reset()
	log.Printf("Connected to %s", wsURL)
	go m.readLoop(conn, attempt)
}

// handleFailure classifies the error and either schedules a backoff retry or
// flips straight to fallback when the failure smells like server-unavailable.
func (m *ConnectionManager) handleFailure(attempt int, err error) {
	ce := Classify(err)
	m.Summary.Record(ce)

	m.mu.Lock()
	if attempt != m.attempt {
		m.mu.Unlock()
		return
	}
	m.state.ErrorCount++
	strategy := GetRecoveryStrategy(ce, m.state)

	if ce.Type == ErrTypeTimeout || (ce.Type == ErrTypeServer && strings.Contains(strings.ToLower(err.Error()), "unavailable")) {
		// Сервер недоступний — одразу у fallback, без вичерпання ретраїв.
		m.enterFallbackLocked()
		m.mu.Unlock()
		return
	}

	if !strategy.Retry || m.state.RetryCount >= strategy.MaxAttempts {
		if strategy.Fallback || ShouldFallbackToHTTP(m.state) {
			m.enterFallbackLocked()
		} else {
			m.state.Status = StatusFailed
		}
		m.mu.Unlock()
		return
	}

	delay := Backoff(m.state.RetryCount)
	if strategy.Immediate {
		delay = 0
	}
	m.state.RetryCount++
	m.state.Status = StatusReconnecting
	m.attempt++
	nextAttempt := m.attempt
	m.cancelRetryLocked()
	m.retryTimer = time.AfterFunc(delay, func() {
		go m.connectAttempt(nextAttempt)
	})
	m.mu.Unlock()

	log.Printf("Connection failed (%s/%s): %v; retry in %s", ce.Type, ce.Severity, err, delay)
}

func (m *ConnectionManager) enterFallbackLocked() {
	m.state.Status = StatusFallback
	m.state.Transport = TransportHTTP
	m.state.FallbackActive = true
	log.Printf("Switching to HTTP fallback mode")
}

func (m *ConnectionManager) readLoop(conn *websocket.Conn, attempt int) {
	for {
		var ev models.Event
		if err := conn.ReadJSON(&ev); err != nil {
			m.mu.Lock()
			stale := attempt != m.attempt
			if !stale {
				m.conn = nil
				m.state.Status = StatusDisconnected
			}
			m.mu.Unlock()
			if !stale {
				m.handleFailure(attempt, err)
			}
			return
		}
		m.emit(ev)
	}
}

// SendEvent delivers an event over the channel, or transparently through the
// HTTP fallback when fallbackActive is set.
func (m *ConnectionManager) SendEvent(ev models.Event) error {
	m.mu.Lock()
	conn := m.conn
	fallback := m.state.FallbackActive
	m.mu.Unlock()

	if fallback {
		return m.Fallback.SendEventFallback(ev)
	}
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteJSON(ev)
}

// Backoff returns min(base * 2^retry, cap). Delays are non-decreasing in the
// retry count.
func Backoff(retryCount int) time.Duration {
	delay := config.ReconnectBaseDelay << uint(retryCount)
	if delay > config.ReconnectMaxDelay || delay <= 0 {
		return config.ReconnectMaxDelay
	}
	return delay
}

func (m *ConnectionManager) websocketURL() (string, error) {
	u, err := url.Parse(m.BaseURL)
	if err != nil {
		return "", err
	}
	scheme := strings.Replace(u.Scheme, "http", "ws", 1)
	wsURL := url.URL{
		Scheme:   scheme,
		Host:     u.Host,
		Path:     "/ws",
		RawQuery: "token=" + url.QueryEscape(m.Token),
	}
	return wsURL.String(), nil
}
