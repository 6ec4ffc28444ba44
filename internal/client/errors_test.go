package client

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		errType     string
		severity    string
		recoverable bool
	}{
		{"refused", errors.New("dial tcp: connect: ECONNREFUSED"), ErrTypeConnection, SeverityCritical, true},
		{"timeout", errors.New("i/o timeout"), ErrTypeTimeout, SeverityMedium, true},
		{"deadline", errors.New("context deadline exceeded"), ErrTypeTimeout, SeverityMedium, true},
		{"handshake", errors.New("websocket: bad handshake"), ErrTypeTransport, SeverityMedium, true},
		{"server", errors.New("unexpected server error"), ErrTypeServer, SeverityHigh, true},
		{"unavailable", errors.New("service unavailable"), ErrTypeServer, SeverityHigh, true},
		{"auth", errors.New("unauthorized"), ErrTypeServer, SeverityCritical, false},
		{"mystery", errors.New("something odd"), ErrTypeUnknown, SeverityMedium, true},
	}
	for _, tc := range cases {
		ce := Classify(tc.err)
		assert.Equal(t, tc.errType, ce.Type, tc.name)
		assert.Equal(t, tc.severity, ce.Severity, tc.name)
		assert.Equal(t, tc.recoverable, ce.Recoverable, tc.name)
	}
}

func TestClassifyNil(t *testing.T) {
	ce := Classify(nil)
	assert.Equal(t, ErrTypeUnknown, ce.Type)
	assert.True(t, ce.Recoverable)
}

func TestGetRecoveryStrategy(t *testing.T) {
	// Fresh connection error: retry with backoff, no fallback yet.
	ce := Classify(errors.New("connection refused"))
	strategy := GetRecoveryStrategy(ce, ConnectionState{RetryCount: 1, ErrorCount: 1})
	assert.True(t, strategy.Retry)
	assert.False(t, strategy.Immediate)
	assert.False(t, strategy.Fallback)

	// Same error after the retry budget: fallback recommended.
	strategy = GetRecoveryStrategy(ce, ConnectionState{RetryCount: 3, ErrorCount: 3})
	assert.True(t, strategy.Fallback)

	// Transport errors retry immediately and recommend fallback.
	ce = Classify(errors.New("websocket: bad handshake"))
	strategy = GetRecoveryStrategy(ce, ConnectionState{})
	assert.True(t, strategy.Retry)
	assert.True(t, strategy.Immediate)
	assert.True(t, strategy.Fallback)

	// Non-recoverable auth failures do not retry.
	ce = Classify(errors.New("unauthorized"))
	strategy = GetRecoveryStrategy(ce, ConnectionState{})
	assert.False(t, strategy.Retry)
	assert.True(t, strategy.Fallback)
}

func TestShouldFallbackToHTTP(t *testing.T) {
	assert.False(t, ShouldFallbackToHTTP(ConnectionState{RetryCount: 1, ErrorCount: 1}))
	assert.True(t, ShouldFallbackToHTTP(ConnectionState{RetryCount: 3, ErrorCount: 0}))
	assert.True(t, ShouldFallbackToHTTP(ConnectionState{RetryCount: 0, ErrorCount: 5}))
	assert.True(t, ShouldFallbackToHTTP(ConnectionState{Status: StatusFailed}))
	assert.True(t, ShouldFallbackToHTTP(ConnectionState{RetryCount: 5, ErrorCount: 8}))
}

func TestErrorSummary(t *testing.T) {
	s := NewErrorSummary()
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	s.Record(Classify(errors.New("connection refused")))
	s.Record(Classify(errors.New("i/o timeout")))
	s.Record(Classify(errors.New("connection refused")))

	assert.Equal(t, 3, s.Total())
	assert.Equal(t, 2, s.CountByType(ErrTypeConnection))
	assert.Equal(t, 1, s.CountByType(ErrTypeTimeout))
	assert.Equal(t, 2, s.CriticalLastHour(), "connection-refused is critical")

	// Critical errors age out of the one-hour window.
	current = current.Add(2 * time.Hour)
	assert.Equal(t, 0, s.CriticalLastHour())

	s.Reset()
	assert.Equal(t, 0, s.Total())
	assert.Equal(t, 0, s.CountByType(ErrTypeConnection))
}
