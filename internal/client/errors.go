// Package client implements the client-side counterpart of the realtime
// channel: a connection manager with exponential-backoff reconnection, a
// typed error classifier, and an HTTP fallback mode for degraded operation.
package client

import (
	"strings"
	"sync"
	"time"

	"friendfinder/backend/internal/config"
)

// Error types produced by the classifier.
const (
	ErrTypeConnection = "connection"
	ErrTypeTransport  = "transport"
	ErrTypeServer     = "server"
	ErrTypeTimeout    = "timeout"
	ErrTypeUnknown    = "unknown"
)

// Severity levels.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// ClassifiedError is the internal tagged representation of a transport-layer
// failure. External library error shapes are normalized here and nowhere
// else, so the stringly-typed heuristics stay in one place.
type ClassifiedError struct {
	Type        string
	Severity    string
	Recoverable bool
	Err         error
}

func (e ClassifiedError) Error() string {
	if e.Err == nil {
		return e.Type
	}
	return e.Err.Error()
}

// Classify maps an arbitrary error onto the internal taxonomy by inspecting
// error codes and message substrings.
func Classify(err error) ClassifiedError {
	if err == nil {
		return ClassifiedError{Type: ErrTypeUnknown, Severity: SeverityLow, Recoverable: true}
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "econnrefused") || strings.Contains(msg, "connection refused"):
		return ClassifiedError{Type: ErrTypeConnection, Severity: SeverityCritical, Recoverable: true, Err: err}
	case strings.Contains(msg, "etimedout") || strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return ClassifiedError{Type: ErrTypeTimeout, Severity: SeverityMedium, Recoverable: true, Err: err}
	case strings.Contains(msg, "transport error") || strings.Contains(msg, "bad handshake") || strings.Contains(msg, "websocket"):
		return ClassifiedError{Type: ErrTypeTransport, Severity: SeverityMedium, Recoverable: true, Err: err}
	case strings.Contains(msg, "server error") || strings.Contains(msg, "500") || strings.Contains(msg, "unavailable"):
		return ClassifiedError{Type: ErrTypeServer, Severity: SeverityHigh, Recoverable: true, Err: err}
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "forbidden"):
		return ClassifiedError{Type: ErrTypeServer, Severity: SeverityCritical, Recoverable: false, Err: err}
	}
	return ClassifiedError{Type: ErrTypeUnknown, Severity: SeverityMedium, Recoverable: true, Err: err}
}

// RecoveryStrategy is the classifier's advice on how to proceed.
type RecoveryStrategy struct {
	Retry       bool
	MaxAttempts int
	Immediate   bool
	Fallback    bool
}

// GetRecoveryStrategy derives a strategy from the error class and the current
// connection state. Connection errors retry with backoff and only recommend
// fallback once the retry/error counters cross thresholds; transport errors
// recommend an immediate retry AND immediate fallback since transport-level
// failures are assumed not to self-heal quickly.
func GetRecoveryStrategy(ce ClassifiedError, state ConnectionState) RecoveryStrategy {
	switch ce.Type {
	case ErrTypeConnection:
		return RecoveryStrategy{
			Retry:       ce.Recoverable,
			MaxAttempts: config.MaxReconnectAttempts,
			Fallback:    state.RetryCount >= config.FallbackRetryCount || state.ErrorCount >= config.FallbackErrorCount,
		}
	case ErrTypeTransport:
		return RecoveryStrategy{Retry: true, MaxAttempts: config.MaxReconnectAttempts, Immediate: true, Fallback: true}
	case ErrTypeTimeout:
		return RecoveryStrategy{Retry: true, MaxAttempts: config.MaxReconnectAttempts, Fallback: true}
	case ErrTypeServer:
		return RecoveryStrategy{
			Retry:       ce.Recoverable,
			MaxAttempts: config.MaxReconnectAttempts,
			Fallback:    ce.Severity == SeverityHigh || ce.Severity == SeverityCritical,
		}
	}
	return RecoveryStrategy{Retry: true, MaxAttempts: config.MaxReconnectAttempts}
}

// ShouldFallbackToHTTP is a pure function of the connection state: true once
// retry/error counters cross the configured thresholds or the manager already
// marked the state failed.
func ShouldFallbackToHTTP(state ConnectionState) bool {
	if state.Status == StatusFailed {
		return true
	}
	return state.RetryCount >= config.FallbackRetryCount || state.ErrorCount >= config.FallbackErrorCount
}

// ErrorSummary aggregates classified errors for health reporting.
type ErrorSummary struct {
	mu       sync.Mutex
	total    int
	byType   map[string]int
	critical []time.Time

	now func() time.Time
}

// NewErrorSummary створює порожній агрегатор.
func NewErrorSummary() *ErrorSummary {
	return &ErrorSummary{byType: make(map[string]int), now: time.Now}
}

// Record accounts one classified error.
func (s *ErrorSummary) Record(ce ClassifiedError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	s.byType[ce.Type]++
	if ce.Severity == SeverityCritical {
		s.critical = append(s.critical, s.now())
	}
}

// Total returns the lifetime error count since the last Reset.
func (s *ErrorSummary) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// CountByType returns the count for one error type.
func (s *ErrorSummary) CountByType(t string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byType[t]
}

// CriticalLastHour returns how many critical errors happened within the hour.
func (s *ErrorSummary) CriticalLastHour() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-time.Hour)
	n := 0
	for _, t := range s.critical {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// Reset clears all counters. Called after a confirmed successful recovery,
// never speculatively.
func (s *ErrorSummary) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = 0
	s.byType = make(map[string]int)
	s.critical = nil
}
