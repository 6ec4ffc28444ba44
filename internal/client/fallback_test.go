package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"friendfinder/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

// fallbackTestServer records the requests the FallbackClient makes.
type fallbackTestServer struct {
	*httptest.Server
	requests []*http.Request
}

func newFallbackTestServer(t *testing.T) *fallbackTestServer {
	t.Helper()
	fts := &fallbackTestServer{}
	fts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fts.requests = append(fts.requests, r.Clone(r.Context()))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/random-chat/message":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"message": models.SessionMessage{MessageID: "m1", SessionID: "s1", Content: "hello"},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/random-chat/session":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"session":  models.RandomChatSession{SessionID: "s1", Status: models.SessionActive},
				"messages": []models.SessionMessage{{MessageID: "m1", Content: "hello"}},
			})
		case r.URL.Path == "/random-chat/queue":
			json.NewEncoder(w).Encode(map[string]interface{}{"type": "queued", "position": 1})
		case r.URL.Path == "/random-chat/session":
			json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
		case r.URL.Path == "/health":
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok"})
		default:
			http.NotFound(w, r)
		}
	}))
	return fts
}

func TestFallbackSendMessage(t *testing.T) {
	srv := newFallbackTestServer(t)
	defer srv.Close()

	f := NewFallbackClient(srv.URL, "tok")
	msg, err := f.SendMessageFallback("s1", "hello", "text")

	assert.NoError(t, err)
	assert.Equal(t, "m1", msg.MessageID)
	assert.Equal(t, "Bearer tok", srv.requests[0].Header.Get("Authorization"))
}

func TestFallbackPollMessages(t *testing.T) {
	srv := newFallbackTestServer(t)
	defer srv.Close()

	f := NewFallbackClient(srv.URL, "tok")
	session, msgs, err := f.PollMessagesFallback()

	assert.NoError(t, err)
	assert.Equal(t, "s1", session.SessionID)
	assert.Len(t, msgs, 1)
}

func TestFallbackErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFallbackClient(srv.URL, "tok")
	_, _, err := f.PollMessagesFallback()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

// TestSendEventFallbackDispatch maps channel events onto their REST routes,
// and silently drops the ephemeral ones.
func TestSendEventFallbackDispatch(t *testing.T) {
	srv := newFallbackTestServer(t)
	defer srv.Close()

	f := NewFallbackClient(srv.URL, "tok")

	err := f.SendEventFallback(models.NewEvent(models.EventMessageSend,
		models.MessageSendPayload{SessionID: "s1", Content: "hello"}))
	assert.NoError(t, err)

	err = f.SendEventFallback(models.NewEvent(models.EventJoinQueue,
		models.JoinQueuePayload{Preferences: models.Preferences{ChatType: models.ChatTypeText}}))
	assert.NoError(t, err)

	err = f.SendEventFallback(models.NewEvent(models.EventLeaveQueue, nil))
	assert.NoError(t, err)

	err = f.SendEventFallback(models.NewEvent(models.EventEndSession,
		models.EndSessionPayload{SessionID: "s1"}))
	assert.NoError(t, err)

	requests := len(srv.requests)

	// Typing and signaling have no HTTP equivalent and produce no traffic.
	assert.NoError(t, f.SendEventFallback(models.NewEvent(models.EventTypingStart, models.TypingPayload{SessionID: "s1"})))
	assert.Len(t, srv.requests, requests)

	// Unknown events are an error.
	assert.Error(t, f.SendEventFallback(models.NewEvent("random-chat:time-travel", nil)))
}
