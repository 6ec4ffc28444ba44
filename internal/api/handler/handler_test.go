package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"friendfinder/backend/internal/chathub"
	"friendfinder/backend/internal/models"
	"friendfinder/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter() (*gin.Engine, *chathub.ManagerService, *storage.Memory) {
	mem := storage.NewMemory()
	hub := chathub.NewManagerService(mem)
	router := gin.New()
	NewHandler(hub).RegisterRoutes(router)
	return router, hub, mem
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := generateJWT(userID, "anon-"+userID)
	assert.NoError(t, err)
	return token
}

func perform(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// joinText queues (or matches) a user through the REST surface.
func joinText(t *testing.T, router *gin.Engine, userID string) map[string]interface{} {
	t.Helper()
	w := perform(router, http.MethodPost, "/random-chat/queue", tokenFor(t, userID),
		gin.H{"chatType": models.ChatTypeText})
	assert.Equal(t, http.StatusOK, w.Code)
	return decode(t, w)
}

func TestGetAnonID(t *testing.T) {
	router, _, _ := newTestRouter()

	w := perform(router, http.MethodGet, "/anonid", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])
	assert.NotEmpty(t, body["user_id"])
	assert.NotEmpty(t, body["anon_id"])

	userID, anonID, err := validateToken(body["token"].(string))
	assert.NoError(t, err)
	assert.Equal(t, body["user_id"], userID)
	assert.Equal(t, body["anon_id"], anonID)
}

func TestAuthRequired(t *testing.T) {
	router, _, _ := newTestRouter()

	w := perform(router, http.MethodPost, "/random-chat/queue", "", gin.H{"chatType": "text"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(router, http.MethodPost, "/random-chat/queue", "not-a-jwt", gin.H{"chatType": "text"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJoinQueueQueued(t *testing.T) {
	router, _, _ := newTestRouter()

	body := joinText(t, router, "user_A")

	assert.Equal(t, "queued", body["type"])
	assert.Equal(t, float64(1), body["position"])
	assert.NotEmpty(t, body["anonymousId"])
}

func TestJoinQueueMatchFound(t *testing.T) {
	router, hub, _ := newTestRouter()

	joinText(t, router, "user_A")
	body := joinText(t, router, "user_B")

	assert.Equal(t, "match_found", body["type"])
	assert.NotEmpty(t, body["sessionId"])
	assert.Equal(t, models.ChatTypeText, body["chatType"])
	assert.True(t, hub.Sessions.HasActiveSession("user_A"))
	assert.True(t, hub.Sessions.HasActiveSession("user_B"))
}

func TestJoinQueueInvalidChatType(t *testing.T) {
	router, _, _ := newTestRouter()

	w := perform(router, http.MethodPost, "/random-chat/queue", tokenFor(t, "user_A"),
		gin.H{"chatType": "smoke-signals"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode(t, w)["code"])
}

func TestJoinQueueDuplicateConflict(t *testing.T) {
	router, _, _ := newTestRouter()

	joinText(t, router, "user_A")
	w := perform(router, http.MethodPost, "/random-chat/queue", tokenFor(t, "user_A"),
		gin.H{"chatType": models.ChatTypeText})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_queued", decode(t, w)["code"])
}

func TestJoinQueueSuspended(t *testing.T) {
	router, _, mem := newTestRouter()
	assert.NoError(t, mem.SuspendUser("user_bad", time.Hour))

	w := perform(router, http.MethodPost, "/random-chat/queue", tokenFor(t, "user_bad"),
		gin.H{"chatType": models.ChatTypeText})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestLeaveQueue(t *testing.T) {
	router, _, _ := newTestRouter()

	// Leaving without an entry is 404, not a silent success.
	w := perform(router, http.MethodDelete, "/random-chat/queue", tokenFor(t, "user_A"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_in_queue", decode(t, w)["code"])

	joinText(t, router, "user_A")
	w = perform(router, http.MethodDelete, "/random-chat/queue", tokenFor(t, "user_A"), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// The entry is gone, so a second leave 404s again.
	w = perform(router, http.MethodDelete, "/random-chat/queue", tokenFor(t, "user_A"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQueueStatus(t *testing.T) {
	router, _, _ := newTestRouter()

	w := perform(router, http.MethodGet, "/random-chat/queue", tokenFor(t, "user_A"), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	joinText(t, router, "user_A")

	w = perform(router, http.MethodGet, "/random-chat/queue", tokenFor(t, "user_A"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["position"])
	assert.Equal(t, models.ChatTypeText, body["chatType"])
}

func TestGetSessionNotFound(t *testing.T) {
	router, _, _ := newTestRouter()

	w := perform(router, http.MethodGet, "/random-chat/session", tokenFor(t, "user_lonely"), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionLifecycleOverREST(t *testing.T) {
	router, _, _ := newTestRouter()

	joinText(t, router, "user_A")
	match := joinText(t, router, "user_B")
	sessionID := match["sessionId"].(string)

	// Send a message through the fallback endpoint.
	w := perform(router, http.MethodPost, "/random-chat/message", tokenFor(t, "user_A"),
		gin.H{"sessionId": sessionID, "content": "hello over http"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Poll the session: both the session document and the message come back.
	w = perform(router, http.MethodGet, "/random-chat/session", tokenFor(t, "user_B"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	messages := body["messages"].([]interface{})
	assert.Len(t, messages, 1)

	// End it, twice: the second call is an idempotent success.
	w = perform(router, http.MethodPost, "/random-chat/session", tokenFor(t, "user_A"),
		gin.H{"action": "end", "sessionId": sessionID})
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(router, http.MethodPost, "/random-chat/session", tokenFor(t, "user_A"),
		gin.H{"action": "end", "sessionId": sessionID})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPostSessionValidation(t *testing.T) {
	router, _, _ := newTestRouter()

	w := perform(router, http.MethodPost, "/random-chat/session", tokenFor(t, "user_A"),
		gin.H{"action": "end"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(router, http.MethodPost, "/random-chat/session", tokenFor(t, "user_A"),
		gin.H{"action": "pause", "sessionId": "whatever"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostSessionOutsiderCannotEnd(t *testing.T) {
	router, _, _ := newTestRouter()

	joinText(t, router, "user_A")
	match := joinText(t, router, "user_B")
	sessionID := match["sessionId"].(string)

	w := perform(router, http.MethodPost, "/random-chat/session", tokenFor(t, "user_C"),
		gin.H{"action": "end", "sessionId": sessionID})

	// Outsiders get 404, the session's existence is not revealed.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostMessageModerationRejected(t *testing.T) {
	router, _, _ := newTestRouter()

	joinText(t, router, "user_A")
	match := joinText(t, router, "user_B")
	sessionID := match["sessionId"].(string)

	w := perform(router, http.MethodPost, "/random-chat/message", tokenFor(t, "user_A"),
		gin.H{"sessionId": sessionID, "content": "mail me: spam@example.com"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPostMessageRateLimited(t *testing.T) {
	router, _, _ := newTestRouter()

	joinText(t, router, "user_A")
	match := joinText(t, router, "user_B")
	sessionID := match["sessionId"].(string)

	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = perform(router, http.MethodPost, "/random-chat/message", tokenFor(t, "user_A"),
			gin.H{"sessionId": sessionID, "content": "hello"})
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
}

func TestPostReport(t *testing.T) {
	router, hub, _ := newTestRouter()

	joinText(t, router, "user_A")
	match := joinText(t, router, "user_B")
	sessionID := match["sessionId"].(string)

	w := perform(router, http.MethodPost, "/random-chat/report", tokenFor(t, "user_A"),
		gin.H{"sessionId": sessionID, "reason": models.ReasonHarassment, "description": "rude"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, decode(t, w)["reportId"])

	// The report force-ended the session.
	assert.False(t, hub.Sessions.HasActiveSession("user_A"))

	// Same reporter, same session: conflict.
	w = perform(router, http.MethodPost, "/random-chat/report", tokenFor(t, "user_A"),
		gin.H{"sessionId": sessionID, "reason": models.ReasonHarassment})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostReportInvalidReason(t *testing.T) {
	router, _, _ := newTestRouter()

	joinText(t, router, "user_A")
	match := joinText(t, router, "user_B")
	sessionID := match["sessionId"].(string)

	w := perform(router, http.MethodPost, "/random-chat/report", tokenFor(t, "user_A"),
		gin.H{"sessionId": sessionID, "reason": "vibes"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetHealth(t *testing.T) {
	router, _, _ := newTestRouter()

	joinText(t, router, "user_A")

	w := perform(router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["queueTotal"])
}
