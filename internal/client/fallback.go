package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"friendfinder/backend/internal/models"
)

// FallbackClient is the HTTP request/response equivalent of the realtime
// operations, used transparently by the send/typing helpers while fallback
// mode is active.
type FallbackClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewFallbackClient створює fallback-клієнт з 5-секундним таймаутом.
func NewFallbackClient(baseURL, token string) *FallbackClient {
	return &FallbackClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// SendEventFallback maps a channel event onto its REST equivalent. Events
// with no HTTP equivalent (typing, WebRTC signaling) are dropped: they are
// ephemeral and meaningless at polling latency.
func (f *FallbackClient) SendEventFallback(ev models.Event) error {
	switch ev.Name {
	case models.EventMessageSend:
		var p models.MessageSendPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		_, err := f.SendMessageFallback(p.SessionID, p.Content, p.Type)
		return err
	case models.EventEndSession:
		var p models.EndSessionPayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		return f.EndSessionFallback(p.SessionID)
	case models.EventJoinQueue:
		var p models.JoinQueuePayload
		if err := json.Unmarshal(ev.Data, &p); err != nil {
			return err
		}
		_, err := f.JoinQueueFallback(p.Preferences)
		return err
	case models.EventLeaveQueue:
		return f.LeaveQueueFallback()
	case models.EventTypingStart, models.EventTypingStop,
		models.EventWebRTCOffer, models.EventWebRTCAnswer, models.EventWebRTCICE:
		return nil
	}
	return fmt.Errorf("no fallback for event %s", ev.Name)
}

// SendMessageFallback posts one message into the active session.
func (f *FallbackClient) SendMessageFallback(sessionID, content, msgType string) (*models.SessionMessage, error) {
	body := map[string]string{"sessionId": sessionID, "content": content, "type": msgType}
	var out struct {
		Message models.SessionMessage `json:"message"`
	}
	if err := f.do(http.MethodPost, "/random-chat/message", body, &out); err != nil {
		return nil, err
	}
	return &out.Message, nil
}

// PollMessagesFallback fetches the active-session snapshot (session plus the
// last messages) for polling-based delivery.
func (f *FallbackClient) PollMessagesFallback() (*models.RandomChatSession, []models.SessionMessage, error) {
	var out struct {
		Session  *models.RandomChatSession `json:"session"`
		Messages []models.SessionMessage   `json:"messages"`
	}
	if err := f.do(http.MethodGet, "/random-chat/session", nil, &out); err != nil {
		return nil, nil, err
	}
	return out.Session, out.Messages, nil
}

// GetPresenceFallback fetches the server health document.
func (f *FallbackClient) GetPresenceFallback() (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := f.do(http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// JoinQueueFallback joins the matchmaking queue over HTTP.
func (f *FallbackClient) JoinQueueFallback(prefs models.Preferences) (map[string]interface{}, error) {
	body := map[string]interface{}{"chatType": prefs.ChatType, "preferences": prefs}
	var out map[string]interface{}
	if err := f.do(http.MethodPost, "/random-chat/queue", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LeaveQueueFallback leaves the matchmaking queue over HTTP.
func (f *FallbackClient) LeaveQueueFallback() error {
	return f.do(http.MethodDelete, "/random-chat/queue", nil, nil)
}

// EndSessionFallback ends the active session over HTTP.
func (f *FallbackClient) EndSessionFallback(sessionID string) error {
	body := map[string]string{"action": "end", "sessionId": sessionID, "reason": "user_left"}
	return f.do(http.MethodPost, "/random-chat/session", body, nil)
}

func (f *FallbackClient) do(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}
