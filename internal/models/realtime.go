package models

import (
	"encoding/json"
	"time"
)

// Event names carried over the websocket channel. Inbound names are what the
// client sends, outbound names are what the server pushes back.
const (
	// inbound
	EventUserRegister = "user-register"
	EventJoinQueue    = "random-chat:join-queue"
	EventLeaveQueue   = "random-chat:leave-queue"
	EventMessageSend  = "random-chat:message-send"
	EventTypingStart  = "random-chat:typing-start"
	EventTypingStop   = "random-chat:typing-stop"
	EventEndSession   = "random-chat:end-session"
	EventWebRTCOffer  = "random-chat:webrtc-offer"
	EventWebRTCAnswer = "random-chat:webrtc-answer"
	EventWebRTCICE    = "random-chat:webrtc-ice-candidate"

	// outbound
	EventUserRegistered   = "user-registered"
	EventQueueJoined      = "random-chat:queue-joined"
	EventQueueLeft        = "random-chat:queue-left"
	EventQueueExpired     = "random-chat:queue-expired"
	EventMatchFound       = "random-chat:match-found"
	EventMessageReceived  = "random-chat:message-received"
	EventTypingReceived   = "random-chat:typing-received"
	EventSessionEnded     = "random-chat:session-ended"
	EventWebRTCOfferRecv  = "random-chat:webrtc-offer-received"
	EventWebRTCAnswerRecv = "random-chat:webrtc-answer-received"
	EventWebRTCICERecv    = "random-chat:webrtc-ice-candidate-received"
	EventError            = "error"
)

// Event is the wire envelope for every message on the channel, both
// directions. Data holds the event-specific payload.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent marshals payload into an Event envelope. Marshal errors are not
// expected for our own payload types; on failure the Data field stays empty.
func NewEvent(name string, payload interface{}) Event {
	data, _ := json.Marshal(payload)
	return Event{Name: name, Data: data}
}

// --- inbound payloads ---

type UserRegisterPayload struct {
	UserID string `json:"userId"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
	AnonID string `json:"anonymousId,omitempty"`
}

type JoinQueuePayload struct {
	ChatType    string      `json:"chatType"`
	Preferences Preferences `json:"preferences"`
}

type MessageSendPayload struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Type      string `json:"type,omitempty"`
}

type TypingPayload struct {
	SessionID string `json:"sessionId"`
}

type EndSessionPayload struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

type SignalPayload struct {
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
}

// --- outbound payloads ---

type UserRegisteredPayload struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	AnonID  string `json:"anonymousId"`
}

type QueueJoinedPayload struct {
	Position          int    `json:"position"`
	EstimatedWaitTime int    `json:"estimatedWaitTime"`
	AnonID            string `json:"anonymousId"`
}

type PartnerInfo struct {
	AnonID   string `json:"anonymousId"`
	Username string `json:"username"`
	IsActive bool   `json:"isActive"`
}

type MatchFoundPayload struct {
	SessionID string      `json:"sessionId"`
	ChatType  string      `json:"chatType"`
	Partner   PartnerInfo `json:"partner"`
	// Message is a localized greeting shown in the chat window.
	Message string `json:"message,omitempty"`
}

type MessageReceivedPayload struct {
	MessageID string    `json:"messageId"`
	SessionID string    `json:"sessionId"`
	AnonID    string    `json:"anonymousId"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	IsOwn     bool      `json:"isOwn"`
}

type TypingReceivedPayload struct {
	SessionID string `json:"sessionId"`
	AnonID    string `json:"anonymousId"`
	Typing    bool   `json:"typing"`
}

type SessionEndedPayload struct {
	SessionID string    `json:"sessionId"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	// Message is a localized explanation for the remaining participant.
	Message string `json:"message,omitempty"`
}

type SignalReceivedPayload struct {
	SessionID string          `json:"sessionId"`
	AnonID    string          `json:"anonymousId"`
	Payload   json.RawMessage `json:"payload"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// RetryAfter carries a retry hint in seconds for rate/abuse gates.
	RetryAfter int `json:"retryAfter,omitempty"`
}
