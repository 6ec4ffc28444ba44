package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session status values. Transitions are monotonic: a session that reached a
// terminal status (ended, reported) never becomes active again.
const (
	SessionWaiting  = "waiting" // reserved for asymmetric matching
	SessionActive   = "active"
	SessionEnded    = "ended"
	SessionReported = "reported"
)

// End reasons delivered with the session-ended event.
const (
	EndReasonUserLeft            = "user_left"
	EndReasonPartnerLeft         = "partner_left"
	EndReasonPartnerDisconnected = "partner_disconnected"
	EndReasonReported            = "reported"
	EndReasonTimeout             = "timeout"
)

// Participant is one of the two sides of a random-chat session.
type Participant struct {
	UserID   string    `json:"userId"`
	AnonID   string    `json:"anonymousId"`
	JoinedAt time.Time `json:"joinedAt"`
	IsActive bool      `json:"isActive"`
}

// RandomChatSession represents an ephemeral 1-on-1 pairing between two
// strangers. Exactly two participants; the message log is append-only.
type RandomChatSession struct {
	// SessionID is the unique identifier for the session (UUID).
	SessionID string `gorm:"primaryKey" json:"sessionId"`
	// User1ID / User2ID are the real user ids of both participants.
	User1ID string `gorm:"index" json:"-"`
	User2ID string `gorm:"index" json:"-"`
	// Anon1ID / Anon2ID are the per-session display handles.
	Anon1ID string `json:"-"`
	Anon2ID string `json:"-"`
	// Lang1 / Lang2 snapshot each side's language preference at match time,
	// used to localize system messages.
	Lang1 string `json:"-"`
	Lang2 string `json:"-"`
	// ChatType is one of "text", "voice", "video".
	ChatType string `json:"chatType"`
	// Status: waiting | active | ended | reported.
	Status string `gorm:"index" json:"status"`
	// EndReason records why the session was terminated.
	EndReason string `json:"endReason,omitempty"`

	StartedAt    time.Time `json:"startedAt"`
	EndedAt      time.Time `json:"endedAt,omitempty"`
	MessageCount int       `json:"messageCount"`
	ReportCount  int       `json:"reportCount"`
}

// IsTerminal reports whether the session reached a final status.
func (s *RandomChatSession) IsTerminal() bool {
	return s.Status == SessionEnded || s.Status == SessionReported
}

// HasParticipant reports whether userID belongs to the session.
func (s *RandomChatSession) HasParticipant(userID string) bool {
	return s.User1ID == userID || s.User2ID == userID
}

// PartnerOf returns the user id of the other participant, or "" if userID is
// not a participant.
func (s *RandomChatSession) PartnerOf(userID string) string {
	switch userID {
	case s.User1ID:
		return s.User2ID
	case s.User2ID:
		return s.User1ID
	}
	return ""
}

// LangOf returns the language preference snapshot for userID.
func (s *RandomChatSession) LangOf(userID string) string {
	switch userID {
	case s.User1ID:
		return s.Lang1
	case s.User2ID:
		return s.Lang2
	}
	return ""
}

// AnonIDOf returns the anonymous handle assigned to userID in this session.
func (s *RandomChatSession) AnonIDOf(userID string) string {
	switch userID {
	case s.User1ID:
		return s.Anon1ID
	case s.User2ID:
		return s.Anon2ID
	}
	return ""
}

// Participants returns both sides in join order.
func (s *RandomChatSession) Participants() [2]Participant {
	return [2]Participant{
		{UserID: s.User1ID, AnonID: s.Anon1ID, JoinedAt: s.StartedAt, IsActive: s.Status == SessionActive},
		{UserID: s.User2ID, AnonID: s.Anon2ID, JoinedAt: s.StartedAt, IsActive: s.Status == SessionActive},
	}
}

// SessionMessage is one entry of a session's append-only message log.
// Entries are immutable once appended.
type SessionMessage struct {
	// MessageID is the unique identifier for the message (UUID).
	MessageID string `gorm:"primaryKey" json:"messageId"`
	// SessionID is the session the message belongs to.
	SessionID string `gorm:"index;not null" json:"sessionId"`
	// SenderAnonID is the anonymous handle of the sender, never the real id.
	SenderAnonID string `json:"anonymousId"`
	Content      string `gorm:"type:text" json:"content"`
	// Type is "text" unless a richer kind is negotiated.
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"timestamp"`
}

// BeforeCreate generates a message UUID if none was assigned yet.
func (m *SessionMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.MessageID == "" {
		m.MessageID = uuid.New().String()
	}
	return
}
