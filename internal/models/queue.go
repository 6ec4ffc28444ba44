package models

import (
	"time"

	"github.com/lib/pq" // Необхідний для pq.StringArray
)

// Chat types a queue entry may request. ChatType is the only hard matching
// filter; everything else in Preferences is advisory.
const (
	ChatTypeText  = "text"
	ChatTypeVoice = "voice"
	ChatTypeVideo = "video"
)

// ValidChatType reports whether t is a supported chat type.
func ValidChatType(t string) bool {
	return t == ChatTypeText || t == ChatTypeVoice || t == ChatTypeVideo
}

// Preferences describes what a user is looking for in a partner.
type Preferences struct {
	ChatType string `json:"chatType"`
	// Language is a BCP-47-ish code ("en", "uk"); used for soft scoring and
	// for localizing system messages.
	Language string `json:"language,omitempty"`
	// Interests holds up to 5 tags.
	Interests pq.StringArray `gorm:"type:text[]" json:"interests,omitempty"`
	AgeMin    int            `json:"ageMin,omitempty"`
	AgeMax    int            `json:"ageMax,omitempty"`
}

// QueueEntry is a user's pending request to be matched into a random chat.
// Invariant: at most one active entry per user id.
type QueueEntry struct {
	UserID string `gorm:"primaryKey" json:"userId"`
	// AnonID is the display handle the user will carry into the session.
	AnonID      string      `json:"anonymousId"`
	Preferences Preferences `gorm:"embedded" json:"preferences"`
	JoinedAt    time.Time   `json:"joinedAt"`
	RetryCount  int         `json:"retryCount"`
	Active      bool        `json:"active"`
}
