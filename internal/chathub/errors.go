package chathub

import "errors"

// State-conflict and validation errors surfaced by the matcher and session
// services. The handler layer maps these onto HTTP status codes and error
// events; none of them are retried automatically.
var (
	ErrInvalidChatType  = errors.New("invalid chat type")
	ErrAlreadyQueued    = errors.New("user already has an active queue entry")
	ErrAlreadyInSession = errors.New("user already has an active session")
	ErrTooManyReports   = errors.New("too many recent reports against user")
	ErrNotQueued        = errors.New("user is not in the queue")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session is not active")
	ErrNotAParticipant  = errors.New("user is not a session participant")
	ErrAlreadyReported  = errors.New("session already reported by this user")
	ErrInvalidReason    = errors.New("invalid report reason")
)
