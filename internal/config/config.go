package config

import "time"

const (
	// Matchmaking
	QueueEntryTTL        = 5 * time.Minute
	QueueSweepInterval   = 30 * time.Second
	EstimatedWaitCeiling = 300 * time.Second
	DefaultEstimatedWait = 30 * time.Second

	// Soft preference scoring (advisory only, chat type is the hard filter)
	LanguageMatchScore  = 2
	SharedInterestScore = 1
	MaxInterestTags     = 5

	// Abuse gate
	ReportGateThreshold = 3
	ReportGateWindow    = 24 * time.Hour

	// Moderation
	RateLimitMaxMessages = 10
	RateLimitWindow      = 60 * time.Second
	RateLimitSweepEvery  = 5 * time.Minute
	MaxMessageLength     = 1000
	MaxCapitalsRatio     = 0.7
	MinLengthForCapitals = 10
	RepeatedCharRun      = 5

	// Session
	SessionSnapshotMessages = 50

	// Client reconnection
	ReconnectBaseDelay   = 1 * time.Second
	ReconnectMaxDelay    = 30 * time.Second
	MaxReconnectAttempts = 10
	FallbackRetryCount   = 3
	FallbackErrorCount   = 5
	FallbackPollInterval = 3 * time.Second
	ConnectTimeout       = 10 * time.Second
)

// ReportReasonWeights maps a report reason to the penalty weight used when
// deciding whether to suspend a user from matchmaking.
var ReportReasonWeights = map[string]int{
	"spam":                  5,
	"fake_profile":          5,
	"inappropriate_content": 50,
	"harassment":            250,
	"abusive_behavior":      250,
	"other":                 5,
}
