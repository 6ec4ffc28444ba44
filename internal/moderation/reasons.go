package moderation

import "friendfinder/backend/internal/config"

// ReasonWeight returns the penalty weight for a report reason.
// Unknown reasons weigh 0.
func ReasonWeight(reason string) int {
	return config.ReportReasonWeights[reason]
}
