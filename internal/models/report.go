package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Report reasons accepted from users.
const (
	ReasonSpam            = "spam"
	ReasonInappropriate   = "inappropriate_content"
	ReasonHarassment      = "harassment"
	ReasonFakeProfile     = "fake_profile"
	ReasonAbusiveBehavior = "abusive_behavior"
	ReasonOther           = "other"
)

// ValidReportReason reports whether r is one of the enumerated reasons.
func ValidReportReason(r string) bool {
	switch r {
	case ReasonSpam, ReasonInappropriate, ReasonHarassment,
		ReasonFakeProfile, ReasonAbusiveBehavior, ReasonOther:
		return true
	}
	return false
}

// Report is a complaint filed by one session participant against the other.
// Invariant: at most one report per (reporter, session, reported) triple.
// Only Status is ever mutated after creation.
type Report struct {
	ReportID   string `gorm:"primaryKey" json:"reportId"`
	ReporterID string `gorm:"index:idx_report_triple,unique" json:"reporterId"`
	ReportedID string `gorm:"index:idx_report_triple,unique;index" json:"reportedId"`
	SessionID  string `gorm:"index:idx_report_triple,unique" json:"sessionId"`
	Reason     string `json:"reason"`
	// Description is optional free text from the reporter.
	Description string `gorm:"type:text" json:"description,omitempty"`
	// EvidenceMessageIDs is a JSON array of message ids belonging to the
	// named session; ids from other sessions are filtered out on submission.
	EvidenceMessageIDs string    `gorm:"type:text" json:"evidenceMessageIds,omitempty"`
	Status             string    `json:"status"` // "new", "reviewed", "actioned"
	CreatedAt          time.Time `json:"createdAt"`
}

// BeforeCreate generates a report UUID and defaults Status to "new".
func (r *Report) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ReportID == "" {
		r.ReportID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = "new"
	}
	return
}
