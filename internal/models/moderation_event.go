package models

import (
	"time"
)

// Moderation event types. One per state transition in the core.
const (
	EventReportCreated            = "report_created"
	EventReportAssigned           = "report_assigned"
	EventReportResolved           = "report_resolved"
	EventReportDismissed          = "report_dismissed"
	EventReportEscalated          = "report_escalated"
	EventReportReturnedToQueue    = "report_returned_to_queue"
	EventViolationConfirmed       = "violation_confirmed"
	EventDecisionCosigned         = "decision_cosigned"
	EventRestrictionApplied       = "restriction_applied"
	EventRestrictionLifted        = "restriction_lifted"
	EventModeratorProbationLifted = "moderator_probation_lifted"
	EventAppealSubmitted          = "appeal_submitted"
	EventAppealDecided            = "appeal_decided"
)

// ModerationEvent is the append-only audit log. Rows are written inside the
// same transaction as the transition they record and are never updated or
// deleted.
type ModerationEvent struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	EventID   string `gorm:"size:36;uniqueIndex;not null" json:"event_id"` // uuid
	EventType string `gorm:"size:40;not null;index" json:"event_type"`

	ActorID       *uint `gorm:"index" json:"actor_id"` // nil for system-triggered transitions
	SubjectUserID *uint `gorm:"index" json:"subject_user_id"`

	ReportID    *uint `gorm:"index" json:"report_id"`
	ViolationID *uint `json:"violation_id"`
	AppealID    *uint `json:"appeal_id"`
	ReviewID    *uint `json:"review_id"`

	Metadata []byte `gorm:"type:jsonb" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

func (ModerationEvent) TableName() string { return "moderation_events" }
