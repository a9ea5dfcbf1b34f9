package models

import (
	"time"
)

type DecisionType string

const (
	DecisionConfirmed DecisionType = "confirmed"
	DecisionDismissed DecisionType = "dismissed"
	DecisionEscalated DecisionType = "escalated"
)

// ModeratorDecision is a moderator's verdict on a report. RequiresCosign is
// fixed at creation time and never changes; CosignedBy/CosignedAt are set
// exactly once, by an admin.
type ModeratorDecision struct {
	ID          uint `gorm:"primaryKey" json:"id"`
	ModeratorID uint `gorm:"not null;index" json:"moderator_id"`
	Moderator   User `gorm:"foreignKey:ModeratorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"moderator"`
	ReportID    uint `gorm:"not null;uniqueIndex" json:"report_id"`

	Decision DecisionType `gorm:"size:20;not null" json:"decision"`
	RuleRef  string       `gorm:"size:100" json:"rule_ref"` // community guideline reference
	Note     string       `gorm:"type:text" json:"note"`

	RequiresCosign bool       `gorm:"default:false;not null" json:"requires_cosign"`
	CosignedByID   *uint      `json:"cosigned_by_id"`
	CosignedAt     *time.Time `json:"cosigned_at"`

	CreatedAt time.Time `json:"created_at"`
}
