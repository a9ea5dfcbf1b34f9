package models

import (
	"time"
)

type ViolationConsequence string

const (
	ConsequenceSevenDay   ViolationConsequence = "7_day"
	ConsequenceThirtyDay  ViolationConsequence = "30_day"
	ConsequenceIndefinite ViolationConsequence = "indefinite"
)

// Violation is a confirmed infraction and its consequence. AppliedToUser
// flips false -> true exactly once, either immediately at confirmation or
// later when an admin cosigns the deciding moderator's decision.
type Violation struct {
	ID                  uint `gorm:"primaryKey" json:"id"`
	UserID              uint `gorm:"not null;index" json:"user_id"`
	User                User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	ReportID            uint `gorm:"not null;index" json:"report_id"`
	ModeratorDecisionID uint `gorm:"not null;uniqueIndex" json:"moderator_decision_id"`

	// Per-user sequence: equals the user's violation_count at confirmation.
	ViolationNumber int `gorm:"not null" json:"violation_number"`

	Consequence       ViolationConsequence `gorm:"size:20;not null" json:"consequence_applied"`
	RestrictionEndsAt *time.Time           `json:"restriction_ends_at"`
	AppliedToUser     bool                 `gorm:"default:false;not null" json:"applied_to_user"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
