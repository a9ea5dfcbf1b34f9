package models

import (
	"time"
)

type AppealStatus string

const (
	AppealStatusPending     AppealStatus = "pending"
	AppealStatusUnderReview AppealStatus = "under_review"
	AppealStatusApproved    AppealStatus = "approved"
	AppealStatusDenied      AppealStatus = "denied"
)

type AppealDecision string

const (
	AppealDecisionApproved AppealDecision = "approved"
	AppealDecisionDenied   AppealDecision = "denied"
)

type Appeal struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"not null;index" json:"user_id"`
	User   User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`

	// Per-user sequence, assigned at submission.
	AppealNumber int `gorm:"not null" json:"appeal_number"`

	Status    AppealStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Statement string       `gorm:"type:text" json:"statement"` // markdown

	SubmittedAt  time.Time  `gorm:"not null" json:"submitted_at"`
	EligibleFrom *time.Time `json:"eligible_from"` // window that let this appeal in

	DecidedByID  *uint      `json:"decided_by_id"`
	DecidedAt    *time.Time `json:"decided_at"`
	DecisionNote string     `gorm:"type:text" json:"decision_note"`

	CreatedAt time.Time `json:"created_at"`
}
