package models

import (
	"time"
)

type ReportStatus string

const (
	ReportStatusPending     ReportStatus = "pending"
	ReportStatusAssigned    ReportStatus = "assigned"
	ReportStatusUnderReview ReportStatus = "under_review"
	ReportStatusResolved    ReportStatus = "resolved"
	ReportStatusDismissed   ReportStatus = "dismissed"
	ReportStatusEscalated   ReportStatus = "escalated"
)

type ReportReason string

const (
	ReportReasonSpam          ReportReason = "spam"
	ReportReasonHarassment    ReportReason = "harassment"
	ReportReasonHateSpeech    ReportReason = "hate_speech"
	ReportReasonInappropriate ReportReason = "inappropriate"
	ReportReasonOther         ReportReason = "other"
)

func (r ReportReason) Valid() bool {
	switch r {
	case ReportReasonSpam, ReportReasonHarassment, ReportReasonHateSpeech,
		ReportReasonInappropriate, ReportReasonOther:
		return true
	}
	return false
}

type ReportResolution string

const (
	ResolutionViolationConfirmed ReportResolution = "violation_confirmed"
	ResolutionNoViolation        ReportResolution = "no_violation"
	ResolutionEscalatedToAdmin   ReportResolution = "escalated_to_admin"
)

// Reportable content kinds. One per content table a report can point at.
const (
	ReportableTypePost    = "post"
	ReportableTypeComment = "comment"
)

type Report struct {
	ID             uint `gorm:"primaryKey" json:"id"`
	ReporterID     uint `gorm:"not null;index" json:"reporter_id"`
	Reporter       User `gorm:"foreignKey:ReporterID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"reporter"`
	ReportedUserID uint `gorm:"not null;index" json:"reported_user_id"`
	ReportedUser   User `gorm:"foreignKey:ReportedUserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"reported_user"`

	ReportableType string `gorm:"size:20;not null" json:"reportable_type"` // "post", "comment"
	ReportableID   uint   `gorm:"not null;index" json:"reportable_id"`

	Reason ReportReason `gorm:"size:30;not null" json:"reason"`
	Note   string       `gorm:"type:text" json:"note"`

	Status       ReportStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	AssignedToID *uint        `gorm:"index" json:"assigned_to_id"`
	AssignedAt   *time.Time   `json:"assigned_at"`

	Resolution     *ReportResolution `gorm:"size:30" json:"resolution"`
	ResolvedByID   *uint             `json:"resolved_by_id"`
	ResolvedAt     *time.Time        `json:"resolved_at"`
	ResolutionNote string            `gorm:"type:text" json:"resolution_note"`

	IsAgainstModerator bool `gorm:"default:false;not null" json:"is_against_moderator"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
