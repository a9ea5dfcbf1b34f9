package models

import (
	"time"
)

const (
	ReviewStatusOpen   = "open"
	ReviewStatusClosed = "closed"
)

// ModeratorPerformanceReview tracks a report filed against a moderator.
// Created automatically when a report's target holds a moderator role; an
// admin records the outcome out of band.
type ModeratorPerformanceReview struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ModeratorID  uint   `gorm:"not null;index" json:"moderator_id"`
	Moderator    User   `gorm:"foreignKey:ModeratorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"moderator"`
	ReportID     uint   `gorm:"not null;index" json:"report_id"`
	Status       string `gorm:"size:20;not null;default:'open'" json:"status"`
	AdminOutcome string `gorm:"type:text" json:"admin_outcome"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
