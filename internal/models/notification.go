package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeSystem       NotificationType = "system"
	NotificationTypeReport       NotificationType = "report"        // a report was filed
	NotificationTypeReportResult NotificationType = "report_result" // outcome for the reporter
	NotificationTypeRestriction  NotificationType = "restriction"   // consequence for the reported user
	NotificationTypeAppeal       NotificationType = "appeal"
	NotificationTypeProbation    NotificationType = "probation" // moderator trust changes
)

type Notification struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"` // Receiver
	User      User             `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	ActorID   *uint            `gorm:"index" json:"actor_id"` // Sender
	Actor     User             `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"actor"`
	Type      NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	Reason    string           `gorm:"type:text" json:"reason"`
	IsRead    bool             `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}
