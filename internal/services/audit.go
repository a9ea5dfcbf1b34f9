package services

import (
	"encoding/json"
	"parley/internal/models"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// auditEntry describes one moderation transition about to be recorded.
// Zero-valued link fields are stored as NULL.
type auditEntry struct {
	EventType     string
	ActorID       *uint
	SubjectUserID *uint
	ReportID      *uint
	ViolationID   *uint
	AppealID      *uint
	ReviewID      *uint
	Metadata      map[string]any
}

// logEvent appends one row to the audit log inside the caller's transaction,
// so the record commits or rolls back together with the transition itself.
func logEvent(tx *gorm.DB, now time.Time, e auditEntry) error {
	var meta []byte
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return err
		}
		meta = b
	}

	event := models.ModerationEvent{
		EventID:       uuid.New().String(),
		EventType:     e.EventType,
		ActorID:       e.ActorID,
		SubjectUserID: e.SubjectUserID,
		ReportID:      e.ReportID,
		ViolationID:   e.ViolationID,
		AppealID:      e.AppealID,
		ReviewID:      e.ReviewID,
		Metadata:      meta,
		CreatedAt:     now,
	}
	return tx.Create(&event).Error
}
