package services

import (
	"log"
	"parley/internal/models"

	"gorm.io/gorm"
)

// Notifier delivers a single "tell this user what happened" message. The
// core only decides which message and when; delivery is fire-and-forget and
// at-least-once, so receivers must tolerate duplicates.
type Notifier interface {
	Notify(userID uint, actorID *uint, kind models.NotificationType, reason string)
}

// EventPublisher pushes a domain event to interested subsystems. Dispatch
// happens strictly after the enclosing transaction commits.
type EventPublisher interface {
	Publish(event string, payload map[string]any)
}

// dbNotifier is the default Notifier: it writes the notification rows the
// dashboard reads. It runs outside the moderation transaction, after commit.
type dbNotifier struct {
	db *gorm.DB
}

func NewDBNotifier(db *gorm.DB) Notifier { return &dbNotifier{db: db} }

func (n *dbNotifier) Notify(userID uint, actorID *uint, kind models.NotificationType, reason string) {
	notification := models.Notification{
		UserID:  userID,
		ActorID: actorID,
		Type:    kind,
		Reason:  reason,
	}
	if err := n.db.Create(&notification).Error; err != nil {
		log.Printf("Failed to create notification for user %d: %v", userID, err)
	}
}

// logPublisher is the default EventPublisher for deployments without a bus.
type logPublisher struct{}

func NewLogPublisher() EventPublisher { return logPublisher{} }

func (logPublisher) Publish(event string, payload map[string]any) {
	log.Printf("event %s: %v", event, payload)
}

// outbox collects side effects registered during a transaction. flush runs
// them in order and must only be called after a successful commit; on
// rollback the outbox is simply dropped.
type outbox struct {
	fns []func()
}

func (o *outbox) add(fn func()) { o.fns = append(o.fns, fn) }

func (o *outbox) flush() {
	for _, fn := range o.fns {
		fn()
	}
	o.fns = nil
}
