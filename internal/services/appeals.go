package services

import (
	"context"
	"errors"
	"fmt"
	"parley/internal/models"
	"time"

	"gorm.io/gorm"
)

// Appeal eligibility windows.
const (
	appealWindowAfterIndefinite = 365 * 24 * time.Hour     // first indefinite restriction
	appealWindowAfterDenial     = 365 * 24 * time.Hour     // denied appeal
	appealWindowPostAppeal      = 5 * 365 * 24 * time.Hour // violation after a first appeal
	maxAppeals                  = 2
)

type AppealService struct {
	db       *gorm.DB
	clock    Clock
	notifier Notifier
}

func NewAppealService(db *gorm.DB, clock Clock, notifier Notifier) *AppealService {
	if clock == nil {
		clock = time.Now
	}
	return &AppealService{db: db, clock: clock, notifier: notifier}
}

// Eligibility is the answer to "may this user appeal right now". A false
// Eligible with a nil EligibleFrom means permanently ineligible; a non-nil
// EligibleFrom is the date the window opens (or opened).
type Eligibility struct {
	Eligible     bool       `json:"eligible"`
	EligibleFrom *time.Time `json:"eligible_from"`
}

func (s *AppealService) CheckEligibility(user *models.User) Eligibility {
	if user.NextAppealEligibleAt == nil {
		return Eligibility{Eligible: false, EligibleFrom: nil}
	}
	if user.NextAppealEligibleAt.After(s.clock()) {
		return Eligibility{Eligible: false, EligibleFrom: user.NextAppealEligibleAt}
	}
	return Eligibility{Eligible: true, EligibleFrom: user.NextAppealEligibleAt}
}

// SubmitAppeal files a new appeal for a restricted user. The eligibility
// check runs again under the user row lock so two concurrent submissions
// cannot both slip through the same window.
func (s *AppealService) SubmitAppeal(ctx context.Context, userID uint, statement string) (*models.Appeal, error) {
	var appeal *models.Appeal
	now := s.clock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := forUpdate(tx).First(&user, userID).Error; err != nil {
			return fmt.Errorf("load user %d: %w", userID, err)
		}

		elig := s.CheckEligibility(&user)
		if !elig.Eligible {
			return &AppealNotEligibleError{EligibleFrom: elig.EligibleFrom}
		}

		appeal = &models.Appeal{
			UserID:       user.ID,
			AppealNumber: user.AppealCount + 1,
			Status:       models.AppealStatusPending,
			Statement:    statement,
			SubmittedAt:  now,
			EligibleFrom: elig.EligibleFrom,
		}
		if err := tx.Create(appeal).Error; err != nil {
			return err
		}

		return logEvent(tx, now, auditEntry{
			EventType:     models.EventAppealSubmitted,
			ActorID:       ptr(user.ID),
			SubjectUserID: ptr(user.ID),
			AppealID:      ptr(appeal.ID),
			Metadata:      map[string]any{"appeal_number": appeal.AppealNumber},
		})
	})
	if err != nil {
		return nil, err
	}
	return appeal, nil
}

// DecideAppeal records an admin verdict. The appeal count goes up on every
// decision, approvals included; once it reaches the cap the user may never
// appeal again.
func (s *AppealService) DecideAppeal(ctx context.Context, appealID uint, admin *models.User, decision models.AppealDecision, note string) (*models.Appeal, error) {
	if decision != models.AppealDecisionApproved && decision != models.AppealDecisionDenied {
		return nil, &InvalidValueError{Field: "appeal decision", Value: string(decision)}
	}

	var appeal models.Appeal
	var ob outbox
	now := s.clock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&appeal, appealID).Error; err != nil {
			return fmt.Errorf("load appeal %d: %w", appealID, err)
		}
		if appeal.Status != models.AppealStatusPending && appeal.Status != models.AppealStatusUnderReview {
			return ErrAppealNotPending
		}
		if appeal.UserID == 0 {
			return fmt.Errorf("appeal %d has no user", appeal.ID)
		}

		var user models.User
		if err := forUpdate(tx).First(&user, appeal.UserID).Error; err != nil {
			return fmt.Errorf("load user %d: %w", appeal.UserID, err)
		}

		user.AppealCount++

		appeal.Status = models.AppealStatus(decision)
		appeal.DecidedByID = ptr(admin.ID)
		appeal.DecidedAt = ptr(now)
		appeal.DecisionNote = note
		if err := tx.Save(&appeal).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"appeal_count": user.AppealCount,
		}
		if decision == models.AppealDecisionApproved {
			// Lift whichever restriction is in force; never both at once.
			user.IsIndefinitelyRestricted = false
			user.RestrictionEndsAt = nil
			updates["is_indefinitely_restricted"] = false
			updates["restriction_ends_at"] = nil
		}

		// Window for the next appeal, decided off the post-increment count.
		if user.AppealCount >= maxAppeals {
			user.NextAppealEligibleAt = nil
			updates["next_appeal_eligible_at"] = nil
		} else if decision == models.AppealDecisionDenied {
			user.NextAppealEligibleAt = ptr(now.Add(appealWindowAfterDenial))
			updates["next_appeal_eligible_at"] = user.NextAppealEligibleAt
		}

		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return err
		}

		if err := logEvent(tx, now, auditEntry{
			EventType:     models.EventAppealDecided,
			ActorID:       ptr(admin.ID),
			SubjectUserID: ptr(user.ID),
			AppealID:      ptr(appeal.ID),
			Metadata: map[string]any{
				"decision":     string(decision),
				"appeal_count": user.AppealCount,
			},
		}); err != nil {
			return err
		}

		userID := user.ID
		adminID := admin.ID
		ob.add(func() {
			reason := "Your appeal was denied."
			if decision == models.AppealDecisionApproved {
				reason = "Your appeal was approved and your restriction has been lifted."
			}
			s.notifier.Notify(userID, &adminID, models.NotificationTypeAppeal, reason)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	ob.flush()
	return &appeal, nil
}

// HandlePostAppealViolation escalates a confirmed violation against a user
// who has appealed before. It must run inside the caller's transaction, with
// the user row already locked, so the escalation commits atomically with the
// violation itself.
func (s *AppealService) HandlePostAppealViolation(tx *gorm.DB, user *models.User) error {
	if !inTransaction(tx) {
		return ErrNotInTransaction
	}
	if user.AppealCount < 1 {
		return errors.New("user has no prior appeals")
	}
	now := s.clock()

	user.IsIndefinitelyRestricted = true
	user.RestrictionEndsAt = nil
	if user.AppealCount == 1 {
		user.NextAppealEligibleAt = ptr(now.Add(appealWindowPostAppeal))
	} else {
		// Second strike after appealing: no way back.
		user.NextAppealEligibleAt = nil
	}

	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"is_indefinitely_restricted": true,
		"restriction_ends_at":        nil,
		"next_appeal_eligible_at":    user.NextAppealEligibleAt,
	}).Error; err != nil {
		return err
	}

	return logEvent(tx, now, auditEntry{
		EventType:     models.EventRestrictionApplied,
		ActorID:       nil, // system-triggered
		SubjectUserID: ptr(user.ID),
		Metadata: map[string]any{
			"consequence":  string(models.ConsequenceIndefinite),
			"post_appeal":  true,
			"appeal_count": user.AppealCount,
		},
	})
}
