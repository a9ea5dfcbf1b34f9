package services

import (
	"context"
	"fmt"
	"parley/internal/models"
	"time"

	"gorm.io/gorm"
)

const (
	firstOffenseDuration  = 7 * 24 * time.Hour
	secondOffenseDuration = 30 * 24 * time.Hour

	// Cosigns a probationary moderator needs before their decisions stand
	// on their own.
	probationCosignTarget = 10
)

type ViolationService struct {
	db       *gorm.DB
	clock    Clock
	notifier Notifier
	appeals  *AppealService
}

func NewViolationService(db *gorm.DB, clock Clock, notifier Notifier, appeals *AppealService) *ViolationService {
	if clock == nil {
		clock = time.Now
	}
	return &ViolationService{db: db, clock: clock, notifier: notifier, appeals: appeals}
}

// consequenceForCount is the escalation ladder: a pure function of the
// user's violation count after the current violation is counted.
func consequenceForCount(count int, now time.Time) (models.ViolationConsequence, *time.Time) {
	switch count {
	case 1:
		return models.ConsequenceSevenDay, ptr(now.Add(firstOffenseDuration))
	case 2:
		return models.ConsequenceThirtyDay, ptr(now.Add(secondOffenseDuration))
	default:
		return models.ConsequenceIndefinite, nil
	}
}

func consequenceDuration(c models.ViolationConsequence) (time.Duration, bool) {
	switch c {
	case models.ConsequenceSevenDay:
		return firstOffenseDuration, true
	case models.ConsequenceThirtyDay:
		return secondOffenseDuration, true
	default:
		return 0, false
	}
}

// ConfirmViolation records a confirmed violation and, unless the deciding
// moderator is on probation, enforces the consequence. It runs inside the
// caller's transaction; the report service calls it while resolving a
// report. The reported user's row must not have been locked yet.
func (s *ViolationService) ConfirmViolation(tx *gorm.DB, ob *outbox, report *models.Report, decision *models.ModeratorDecision, confirmedBy *models.User) (*models.Violation, error) {
	if !inTransaction(tx) {
		return nil, ErrNotInTransaction
	}
	now := s.clock()

	var user models.User
	if err := forUpdate(tx).First(&user, report.ReportedUserID).Error; err != nil {
		return nil, fmt.Errorf("load reported user %d: %w", report.ReportedUserID, err)
	}

	user.ViolationCount++
	if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
		Update("violation_count", user.ViolationCount).Error; err != nil {
		return nil, err
	}

	consequence, endsAt := consequenceForCount(user.ViolationCount, now)
	violation := &models.Violation{
		UserID:              user.ID,
		ReportID:            report.ID,
		ModeratorDecisionID: decision.ID,
		ViolationNumber:     user.ViolationCount,
		Consequence:         consequence,
		RestrictionEndsAt:   endsAt,
		AppliedToUser:       false,
	}
	if err := tx.Create(violation).Error; err != nil {
		return nil, err
	}

	switch {
	case decision.RequiresCosign:
		// Probationary moderator: record only. Enforcement waits for an
		// admin cosign; the user's restriction fields stay untouched.

	case user.AppealCount > 0:
		// The user has been through the appeal process before; the ladder
		// no longer applies.
		if err := s.appeals.HandlePostAppealViolation(tx, &user); err != nil {
			return nil, err
		}
		violation.Consequence = models.ConsequenceIndefinite
		violation.RestrictionEndsAt = nil
		violation.AppliedToUser = true
		if err := tx.Save(violation).Error; err != nil {
			return nil, err
		}

	default:
		if err := s.applyRestriction(tx, &user, consequence, endsAt); err != nil {
			return nil, err
		}
		if consequence == models.ConsequenceIndefinite {
			user.NextAppealEligibleAt = ptr(now.Add(appealWindowAfterIndefinite))
			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("next_appeal_eligible_at", user.NextAppealEligibleAt).Error; err != nil {
				return nil, err
			}
		}
		violation.AppliedToUser = true
		if err := tx.Save(violation).Error; err != nil {
			return nil, err
		}
	}

	if err := logEvent(tx, now, auditEntry{
		EventType:     models.EventViolationConfirmed,
		ActorID:       ptr(confirmedBy.ID),
		SubjectUserID: ptr(user.ID),
		ReportID:      ptr(report.ID),
		ViolationID:   ptr(violation.ID),
		Metadata: map[string]any{
			"violation_number": violation.ViolationNumber,
			"consequence":      string(violation.Consequence),
			"pending_cosign":   decision.RequiresCosign,
		},
	}); err != nil {
		return nil, err
	}

	userID := user.ID
	pending := decision.RequiresCosign
	applied := violation.Consequence
	ob.add(func() {
		if pending {
			s.notifier.Notify(userID, nil, models.NotificationTypeRestriction,
				"A violation has been recorded against your account and is pending review.")
			return
		}
		s.notifier.Notify(userID, nil, models.NotificationTypeRestriction, restrictionMessage(applied))
	})

	return violation, nil
}

// CosignDecision lets an admin confirm a probationary moderator's decision,
// which finally enforces the deferred consequence. The precondition is
// checked twice, once before and once after the row lock, to close the race
// between two admins cosigning at the same instant.
func (s *ViolationService) CosignDecision(ctx context.Context, decisionID uint, admin *models.User) (*models.ModeratorDecision, error) {
	var decision models.ModeratorDecision
	if err := s.db.WithContext(ctx).First(&decision, decisionID).Error; err != nil {
		return nil, fmt.Errorf("load decision %d: %w", decisionID, err)
	}
	if !decision.RequiresCosign {
		return nil, ErrCosignNotRequired
	}
	if decision.CosignedAt != nil {
		return nil, ErrAlreadyCosigned
	}

	var ob outbox
	now := s.clock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&decision, decisionID).Error; err != nil {
			return err
		}
		if !decision.RequiresCosign {
			return ErrCosignNotRequired
		}
		if decision.CosignedAt != nil {
			return ErrAlreadyCosigned
		}

		var violation models.Violation
		if err := tx.Where("moderator_decision_id = ?", decision.ID).First(&violation).Error; err != nil {
			return fmt.Errorf("load violation for decision %d: %w", decision.ID, err)
		}
		var user models.User
		if err := forUpdate(tx).First(&user, violation.UserID).Error; err != nil {
			return fmt.Errorf("load user %d: %w", violation.UserID, err)
		}

		decision.CosignedByID = ptr(admin.ID)
		decision.CosignedAt = ptr(now)
		if err := tx.Save(&decision).Error; err != nil {
			return err
		}

		postAppeal := user.AppealCount > 0
		if postAppeal {
			// Audits its own restriction_applied row.
			if err := s.appeals.HandlePostAppealViolation(tx, &user); err != nil {
				return err
			}
			violation.Consequence = models.ConsequenceIndefinite
			violation.RestrictionEndsAt = nil
		} else {
			// The clock restarts at the cosign: a deferred 7-day tier still
			// restricts for the full seven days.
			endsAt := violation.RestrictionEndsAt
			if d, timed := consequenceDuration(violation.Consequence); timed {
				endsAt = ptr(now.Add(d))
				violation.RestrictionEndsAt = endsAt
			}
			if err := s.applyRestriction(tx, &user, violation.Consequence, endsAt); err != nil {
				return err
			}
			if violation.Consequence == models.ConsequenceIndefinite {
				user.NextAppealEligibleAt = ptr(now.Add(appealWindowAfterIndefinite))
				if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
					Update("next_appeal_eligible_at", user.NextAppealEligibleAt).Error; err != nil {
					return err
				}
			}
		}
		violation.AppliedToUser = true
		if err := tx.Save(&violation).Error; err != nil {
			return err
		}

		if err := logEvent(tx, now, auditEntry{
			EventType:     models.EventDecisionCosigned,
			ActorID:       ptr(admin.ID),
			SubjectUserID: ptr(user.ID),
			ReportID:      ptr(decision.ReportID),
			ViolationID:   ptr(violation.ID),
			Metadata:      map[string]any{"moderator_id": decision.ModeratorID},
		}); err != nil {
			return err
		}
		if !postAppeal {
			if err := logEvent(tx, now, auditEntry{
				EventType:     models.EventRestrictionApplied,
				ActorID:       ptr(admin.ID),
				SubjectUserID: ptr(user.ID),
				ViolationID:   ptr(violation.ID),
				Metadata:      map[string]any{"consequence": string(violation.Consequence)},
			}); err != nil {
				return err
			}
		}

		userID := user.ID
		applied := violation.Consequence
		ob.add(func() {
			s.notifier.Notify(userID, nil, models.NotificationTypeRestriction, restrictionMessage(applied))
		})

		return s.maybeLiftProbation(tx, &ob, decision.ModeratorID, now)
	})
	if err != nil {
		return nil, err
	}
	ob.flush()
	return &decision, nil
}

// maybeLiftProbation recounts the moderator's cosigned decisions from the
// database (never from memory, so restarts cannot skew it) and clears the
// probation flag at the target.
func (s *ViolationService) maybeLiftProbation(tx *gorm.DB, ob *outbox, moderatorID uint, now time.Time) error {
	var cosigned int64
	if err := tx.Model(&models.ModeratorDecision{}).
		Where("moderator_id = ? AND cosigned_at IS NOT NULL", moderatorID).
		Count(&cosigned).Error; err != nil {
		return err
	}
	if cosigned < probationCosignTarget {
		return nil
	}

	var moderator models.User
	if err := forUpdate(tx).First(&moderator, moderatorID).Error; err != nil {
		return err
	}
	if !moderator.IsModeratorProbationary {
		return nil
	}

	if err := tx.Model(&models.User{}).Where("id = ?", moderator.ID).
		Update("is_moderator_probationary", false).Error; err != nil {
		return err
	}
	if err := logEvent(tx, now, auditEntry{
		EventType:     models.EventModeratorProbationLifted,
		SubjectUserID: ptr(moderator.ID),
		Metadata:      map[string]any{"cosigned_decisions": cosigned},
	}); err != nil {
		return err
	}

	ob.add(func() {
		s.notifier.Notify(moderator.ID, nil, models.NotificationTypeProbation,
			"Your moderation probation has been lifted. Your decisions no longer require an admin cosign.")
	})
	return nil
}

// LiftExpiredRestrictions clears timed restrictions that have run out. Each
// user is handled in its own transaction, so the sweep can crash or run
// twice without harm; indefinitely restricted users are never touched.
func (s *ViolationService) LiftExpiredRestrictions() (int, error) {
	now := s.clock()

	var ids []uint
	if err := s.db.Model(&models.User{}).
		Where("restriction_ends_at IS NOT NULL AND restriction_ends_at <= ? AND is_indefinitely_restricted = ?", now, false).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	lifted := 0
	for _, id := range ids {
		var ob outbox
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var user models.User
			if err := forUpdate(tx).First(&user, id).Error; err != nil {
				return err
			}
			// Re-check under the lock: another sweep may have won.
			if user.IsIndefinitelyRestricted || user.RestrictionEndsAt == nil || user.RestrictionEndsAt.After(now) {
				return nil
			}

			if err := tx.Model(&models.User{}).Where("id = ?", user.ID).
				Update("restriction_ends_at", nil).Error; err != nil {
				return err
			}
			if err := logEvent(tx, now, auditEntry{
				EventType:     models.EventRestrictionLifted,
				SubjectUserID: ptr(user.ID),
			}); err != nil {
				return err
			}

			lifted++
			userID := user.ID
			ob.add(func() {
				s.notifier.Notify(userID, nil, models.NotificationTypeRestriction,
					"Your restriction has expired. Welcome back.")
			})
			return nil
		})
		if err != nil {
			return lifted, err
		}
		ob.flush()
	}
	return lifted, nil
}

// applyRestriction writes the consequence onto the user row. For timed
// tiers only the end timestamp moves; the indefinite flag is already false
// by invariant. Updates the in-memory struct alongside the row.
func (s *ViolationService) applyRestriction(tx *gorm.DB, user *models.User, consequence models.ViolationConsequence, endsAt *time.Time) error {
	if consequence == models.ConsequenceIndefinite {
		user.IsIndefinitelyRestricted = true
		user.RestrictionEndsAt = nil
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"is_indefinitely_restricted": true,
			"restriction_ends_at":        nil,
		}).Error
	}
	user.RestrictionEndsAt = endsAt
	return tx.Model(&models.User{}).Where("id = ?", user.ID).
		Update("restriction_ends_at", endsAt).Error
}

func restrictionMessage(c models.ViolationConsequence) string {
	switch c {
	case models.ConsequenceSevenDay:
		return "A violation was confirmed against your account. You are restricted for 7 days."
	case models.ConsequenceThirtyDay:
		return "A violation was confirmed against your account. You are restricted for 30 days."
	default:
		return "A violation was confirmed against your account. You are restricted indefinitely."
	}
}
