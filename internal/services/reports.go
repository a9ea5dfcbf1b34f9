package services

import (
	"context"
	"fmt"
	"log"
	"parley/internal/models"
	"time"

	"gorm.io/gorm"
)

const (
	// Sliding rate limit on filing reports.
	reportRateLimit  = 10
	reportRateWindow = time.Hour

	// An assigned report untouched this long goes back to the queue.
	staleAssignmentAge = 24 * time.Hour
)

type ReportService struct {
	db         *gorm.DB
	clock      Clock
	notifier   Notifier
	events     EventPublisher
	violations *ViolationService
}

func NewReportService(db *gorm.DB, clock Clock, notifier Notifier, events EventPublisher, violations *ViolationService) *ReportService {
	if clock == nil {
		clock = time.Now
	}
	return &ReportService{db: db, clock: clock, notifier: notifier, events: events, violations: violations}
}

// CreateReport files a report against another user's content. Reports
// against moderators additionally open a performance review. The "report
// created" event and the admin notifications go out only after commit.
func (s *ReportService) CreateReport(ctx context.Context, reporter *models.User, reportedUserID uint, reportableType string, reportableID uint, reason models.ReportReason, note string) (*models.Report, error) {
	if reporter.ID == reportedUserID {
		return nil, ErrSelfReport
	}
	if !reason.Valid() {
		return nil, &InvalidValueError{Field: "report reason", Value: string(reason)}
	}
	if reportableType != models.ReportableTypePost && reportableType != models.ReportableTypeComment {
		return nil, &InvalidValueError{Field: "reportable type", Value: reportableType}
	}

	var report *models.Report
	var ob outbox
	now := s.clock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recent int64
		if err := tx.Model(&models.Report{}).
			Where("reporter_id = ? AND created_at > ?", reporter.ID, now.Add(-reportRateWindow)).
			Count(&recent).Error; err != nil {
			return err
		}
		if recent >= reportRateLimit {
			return ErrReportRateLimited
		}

		var reported models.User
		if err := tx.First(&reported, reportedUserID).Error; err != nil {
			return fmt.Errorf("load reported user %d: %w", reportedUserID, err)
		}

		report = &models.Report{
			ReporterID:         reporter.ID,
			ReportedUserID:     reported.ID,
			ReportableType:     reportableType,
			ReportableID:       reportableID,
			Reason:             reason,
			Note:               note,
			Status:             models.ReportStatusPending,
			IsAgainstModerator: reported.IsModerator(),
			CreatedAt:          now, // rate limit window is measured on the service clock
		}
		if err := tx.Create(report).Error; err != nil {
			return err
		}

		var reviewID *uint
		if report.IsAgainstModerator {
			review := models.ModeratorPerformanceReview{
				ModeratorID: reported.ID,
				ReportID:    report.ID,
				Status:      models.ReviewStatusOpen,
			}
			if err := tx.Create(&review).Error; err != nil {
				return err
			}
			reviewID = ptr(review.ID)
		}

		if err := logEvent(tx, now, auditEntry{
			EventType:     models.EventReportCreated,
			ActorID:       ptr(reporter.ID),
			SubjectUserID: ptr(reported.ID),
			ReportID:      ptr(report.ID),
			ReviewID:      reviewID,
			Metadata: map[string]any{
				"reason":          string(reason),
				"reportable_type": reportableType,
				"reportable_id":   reportableID,
			},
		}); err != nil {
			return err
		}

		reporterID := reporter.ID
		reportID := report.ID
		ob.add(func() {
			s.events.Publish("report.created", map[string]any{
				"report_id":        reportID,
				"reporter_id":      reporterID,
				"reported_user_id": reportedUserID,
				"reason":           string(reason),
			})
			s.notifyAdmins(reporterID, reportID)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	ob.flush()
	return report, nil
}

// notifyAdmins pings every admin when a report lands. At-least-once; runs
// after the filing transaction commits.
func (s *ReportService) notifyAdmins(reporterID, reportID uint) {
	var admins []models.User
	if err := s.db.Where("role = ?", models.RoleAdmin).Find(&admins).Error; err != nil {
		log.Printf("Failed to load admins for report %d: %v", reportID, err)
		return
	}
	for _, admin := range admins {
		s.notifier.Notify(admin.ID, &reporterID, models.NotificationTypeReport,
			fmt.Sprintf("A new report (#%d) is waiting in the moderation queue.", reportID))
	}
}

// AssignReport hands a pending report to a moderator for review.
func (s *ReportService) AssignReport(ctx context.Context, reportID uint, moderator *models.User) (*models.Report, error) {
	var report models.Report
	now := s.clock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&report, reportID).Error; err != nil {
			return fmt.Errorf("load report %d: %w", reportID, err)
		}
		if report.ReporterID == moderator.ID || report.ReportedUserID == moderator.ID {
			return ErrSelfAssignment
		}
		if report.Status != models.ReportStatusPending {
			return ErrReportNotPending
		}

		report.Status = models.ReportStatusAssigned
		report.AssignedToID = ptr(moderator.ID)
		report.AssignedAt = ptr(now)
		if err := tx.Save(&report).Error; err != nil {
			return err
		}

		return logEvent(tx, now, auditEntry{
			EventType:     models.EventReportAssigned,
			ActorID:       ptr(moderator.ID),
			SubjectUserID: ptr(report.ReportedUserID),
			ReportID:      ptr(report.ID),
		})
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ResolveReport records the moderator's verdict. A confirmed violation is
// delegated to the violation service inside the same transaction before the
// report is finalized.
func (s *ReportService) ResolveReport(ctx context.Context, reportID uint, moderator *models.User, resolution models.ReportResolution, note, ruleRef, modNote string) (*models.Report, error) {
	var decisionType models.DecisionType
	switch resolution {
	case models.ResolutionViolationConfirmed:
		decisionType = models.DecisionConfirmed
	case models.ResolutionNoViolation:
		decisionType = models.DecisionDismissed
	case models.ResolutionEscalatedToAdmin:
		decisionType = models.DecisionEscalated
	default:
		return nil, &InvalidValueError{Field: "resolution", Value: string(resolution)}
	}

	var report models.Report
	var ob outbox
	now := s.clock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&report, reportID).Error; err != nil {
			return fmt.Errorf("load report %d: %w", reportID, err)
		}
		if moderator.ID == report.ReporterID || moderator.ID == report.ReportedUserID {
			return ErrSelfResolution
		}
		if report.Status != models.ReportStatusPending &&
			report.Status != models.ReportStatusAssigned &&
			report.Status != models.ReportStatusUnderReview {
			return ErrReportClosed
		}

		decision := &models.ModeratorDecision{
			ModeratorID:    moderator.ID,
			ReportID:       report.ID,
			Decision:       decisionType,
			RuleRef:        ruleRef,
			Note:           modNote,
			RequiresCosign: decisionType == models.DecisionConfirmed && moderator.IsModeratorProbationary,
		}
		if err := tx.Create(decision).Error; err != nil {
			return err
		}

		if decisionType == models.DecisionConfirmed {
			if _, err := s.violations.ConfirmViolation(tx, &ob, &report, decision, moderator); err != nil {
				return err
			}
		}

		report.Status = models.ReportStatusResolved
		report.Resolution = ptr(resolution)
		report.ResolvedByID = ptr(moderator.ID)
		report.ResolvedAt = ptr(now)
		report.ResolutionNote = note
		if err := tx.Save(&report).Error; err != nil {
			return err
		}

		if err := logEvent(tx, now, auditEntry{
			EventType:     models.EventReportResolved,
			ActorID:       ptr(moderator.ID),
			SubjectUserID: ptr(report.ReportedUserID),
			ReportID:      ptr(report.ID),
			Metadata:      map[string]any{"resolution": string(resolution)},
		}); err != nil {
			return err
		}

		reporterID := report.ReporterID
		modID := moderator.ID
		ob.add(func() {
			s.notifier.Notify(reporterID, &modID, models.NotificationTypeReportResult,
				"Your report has been reviewed. Thank you for helping keep the community safe.")
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	ob.flush()
	return &report, nil
}

// DismissReport closes a report with no action taken.
func (s *ReportService) DismissReport(ctx context.Context, reportID uint, moderator *models.User, note string) (*models.Report, error) {
	var report models.Report
	var ob outbox
	now := s.clock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&report, reportID).Error; err != nil {
			return fmt.Errorf("load report %d: %w", reportID, err)
		}
		if moderator.ID == report.ReporterID || moderator.ID == report.ReportedUserID {
			return ErrSelfResolution
		}
		if report.Status != models.ReportStatusPending &&
			report.Status != models.ReportStatusAssigned &&
			report.Status != models.ReportStatusUnderReview {
			return ErrReportClosed
		}

		decision := &models.ModeratorDecision{
			ModeratorID: moderator.ID,
			ReportID:    report.ID,
			Decision:    models.DecisionDismissed,
			Note:        note,
		}
		if err := tx.Create(decision).Error; err != nil {
			return err
		}

		report.Status = models.ReportStatusDismissed
		report.Resolution = ptr(models.ResolutionNoViolation)
		report.ResolvedByID = ptr(moderator.ID)
		report.ResolvedAt = ptr(now)
		report.ResolutionNote = note
		if err := tx.Save(&report).Error; err != nil {
			return err
		}

		if err := logEvent(tx, now, auditEntry{
			EventType:     models.EventReportDismissed,
			ActorID:       ptr(moderator.ID),
			SubjectUserID: ptr(report.ReportedUserID),
			ReportID:      ptr(report.ID),
		}); err != nil {
			return err
		}

		reporterID := report.ReporterID
		modID := moderator.ID
		ob.add(func() {
			s.notifier.Notify(reporterID, &modID, models.NotificationTypeReportResult,
				"Your report was reviewed and dismissed. No violation was found.")
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	ob.flush()
	return &report, nil
}

// EscalateReport pushes a report out of the moderator queue and up to the
// admins. No consequence is applied at this step.
func (s *ReportService) EscalateReport(ctx context.Context, reportID uint, moderator *models.User) (*models.Report, error) {
	var report models.Report
	now := s.clock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&report, reportID).Error; err != nil {
			return fmt.Errorf("load report %d: %w", reportID, err)
		}
		if report.Status != models.ReportStatusPending &&
			report.Status != models.ReportStatusAssigned &&
			report.Status != models.ReportStatusUnderReview {
			return ErrReportClosed
		}

		decision := &models.ModeratorDecision{
			ModeratorID: moderator.ID,
			ReportID:    report.ID,
			Decision:    models.DecisionEscalated,
		}
		if err := tx.Create(decision).Error; err != nil {
			return err
		}

		report.Status = models.ReportStatusEscalated
		report.Resolution = ptr(models.ResolutionEscalatedToAdmin)
		report.ResolvedByID = ptr(moderator.ID)
		report.ResolvedAt = ptr(now)
		if err := tx.Save(&report).Error; err != nil {
			return err
		}

		return logEvent(tx, now, auditEntry{
			EventType:     models.EventReportEscalated,
			ActorID:       ptr(moderator.ID),
			SubjectUserID: ptr(report.ReportedUserID),
			ReportID:      ptr(report.ID),
		})
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// ReturnStaleReports sends reports sitting with a moderator for too long
// back to the pending queue. One transaction per report; a rerun only sees
// reports still matching the stale predicate, so it never double-audits.
func (s *ReportService) ReturnStaleReports() (int, error) {
	now := s.clock()
	cutoff := now.Add(-staleAssignmentAge)

	var ids []uint
	if err := s.db.Model(&models.Report{}).
		Where("status = ? AND assigned_at IS NOT NULL AND assigned_at <= ?", models.ReportStatusAssigned, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	returned := 0
	for _, id := range ids {
		err := s.db.Transaction(func(tx *gorm.DB) error {
			var report models.Report
			if err := forUpdate(tx).First(&report, id).Error; err != nil {
				return err
			}
			if report.Status != models.ReportStatusAssigned ||
				report.AssignedAt == nil || report.AssignedAt.After(cutoff) {
				return nil
			}

			previousAssignee := report.AssignedToID
			if err := tx.Model(&models.Report{}).Where("id = ?", report.ID).Updates(map[string]interface{}{
				"status":         models.ReportStatusPending,
				"assigned_to_id": nil,
				"assigned_at":    nil,
			}).Error; err != nil {
				return err
			}

			returned++
			return logEvent(tx, now, auditEntry{
				EventType:     models.EventReportReturnedToQueue,
				SubjectUserID: ptr(report.ReportedUserID),
				ReportID:      ptr(report.ID),
				Metadata:      map[string]any{"previous_assignee": previousAssignee},
			})
		})
		if err != nil {
			return returned, err
		}
	}
	return returned, nil
}
