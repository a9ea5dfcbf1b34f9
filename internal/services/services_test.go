package services

import (
	"fmt"
	"parley/internal/db"
	"parley/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type sentNotification struct {
	UserID uint
	Kind   models.NotificationType
	Reason string
}

type fakeNotifier struct {
	sent []sentNotification
}

func (f *fakeNotifier) Notify(userID uint, actorID *uint, kind models.NotificationType, reason string) {
	f.sent = append(f.sent, sentNotification{UserID: userID, Kind: kind, Reason: reason})
}

func (f *fakeNotifier) sentTo(userID uint) []sentNotification {
	var out []sentNotification
	for _, n := range f.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type publishedEvent struct {
	Event   string
	Payload map[string]any
}

type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) Publish(event string, payload map[string]any) {
	f.events = append(f.events, publishedEvent{Event: event, Payload: payload})
}

// testEnv wires the three services against an in-memory sqlite database
// with a pinned, test-adjustable clock.
type testEnv struct {
	db       *gorm.DB
	now      time.Time
	notifier *fakeNotifier
	events   *fakePublisher

	reports    *ReportService
	violations *ViolationService
	appeals    *AppealService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// One connection, or every new pool conn would see its own empty
	// in-memory database.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(conn))

	env := &testEnv{
		db:       conn,
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		notifier: &fakeNotifier{},
		events:   &fakePublisher{},
	}
	clock := func() time.Time { return env.now }
	env.appeals = NewAppealService(conn, clock, env.notifier)
	env.violations = NewViolationService(conn, clock, env.notifier, env.appeals)
	env.reports = NewReportService(conn, clock, env.notifier, env.events, env.violations)
	return env
}

func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

var userSeq int

func (e *testEnv) createUser(t *testing.T, role string) *models.User {
	t.Helper()
	userSeq++
	user := &models.User{
		Username: fmt.Sprintf("user%d", userSeq),
		Email:    fmt.Sprintf("user%d@example.com", userSeq),
		Password: "x",
		Role:     role,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createProbationaryModerator(t *testing.T) *models.User {
	t.Helper()
	moderator := e.createUser(t, models.RoleModerator)
	moderator.IsModeratorProbationary = true
	require.NoError(t, e.db.Model(moderator).Update("is_moderator_probationary", true).Error)
	return moderator
}

// createPendingReport seeds a report directly, bypassing the rate limit.
func (e *testEnv) createPendingReport(t *testing.T, reporter, reported *models.User) *models.Report {
	t.Helper()
	report := &models.Report{
		ReporterID:     reporter.ID,
		ReportedUserID: reported.ID,
		ReportableType: models.ReportableTypePost,
		ReportableID:   1,
		Reason:         models.ReportReasonSpam,
		Status:         models.ReportStatusPending,
	}
	require.NoError(t, e.db.Create(report).Error)
	return report
}

func (e *testEnv) reloadUser(t *testing.T, id uint) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, e.db.First(&user, id).Error)
	return &user
}

func (e *testEnv) countEvents(t *testing.T, eventType string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.ModerationEvent{}).
		Where("event_type = ?", eventType).Count(&n).Error)
	return n
}
