package services

import (
	"context"
	"fmt"
	"parley/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// confirmViolationAgainst resolves a fresh report against the user as a
// confirmed violation.
func confirmViolationAgainst(t *testing.T, env *testEnv, reported, moderator *models.User) *models.Report {
	t.Helper()
	reporter := env.createUser(t, models.RoleUser)
	report := env.createPendingReport(t, reporter, reported)
	resolved, err := env.reports.ResolveReport(context.Background(), report.ID, moderator, models.ResolutionViolationConfirmed, "", fmt.Sprintf("rule-%d", report.ID), "")
	require.NoError(t, err)
	return resolved
}

func TestConsequenceLadder(t *testing.T) {
	env := newTestEnv(t)

	reported := env.createUser(t, models.RoleUser)
	moderator := env.createUser(t, models.RoleModerator)

	// First violation: 7 days.
	confirmViolationAgainst(t, env, reported, moderator)
	user := env.reloadUser(t, reported.ID)
	assert.Equal(t, 1, user.ViolationCount)
	assert.False(t, user.IsIndefinitelyRestricted)
	require.NotNil(t, user.RestrictionEndsAt)
	assert.True(t, user.RestrictionEndsAt.Equal(env.now.Add(7*24*time.Hour)))

	// Second violation: 30 days.
	confirmViolationAgainst(t, env, reported, moderator)
	user = env.reloadUser(t, reported.ID)
	assert.Equal(t, 2, user.ViolationCount)
	require.NotNil(t, user.RestrictionEndsAt)
	assert.True(t, user.RestrictionEndsAt.Equal(env.now.Add(30*24*time.Hour)))

	// Third violation: indefinite, appeal window opens in a year.
	confirmViolationAgainst(t, env, reported, moderator)
	user = env.reloadUser(t, reported.ID)
	assert.Equal(t, 3, user.ViolationCount)
	assert.True(t, user.IsIndefinitelyRestricted)
	assert.Nil(t, user.RestrictionEndsAt)
	require.NotNil(t, user.NextAppealEligibleAt)
	assert.True(t, user.NextAppealEligibleAt.Equal(env.now.Add(365*24*time.Hour)))

	// Violation numbers are a gapless per-user sequence.
	var violations []models.Violation
	require.NoError(t, env.db.Where("user_id = ?", reported.ID).Order("id ASC").Find(&violations).Error)
	require.Len(t, violations, 3)
	for i, v := range violations {
		assert.Equal(t, i+1, v.ViolationNumber)
		assert.True(t, v.AppliedToUser)
	}
	assert.Equal(t, models.ConsequenceSevenDay, violations[0].Consequence)
	assert.Equal(t, models.ConsequenceThirtyDay, violations[1].Consequence)
	assert.Equal(t, models.ConsequenceIndefinite, violations[2].Consequence)
}

func TestProbationaryConfirmationDefersEnforcement(t *testing.T) {
	env := newTestEnv(t)

	reported := env.createUser(t, models.RoleUser)
	moderator := env.createProbationaryModerator(t)

	report := confirmViolationAgainst(t, env, reported, moderator)

	var decision models.ModeratorDecision
	require.NoError(t, env.db.Where("report_id = ?", report.ID).First(&decision).Error)
	assert.True(t, decision.RequiresCosign)
	assert.Nil(t, decision.CosignedAt)

	// The violation is on record but nothing touched the user's
	// restriction fields.
	var violation models.Violation
	require.NoError(t, env.db.Where("report_id = ?", report.ID).First(&violation).Error)
	assert.False(t, violation.AppliedToUser)

	user := env.reloadUser(t, reported.ID)
	assert.Equal(t, 1, user.ViolationCount)
	assert.Nil(t, user.RestrictionEndsAt)
	assert.False(t, user.IsIndefinitelyRestricted)

	// The user is told the case is pending, not restricted.
	sent := env.notifier.sentTo(reported.ID)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Reason, "pending review")
}

func TestCosignDecision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reported := env.createUser(t, models.RoleUser)
	moderator := env.createProbationaryModerator(t)
	admin := env.createUser(t, models.RoleAdmin)

	report := confirmViolationAgainst(t, env, reported, moderator)
	var decision models.ModeratorDecision
	require.NoError(t, env.db.Where("report_id = ?", report.ID).First(&decision).Error)

	// Enforcement happens at cosign time, with a fresh restriction window.
	env.advance(48 * time.Hour)
	cosigned, err := env.violations.CosignDecision(ctx, decision.ID, admin)
	require.NoError(t, err)
	require.NotNil(t, cosigned.CosignedAt)
	assert.Equal(t, admin.ID, *cosigned.CosignedByID)

	user := env.reloadUser(t, reported.ID)
	require.NotNil(t, user.RestrictionEndsAt)
	assert.True(t, user.RestrictionEndsAt.Equal(env.now.Add(7*24*time.Hour)))

	var violation models.Violation
	require.NoError(t, env.db.Where("report_id = ?", report.ID).First(&violation).Error)
	assert.True(t, violation.AppliedToUser)

	assert.EqualValues(t, 1, env.countEvents(t, models.EventDecisionCosigned))
	assert.EqualValues(t, 1, env.countEvents(t, models.EventRestrictionApplied))

	// A second cosign is rejected.
	_, err = env.violations.CosignDecision(ctx, decision.ID, admin)
	assert.ErrorIs(t, err, ErrAlreadyCosigned)
}

func TestCosignNotRequired(t *testing.T) {
	env := newTestEnv(t)

	reported := env.createUser(t, models.RoleUser)
	moderator := env.createUser(t, models.RoleModerator)
	admin := env.createUser(t, models.RoleAdmin)

	report := confirmViolationAgainst(t, env, reported, moderator)
	var decision models.ModeratorDecision
	require.NoError(t, env.db.Where("report_id = ?", report.ID).First(&decision).Error)

	_, err := env.violations.CosignDecision(context.Background(), decision.ID, admin)
	assert.ErrorIs(t, err, ErrCosignNotRequired)
}

func TestProbationLiftsAtTenCosigns(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	moderator := env.createProbationaryModerator(t)
	admin := env.createUser(t, models.RoleAdmin)

	for i := 0; i < 10; i++ {
		reported := env.createUser(t, models.RoleUser)
		report := confirmViolationAgainst(t, env, reported, moderator)
		var decision models.ModeratorDecision
		require.NoError(t, env.db.Where("report_id = ?", report.ID).First(&decision).Error)

		_, err := env.violations.CosignDecision(ctx, decision.ID, admin)
		require.NoError(t, err)

		reloaded := env.reloadUser(t, moderator.ID)
		if i < 9 {
			assert.True(t, reloaded.IsModeratorProbationary, "still probationary after %d cosigns", i+1)
		} else {
			assert.False(t, reloaded.IsModeratorProbationary, "probation lifted at the 10th cosign")
		}
	}

	assert.EqualValues(t, 1, env.countEvents(t, models.EventModeratorProbationLifted))
	sent := env.notifier.sentTo(moderator.ID)
	require.Len(t, sent, 1)
	assert.Equal(t, models.NotificationTypeProbation, sent[0].Kind)
}

func TestPostAppealViolationEscalates(t *testing.T) {
	env := newTestEnv(t)

	reported := env.createUser(t, models.RoleUser)
	moderator := env.createUser(t, models.RoleModerator)

	// One appeal behind them; the ladder no longer applies.
	require.NoError(t, env.db.Model(reported).Update("appeal_count", 1).Error)

	report := confirmViolationAgainst(t, env, reported, moderator)

	user := env.reloadUser(t, reported.ID)
	assert.True(t, user.IsIndefinitelyRestricted)
	assert.Nil(t, user.RestrictionEndsAt)
	require.NotNil(t, user.NextAppealEligibleAt)
	assert.True(t, user.NextAppealEligibleAt.Equal(env.now.Add(5*365*24*time.Hour)))

	var violation models.Violation
	require.NoError(t, env.db.Where("report_id = ?", report.ID).First(&violation).Error)
	assert.Equal(t, models.ConsequenceIndefinite, violation.Consequence)
	assert.Nil(t, violation.RestrictionEndsAt)
	assert.True(t, violation.AppliedToUser)

	// The escalation is recorded as system-triggered.
	var event models.ModerationEvent
	require.NoError(t, env.db.Where("event_type = ?", models.EventRestrictionApplied).First(&event).Error)
	assert.Nil(t, event.ActorID)
}

func TestPostAppealViolationAfterTwoAppealsIsPermanent(t *testing.T) {
	env := newTestEnv(t)

	reported := env.createUser(t, models.RoleUser)
	moderator := env.createUser(t, models.RoleModerator)
	require.NoError(t, env.db.Model(reported).Update("appeal_count", 2).Error)

	confirmViolationAgainst(t, env, reported, moderator)

	user := env.reloadUser(t, reported.ID)
	assert.True(t, user.IsIndefinitelyRestricted)
	assert.Nil(t, user.NextAppealEligibleAt)
}

func TestCosignPostAppealAuditsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	reported := env.createUser(t, models.RoleUser)
	moderator := env.createProbationaryModerator(t)
	admin := env.createUser(t, models.RoleAdmin)
	require.NoError(t, env.db.Model(reported).Update("appeal_count", 1).Error)

	report := confirmViolationAgainst(t, env, reported, moderator)
	var decision models.ModeratorDecision
	require.NoError(t, env.db.Where("report_id = ?", report.ID).First(&decision).Error)

	_, err := env.violations.CosignDecision(ctx, decision.ID, admin)
	require.NoError(t, err)

	user := env.reloadUser(t, reported.ID)
	assert.True(t, user.IsIndefinitelyRestricted)

	// One enforcement, one restriction_applied row.
	assert.EqualValues(t, 1, env.countEvents(t, models.EventRestrictionApplied))
	assert.EqualValues(t, 1, env.countEvents(t, models.EventDecisionCosigned))
}

func TestLiftExpiredRestrictions(t *testing.T) {
	env := newTestEnv(t)

	expired := env.createUser(t, models.RoleUser)
	active := env.createUser(t, models.RoleUser)
	indefinite := env.createUser(t, models.RoleUser)

	require.NoError(t, env.db.Model(expired).Update("restriction_ends_at", env.now.Add(-time.Hour)).Error)
	require.NoError(t, env.db.Model(active).Update("restriction_ends_at", env.now.Add(time.Hour)).Error)
	require.NoError(t, env.db.Model(indefinite).Update("is_indefinitely_restricted", true).Error)

	lifted, err := env.violations.LiftExpiredRestrictions()
	require.NoError(t, err)
	assert.Equal(t, 1, lifted)

	assert.Nil(t, env.reloadUser(t, expired.ID).RestrictionEndsAt)
	assert.NotNil(t, env.reloadUser(t, active.ID).RestrictionEndsAt)
	assert.True(t, env.reloadUser(t, indefinite.ID).IsIndefinitelyRestricted)

	// Idempotent: a rerun finds nothing and audits nothing new.
	lifted, err = env.violations.LiftExpiredRestrictions()
	require.NoError(t, err)
	assert.Zero(t, lifted)
	assert.EqualValues(t, 1, env.countEvents(t, models.EventRestrictionLifted))
}
