package services

import (
	"errors"
	"fmt"
	"time"
)

// Errors every operation in the moderation core can surface. Anything not
// listed here (driver failures etc.) is propagated unchanged.
var (
	// Self-action guards.
	ErrSelfReport     = errors.New("cannot report yourself")
	ErrSelfAssignment = errors.New("moderator cannot take a report about themselves")
	ErrSelfResolution = errors.New("moderator cannot resolve a report they are a party to")

	// Quotas and state machine guards.
	ErrReportRateLimited = errors.New("report rate limit exceeded")
	ErrReportNotPending  = errors.New("report is not pending")
	ErrReportClosed      = errors.New("report already resolved")
	ErrAppealNotPending  = errors.New("appeal already decided")

	// Cosign guards.
	ErrCosignNotRequired = errors.New("decision does not require a cosign")
	ErrAlreadyCosigned   = errors.New("decision already cosigned")

	// Programming errors.
	ErrNotInTransaction = errors.New("must be called inside a transaction")
)

// InvalidValueError reports an enum value the core does not recognize, e.g.
// an unknown report resolution or appeal decision.
type InvalidValueError struct {
	Field string
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s: %q", e.Field, e.Value)
}

// AppealNotEligibleError is returned when a user appeals outside their
// window. EligibleFrom carries the date the window opens; nil means the user
// is permanently ineligible.
type AppealNotEligibleError struct {
	EligibleFrom *time.Time
}

func (e *AppealNotEligibleError) Error() string {
	if e.EligibleFrom == nil {
		return "user is permanently ineligible to appeal"
	}
	return fmt.Sprintf("user may not appeal before %s", e.EligibleFrom.Format(time.RFC3339))
}
