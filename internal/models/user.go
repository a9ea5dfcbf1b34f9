package models

import (
	"time"
)

const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"` // Hash
	Role     string `gorm:"size:20;default:'user';not null" json:"role"` // user, moderator, admin

	// Moderation state. Only the violation and appeal services write these.
	ViolationCount           int        `gorm:"default:0;not null" json:"violation_count"`
	AppealCount              int        `gorm:"default:0;not null" json:"appeal_count"`
	IsIndefinitelyRestricted bool       `gorm:"default:false;not null" json:"is_indefinitely_restricted"`
	RestrictionEndsAt        *time.Time `json:"restriction_ends_at"`
	// nil means the user may never appeal again once policy has set it. A
	// user who was never restricted also has nil here; the two are told
	// apart by the restriction fields above.
	NextAppealEligibleAt *time.Time `json:"next_appeal_eligible_at"`

	// A newly promoted moderator stays probationary until 10 of their
	// decisions have been cosigned by an admin.
	IsModeratorProbationary bool `gorm:"default:false;not null" json:"is_moderator_probationary"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// No DeletedAt for hard delete
}

func (u *User) IsModerator() bool {
	return u.Role == RoleModerator || u.Role == RoleAdmin
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsRestricted reports whether the user is currently barred from posting.
func (u *User) IsRestricted(now time.Time) bool {
	if u.IsIndefinitelyRestricted {
		return true
	}
	return u.RestrictionEndsAt != nil && u.RestrictionEndsAt.After(now)
}
