package domain

import "time"

type Invite struct {
	ID         string
	Email      string
	Role       Role // Role to assign to the invited user
	TokenHash  string
	CreatedBy  string
	ExpiresAt  time.Time
	AcceptedAt *time.Time // set exactly once; consumed regardless of expiry
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Accepted reports whether the invite has been consumed.
func (i Invite) Accepted() bool { return i.AcceptedAt != nil }

// Expired reports whether the invite is past its expiry at the given time.
func (i Invite) Expired(now time.Time) bool { return now.After(i.ExpiresAt) }

// Live reports whether the invite can still be redeemed: not accepted and
// not expired. At most one live invite may exist per email.
func (i Invite) Live(now time.Time) bool { return !i.Accepted() && !i.Expired(now) }
