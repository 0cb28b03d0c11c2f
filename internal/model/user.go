package model

import (
	"time"
)

type User struct {
	ID               ID        `db:"id" json:"id"`
	GoogleID         string    `db:"google_id" json:"-"`
	Email            string    `db:"email" json:"email"`
	Name             string    `db:"name" json:"name"`
	Picture          string    `db:"picture" json:"picture"`
	SubscriptionTier Tier      `db:"subscription_tier" json:"subscriptionTier"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	LastLoginAt      time.Time `db:"last_login_at" json:"lastLogin"`
}

// DisplayName falls back to the local part of the email when no name is known.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	for i := 0; i < len(u.Email); i++ {
		if u.Email[i] == '@' {
			return u.Email[:i]
		}
	}
	return u.Email
}

// Quota is the storage usage of one user against their tier.
type Quota struct {
	TotalSize  int64 `db:"total_size" json:"totalSize"`
	TotalFiles int   `db:"total_files" json:"totalFiles"`
	Limit      int64 `db:"-" json:"limit"`
	Tier       Tier  `db:"-" json:"tier"`
}

func (q Quota) Remaining() int64 {
	if q.Limit <= 0 {
		return 0
	}
	if q.TotalSize >= q.Limit {
		return 0
	}
	return q.Limit - q.TotalSize
}

// Allows reports whether incoming more bytes still fit in the quota.
func (q Quota) Allows(incoming int64) bool {
	return q.TotalSize+incoming <= q.Limit
}
