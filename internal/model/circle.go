package model

import (
	"time"
)

const MaxCircleDescription = 150

type Circle struct {
	ID          ID        `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedBy   ID        `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
	MemberCount int       `db:"member_count" json:"memberCount"`
}

// Member is a circle membership joined with the member's profile.
type Member struct {
	CircleID ID        `db:"circle_id" json:"-"`
	UserID   ID        `db:"user_id" json:"id"`
	IsAdmin  bool      `db:"is_admin" json:"isAdmin"`
	JoinedAt time.Time `db:"joined_at" json:"joinedAt"`
	Name     string    `db:"name" json:"name"`
	Email    string    `db:"email" json:"email"`
	Picture  string    `db:"picture" json:"picture"`
}

type Invitation struct {
	Token      string    `db:"token" json:"token"`
	CircleID   ID        `db:"circle_id" json:"circleId"`
	CircleName string    `db:"circle_name" json:"circleName,omitempty"`
	Email      string    `db:"email" json:"email"`
	InvitedBy  ID        `db:"invited_by" json:"invitedBy"`
	InvitedAt  time.Time `db:"invited_at" json:"invitedAt"`
}

// CircleSummary is a circle as seen in the viewer's own list.
type CircleSummary struct {
	Circle
	IsAdmin bool `db:"is_admin" json:"isAdmin"`
}

// CircleDetail is the member view of a circle. Invitations are only filled
// in for admins.
type CircleDetail struct {
	Circle
	IsAdmin     bool         `json:"isAdmin"`
	Members     []Member     `json:"members"`
	Invitations []Invitation `json:"invitations,omitempty"`
}
