package model

import (
	"time"
)

type Album struct {
	ID          ID        `db:"id" json:"id"`
	UserID      ID        `db:"user_id" json:"userId"`
	Name        string    `db:"name" json:"name"`
	ThumbnailID *ID       `db:"thumbnail_id" json:"thumbnailId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
	FileCount   int       `db:"file_count" json:"fileCount"`

	CircleIDs []ID `db:"-" json:"circleIds"`
}

// HasThumbnail reports whether id is the album's current thumbnail.
func (a *Album) HasThumbnail(id ID) bool {
	return a.ThumbnailID != nil && *a.ThumbnailID == id
}

// ActivityAt is the timestamp an album sorts by in feeds.
func (a *Album) ActivityAt() time.Time {
	if !a.UpdatedAt.IsZero() {
		return a.UpdatedAt
	}
	return a.CreatedAt
}
