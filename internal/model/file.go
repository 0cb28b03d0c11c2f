package model

import (
	"time"
)

type File struct {
	ID            ID        `db:"id" json:"id"`
	UserID        ID        `db:"user_id" json:"userId"`
	ContentHash   string    `db:"content_hash" json:"-"`
	OriginalName  string    `db:"original_name" json:"originalName"`
	Filename      string    `db:"filename" json:"-"`       // blob locator of the processed bytes
	ThumbnailPath string    `db:"thumbnail_path" json:"-"` // blob locator of the thumbnail
	MimeType      string    `db:"mime_type" json:"mimeType"`
	Size          int64     `db:"size" json:"size"`
	OriginalSize  int64     `db:"original_size" json:"originalSize"`
	Width         int       `db:"width" json:"width,omitempty"`
	Height        int       `db:"height" json:"height,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UploadedAt    time.Time `db:"uploaded_at" json:"uploadedAt"`

	// Loaded on demand (not in the files table)
	AlbumIDs  []ID `db:"-" json:"albums,omitempty"`
	CircleIDs []ID `db:"-" json:"circleIds,omitempty"`
}

// UploadResult is returned by an upload; Duplicate marks an existing file.
// AlbumError is set when the file was stored but could not be added to
// the requested album.
type UploadResult struct {
	File       *File  `json:"-"`
	Duplicate  bool   `json:"duplicate"`
	AlbumError string `json:"albumError,omitempty"`
}
