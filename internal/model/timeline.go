package model

import (
	"fmt"
	"strings"
	"time"
)

type ItemType string

const (
	ItemFile  ItemType = "file"
	ItemAlbum ItemType = "album"
)

// TimelineAlbum is an album as shown in a circle feed.
type TimelineAlbum struct {
	Album
	Preview []File `json:"previewFiles"`
}

// TimelineItem is one raw feed element before grouping.
type TimelineItem struct {
	Type      ItemType       `json:"type"`
	OwnerID   ID             `json:"ownerId"`
	Timestamp time.Time      `json:"timestamp"`
	File      *File          `json:"file,omitempty"`
	Album     *TimelineAlbum `json:"album,omitempty"`
}

// ItemID is the id of the file or album the item wraps.
func (i TimelineItem) ItemID() ID {
	switch {
	case i.File != nil:
		return i.File.ID
	case i.Album != nil:
		return i.Album.ID
	}
	return ""
}

func (i TimelineItem) Cursor() TimelineCursor {
	return TimelineCursor{At: i.Timestamp, ID: i.ItemID()}
}

// TimelineEntry groups consecutive items of one type from one owner.
type TimelineEntry struct {
	Type      ItemType       `json:"type"`
	OwnerID   ID             `json:"ownerId"`
	OwnerName string         `json:"ownerName"`
	Timestamp time.Time      `json:"timestamp"`
	Items     []TimelineItem `json:"items"`
}

type TimelinePage struct {
	Entries    []TimelineEntry `json:"entries"`
	NextCursor *TimelineCursor `json:"nextCursor"`
}

// TimelineCursor is a position in a feed ordered by timestamp, then id,
// both descending. The next page starts strictly after it, so items that
// share a timestamp are never skipped. A zero ID resumes strictly before
// At.
type TimelineCursor struct {
	At time.Time
	ID ID
}

// Follows reports whether c sorts after other in feed order.
func (c TimelineCursor) Follows(other TimelineCursor) bool {
	if !c.At.Equal(other.At) {
		return c.At.Before(other.At)
	}
	return c.ID < other.ID
}

// String renders the cursor as "<RFC 3339 time>_<id>".
func (c TimelineCursor) String() string {
	at := c.At.UTC().Format(time.RFC3339Nano)
	if c.ID.IsZero() {
		return at
	}
	return at + "_" + c.ID.String()
}

func (c TimelineCursor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *TimelineCursor) UnmarshalText(text []byte) error {
	parsed, err := ParseTimelineCursor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseTimelineCursor reads a cursor produced by String. A bare RFC 3339
// time is accepted as well.
func ParseTimelineCursor(s string) (TimelineCursor, error) {
	rawAt, rawID, hasID := strings.Cut(s, "_")
	at, err := time.Parse(time.RFC3339Nano, rawAt)
	if err != nil {
		return TimelineCursor{}, fmt.Errorf("invalid cursor time: %w", err)
	}

	c := TimelineCursor{At: at.UTC()}
	if hasID {
		if c.ID, err = ParseID(rawID); err != nil {
			return TimelineCursor{}, fmt.Errorf("invalid cursor id: %w", err)
		}
	}
	return c, nil
}
