package model

import (
	"encoding/binary"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrInvalidID = errors.New("invalid id")

// ID is the canonical identifier for every stored record: 24 lowercase hex
// characters in the ObjectID layout. It is stored and compared as text.
type ID string

// NewID returns a fresh identifier whose embedded timestamp is now.
func NewID() ID {
	return ID(primitive.NewObjectID().Hex())
}

// NewIDAt returns a fresh identifier whose embedded timestamp is t.
// The random and counter bytes keep ids unique for equal timestamps.
func NewIDAt(t time.Time) ID {
	oid := primitive.NewObjectID()
	secs := t.Unix()
	if secs < 0 {
		secs = 0
	}
	binary.BigEndian.PutUint32(oid[0:4], uint32(secs))
	return ID(oid.Hex())
}

// ParseID validates s and returns it in canonical form.
func ParseID(s string) (ID, error) {
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return "", ErrInvalidID
	}
	return ID(oid.Hex()), nil
}

// ParseIDs validates every element, preserving order and dropping duplicates.
func ParseIDs(values []string) ([]ID, error) {
	ids := make([]ID, 0, len(values))
	seen := make(map[ID]struct{}, len(values))
	for _, v := range values {
		id, err := ParseID(v)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func (id ID) String() string {
	return string(id)
}

func (id ID) IsZero() bool {
	return id == ""
}

// Now returns the current time in the precision every supported database keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
