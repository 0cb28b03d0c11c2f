// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lumia-app/lumia/internal/db"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
	"github.com/stretchr/testify/require"
)

// NewDB opens a migrated SQLite database in a temporary directory.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") +
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"

	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	return database
}

// NewStore returns a repository store over a fresh database.
func NewStore(t testing.TB) *repository.Store {
	t.Helper()
	return repository.NewStore(NewDB(t))
}

var userSeq int

// CreateUser inserts a lite-tier user with the given email.
func CreateUser(t testing.TB, store *repository.Store, email string) *model.User {
	t.Helper()

	userSeq++
	now := model.Now()
	user := &model.User{
		ID:               model.NewID(),
		GoogleID:         fmt.Sprintf("google-%d", userSeq),
		Email:            email,
		Name:             strings.SplitN(email, "@", 2)[0],
		SubscriptionTier: model.TierLite,
		CreatedAt:        now,
		LastLoginAt:      now,
	}
	require.NoError(t, store.Users.Create(context.Background(), user))
	return user
}

// CreateFile inserts a file record owned by userID without any stored bytes.
func CreateFile(t testing.TB, store *repository.Store, userID model.ID, createdAt time.Time) *model.File {
	t.Helper()

	createdAt = createdAt.UTC().Truncate(time.Microsecond)
	id := model.NewIDAt(createdAt)
	file := &model.File{
		ID:            id,
		UserID:        userID,
		ContentHash:   "hash-" + id.String(),
		OriginalName:  id.String() + ".jpg",
		Filename:      userID.String() + "/" + id.String() + ".jpg",
		ThumbnailPath: userID.String() + "/thumb_" + id.String() + ".jpg",
		MimeType:      "image/jpeg",
		Size:          1024,
		OriginalSize:  2048,
		CreatedAt:     createdAt,
		UploadedAt:    createdAt,
	}
	require.NoError(t, store.Files.Create(context.Background(), file))
	return file
}
