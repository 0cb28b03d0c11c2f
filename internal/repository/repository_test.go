package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
	"github.com/lumia-app/lumia/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlbumMembership(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	owner := testutil.CreateUser(t, store, "owner@example.com")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f1 := testutil.CreateFile(t, store, owner.ID, base)
	f2 := testutil.CreateFile(t, store, owner.ID, base.Add(time.Hour))

	now := model.Now()
	album := &model.Album{ID: model.NewID(), UserID: owner.ID, Name: "Trip", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Albums.Create(ctx, album))

	added, err := store.Albums.AddFiles(ctx, album.ID, []model.ID{f2.ID, f1.ID}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	added, err = store.Albums.AddFiles(ctx, album.ID, []model.ID{f1.ID}, now)
	require.NoError(t, err)
	assert.Equal(t, 0, added, "re-adding must be a no-op")

	oldest, err := store.Albums.OldestFileID(ctx, album.ID)
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.Equal(t, f1.ID, *oldest)

	files, err := store.Albums.Files(ctx, album.ID, 0)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, f2.ID, files[0].ID, "newest first")

	got, err := store.Albums.ByID(ctx, album.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.FileCount)

	err = store.Albums.RemoveFile(ctx, album.ID, model.NewID())
	assert.ErrorIs(t, err, repository.ErrAlbumFileNotFound)

	require.NoError(t, store.Albums.RemoveFile(ctx, album.ID, f1.ID))
	require.NoError(t, store.Albums.RemoveFile(ctx, album.ID, f2.ID))

	oldest, err = store.Albums.OldestFileID(ctx, album.ID)
	require.NoError(t, err)
	assert.Nil(t, oldest)
}

func TestFileOwnedIDsAndUsage(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	alice := testutil.CreateUser(t, store, "alice@example.com")
	bob := testutil.CreateUser(t, store, "bob@example.com")

	a1 := testutil.CreateFile(t, store, alice.ID, time.Now())
	b1 := testutil.CreateFile(t, store, bob.ID, time.Now())

	owned, err := store.Files.OwnedIDs(ctx, alice.ID, []model.ID{a1.ID, b1.ID, model.NewID()})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{a1.ID}, owned)

	usage, err := store.Files.Usage(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), usage.TotalSize)
	assert.Equal(t, 1, usage.TotalFiles)

	dup := *a1
	dup.ID = model.NewID()
	err = store.Files.Create(ctx, &dup)
	assert.ErrorIs(t, err, repository.ErrDuplicateFile)

	// Same hash under another owner is a distinct record.
	other := *a1
	other.ID = model.NewID()
	other.UserID = bob.ID
	require.NoError(t, store.Files.Create(ctx, &other))
}

func TestCircleMembershipAndInvitations(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	admin := testutil.CreateUser(t, store, "admin@example.com")
	member := testutil.CreateUser(t, store, "member@example.com")

	now := model.Now()
	circle := &model.Circle{ID: model.NewID(), Name: "Family", CreatedBy: admin.ID, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, store.Circles.Create(ctx, circle))
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, admin.ID, true, now))
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, member.ID, false, now))

	err := store.Circles.AddMember(ctx, circle.ID, member.ID, false, now)
	assert.ErrorIs(t, err, repository.ErrAlreadyMember)

	admins, err := store.Circles.LockAdmins(ctx, circle.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.ID{admin.ID}, admins)

	list, err := store.Circles.ListForUser(ctx, member.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsAdmin)
	assert.Equal(t, 2, list[0].MemberCount)

	isMember, err := store.Circles.IsMemberEmail(ctx, circle.ID, "member@example.com")
	require.NoError(t, err)
	assert.True(t, isMember)

	inv := &model.Invitation{Token: "tok", CircleID: circle.ID, Email: "new@example.com", InvitedBy: admin.ID, InvitedAt: now}
	require.NoError(t, store.Circles.CreateInvitation(ctx, inv))

	again := *inv
	again.Token = "tok2"
	assert.ErrorIs(t, store.Circles.CreateInvitation(ctx, &again), repository.ErrInvitationExists)

	got, err := store.Circles.InvitationByToken(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "Family", got.CircleName)

	require.NoError(t, store.Circles.DeleteInvitation(ctx, "tok"))
	_, err = store.Circles.InvitationByToken(ctx, "tok")
	assert.ErrorIs(t, err, repository.ErrInvitationNotFound)
}

func TestWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	owner := testutil.CreateUser(t, store, "owner@example.com")

	now := model.Now()
	album := &model.Album{ID: model.NewID(), UserID: owner.ID, Name: "Temp", CreatedAt: now, UpdatedAt: now}
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(tx *repository.Store) error {
		require.NoError(t, tx.Albums.Create(ctx, album))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.Albums.ByID(ctx, album.ID)
	assert.ErrorIs(t, err, repository.ErrAlbumNotFound)
}
