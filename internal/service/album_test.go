package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/service"
	"github.com/lumia-app/lumia/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlbumThumbnailLifecycle(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	albums := service.NewAlbumService(store)

	owner := testutil.CreateUser(t, store, "owner@example.com")
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f1 := testutil.CreateFile(t, store, owner.ID, base)
	f2 := testutil.CreateFile(t, store, owner.ID, base.Add(time.Hour))
	f3 := testutil.CreateFile(t, store, owner.ID, base.Add(2*time.Hour))

	album, err := albums.Create(ctx, owner, "  Holidays ")
	require.NoError(t, err)
	assert.Equal(t, "Holidays", album.Name)
	assert.Nil(t, album.ThumbnailID)

	added, err := albums.AddFiles(ctx, owner, album.ID, []model.ID{f3.ID, f1.ID, f2.ID, f1.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, added.Added)
	require.NotNil(t, added.Album.ThumbnailID)
	assert.Equal(t, f1.ID, *added.Album.ThumbnailID)
	assert.Equal(t, 3, added.Album.FileCount)

	again, err := albums.AddFiles(ctx, owner, album.ID, []model.ID{f2.ID})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Added)

	removed, err := albums.RemoveFile(ctx, owner, album.ID, f1.ID)
	require.NoError(t, err)
	assert.True(t, removed.ThumbnailChanged)
	require.NotNil(t, removed.Album.ThumbnailID)
	assert.Equal(t, f2.ID, *removed.Album.ThumbnailID)

	removed, err = albums.RemoveFile(ctx, owner, album.ID, f3.ID)
	require.NoError(t, err)
	assert.False(t, removed.ThumbnailChanged)

	removed, err = albums.RemoveFile(ctx, owner, album.ID, f2.ID)
	require.NoError(t, err)
	assert.True(t, removed.ThumbnailChanged)
	assert.Nil(t, removed.Album.ThumbnailID)

	_, err = albums.RemoveFile(ctx, owner, album.ID, f2.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestAlbumAddFilesValidation(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	albums := service.NewAlbumService(store)

	owner := testutil.CreateUser(t, store, "owner@example.com")
	other := testutil.CreateUser(t, store, "other@example.com")
	foreign := testutil.CreateFile(t, store, other.ID, time.Now())

	album, err := albums.Create(ctx, owner, "Mine")
	require.NoError(t, err)

	_, err = albums.AddFiles(ctx, owner, album.ID, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = albums.AddFiles(ctx, owner, album.ID, []model.ID{foreign.ID})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = albums.Create(ctx, owner, "   ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestAlbumSetThumbnail(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	albums := service.NewAlbumService(store)

	owner := testutil.CreateUser(t, store, "owner@example.com")
	inAlbum := testutil.CreateFile(t, store, owner.ID, time.Now().Add(-time.Hour))
	outside := testutil.CreateFile(t, store, owner.ID, time.Now())

	album, err := albums.Create(ctx, owner, "Trip")
	require.NoError(t, err)
	_, err = albums.AddFiles(ctx, owner, album.ID, []model.ID{inAlbum.ID})
	require.NoError(t, err)

	_, err = albums.SetThumbnail(ctx, owner, album.ID, outside.ID)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	updated, err := albums.SetThumbnail(ctx, owner, album.ID, inAlbum.ID)
	require.NoError(t, err)
	assert.True(t, updated.HasThumbnail(inAlbum.ID))
}

func TestAlbumSharingAndWriteAccess(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	albums := service.NewAlbumService(store)
	circles := service.NewCircleService(store, nil)

	owner := testutil.CreateUser(t, store, "owner@example.com")
	friend := testutil.CreateUser(t, store, "friend@example.com")
	stranger := testutil.CreateUser(t, store, "stranger@example.com")

	circle, err := circles.Create(ctx, owner, "Family", "")
	require.NoError(t, err)
	foreignCircle, err := circles.Create(ctx, stranger, "Elsewhere", "")
	require.NoError(t, err)
	require.NoError(t, store.Circles.AddMember(ctx, circle.ID, friend.ID, false, model.Now()))

	album, err := albums.Create(ctx, owner, "Shared")
	require.NoError(t, err)

	_, err = albums.Share(ctx, owner, album.ID, []model.ID{foreignCircle.ID})
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	shared, err := albums.Share(ctx, owner, album.ID, []model.ID{circle.ID, circle.ID})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{circle.ID}, shared.CircleIDs)

	view, err := albums.Get(ctx, friend, album.ID)
	require.NoError(t, err)
	assert.False(t, view.IsOwner)

	_, err = albums.Rename(ctx, friend, album.ID, "Mine now")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	_, err = albums.Get(ctx, stranger, album.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = albums.Delete(ctx, stranger, album.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	unshared, err := albums.Share(ctx, owner, album.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, unshared.CircleIDs)

	_, err = albums.Get(ctx, friend, album.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, albums.Delete(ctx, owner, album.ID))
	_, err = albums.Get(ctx, owner, album.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
