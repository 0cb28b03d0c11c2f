package service_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"path"
	"testing"
	"time"

	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/media"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
	"github.com/lumia-app/lumia/internal/service"
	"github.com/lumia-app/lumia/internal/storage"
	"github.com/lumia-app/lumia/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type mediaFixture struct {
	store  *repository.Store
	blobs  *storage.MemoryStorage
	media  *service.MediaService
	albums *service.AlbumService
}

func newMediaFixture(t *testing.T) *mediaFixture {
	t.Helper()

	store := testutil.NewStore(t)
	blobs := storage.NewMemoryStorage()
	cache, err := storage.NewThumbnailCache(1 << 20)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	albums := service.NewAlbumService(store)
	return &mediaFixture{
		store:  store,
		blobs:  blobs,
		albums: albums,
		media:  service.NewMediaService(store, blobs, albums, service.MediaOptions{Cache: cache}),
	}
}

func TestUploadStoresFileAndThumbnail(t *testing.T) {
	ctx := context.Background()
	f := newMediaFixture(t)
	user := testutil.CreateUser(t, f.store, "alice@example.com")

	result, err := f.media.Upload(ctx, user, service.UploadInput{
		Filename: "sunset.png",
		Data:     pngBytes(t, 1600, 900, color.RGBA{R: 200, G: 100, B: 50, A: 255}),
	})
	require.NoError(t, err)
	assert.False(t, result.Duplicate)

	file := result.File
	assert.Equal(t, "sunset.png", file.OriginalName)
	assert.Equal(t, "image/jpeg", file.MimeType, "lite tier re-encodes photos")
	assert.Equal(t, 1080, file.Width)
	assert.Equal(t, 607, file.Height)
	assert.Equal(t, 2, f.blobs.Len())
	assert.True(t, f.blobs.Has(file.Filename))
	assert.True(t, f.blobs.Has(file.ThumbnailPath))

	thumb, err := f.media.Thumbnail(ctx, user, file.ID)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 500, cfg.Width)

	_, rc, err := f.media.Content(ctx, user, file.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Len(t, data, int(file.Size))

	quota, err := f.media.Quota(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, file.Size, quota.TotalSize)
	assert.Equal(t, 1, quota.TotalFiles)
	assert.Equal(t, model.TierLite, quota.Tier)
}

func TestUploadDuplicatePerOwner(t *testing.T) {
	ctx := context.Background()
	f := newMediaFixture(t)
	alice := testutil.CreateUser(t, f.store, "alice@example.com")
	bob := testutil.CreateUser(t, f.store, "bob@example.com")
	data := pngBytes(t, 40, 30, color.White)

	first, err := f.media.Upload(ctx, alice, service.UploadInput{Filename: "a.png", Data: data})
	require.NoError(t, err)

	second, err := f.media.Upload(ctx, alice, service.UploadInput{Filename: "copy.png", Data: data})
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.File.ID, second.File.ID)
	assert.Equal(t, 2, f.blobs.Len(), "duplicate stores no bytes")

	other, err := f.media.Upload(ctx, bob, service.UploadInput{Filename: "a.png", Data: data})
	require.NoError(t, err)
	assert.False(t, other.Duplicate)
	assert.NotEqual(t, first.File.ID, other.File.ID)
}

func TestUploadRejectsNonMediaAndQuota(t *testing.T) {
	ctx := context.Background()
	f := newMediaFixture(t)
	user := testutil.CreateUser(t, f.store, "alice@example.com")

	_, err := f.media.Upload(ctx, user, service.UploadInput{Filename: "notes.txt", Data: []byte("hello world")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	now := model.Now()
	big := &model.File{
		ID:           model.NewID(),
		UserID:       user.ID,
		ContentHash:  "big",
		OriginalName: "big.mov",
		Filename:     "big.mov",
		MimeType:     "video/quicktime",
		Size:         model.TierLite.Policy().StorageLimit,
		OriginalSize: model.TierLite.Policy().StorageLimit,
		CreatedAt:    now,
		UploadedAt:   now,
	}
	require.NoError(t, f.store.Files.Create(ctx, big))

	_, err = f.media.Upload(ctx, user, service.UploadInput{Filename: "one.png", Data: pngBytes(t, 10, 10, color.Black)})
	assert.Equal(t, apperr.KindQuotaExceeded, apperr.KindOf(err))
	assert.Equal(t, 0, f.blobs.Len())
}

func TestUploadIntoAlbum(t *testing.T) {
	ctx := context.Background()
	f := newMediaFixture(t)
	user := testutil.CreateUser(t, f.store, "alice@example.com")
	other := testutil.CreateUser(t, f.store, "bob@example.com")

	album, err := f.albums.Create(ctx, user, "Beach")
	require.NoError(t, err)

	result, err := f.media.Upload(ctx, user, service.UploadInput{
		Filename: "wave.png",
		Data:     pngBytes(t, 20, 20, color.White),
		AlbumID:  &album.ID,
	})
	require.NoError(t, err)

	view, err := f.albums.Get(ctx, user, album.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.FileCount)
	assert.True(t, view.HasThumbnail(result.File.ID))

	_, err = f.media.Upload(ctx, other, service.UploadInput{
		Filename: "x.png",
		Data:     pngBytes(t, 20, 20, color.Black),
		AlbumID:  &album.ID,
	})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	assert.Equal(t, 2, f.blobs.Len())
}

// heicBytes is an ftyp box naming the heic brand, which no registered
// image decoder reads.
func heicBytes() []byte {
	box := []byte{0x00, 0x00, 0x00, 0x18}
	box = append(box, "ftypheic"...)
	box = append(box, 0x00, 0x00, 0x00, 0x00)
	box = append(box, "mif1heic"...)
	return append(box, bytes.Repeat([]byte{0x00, 0x01}, 256)...)
}

func TestUploadUndecodableImageGetsPlaceholder(t *testing.T) {
	ctx := context.Background()
	f := newMediaFixture(t)
	user := testutil.CreateUser(t, f.store, "alice@example.com")

	result, err := f.media.Upload(ctx, user, service.UploadInput{Filename: "IMG_0001.HEIC", Data: heicBytes()})
	require.NoError(t, err)
	assert.Equal(t, "image/heic", result.File.MimeType)
	assert.Equal(t, ".heic", path.Ext(result.File.Filename))
	assert.Equal(t, 2, f.blobs.Len())

	thumb, err := f.media.Thumbnail(ctx, user, result.File.ID)
	require.NoError(t, err)
	assert.Equal(t, media.Placeholder(), thumb)
}

// albumDeletingThumbnailer removes an album while the upload is in flight.
type albumDeletingThumbnailer struct {
	albums  *service.AlbumService
	user    *model.User
	albumID model.ID
}

func (d albumDeletingThumbnailer) Generate(data []byte, mimeType string) ([]byte, error) {
	if err := d.albums.Delete(context.Background(), d.user, d.albumID); err != nil {
		return nil, err
	}
	return media.NewThumbnailer().Generate(data, mimeType)
}

func TestUploadKeepsFileWhenAlbumVanishes(t *testing.T) {
	ctx := context.Background()
	f := newMediaFixture(t)
	user := testutil.CreateUser(t, f.store, "alice@example.com")

	album, err := f.albums.Create(ctx, user, "Gone soon")
	require.NoError(t, err)

	cache, err := storage.NewThumbnailCache(1 << 20)
	require.NoError(t, err)
	t.Cleanup(cache.Close)
	svc := service.NewMediaService(f.store, f.blobs, f.albums, service.MediaOptions{
		Cache:       cache,
		Thumbnailer: albumDeletingThumbnailer{albums: f.albums, user: user, albumID: album.ID},
	})

	result, err := svc.Upload(ctx, user, service.UploadInput{
		Filename: "kept.png",
		Data:     pngBytes(t, 20, 20, color.White),
		AlbumID:  &album.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AlbumError)

	file, err := svc.Get(ctx, user, result.File.ID)
	require.NoError(t, err)
	assert.Empty(t, file.AlbumIDs)
}

func TestDeleteFileCascadesIntoAlbums(t *testing.T) {
	ctx := context.Background()
	f := newMediaFixture(t)
	user := testutil.CreateUser(t, f.store, "alice@example.com")
	stranger := testutil.CreateUser(t, f.store, "eve@example.com")

	older, err := f.media.Upload(ctx, user, service.UploadInput{Filename: "a.png", Data: pngBytes(t, 20, 20, color.White)})
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	newer, err := f.media.Upload(ctx, user, service.UploadInput{Filename: "b.png", Data: pngBytes(t, 20, 20, color.Black)})
	require.NoError(t, err)

	album, err := f.albums.Create(ctx, user, "Both")
	require.NoError(t, err)
	_, err = f.albums.AddFiles(ctx, user, album.ID, []model.ID{older.File.ID, newer.File.ID})
	require.NoError(t, err)

	err = f.media.Delete(ctx, stranger, older.File.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, f.media.Delete(ctx, user, older.File.ID))

	view, err := f.albums.Get(ctx, user, album.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.FileCount)
	assert.True(t, view.HasThumbnail(newer.File.ID))
	assert.Equal(t, 2, f.blobs.Len())

	_, err = f.media.Get(ctx, user, older.File.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestShareFileGrantsCircleRead(t *testing.T) {
	ctx := context.Background()
	f := newMediaFixture(t)
	circles := service.NewCircleService(f.store, nil)
	alice := testutil.CreateUser(t, f.store, "alice@example.com")
	bob := testutil.CreateUser(t, f.store, "bob@example.com")

	circle, err := circles.Create(ctx, alice, "Family", "")
	require.NoError(t, err)
	require.NoError(t, f.store.Circles.AddMember(ctx, circle.ID, bob.ID, false, model.Now()))

	upload, err := f.media.Upload(ctx, alice, service.UploadInput{Filename: "a.png", Data: pngBytes(t, 20, 20, color.White)})
	require.NoError(t, err)

	_, err = f.media.Get(ctx, bob, upload.File.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	shared, err := f.media.Share(ctx, alice, upload.File.ID, []model.ID{circle.ID})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{circle.ID}, shared.CircleIDs)

	got, err := f.media.Get(ctx, bob, upload.File.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CircleIDs, "share list is only shown to the owner")

	_, err = f.media.Thumbnail(ctx, bob, upload.File.ID)
	require.NoError(t, err)

	err = f.media.Delete(ctx, bob, upload.File.ID)
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))
}
