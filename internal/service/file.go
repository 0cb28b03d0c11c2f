package service

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lumia-app/lumia/internal/access"
	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/media"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
	"github.com/lumia-app/lumia/internal/storage"
	"github.com/lumia-app/lumia/internal/validation"
	"golang.org/x/crypto/blake2b"
)

const (
	defaultFileListLimit = 50
	maxFileListLimit     = 200
)

// MediaService owns uploaded files: their stored bytes, thumbnails and
// database records.
type MediaService struct {
	store       *repository.Store
	blobs       storage.Storage
	thumbs      *storage.ThumbnailCache
	extractor   media.Extractor
	thumbnailer media.Thumbnailer
	transcoder  media.Transcoder
	constraints validation.MediaConstraints
	albums      *AlbumService
}

type MediaOptions struct {
	Cache       *storage.ThumbnailCache // optional
	Extractor   media.Extractor
	Thumbnailer media.Thumbnailer
	Transcoder  media.Transcoder
	Constraints validation.MediaConstraints
}

func NewMediaService(store *repository.Store, blobs storage.Storage, albums *AlbumService, opts MediaOptions) *MediaService {
	if opts.Extractor == nil {
		opts.Extractor = media.NewExtractor()
	}
	if opts.Thumbnailer == nil {
		opts.Thumbnailer = media.NewThumbnailer()
	}
	if opts.Transcoder == nil {
		opts.Transcoder = media.NewTranscoder()
	}
	if opts.Constraints.MaxSize == 0 {
		opts.Constraints = validation.DefaultMediaConstraints
	}

	return &MediaService{
		store:       store,
		blobs:       blobs,
		thumbs:      opts.Cache,
		extractor:   opts.Extractor,
		thumbnailer: opts.Thumbnailer,
		transcoder:  opts.Transcoder,
		constraints: opts.Constraints,
		albums:      albums,
	}
}

type UploadInput struct {
	Filename string
	Data     []byte
	AlbumID  *model.ID
}

// Upload stores a new photo or video for user. Identical bytes uploaded
// again by the same owner return the existing file marked as duplicate.
// Bytes are written before the record so a record never lacks its blobs.
func (s *MediaService) Upload(ctx context.Context, user *model.User, in UploadInput) (*model.UploadResult, error) {
	mimeType, err := validation.ValidateMedia(head(in.Data), in.Filename, int64(len(in.Data)), s.constraints)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	if in.AlbumID != nil {
		// Fail before storing anything when the album is not writable.
		if _, err := s.albums.writable(ctx, s.store, user, *in.AlbumID); err != nil {
			return nil, err
		}
	}

	hash := contentHash(in.Data)

	existing, err := s.store.Files.ByOwnerHash(ctx, user.ID, hash)
	if err == nil {
		return s.duplicate(ctx, user, existing, in.AlbumID)
	}
	if !errors.Is(err, repository.ErrFileNotFound) {
		return nil, apperr.Internal(err, "failed to check for duplicate")
	}

	policy := user.SubscriptionTier.Policy()
	usage, err := s.store.Files.Usage(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load storage usage")
	}
	usage.Limit = policy.StorageLimit
	if !usage.Allows(int64(len(in.Data))) {
		return nil, apperr.QuotaExceeded("storage quota exceeded: %d of %d bytes used", usage.TotalSize, usage.Limit)
	}

	meta := s.extractor.Extract(in.Data, mimeType)
	now := model.Now()
	createdAt := now
	if meta.CaptureTime != nil {
		createdAt = meta.CaptureTime.UTC().Truncate(time.Microsecond)
	}

	rendition, err := s.transcoder.Process(in.Data, mimeType, policy)
	if err != nil {
		return nil, apperr.Internal(err, "failed to process media")
	}

	thumb, err := s.thumbnailer.Generate(rendition.Data, rendition.MimeType)
	if err != nil {
		slog.Warn("thumbnail generation failed, using placeholder", "user_id", user.ID, "mime_type", rendition.MimeType, "error", err)
		thumb = media.Placeholder()
	}

	file := &model.File{
		ID:            model.NewIDAt(createdAt),
		UserID:        user.ID,
		ContentHash:   hash,
		OriginalName:  in.Filename,
		Filename:      fmt.Sprintf("%s/%s%s", user.ID, uuid.New().String(), rendition.Ext),
		ThumbnailPath: fmt.Sprintf("%s/thumbs/%s.jpg", user.ID, uuid.New().String()),
		MimeType:      rendition.MimeType,
		Size:          int64(len(rendition.Data)),
		OriginalSize:  int64(len(in.Data)),
		Width:         rendition.Width,
		Height:        rendition.Height,
		CreatedAt:     createdAt,
		UploadedAt:    now,
	}
	if file.Width == 0 {
		file.Width, file.Height = meta.Width, meta.Height
	}

	if err := s.blobs.Save(ctx, file.Filename, bytes.NewReader(rendition.Data), file.MimeType); err != nil {
		return nil, apperr.Internal(err, "failed to store file")
	}
	if err := s.blobs.Save(ctx, file.ThumbnailPath, bytes.NewReader(thumb), media.ThumbnailMime); err != nil {
		s.deleteBlobs(ctx, file)
		return nil, apperr.Internal(err, "failed to store thumbnail")
	}

	err = s.store.Files.Create(ctx, file)
	if errors.Is(err, repository.ErrDuplicateFile) {
		// A concurrent upload of the same bytes won the insert.
		s.deleteBlobs(ctx, file)
		existing, err := s.store.Files.ByOwnerHash(ctx, user.ID, hash)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load duplicate file")
		}
		return s.duplicate(ctx, user, existing, in.AlbumID)
	}
	if err != nil {
		s.deleteBlobs(ctx, file)
		return nil, apperr.Internal(err, "failed to create file record")
	}

	slog.Info("file uploaded", "file_id", file.ID, "user_id", user.ID, "mime_type", file.MimeType, "size", file.Size)

	result := &model.UploadResult{File: file}
	s.addToAlbum(ctx, user, result, in.AlbumID)
	return result, nil
}

func (s *MediaService) duplicate(ctx context.Context, user *model.User, file *model.File, albumID *model.ID) (*model.UploadResult, error) {
	slog.Info("duplicate upload", "file_id", file.ID, "user_id", user.ID)

	result := &model.UploadResult{File: file, Duplicate: true}
	s.addToAlbum(ctx, user, result, albumID)
	return result, nil
}

// addToAlbum files a stored upload into the requested album. The file is
// kept when this fails; AlbumError tells the client it was not added.
func (s *MediaService) addToAlbum(ctx context.Context, user *model.User, result *model.UploadResult, albumID *model.ID) {
	if albumID == nil {
		return
	}
	if _, err := s.albums.AddFiles(ctx, user, *albumID, []model.ID{result.File.ID}); err != nil {
		slog.Warn("uploaded file not added to album", "file_id", result.File.ID, "album_id", *albumID, "user_id", user.ID, "error", err)
		result.AlbumError = err.Error()
	}
}

// List returns the user's own files by capture time, newest first.
func (s *MediaService) List(ctx context.Context, user *model.User, before *time.Time, limit int) ([]*model.File, error) {
	if limit <= 0 {
		limit = defaultFileListLimit
	}
	if limit > maxFileListLimit {
		limit = maxFileListLimit
	}

	files, err := s.store.Files.ListByOwner(ctx, user.ID, before, limit)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list files")
	}
	if files == nil {
		files = []*model.File{}
	}
	return files, nil
}

// Get returns file metadata. The owner also sees where it is shared.
func (s *MediaService) Get(ctx context.Context, user *model.User, fileID model.ID) (*model.File, error) {
	file, err := s.readable(ctx, user, fileID)
	if err != nil {
		return nil, err
	}

	if file.UserID == user.ID {
		file.CircleIDs, err = s.store.Files.CircleIDs(ctx, file.ID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load file circles")
		}
		file.AlbumIDs, err = s.store.Albums.IDsContainingFile(ctx, file.ID)
		if err != nil {
			return nil, apperr.Internal(err, "failed to load file albums")
		}
	}
	return file, nil
}

// Content opens the stored bytes. The caller closes the reader.
func (s *MediaService) Content(ctx context.Context, user *model.User, fileID model.ID) (*model.File, io.ReadCloser, error) {
	file, err := s.readable(ctx, user, fileID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.blobs.Open(ctx, file.Filename)
	if errors.Is(err, storage.ErrObjectNotFound) {
		slog.Error("file record without stored bytes", "file_id", file.ID, "key", file.Filename)
		return nil, nil, apperr.NotFound("file content not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal(err, "failed to open file")
	}
	return file, rc, nil
}

func (s *MediaService) Thumbnail(ctx context.Context, user *model.User, fileID model.ID) ([]byte, error) {
	file, err := s.readable(ctx, user, fileID)
	if err != nil {
		return nil, err
	}

	if s.thumbs != nil {
		if data, ok := s.thumbs.Get(file.ID.String()); ok {
			return data, nil
		}
	}

	data, err := storage.ReadAll(ctx, s.blobs, file.ThumbnailPath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, apperr.NotFound("thumbnail not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to read thumbnail")
	}

	if s.thumbs != nil {
		s.thumbs.Set(file.ID.String(), data)
	}
	return data, nil
}

// Share replaces the circles the file is shared with directly.
func (s *MediaService) Share(ctx context.Context, user *model.User, fileID model.ID, circleIDs []model.ID) (*model.File, error) {
	circleIDs = uniqueIDs(circleIDs)

	var file *model.File
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		var err error
		file, err = s.writable(ctx, tx, user, fileID)
		if err != nil {
			return err
		}

		d, err := access.For(tx).CanShareWith(ctx, user, circleIDs)
		if err != nil {
			return apperr.Internal(err, "failed to check circle membership")
		}
		if err := d.Err(false, "circle"); err != nil {
			return err
		}

		if err := tx.Files.SetCircles(ctx, fileID, circleIDs); err != nil {
			return apperr.Internal(err, "failed to share file")
		}
		file.CircleIDs, err = tx.Files.CircleIDs(ctx, fileID)
		if err != nil {
			return apperr.Internal(err, "failed to load file circles")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}

// Delete removes the file from every album (moving thumbnails along) and
// every share list, then deletes its record and stored bytes.
func (s *MediaService) Delete(ctx context.Context, user *model.User, fileID model.ID) error {
	var file *model.File
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		var err error
		file, err = s.writable(ctx, tx, user, fileID)
		if err != nil {
			return err
		}

		albumIDs, err := tx.Albums.IDsContainingFile(ctx, fileID)
		if err != nil {
			return apperr.Internal(err, "failed to load albums for file")
		}

		now := model.Now()
		for _, albumID := range albumIDs {
			album, err := tx.Albums.ByID(ctx, albumID)
			if err != nil {
				return apperr.Internal(err, "failed to load album")
			}
			if err := tx.Albums.RemoveFile(ctx, albumID, fileID); err != nil {
				return apperr.Internal(err, "failed to remove file from album")
			}
			if album.HasThumbnail(fileID) {
				if _, err := assignOldestThumbnail(ctx, tx, albumID); err != nil {
					return err
				}
			}
			if err := tx.Albums.Touch(ctx, albumID, now); err != nil {
				return apperr.Internal(err, "failed to update album")
			}
		}

		if err := tx.Files.Delete(ctx, fileID); err != nil {
			return apperr.Internal(err, "failed to delete file record")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.deleteBlobs(ctx, file)
	if s.thumbs != nil {
		s.thumbs.Delete(file.ID.String())
	}

	slog.Info("file deleted", "file_id", fileID, "user_id", user.ID)
	return nil
}

// Quota reports the user's storage usage against their tier limit.
func (s *MediaService) Quota(ctx context.Context, user *model.User) (model.Quota, error) {
	q, err := s.store.Files.Usage(ctx, user.ID)
	if err != nil {
		return model.Quota{}, apperr.Internal(err, "failed to load storage usage")
	}

	policy := user.SubscriptionTier.Policy()
	q.Limit = policy.StorageLimit
	q.Tier = policy.Tier
	return q, nil
}

func (s *MediaService) readable(ctx context.Context, user *model.User, fileID model.ID) (*model.File, error) {
	return readableFile(ctx, s.store, user, fileID)
}

func (s *MediaService) writable(ctx context.Context, store *repository.Store, user *model.User, fileID model.ID) (*model.File, error) {
	file, err := readableFile(ctx, store, user, fileID)
	if err != nil {
		return nil, err
	}
	if err := access.CanWriteFile(user, file).Err(false, "file"); err != nil {
		return nil, err
	}
	return file, nil
}

// deleteBlobs is best effort; orphaned objects are logged.
func (s *MediaService) deleteBlobs(ctx context.Context, file *model.File) {
	for _, key := range []string{file.Filename, file.ThumbnailPath} {
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil {
			slog.Error("failed to delete file from storage", "error", err, "key", key, "file_id", file.ID)
		}
	}
}

func readableFile(ctx context.Context, store *repository.Store, user *model.User, fileID model.ID) (*model.File, error) {
	file, err := store.Files.ByID(ctx, fileID)
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil, apperr.NotFound("file not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load file")
	}

	d, err := access.For(store).CanReadFile(ctx, user, file)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check file access")
	}
	if err := d.Err(true, "file"); err != nil {
		return nil, err
	}
	return file, nil
}

// contentHash is the hex BLAKE2b-256 digest of data.
func contentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func head(data []byte) []byte {
	if len(data) > 512 {
		return data[:512]
	}
	return data
}
