package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lumia-app/lumia/internal/access"
	"github.com/lumia-app/lumia/internal/apperr"
	"github.com/lumia-app/lumia/internal/model"
	"github.com/lumia-app/lumia/internal/repository"
	"github.com/lumia-app/lumia/internal/validation"
)

type AlbumService struct {
	store *repository.Store
}

func NewAlbumService(store *repository.Store) *AlbumService {
	return &AlbumService{store: store}
}

// AlbumView is an album as returned to a reader.
type AlbumView struct {
	*model.Album
	IsOwner bool `json:"isOwner"`
}

type AddFilesResult struct {
	Added int          `json:"added"`
	Album *model.Album `json:"album"`
}

type RemoveFileResult struct {
	ThumbnailChanged bool         `json:"thumbnailChanged"`
	Album            *model.Album `json:"album"`
}

func (s *AlbumService) Create(ctx context.Context, user *model.User, name string) (*model.Album, error) {
	name = validation.NormalizeName(name)
	if err := validation.ValidateName("album", name); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	now := model.Now()
	album := &model.Album{
		ID:        model.NewID(),
		UserID:    user.ID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		CircleIDs: []model.ID{},
	}

	err := s.store.Albums.Create(ctx, album)
	if err != nil {
		return nil, apperr.Internal(err, "failed to create album")
	}

	slog.Info("album created", "album_id", album.ID, "user_id", user.ID)
	return album, nil
}

// List returns the user's own albums, newest first, with file counts.
func (s *AlbumService) List(ctx context.Context, user *model.User) ([]*model.Album, error) {
	albums, err := s.store.Albums.ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list albums")
	}
	if albums == nil {
		albums = []*model.Album{}
	}
	return albums, nil
}

func (s *AlbumService) Get(ctx context.Context, user *model.User, albumID model.ID) (*AlbumView, error) {
	album, err := s.readable(ctx, s.store, user, albumID)
	if err != nil {
		return nil, err
	}
	return &AlbumView{Album: album, IsOwner: album.UserID == user.ID}, nil
}

// Files returns the album's members newest first.
func (s *AlbumService) Files(ctx context.Context, user *model.User, albumID model.ID) ([]*model.File, error) {
	if _, err := s.readable(ctx, s.store, user, albumID); err != nil {
		return nil, err
	}

	files, err := s.store.Albums.Files(ctx, albumID, 0)
	if err != nil {
		return nil, apperr.Internal(err, "failed to load album files")
	}
	return files, nil
}

func (s *AlbumService) Rename(ctx context.Context, user *model.User, albumID model.ID, name string) (*model.Album, error) {
	name = validation.NormalizeName(name)
	if err := validation.ValidateName("album", name); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	var album *model.Album
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if _, err := s.writable(ctx, tx, user, albumID); err != nil {
			return err
		}
		if err := tx.Albums.Rename(ctx, albumID, name, model.Now()); err != nil {
			return apperr.Internal(err, "failed to rename album")
		}

		var err error
		album, err = s.load(ctx, tx, albumID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return album, nil
}

// AddFiles adds files owned by the album's owner. Files already in the
// album are skipped. An album without a thumbnail gets its oldest member.
func (s *AlbumService) AddFiles(ctx context.Context, user *model.User, albumID model.ID, fileIDs []model.ID) (*AddFilesResult, error) {
	fileIDs = uniqueIDs(fileIDs)
	if len(fileIDs) == 0 {
		return nil, apperr.Validation("mediaIds must be a non-empty array")
	}

	result := &AddFilesResult{}
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		album, err := s.writable(ctx, tx, user, albumID)
		if err != nil {
			return err
		}

		owned, err := tx.Files.OwnedIDs(ctx, album.UserID, fileIDs)
		if err != nil {
			return apperr.Internal(err, "failed to check file ownership")
		}
		if len(owned) != len(fileIDs) {
			return apperr.NotFound("one or more files not found")
		}

		now := model.Now()
		result.Added, err = tx.Albums.AddFiles(ctx, albumID, fileIDs, now)
		if err != nil {
			return apperr.Internal(err, "failed to add files to album")
		}

		if result.Added > 0 {
			if err := tx.Albums.Touch(ctx, albumID, now); err != nil {
				return apperr.Internal(err, "failed to update album")
			}
		}

		if album.ThumbnailID == nil {
			if _, err := assignOldestThumbnail(ctx, tx, albumID); err != nil {
				return err
			}
		}

		result.Album, err = s.load(ctx, tx, albumID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveFile detaches a file from the album. Removing the thumbnail moves
// it to the oldest remaining member or clears it.
func (s *AlbumService) RemoveFile(ctx context.Context, user *model.User, albumID, fileID model.ID) (*RemoveFileResult, error) {
	result := &RemoveFileResult{}
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		album, err := s.writable(ctx, tx, user, albumID)
		if err != nil {
			return err
		}

		err = tx.Albums.RemoveFile(ctx, albumID, fileID)
		if errors.Is(err, repository.ErrAlbumFileNotFound) {
			return apperr.NotFound("file not found in album")
		}
		if err != nil {
			return apperr.Internal(err, "failed to remove file from album")
		}

		if album.HasThumbnail(fileID) {
			if _, err := assignOldestThumbnail(ctx, tx, albumID); err != nil {
				return err
			}
			result.ThumbnailChanged = true
		}

		if err := tx.Albums.Touch(ctx, albumID, model.Now()); err != nil {
			return apperr.Internal(err, "failed to update album")
		}

		result.Album, err = s.load(ctx, tx, albumID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *AlbumService) SetThumbnail(ctx context.Context, user *model.User, albumID, fileID model.ID) (*model.Album, error) {
	var album *model.Album
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if _, err := s.writable(ctx, tx, user, albumID); err != nil {
			return err
		}

		member, err := tx.Albums.HasFile(ctx, albumID, fileID)
		if err != nil {
			return apperr.Internal(err, "failed to check album membership")
		}
		if !member {
			return apperr.Validation("thumbnail must be a file in this album")
		}

		if err := tx.Albums.SetThumbnail(ctx, albumID, &fileID); err != nil {
			return apperr.Internal(err, "failed to set thumbnail")
		}

		album, err = s.load(ctx, tx, albumID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return album, nil
}

// Share replaces the album's circle list. The acting user must belong to
// every circle in the new list.
func (s *AlbumService) Share(ctx context.Context, user *model.User, albumID model.ID, circleIDs []model.ID) (*model.Album, error) {
	circleIDs = uniqueIDs(circleIDs)

	var album *model.Album
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if _, err := s.writable(ctx, tx, user, albumID); err != nil {
			return err
		}

		d, err := access.For(tx).CanShareWith(ctx, user, circleIDs)
		if err != nil {
			return apperr.Internal(err, "failed to check circle membership")
		}
		if err := d.Err(false, "circle"); err != nil {
			return err
		}

		if err := tx.Albums.SetCircles(ctx, albumID, circleIDs); err != nil {
			return apperr.Internal(err, "failed to share album")
		}
		if err := tx.Albums.Touch(ctx, albumID, model.Now()); err != nil {
			return apperr.Internal(err, "failed to update album")
		}

		album, err = s.load(ctx, tx, albumID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("album sharing updated", "album_id", albumID, "circles", len(circleIDs))
	return album, nil
}

// Delete removes the album. Member files are kept.
func (s *AlbumService) Delete(ctx context.Context, user *model.User, albumID model.ID) error {
	err := s.store.WithinTx(ctx, func(tx *repository.Store) error {
		if _, err := s.writable(ctx, tx, user, albumID); err != nil {
			return err
		}
		if err := tx.Albums.Delete(ctx, albumID); err != nil {
			return apperr.Internal(err, "failed to delete album")
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("album deleted", "album_id", albumID, "user_id", user.ID)
	return nil
}

func (s *AlbumService) load(ctx context.Context, store *repository.Store, albumID model.ID) (*model.Album, error) {
	album, err := store.Albums.ByID(ctx, albumID)
	if errors.Is(err, repository.ErrAlbumNotFound) {
		return nil, apperr.NotFound("album not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "failed to load album")
	}
	return album, nil
}

func (s *AlbumService) readable(ctx context.Context, store *repository.Store, user *model.User, albumID model.ID) (*model.Album, error) {
	album, err := s.load(ctx, store, albumID)
	if err != nil {
		return nil, err
	}

	d, err := access.For(store).CanReadAlbum(ctx, user, album)
	if err != nil {
		return nil, apperr.Internal(err, "failed to check album access")
	}
	if err := d.Err(true, "album"); err != nil {
		return nil, err
	}
	return album, nil
}

// writable hides albums the user cannot see and forbids changes to albums
// they can only see through a circle.
func (s *AlbumService) writable(ctx context.Context, store *repository.Store, user *model.User, albumID model.ID) (*model.Album, error) {
	album, err := s.readable(ctx, store, user, albumID)
	if err != nil {
		return nil, err
	}
	if err := access.CanWriteAlbum(user, album).Err(false, "album"); err != nil {
		return nil, err
	}
	return album, nil
}

// assignOldestThumbnail points the thumbnail at the oldest member, or
// clears it when the album is empty.
func assignOldestThumbnail(ctx context.Context, tx *repository.Store, albumID model.ID) (*model.ID, error) {
	oldest, err := tx.Albums.OldestFileID(ctx, albumID)
	if err != nil {
		return nil, apperr.Internal(err, "failed to select thumbnail")
	}
	if err := tx.Albums.SetThumbnail(ctx, albumID, oldest); err != nil {
		return nil, apperr.Internal(err, "failed to set thumbnail")
	}
	return oldest, nil
}
