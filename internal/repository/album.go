package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lumia-app/lumia/internal/model"
)

var (
	ErrAlbumNotFound     = errors.New("album not found")
	ErrAlbumFileNotFound = errors.New("file not in album")
)

type AlbumRepository interface {
	Create(ctx context.Context, album *model.Album) error
	ByID(ctx context.Context, id model.ID) (*model.Album, error)
	ListByOwner(ctx context.Context, userID model.ID) ([]*model.Album, error)
	Rename(ctx context.Context, id model.ID, name string, at time.Time) error
	Touch(ctx context.Context, id model.ID, at time.Time) error
	SetThumbnail(ctx context.Context, id model.ID, fileID *model.ID) error
	Delete(ctx context.Context, id model.ID) error

	AddFiles(ctx context.Context, albumID model.ID, fileIDs []model.ID, at time.Time) (int, error)
	RemoveFile(ctx context.Context, albumID, fileID model.ID) error
	HasFile(ctx context.Context, albumID, fileID model.ID) (bool, error)
	OldestFileID(ctx context.Context, albumID model.ID) (*model.ID, error)
	Files(ctx context.Context, albumID model.ID, limit int) ([]*model.File, error)
	IDsContainingFile(ctx context.Context, fileID model.ID) ([]model.ID, error)

	CircleIDs(ctx context.Context, albumID model.ID) ([]model.ID, error)
	SetCircles(ctx context.Context, albumID model.ID, circleIDs []model.ID) error
	CircleIDsForFile(ctx context.Context, fileID model.ID) ([]model.ID, error)
	RemoveCircleEverywhere(ctx context.Context, circleID model.ID) (int64, error)
	SharedWithCircle(ctx context.Context, circleID model.ID, after model.TimelineCursor, limit int) ([]*model.Album, error)
}

type albumRepository struct {
	db Querier
}

func NewAlbumRepository(db Querier) AlbumRepository {
	return &albumRepository{db: db}
}

const albumColumns = `a.id, a.user_id, a.name, a.thumbnail_id, a.created_at, a.updated_at,
	(SELECT COUNT(*) FROM album_files af WHERE af.album_id = a.id) AS file_count`

func (r *albumRepository) Create(ctx context.Context, album *model.Album) error {
	query := `INSERT INTO albums (id, user_id, name, thumbnail_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		album.ID,
		album.UserID,
		album.Name,
		album.ThumbnailID,
		album.CreatedAt,
		album.UpdatedAt,
	)
	return err
}

func (r *albumRepository) ByID(ctx context.Context, id model.ID) (*model.Album, error) {
	album := &model.Album{}
	query := `SELECT ` + albumColumns + ` FROM albums a WHERE a.id = $1`

	err := r.db.GetContext(ctx, album, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrAlbumNotFound
	}
	if err != nil {
		return nil, err
	}

	album.CircleIDs, err = r.CircleIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	return album, nil
}

func (r *albumRepository) ListByOwner(ctx context.Context, userID model.ID) ([]*model.Album, error) {
	var albums []*model.Album
	query := `SELECT ` + albumColumns + ` FROM albums a WHERE a.user_id = $1 ORDER BY a.created_at DESC, a.id DESC`

	err := r.db.SelectContext(ctx, &albums, query, userID)
	if err != nil {
		return nil, err
	}

	return albums, r.loadCircles(ctx, albums)
}

func (r *albumRepository) Rename(ctx context.Context, id model.ID, name string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE albums SET name = $1, updated_at = $2 WHERE id = $3`, name, at, id)
	if err != nil {
		return err
	}
	return expectRows(result, ErrAlbumNotFound)
}

func (r *albumRepository) Touch(ctx context.Context, id model.ID, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE albums SET updated_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	return expectRows(result, ErrAlbumNotFound)
}

// SetThumbnail sets or, with a nil fileID, clears the thumbnail.
func (r *albumRepository) SetThumbnail(ctx context.Context, id model.ID, fileID *model.ID) error {
	result, err := r.db.ExecContext(ctx, `UPDATE albums SET thumbnail_id = $1 WHERE id = $2`, fileID, id)
	if err != nil {
		return err
	}
	return expectRows(result, ErrAlbumNotFound)
}

// Delete removes the album with its membership and share rows.
// Member files are left untouched.
func (r *albumRepository) Delete(ctx context.Context, id model.ID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM album_files WHERE album_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to detach album files: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `DELETE FROM album_circles WHERE album_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to detach album circles: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM albums WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, ErrAlbumNotFound)
}

// AddFiles inserts the memberships that do not exist yet and returns how
// many were new.
func (r *albumRepository) AddFiles(ctx context.Context, albumID model.ID, fileIDs []model.ID, at time.Time) (int, error) {
	query := `INSERT INTO album_files (album_id, file_id, added_at) VALUES ($1, $2, $3)
	          ON CONFLICT (album_id, file_id) DO NOTHING`

	added := 0
	for _, fileID := range fileIDs {
		result, err := r.db.ExecContext(ctx, query, albumID, fileID, at)
		if err != nil {
			return added, fmt.Errorf("failed to add file %s: %w", fileID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return added, err
		}
		added += int(n)
	}

	return added, nil
}

func (r *albumRepository) RemoveFile(ctx context.Context, albumID, fileID model.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM album_files WHERE album_id = $1 AND file_id = $2`, albumID, fileID)
	if err != nil {
		return err
	}
	return expectRows(result, ErrAlbumFileNotFound)
}

func (r *albumRepository) HasFile(ctx context.Context, albumID, fileID model.ID) (bool, error) {
	var n int
	query := `SELECT COUNT(*) FROM album_files WHERE album_id = $1 AND file_id = $2`

	err := r.db.GetContext(ctx, &n, query, albumID, fileID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OldestFileID returns the member with the earliest creation time, or nil
// for an empty album.
func (r *albumRepository) OldestFileID(ctx context.Context, albumID model.ID) (*model.ID, error) {
	var id model.ID
	query := `SELECT f.id FROM files f
	          JOIN album_files af ON af.file_id = f.id
	          WHERE af.album_id = $1
	          ORDER BY f.created_at ASC, f.id ASC
	          LIMIT 1`

	err := r.db.GetContext(ctx, &id, query, albumID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Files returns members newest first. A limit <= 0 returns all of them.
func (r *albumRepository) Files(ctx context.Context, albumID model.ID, limit int) ([]*model.File, error) {
	files := []*model.File{}
	query := `SELECT f.* FROM files f
	          JOIN album_files af ON af.file_id = f.id
	          WHERE af.album_id = $1
	          ORDER BY f.created_at DESC, f.id DESC`

	var err error
	if limit > 0 {
		err = r.db.SelectContext(ctx, &files, query+` LIMIT $2`, albumID, limit)
	} else {
		err = r.db.SelectContext(ctx, &files, query, albumID)
	}
	if err != nil {
		return nil, err
	}

	return files, nil
}

func (r *albumRepository) IDsContainingFile(ctx context.Context, fileID model.ID) ([]model.ID, error) {
	ids := []model.ID{}
	query := `SELECT album_id FROM album_files WHERE file_id = $1 ORDER BY album_id`

	err := r.db.SelectContext(ctx, &ids, query, fileID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *albumRepository) CircleIDs(ctx context.Context, albumID model.ID) ([]model.ID, error) {
	ids := []model.ID{}
	query := `SELECT circle_id FROM album_circles WHERE album_id = $1 ORDER BY circle_id`

	err := r.db.SelectContext(ctx, &ids, query, albumID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SetCircles replaces the album's share list.
func (r *albumRepository) SetCircles(ctx context.Context, albumID model.ID, circleIDs []model.ID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM album_circles WHERE album_id = $1`, albumID)
	if err != nil {
		return fmt.Errorf("failed to clear album shares: %w", err)
	}

	for _, circleID := range circleIDs {
		_, err = r.db.ExecContext(ctx, `INSERT INTO album_circles (album_id, circle_id) VALUES ($1, $2)`, albumID, circleID)
		if err != nil {
			return fmt.Errorf("failed to share album with circle %s: %w", circleID, err)
		}
	}

	return nil
}

// CircleIDsForFile returns the circles any album containing the file is shared with.
func (r *albumRepository) CircleIDsForFile(ctx context.Context, fileID model.ID) ([]model.ID, error) {
	ids := []model.ID{}
	query := `SELECT DISTINCT ac.circle_id FROM album_circles ac
	          JOIN album_files af ON af.album_id = ac.album_id
	          WHERE af.file_id = $1
	          ORDER BY ac.circle_id`

	err := r.db.SelectContext(ctx, &ids, query, fileID)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveCircleEverywhere pulls the circle from every album share list and
// returns the number of albums affected.
func (r *albumRepository) RemoveCircleEverywhere(ctx context.Context, circleID model.ID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM album_circles WHERE circle_id = $1`, circleID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SharedWithCircle returns albums shared with the circle that follow the
// cursor, ordered by last activity then id, most recent first.
func (r *albumRepository) SharedWithCircle(ctx context.Context, circleID model.ID, after model.TimelineCursor, limit int) ([]*model.Album, error) {
	var albums []*model.Album
	query := `SELECT ` + albumColumns + ` FROM albums a
	          JOIN album_circles ac ON ac.album_id = a.id
	          WHERE ac.circle_id = $1
	            AND (a.updated_at < $2 OR (a.updated_at = $2 AND a.id < $3))
	          ORDER BY a.updated_at DESC, a.id DESC
	          LIMIT $4`

	err := r.db.SelectContext(ctx, &albums, query, circleID, after.At, after.ID, limit)
	if err != nil {
		return nil, err
	}

	return albums, r.loadCircles(ctx, albums)
}

func (r *albumRepository) loadCircles(ctx context.Context, albums []*model.Album) error {
	for _, a := range albums {
		ids, err := r.CircleIDs(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("failed to load circles for album %s: %w", a.ID, err)
		}
		a.CircleIDs = ids
	}
	return nil
}
