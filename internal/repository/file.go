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
	ErrFileNotFound  = errors.New("file not found")
	ErrDuplicateFile = errors.New("file with this content already exists")
)

type FileRepository interface {
	Create(ctx context.Context, file *model.File) error
	ByID(ctx context.Context, id model.ID) (*model.File, error)
	ByOwnerHash(ctx context.Context, userID model.ID, hash string) (*model.File, error)
	ListByOwner(ctx context.Context, userID model.ID, before *time.Time, limit int) ([]*model.File, error)
	OwnedIDs(ctx context.Context, userID model.ID, ids []model.ID) ([]model.ID, error)
	Usage(ctx context.Context, userID model.ID) (model.Quota, error)
	Delete(ctx context.Context, id model.ID) error

	CircleIDs(ctx context.Context, fileID model.ID) ([]model.ID, error)
	SetCircles(ctx context.Context, fileID model.ID, circleIDs []model.ID) error
	RemoveCircleEverywhere(ctx context.Context, circleID model.ID) (int64, error)
	SharedWithCircle(ctx context.Context, circleID model.ID, after model.TimelineCursor, limit int) ([]*model.File, error)
}

type fileRepository struct {
	db Querier
}

func NewFileRepository(db Querier) FileRepository {
	return &fileRepository{db: db}
}

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	query := `INSERT INTO files (id, user_id, content_hash, original_name, filename, thumbnail_path, mime_type, size, original_size, width, height, created_at, uploaded_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		file.ID,
		file.UserID,
		file.ContentHash,
		file.OriginalName,
		file.Filename,
		file.ThumbnailPath,
		file.MimeType,
		file.Size,
		file.OriginalSize,
		file.Width,
		file.Height,
		file.CreatedAt,
		file.UploadedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateFile
		}
		return err
	}

	return nil
}

func (r *fileRepository) ByID(ctx context.Context, id model.ID) (*model.File, error) {
	file := &model.File{}
	query := `SELECT * FROM files WHERE id = $1`

	err := r.db.GetContext(ctx, file, query, id)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}

	return file, nil
}

func (r *fileRepository) ByOwnerHash(ctx context.Context, userID model.ID, hash string) (*model.File, error) {
	file := &model.File{}
	query := `SELECT * FROM files WHERE user_id = $1 AND content_hash = $2`

	err := r.db.GetContext(ctx, file, query, userID, hash)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}

	return file, nil
}

// ListByOwner returns the owner's files newest first, optionally older than before.
func (r *fileRepository) ListByOwner(ctx context.Context, userID model.ID, before *time.Time, limit int) ([]*model.File, error) {
	var files []*model.File
	var err error

	if before != nil {
		query := `SELECT * FROM files WHERE user_id = $1 AND created_at < $2 ORDER BY created_at DESC, id DESC LIMIT $3`
		err = r.db.SelectContext(ctx, &files, query, userID, *before, limit)
	} else {
		query := `SELECT * FROM files WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
		err = r.db.SelectContext(ctx, &files, query, userID, limit)
	}
	if err != nil {
		return nil, err
	}

	return files, nil
}

// OwnedIDs returns the subset of ids that exist and belong to userID.
func (r *fileRepository) OwnedIDs(ctx context.Context, userID model.ID, ids []model.ID) ([]model.ID, error) {
	var owned []model.ID
	if len(ids) == 0 {
		return owned, nil
	}

	query, args, err := in(r.db, `SELECT id FROM files WHERE user_id = ? AND id IN (?)`, userID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	err = r.db.SelectContext(ctx, &owned, query, args...)
	if err != nil {
		return nil, err
	}

	return owned, nil
}

func (r *fileRepository) Usage(ctx context.Context, userID model.ID) (model.Quota, error) {
	var q model.Quota
	query := `SELECT COALESCE(SUM(size), 0) AS total_size, COUNT(*) AS total_files FROM files WHERE user_id = $1`

	err := r.db.GetContext(ctx, &q, query, userID)
	if err != nil {
		return model.Quota{}, err
	}

	return q, nil
}

// Delete removes the file row together with its share rows.
// Album membership is handled by the album repository.
func (r *fileRepository) Delete(ctx context.Context, id model.ID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM file_circles WHERE file_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete file shares: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectRows(result, ErrFileNotFound)
}

func (r *fileRepository) CircleIDs(ctx context.Context, fileID model.ID) ([]model.ID, error) {
	ids := []model.ID{}
	query := `SELECT circle_id FROM file_circles WHERE file_id = $1 ORDER BY circle_id`

	err := r.db.SelectContext(ctx, &ids, query, fileID)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// SetCircles replaces the file's direct share list.
func (r *fileRepository) SetCircles(ctx context.Context, fileID model.ID, circleIDs []model.ID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM file_circles WHERE file_id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("failed to clear file shares: %w", err)
	}

	for _, circleID := range circleIDs {
		_, err = r.db.ExecContext(ctx, `INSERT INTO file_circles (file_id, circle_id) VALUES ($1, $2)`, fileID, circleID)
		if err != nil {
			return fmt.Errorf("failed to share file with circle %s: %w", circleID, err)
		}
	}

	return nil
}

func (r *fileRepository) RemoveCircleEverywhere(ctx context.Context, circleID model.ID) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM file_circles WHERE circle_id = $1`, circleID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SharedWithCircle returns files shared directly with the circle that
// follow the cursor, ordered by upload time then id, newest first.
func (r *fileRepository) SharedWithCircle(ctx context.Context, circleID model.ID, after model.TimelineCursor, limit int) ([]*model.File, error) {
	var files []*model.File
	query := `SELECT f.* FROM files f
	          JOIN file_circles fc ON fc.file_id = f.id
	          WHERE fc.circle_id = $1
	            AND (f.uploaded_at < $2 OR (f.uploaded_at = $2 AND f.id < $3))
	          ORDER BY f.uploaded_at DESC, f.id DESC
	          LIMIT $4`

	err := r.db.SelectContext(ctx, &files, query, circleID, after.At, after.ID, limit)
	if err != nil {
		return nil, err
	}

	return files, nil
}
