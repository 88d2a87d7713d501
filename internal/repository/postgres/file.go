package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/db"
	"github.com/lalith-99/gridbase/internal/models"
	"github.com/lalith-99/gridbase/internal/repository"
)

const maxFileSize = 10 << 20

// allowedMimeTypes is the upload allow-list. Everything else is rejected
// before touching the database.
var allowedMimeTypes = map[string]bool{
	"image/jpeg":         true,
	"image/png":          true,
	"image/gif":          true,
	"image/webp":         true,
	"application/pdf":    true,
	"text/plain":         true,
	"text/csv":           true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

const fileInfoColumns = `id, original_name, file_size, mime_type, file_hash, uploaded_at`

// FileStoreDB stores file payloads as bytea inside the tenant schema.
// Records hold weak {file_id} references; resolution of an unknown id
// yields nil, nil so stale references never break reads.
type FileStoreDB struct{}

func NewFileStore() *FileStoreDB { return &FileStoreDB{} }

func scanFileInfo(row pgx.Row) (*models.FileInfo, error) {
	var f models.FileInfo
	err := row.Scan(&f.ID, &f.Name, &f.Size, &f.Mime, &f.Hash, &f.UploadedAt)
	if err != nil {
		return nil, err
	}
	f.DownloadURL = "/api/files/" + f.ID.String() + "/download"
	f.ViewURL = "/api/files/" + f.ID.String() + "/view"
	return &f, nil
}

func (s *FileStoreDB) GetFileInfo(ctx context.Context, sess *db.Session, id uuid.UUID) (*models.FileInfo, error) {
	query := `SELECT ` + fileInfoColumns + ` FROM files WHERE id = $1 AND is_active`

	f, err := scanFileInfo(sess.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get file info: %w", err)
	}
	return f, nil
}

func (s *FileStoreDB) Upload(ctx context.Context, sess *db.Session, name, mime string, data []byte, uploadedBy uuid.UUID) (*models.FileInfo, error) {
	if name == "" {
		return nil, apperr.Validation("name", "required")
	}
	if len(data) == 0 {
		return nil, apperr.Validation("file", "empty")
	}
	if len(data) > maxFileSize {
		return nil, apperr.Validation("file", "exceeds the 10MB size limit")
	}
	if !allowedMimeTypes[mime] {
		return nil, apperr.Validation("mime_type", fmt.Sprintf("type %q not allowed", mime))
	}

	sum := sha256.Sum256(data)
	id := uuid.New()
	query := `
		INSERT INTO files (id, original_name, file_data, file_size, mime_type, file_hash, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + fileInfoColumns

	f, err := scanFileInfo(sess.QueryRow(ctx, query,
		id, name, data, len(data), mime, hex.EncodeToString(sum[:]), uploadedBy))
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	return f, nil
}

// Delete soft-deletes; the payload stays for audit until cleanup. Only the
// uploader may delete their file.
func (s *FileStoreDB) Delete(ctx context.Context, sess *db.Session, id uuid.UUID, uploadedBy uuid.UUID) error {
	tag, err := sess.Exec(ctx, `
		UPDATE files SET is_active = false
		WHERE id = $1 AND uploaded_by = $2 AND is_active`, id, uploadedBy)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("file")
	}
	return nil
}

func (s *FileStoreDB) ListByUser(ctx context.Context, sess *db.Session, userID uuid.UUID, page, limit int) ([]models.FileInfo, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	query := `
		SELECT ` + fileInfoColumns + `
		FROM files
		WHERE uploaded_by = $1 AND is_active
		ORDER BY uploaded_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := sess.Query(ctx, query, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	files := make([]models.FileInfo, 0)
	for rows.Next() {
		f, err := scanFileInfo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan file info: %w", err)
		}
		files = append(files, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate files: %w", err)
	}

	var total int
	err = sess.QueryRow(ctx,
		`SELECT COUNT(*) FROM files WHERE uploaded_by = $1 AND is_active`, userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count files: %w", err)
	}
	return files, total, nil
}

// GetFileData returns the stored payload for download and inline view.
func (s *FileStoreDB) GetFileData(ctx context.Context, sess *db.Session, id uuid.UUID) (*models.FileInfo, []byte, error) {
	var f models.FileInfo
	var data []byte
	err := sess.QueryRow(ctx, `
		SELECT id, original_name, file_data, file_size, mime_type, file_hash, uploaded_at
		FROM files WHERE id = $1 AND is_active`, id,
	).Scan(&f.ID, &f.Name, &data, &f.Size, &f.Mime, &f.Hash, &f.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperr.NotFound("file")
		}
		return nil, nil, fmt.Errorf("get file data: %w", err)
	}
	return &f, data, nil
}

var _ repository.FileStore = (*FileStoreDB)(nil)
