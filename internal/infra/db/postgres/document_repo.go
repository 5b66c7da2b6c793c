package postgres

import (
	"context"
	"database/sql"
	"errors"

	domain "github.com/verifai/verifai/internal/domain/documents"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents (id, org_id, uploader_id, original_name, storage_key, size, mime_type, category, status, text, uploaded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status;
`
	_, err := r.db.ExecContext(ctx, q,
		d.ID, d.OrgID, d.UploaderID, d.OriginalName, d.StorageKey,
		d.Size, d.MimeType, d.Category, d.Status, d.Text, d.UploadedAt,
	)
	return err
}

func (r *DocumentRepository) Get(ctx context.Context, id domain.DocumentID) (*domain.Document, error) {
	const q = `
SELECT id, org_id, uploader_id, original_name, storage_key, size, mime_type, category, status, text, uploaded_at
FROM documents WHERE id=$1;
`
	return scanDocument(r.db.QueryRowContext(ctx, q, id))
}

func (r *DocumentRepository) FindAccessible(ctx context.Context, id domain.DocumentID, userID string) (*domain.Document, error) {
	const q = `
SELECT d.id, d.org_id, d.uploader_id, d.original_name, d.storage_key, d.size,
       d.mime_type, d.category, d.status, d.text, d.uploaded_at
FROM documents d
JOIN org_members m ON m.org_id = d.org_id
WHERE d.id=$1 AND m.user_id=$2;
`
	return scanDocument(r.db.QueryRowContext(ctx, q, id, userID))
}

func scanDocument(row *sql.Row) (*domain.Document, error) {
	var d domain.Document
	if err := row.Scan(
		&d.ID, &d.OrgID, &d.UploaderID, &d.OriginalName, &d.StorageKey,
		&d.Size, &d.MimeType, &d.Category, &d.Status, &d.Text, &d.UploadedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}
