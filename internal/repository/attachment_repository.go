package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AttachmentRepository persists attachment metadata. Rows cascade away
// with their parent ticket or comment.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.Attachment) error
	GetByID(ctx context.Context, id string) (*domain.Attachment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error)
	ListByComment(ctx context.Context, commentID string) ([]domain.Attachment, error)
	ListKeysForTicketTree(ctx context.Context, ticketID string) ([]string, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.Attachment) error {
	const query = `
        INSERT INTO attachments (id, ticket_id, comment_id, storage_key, file_name, size_bytes, uploader_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING uploaded_at`
	return r.pool.QueryRow(ctx, query,
		attachment.ID,
		attachment.TicketID,
		attachment.CommentID,
		attachment.StorageKey,
		attachment.FileName,
		attachment.SizeBytes,
		attachment.UploaderID,
	).Scan(&attachment.UploadedAt)
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, comment_id, storage_key, file_name, size_bytes, uploader_id, uploaded_at
        FROM attachments WHERE id=$1`
	var attachment domain.Attachment
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.CommentID,
		&attachment.StorageKey,
		&attachment.FileName,
		&attachment.SizeBytes,
		&attachment.UploaderID,
		&attachment.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}

// ListByTicket returns direct ticket attachments oldest-first.
func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, comment_id, storage_key, file_name, size_bytes, uploader_id, uploaded_at
        FROM attachments WHERE ticket_id=$1 ORDER BY uploaded_at ASC`
	return r.list(ctx, query, ticketID)
}

// ListByComment returns comment attachments oldest-first.
func (r *attachmentRepository) ListByComment(ctx context.Context, commentID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, comment_id, storage_key, file_name, size_bytes, uploader_id, uploaded_at
        FROM attachments WHERE comment_id=$1 ORDER BY uploaded_at ASC`
	return r.list(ctx, query, commentID)
}

// ListKeysForTicketTree collects storage keys for the ticket's direct
// attachments and those of its comments, so files can be removed from the
// sink after the cascading row delete.
func (r *attachmentRepository) ListKeysForTicketTree(ctx context.Context, ticketID string) ([]string, error) {
	const query = `
        SELECT storage_key FROM attachments
        WHERE ticket_id=$1
           OR comment_id IN (SELECT id FROM comments WHERE ticket_id=$1)`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *attachmentRepository) list(ctx context.Context, query string, arg any) ([]domain.Attachment, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAttachments(rows)
}

func scanAttachments(rows pgx.Rows) ([]domain.Attachment, error) {
	var result []domain.Attachment
	for rows.Next() {
		var attachment domain.Attachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.CommentID,
			&attachment.StorageKey,
			&attachment.FileName,
			&attachment.SizeBytes,
			&attachment.UploaderID,
			&attachment.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}
