package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/models"
)

var requestColumns = []string{
	"r.id", "r.document_id", "r.from_user_id", "r.to_user_id", "r.status", "r.created_at", "r.updated_at",
}

type RequestRepo struct {
	db      database.DBTX
	dialect database.Dialect
}

func scanRequest(row rowScanner, extra ...any) (*models.ShareRequest, error) {
	req := &models.ShareRequest{}
	dest := []any{&req.ID, &req.DocumentID, &req.FromUserID, &req.ToUserID, &req.Status, &req.CreatedAt, &req.UpdatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return req, nil
}

// Create inserts req and sets req.ID. A second pending request for the same
// (document, requester) fails with ErrDuplicate.
func (r *RequestRepo) Create(ctx context.Context, req *models.ShareRequest) error {
	b := database.Insert(tableRequests)
	if req.ID != 0 {
		b.Set("id", req.ID)
	}
	b.Set("document_id", req.DocumentID).
		Set("from_user_id", req.FromUserID).
		Set("to_user_id", req.ToUserID).
		Set("status", string(req.Status)).
		Set("created_at", req.CreatedAt).
		Set("updated_at", req.UpdatedAt).
		Returning("id")

	if err := b.QueryRow(ctx, r.db, r.dialect).Scan(&req.ID); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		if database.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert share request: %w", err)
	}
	return nil
}

func (r *RequestRepo) GetByID(ctx context.Context, id int64) (*models.ShareRequest, error) {
	req, err := scanRequest(database.Select(tableRequests+" r", requestColumns...).
		Where("r.id = ?", id).
		QueryRow(ctx, r.db, r.dialect))
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

// FindPending returns the pending request of fromUserID on documentID.
func (r *RequestRepo) FindPending(ctx context.Context, documentID, fromUserID int64) (*models.ShareRequest, error) {
	req, err := scanRequest(database.Select(tableRequests+" r", requestColumns...).
		Where("r.document_id = ?", documentID).
		Where("r.from_user_id = ?", fromUserID).
		Where("r.status = ?", string(models.StatusPending)).
		QueryRow(ctx, r.db, r.dialect))
	if err != nil {
		return nil, notFound(err)
	}
	return req, nil
}

// Transition moves request id from one status to another. It reports false when
// the request was no longer in status from.
func (r *RequestRepo) Transition(ctx context.Context, id int64, from, to models.RequestStatus, at time.Time) (bool, error) {
	res, err := database.Update(tableRequests).
		Set("status", string(to)).
		Set("updated_at", at).
		Where("id = ?", id).
		Where("status = ?", string(from)).
		Exec(ctx, r.db, r.dialect)
	if err != nil {
		return false, fmt.Errorf("update share request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// PendingForOwner is a pending request joined with display fields.
type PendingForOwner struct {
	*models.ShareRequest
	DocumentTitle string
	Requester     models.PublicUser
}

// ListPendingForOwner returns pending requests on documents ownerID owns. Rows
// whose document or requester is missing are dropped by the inner joins.
func (r *RequestRepo) ListPendingForOwner(ctx context.Context, ownerID int64) ([]PendingForOwner, error) {
	cols := append(append([]string{}, requestColumns...), "d.title", "u.id", "u.username", "u.public_key")
	rows, err := database.Select(tableRequests+" r", cols...).
		Join("INNER", tableDocs+" d", "d.id = r.document_id").
		Join("INNER", tableUsers+" u", "u.id = r.from_user_id").
		Where("d.owner_id = ?", ownerID).
		Where("r.status = ?", string(models.StatusPending)).
		OrderBy("r.id").
		Query(ctx, r.db, r.dialect)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	defer rows.Close()

	var out []PendingForOwner
	for rows.Next() {
		var p PendingForOwner
		req, err := scanRequest(rows, &p.DocumentTitle, &p.Requester.ID, &p.Requester.Username, &p.Requester.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("scan pending request: %w", err)
		}
		p.ShareRequest = req
		out = append(out, p)
	}
	return out, rows.Err()
}

// OutgoingRequest is a request joined with its document title.
type OutgoingRequest struct {
	*models.ShareRequest
	DocumentTitle string
}

func (r *RequestRepo) ListByRequester(ctx context.Context, fromUserID int64) ([]OutgoingRequest, error) {
	cols := append(append([]string{}, requestColumns...), "d.title")
	rows, err := database.Select(tableRequests+" r", cols...).
		Join("INNER", tableDocs+" d", "d.id = r.document_id").
		Where("r.from_user_id = ?", fromUserID).
		OrderBy("r.id").
		Query(ctx, r.db, r.dialect)
	if err != nil {
		return nil, fmt.Errorf("list outgoing requests: %w", err)
	}
	defer rows.Close()

	var out []OutgoingRequest
	for rows.Next() {
		var o OutgoingRequest
		req, err := scanRequest(rows, &o.DocumentTitle)
		if err != nil {
			return nil, fmt.Errorf("scan outgoing request: %w", err)
		}
		o.ShareRequest = req
		out = append(out, o)
	}
	return out, rows.Err()
}

// ListPendingAlreadyGranted returns pending requests whose requester already
// holds a grant on the document.
func (r *RequestRepo) ListPendingAlreadyGranted(ctx context.Context) ([]*models.ShareRequest, error) {
	rows, err := database.Select(tableRequests+" r", requestColumns...).
		Join("INNER", tableGrants+" s", "s.document_id = r.document_id AND s.shared_with_user_id = r.from_user_id").
		Where("r.status = ?", string(models.StatusPending)).
		OrderBy("r.id").
		Query(ctx, r.db, r.dialect)
	if err != nil {
		return nil, fmt.Errorf("list granted pending requests: %w", err)
	}
	defer rows.Close()

	var out []*models.ShareRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan share request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}
