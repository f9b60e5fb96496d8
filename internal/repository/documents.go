package repository

import (
	"context"
	"fmt"

	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/models"
)

var documentColumns = []string{
	"d.id", "d.owner_id", "d.title", "d.description", "d.filename", "d.payload_ref", "d.signature", "d.created_at",
}

type DocumentRepo struct {
	db      database.DBTX
	dialect database.Dialect
}

func scanDocument(row rowScanner, extra ...any) (*models.Document, error) {
	d := &models.Document{}
	dest := []any{&d.ID, &d.OwnerID, &d.Title, &d.Description, &d.Filename, &d.PayloadRef, &d.Signature, &d.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return d, nil
}

// Create inserts d and sets d.ID. A non-zero d.ID is kept as is.
func (r *DocumentRepo) Create(ctx context.Context, d *models.Document) error {
	b := database.Insert(tableDocs)
	if d.ID != 0 {
		b.Set("id", d.ID)
	}
	b.Set("owner_id", d.OwnerID).
		Set("title", d.Title).
		Set("description", d.Description).
		Set("filename", d.Filename).
		Set("payload_ref", d.PayloadRef).
		Set("signature", d.Signature).
		Set("created_at", d.CreatedAt).
		Returning("id")

	if err := b.QueryRow(ctx, r.db, r.dialect).Scan(&d.ID); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		if database.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	d, err := scanDocument(database.Select(tableDocs+" d", documentColumns...).
		Where("d.id = ?", id).
		QueryRow(ctx, r.db, r.dialect))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

// DocumentWithOwner is a document joined with its owner's public identity.
type DocumentWithOwner struct {
	*models.Document
	Owner models.PublicUser
}

func (r *DocumentRepo) listWithOwner(ctx context.Context, b *database.SelectBuilder) ([]DocumentWithOwner, error) {
	rows, err := b.Query(ctx, r.db, r.dialect)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []DocumentWithOwner
	for rows.Next() {
		var owner models.PublicUser
		d, err := scanDocument(rows, &owner.ID, &owner.Username, &owner.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, DocumentWithOwner{Document: d, Owner: owner})
	}
	return docs, rows.Err()
}

func selectWithOwner() *database.SelectBuilder {
	cols := append(append([]string{}, documentColumns...), "u.id", "u.username", "u.public_key")
	return database.Select(tableDocs+" d", cols...).
		Join("INNER", tableUsers+" u", "u.id = d.owner_id")
}

// List returns every document with its owner, in id order.
func (r *DocumentRepo) List(ctx context.Context) ([]DocumentWithOwner, error) {
	return r.listWithOwner(ctx, selectWithOwner().OrderBy("d.id"))
}

func (r *DocumentRepo) ListByOwner(ctx context.Context, ownerID int64) ([]DocumentWithOwner, error) {
	return r.listWithOwner(ctx, selectWithOwner().
		Where("d.owner_id = ?", ownerID).
		OrderBy("d.id"))
}

// ListSharedWith returns documents userID holds a grant on, in grant order.
func (r *DocumentRepo) ListSharedWith(ctx context.Context, userID int64) ([]DocumentWithOwner, error) {
	return r.listWithOwner(ctx, selectWithOwner().
		Join("INNER", tableGrants+" s", "s.document_id = d.id").
		Where("s.shared_with_user_id = ?", userID).
		OrderBy("s.id"))
}
