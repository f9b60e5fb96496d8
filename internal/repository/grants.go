package repository

import (
	"context"
	"fmt"

	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/models"
)

var grantColumns = []string{
	"s.id", "s.document_id", "s.shared_with_user_id", "s.shared_by_user_id", "s.payload_ref", "s.created_at",
}

type GrantRepo struct {
	db      database.DBTX
	dialect database.Dialect
}

func scanGrant(row rowScanner, extra ...any) (*models.ShareGrant, error) {
	g := &models.ShareGrant{}
	dest := []any{&g.ID, &g.DocumentID, &g.SharedWithUserID, &g.SharedByUserID, &g.PayloadRef, &g.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return g, nil
}

// Create inserts g and sets g.ID. The (document, recipient) pair is unique, so a
// concurrent duplicate fails here with ErrDuplicate.
func (r *GrantRepo) Create(ctx context.Context, g *models.ShareGrant) error {
	b := database.Insert(tableGrants)
	if g.ID != 0 {
		b.Set("id", g.ID)
	}
	b.Set("document_id", g.DocumentID).
		Set("shared_with_user_id", g.SharedWithUserID).
		Set("shared_by_user_id", g.SharedByUserID).
		Set("payload_ref", g.PayloadRef).
		Set("created_at", g.CreatedAt).
		Returning("id")

	if err := b.QueryRow(ctx, r.db, r.dialect).Scan(&g.ID); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		if database.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("insert grant: %w", err)
	}
	return nil
}

// Get returns the grant for (documentID, userID).
func (r *GrantRepo) Get(ctx context.Context, documentID, userID int64) (*models.ShareGrant, error) {
	g, err := scanGrant(database.Select(tableGrants+" s", grantColumns...).
		Where("s.document_id = ?", documentID).
		Where("s.shared_with_user_id = ?", userID).
		QueryRow(ctx, r.db, r.dialect))
	if err != nil {
		return nil, notFound(err)
	}
	return g, nil
}

func (r *GrantRepo) list(ctx context.Context, b *database.SelectBuilder) ([]*models.ShareGrant, error) {
	rows, err := b.Query(ctx, r.db, r.dialect)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []*models.ShareGrant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// ListByDocument returns a document's grants in insertion order.
func (r *GrantRepo) ListByDocument(ctx context.Context, documentID int64) ([]*models.ShareGrant, error) {
	return r.list(ctx, database.Select(tableGrants+" s", grantColumns...).
		Where("s.document_id = ?", documentID).
		OrderBy("s.id"))
}

// GrantWithRecipient is a grant joined with the recipient's public identity.
type GrantWithRecipient struct {
	*models.ShareGrant
	Recipient models.PublicUser
}

// ListHolders returns grants on documentID with recipient identity. Grants whose
// recipient row is missing are dropped by the join.
func (r *GrantRepo) ListHolders(ctx context.Context, documentID int64) ([]GrantWithRecipient, error) {
	cols := append(append([]string{}, grantColumns...), "u.id", "u.username", "u.public_key")
	rows, err := database.Select(tableGrants+" s", cols...).
		Join("INNER", tableUsers+" u", "u.id = s.shared_with_user_id").
		Where("s.document_id = ?", documentID).
		OrderBy("s.id").
		Query(ctx, r.db, r.dialect)
	if err != nil {
		return nil, fmt.Errorf("list grant holders: %w", err)
	}
	defer rows.Close()

	var out []GrantWithRecipient
	for rows.Next() {
		var u models.PublicUser
		g, err := scanGrant(rows, &u.ID, &u.Username, &u.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("scan grant holder: %w", err)
		}
		out = append(out, GrantWithRecipient{ShareGrant: g, Recipient: u})
	}
	return out, rows.Err()
}

// Delete removes every grant for (documentID, userID) and returns what it removed.
func (r *GrantRepo) Delete(ctx context.Context, documentID, userID int64) ([]*models.ShareGrant, error) {
	grants, err := r.list(ctx, database.Select(tableGrants+" s", grantColumns...).
		Where("s.document_id = ?", documentID).
		Where("s.shared_with_user_id = ?", userID))
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, nil
	}

	if _, err := database.Delete(tableGrants).
		Where("document_id = ?", documentID).
		Where("shared_with_user_id = ?", userID).
		Exec(ctx, r.db, r.dialect); err != nil {
		return nil, fmt.Errorf("delete grants: %w", err)
	}
	return grants, nil
}
