package repository

import (
	"context"
	"fmt"

	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/models"
)

var userColumns = []string{"id", "username", "password_hash", "public_key", "created_at"}

type UserRepo struct {
	db      database.DBTX
	dialect database.Dialect
}

func scanUser(row rowScanner) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.PublicKey, &u.CreatedAt); err != nil {
		return nil, err
	}
	return u, nil
}

// Create inserts u and sets u.ID. A non-zero u.ID is kept as is.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	b := database.Insert(tableUsers)
	if u.ID != 0 {
		b.Set("id", u.ID)
	}
	b.Set("username", u.Username).
		Set("password_hash", u.PasswordHash).
		Set("public_key", u.PublicKey).
		Set("created_at", u.CreatedAt).
		Returning("id")

	if err := b.QueryRow(ctx, r.db, r.dialect).Scan(&u.ID); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(database.Select(tableUsers, userColumns...).
		Where("id = ?", id).
		QueryRow(ctx, r.db, r.dialect))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(database.Select(tableUsers, userColumns...).
		Where("username = ?", username).
		QueryRow(ctx, r.db, r.dialect))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	rows, err := database.Select(tableUsers, userColumns...).
		OrderBy("id").
		Query(ctx, r.db, r.dialect)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
