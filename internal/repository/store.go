// Package repository is the persistent store: users, documents, document_shares
// and share_requests, each reachable inside a single transaction.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/models"
)

var (
	ErrNotFound  = models.NewError(models.KindNotFound, "record not found")
	ErrDuplicate = models.NewError(models.KindConflict, "record already exists")
)

const (
	tableUsers    = "users"
	tableDocs     = "documents"
	tableGrants   = "document_shares"
	tableRequests = "share_requests"
)

// Tables lists every table, parents first.
var Tables = []string{tableUsers, tableDocs, tableGrants, tableRequests}

// Repos groups the collection repositories bound to one DBTX.
type Repos struct {
	Users     *UserRepo
	Documents *DocumentRepo
	Grants    *GrantRepo
	Requests  *RequestRepo
}

func newRepos(db database.DBTX, d database.Dialect) *Repos {
	return &Repos{
		Users:     &UserRepo{db: db, dialect: d},
		Documents: &DocumentRepo{db: db, dialect: d},
		Grants:    &GrantRepo{db: db, dialect: d},
		Requests:  &RequestRepo{db: db, dialect: d},
	}
}

type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Repos returns repositories running outside any transaction.
func (s *Store) Repos() *Repos {
	return newRepos(s.db, s.db.Dialect)
}

// WithTx runs fn with repositories bound to one transaction.
func (s *Store) WithTx(ctx context.Context, fn func(r *Repos) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(newRepos(tx, s.db.Dialect))
	})
}

func (s *Store) DB() *database.DB {
	return s.db
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}
