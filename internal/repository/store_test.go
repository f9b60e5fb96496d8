package repository

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, database.Migrate(context.Background(), db, logger))

	return NewStore(db)
}

func mustUser(t *testing.T, s *Store, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "hash", PublicKey: "pk-" + name, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.Repos().Users.Create(context.Background(), u))
	return u
}

func mustDocument(t *testing.T, s *Store, owner int64, title string) *models.Document {
	t.Helper()
	d := &models.Document{
		OwnerID:    owner,
		Title:      title,
		Filename:   title + ".txt",
		PayloadRef: "blob-" + title,
		Signature:  "sig",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, s.Repos().Documents.Create(context.Background(), d))
	return d
}

func mustGrant(t *testing.T, s *Store, doc *models.Document, to int64) *models.ShareGrant {
	t.Helper()
	g := &models.ShareGrant{
		DocumentID:       doc.ID,
		SharedWithUserID: to,
		SharedByUserID:   doc.OwnerID,
		PayloadRef:       "grant-blob",
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, s.Repos().Grants.Create(context.Background(), g))
	return g
}

func mustRequest(t *testing.T, s *Store, doc *models.Document, from int64) *models.ShareRequest {
	t.Helper()
	now := time.Now().UTC()
	r := &models.ShareRequest{
		DocumentID: doc.ID,
		FromUserID: from,
		ToUserID:   doc.OwnerID,
		Status:     models.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, s.Repos().Requests.Create(context.Background(), r))
	return r
}
