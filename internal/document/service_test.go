package document

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/models"
	"github.com/docshare/docshare/internal/repository"
	"github.com/docshare/docshare/internal/share"
	"github.com/docshare/docshare/internal/storage"
)

type env struct {
	docs  *Service
	share *share.Service
	store *repository.Store
	blobs storage.Blob
}

func setup(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	db, err := database.OpenSQLite(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, database.Migrate(context.Background(), db, logger))

	blobs, err := storage.NewLocalService(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	store := repository.NewStore(db)
	return &env{
		docs:  NewService(store, blobs, logger),
		share: share.NewService(store, blobs, logger),
		store: store,
		blobs: blobs,
	}
}

func (e *env) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, PasswordHash: "hash", PublicKey: "pk-" + name, CreatedAt: time.Now().UTC()}
	require.NoError(t, e.store.Repos().Users.Create(context.Background(), u))
	return u
}

func upload(title, data string) models.UploadDocumentRequest {
	return models.UploadDocumentRequest{
		Title:         title,
		Description:   "about " + title,
		Filename:      title + ".pdf",
		EncryptedData: data,
		Signature:     "sig-" + title,
	}
}

func TestUpload(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	alice := e.user(t, "alice")

	doc, err := e.docs.Upload(ctx, alice.ID, upload("report", "cipher"))
	require.NoError(t, err)
	assert.NotZero(t, doc.ID)
	assert.Equal(t, alice.ID, doc.OwnerID)

	view, err := e.docs.Get(ctx, doc.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipOwner, view.Relationship)
	assert.Equal(t, "cipher", view.EncryptedData)
	assert.Equal(t, "alice", view.OwnerUsername)
	assert.Equal(t, "pk-alice", view.OwnerPublicKey)
	assert.Equal(t, "sig-report", view.Signature)
}

func TestUpload_Validation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	alice := e.user(t, "alice")

	missing := []func(r *models.UploadDocumentRequest){
		func(r *models.UploadDocumentRequest) { r.Title = "" },
		func(r *models.UploadDocumentRequest) { r.Filename = " " },
		func(r *models.UploadDocumentRequest) { r.EncryptedData = "" },
		func(r *models.UploadDocumentRequest) { r.Signature = "" },
	}
	for _, mutate := range missing {
		req := upload("report", "cipher")
		mutate(&req)
		_, err := e.docs.Upload(ctx, alice.ID, req)
		assert.ErrorIs(t, err, ErrMissingField)
	}

	_, err := e.docs.Upload(ctx, 999, upload("orphan", "cipher"))
	assert.ErrorIs(t, err, ErrOwnerNotFound)
}

func TestGet_AccessControl(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	alice, bob, mallory := e.user(t, "alice"), e.user(t, "bob"), e.user(t, "mallory")

	doc, err := e.docs.Upload(ctx, alice.ID, upload("report", "cipher-owner"))
	require.NoError(t, err)
	_, err = e.share.Grant(ctx, doc.ID, alice.ID, bob.ID, "cipher-bob")
	require.NoError(t, err)

	view, err := e.docs.Get(ctx, doc.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RelationshipShared, view.Relationship)
	assert.Equal(t, "cipher-bob", view.EncryptedData)

	_, err = e.docs.Get(ctx, doc.ID, mallory.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, models.KindForbidden, models.KindOf(err))

	_, err = e.docs.Get(ctx, 999, alice.ID)
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	require.NoError(t, e.share.Revoke(ctx, doc.ID, alice.ID, bob.ID))
	_, err = e.docs.Get(ctx, doc.ID, bob.ID)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestListMineAndAll(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	alice, bob := e.user(t, "alice"), e.user(t, "bob")

	report, err := e.docs.Upload(ctx, alice.ID, upload("report", "c1"))
	require.NoError(t, err)
	_, err = e.docs.Upload(ctx, bob.ID, upload("notes", "c2"))
	require.NoError(t, err)
	_, err = e.share.Grant(ctx, report.ID, alice.ID, bob.ID, "c1-bob")
	require.NoError(t, err)

	mine, err := e.docs.ListMine(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, mine.OwnDocuments, 1)
	require.Len(t, mine.SharedDocuments, 1)
	assert.Equal(t, "notes", mine.OwnDocuments[0].Title)
	assert.Equal(t, models.RelationshipShared, mine.SharedDocuments[0].Relationship)
	assert.Equal(t, "alice", mine.SharedDocuments[0].OwnerUsername)
	assert.Empty(t, mine.SharedDocuments[0].EncryptedData)

	all, err := e.docs.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "report", all[0].Title)
	assert.Equal(t, "alice", all[0].OwnerUsername)
	assert.Equal(t, "bob", all[1].OwnerUsername)

	empty, err := e.docs.ListMine(ctx, 999)
	require.NoError(t, err)
	assert.NotNil(t, empty.OwnDocuments)
	assert.Empty(t, empty.SharedDocuments)
}

func TestGet_MissingPayloadIsInternal(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	alice := e.user(t, "alice")

	doc, err := e.docs.Upload(ctx, alice.ID, upload("report", "cipher"))
	require.NoError(t, err)
	require.NoError(t, e.blobs.Delete(ctx, doc.PayloadRef))

	_, err = e.docs.Get(ctx, doc.ID, alice.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	assert.Equal(t, models.KindInternal, models.KindOf(err))
}
