package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/models"
)

func TestUserRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	mustUser(t, s, "bob")

	t.Run("get by username", func(t *testing.T) {
		u, err := s.Repos().Users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, u.ID)
		assert.Equal(t, "pk-alice", u.PublicKey)
	})

	t.Run("duplicate username", func(t *testing.T) {
		err := s.Repos().Users.Create(ctx, &models.User{Username: "alice", PasswordHash: "h", PublicKey: "k", CreatedAt: time.Now()})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := s.Repos().Users.GetByID(ctx, 999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list in id order", func(t *testing.T) {
		users, err := s.Repos().Users.List(ctx)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "alice", users[0].Username)
		assert.Equal(t, "bob", users[1].Username)
	})

	t.Run("explicit id is kept", func(t *testing.T) {
		u := &models.User{ID: 40, Username: "carol", PasswordHash: "h", PublicKey: "k", CreatedAt: time.Now()}
		require.NoError(t, s.Repos().Users.Create(ctx, u))
		assert.Equal(t, int64(40), u.ID)

		next := mustUser(t, s, "dave")
		assert.Equal(t, int64(41), next.ID)
	})
}

func TestDocumentRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	plan := mustDocument(t, s, alice.ID, "plan")
	mustDocument(t, s, bob.ID, "notes")
	mustGrant(t, s, plan, bob.ID)

	got, err := s.Repos().Documents.GetByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, "blob-plan", got.PayloadRef)

	all, err := s.Repos().Documents.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Owner.Username)

	mine, err := s.Repos().Documents.ListByOwner(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "notes", mine[0].Title)

	shared, err := s.Repos().Documents.ListSharedWith(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, plan.ID, shared[0].ID)
	assert.Equal(t, "pk-alice", shared[0].Owner.PublicKey)

	err = s.Repos().Documents.Create(ctx, &models.Document{OwnerID: 999, Title: "x", Filename: "x", PayloadRef: "r", Signature: "s", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGrantRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	carol := mustUser(t, s, "carol")
	doc := mustDocument(t, s, alice.ID, "plan")

	mustGrant(t, s, doc, bob.ID)
	mustGrant(t, s, doc, carol.ID)

	dup := &models.ShareGrant{DocumentID: doc.ID, SharedWithUserID: bob.ID, SharedByUserID: alice.ID, PayloadRef: "p", CreatedAt: time.Now()}
	assert.ErrorIs(t, s.Repos().Grants.Create(ctx, dup), ErrDuplicate)

	holders, err := s.Repos().Grants.ListHolders(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "bob", holders[0].Recipient.Username)
	assert.Equal(t, "carol", holders[1].Recipient.Username)

	removed, err := s.Repos().Grants.Delete(ctx, doc.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.Equal(t, "grant-blob", removed[0].PayloadRef)

	_, err = s.Repos().Grants.Get(ctx, doc.ID, bob.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	removed, err = s.Repos().Grants.Delete(ctx, doc.ID, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestRequestRepo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, s, "alice")
	bob := mustUser(t, s, "bob")
	carol := mustUser(t, s, "carol")
	doc := mustDocument(t, s, alice.ID, "plan")

	req := mustRequest(t, s, doc, bob.ID)
	mustRequest(t, s, doc, carol.ID)

	t.Run("one pending per requester", func(t *testing.T) {
		now := time.Now()
		err := s.Repos().Requests.Create(ctx, &models.ShareRequest{
			DocumentID: doc.ID, FromUserID: bob.ID, ToUserID: alice.ID,
			Status: models.StatusPending, CreatedAt: now, UpdatedAt: now,
		})
		assert.ErrorIs(t, err, ErrDuplicate)
	})

	t.Run("pending for owner is enriched", func(t *testing.T) {
		pending, err := s.Repos().Requests.ListPendingForOwner(ctx, alice.ID)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, "plan", pending[0].DocumentTitle)
		assert.Equal(t, "bob", pending[0].Requester.Username)
	})

	t.Run("transition is compare and swap", func(t *testing.T) {
		ok, err := s.Repos().Requests.Transition(ctx, req.ID, models.StatusPending, models.StatusAccepted, time.Now())
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Repos().Requests.Transition(ctx, req.ID, models.StatusPending, models.StatusRejected, time.Now())
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.Repos().Requests.GetByID(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, got.Status)

		_, err = s.Repos().Requests.FindPending(ctx, doc.ID, bob.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("outgoing includes resolved", func(t *testing.T) {
		out, err := s.Repos().Requests.ListByRequester(ctx, bob.ID)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, models.StatusAccepted, out[0].Status)
		assert.Equal(t, "plan", out[0].DocumentTitle)
	})

	t.Run("pending already granted", func(t *testing.T) {
		mustGrant(t, s, doc, carol.ID)
		stale, err := s.Repos().Requests.ListPendingAlreadyGranted(ctx)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, carol.ID, stale[0].FromUserID)
	})
}

func TestStore_WithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(r *Repos) error {
		require.NoError(t, r.Users.Create(ctx, &models.User{Username: "ghost", PasswordHash: "h", PublicKey: "k", CreatedAt: time.Now()}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Repos().Users.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepo_PostgresDialect(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	repo := &UserRepo{db: db, dialect: database.Postgres}
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	insert := "INSERT INTO users (username, password_hash, public_key, created_at) VALUES ($1, $2, $3, $4) RETURNING id"

	mock.ExpectQuery(insert).
		WithArgs("alice", "hash", "pk", created).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	u := &models.User{Username: "alice", PasswordHash: "hash", PublicKey: "pk", CreatedAt: created}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, int64(7), u.ID)

	mock.ExpectQuery(insert).
		WithArgs("alice", "hash", "pk", created).
		WillReturnError(&pq.Error{Code: "23505"})

	err = repo.Create(context.Background(), &models.User{Username: "alice", PasswordHash: "hash", PublicKey: "pk", CreatedAt: created})
	assert.ErrorIs(t, err, ErrDuplicate)

	mock.ExpectQuery("SELECT id, username, password_hash, public_key, created_at FROM users WHERE id = $1").
		WithArgs(int64(3)).
		WillReturnError(errors.New("connection reset"))

	_, err = repo.GetByID(context.Background(), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
