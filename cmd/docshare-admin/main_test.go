package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const legacyJSON = `{
  "users": [
    {"id": 1, "username": "alice", "password_hash": "h1", "public_key": "pk-a"},
    {"id": 2, "username": "bob", "password_hash": "h2", "public_key": "pk-b"}
  ],
  "documents": [
    {"id": 1, "owner_id": 1, "title": "report", "filename": "r.pdf", "encrypted_data": "c", "signature": "s"}
  ],
  "document_shares": [
    {"id": 1, "document_id": 1, "shared_with_user_id": 2, "shared_by_user_id": 1, "encrypted_data_for_recipient": "c2"}
  ],
  "share_requests": [
    {"id": 1, "document_id": 1, "from_user_id": 2, "to_user_id": 1, "status": "pending"}
  ]
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--env", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAdminCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DATABASE_SQLITE_PATH", filepath.Join(dir, "app.db"))
	t.Setenv("STORAGE_LOCAL_ROOT_PATH", filepath.Join(dir, "blobs"))

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")

	out, err = run(t, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "No users registered")

	file := filepath.Join(dir, "app.db.json")
	require.NoError(t, os.WriteFile(file, []byte(legacyJSON), 0o600))

	out, err = run(t, "import-legacy", file)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 user(s), 1 document(s), 1 share(s), 1 request(s)")

	out, err = run(t, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "bob")

	// bob already holds a grant, so his pending request is stale
	out, err = run(t, "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "Reconciled 1 share request(s)")

	_, err = run(t, "import-legacy", file)
	assert.Error(t, err)

	_, err = run(t, "import-legacy")
	assert.Error(t, err)
}
