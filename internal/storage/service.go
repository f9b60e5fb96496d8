// Package storage keeps document payloads outside the database. Payloads are
// opaque strings addressed by key.
package storage

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"github.com/docshare/docshare/internal/config"
)

// ErrObjectNotFound means a key has no payload. Rows only reference stored keys,
// so callers treat it as a storage fault rather than a missing resource.
var ErrObjectNotFound = errors.New("payload not found")

// Blob is the payload store the services depend on.
type Blob interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// New builds the backend selected by cfg.Storage.Type.
func New(ctx context.Context, cfg *config.Config) (Blob, error) {
	if cfg.Storage.Type == "minio" {
		svc, err := NewMinIOService(ctx, cfg.Storage.MinIO)
		if err != nil {
			return nil, err
		}
		return svc, nil
	}
	svc, err := NewLocalService(cfg.Storage.Local.RootPath)
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// DocumentKey names the owner payload of a new document.
func DocumentKey() string {
	return "documents/" + uuid.NewString()
}

// GrantKey names the recipient payload of a new grant on documentID.
func GrantKey(documentID int64) string {
	return "grants/" + strconv.FormatInt(documentID, 10) + "/" + uuid.NewString()
}
