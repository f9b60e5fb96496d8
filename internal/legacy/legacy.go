// Package legacy imports the JSON database written by the first version of the
// service (one file holding users, documents, document_shares and share_requests).
package legacy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/models"
	"github.com/docshare/docshare/internal/repository"
	"github.com/docshare/docshare/internal/storage"
)

var ErrNotEmpty = models.NewError(models.KindConflict, "target database already has users")

type Snapshot struct {
	Users          []User     `json:"users"`
	Documents      []Document `json:"documents"`
	DocumentShares []Share    `json:"document_shares"`
	ShareRequests  []Request  `json:"share_requests"`
}

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	PublicKey    string `json:"public_key"`
	CreatedAt    string `json:"created_at"`
}

type Document struct {
	ID            int64  `json:"id"`
	OwnerID       int64  `json:"owner_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	Filename      string `json:"filename"`
	EncryptedData string `json:"encrypted_data"`
	Signature     string `json:"signature"`
	CreatedAt     string `json:"created_at"`
}

type Share struct {
	ID                        int64  `json:"id"`
	DocumentID                int64  `json:"document_id"`
	SharedWithUserID          int64  `json:"shared_with_user_id"`
	SharedByUserID            int64  `json:"shared_by_user_id"`
	EncryptedDataForRecipient string `json:"encrypted_data_for_recipient"`
	CreatedAt                 string `json:"created_at"`
}

type Request struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	FromUserID int64  `json:"from_user_id"`
	ToUserID   int64  `json:"to_user_id"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &snap, nil
}

// Report counts imported rows. Skipped holds one line per dropped record.
type Report struct {
	Users     int
	Documents int
	Grants    int
	Requests  int
	Skipped   []string
}

func (r *Report) skip(format string, args ...any) {
	r.Skipped = append(r.Skipped, fmt.Sprintf(format, args...))
}

type Importer struct {
	store  *repository.Store
	blobs  storage.Blob
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewImporter(store *repository.Store, blobs storage.Blob, logger logrus.FieldLogger) *Importer {
	return &Importer{
		store:  store,
		blobs:  blobs,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (im *Importer) parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return im.now()
}

// Import copies snap into an empty database, keeping ids. Records that break
// the current constraints are skipped and listed in the report. Nothing is
// written if any insert fails.
func (im *Importer) Import(ctx context.Context, snap *Snapshot) (*Report, error) {
	report := &Report{}
	var written []string

	err := im.store.WithTx(ctx, func(r *repository.Repos) error {
		existing, err := r.Users.List(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrNotEmpty
		}

		users := make(map[int64]bool)
		names := make(map[string]bool)
		for _, u := range snap.Users {
			if u.ID <= 0 || u.Username == "" || u.PasswordHash == "" || u.PublicKey == "" || users[u.ID] || names[u.Username] {
				report.skip("user %d (%q): incomplete or duplicate", u.ID, u.Username)
				continue
			}
			err := r.Users.Create(ctx, &models.User{
				ID:           u.ID,
				Username:     u.Username,
				PasswordHash: u.PasswordHash,
				PublicKey:    u.PublicKey,
				CreatedAt:    im.parseTime(u.CreatedAt),
			})
			if err != nil {
				return fmt.Errorf("import user %d: %w", u.ID, err)
			}
			users[u.ID] = true
			names[u.Username] = true
			report.Users++
		}

		owners := make(map[int64]int64)
		for _, d := range snap.Documents {
			if d.ID <= 0 || !users[d.OwnerID] || owners[d.ID] != 0 || d.EncryptedData == "" {
				report.skip("document %d: unknown owner, missing payload or duplicate id", d.ID)
				continue
			}
			key := storage.DocumentKey()
			if err := im.blobs.Put(ctx, key, []byte(d.EncryptedData)); err != nil {
				return fmt.Errorf("store document %d payload: %w", d.ID, err)
			}
			written = append(written, key)

			err := r.Documents.Create(ctx, &models.Document{
				ID:          d.ID,
				OwnerID:     d.OwnerID,
				Title:       d.Title,
				Description: d.Description,
				Filename:    d.Filename,
				PayloadRef:  key,
				Signature:   d.Signature,
				CreatedAt:   im.parseTime(d.CreatedAt),
			})
			if err != nil {
				return fmt.Errorf("import document %d: %w", d.ID, err)
			}
			owners[d.ID] = d.OwnerID
			report.Documents++
		}

		type pair struct{ doc, user int64 }
		granted := make(map[pair]bool)
		shareIDs := make(map[int64]bool)
		for _, s := range snap.DocumentShares {
			owner, ok := owners[s.DocumentID]
			switch {
			case s.ID <= 0 || shareIDs[s.ID]:
				report.skip("share %d: missing or duplicate id", s.ID)
				continue
			case !ok || !users[s.SharedWithUserID]:
				report.skip("share %d: unknown document or recipient", s.ID)
				continue
			case s.SharedWithUserID == owner:
				report.skip("share %d: recipient is the owner", s.ID)
				continue
			case s.EncryptedDataForRecipient == "":
				report.skip("share %d: no payload for the recipient", s.ID)
				continue
			case granted[pair{s.DocumentID, s.SharedWithUserID}]:
				report.skip("share %d: duplicate grant", s.ID)
				continue
			}

			key := storage.GrantKey(s.DocumentID)
			if err := im.blobs.Put(ctx, key, []byte(s.EncryptedDataForRecipient)); err != nil {
				return fmt.Errorf("store share %d payload: %w", s.ID, err)
			}
			written = append(written, key)

			err := r.Grants.Create(ctx, &models.ShareGrant{
				ID:               s.ID,
				DocumentID:       s.DocumentID,
				SharedWithUserID: s.SharedWithUserID,
				SharedByUserID:   owner,
				PayloadRef:       key,
				CreatedAt:        im.parseTime(s.CreatedAt),
			})
			if err != nil {
				return fmt.Errorf("import share %d: %w", s.ID, err)
			}
			granted[pair{s.DocumentID, s.SharedWithUserID}] = true
			shareIDs[s.ID] = true
			report.Grants++
		}

		pending := make(map[pair]bool)
		requestIDs := make(map[int64]bool)
		for _, q := range snap.ShareRequests {
			status := models.RequestStatus(q.Status)
			owner, ok := owners[q.DocumentID]
			switch {
			case q.ID <= 0 || requestIDs[q.ID]:
				report.skip("request %d: missing or duplicate id", q.ID)
				continue
			case !ok || !users[q.FromUserID]:
				report.skip("request %d: unknown document or requester", q.ID)
				continue
			case q.ToUserID != owner || q.FromUserID == owner:
				// Owner-initiated invitations have no counterpart in the request model.
				report.skip("request %d: not addressed to the document owner", q.ID)
				continue
			case status != models.StatusPending && !status.Terminal():
				report.skip("request %d: unknown status %q", q.ID, q.Status)
				continue
			case status == models.StatusPending && pending[pair{q.DocumentID, q.FromUserID}]:
				report.skip("request %d: second pending request", q.ID)
				continue
			}

			created := im.parseTime(q.CreatedAt)
			updated := created
			if q.UpdatedAt != "" {
				updated = im.parseTime(q.UpdatedAt)
			}
			err := r.Requests.Create(ctx, &models.ShareRequest{
				ID:         q.ID,
				DocumentID: q.DocumentID,
				FromUserID: q.FromUserID,
				ToUserID:   owner,
				Status:     status,
				CreatedAt:  created,
				UpdatedAt:  updated,
			})
			if err != nil {
				return fmt.Errorf("import request %d: %w", q.ID, err)
			}
			if status == models.StatusPending {
				pending[pair{q.DocumentID, q.FromUserID}] = true
			}
			requestIDs[q.ID] = true
			report.Requests++
		}

		return nil
	})
	if err != nil {
		for _, key := range written {
			if delErr := im.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
				im.logger.WithError(delErr).WithField("key", key).Warn("failed to remove payload")
			}
		}
		return nil, err
	}

	if err := database.ResetSequences(ctx, im.store.DB(), repository.Tables...); err != nil {
		return report, err
	}

	im.logger.WithFields(logrus.Fields{
		"users":     report.Users,
		"documents": report.Documents,
		"grants":    report.Grants,
		"requests":  report.Requests,
		"skipped":   len(report.Skipped),
	}).Info("legacy import finished")

	return report, nil
}
