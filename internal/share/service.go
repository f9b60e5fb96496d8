package share

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/docshare/docshare/internal/models"
	"github.com/docshare/docshare/internal/policy"
	"github.com/docshare/docshare/internal/repository"
	"github.com/docshare/docshare/internal/storage"
)

// 错误定义
var (
	ErrInvalidRequest   = models.NewError(models.KindBadRequest, "invalid request")
	ErrPayloadRequired  = models.NewError(models.KindBadRequest, "encrypted payload for the recipient is required")
	ErrShareWithOwner   = models.NewError(models.KindBadRequest, "cannot share a document with its owner")
	ErrSelfRequest      = models.NewError(models.KindBadRequest, "cannot request access to your own document")
	ErrInvalidDecision  = models.NewError(models.KindBadRequest, "status must be accepted or rejected")
	ErrDocumentNotFound = models.NewError(models.KindNotFound, "document not found")
	ErrUserNotFound     = models.NewError(models.KindNotFound, "user not found")
	ErrRequestNotFound  = models.NewError(models.KindNotFound, "share request not found")
	ErrNotOwner         = models.NewError(models.KindForbidden, "only the owner can manage sharing of this document")
	ErrAlreadyShared    = models.NewError(models.KindConflict, "document already shared with this user")
	ErrAlreadyHasAccess = models.NewError(models.KindConflict, "you already have access to this document")
	ErrRequestPending   = models.NewError(models.KindConflict, "share request already pending")
	ErrRequestResolved  = models.NewError(models.KindConflict, "share request already resolved")
)

// Service is the sharing workflow. Each operation runs in one transaction.
type Service struct {
	store  *repository.Store
	blobs  storage.Blob
	logger logrus.FieldLogger
	now    func() time.Time
}

// NewService 创建共享服务
func NewService(store *repository.Store, blobs storage.Blob, logger logrus.FieldLogger) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) ownedDocument(ctx context.Context, r *repository.Repos, documentID, userID int64) (*models.Document, error) {
	doc, err := r.Documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if !policy.CanManageSharing(doc, userID) {
		return nil, ErrNotOwner
	}
	return doc, nil
}

// pendingGrant tracks a payload written to blob storage before its row commits.
type pendingGrant struct {
	key string
}

// createGrant checks the recipient, stores the payload and inserts the grant.
// A pending request from the recipient on the same document is accepted with it.
func (s *Service) createGrant(ctx context.Context, r *repository.Repos, doc *models.Document, recipientID int64, payload string, pg *pendingGrant) (*models.ShareGrant, error) {
	if _, err := r.Users.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if policy.IsOwner(doc, recipientID) {
		return nil, ErrShareWithOwner
	}

	if _, err := r.Grants.Get(ctx, doc.ID, recipientID); err == nil {
		return nil, ErrAlreadyShared
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	pg.key = storage.GrantKey(doc.ID)
	if err := s.blobs.Put(ctx, pg.key, []byte(payload)); err != nil {
		pg.key = ""
		return nil, err
	}

	now := s.now()
	grant := &models.ShareGrant{
		DocumentID:       doc.ID,
		SharedWithUserID: recipientID,
		SharedByUserID:   doc.OwnerID,
		PayloadRef:       pg.key,
		CreatedAt:        now,
	}
	if err := r.Grants.Create(ctx, grant); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyShared
		}
		return nil, err
	}

	req, err := r.Requests.FindPending(ctx, doc.ID, recipientID)
	switch {
	case err == nil:
		if _, err := r.Requests.Transition(ctx, req.ID, models.StatusPending, models.StatusAccepted, now); err != nil {
			return nil, err
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	return grant, nil
}

// removeBlob deletes a payload best-effort; failures only leave an orphan object.
func (s *Service) removeBlob(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.WithError(err).WithField("key", key).Warn("failed to remove payload")
	}
}

// Grant lets recipientID read documentID through payload, which the caller has
// already encoded for the recipient.
func (s *Service) Grant(ctx context.Context, documentID, granterID, recipientID int64, payload string) (*models.ShareGrant, error) {
	if payload == "" {
		return nil, ErrPayloadRequired
	}
	if recipientID <= 0 {
		return nil, ErrInvalidRequest
	}

	var (
		grant *models.ShareGrant
		pg    pendingGrant
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		doc, err := s.ownedDocument(ctx, r, documentID, granterID)
		if err != nil {
			return err
		}
		grant, err = s.createGrant(ctx, r, doc, recipientID, payload, &pg)
		return err
	})
	if err != nil {
		s.removeBlob(ctx, pg.key)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"recipient":   recipientID,
	}).Info("document shared")

	return grant, nil
}

// Revoke removes targetUserID's grant on documentID. Revoking a missing grant succeeds.
func (s *Service) Revoke(ctx context.Context, documentID, ownerID, targetUserID int64) error {
	var removed []*models.ShareGrant
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		if _, err := s.ownedDocument(ctx, r, documentID, ownerID); err != nil {
			return err
		}
		var err error
		removed, err = r.Grants.Delete(ctx, documentID, targetUserID)
		return err
	})
	if err != nil {
		return err
	}

	for _, g := range removed {
		s.removeBlob(ctx, g.PayloadRef)
	}

	if len(removed) > 0 {
		s.logger.WithFields(logrus.Fields{
			"document_id": documentID,
			"recipient":   targetUserID,
		}).Info("document unshared")
	}
	return nil
}

// ListGrants returns who holds a grant on documentID, without payloads.
func (s *Service) ListGrants(ctx context.Context, documentID, requesterID int64) ([]models.GrantHolder, error) {
	holders := []models.GrantHolder{}
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		if _, err := s.ownedDocument(ctx, r, documentID, requesterID); err != nil {
			return err
		}
		rows, err := r.Grants.ListHolders(ctx, documentID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			holders = append(holders, models.GrantHolder{
				ID:        row.Recipient.ID,
				Username:  row.Recipient.Username,
				PublicKey: row.Recipient.PublicKey,
				SharedAt:  row.CreatedAt,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return holders, nil
}

// RequestAccess opens a pending request from requesterID to the document's owner.
func (s *Service) RequestAccess(ctx context.Context, documentID, requesterID int64) (*models.ShareRequest, error) {
	var req *models.ShareRequest
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		doc, err := r.Documents.GetByID(ctx, documentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}
		if policy.IsOwner(doc, requesterID) {
			return ErrSelfRequest
		}

		grants, err := r.Grants.ListByDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if policy.HasGrant(grants, documentID, requesterID) {
			return ErrAlreadyHasAccess
		}

		if _, err := r.Requests.FindPending(ctx, documentID, requesterID); err == nil {
			return ErrRequestPending
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		now := s.now()
		req = &models.ShareRequest{
			DocumentID: doc.ID,
			FromUserID: requesterID,
			ToUserID:   doc.OwnerID,
			Status:     models.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := r.Requests.Create(ctx, req); err != nil {
			switch {
			case errors.Is(err, repository.ErrDuplicate):
				return ErrRequestPending
			case errors.Is(err, repository.ErrNotFound):
				return ErrUserNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListPendingRequestsForOwner returns pending requests on ownerID's documents.
// Requests whose document or requester no longer resolves are left out.
func (s *Service) ListPendingRequestsForOwner(ctx context.Context, ownerID int64) ([]models.PendingRequestView, error) {
	views := []models.PendingRequestView{}
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		rows, err := r.Requests.ListPendingForOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			views = append(views, models.PendingRequestView{
				ShareRequest:      *row.ShareRequest,
				DocumentTitle:     row.DocumentTitle,
				RequesterUsername: row.Requester.Username,
				RequesterKey:      row.Requester.PublicKey,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ListOutgoingRequests returns every request requesterID has made.
func (s *Service) ListOutgoingRequests(ctx context.Context, requesterID int64) ([]models.OutgoingRequestView, error) {
	views := []models.OutgoingRequestView{}
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		rows, err := r.Requests.ListByRequester(ctx, requesterID)
		if err != nil {
			return err
		}
		for _, row := range rows {
			views = append(views, models.OutgoingRequestView{
				ShareRequest:  *row.ShareRequest,
				DocumentTitle: row.DocumentTitle,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Respond resolves a pending request. Accepting creates the requester's grant in
// the same transaction unless one already exists; without an existing grant the
// payload is mandatory.
func (s *Service) Respond(ctx context.Context, requestID, responderID int64, decision models.RequestStatus, payload string) (*models.ShareRequest, error) {
	var (
		req *models.ShareRequest
		pg  pendingGrant
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		var err error
		req, err = r.Requests.GetByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRequestNotFound
			}
			return err
		}

		doc, err := s.ownedDocument(ctx, r, req.DocumentID, responderID)
		if err != nil {
			return err
		}
		if !decision.ValidDecision() {
			return ErrInvalidDecision
		}
		if req.Status.Terminal() {
			return ErrRequestResolved
		}

		needGrant := false
		if decision == models.StatusAccepted {
			_, err := r.Grants.Get(ctx, doc.ID, req.FromUserID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				if payload == "" {
					return ErrPayloadRequired
				}
				needGrant = true
			case err != nil:
				return err
			}
		}

		now := s.now()
		ok, err := r.Requests.Transition(ctx, req.ID, models.StatusPending, decision, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestResolved
		}
		req.Status = decision
		req.UpdatedAt = now

		if needGrant {
			if _, err := s.createGrant(ctx, r, doc, req.FromUserID, payload, &pg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.removeBlob(ctx, pg.key)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"status":     decision,
	}).Info("share request resolved")

	return req, nil
}

// Reconcile accepts pending requests whose requester already holds a grant, the
// state a client leaves behind when it grants and then fails to respond.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	fixed := 0
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		stale, err := r.Requests.ListPendingAlreadyGranted(ctx)
		if err != nil {
			return err
		}
		now := s.now()
		for _, req := range stale {
			ok, err := r.Requests.Transition(ctx, req.ID, models.StatusPending, models.StatusAccepted, now)
			if err != nil {
				return err
			}
			if ok {
				fixed++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if fixed > 0 {
		s.logger.WithField("count", fixed).Info("reconciled share requests")
	}
	return fixed, nil
}
