// Package document handles uploads and what each reader gets back.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/docshare/docshare/internal/models"
	"github.com/docshare/docshare/internal/policy"
	"github.com/docshare/docshare/internal/repository"
	"github.com/docshare/docshare/internal/storage"
)

var (
	ErrMissingField     = models.NewError(models.KindBadRequest, "title, filename, encryptedData and signature are required")
	ErrDocumentNotFound = models.NewError(models.KindNotFound, "document not found")
	ErrOwnerNotFound    = models.NewError(models.KindNotFound, "owner not found")
	ErrAccessDenied     = models.NewError(models.KindForbidden, "access denied")
)

type Service struct {
	store  *repository.Store
	blobs  storage.Blob
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewService(store *repository.Store, blobs storage.Blob, logger logrus.FieldLogger) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the owner's payload and records the document.
func (s *Service) Upload(ctx context.Context, ownerID int64, req models.UploadDocumentRequest) (*models.Document, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Filename) == "" ||
		req.EncryptedData == "" || req.Signature == "" {
		return nil, ErrMissingField
	}

	key := storage.DocumentKey()
	if err := s.blobs.Put(ctx, key, []byte(req.EncryptedData)); err != nil {
		return nil, err
	}

	doc := &models.Document{
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Filename:    req.Filename,
		PayloadRef:  key,
		Signature:   req.Signature,
		CreatedAt:   s.now(),
	}
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		return r.Documents.Create(ctx, doc)
	})
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.WithError(delErr).WithField("key", key).Warn("failed to remove payload")
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"owner":       ownerID,
	}).Info("document uploaded")

	return doc, nil
}

// Get returns the document as userID sees it. The owner receives the document
// payload, a grantee the payload of their own grant.
func (s *Service) Get(ctx context.Context, documentID, userID int64) (*models.DocumentView, error) {
	var (
		view *models.DocumentView
		ref  string
	)
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		doc, err := r.Documents.GetByID(ctx, documentID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrDocumentNotFound
			}
			return err
		}

		rel := models.RelationshipOwner
		ref = doc.PayloadRef
		if !policy.IsOwner(doc, userID) {
			grant, err := r.Grants.Get(ctx, documentID, userID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			if !policy.CanRead(doc, userID, grant != nil) {
				return ErrAccessDenied
			}
			rel = models.RelationshipShared
			ref = grant.PayloadRef
		}

		owner, err := r.Users.GetByID(ctx, doc.OwnerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrOwnerNotFound
			}
			return err
		}

		view = &models.DocumentView{
			Document:       *doc,
			OwnerUsername:  owner.Username,
			OwnerPublicKey: owner.PublicKey,
			Relationship:   rel,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	data, err := s.blobs.Get(ctx, ref)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"document_id": documentID,
			"key":         ref,
		}).Error("failed to read payload")
		return nil, fmt.Errorf("read payload of document %d: %w", documentID, err)
	}
	view.EncryptedData = string(data)
	return view, nil
}

func toView(row repository.DocumentWithOwner, rel models.Relationship) models.DocumentView {
	return models.DocumentView{
		Document:       *row.Document,
		OwnerUsername:  row.Owner.Username,
		OwnerPublicKey: row.Owner.PublicKey,
		Relationship:   rel,
	}
}

// ListMine returns userID's own documents and those shared with them, without payloads.
func (s *Service) ListMine(ctx context.Context, userID int64) (*models.MyDocumentsResponse, error) {
	resp := &models.MyDocumentsResponse{
		OwnDocuments:    []models.DocumentView{},
		SharedDocuments: []models.DocumentView{},
	}
	err := s.store.WithTx(ctx, func(r *repository.Repos) error {
		own, err := r.Documents.ListByOwner(ctx, userID)
		if err != nil {
			return err
		}
		for _, row := range own {
			resp.OwnDocuments = append(resp.OwnDocuments, toView(row, models.RelationshipOwner))
		}

		shared, err := r.Documents.ListSharedWith(ctx, userID)
		if err != nil {
			return err
		}
		for _, row := range shared {
			resp.SharedDocuments = append(resp.SharedDocuments, toView(row, models.RelationshipShared))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// ListAll is the public catalogue users browse before requesting access.
func (s *Service) ListAll(ctx context.Context) ([]models.CatalogEntry, error) {
	rows, err := s.store.Repos().Documents.List(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]models.CatalogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.CatalogEntry{
			ID:            row.ID,
			Title:         row.Title,
			Description:   row.Description,
			OwnerID:       row.OwnerID,
			OwnerUsername: row.Owner.Username,
			CreatedAt:     row.CreatedAt,
		})
	}
	return entries, nil
}
