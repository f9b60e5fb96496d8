package models

import "time"

type Document struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Filename    string    `json:"filename"`
	PayloadRef  string    `json:"-"`
	Signature   string    `json:"signature"`
	CreatedAt   time.Time `json:"created_at"`
}

type Relationship string

const (
	RelationshipOwner  Relationship = "owner"
	RelationshipShared Relationship = "shared"
)

type UploadDocumentRequest struct {
	Title         string `json:"title" binding:"required"`
	Description   string `json:"description"`
	Filename      string `json:"filename" binding:"required"`
	EncryptedData string `json:"encryptedData" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

// DocumentView is a document as seen by one reader, with the payload meant for them.
type DocumentView struct {
	Document
	OwnerUsername  string       `json:"owner_username"`
	OwnerPublicKey string       `json:"owner_public_key"`
	Relationship   Relationship `json:"relationship"`
	EncryptedData  string       `json:"encrypted_data,omitempty"`
}

type MyDocumentsResponse struct {
	OwnDocuments    []DocumentView `json:"ownDocuments"`
	SharedDocuments []DocumentView `json:"sharedDocuments"`
}

// CatalogEntry is the public listing used for discovery.
type CatalogEntry struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	OwnerID       int64     `json:"owner_id"`
	OwnerUsername string    `json:"owner_username"`
	CreatedAt     time.Time `json:"created_at"`
}
