package models

import "time"

// ShareGrant lets SharedWithUserID read DocumentID through its own payload.
type ShareGrant struct {
	ID               int64     `json:"id"`
	DocumentID       int64     `json:"document_id"`
	SharedWithUserID int64     `json:"shared_with_user_id"`
	SharedByUserID   int64     `json:"shared_by_user_id"`
	PayloadRef       string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

func (s RequestStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ValidDecision reports whether s is an allowed answer to a pending request.
func (s RequestStatus) ValidDecision() bool {
	return s.Terminal()
}

type ShareRequest struct {
	ID         int64         `json:"id"`
	DocumentID int64         `json:"document_id"`
	FromUserID int64         `json:"from_user_id"`
	ToUserID   int64         `json:"to_user_id"`
	Status     RequestStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

type GrantRequest struct {
	TargetUserID              int64  `json:"targetUserId" binding:"required"`
	EncryptedDataForRecipient string `json:"encryptedDataForRecipient" binding:"required"`
}

// GrantHolder is one entry of a document's share list. Payloads are never included.
type GrantHolder struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	PublicKey string    `json:"public_key"`
	SharedAt  time.Time `json:"shared_at"`
}

type AccessRequest struct {
	DocumentID int64 `json:"documentId" binding:"required"`
}

type RespondRequest struct {
	Status                    RequestStatus `json:"status" binding:"required"`
	EncryptedDataForRequester string        `json:"encryptedDataForRequester"`
}

// PendingRequestView is a ShareRequest joined with display fields.
type PendingRequestView struct {
	ShareRequest
	DocumentTitle     string `json:"document_title"`
	RequesterUsername string `json:"requester_username"`
	RequesterKey      string `json:"requester_public_key"`
}

type OutgoingRequestView struct {
	ShareRequest
	DocumentTitle string `json:"document_title"`
}
