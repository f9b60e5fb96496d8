// Package policy answers who may read a document and who may manage its sharing.
// Every function is pure; callers turn false into an access-denied error.
package policy

import "github.com/docshare/docshare/internal/models"

func IsOwner(doc *models.Document, userID int64) bool {
	return doc != nil && doc.OwnerID == userID
}

// HasGrant reports whether grants contains one for (documentID, userID).
func HasGrant(grants []*models.ShareGrant, documentID, userID int64) bool {
	for _, g := range grants {
		if g.DocumentID == documentID && g.SharedWithUserID == userID {
			return true
		}
	}
	return false
}

// CanRead holds for the owner and for any user holding a grant.
func CanRead(doc *models.Document, userID int64, granted bool) bool {
	return IsOwner(doc, userID) || (doc != nil && granted)
}

// CanManageSharing holds only for the owner: creating and revoking grants,
// listing grant holders and resolving requests.
func CanManageSharing(doc *models.Document, userID int64) bool {
	return IsOwner(doc, userID)
}
