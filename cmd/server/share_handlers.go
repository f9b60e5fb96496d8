package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docshare/docshare/internal/middleware"
	"github.com/docshare/docshare/internal/models"
	"github.com/docshare/docshare/internal/share"
)

func handleShareDocument(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var req models.GrantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		_, err := shareService.Grant(c.Request.Context(), documentID, middleware.CurrentUserID(c),
			req.TargetUserID, req.EncryptedDataForRecipient)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "Document shared successfully"})
	}
}

func handleUnshareDocument(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID, ok := paramID(c, "id")
		if !ok {
			return
		}
		targetID, ok := paramID(c, "userId")
		if !ok {
			return
		}

		if err := shareService.Revoke(c.Request.Context(), documentID, middleware.CurrentUserID(c), targetID); err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Document unshared successfully"})
	}
}

func handleListShares(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID, ok := paramID(c, "id")
		if !ok {
			return
		}

		holders, err := shareService.ListGrants(c.Request.Context(), documentID, middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, holders)
	}
}

func handleRequestAccess(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.AccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		created, err := shareService.RequestAccess(c.Request.Context(), req.DocumentID, middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func handlePendingRequests(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := shareService.ListPendingRequestsForOwner(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

func handleOutgoingRequests(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		views, err := shareService.ListOutgoingRequests(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, views)
	}
}

func handleRespondRequest(shareService *share.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID, ok := paramID(c, "id")
		if !ok {
			return
		}

		var req models.RespondRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		resolved, err := shareService.Respond(c.Request.Context(), requestID, middleware.CurrentUserID(c),
			req.Status, req.EncryptedDataForRequester)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resolved)
	}
}
