package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docshare/docshare/internal/document"
	"github.com/docshare/docshare/internal/middleware"
	"github.com/docshare/docshare/internal/models"
)

func handleUploadDocument(docService *document.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UploadDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		doc, err := docService.Upload(c.Request.Context(), middleware.CurrentUserID(c), req)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":    "Document uploaded successfully",
			"documentId": doc.ID,
		})
	}
}

func handleGetDocument(docService *document.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}

		view, err := docService.Get(c.Request.Context(), id, middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func handleMyDocuments(docService *document.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := docService.ListMine(c.Request.Context(), middleware.CurrentUserID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleAllDocuments(docService *document.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := docService.ListAll(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, entries)
	}
}
