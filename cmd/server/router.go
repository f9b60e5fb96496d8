package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/docshare/docshare/internal/auth"
	"github.com/docshare/docshare/internal/config"
	"github.com/docshare/docshare/internal/document"
	"github.com/docshare/docshare/internal/middleware"
	"github.com/docshare/docshare/internal/share"
)

type services struct {
	auth      *auth.Service
	documents *document.Service
	shares    *share.Service
}

func setupRouter(cfg *config.Config, logger logrus.FieldLogger, svc services) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.BodyLimitMiddleware(cfg.Server.MaxBodyBytes))

	if cfg.Server.EnableCORS {
		router.Use(middleware.CORSMiddleware())
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	requireAuth := middleware.AuthMiddleware(svc.auth)

	// Auth routes
	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", handleRegister(svc.auth))
		authGroup.POST("/login", handleLogin(svc.auth))
		authGroup.POST("/logout", requireAuth, handleLogout(svc.auth))
		authGroup.GET("/me", requireAuth, handleGetMe(svc.auth))
		authGroup.GET("/users", handleListUsers(svc.auth))
		authGroup.GET("/users/:id", handleGetUser(svc.auth))
	}

	api := router.Group("/api")
	api.Use(requireAuth)
	{
		api.POST("/documents", handleUploadDocument(svc.documents))
		api.GET("/documents/:id", handleGetDocument(svc.documents))
		api.GET("/my-documents", handleMyDocuments(svc.documents))
		api.GET("/all-documents", handleAllDocuments(svc.documents))

		api.POST("/documents/:id/share", handleShareDocument(svc.shares))
		api.DELETE("/documents/:id/share/:userId", handleUnshareDocument(svc.shares))
		api.GET("/documents/:id/shares", handleListShares(svc.shares))

		api.POST("/share-requests", handleRequestAccess(svc.shares))
		api.GET("/share-requests", handlePendingRequests(svc.shares))
		api.GET("/share-requests/outgoing", handleOutgoingRequests(svc.shares))
		api.PUT("/share-requests/:id", handleRespondRequest(svc.shares))
	}

	return router
}
