package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/docshare/docshare/internal/auth"
	"github.com/docshare/docshare/internal/config"
	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/document"
	"github.com/docshare/docshare/internal/repository"
	"github.com/docshare/docshare/internal/share"
	"github.com/docshare/docshare/internal/storage"
)

func newLogger(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

var envFile string

var rootCmd = &cobra.Command{
	Use:   "docshare-server",
	Short: "Serve the docshare HTTP API",
	Long: `docshare-server serves the document sharing API.

It reads .env, an optional config.yaml and the environment, in that order.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		serve(envFile)
	},
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env", ".env", "path to an optional .env file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(envFile string) {
	// Load configuration
	cfg, err := config.Load(envFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := newLogger(cfg.Logging)
	ctx := context.Background()

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	logger.WithField("type", cfg.Database.Type).Info("Connected to database")

	if err := database.Migrate(ctx, db, logger); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	blobs, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create storage service: %v", err)
	}
	logger.WithField("type", cfg.Storage.Type).Info("Storage service initialized")

	revoker, err := auth.NewRevoker(ctx, cfg.Cache)
	if err != nil {
		logger.Fatalf("Failed to create token revocation store: %v", err)
	}
	logger.WithField("type", cfg.Cache.Type).Info("Token revocation store initialized")

	store := repository.NewStore(db)
	svc := services{
		auth:      auth.NewService(store, cfg.Auth, revoker),
		documents: document.NewService(store, blobs, logger),
		shares:    share.NewService(store, blobs, logger),
	}

	if n, err := svc.shares.Reconcile(ctx); err != nil {
		logger.WithError(err).Warn("Failed to reconcile share requests")
	} else if n > 0 {
		logger.WithField("count", n).Info("Reconciled pending share requests")
	}

	if cfg.Auth.JWTSecret == "change-me" && cfg.IsProduction() {
		logger.Warn("JWT secret is the default value")
	}

	gin.SetMode(cfg.GetGINMode())
	router := setupRouter(cfg, logger, svc)

	srv := &http.Server{
		Addr:           cfg.Server.Address,
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	// Graceful shutdown
	go func() {
		logger.Infof("Starting server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}
