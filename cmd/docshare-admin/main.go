package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/docshare/docshare/internal/config"
	"github.com/docshare/docshare/internal/database"
	"github.com/docshare/docshare/internal/repository"
)

var (
	envFile string
	verbose bool

	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "docshare-admin",
	Short: "Maintenance commands for the docshare server",
	Long: `docshare-admin works directly against the configured database and blob storage.

Available Commands:
  migrate        Apply pending schema migrations
  reconcile      Accept pending requests whose requester already has access
  import-legacy  Import a JSON database from the first version of the service
  users          Inspect registered users

It reads the same configuration (.env, config.yaml, environment) as the server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(envFile)
		if err != nil {
			return err
		}

		logger = logrus.New()
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		logger.SetLevel(logrus.WarnLevel)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to an optional .env file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(usersCmd)
}

// openStore connects to the configured database and brings the schema up to date.
func openStore(ctx context.Context) (*database.DB, *repository.Store, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repository.NewStore(db), nil
}

func fail(err error) string {
	return color.RedString("✗") + " " + err.Error()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, fail(err))
		os.Exit(1)
	}
}
