package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/docshare/docshare/internal/legacy"
	"github.com/docshare/docshare/internal/share"
	"github.com/docshare/docshare/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓")+" Schema is up to date ("+color.YellowString(string(db.Dialect))+")")
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Accept pending requests whose requester already holds a grant",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		// Reconcile never touches payloads.
		n, err := share.NewService(store, nil, logger).Reconcile(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("✓")+" Reconciled "+color.YellowString(strconv.Itoa(n))+" share request(s)")
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import-legacy <app.db.json>",
	Short: "Import a JSON database from the first version of the service",
	Long: `Copies users, documents, shares and share requests into an empty database,
keeping their ids. Document and share payloads move to blob storage.
Records the current schema cannot hold are skipped and listed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		snap, err := legacy.Load(args[0])
		if err != nil {
			return err
		}

		db, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		blobs, err := storage.New(ctx, cfg)
		if err != nil {
			return err
		}

		report, err := legacy.NewImporter(store, blobs, logger).Import(ctx, snap)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s Imported %d user(s), %d document(s), %d share(s), %d request(s)\n",
			color.GreenString("✓"), report.Users, report.Documents, report.Grants, report.Requests)
		for _, s := range report.Skipped {
			fmt.Fprintln(out, color.YellowString("!")+" skipped "+s)
		}
		return nil
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List registered users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		users, err := store.Repos().Users.List(ctx)
		if err != nil {
			return err
		}
		if len(users) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), color.CyanString("→")+" No users registered")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, color.CyanString("ID")+"\t"+color.CyanString("USERNAME")+"\t"+color.CyanString("CREATED"))
		for _, u := range users {
			fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Username, u.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}
