package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/prepwise/creditcore/internal/app"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(adminTokenCmd)

	adminTokenCmd.Flags().Uint64("id", 0, "Operator id embedded in the token")
	_ = adminTokenCmd.MarkFlagRequired("id")
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background jobs",
	Long: `Migrate the database, then serve the front, admin and webhook routes.
The webhook retention cleaner and, when enabled, the reconcile schedule run
in the same process until it receives SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.RunServer(cmd.Context(), appConfig())
	},
}

// ─── migrate ────────────────────────────────────────────────────────────────

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Migrate(cmd.Context(), appConfig())
	},
}

// ─── reconcile ──────────────────────────────────────────────────────────────

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Compare every cached balance with its ledger",
	Long:  `Print a JSON report of accounts whose balance differs from the ledger sum. Exits non-zero on any mismatch; nothing is repaired.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, errRun := app.Reconcile(cmd.Context(), appConfig())
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if errEncode := enc.Encode(report); errEncode != nil {
			return errEncode
		}
		return errRun
	},
}

// ─── admin-token ────────────────────────────────────────────────────────────

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Issue an operator JWT for the /v0/admin routes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		adminID, _ := cmd.Flags().GetUint64("id")
		token, errToken := app.IssueAdminToken(appConfig(), adminID)
		if errToken != nil {
			return errToken
		}
		fmt.Fprintln(os.Stdout, token)
		return nil
	},
}
