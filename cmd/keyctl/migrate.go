package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rsa-key-service/config"
	"rsa-key-service/internal/infra"
	"rsa-key-service/internal/repository"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long:  "Manage the rsa_keys table of the RSA key service",
	}
	cmd.AddCommand(migrateUpCmd())
	cmd.AddCommand(migrateStatusCmd())
	return cmd
}

func migrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create or update the rsa_keys table",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			// DB接続情報を環境変数から取得
			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL environment variable is required")
			}

			// データベース接続
			db, err := infra.NewDB(cfg.DatabaseURL, cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			if err := repository.Migrate(ctx, db); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}

func migrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the schema status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg := config.Load()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL environment variable is required")
			}

			db, err := infra.NewDB(cfg.DatabaseURL, cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}

			status, err := repository.SchemaStatus(ctx, db)
			if err != nil {
				return fmt.Errorf("failed to get schema status: %w", err)
			}

			// テーブル形式で出力
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "TABLE\tEXISTS\tMISSING COLUMNS\tROWS")
			fmt.Fprintln(w, "-----\t------\t---------------\t----")
			missing := "-"
			if len(status.MissingColumns) > 0 {
				missing = fmt.Sprint(status.MissingColumns)
			}
			fmt.Fprintf(w, "%s\t%t\t%s\t%d\n", status.Table, status.Exists, missing, status.Rows)

			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}
			return nil
		},
	}
}
