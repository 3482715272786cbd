package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/JonMunkholm/bowlhouse/internal/archive"
	"github.com/JonMunkholm/bowlhouse/internal/config"
	"github.com/JonMunkholm/bowlhouse/internal/importer"
	"github.com/JonMunkholm/bowlhouse/internal/store"
	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import the valid rows of a file into the catalog",
		Long: `Validate a CSV or XLSX file and insert its valid rows into the catalog
database named by DATABASE_URL. Invalid rows are reported and skipped.
Products whose name already exists are rejected by the catalog.`,
		Example: `  DATABASE_URL=postgres://localhost/bowlhouse bowlctl import menu.csv`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return runImport(cmd.Context(), cmd.OutOrStdout(), cfg, args[0])
		},
	}
}

func runImport(ctx context.Context, out io.Writer, cfg *config.Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	products := store.New(pool)
	if cfg.Database.Migrate {
		if err := products.Migrate(ctx); err != nil {
			return err
		}
	}

	var backend importer.Catalog = products
	if cfg.Cache.Enabled() {
		// Going through the cache bumps its version so the server drops
		// listings that predate this import.
		if rdb, err := store.ConnectRedis(ctx, cfg.Cache.RedisURL); err != nil {
			slog.Warn("redis unavailable, cached listings may be stale", "error", err)
		} else {
			defer rdb.Close()
			backend = store.NewCache(products, rdb, cfg.Cache.TTL)
		}
	}

	arc, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	svc := importer.NewService(backend, importer.WithArchive(arc))

	preview, err := svc.Preview(ctx, filepath.Base(path), data)
	if err != nil {
		return fmt.Errorf("%s: %s", path, importer.FormatUserError(err))
	}
	for _, msg := range preview.Result.Errors() {
		fmt.Fprintln(out, msg)
	}

	submitCtx, cancel := context.WithTimeout(ctx, cfg.Upload.Timeout)
	defer cancel()

	outcome, err := svc.Submit(submitCtx, preview.BatchID)
	if err != nil {
		return fmt.Errorf("import %s: %s", path, importer.FormatUserError(err))
	}

	fmt.Fprintf(out, "Imported %d of %d products", outcome.Accepted, outcome.Submitted)
	if outcome.RejectedByServer > 0 {
		fmt.Fprintf(out, " (%d rejected by the catalog)", outcome.RejectedByServer)
	}
	if outcome.InvalidRows > 0 {
		fmt.Fprintf(out, ", %d invalid rows skipped", outcome.InvalidRows)
	}
	fmt.Fprintln(out)
	return nil
}
