package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/ingest"
	"github.com/spf13/cobra"
)

var importCSVCmd = &cobra.Command{
	Use:   "import-csv [file]",
	Short: "Ingest an inventory CSV as a new manifest",
	Args:  cobra.ExactArgs(1),
	RunE:  runImportCSV,
}

func init() {
	rootCmd.AddCommand(importCSVCmd)
}

func runImportCSV(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	rows, err := ingest.ParseInventoryCSV(f)
	if err != nil {
		return fmt.Errorf("parse csv: %w", err)
	}

	// import-csv always activates the new manifest, archiving whatever was
	// previously active — there is no opt-out.
	ing := ingest.New(s, logger)
	res, err := ing.IngestBatch(ctx, rows, ingest.BatchOptions{
		Source:   domain.ImportSourceCSVUpload,
		FileName: args[0],
		Activate: true,
	})
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	logger.Info("import_csv_completed",
		slog.String("import_id", res.ImportID),
		slog.Int("row_count", res.RowCount),
		slog.Int("incomplete", res.Incomplete),
	)
	return nil
}
