package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var toggleImportCmd = &cobra.Command{
	Use:   "toggle-import [import-id]",
	Short: "Archive or reactivate a manifest without re-ingesting it",
	Args:  cobra.ExactArgs(1),
	RunE:  runToggleImport,
}

func init() {
	rootCmd.AddCommand(toggleImportCmd)
	toggleImportCmd.Flags().String("status", string(domain.ManifestArchived), "manifest status: active or archived")
	_ = viper.BindPFlag("toggle_import.status", toggleImportCmd.Flags().Lookup("status"))
}

func runToggleImport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	importID := args[0]
	status := domain.ManifestStatus(viper.GetString("toggle_import.status"))
	if status != domain.ManifestActive && status != domain.ManifestArchived {
		return fmt.Errorf("status must be active or archived, got %q", status)
	}

	if err := s.ToggleImportStatus(ctx, importID, status); err != nil {
		return fmt.Errorf("toggle import status: %w", err)
	}

	logger.Info("toggle_import_completed", slog.String("import_id", importID), slog.String("status", string(status)))
	return nil
}
