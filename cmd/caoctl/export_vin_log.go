package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var vinLogExportColumns = []string{"vin", "order_number", "processed_date", "order_type", "vehicle_type"}

var exportVINLogCmd = &cobra.Command{
	Use:   "export-vin-log [dealership]",
	Short: "Write a dealership's VIN log to a CSV file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExportVINLog,
}

func init() {
	rootCmd.AddCommand(exportVINLogCmd)
	exportVINLogCmd.Flags().String("out", "", "output file path (default stdout)")
	_ = viper.BindPFlag("export_vin_log.out", exportVINLogCmd.Flags().Lookup("out"))
}

func runExportVINLog(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	dealership := args[0]
	entries, err := s.ExportVINLog(ctx, dealership)
	if err != nil {
		return fmt.Errorf("export vin log: %w", err)
	}

	out := os.Stdout
	if path := viper.GetString("export_vin_log.out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}

	w := csv.NewWriter(out)
	if err := w.Write(vinLogExportColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		record := []string{
			e.VIN,
			e.OrderNumber,
			e.ProcessedDate.Format("2006-01-02"),
			string(e.OrderType),
			string(e.VehicleType),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	logger.Info("export_vin_log_completed", slog.String("dealership", dealership), slog.Int("row_count", len(entries)))
	return nil
}
