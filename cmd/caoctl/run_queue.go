package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/emit"
	"github.com/silverfox/cao-engine/internal/queue"
	"github.com/silverfox/cao-engine/internal/resolver"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runQueueCmd = &cobra.Command{
	Use:   "run-queue",
	Short: "Resolve and emit one dealership's order",
	RunE:  runRunQueue,
}

func init() {
	rootCmd.AddCommand(runQueueCmd)

	runQueueCmd.Flags().String("dealership", "", "dealership name (required)")
	runQueueCmd.Flags().String("mode", string(domain.ModeCAO), "order mode: CAO or LIST")
	runQueueCmd.Flags().String("template", string(domain.TemplateWindshield), "template type")
	runQueueCmd.Flags().StringSlice("vins", nil, "VINs for LIST mode")
	runQueueCmd.Flags().Bool("skip-vin-logging", false, "dry run: write artifacts but skip the VIN log and order run record")
	runQueueCmd.Flags().Int("quantity", 1, "rows to expand each included vehicle into on the printed CSV")
	_ = runQueueCmd.MarkFlagRequired("dealership")

	_ = viper.BindPFlag("run_queue.dealership", runQueueCmd.Flags().Lookup("dealership"))
	_ = viper.BindPFlag("run_queue.mode", runQueueCmd.Flags().Lookup("mode"))
	_ = viper.BindPFlag("run_queue.template", runQueueCmd.Flags().Lookup("template"))
	_ = viper.BindPFlag("run_queue.skip_vin_logging", runQueueCmd.Flags().Lookup("skip-vin-logging"))
	_ = viper.BindPFlag("run_queue.quantity", runQueueCmd.Flags().Lookup("quantity"))
}

func runRunQueue(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	s, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	vins, _ := cmd.Flags().GetStringSlice("vins")
	job := domain.Job{
		Dealership:     viper.GetString("run_queue.dealership"),
		Mode:           domain.OrderMode(viper.GetString("run_queue.mode")),
		TemplateType:   domain.TemplateType(viper.GetString("run_queue.template")),
		VINs:           vins,
		SkipVINLogging: viper.GetBool("run_queue.skip_vin_logging"),
		Quantity:       viper.GetInt("run_queue.quantity"),
	}

	res := resolver.New(s, logger)
	emitter := emit.New(s, logger, viper.GetString("qr_output_root"))
	p := queue.New(s, res, emitter, logger, queue.WithWorkers(1), queue.WithQueueSize(1))
	p.Start()
	defer p.Stop()

	result, err := p.SubmitAndWait(ctx, job)
	if err != nil {
		return fmt.Errorf("run queue: %w", err)
	}

	logger.Info("run_queue_completed",
		slog.String("dealership", result.Dealership),
		slog.String("status", string(result.Status)),
		slog.Int("vehicle_count", result.VehicleCount),
		slog.String("csv_path", result.CSVPath),
	)
	if !result.Success {
		return fmt.Errorf("job failed: %s", result.Error)
	}
	return nil
}
