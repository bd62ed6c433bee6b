package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/silverfox/cao-engine/internal/domain"
)

// CreateOrderRun records an immutable Order Run (§4.6 step 4).
func (s *Store) CreateOrderRun(ctx context.Context, tx pgx.Tx, run domain.OrderRun) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_runs (run_id, dealership, mode, template_type, created_at,
			vehicle_count, csv_path, qr_dir, status, dry_run)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, run.RunID, run.Dealership, run.Mode, run.TemplateType, run.CreatedAt,
		run.VehicleCount, run.CSVPath, run.QRDir, run.Status, run.DryRun)
	return err
}

// MarkRunFilesEmittedNoLog flags a run where files were written but the
// VIN log append failed (§4.6 "Atomicity"), so an operator can recover it.
func (s *Store) MarkRunFilesEmittedNoLog(ctx context.Context, run domain.OrderRun) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_runs (run_id, dealership, mode, template_type, created_at,
			vehicle_count, csv_path, qr_dir, status, dry_run)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'FILES_EMITTED_NO_LOG',$9)
	`, run.RunID, run.Dealership, run.Mode, run.TemplateType, run.CreatedAt,
		run.VehicleCount, run.CSVPath, run.QRDir, run.DryRun)
	return err
}

// RecordScraperSession persists one orchestrator run's outcome.
func (s *Store) RecordScraperSession(ctx context.Context, sess domain.ScraperSession) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO scraper_sessions (session_id, import_id, started_at, completed_at, vehicle_count)
		VALUES ($1,$2,$3,$4,$5)
	`, sess.SessionID, sess.ImportID, sess.StartedAt, sess.CompletedAt, sess.VehicleCount); err != nil {
		return err
	}
	for _, a := range sess.Adapters {
		if _, err := tx.Exec(ctx, `
			INSERT INTO scraper_adapter_runs (session_id, adapter, dealership, success,
				failure_reason, vehicle_count, data_class, started_at, completed_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, a.SessionID, a.Adapter, a.Dealership, a.Success, nilIfEmpty(a.FailureReason),
			a.VehicleCount, nilIfEmpty(a.DataClass), a.StartedAt, a.CompletedAt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
