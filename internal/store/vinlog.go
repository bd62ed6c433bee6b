package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/silverfox/cao-engine/internal/domain"
)

// DealershipVINLog returns every VIN log entry for one dealership, newest
// first, used by the resolver's local (rule 1-3, 5) lookups.
func (s *Store) DealershipVINLog(ctx context.Context, dealership string) ([]domain.VINLogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, dealership, vin, order_number, processed_date, order_type, vehicle_type
		FROM vin_log WHERE dealership = $1
		ORDER BY processed_date DESC
	`, dealership)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVINLog(rows)
}

// CrossDealershipVINs returns, keyed by VIN, every log entry written by a
// dealership other than excludeDealership; excludeDealership's own entries
// are not included
// (§4.5 rule 4: "consults the union of all dealerships' VIN logs").
func (s *Store) CrossDealershipVINs(ctx context.Context, excludeDealership string) (map[string][]domain.VINLogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, dealership, vin, order_number, processed_date, order_type, vehicle_type
		FROM vin_log WHERE dealership != $1
	`, excludeDealership)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries, err := scanVINLog(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]domain.VINLogEntry, len(entries))
	for _, e := range entries {
		out[e.VIN] = append(out[e.VIN], e)
	}
	return out, nil
}

func scanVINLog(rows pgx.Rows) ([]domain.VINLogEntry, error) {
	out := make([]domain.VINLogEntry, 0)
	for rows.Next() {
		var e domain.VINLogEntry
		if err := rows.Scan(&e.ID, &e.Dealership, &e.VIN, &e.OrderNumber, &e.ProcessedDate, &e.OrderType, &e.VehicleType); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendVINLogEntries writes the Emitter's post-success VIN log rows in a
// single transaction (§4.6 step 3). The BASELINE uniqueness invariant
// ((dealership, vin, order_date) unique) is enforced at the schema level;
// CAO/LIST rows for the same VIN across different dates are permitted.
func (s *Store) AppendVINLogEntries(ctx context.Context, tx pgx.Tx, entries []domain.VINLogEntry) error {
	for _, e := range entries {
		if _, err := tx.Exec(ctx, `
			INSERT INTO vin_log (dealership, vin, order_number, processed_date, order_type, vehicle_type)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, e.Dealership, e.VIN, e.OrderNumber, e.ProcessedDate, e.OrderType, e.VehicleType); err != nil {
			return err
		}
	}
	return nil
}

// VINLogImportOptions controls ImportVINLog, which bulk-appends VIN log rows
// from an operator upload (`import_vin_log`). A row whose (dealership, vin,
// processed_date) already exists is updated in place when UpdateExisting is
// set and skipped otherwise, whether or not SkipDuplicates is set.
type VINLogImportOptions struct {
	SkipDuplicates bool
	UpdateExisting bool
}

// VINLogImportCounts reports the outcome of a bulk VIN log import.
type VINLogImportCounts struct {
	Inserted int
	Skipped  int
	Updated  int
}

func (s *Store) ImportVINLog(ctx context.Context, dealership string, entries []domain.VINLogEntry, opts VINLogImportOptions) (VINLogImportCounts, error) {
	var counts VINLogImportCounts
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return counts, err
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		e.Dealership = dealership
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM vin_log WHERE dealership = $1 AND vin = $2 AND processed_date = $3)
		`, e.Dealership, e.VIN, e.ProcessedDate).Scan(&exists); err != nil {
			return counts, err
		}
		switch {
		case exists && opts.UpdateExisting:
			if _, err := tx.Exec(ctx, `
				UPDATE vin_log SET order_number = $4, order_type = $5, vehicle_type = $6
				WHERE dealership = $1 AND vin = $2 AND processed_date = $3
			`, e.Dealership, e.VIN, e.ProcessedDate, e.OrderNumber, e.OrderType, e.VehicleType); err != nil {
				return counts, err
			}
			counts.Updated++
		case exists && opts.SkipDuplicates:
			counts.Skipped++
		case exists:
			counts.Skipped++
		default:
			if _, err := tx.Exec(ctx, `
				INSERT INTO vin_log (dealership, vin, order_number, processed_date, order_type, vehicle_type)
				VALUES ($1,$2,$3,$4,$5,$6)
			`, e.Dealership, e.VIN, e.OrderNumber, e.ProcessedDate, e.OrderType, e.VehicleType); err != nil {
				return counts, err
			}
			counts.Inserted++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return counts, err
	}
	return counts, nil
}

// ExportVINLog returns the full log for a dealership, oldest first, for the
// `export_vin_log` CSV download.
func (s *Store) ExportVINLog(ctx context.Context, dealership string) ([]domain.VINLogEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, dealership, vin, order_number, processed_date, order_type, vehicle_type
		FROM vin_log WHERE dealership = $1
		ORDER BY processed_date ASC
	`, dealership)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVINLog(rows)
}
