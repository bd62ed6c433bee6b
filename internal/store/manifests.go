package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/silverfox/cao-engine/internal/domain"
)

// CreateManifest inserts a new manifest in archived state; it becomes
// active only once Activate is called after all rows for it have
// committed (§4.2, §4.3: "manifest is activated only once all ingests
// have committed").
func (s *Store) CreateManifest(ctx context.Context, m domain.ImportManifest) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO import_manifests (import_id, import_date, import_source, file_name, status, vehicle_count)
		VALUES ($1, $2, $3, $4, 'archived', 0)
	`, m.ImportID, m.ImportDate, m.ImportSource, nilIfEmpty(m.FileName))
	return err
}

// ActivateManifest atomically archives the prior active manifest (if any)
// and activates importID, inside tx so the switch is linearizable with
// concurrent CAO resolutions per §5.
func (s *Store) ActivateManifest(ctx context.Context, tx pgx.Tx, importID string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE import_manifests SET status = 'archived' WHERE status = 'active'
	`); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		UPDATE import_manifests SET status = 'active' WHERE import_id = $1
	`, importID)
	return err
}

// ToggleImportStatus implements the operator `toggle_import_status` call.
// Activating archives whatever was previously active; archiving a manifest
// that isn't active is a no-op beyond the status flip.
func (s *Store) ToggleImportStatus(ctx context.Context, importID string, status domain.ManifestStatus) error {
	if status == domain.ManifestActive {
		tx, err := s.db.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)
		if err := s.ActivateManifest(ctx, tx, importID); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}
	_, err := s.db.Exec(ctx, `UPDATE import_manifests SET status = 'archived' WHERE import_id = $1`, importID)
	return err
}

// ActiveManifest returns a snapshot of the currently active manifest.
// Callers that drive the Resolver capture this once at job start (§9,
// "Global mutable state") so a mid-run manifest switch can't split a
// single resolution.
func (s *Store) ActiveManifest(ctx context.Context) (domain.ImportManifest, error) {
	var m domain.ImportManifest
	var fileName *string
	err := s.db.QueryRow(ctx, `
		SELECT import_id, import_date, import_source, file_name, status, vehicle_count
		FROM import_manifests WHERE status = 'active'
		ORDER BY import_date DESC LIMIT 1
	`).Scan(&m.ImportID, &m.ImportDate, &m.ImportSource, &fileName, &m.Status, &m.VehicleCount)
	if err != nil {
		if err == pgxNoRows {
			return domain.ImportManifest{}, ErrNotFound
		}
		return domain.ImportManifest{}, err
	}
	if fileName != nil {
		m.FileName = *fileName
	}
	return m, nil
}

// SetManifestVehicleCount adds one ingest batch's row count to importID's
// vehicle_count, inside that batch's transaction, so the total accumulates
// across every batch written into the manifest.
func (s *Store) SetManifestVehicleCount(ctx context.Context, tx pgx.Tx, importID string, count int) error {
	_, err := tx.Exec(ctx, `UPDATE import_manifests SET vehicle_count = vehicle_count + $2 WHERE import_id = $1`, importID, count)
	return err
}

var pgxNoRows = pgx.ErrNoRows

func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
