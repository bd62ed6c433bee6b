// Package ingest implements the transactional batch ingest pipeline (§4.2):
// raw rows land in raw_vehicles unmodified, each is normalized, the
// normalized row is upserted into vehicles, and the manifest's vehicle
// count is updated — all inside one transaction per batch so a partial
// failure leaves neither table ahead of the other.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/metrics"
	"github.com/silverfox/cao-engine/internal/normalize"
	"github.com/silverfox/cao-engine/internal/store"
	"github.com/silverfox/cao-engine/internal/tracing"
)

// Ingester drives one manifest's worth of raw rows into durable storage.
type Ingester struct {
	store  *store.Store
	logger *slog.Logger
}

func New(s *store.Store, logger *slog.Logger) *Ingester {
	return &Ingester{store: s, logger: logger}
}

// Result summarizes one batch's outcome.
type Result struct {
	ImportID   string
	RowCount   int
	Warnings   map[string][]domain.NormalizeWarning // keyed by VIN
	Incomplete int
}

// BatchOptions controls how IngestBatch creates or reuses a manifest.
type BatchOptions struct {
	Source   domain.ImportSource
	FileName string
	// Activate, when true, atomically archives the previous active
	// manifest and activates this one once every row has committed
	// (§4.2, §4.3: "activated only once all ingests have committed").
	Activate bool
}

// IngestBatch creates a new manifest and writes one batch's rows into it
// atomically, optionally activating the manifest in the same transaction.
func (ig *Ingester) IngestBatch(ctx context.Context, rows []domain.RawVehicle, opts BatchOptions) (Result, error) {
	importID := uuid.NewString()
	if err := ig.store.CreateManifest(ctx, domain.ImportManifest{
		ImportID:     importID,
		ImportDate:   time.Now(),
		ImportSource: opts.Source,
		FileName:     opts.FileName,
	}); err != nil {
		return Result{}, fmt.Errorf("ingest: create manifest: %w", err)
	}
	return ig.IngestBatchInto(ctx, importID, rows, opts)
}

// IngestBatchInto writes one batch's rows into an already-created
// manifest. The Scraper Orchestrator uses this to fan multiple adapters'
// rows into the single import_id allocated at session start (§4.3: "one
// manifest per session"); SetManifestVehicleCount accumulates across
// calls so each adapter's contribution adds rather than overwrites.
func (ig *Ingester) IngestBatchInto(ctx context.Context, importID string, rows []domain.RawVehicle, opts BatchOptions) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "ingest.batch")
	defer span.End()

	start := time.Now()
	now := time.Now()

	res := Result{ImportID: importID, Warnings: make(map[string][]domain.NormalizeWarning)}

	err := store.WithRetry(ctx, isTransient, func(ctx context.Context) error {
		return ig.runBatchTx(ctx, rows, importID, now, opts, &res)
	})
	if err != nil {
		ig.logger.Error("ingest_batch_failed", slog.String("import_id", importID), slog.String("error", err.Error()))
		return Result{}, err
	}

	metrics.IngestBatchDuration.WithLabelValues(string(opts.Source)).Observe(time.Since(start).Seconds())
	if opts.Activate {
		metrics.ActiveManifestSwitchesTotal.Inc()
	}
	ig.logger.Info("ingest_batch_completed",
		slog.String("import_id", importID),
		slog.Int("row_count", res.RowCount),
		slog.Int("incomplete", res.Incomplete),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}

func (ig *Ingester) runBatchTx(ctx context.Context, rows []domain.RawVehicle, importID string, now time.Time, opts BatchOptions, res *Result) error {
	tx, err := ig.store.DB().Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	perLocation := make(map[string]int)
	for _, raw := range rows {
		raw.ImportID = importID
		if raw.TimeScraped.IsZero() {
			raw.TimeScraped = now
		}

		if err := ig.store.InsertRawVehicle(ctx, tx, raw); err != nil {
			return fmt.Errorf("insert raw vehicle %s: %w", raw.VIN, err)
		}

		vehicle, warnings := normalize.Normalize(raw, now)
		if len(warnings) > 0 {
			res.Warnings[vehicle.VIN] = warnings
		}
		if vehicle.Incomplete {
			res.Incomplete++
		}

		if err := ig.store.UpsertNormalizedVehicle(ctx, tx, vehicle); err != nil {
			return fmt.Errorf("upsert vehicle %s: %w", raw.VIN, err)
		}

		perLocation[vehicle.Location]++
		res.RowCount++
		metrics.IngestRowsTotal.WithLabelValues(vehicle.Location, "upserted").Inc()
	}

	if err := ig.store.SetManifestVehicleCount(ctx, tx, importID, res.RowCount); err != nil {
		return fmt.Errorf("set manifest vehicle count: %w", err)
	}

	if opts.Activate {
		if err := ig.store.ActivateManifest(ctx, tx, importID); err != nil {
			return fmt.Errorf("activate manifest: %w", err)
		}
	}

	for location, count := range perLocation {
		metrics.VehiclesTotal.WithLabelValues(location).Add(float64(count))
	}

	return tx.Commit(ctx)
}

// isTransient decides which Store failures are worth one internal retry
// (§7 StoreUnavailable). pgx connection-level failures surface as
// *pgconn.PgError only for constraint violations; anything else (network
// resets, pool exhaustion) is treated as transient here.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var pgErr interface{ SQLState() string }
	if ok := asPgError(err, &pgErr); ok {
		return false
	}
	return true
}

func asPgError(err error, target *interface{ SQLState() string }) bool {
	type sqlStater interface{ SQLState() string }
	for err != nil {
		if s, ok := err.(sqlStater); ok {
			*target = s
			return true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrapper.Unwrap()
	}
	return false
}
