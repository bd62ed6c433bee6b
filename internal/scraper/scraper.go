// Package scraper implements the Scraper Orchestrator (§4.3): a bounded
// pool that runs one worker per configured adapter, ingests each adapter's
// rows as its own batch into the session's single import manifest, and
// streams progress as
// ScraperEvents. It is bidengine.Engine/Worker generalized from "per-auction
// OCC worker" to "per-adapter scrape worker".
package scraper

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/ingest"
	"github.com/silverfox/cao-engine/internal/metrics"
	"github.com/silverfox/cao-engine/internal/realtime"
	"github.com/silverfox/cao-engine/internal/store"
	"golang.org/x/sync/errgroup"
)

// ErrDeadlineExceeded is the failure an adapter run reports when its soft
// deadline (§4.3) expires before it finishes producing rows. The adapter is
// cancelled and whatever rows it had buffered are discarded, not ingested.
var ErrDeadlineExceeded = errors.New("scraper: adapter exceeded its soft deadline")

// Adapter produces raw inventory rows for one dealership. Implementations
// close both channels when done; a non-nil error on the error channel ends
// the adapter's run.
type Adapter interface {
	Dealership() string
	Name() string
	Produce(ctx context.Context) (<-chan domain.RawVehicle, <-chan error)
	// ExpectedCountHint, if non-nil, seeds a session's progress total before
	// the first row arrives.
	ExpectedCountHint() *int
}

// defaultAdapterTimeout is the soft per-adapter deadline (§4.3).
const defaultAdapterTimeout = 15 * time.Minute

// Orchestrator runs every registered adapter once per session.
type Orchestrator struct {
	ingester *ingest.Ingester
	store    *store.Store
	broker   *realtime.Broker
	logger   *slog.Logger

	concurrency int
	adapterTO   time.Duration

	// dealershipLocks serializes ingest commits per (dealership, import_id),
	// mirroring the teacher's workers map keyed by auction ID instead of
	// dealership name.
	dealershipLocks   map[string]*sync.Mutex
	dealershipLocksMu sync.Mutex

	activeWorkers atomic.Int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency bounds how many adapters run at once. Default is
// runtime.NumCPU() clamped to [2,16] per spec.md §4.3.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.concurrency = n }
}

// WithAdapterTimeout overrides the per-adapter soft deadline.
func WithAdapterTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.adapterTO = d }
}

func New(ing *ingest.Ingester, s *store.Store, broker *realtime.Broker, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		ingester:        ing,
		store:           s,
		broker:          broker,
		logger:          logger,
		concurrency:     clamp(runtime.NumCPU(), 2, 16),
		adapterTO:       defaultAdapterTimeout,
		dealershipLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// SessionResult is the Orchestrator's outcome for one Run call.
type SessionResult struct {
	domain.ScraperSession
}

// Run fans out to every adapter, bounded by concurrency, and blocks until
// all have completed or their soft deadline expires.
func (o *Orchestrator) Run(ctx context.Context, adapters []Adapter) (SessionResult, error) {
	sessionID := uuid.NewString()
	importID := uuid.NewString()
	started := time.Now()

	if err := o.store.CreateManifest(ctx, domain.ImportManifest{
		ImportID: importID, ImportDate: started, ImportSource: domain.ImportSourceScrape,
	}); err != nil {
		return SessionResult{}, err
	}

	o.emit(domain.ScraperEvent{Type: "session_start", SessionID: sessionID, Timestamp: started})

	sem := make(chan struct{}, o.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	results := make([]domain.ScraperAdapterRun, len(adapters))
	for i, a := range adapters {
		i, a := i, a
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			o.activeWorkers.Add(1)
			metrics.ScraperWorkersActive.Set(float64(o.activeWorkers.Load()))
			defer func() {
				o.activeWorkers.Add(-1)
				metrics.ScraperWorkersActive.Set(float64(o.activeWorkers.Load()))
			}()

			results[i] = o.runAdapter(gctx, sessionID, importID, a)
			return nil // a failed adapter doesn't abort the session; it's recorded
		})
	}
	// errgroup.Wait's combined-error semantics apply if an adapter's own
	// goroutine panics or the parent context is cancelled; per-adapter
	// failures are captured in results instead of propagated.
	if err := g.Wait(); err != nil {
		o.logger.Error("scraper_session_aborted", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}

	totalVehicles := 0
	for _, r := range results {
		totalVehicles += r.VehicleCount
	}

	if err := o.activateManifest(ctx, importID); err != nil {
		o.logger.Error("scraper_manifest_activate_failed", slog.String("import_id", importID), slog.String("error", err.Error()))
	} else {
		metrics.ActiveManifestSwitchesTotal.Inc()
	}

	sess := domain.ScraperSession{
		SessionID:    sessionID,
		ImportID:     importID,
		StartedAt:    started,
		CompletedAt:  time.Now(),
		VehicleCount: totalVehicles,
		Adapters:     results,
	}

	if err := o.store.RecordScraperSession(ctx, sess); err != nil {
		o.logger.Error("scraper_session_record_failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}

	o.emit(domain.ScraperEvent{Type: "session_complete", SessionID: sessionID, VehiclesSoFar: totalVehicles, Timestamp: sess.CompletedAt})
	o.logger.Info("scraper_session_completed",
		slog.String("session_id", sessionID),
		slog.String("import_id", importID),
		slog.Int("vehicle_count", totalVehicles),
		slog.Duration("duration", sess.CompletedAt.Sub(started)),
	)

	return SessionResult{sess}, nil
}

// runAdapter drives one adapter to completion, buffering its rows and
// ingesting them through a single batch scoped to this session's import_id,
// serialized against any other adapter writing the same dealership.
func (o *Orchestrator) runAdapter(ctx context.Context, sessionID, importID string, a Adapter) domain.ScraperAdapterRun {
	started := time.Now()
	dealership := a.Dealership()
	name := a.Name()

	o.emit(domain.ScraperEvent{Type: "scraper_start", SessionID: sessionID, Adapter: name, TotalHint: a.ExpectedCountHint(), Timestamp: started})

	adapterCtx, cancel := context.WithTimeout(ctx, o.adapterTO)
	defer cancel()

	var rows []domain.RawVehicle
	var lastErr error
	deadlineExceeded := false
	errCount := 0

	rowsCh, errCh := a.Produce(adapterCtx)
loop:
	for {
		select {
		case v, ok := <-rowsCh:
			if !ok {
				rowsCh = nil
				if errCh == nil {
					break loop
				}
				continue
			}
			rows = append(rows, v)
			if len(rows)%25 == 0 {
				o.emit(domain.ScraperEvent{Type: "scraper_progress", SessionID: sessionID, Adapter: name, VehiclesSoFar: len(rows), ErrorsSoFar: errCount, Timestamp: time.Now()})
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				if rowsCh == nil {
					break loop
				}
				continue
			}
			if err != nil {
				lastErr = err
				errCount++
			}
		case <-adapterCtx.Done():
			deadlineExceeded = errors.Is(adapterCtx.Err(), context.DeadlineExceeded)
			lastErr = adapterCtx.Err()
			if deadlineExceeded {
				lastErr = ErrDeadlineExceeded
			}
			break loop
		}
	}

	run := domain.ScraperAdapterRun{
		SessionID:  sessionID,
		Adapter:    name,
		Dealership: dealership,
		StartedAt:  started,
	}

	// A deadline expiry cancels the adapter and discards whatever it had
	// buffered (§4.3); only a clean finish gets ingested.
	if len(rows) > 0 && !deadlineExceeded {
		o.withDealershipLock(dealership, func() {
			if _, err := o.ingester.IngestBatchInto(ctx, importID, withImportID(rows, importID), ingest.BatchOptions{Source: domain.ImportSourceScrape, FileName: name}); err != nil {
				lastErr = err
			}
		})
	}

	run.CompletedAt = time.Now()
	run.Success = lastErr == nil
	switch {
	case deadlineExceeded:
		run.VehicleCount = 0
		run.FailureReason = "deadline"
	case lastErr != nil:
		run.VehicleCount = len(rows)
		run.FailureReason = lastErr.Error()
	default:
		run.VehicleCount = len(rows)
	}
	run.DataClass = "real"
	if run.VehicleCount == 0 && !run.Success {
		run.DataClass = "fallback"
	}

	metrics.ScraperAdapterDuration.WithLabelValues(name, boolLabel(run.Success)).Observe(run.CompletedAt.Sub(started).Seconds())
	metrics.ScraperSessionVehiclesTotal.WithLabelValues(name, run.DataClass).Add(float64(run.VehicleCount))

	o.emit(domain.ScraperEvent{
		Type: "scraper_complete", SessionID: sessionID, Adapter: name,
		VehiclesSoFar: run.VehicleCount, ErrorsSoFar: errCount,
		Success: run.Success, FailureReason: run.FailureReason, DataClass: run.DataClass,
		Timestamp: run.CompletedAt,
	})

	return run
}

func withImportID(rows []domain.RawVehicle, importID string) []domain.RawVehicle {
	out := make([]domain.RawVehicle, len(rows))
	for i, r := range rows {
		r.ImportID = importID
		out[i] = r
	}
	return out
}

// activateManifest archives whatever manifest was previously active and
// activates importID, once every adapter's ingest has committed.
func (o *Orchestrator) activateManifest(ctx context.Context, importID string) error {
	tx, err := o.store.DB().Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if err := o.store.ActivateManifest(ctx, tx, importID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (o *Orchestrator) withDealershipLock(dealership string, fn func()) {
	o.dealershipLocksMu.Lock()
	lock, ok := o.dealershipLocks[dealership]
	if !ok {
		lock = &sync.Mutex{}
		o.dealershipLocks[dealership] = lock
	}
	o.dealershipLocksMu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	fn()
}

func (o *Orchestrator) emit(ev domain.ScraperEvent) {
	if o.broker != nil {
		o.broker.Broadcast(ev)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Stats reports the orchestrator's current activity for debug endpoints.
type Stats struct {
	ActiveWorkers int `json:"active_workers"`
	Concurrency   int `json:"concurrency"`
}

func (o *Orchestrator) Stats() Stats {
	return Stats{ActiveWorkers: int(o.activeWorkers.Load()), Concurrency: o.concurrency}
}
