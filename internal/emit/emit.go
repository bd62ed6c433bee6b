// Package emit implements the Artifact Emitter (§4.6): given a resolved
// set of vehicles, it writes a print-ready CSV and one QR PNG per vehicle,
// enforces the static-size constraint, and — unless running dry — appends
// the VIN log and records an immutable Order Run in the same transaction.
package emit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/metrics"
	"github.com/silverfox/cao-engine/internal/store"
	"github.com/silverfox/cao-engine/internal/tracing"
)

// ErrMixedSizeRejected is returned when a single run's included vehicles
// resolve to more than one print size under the dealership's SizeByType
// mapping (§4.6 "static-size constraint").
var ErrMixedSizeRejected = errors.New("emit: run contains more than one print size")

const defaultSize = "Standard"

// Emitter writes CSV and QR artifacts and records the outcome.
type Emitter struct {
	store    *store.Store
	logger   *slog.Logger
	rootPath string
	now      func() time.Time
}

func New(s *store.Store, logger *slog.Logger, rootPath string) *Emitter {
	return &Emitter{store: s, logger: logger, rootPath: rootPath, now: time.Now}
}

// Options controls one emit invocation.
type Options struct {
	Dealership   string
	Mode         domain.OrderMode
	TemplateType domain.TemplateType
	Rules        domain.OutputRules
	// DryRun writes artifacts under a /dry/ subpath and skips the VIN log
	// append and Order Run record entirely (§4.6 "dry-run mode").
	DryRun bool
	// Quantity is the operator-specified N each included vehicle expands
	// into on the printed CSV (§4.6 item 2, "variable-data rule"). Zero
	// or negative means 1 (one row per vehicle).
	Quantity int
}

// Run is the outcome of one Emit call.
type Run struct {
	domain.OrderRun
}

// Emit writes one dealership's resolved vehicles to disk and, unless
// DryRun, durably logs them.
func (e *Emitter) Emit(ctx context.Context, res domain.Resolution, opts Options) (Run, error) {
	ctx, span := tracing.StartSpan(ctx, "emit.run")
	defer span.End()
	start := e.now()

	if len(res.Included) == 0 {
		run := domain.OrderRun{
			RunID: uuid.NewString(), Dealership: opts.Dealership, Mode: opts.Mode,
			TemplateType: opts.TemplateType, CreatedAt: start, Status: domain.RunStatusSucceeded, DryRun: opts.DryRun,
		}
		metrics.EmitRunsTotal.WithLabelValues(opts.Dealership, string(run.Status)).Inc()
		return Run{run}, nil
	}

	size, err := resolveSize(res.Included, opts.Rules.SizeByType)
	if err != nil {
		metrics.EmitRunsTotal.WithLabelValues(opts.Dealership, "rejected").Inc()
		return Run{}, err
	}

	runID := uuid.NewString()
	runDir := filepath.Join(e.rootPath, sanitizeSegment(opts.Dealership), runID)
	if opts.DryRun {
		runDir = filepath.Join(e.rootPath, "dry", sanitizeSegment(opts.Dealership), runID)
	}
	csvPath, err := e.writeArtifacts(res.Included, runDir, opts)
	if err != nil {
		metrics.EmitRunsTotal.WithLabelValues(opts.Dealership, "failed").Inc()
		return Run{}, err
	}

	run := domain.OrderRun{
		RunID:        runID,
		Dealership:   opts.Dealership,
		Mode:         opts.Mode,
		TemplateType: opts.TemplateType,
		CreatedAt:    start,
		VehicleCount: len(res.Included),
		CSVPath:      csvPath,
		QRDir:        runDir,
		Status:       domain.RunStatusSucceeded,
		DryRun:       opts.DryRun,
	}

	if opts.DryRun {
		metrics.EmitRunsTotal.WithLabelValues(opts.Dealership, string(run.Status)).Inc()
		e.logger.Info("emit_dry_run_completed", slog.String("dealership", opts.Dealership), slog.Int("vehicle_count", run.VehicleCount), slog.String("size", size))
		return Run{run}, nil
	}

	if err := e.commit(ctx, res.Included, run, opts); err != nil {
		// Files are already on disk; record the partial outcome so an
		// operator can recover the run instead of silently losing it.
		run.Status = domain.RunStatusFilesEmittedNoLog
		if markErr := e.store.MarkRunFilesEmittedNoLog(ctx, run); markErr != nil {
			e.logger.Error("emit_mark_files_emitted_no_log_failed", slog.String("run_id", runID), slog.String("error", markErr.Error()))
		}
		metrics.EmitRunsTotal.WithLabelValues(opts.Dealership, string(run.Status)).Inc()
		return Run{run}, fmt.Errorf("emit: commit vin log and order run: %w", err)
	}

	metrics.EmitRunsTotal.WithLabelValues(opts.Dealership, string(run.Status)).Inc()
	e.logger.Info("emit_run_completed",
		slog.String("dealership", opts.Dealership),
		slog.String("run_id", runID),
		slog.Int("vehicle_count", run.VehicleCount),
		slog.Duration("duration", e.now().Sub(start)),
	)
	return Run{run}, nil
}

// commit appends the VIN log and records the Order Run in one transaction,
// so a durable log entry never exists without its run record or vice versa.
func (e *Emitter) commit(ctx context.Context, vehicles []domain.Vehicle, run domain.OrderRun, opts Options) error {
	tx, err := e.store.DB().Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	orderType := domain.OrderTypeCAO
	if opts.Mode == domain.ModeList {
		orderType = domain.OrderTypeList
	}

	entries := make([]domain.VINLogEntry, 0, len(vehicles))
	for _, v := range vehicles {
		entries = append(entries, domain.VINLogEntry{
			Dealership:    opts.Dealership,
			VIN:           v.VIN,
			OrderNumber:   run.RunID,
			ProcessedDate: run.CreatedAt,
			OrderType:     orderType,
			VehicleType:   v.VehicleType,
		})
	}
	if err := e.store.AppendVINLogEntries(ctx, tx, entries); err != nil {
		return fmt.Errorf("append vin log: %w", err)
	}
	metrics.VINLogAppendsTotal.WithLabelValues(opts.Dealership, string(orderType)).Add(float64(len(entries)))

	if err := e.store.CreateOrderRun(ctx, tx, run); err != nil {
		return fmt.Errorf("create order run: %w", err)
	}

	return tx.Commit(ctx)
}

// writeArtifacts writes the CSV and per-vehicle QR PNGs into a temp
// sibling of runDir, then renames it into place, so a reader never sees a
// partially written run directory (§4.6 "atomicity": temp-dir-then-rename).
func (e *Emitter) writeArtifacts(vehicles []domain.Vehicle, runDir string, opts Options) (string, error) {
	parent := filepath.Dir(runDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", fmt.Errorf("emit: mkdir %s: %w", parent, err)
	}
	tmpDir, err := os.MkdirTemp(parent, ".emit-*")
	if err != nil {
		return "", fmt.Errorf("emit: mkdtemp: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	csvPath := filepath.Join(tmpDir, "order.csv")
	if err := e.writeCSV(csvPath, vehicles, opts); err != nil {
		return "", err
	}

	for _, v := range vehicles {
		payload := qrPayload(v, opts.Rules)
		qrPath := filepath.Join(tmpDir, sanitizeSegment(v.VIN)+".png")
		if err := writeQRFile(qrPath, payload); err != nil {
			return "", fmt.Errorf("emit: qr for %s: %w", v.VIN, err)
		}
		metrics.EmitQRGeneratedTotal.WithLabelValues(opts.Dealership).Inc()
	}

	if err := os.Rename(tmpDir, runDir); err != nil {
		return "", fmt.Errorf("emit: rename into place: %w", err)
	}

	return filepath.Join(runDir, "order.csv"), nil
}

func writeQRFile(path, payload string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeQRPNG(f, payload)
}

// writeCSV implements the variable-data rule (§4.6 item 2, §6): one row per
// physical item, each logical vehicle expanded into opts.Quantity identical
// rows with the "quantity" column always 1.
func (e *Emitter) writeCSV(path string, vehicles []domain.Vehicle, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fields := opts.Rules.Fields
	if len(fields) == 0 {
		fields = defaultFields
	}

	quantity := opts.Quantity
	if quantity < 1 {
		quantity = 1
	}

	w := newAlwaysQuoteWriter(f)
	if err := w.WriteRow(fields); err != nil {
		return err
	}
	for _, v := range vehicles {
		row := make([]string, len(fields))
		for i, field := range fields {
			row[i] = fieldValue(v, field)
		}
		for n := 0; n < quantity; n++ {
			if err := w.WriteRow(row); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

var defaultFields = []string{"vin", "stock", "year", "make", "model", "trim", "price", "mileage", "quantity"}

func fieldValue(v domain.Vehicle, field string) string {
	switch field {
	case "vin":
		return v.VIN
	case "stock":
		return v.Stock
	case "year":
		if v.Year == nil {
			return ""
		}
		return strconv.Itoa(*v.Year)
	case "make":
		return v.Make
	case "model":
		return v.Model
	case "trim":
		return v.Trim
	case "price":
		return v.PriceFormatted
	case "mileage":
		return v.MileageFormatted
	case "vehicle_type":
		return string(v.VehicleType)
	case "exterior_color":
		return v.ExteriorColor
	case "vehicle_url":
		return v.VehicleURL
	case "quantity":
		return "1"
	default:
		return ""
	}
}

// qrPayload builds the URL a scanned QR code opens by replacing the "{vin}"
// placeholder in the dealership's configured template with the VIN, or with
// the stock number when PayloadField is "stock".
func qrPayload(v domain.Vehicle, rules domain.OutputRules) string {
	key := v.VIN
	if rules.PayloadField == "stock" {
		key = v.Stock
	}
	if rules.URLTemplate == "" {
		return key
	}
	return strings.ReplaceAll(rules.URLTemplate, "{vin}", key)
}

// resolveSize maps every included vehicle to its configured print size and
// enforces that a single run never mixes sizes.
func resolveSize(vehicles []domain.Vehicle, sizeByType map[domain.VehicleType]string) (string, error) {
	seen := map[string]struct{}{}
	for _, v := range vehicles {
		size := defaultSize
		if s, ok := sizeByType[v.VehicleType]; ok && s != "" {
			size = s
		}
		seen[size] = struct{}{}
		if len(seen) > 1 {
			return "", ErrMixedSizeRejected
		}
	}
	for size := range seen {
		return size, nil
	}
	return defaultSize, nil
}

func sanitizeSegment(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
