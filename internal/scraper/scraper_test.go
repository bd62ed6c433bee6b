package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/stretchr/testify/assert"
)

// stallingAdapter emits a few rows then blocks forever, forcing its caller
// to hit the adapter's soft deadline rather than a clean finish.
type stallingAdapter struct {
	dealership string
	rows       []domain.RawVehicle
}

func (a stallingAdapter) Dealership() string  { return a.dealership }
func (a stallingAdapter) Name() string        { return "stalling" }
func (a stallingAdapter) ExpectedCountHint() *int { return nil }

func (a stallingAdapter) Produce(ctx context.Context) (<-chan domain.RawVehicle, <-chan error) {
	rowsCh := make(chan domain.RawVehicle, len(a.rows))
	errCh := make(chan error)
	for _, r := range a.rows {
		rowsCh <- r
	}
	// Neither channel is ever closed: the adapter hangs until its caller's
	// context is cancelled, simulating a stuck upstream source.
	return rowsCh, errCh
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 2, clamp(1, 2, 16))
	assert.Equal(t, 16, clamp(32, 2, 16))
	assert.Equal(t, 8, clamp(8, 2, 16))
}

func TestBoolLabel(t *testing.T) {
	assert.Equal(t, "true", boolLabel(true))
	assert.Equal(t, "false", boolLabel(false))
}

func TestWithImportID_StampsEveryRowWithoutMutatingInput(t *testing.T) {
	rows := []domain.RawVehicle{{VIN: "1"}, {VIN: "2", ImportID: "stale"}}
	out := withImportID(rows, "new-import")

	for _, r := range out {
		assert.Equal(t, "new-import", r.ImportID)
	}
	assert.Equal(t, "stale", rows[1].ImportID, "original slice must be left untouched")
}

func TestNewOrchestrator_DefaultConcurrencyIsClamped(t *testing.T) {
	o := New(nil, nil, nil, nil)
	assert.GreaterOrEqual(t, o.concurrency, 2)
	assert.LessOrEqual(t, o.concurrency, 16)
}

func TestNewOrchestrator_OptionsOverrideDefaults(t *testing.T) {
	o := New(nil, nil, nil, nil, WithConcurrency(4))
	assert.Equal(t, 4, o.concurrency)
}

func TestRunAdapter_DeadlineExceededDiscardsBufferedRowsAndSkipsIngest(t *testing.T) {
	o := New(nil, nil, nil, nil, WithAdapterTimeout(10*time.Millisecond))

	adapter := stallingAdapter{dealership: "acme-honda", rows: []domain.RawVehicle{{VIN: "1"}, {VIN: "2"}}}
	run := o.runAdapter(context.Background(), "session-1", "import-1", adapter)

	assert.False(t, run.Success)
	assert.Equal(t, "deadline", run.FailureReason)
	assert.Equal(t, 0, run.VehicleCount, "buffered rows must be discarded, not ingested")
}
