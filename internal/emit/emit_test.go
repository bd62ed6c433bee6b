package emit

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func vehicle(vin string, vt domain.VehicleType) domain.Vehicle {
	return domain.Vehicle{VIN: vin, Stock: "S-" + vin, Make: "Honda", Model: "Accord", VehicleType: vt}
}

func TestResolveSize_EmptyMapUsesStandardForEveryVehicle(t *testing.T) {
	size, err := resolveSize([]domain.Vehicle{vehicle("1", domain.VehicleTypeNew), vehicle("2", domain.VehicleTypeUsed)}, nil)
	require.NoError(t, err)
	assert.Equal(t, defaultSize, size)
}

func TestResolveSize_MixedSizesRejected(t *testing.T) {
	mapping := map[domain.VehicleType]string{
		domain.VehicleTypeNew:  "Large",
		domain.VehicleTypeUsed: "Small",
	}
	_, err := resolveSize([]domain.Vehicle{vehicle("1", domain.VehicleTypeNew), vehicle("2", domain.VehicleTypeUsed)}, mapping)
	assert.ErrorIs(t, err, ErrMixedSizeRejected)
}

func TestResolveSize_UniformSizeAccepted(t *testing.T) {
	mapping := map[domain.VehicleType]string{
		domain.VehicleTypeNew: "Large",
	}
	size, err := resolveSize([]domain.Vehicle{vehicle("1", domain.VehicleTypeNew), vehicle("2", domain.VehicleTypeNew)}, mapping)
	require.NoError(t, err)
	assert.Equal(t, "Large", size)
}

func TestQRPayload_DefaultsToVIN(t *testing.T) {
	v := vehicle("1HGCM82633A004352", domain.VehicleTypeUsed)
	assert.Equal(t, v.VIN, qrPayload(v, domain.OutputRules{}))
}

func TestQRPayload_SubstitutesIntoURLTemplate(t *testing.T) {
	v := vehicle("1HGCM82633A004352", domain.VehicleTypeUsed)
	rules := domain.OutputRules{URLTemplate: "https://inventory.example.com/v/{vin}"}
	assert.Equal(t, "https://inventory.example.com/v/1HGCM82633A004352", qrPayload(v, rules))
}

func TestQRPayload_UsesStockWhenConfigured(t *testing.T) {
	v := vehicle("1HGCM82633A004352", domain.VehicleTypeUsed)
	rules := domain.OutputRules{URLTemplate: "https://inventory.example.com/v/{vin}", PayloadField: "stock"}
	assert.Equal(t, "https://inventory.example.com/v/"+v.Stock, qrPayload(v, rules))
}

func TestWriteCSV_AlwaysQuotesFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order.csv")
	e := &Emitter{}
	v := vehicle("1HGCM82633A004352", domain.VehicleTypeUsed)
	v.PriceFormatted = "$23,500"

	require.NoError(t, e.writeCSV(path, []domain.Vehicle{v}, Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, `"vin"`)
	assert.Contains(t, content, `"1HGCM82633A004352"`)
	assert.Contains(t, content, `"$23,500"`)
	assert.Contains(t, content, "\r\n")
}

func TestWriteCSV_ExpandsEachVehicleIntoQuantityRowsOfQuantityOne(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "order.csv")
	e := &Emitter{}
	v := vehicle("1HGCM82633A004352", domain.VehicleTypeUsed)

	require.NoError(t, e.writeCSV(path, []domain.Vehicle{v}, Options{Quantity: 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\r\n")
	require.Len(t, lines, 4, "header plus 3 expanded rows")
	for _, line := range lines[1:] {
		assert.True(t, strings.HasSuffix(line, `"1"`), "quantity column must always be 1, got %q", line)
	}
}

func TestWriteArtifacts_ProducesCSVAndOneQRPerVehicle(t *testing.T) {
	root := t.TempDir()
	e := New(nil, discardLogger(), root)

	vehicles := []domain.Vehicle{vehicle("1HGCM82633A004352", domain.VehicleTypeUsed), vehicle("5YJ3E1EA6KF000002", domain.VehicleTypeNew)}
	runDir := filepath.Join(root, "acme-honda", "run-1")

	csvPath, err := e.writeArtifacts(vehicles, runDir, Options{Dealership: "acme-honda"})
	require.NoError(t, err)

	assert.FileExists(t, csvPath)
	for _, v := range vehicles {
		assert.FileExists(t, filepath.Join(runDir, sanitizeSegment(v.VIN)+".png"))
	}

	entries, err := os.ReadDir(filepath.Dir(runDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-1", entries[0].Name(), "temp directory should have been renamed into place, not left behind")
}

func TestEmit_NoIncludedVehiclesSucceedsWithoutWritingFiles(t *testing.T) {
	root := t.TempDir()
	e := New(nil, discardLogger(), root)

	run, err := e.Emit(context.Background(), domain.Resolution{Dealership: "acme-honda"}, Options{Dealership: "acme-honda", Mode: domain.ModeCAO})
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, 0, run.VehicleCount)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEmit_MixedSizeRejectionStopsBeforeWritingFiles(t *testing.T) {
	root := t.TempDir()
	e := New(nil, discardLogger(), root)

	res := domain.Resolution{
		Dealership: "acme-honda",
		Included:   []domain.Vehicle{vehicle("1", domain.VehicleTypeNew), vehicle("2", domain.VehicleTypeUsed)},
	}
	opts := Options{
		Dealership: "acme-honda",
		Mode:       domain.ModeCAO,
		Rules: domain.OutputRules{SizeByType: map[domain.VehicleType]string{
			domain.VehicleTypeNew:  "Large",
			domain.VehicleTypeUsed: "Small",
		}},
	}

	_, err := e.Emit(context.Background(), res, opts)
	assert.ErrorIs(t, err, ErrMixedSizeRejected)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "no artifacts should be written when the size check fails")
}

func TestEmit_DryRunWritesUnderDrySubpathAndSkipsPersistence(t *testing.T) {
	root := t.TempDir()
	e := New(nil, discardLogger(), root)

	res := domain.Resolution{Dealership: "acme-honda", Included: []domain.Vehicle{vehicle("1HGCM82633A004352", domain.VehicleTypeUsed)}}
	opts := Options{Dealership: "acme-honda", Mode: domain.ModeCAO, DryRun: true}

	run, err := e.Emit(context.Background(), res, opts)
	require.NoError(t, err)
	assert.True(t, run.DryRun)
	assert.Contains(t, run.CSVPath, filepath.Join(root, "dry", "acme-honda"))
	assert.FileExists(t, run.CSVPath)
}
