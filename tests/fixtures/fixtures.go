package fixtures

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// TestManifest creates an active import manifest and returns its import_id.
func TestManifest(t *testing.T, db *pgxpool.Pool) string {
	t.Helper()
	ctx := context.Background()

	importID := fmt.Sprintf("test-%s", uuid.New().String()[:8])
	_, err := db.Exec(ctx, `
		INSERT INTO import_manifests (import_id, import_date, import_source, status, vehicle_count)
		VALUES ($1, NOW(), 'csv_upload', 'active', 0)
	`, importID)
	require.NoError(t, err)

	return importID
}

// TestDealership creates a dealership config with default filter/output rules.
func TestDealership(t *testing.T, db *pgxpool.Pool, name string) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO dealership_configs (name, is_active, filtering_rules, output_rules, qr_output_path)
		VALUES ($1, TRUE, '{}', '{}', $2)
		ON CONFLICT (name) DO NOTHING
	`, name, "/tmp/"+name)
	require.NoError(t, err)
}

// TestVehicle inserts a normalized vehicle row tied to importID, keyed by (vin, location).
func TestVehicle(t *testing.T, db *pgxpool.Pool, importID, location string) string {
	t.Helper()
	return TestVehicleWithDetails(t, db, importID, location, 2022, "Honda", "Accord", decimal.NewFromInt(21500))
}

// TestVehicleWithDetails inserts a normalized vehicle row with caller-chosen year/make/model/price.
func TestVehicleWithDetails(t *testing.T, db *pgxpool.Pool, importID, location string, year int, make, model string, price decimal.Decimal) string {
	t.Helper()
	ctx := context.Background()

	vin := fmt.Sprintf("1HGBH41JX%s", uuid.New().String()[:8])
	now := time.Now()

	_, err := db.Exec(ctx, `
		INSERT INTO vehicles (
			vin, location, stock, year, make, model, trim, price, mileage,
			vehicle_type, exterior_color, vehicle_url, price_formatted, mileage_formatted,
			first_scraped, last_scraped, scrape_count, incomplete, import_id
		) VALUES (
			$1, $2, 'STK1', $3, $4, $5, 'Sport', $6, 35000,
			'car', 'Black', 'https://example.test/v', $7, '35,000 mi',
			$8, $8, 1, FALSE, $9
		)
	`, vin, location, year, make, model, price, "$"+price.StringFixed(2), now, importID)
	require.NoError(t, err)

	return vin
}

// TestVINLogEntry records a VIN as already processed for a dealership.
func TestVINLogEntry(t *testing.T, db *pgxpool.Pool, dealership, vin, orderType string) {
	t.Helper()
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO vin_log (dealership, vin, order_number, processed_date, order_type, vehicle_type)
		VALUES ($1, $2, $3, CURRENT_DATE, $4, 'car')
	`, dealership, vin, fmt.Sprintf("ORD-%s", uuid.New().String()[:8]), orderType)
	require.NoError(t, err)
}

// CleanupTestData removes all test data in dependency order.
func CleanupTestData(t *testing.T, db *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	tables := []string{
		"vin_log",
		"order_runs",
		"scraper_adapter_runs",
		"scraper_sessions",
		"vehicles",
		"raw_vehicles",
		"dealership_configs",
		"import_manifests",
	}

	for _, table := range tables {
		_, err := db.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Logf("Warning: failed to truncate %s: %v", table, err)
		}
	}
}
