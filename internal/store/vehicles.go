package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/silverfox/cao-engine/internal/domain"
)

// InsertRawVehicle writes one audit-trail row, never mutated afterward (§3).
func (s *Store) InsertRawVehicle(ctx context.Context, tx pgx.Tx, v domain.RawVehicle) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO raw_vehicles (vin, stock, year, make, model, trim, price, mileage,
			vehicle_type, exterior_color, location, vehicle_url, import_id, time_scraped)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, v.VIN, v.Stock, v.Year, v.Make, v.Model, nilIfEmpty(v.Trim), v.Price, v.Mileage,
		v.VehicleType, nilIfEmpty(v.ExteriorColor), v.Location, nilIfEmpty(v.VehicleURL),
		v.ImportID, v.TimeScraped)
	return err
}

// UpsertNormalizedVehicle applies the §4.2 upsert rule: insert sets
// first_scraped = last_scraped = now, scrape_count = 1; update sets
// last_scraped = now, scrape_count += 1, and overwrites scalar fields only
// where the new raw observation is non-null.
func (s *Store) UpsertNormalizedVehicle(ctx context.Context, tx pgx.Tx, v domain.Vehicle) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO vehicles (vin, location, stock, year, make, model, trim, price, mileage,
			vehicle_type, exterior_color, vehicle_url, price_formatted, mileage_formatted,
			first_scraped, last_scraped, scrape_count, incomplete, import_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15,1,$16,$17)
		ON CONFLICT (vin, location) DO UPDATE SET
			stock = COALESCE(NULLIF(EXCLUDED.stock, ''), vehicles.stock),
			year = COALESCE(EXCLUDED.year, vehicles.year),
			make = COALESCE(NULLIF(EXCLUDED.make, ''), vehicles.make),
			model = COALESCE(NULLIF(EXCLUDED.model, ''), vehicles.model),
			trim = COALESCE(NULLIF(EXCLUDED.trim, ''), vehicles.trim),
			price = COALESCE(EXCLUDED.price, vehicles.price),
			mileage = COALESCE(EXCLUDED.mileage, vehicles.mileage),
			vehicle_type = EXCLUDED.vehicle_type,
			exterior_color = COALESCE(NULLIF(EXCLUDED.exterior_color, ''), vehicles.exterior_color),
			vehicle_url = COALESCE(NULLIF(EXCLUDED.vehicle_url, ''), vehicles.vehicle_url),
			price_formatted = CASE WHEN EXCLUDED.price IS NULL THEN vehicles.price_formatted ELSE EXCLUDED.price_formatted END,
			mileage_formatted = CASE WHEN EXCLUDED.mileage IS NULL THEN vehicles.mileage_formatted ELSE EXCLUDED.mileage_formatted END,
			last_scraped = EXCLUDED.last_scraped,
			scrape_count = vehicles.scrape_count + 1,
			incomplete = EXCLUDED.incomplete,
			import_id = EXCLUDED.import_id
	`, v.VIN, v.Location, v.Stock, v.Year, v.Make, v.Model, nilIfEmpty(v.Trim), v.Price, v.Mileage,
		v.VehicleType, nilIfEmpty(v.ExteriorColor), nilIfEmpty(v.VehicleURL),
		v.PriceFormatted, v.MileageFormatted, v.LastScraped, v.Incomplete, v.ImportID)
	return err
}

// ActiveInventory returns the normalized rows for a dealership whose most
// recent ingest belongs to the active manifest (§4.5 step 1).
func (s *Store) ActiveInventory(ctx context.Context, location, activeImportID string) ([]domain.Vehicle, error) {
	rows, err := s.db.Query(ctx, `
		SELECT vin, location, stock, year, make, model, trim, price, mileage,
			vehicle_type, exterior_color, vehicle_url, price_formatted, mileage_formatted,
			first_scraped, last_scraped, scrape_count, incomplete, import_id
		FROM vehicles
		WHERE location = $1 AND import_id = $2
	`, location, activeImportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVehicles(rows)
}

// VehiclesByVINs looks up specific VINs at a dealership for LIST mode.
func (s *Store) VehiclesByVINs(ctx context.Context, location string, vins []string) ([]domain.Vehicle, error) {
	rows, err := s.db.Query(ctx, `
		SELECT vin, location, stock, year, make, model, trim, price, mileage,
			vehicle_type, exterior_color, vehicle_url, price_formatted, mileage_formatted,
			first_scraped, last_scraped, scrape_count, incomplete, import_id
		FROM vehicles
		WHERE location = $1 AND vin = ANY($2)
	`, location, vins)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVehicles(rows)
}

func scanVehicles(rows pgx.Rows) ([]domain.Vehicle, error) {
	out := make([]domain.Vehicle, 0)
	for rows.Next() {
		var v domain.Vehicle
		var trim, color, url *string
		if err := rows.Scan(
			&v.VIN, &v.Location, &v.Stock, &v.Year, &v.Make, &v.Model, &trim, &v.Price, &v.Mileage,
			&v.VehicleType, &color, &url, &v.PriceFormatted, &v.MileageFormatted,
			&v.FirstScraped, &v.LastScraped, &v.ScrapeCount, &v.Incomplete, &v.ImportID,
		); err != nil {
			return nil, err
		}
		if trim != nil {
			v.Trim = *trim
		}
		if color != nil {
			v.ExteriorColor = *color
		}
		if url != nil {
			v.VehicleURL = *url
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// VehicleHistory returns every scrape observation of a VIN across all
// dealerships, ordered oldest first, for the `vehicle_history` call.
func (s *Store) VehicleHistory(ctx context.Context, vin string) ([]domain.RawVehicle, error) {
	rows, err := s.db.Query(ctx, `
		SELECT vin, stock, year, make, model, trim, price, mileage,
			vehicle_type, exterior_color, location, vehicle_url, import_id, time_scraped
		FROM raw_vehicles WHERE vin = $1 ORDER BY time_scraped ASC
	`, vin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RawVehicle, 0)
	for rows.Next() {
		var r domain.RawVehicle
		var trim, color, url *string
		if err := rows.Scan(
			&r.VIN, &r.Stock, &r.Year, &r.Make, &r.Model, &trim, &r.Price, &r.Mileage,
			&r.VehicleType, &color, &r.Location, &url, &r.ImportID, &r.TimeScraped,
		); err != nil {
			return nil, err
		}
		if trim != nil {
			r.Trim = *trim
		}
		if color != nil {
			r.ExteriorColor = *color
		}
		if url != nil {
			r.VehicleURL = *url
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchFilters narrows the `search_vehicles` call.
type SearchFilters struct {
	Location    string
	Year        *int
	Make        string
	Model       string
	VehicleType string
}

// SearchVehicles implements the `search_vehicles` external call against the
// normalized table with pagination.
func (s *Store) SearchVehicles(ctx context.Context, f SearchFilters, limit, offset int) ([]domain.Vehicle, int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT vin, location, stock, year, make, model, trim, price, mileage,
			vehicle_type, exterior_color, vehicle_url, price_formatted, mileage_formatted,
			first_scraped, last_scraped, scrape_count, incomplete, import_id
		FROM vehicles
		WHERE ($1 = '' OR location = $1)
		  AND ($2::int IS NULL OR year = $2)
		  AND ($3 = '' OR make ILIKE $3)
		  AND ($4 = '' OR model ILIKE $4)
		  AND ($5 = '' OR vehicle_type = $5)
		ORDER BY last_scraped DESC
		LIMIT $6 OFFSET $7
	`, f.Location, f.Year, likeOrEmpty(f.Make), likeOrEmpty(f.Model), f.VehicleType, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	vehicles, err := scanVehicles(rows)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM vehicles
		WHERE ($1 = '' OR location = $1)
		  AND ($2::int IS NULL OR year = $2)
		  AND ($3 = '' OR make ILIKE $3)
		  AND ($4 = '' OR model ILIKE $4)
		  AND ($5 = '' OR vehicle_type = $5)
	`, f.Location, f.Year, likeOrEmpty(f.Make), likeOrEmpty(f.Model), f.VehicleType).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	return vehicles, total, nil
}

func likeOrEmpty(s string) string {
	if s == "" {
		return ""
	}
	return "%" + s + "%"
}
