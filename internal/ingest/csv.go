package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/silverfox/cao-engine/internal/domain"
	"github.com/silverfox/cao-engine/internal/normalize"
)

// InventoryCSVColumns is the fixed header order the inventory upload format
// requires, shared by the HTTP upload handler and the caoctl CLI so both
// reject the same malformed input the same way.
var InventoryCSVColumns = []string{"vin", "stock", "year", "make", "model", "trim", "price", "mileage", "vehicle_type", "exterior_color", "location", "vehicle_url"}

// ParseInventoryCSV reads the fixed-column inventory format into raw rows
// ready for IngestBatch. Extra or reordered columns are rejected rather
// than guessed at.
func ParseInventoryCSV(r io.Reader) ([]domain.RawVehicle, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if err := requireInventoryColumns(header); err != nil {
		return nil, err
	}

	var rows []domain.RawVehicle
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, inventoryRecordToRawVehicle(record))
	}
	return rows, nil
}

func requireInventoryColumns(header []string) error {
	if len(header) != len(InventoryCSVColumns) {
		return fmt.Errorf("expected %d columns, got %d", len(InventoryCSVColumns), len(header))
	}
	for i, col := range InventoryCSVColumns {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return fmt.Errorf("column %d: expected %q, got %q", i, col, header[i])
		}
	}
	return nil
}

func inventoryRecordToRawVehicle(record []string) domain.RawVehicle {
	raw := domain.RawVehicle{
		VIN:           record[0],
		Stock:         record[1],
		Make:          record[3],
		Model:         record[4],
		Trim:          record[5],
		VehicleType:   domain.VehicleType(strings.ToLower(record[8])),
		ExteriorColor: record[9],
		Location:      record[10],
		VehicleURL:    record[11],
		TimeScraped:   time.Now(),
	}
	if y, err := strconv.Atoi(record[2]); err == nil {
		raw.Year = &y
	}
	raw.Price = normalize.ParsePrice(record[6])
	if m, err := strconv.Atoi(record[7]); err == nil {
		raw.Mileage = &m
	}
	return raw
}
