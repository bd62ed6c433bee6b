package integration

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/silverfox/cao-engine/internal/handler"
	"github.com/silverfox/cao-engine/internal/store"
	"github.com/silverfox/cao-engine/tests/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchVehiclesEmpty(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	inv := handler.NewInventoryHandler(store.New(db), logger)

	req := httptest.NewRequest("GET", "/api/vehicles", nil)
	rec := httptest.NewRecorder()

	inv.SearchVehicles(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items   []map[string]interface{} `json:"items"`
		Total   int64                     `json:"total"`
		Limit   int                       `json:"limit"`
		Offset  int                       `json:"offset"`
		HasMore bool                      `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(0), resp.Total)
	assert.Len(t, resp.Items, 0)
}

func TestSearchVehiclesWithData(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	importID := fixtures.TestManifest(t, db)
	fixtures.TestVehicleWithDetails(t, db, importID, "STL", 2021, "Honda", "Accord", decimal.NewFromInt(18000))
	fixtures.TestVehicleWithDetails(t, db, importID, "STL", 2022, "Toyota", "Camry", decimal.NewFromInt(20000))

	inv := handler.NewInventoryHandler(store.New(db), logger)

	req := httptest.NewRequest("GET", "/api/vehicles", nil)
	rec := httptest.NewRecorder()
	inv.SearchVehicles(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []map[string]interface{} `json:"items"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Total)
	assert.Len(t, resp.Items, 2)
}

func TestSearchVehiclesFilterByMake(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	importID := fixtures.TestManifest(t, db)
	fixtures.TestVehicleWithDetails(t, db, importID, "STL", 2021, "Honda", "Accord", decimal.NewFromInt(18000))
	fixtures.TestVehicleWithDetails(t, db, importID, "STL", 2022, "Toyota", "Camry", decimal.NewFromInt(20000))

	inv := handler.NewInventoryHandler(store.New(db), logger)

	req := httptest.NewRequest("GET", "/api/vehicles?make=Honda", nil)
	rec := httptest.NewRecorder()
	inv.SearchVehicles(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []map[string]interface{} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Honda", resp.Items[0]["make"])
}

func TestSearchVehiclesPagination(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	importID := fixtures.TestManifest(t, db)
	for i := 0; i < 5; i++ {
		fixtures.TestVehicleWithDetails(t, db, importID, "STL", 2020+i, "Test", "Model", decimal.NewFromInt(int64(10000+i*1000)))
	}

	inv := handler.NewInventoryHandler(store.New(db), logger)

	req := httptest.NewRequest("GET", "/api/vehicles?limit=2", nil)
	rec := httptest.NewRecorder()
	inv.SearchVehicles(rec, req)

	var resp struct {
		Items   []map[string]interface{} `json:"items"`
		HasMore bool                     `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
	assert.True(t, resp.HasMore)

	req = httptest.NewRequest("GET", "/api/vehicles?limit=2&offset=4", nil)
	rec = httptest.NewRecorder()
	inv.SearchVehicles(rec, req)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 1)
	assert.False(t, resp.HasMore)
}

func TestVehicleHistoryRequiresVIN(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	inv := handler.NewInventoryHandler(store.New(db), logger)

	req := httptest.NewRequest("GET", "/api/vehicles/history", nil)
	rec := httptest.NewRecorder()
	inv.VehicleHistory(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
