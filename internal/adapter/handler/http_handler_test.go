package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/inventory-service/internal/adapter/storage"
	"github.com/rl1809/inventory-service/internal/core/service"
)

func setupHandler(t *testing.T) (http.Handler, *service.InventoryService) {
	t.Helper()
	repo := storage.NewMemoryAdapter()
	svc := service.NewInventoryService(repo, nil, nil, service.Config{}, zerolog.Nop())
	t.Cleanup(svc.Close)
	return NewHTTPHandler(svc).Routes(), svc
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func addTestStock(t *testing.T, h http.Handler, product string, qty int) string {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/warehouses", map[string]interface{}{
		"name": "W1", "location": "loc",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	warehouseID := created["warehouse_id"]

	rec = doJSON(t, h, http.MethodPost, "/api/inventory", map[string]interface{}{
		"product_id": product, "warehouse_id": warehouseID, "quantity": qty,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return warehouseID
}

func TestHealthCheck(t *testing.T) {
	h, _ := setupHandler(t)
	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAddInventory_BadWarehouse(t *testing.T) {
	h, _ := setupHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/inventory", map[string]interface{}{
		"product_id": "p1", "warehouse_id": "ghost", "quantity": 5,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddInventory_BadQuantity(t *testing.T) {
	h, _ := setupHandler(t)
	warehouseID := addTestStock(t, h, "p1", 5)

	rec := doJSON(t, h, http.MethodPost, "/api/inventory", map[string]interface{}{
		"product_id": "p1", "warehouse_id": warehouseID, "quantity": -2,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityEndpoints(t *testing.T) {
	h, _ := setupHandler(t)
	addTestStock(t, h, "p1", 5)

	rec := doJSON(t, h, http.MethodGet, "/api/availability?product_id=p1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var avail map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &avail))
	assert.EqualValues(t, 5, avail["available"])

	rec = doJSON(t, h, http.MethodPost, "/api/availability/check", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": "p1", "quantity": 5}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available": true}`, rec.Body.String())

	rec = doJSON(t, h, http.MethodPost, "/api/availability/check", map[string]interface{}{
		"items": []map[string]interface{}{{"product_id": "p1", "quantity": 6}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available": false}`, rec.Body.String())
}

func TestReserveConfirmFlow(t *testing.T) {
	h, _ := setupHandler(t)
	addTestStock(t, h, "p1", 5)

	rec := doJSON(t, h, http.MethodPost, "/api/reservations", map[string]interface{}{
		"customer_id": "cust-1",
		"items":       []map[string]interface{}{{"product_id": "p1", "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	reservationID := created["reservation_id"]
	require.NotEmpty(t, reservationID)

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/reservations/%s/confirm", reservationID), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Second confirm is rejected as an invalid state.
	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/reservations/%s/confirm", reservationID), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestReserve_Insufficient(t *testing.T) {
	h, _ := setupHandler(t)
	addTestStock(t, h, "p1", 2)

	rec := doJSON(t, h, http.MethodPost, "/api/reservations", map[string]interface{}{
		"customer_id": "cust-1",
		"items":       []map[string]interface{}{{"product_id": "p1", "quantity": 10}},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestConfirm_Unknown(t *testing.T) {
	h, _ := setupHandler(t)
	rec := doJSON(t, h, http.MethodPost, "/api/reservations/ghost/confirm", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancel(t *testing.T) {
	h, _ := setupHandler(t)
	addTestStock(t, h, "p1", 5)

	rec := doJSON(t, h, http.MethodPost, "/api/reservations", map[string]interface{}{
		"customer_id": "cust-1",
		"items":       []map[string]interface{}{{"product_id": "p1", "quantity": 3}},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/reservations/%s/cancel", created["reservation_id"]), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cancelled": true}`, rec.Body.String())

	// Unknown id is a no-op, not an error.
	rec = doJSON(t, h, http.MethodPost, "/api/reservations/ghost/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"cancelled": false}`, rec.Body.String())
}

func TestLowStock(t *testing.T) {
	h, _ := setupHandler(t)
	addTestStock(t, h, "scarce", 2)

	rec := doJSON(t, h, http.MethodGet, "/api/low-stock?threshold=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var alerts []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alerts))
	require.Len(t, alerts, 1)
	assert.Equal(t, "scarce", alerts[0]["product_id"])

	rec = doJSON(t, h, http.MethodGet, "/api/low-stock?threshold=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSummary(t *testing.T) {
	h, _ := setupHandler(t)
	addTestStock(t, h, "p1", 25)

	rec := doJSON(t, h, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var sum map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.EqualValues(t, 25, sum["total_available"])
	assert.EqualValues(t, 1, sum["warehouse_count"])
}
