package sales

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store *fakeStore) http.Handler {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return Routes(NewHandler(logger, newTestService(store)))
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerCreate_ReturnsSaleWithTotals(t *testing.T) {
	router := newTestRouter(seedStore())

	rr := postJSON(t, router, "/", map[string]any{
		"customer_id":       1,
		"payment_method_id": 1,
		"costo_envio":       "500",
		"lines": []map[string]any{
			{"product_id": 1, "cantidad": 3, "descuento_pct": "10"},
		},
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var sale Sale
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sale))
	assert.True(t, dec("3200").Equal(sale.Total))
	assert.Regexp(t, `^VTA-\d{6}-\d{6}$`, sale.Number)
}

func TestHandlerCreate_StockShortageListsCauses(t *testing.T) {
	router := newTestRouter(seedStore())

	rr := postJSON(t, router, "/", map[string]any{
		"customer_id":       1,
		"payment_method_id": 1,
		"lines": []map[string]any{
			{"product_id": 1, "cantidad": 99},
			{"product_id": 2, "cantidad": 99},
		},
	})
	require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())

	var problem struct {
		Title  string `json:"title"`
		Causes []any  `json:"causes"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	assert.Equal(t, "Insufficient Stock", problem.Title)
	assert.Len(t, problem.Causes, 2)
}

func TestHandlerCreate_MalformedBody(t *testing.T) {
	router := newTestRouter(seedStore())

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerGet_NotFound(t *testing.T) {
	router := newTestRouter(seedStore())

	req := httptest.NewRequest(http.MethodGet, "/999", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerDelete_NoContent(t *testing.T) {
	store := seedStore()
	router := newTestRouter(store)

	rr := postJSON(t, router, "/", map[string]any{
		"customer_id":       1,
		"payment_method_id": 1,
		"lines":             []map[string]any{{"product_id": 1, "cantidad": 2}},
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var sale Sale
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &sale))

	req := httptest.NewRequest(http.MethodDelete, "/1", nil)
	del := httptest.NewRecorder()
	router.ServeHTTP(del, req)
	assert.Equal(t, http.StatusNoContent, del.Code)
	assert.Equal(t, 10, store.products[1].Stock, "stock restored")
}
