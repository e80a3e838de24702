package adjust_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-tarif/internal/adjust"
	"github.com/noah-isme/backend-tarif/internal/org"
)

func newTestRouter(svc *adjust.Service) chi.Router {
	handler := &adjust.Handler{Service: svc, Validate: validator.New()}
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/indices", handler.Indices)
		r.Get("/price-items", handler.Items)
		r.Route("/adjustments", func(r chi.Router) {
			r.Post("/preview", handler.Preview)
			r.Post("/apply", handler.Apply)
			r.Get("/history", handler.History)
			r.Get("/drift", handler.Drift)
			r.Post("/drift/verify", handler.VerifyDrift)
		})
	})
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, orgID uuid.UUID, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if orgID != uuid.Nil {
		req = req.WithContext(org.WithOrg(req.Context(), orgID.String()))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func previewBody(rate string) map[string]any {
	return map[string]any{
		"rate":     map[string]any{"type": "custom", "rate": rate},
		"scope":    "ALL",
		"rounding": map[string]any{"strategy": "round-1000", "direction": "nearest"},
	}
}

func TestHandlerPreview(t *testing.T) {
	store := newMemStore()
	orgID := uuid.New()
	seedCatalog(store, orgID)
	router := newTestRouter(testService(store, fakeIndices{}, nil))

	rr := doJSON(t, router, http.MethodPost, "/api/v1/adjustments/preview", orgID, previewBody("2.5"))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data struct {
			Lines         []json.RawMessage `json:"lines"`
			IncludedCount int               `json:"includedCount"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Lines, 3)
	require.Equal(t, 2, resp.Data.IncludedCount)
}

func TestHandlerPreviewRequiresOrg(t *testing.T) {
	router := newTestRouter(testService(newMemStore(), fakeIndices{}, nil))
	rr := doJSON(t, router, http.MethodPost, "/api/v1/adjustments/preview", uuid.Nil, previewBody("2.5"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "ORG_REQUIRED")
}

func TestHandlerPreviewRejectsBadScope(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	seedCatalog(store, orgID)
	router := newTestRouter(testService(store, fakeIndices{}, nil))

	body := previewBody("2.5")
	body["scope"] = "EVERYTHING"
	rr := doJSON(t, router, http.MethodPost, "/api/v1/adjustments/preview", orgID, body)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION")
}

func TestHandlerPreviewUnknownIndex(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	seedCatalog(store, orgID)
	router := newTestRouter(testService(store, fakeIndices{}, nil))

	body := map[string]any{
		"rate": map[string]any{"type": "index", "source": "imf"},
	}
	rr := doJSON(t, router, http.MethodPost, "/api/v1/adjustments/preview", orgID, body)
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "UNKNOWN_INDEX")
}

func TestHandlerApply(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	seedCatalog(store, orgID)
	router := newTestRouter(testService(store, fakeIndices{}, nil))

	body := previewBody("2.5")
	body["appliedBy"] = "drg. Rahmi"
	body["notes"] = "annual indexation"
	rr := doJSON(t, router, http.MethodPost, "/api/v1/adjustments/apply", orgID, body)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp struct {
		Data adjust.AdjustmentEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Data.ItemsAffected)
	require.Equal(t, "drg. Rahmi", resp.Data.AppliedBy)

	events, err := store.ListAllEvents(context.Background(), orgID)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestHandlerApplyRequiresAppliedBy(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	seedCatalog(store, orgID)
	router := newTestRouter(testService(store, fakeIndices{}, nil))

	rr := doJSON(t, router, http.MethodPost, "/api/v1/adjustments/apply", orgID, previewBody("2.5"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "VALIDATION")
}

func TestHandlerApplyNoItems(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	store.items[orgID] = []adjust.PriceItem{item("Implant", adjust.ItemTypeProduct, "900", foreign)}
	router := newTestRouter(testService(store, fakeIndices{}, nil))

	body := previewBody("2.5")
	body["appliedBy"] = "ops"
	rr := doJSON(t, router, http.MethodPost, "/api/v1/adjustments/apply", orgID, body)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "NO_ITEMS_TO_ADJUST")
}

func TestHandlerHistoryAndDrift(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	seedCatalog(store, orgID)
	svc := testService(store, fakeIndices{}, nil)
	router := newTestRouter(svc)

	body := previewBody("2.5")
	body["appliedBy"] = "ops"
	rr := doJSON(t, router, http.MethodPost, "/api/v1/adjustments/apply", orgID, body)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/adjustments/history?limit=10", orgID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var history struct {
		Data []adjust.AdjustmentEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &history))
	require.Len(t, history.Data, 1)

	rr = doJSON(t, router, http.MethodGet, "/api/v1/adjustments/drift", orgID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var drift struct {
		Data *adjust.CumulativeDrift `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &drift))
	require.NotNil(t, drift.Data)
	require.Equal(t, 1, drift.Data.AdjustmentCount)

	rr = doJSON(t, router, http.MethodPost, "/api/v1/adjustments/drift/verify", orgID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"match":true`)
}

func TestHandlerItemsPagination(t *testing.T) {
	orgID := uuid.New()
	store := newMemStore()
	seedCatalog(store, orgID)
	router := newTestRouter(testService(store, fakeIndices{}, nil))

	rr := doJSON(t, router, http.MethodGet, "/api/v1/price-items?page=1&limit=2", orgID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Data       []adjust.PriceItem `json:"data"`
		Pagination struct {
			TotalItems int `json:"total_items"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	require.Equal(t, 3, resp.Pagination.TotalItems)
}
