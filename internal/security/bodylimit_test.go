package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func postPreview(t *testing.T, limit BodyLimit, payload string, declared int64) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	handler := limit.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		seen = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/adjustments/preview", strings.NewReader(payload))
	if declared > 0 {
		req.ContentLength = declared
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr, seen
}

func TestBodyLimitPassesSmallPayload(t *testing.T) {
	payload := `{"rate":{"type":"custom","rate":"2.5"}}`
	rr, seen := postPreview(t, BodyLimit{Max: 1 << 10}, payload, 0)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, payload, seen)
}

func TestBodyLimitRejectsOversizedPayload(t *testing.T) {
	rr, _ := postPreview(t, BodyLimit{Max: 8}, strings.Repeat("x", 64), 0)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	// Declared length above the cap short-circuits before any read.
	rr, _ := postPreview(t, BodyLimit{Max: 8}, "tiny", 1<<20)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
}
