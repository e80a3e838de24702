package org_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-tarif/internal/org"
)

func TestResolverHeaderWins(t *testing.T) {
	resolver := org.NewResolver("", "tarif.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "http://acme.tarif.example.com/", nil)
	req.Header.Set("X-Org-ID", "from-header")
	require.Equal(t, "from-header", resolver.Resolve(req))
}

func TestResolverSubdomain(t *testing.T) {
	resolver := org.NewResolver("", "tarif.example.com", "")
	req := httptest.NewRequest(http.MethodGet, "http://acme.tarif.example.com/", nil)
	require.Equal(t, "acme", resolver.Resolve(req))

	root := httptest.NewRequest(http.MethodGet, "http://tarif.example.com/", nil)
	require.Equal(t, "", resolver.Resolve(root))
}

func TestResolverNoRootDomainIgnoresHost(t *testing.T) {
	resolver := org.NewResolver("", "", "")
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.Equal(t, "", resolver.Resolve(req))
}

func TestMiddlewareDefault(t *testing.T) {
	resolver := org.NewResolver("", "", "default-org")
	var got string
	handler := resolver.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = org.FromContext(r.Context())
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "default-org", got)
}

func TestUUIDFromContext(t *testing.T) {
	id := uuid.New()
	ctx := org.WithOrg(context.Background(), id.String())
	parsed, err := org.UUIDFromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, id, parsed)

	_, err = org.UUIDFromContext(context.Background())
	require.ErrorIs(t, err, org.ErrNotResolved)

	_, err = org.UUIDFromContext(org.WithOrg(context.Background(), "not-a-uuid"))
	require.Error(t, err)
}
