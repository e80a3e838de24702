package org

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const orgContextKey contextKey = "org.id"

// ErrNotResolved indicates no organization identifier was found on the context.
var ErrNotResolved = errors.New("org: not resolved")

// Resolver resolves organization identifiers from HTTP requests using either
// headers or subdomains.
type Resolver struct {
	HeaderName string
	RootDomain string
	DefaultOrg string
}

// NewResolver returns a resolver configured with the provided header name,
// root domain, and default organization. If headerName is empty, "X-Org-ID"
// is used.
func NewResolver(headerName, rootDomain, defaultOrg string) *Resolver {
	if headerName == "" {
		headerName = "X-Org-ID"
	}
	return &Resolver{
		HeaderName: headerName,
		RootDomain: strings.ToLower(strings.TrimSpace(rootDomain)),
		DefaultOrg: strings.TrimSpace(defaultOrg),
	}
}

// Middleware resolves the organization from the request and injects it into
// the context passed downstream.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	if r == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		orgID := r.Resolve(req)
		if orgID == "" {
			orgID = r.DefaultOrg
		}
		if orgID != "" {
			ctx := WithOrg(req.Context(), orgID)
			req = req.WithContext(ctx)
		}
		next.ServeHTTP(w, req)
	})
}

// Resolve attempts to find the organization identifier from the configured
// header or the request subdomain.
func (r *Resolver) Resolve(req *http.Request) string {
	if r == nil || req == nil {
		return ""
	}
	if orgID := strings.TrimSpace(req.Header.Get(r.HeaderName)); orgID != "" {
		return orgID
	}

	host := hostWithoutPort(req.Host)
	if host == "" {
		return ""
	}
	return strings.TrimSpace(r.subdomainFromHost(host))
}

func (r *Resolver) subdomainFromHost(host string) string {
	// Without a configured root domain there is no way to tell a subdomain
	// from a bare host, so only the header (or the default) can resolve.
	if r.RootDomain == "" {
		return ""
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" || host == r.RootDomain {
		return ""
	}
	suffix := "." + r.RootDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	host = strings.TrimSuffix(host, suffix)

	parts := strings.Split(host, ".")
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func hostWithoutPort(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if strings.HasPrefix(hostport, "[") {
		if idx := strings.Index(hostport, "]"); idx != -1 {
			host := hostport[1:idx]
			if host != "" {
				return host
			}
		}
	}
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		return h
	}
	if idx := strings.Index(hostport, ":"); idx != -1 && strings.Count(hostport, ":") == 1 {
		return hostport[:idx]
	}
	return hostport
}

// WithOrg stores the organization identifier inside the context.
func WithOrg(ctx context.Context, orgID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, orgContextKey, orgID)
}

// FromContext extracts the organization identifier from the context if available.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	orgID, ok := ctx.Value(orgContextKey).(string)
	if !ok {
		return "", false
	}
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return "", false
	}
	return orgID, true
}

// UUIDFromContext extracts the organization identifier and parses it as a UUID.
func UUIDFromContext(ctx context.Context) (uuid.UUID, error) {
	raw, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, ErrNotResolved
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}
