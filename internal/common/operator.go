package common

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const operatorKey ctxKey = "audit/operator"

// WithOperator stores the acting operator identity on the provided context.
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, operatorKey, operator)
}

// Operator extracts the acting operator identity from the context, if any.
func Operator(ctx context.Context) string {
	if v, ok := ctx.Value(operatorKey).(string); ok {
		return v
	}
	return ""
}

// OperatorMiddleware propagates the X-Operator header into the request
// context so audit records and logs can attribute writes.
func OperatorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if operator := strings.TrimSpace(r.Header.Get("X-Operator")); operator != "" {
			r = r.WithContext(WithOperator(r.Context(), operator))
		}
		next.ServeHTTP(w, r)
	})
}
