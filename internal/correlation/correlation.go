// Package correlation carries the per-request correlation identifier through
// context. The id is an opaque trace token used only for audit logging, never
// for business logic.
package correlation

import (
	"context"

	"github.com/google/uuid"
)

// Header is the inbound/outbound HTTP header carrying the correlation id.
const Header = "X-Correlation-ID"

type ctxKey struct{}

// NewID returns a fresh correlation identifier.
func NewID() string {
	return uuid.NewString()
}

// WithID returns a context carrying the given correlation id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the correlation id carried by ctx, generating a fresh
// one when the caller supplied none.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok && id != "" {
		return id
	}
	return NewID()
}
