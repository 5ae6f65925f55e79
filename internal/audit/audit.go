// Package audit carries the acting principal of a request in its context.
package audit

import "context"

// SystemAuditor is recorded when no auditor is bound to the context.
const SystemAuditor = "system"

type auditorKey struct{}

// WithAuditor returns a copy of ctx recording auditor as the acting principal.
// An empty auditor leaves ctx unchanged.
func WithAuditor(ctx context.Context, auditor string) context.Context {
	if auditor == "" {
		return ctx
	}
	return context.WithValue(ctx, auditorKey{}, auditor)
}

// Auditor returns the principal bound to ctx, or SystemAuditor.
func Auditor(ctx context.Context) string {
	if ctx == nil {
		return SystemAuditor
	}
	if a, ok := ctx.Value(auditorKey{}).(string); ok {
		return a
	}
	return SystemAuditor
}
