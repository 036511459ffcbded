package auth

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// contextKey is an unexported type used for context keys in this package.
// Using a distinct type prevents collisions with keys from other packages.
type contextKey int

const (
	// subjectKey stores the authenticated subject identifier.
	subjectKey contextKey = iota

	// claimsKey stores the verified claim set.
	claimsKey

	// requestIDKey stores the per-request correlation identifier.
	requestIDKey
)

// ContextWithSubject returns a new context with the authenticated subject
// identifier attached. The subject can later be retrieved with
// [SubjectFromContext].
//
// This is typically called by the HTTP middleware and gRPC interceptors
// after successful token validation.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// SubjectFromContext retrieves the authenticated subject identifier from
// the context. Returns the subject and true if present, or an empty string
// and false if no subject has been set.
//
// Example:
//
//	subject, ok := auth.SubjectFromContext(ctx)
//	if !ok {
//	    return errors.Unauthorized("no authenticated subject in context")
//	}
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}

// MustSubjectFromContext retrieves the subject identifier from the context,
// panicking if none is present. This should only be used in code paths
// that run strictly after the authentication middleware.
func MustSubjectFromContext(ctx context.Context) string {
	subject, ok := SubjectFromContext(ctx)
	if !ok {
		panic("auth: no subject in context; ensure authentication middleware is configured")
	}
	return subject
}

// ContextWithClaims returns a new context with the verified claim set
// attached. Route handlers use [ClaimsFromContext] to read issuer profile
// fields (name, email) without re-validating the token.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext retrieves the verified claim set from the context.
// Returns the claims and true if present, or nil and false otherwise.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// ContextWithRequestID returns a new context with the per-request
// correlation identifier attached.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext retrieves the per-request correlation identifier
// from the context. Returns the identifier and true if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDKey).(string)
	return id, ok
}

// TraceIDFromContext extracts the OpenTelemetry trace ID from the context.
// Returns the trace ID as a hex string and true if a valid trace is active,
// or an empty string and false if no trace is present.
//
// This allows correlating authentication events with distributed traces.
func TraceIDFromContext(ctx context.Context) (string, bool) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.HasTraceID() {
		return "", false
	}
	return spanCtx.TraceID().String(), true
}
