package auth

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

// Resolver derives the stable subject identifier from a bearer token. It
// wraps [Validator] and collapses the validator's specific failure kinds
// into one shape for callers, so route-level code branches on a single
// "token validation failed" error rather than the full taxonomy.
//
// The specific kind is retained in the error chain: audit logging and the
// HTTP status mapping still see [smerr.CodeTokenExpired] and friends via
// [smerr.HasCode], while casual callers check [smerr.IsAuthentication].
// Dependency failures (key fetch) keep their own code and are never folded
// into the authentication shape.
//
// A Resolver is safe for concurrent use by multiple goroutines.
type Resolver struct {
	validator *Validator
	tracer    trace.Tracer
}

// NewResolver creates an identity resolver over the given validator.
func NewResolver(validator *Validator) *Resolver {
	return &Resolver{
		validator: validator,
		tracer:    otel.Tracer(tracerName),
	}
}

// Identify validates the token and returns the subject identifier from its
// verified claims.
//
// Token failures are returned as a single [smerr.CodeAuthentication]
// "token validation failed" error wrapping the specific kind. Key
// resolution failures propagate unwrapped with their dependency code so the
// boundary maps them to 5xx, never 401.
func (r *Resolver) Identify(ctx context.Context, tokenStr string) (string, error) {
	ctx, span := r.tracer.Start(ctx, "auth.Identify")
	defer span.End()

	claims, err := r.validator.Validate(ctx, tokenStr)
	if err != nil {
		if smerr.IsUnavailable(err) || smerr.IsTimeout(err) {
			finishSpan(span, err)
			return "", err
		}
		wrapped := smerr.Wrap(err, smerr.CodeAuthentication, "auth: token validation failed")
		finishSpan(span, wrapped)
		return "", wrapped
	}

	if claims.Subject == "" {
		err := smerr.New(smerr.CodeAuthentication, "auth: token has no subject")
		finishSpan(span, err)
		return "", err
	}

	span.SetAttributes(attribute.String("auth.subject", claims.Subject))
	return claims.Subject, nil
}

// IdentifyClaims is like [Resolver.Identify] but returns the full verified
// claim set alongside the subject, for middleware that attaches claims to
// the request context.
func (r *Resolver) IdentifyClaims(ctx context.Context, tokenStr string) (string, *Claims, error) {
	claims, err := r.validator.Validate(ctx, tokenStr)
	if err != nil {
		if smerr.IsUnavailable(err) || smerr.IsTimeout(err) {
			return "", nil, err
		}
		return "", nil, smerr.Wrap(err, smerr.CodeAuthentication, "auth: token validation failed")
	}
	if claims.Subject == "" {
		return "", nil, smerr.New(smerr.CodeAuthentication, "auth: token has no subject")
	}
	return claims.Subject, claims, nil
}
