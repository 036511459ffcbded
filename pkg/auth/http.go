package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

// HeaderAuthorization is the header carrying the bearer token.
const HeaderAuthorization = "Authorization"

// HeaderRequestID is the response header carrying the per-request
// correlation identifier, so users can quote it in support requests and
// operators can find the matching log lines.
const HeaderRequestID = "X-Request-Id"

// User-facing response bodies. Deliberately generic: the specific failure
// kind goes to the structured log, not to the caller.
const (
	msgTokenRequired = "Access token is required"
	msgSignInAgain   = "Authentication failed. Please sign in again."
	msgNoAccess      = "You don't have access to this resource."
	msgUnavailable   = "Unable to verify access right now. Please try again later."
)

// ExtractBearerToken extracts the token from an Authorization header value.
//
// Absence of the header, a non-Bearer scheme (e.g., "Basic abc123"), or a
// Bearer scheme with no token all fail with [smerr.CodeTokenEmpty] and the
// message "Access token is required", before any cryptographic work.
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", smerr.New(smerr.CodeTokenEmpty, msgTokenRequired)
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", smerr.New(smerr.CodeTokenEmpty, msgTokenRequired)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", smerr.New(smerr.CodeTokenEmpty, msgTokenRequired)
	}
	return token, nil
}

// Middleware gates HTTP routes behind token validation and role checks.
// Build one per service with [NewMiddleware] and apply [Middleware.RequireRoles]
// per route.
type Middleware struct {
	resolver   *Resolver
	authorizer *Authorizer
	logger     *slog.Logger
}

// NewMiddleware creates the HTTP auth middleware. The logger defaults to
// [slog.Default] when nil.
func NewMiddleware(resolver *Resolver, authorizer *Authorizer, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{
		resolver:   resolver,
		authorizer: authorizer,
		logger:     logger,
	}
}

// RequireAuth wraps a handler so only requests carrying a valid bearer
// token pass. The authenticated subject and verified claims are attached
// to the request context for the handler.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return m.RequireRoles()(next)
}

// RequireRoles returns a middleware that admits a request only when its
// bearer token validates and the authenticated subject holds at least one
// of the required roles. An empty role list requires authentication only.
//
// The per-request pipeline: extract token (401 "Access token is required"
// on a missing or non-Bearer header, before any cryptography) → validate →
// resolve subject → authorize. Failure kinds map to exactly one status via
// the error code category: token failures 401, denied 403, key fetch or
// store failures 5xx. Response bodies stay generic; the specific kind,
// subject, and a correlation id are logged.
//
// Example:
//
//	mux.Handle("/api/reviews", mw.RequireRoles("reviewer", "admin")(reviewHandler))
func (m *Middleware) RequireRoles(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			ctx := ContextWithRequestID(r.Context(), requestID)
			w.Header().Set(HeaderRequestID, requestID)

			token, err := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if err != nil {
				m.deny(w, r, requestID, err)
				return
			}

			subject, claims, err := m.resolver.IdentifyClaims(ctx, token)
			if err != nil {
				m.deny(w, r, requestID, err)
				return
			}

			if err := m.authorizer.Authorize(ctx, subject, required...); err != nil {
				m.deny(w, r, requestID, err)
				return
			}

			ctx = ContextWithSubject(ctx, subject)
			ctx = ContextWithClaims(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// deny writes the error response for a failed request and logs the
// specific failure kind for operators.
func (m *Middleware) deny(w http.ResponseWriter, r *http.Request, requestID string, err error) {
	smErr := smerr.FromError(err)
	status := smErr.HTTPStatus()

	m.logger.Warn("auth: request denied",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"code", smErr.Code.String(),
		"error", err,
	)

	http.Error(w, userMessage(smErr, status), status)
}

// userMessage picks the generic response body for a failure. The token
// extraction error keeps its own message so API clients get the documented
// "Access token is required" text.
func userMessage(err *smerr.Error, status int) string {
	switch {
	case err.Code == smerr.CodeTokenEmpty:
		return msgTokenRequired
	case status == http.StatusUnauthorized:
		return msgSignInAgain
	case status == http.StatusForbidden:
		return msgNoAccess
	default:
		return msgUnavailable
	}
}
