package auth

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

// DefaultRoleCacheTTL bounds how long a user's role set may be served from
// the cache before the store is consulted again. Role revocation takes at
// most this long to propagate to authorization decisions.
const DefaultRoleCacheTTL = 30 * time.Second

// RoleStore reads the roles assigned to a user. The production
// implementation is the platform's PostgreSQL-backed roles.Store; tests
// substitute fakes.
//
// Implementations must return an empty slice, not an error, for users with
// no assignments, and must never report a store failure as an empty role
// set.
type RoleStore interface {
	RolesForUser(ctx context.Context, userID string) ([]string, error)
}

// RoleCache is the subset of cache operations the authorizer uses for its
// read-through role cache. The platform's redis client satisfies this
// interface.
type RoleCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Authorizer decides whether an authenticated subject may proceed for a
// required role set. It generalizes the per-route admin-only,
// reviewer-only, and researcher-only guards into one parameterized check:
// routes differ only in which role strings they require, not in mechanism.
//
// An Authorizer is safe for concurrent use by multiple goroutines.
type Authorizer struct {
	store    RoleStore
	cache    RoleCache
	cacheTTL time.Duration
	tracer   trace.Tracer
	logger   *slog.Logger
}

// AuthorizerOption configures an [Authorizer].
type AuthorizerOption func(*Authorizer)

// WithRoleCache enables a read-through cache in front of the role store.
// Cache failures are ignored: a broken cache degrades to store lookups,
// never to a wrong decision. A ttl of zero uses [DefaultRoleCacheTTL].
func WithRoleCache(cache RoleCache, ttl time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		a.cache = cache
		if ttl > 0 {
			a.cacheTTL = ttl
		}
	}
}

// WithAuthorizerLogger sets the logger for cache warnings and audit detail.
// Defaults to [slog.Default].
func WithAuthorizerLogger(l *slog.Logger) AuthorizerOption {
	return func(a *Authorizer) { a.logger = l }
}

// NewAuthorizer creates an authorizer over the given role store.
func NewAuthorizer(store RoleStore, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		store:    store,
		cacheTTL: DefaultRoleCacheTTL,
		tracer:   otel.Tracer(tracerName),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize reports whether the user may proceed for the required role set.
//
// Returns nil when the user holds at least one of the required roles. An
// empty required set means the route needs authentication only, and any
// authenticated subject passes.
//
// A user holding none of the required roles (including a user with no
// assignments at all) gets [smerr.CodeAuthorizationDenied]. A store
// failure gets the store's own dependency error, never a denial: the
// system could not determine whether the user is allowed, and the boundary
// must report that as a 5xx.
func (a *Authorizer) Authorize(ctx context.Context, userID string, required ...string) error {
	ctx, span := a.tracer.Start(ctx, "auth.Authorize")
	defer span.End()

	if userID == "" {
		err := smerr.New(smerr.CodeValidation, "auth: authorize requires a subject identifier")
		finishSpan(span, err)
		return err
	}
	span.SetAttributes(
		attribute.String("auth.subject", userID),
		attribute.StringSlice("auth.required_roles", required),
	)

	if len(required) == 0 {
		return nil
	}

	assigned, err := a.rolesFor(ctx, userID)
	if err != nil {
		finishSpan(span, err)
		return err
	}

	for _, have := range assigned {
		for _, want := range required {
			if have == want {
				span.SetAttributes(attribute.String("auth.decision", "allowed"))
				return nil
			}
		}
	}

	span.SetAttributes(attribute.String("auth.decision", "denied"))
	denied := smerr.New(smerr.CodeAuthorizationDenied, "auth: not authorized")
	finishSpan(span, denied)
	return denied
}

// RolesFor returns the roles assigned to the user, going through the cache
// when one is configured.
func (a *Authorizer) RolesFor(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, smerr.New(smerr.CodeValidation, "auth: roles lookup requires a subject identifier")
	}
	return a.rolesFor(ctx, userID)
}

// rolesFor resolves the user's role set, read-through the cache if one is
// configured. Cache errors are logged and ignored.
func (a *Authorizer) rolesFor(ctx context.Context, userID string) ([]string, error) {
	key := roleCacheKey(userID)

	if a.cache != nil {
		if cached, err := a.cache.Get(ctx, key); err == nil {
			var roles []string
			if jsonErr := json.Unmarshal([]byte(cached), &roles); jsonErr == nil {
				return roles, nil
			}
			// Undecodable entry: fall through to the store and overwrite.
		}
	}

	roles, err := a.store.RolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		if encoded, jsonErr := json.Marshal(roles); jsonErr == nil {
			if setErr := a.cache.Set(ctx, key, string(encoded), a.cacheTTL); setErr != nil {
				a.logger.Warn("auth: failed to cache role set",
					"subject", userID,
					"error", setErr,
				)
			}
		}
	}

	return roles, nil
}

// roleCacheKey builds the cache key for a user's role set.
func roleCacheKey(userID string) string {
	return "scholarmesh:roles:" + userID
}
