// Package auth provides the identity-and-access layer for ScholarMesh
// services: bearer token verification against the identity provider's
// rotating public key set, identity resolution from verified claims, and
// role-based request gating over the platform's role store.
//
// # Request flow
//
// Every protected request passes through the same pipeline: extract the
// bearer token from the Authorization header, verify its signature and
// time-bound/audience claims ([Validator]), derive the stable subject
// identifier ([Resolver]), and check the subject's assigned roles against
// the route's requirement ([Authorizer]). The HTTP middleware and gRPC
// interceptors in this package compose the pipeline; route handlers only
// see the allow/deny outcome.
//
// No authorization decision is ever made from unverified claims: the
// authorizer only receives identities that passed full signature and claim
// verification.
//
// # Failure surface
//
// Every failure maps to exactly one status at the boundary: missing,
// malformed, expired, or otherwise untrusted tokens are 401; a missing role
// is 403; an unreachable key endpoint or role store is 5xx. Dependency
// failures are never reported as denials, so callers can tell "you are not
// allowed" apart from "the system could not determine whether you are
// allowed".
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/scholarmesh/scholarmesh-core/pkg/auth"

// maxTokenSize is the maximum accepted size for a bearer token string
// (8 KB). Tokens larger than this are rejected to prevent resource
// exhaustion.
const maxTokenSize = 8192

// DefaultClockSkew is the default tolerance for clock difference between
// this service and the token issuer.
const DefaultClockSkew = 30 * time.Second

// validMethods is the signing algorithm allowlist. The identity provider
// signs with asymmetric keys only; restricting parsing to these methods
/// rejects alg:none and blocks algorithm confusion attacks where an HMAC
// token is verified against a public key used as the shared secret.
var validMethods = []string{"RS256", "ES256"}

// ---------------------------------------------------------------------------
// ValidatorConfig
// ---------------------------------------------------------------------------

// ValidatorConfig holds the configuration for [Validator].
type ValidatorConfig struct {
	// ClientID is the platform's own client identifier at the identity
	// provider, expected in the token's aud claim.
	ClientID string `json:"client_id" env:"AUTH_CLIENT_ID" required:"true"`

	// ExtraAudiences lists additional accepted audience values beyond
	// ClientID and its issuer-namespaced variant.
	ExtraAudiences []string `json:"extra_audiences,omitempty" env:"AUTH_EXTRA_AUDIENCES"`

	// ClockSkew is the maximum allowed clock difference between this
	// service and the token issuer. Tokens within this window of their
	// expiry or not-before times are still accepted. Must be
	// non-negative. Defaults to [DefaultClockSkew].
	ClockSkew time.Duration `json:"clock_skew" env:"AUTH_CLOCK_SKEW" envDefault:"30s"`

	// Now supplies the current time for explicit expiry and not-before
	// checks. If nil, [time.Now] is used. Tests inject a fixed clock.
	Now func() time.Time `json:"-"`
}

// Validate checks the configuration, returning a [smerr.CodeValidation]
// error if any field is invalid.
func (c *ValidatorConfig) Validate() error {
	if c.ClientID == "" {
		return smerr.New(smerr.CodeValidation,
			"auth: client ID must not be empty")
	}
	if c.ClockSkew < 0 {
		return smerr.New(smerr.CodeValidation,
			"auth: clock skew must be non-negative")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Validator
// ---------------------------------------------------------------------------

// Validator verifies externally issued bearer tokens: structural decode,
// signing key resolution via [SigningKeys], signature verification, and
// time-bound and audience claim checks. It holds no per-request state and
// is safe for concurrent use by multiple goroutines.
type Validator struct {
	cfg       ValidatorConfig
	keys      *SigningKeys
	tracer    trace.Tracer
	audiences map[string]struct{}
	now       func() time.Time
}

// NewValidator creates a token validator using the given signing key
// resolver. The accepted audience set is built from the configured client
// ID, its issuer-namespaced variant ("api://<client-id>"), and any extra
// audiences.
func NewValidator(cfg ValidatorConfig, keys *SigningKeys) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if keys == nil {
		return nil, smerr.New(smerr.CodeValidation,
			"auth: signing key resolver must not be nil")
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = DefaultClockSkew
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	audiences := map[string]struct{}{
		cfg.ClientID:            {},
		"api://" + cfg.ClientID: {},
	}
	for _, aud := range cfg.ExtraAudiences {
		if aud != "" {
			audiences[aud] = struct{}{}
		}
	}

	return &Validator{
		cfg:       cfg,
		keys:      keys,
		tracer:    otel.Tracer(tracerName),
		audiences: audiences,
		now:       now,
	}, nil
}

// Validate verifies the given bearer token string and returns its verified
// claim set.
//
// The method performs the following steps:
//  1. Rejects empty and oversized tokens before any other work
//  2. Decodes the token structurally (no signature check) to read the
//     header's key identifier
//  3. Resolves the signing key via [SigningKeys]
//  4. Verifies the signature, expiry, and not-before with the allowlisted
//     asymmetric algorithms
//  5. Re-checks expiry and not-before explicitly against the current time,
//     so the specific failure kind is reported even if the parser's
//     defaults drift
//  6. Checks the audience claim against the accepted set
//  7. Returns the full verified claim set
//
// Failures carry one stable code per kind ([smerr.CodeTokenEmpty],
// [smerr.CodeTokenMalformed], [smerr.CodeTokenExpired],
// [smerr.CodeTokenNotYetValid], [smerr.CodeSignatureInvalid],
// [smerr.CodeAudienceMismatch]) and are never downgraded to a generic one.
// Key resolution failures propagate as [smerr.CodeUnavailableDependency].
func (v *Validator) Validate(ctx context.Context, tokenStr string) (*Claims, error) {
	ctx, span := v.tracer.Start(ctx, "auth.Validate")
	defer span.End()

	// Step 1: empty and oversized input, no network I/O.
	if tokenStr == "" {
		err := smerr.New(smerr.CodeTokenEmpty, "auth: token must not be empty")
		finishSpan(span, err)
		return nil, err
	}
	if len(tokenStr) > maxTokenSize {
		err := smerr.New(smerr.CodeTokenMalformed, "auth: token exceeds maximum size")
		finishSpan(span, err)
		return nil, err
	}

	// Step 2: structural decode to read the header's kid.
	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(tokenStr, jwt.MapClaims{})
	if err != nil || unverified == nil {
		parseErr := smerr.New(smerr.CodeTokenMalformed, "auth: token is malformed")
		finishSpan(span, parseErr)
		return nil, parseErr
	}

	algStr, _ := unverified.Header["alg"].(string)
	if strings.EqualFold(algStr, "none") {
		err := smerr.New(smerr.CodeSignatureInvalid, "auth: algorithm 'none' is not permitted")
		finishSpan(span, err)
		return nil, err
	}

	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		err := smerr.New(smerr.CodeTokenMalformed, "auth: token header has no key identifier")
		finishSpan(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("auth.kid", kid))

	// Step 3: resolve the signing key.
	key, err := v.keys.GetKey(ctx, kid)
	if err != nil {
		finishSpan(span, err)
		return nil, err
	}

	// Step 4: verify signature, expiry, and not-before. Audience is
	// checked separately in step 6 against the full accepted set.
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	},
		jwt.WithValidMethods(validMethods),
		jwt.WithLeeway(v.cfg.ClockSkew),
	)
	if err != nil {
		classified := classifyJWTError(err)
		finishSpan(span, classified)
		return nil, classified
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		err := smerr.New(smerr.CodeSignatureInvalid, "auth: token failed verification")
		finishSpan(span, err)
		return nil, err
	}

	claims := claimsFromMap(mc)

	// Step 5: explicit expiry and not-before checks against our own
	// clock, so these kinds are reported even if the parser's defaults
	// were misconfigured upstream.
	now := v.now()
	if !claims.ExpiresAt.IsZero() && now.After(claims.ExpiresAt.Add(v.cfg.ClockSkew)) {
		err := smerr.New(smerr.CodeTokenExpired, "auth: token has expired")
		finishSpan(span, err)
		return nil, err
	}
	if !claims.NotBefore.IsZero() && now.Add(v.cfg.ClockSkew).Before(claims.NotBefore) {
		err := smerr.New(smerr.CodeTokenNotYetValid, "auth: token is not yet valid")
		finishSpan(span, err)
		return nil, err
	}

	// Step 6: audience.
	if !v.audienceAccepted(claims.Audience) {
		err := smerr.New(smerr.CodeAudienceMismatch, "auth: token audience is not accepted")
		finishSpan(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("auth.subject", claims.Subject))
	return claims, nil
}

// audienceAccepted reports whether at least one of the token's audiences is
// in the accepted set. A token with no aud claim is rejected.
func (v *Validator) audienceAccepted(audience []string) bool {
	for _, aud := range audience {
		if _, ok := v.audiences[aud]; ok {
			return true
		}
	}
	return false
}

// classifyJWTError converts a JWT library error to an appropriate
// [*smerr.Error] with a stable code. Expiry and not-before failures keep
// their specific kinds; every other verification failure is a signature
// failure from the caller's point of view.
func classifyJWTError(err error) *smerr.Error {
	if err == nil {
		return nil
	}

	var smError *smerr.Error
	if errors.As(err, &smError) {
		return smError
	}

	if errors.Is(err, jwt.ErrTokenExpired) {
		return smerr.Wrap(err, smerr.CodeTokenExpired, "auth: token has expired")
	}
	if errors.Is(err, jwt.ErrTokenNotValidYet) {
		return smerr.Wrap(err, smerr.CodeTokenNotYetValid, "auth: token is not yet valid")
	}
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return smerr.Wrap(err, smerr.CodeTokenMalformed, "auth: token is malformed")
	}
	return smerr.Wrap(err, smerr.CodeSignatureInvalid, "auth: token signature is invalid")
}

// finishSpan records an error on the span if err is non-nil and sets the
// span status to Error. This is a helper for consistent error recording
// across the package.
func finishSpan(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
