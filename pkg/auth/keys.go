package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// HTTPClient interface
// ---------------------------------------------------------------------------

// HTTPClient abstracts the HTTP client used for fetching the issuer's JWKS.
// This allows callers to provide custom HTTP clients with specific timeouts,
// transport settings, or middleware (e.g., for proxy configuration or
// request tracing).
//
// The standard [http.Client] satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ---------------------------------------------------------------------------
// SigningKeys — JWKS fetch, parse, and per-kid cache
// ---------------------------------------------------------------------------

// Defaults for signing key resolution.
const (
	// DefaultFetchTimeout bounds a single JWKS fetch.
	DefaultFetchTimeout = 10 * time.Second

	// DefaultFetchesPerMinute is the key-set fetch budget. Cache misses
	// beyond this rate fail fast instead of hammering the issuer during
	// key-id churn or attack traffic.
	DefaultFetchesPerMinute = 10
)

// maxJWKSBody is the maximum accepted JWKS response size (1 MB). Larger
// responses are truncated to prevent resource exhaustion.
const maxJWKSBody = 1 << 20

// KeysConfig holds the configuration for [SigningKeys].
type KeysConfig struct {
	// JWKSURL is the issuer's published key set endpoint.
	JWKSURL string `json:"jwks_url" env:"AUTH_JWKS_URL" required:"true"`

	// FetchTimeout bounds a single key set fetch. Defaults to
	// [DefaultFetchTimeout].
	FetchTimeout time.Duration `json:"fetch_timeout,omitempty" env:"AUTH_JWKS_FETCH_TIMEOUT" envDefault:"10s"`

	// FetchesPerMinute caps key set fetches per minute. Defaults to
	// [DefaultFetchesPerMinute].
	FetchesPerMinute int `json:"fetches_per_minute,omitempty" env:"AUTH_JWKS_FETCHES_PER_MINUTE" envDefault:"10"`

	// HTTPClient is the client used for fetches. If nil, a default
	// [http.Client] with [DefaultFetchTimeout] is used.
	HTTPClient HTTPClient `json:"-"`
}

// SigningKeys resolves the issuer's public signing keys by key identifier,
// caching each resolved key for the lifetime of the process.
//
// The cache is insert-only: entries are never evicted, so staleness is
// bounded only by process restart. That matches the low-key-churn issuers
// the platform federates with; a rotated-out key lingering in the cache can
// at worst verify a token the issuer still considers signed by it.
//
// On a cache miss the full key set is refetched and merged in, handling key
// rotation (new kid published) without restarts. Misses are rate-limited to
// [KeysConfig.FetchesPerMinute]; once the budget is exhausted, misses fail
// immediately with a dependency error until the window rolls over.
//
// SigningKeys is safe for concurrent use by multiple goroutines.
type SigningKeys struct {
	cfg    KeysConfig
	client HTTPClient

	mu   sync.RWMutex
	keys map[string]any // kid -> *rsa.PublicKey or *ecdsa.PublicKey

	// fetchMu serializes key set fetches so concurrent misses for the
	// same unknown kid collapse into one request.
	fetchMu     sync.Mutex
	windowStart time.Time
	windowCount int
}

// NewSigningKeys creates a signing key resolver for the given configuration.
// Returns a [smerr.CodeValidation] error if the JWKS URL is empty.
func NewSigningKeys(cfg KeysConfig) (*SigningKeys, error) {
	if cfg.JWKSURL == "" {
		return nil, smerr.New(smerr.CodeValidation,
			"auth: JWKS URL must not be empty")
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.FetchesPerMinute <= 0 {
		cfg.FetchesPerMinute = DefaultFetchesPerMinute
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}

	return &SigningKeys{
		cfg:    cfg,
		client: client,
		keys:   make(map[string]any),
	}, nil
}

// GetKey returns the public key for the given key identifier.
//
// A cached kid is returned without network I/O. On a miss the issuer's key
// set is refetched and merged into the cache; if the kid is still absent
// from the fresh set, or the endpoint is unreachable, or the fetch budget
// is exhausted, GetKey fails with [smerr.CodeUnavailableDependency]. A
// missing kid is a key resolution failure, never a signature failure: the
// signature was never checked.
func (s *SigningKeys) GetKey(ctx context.Context, kid string) (any, error) {
	if kid == "" {
		return nil, smerr.New(smerr.CodeTokenMalformed,
			"auth: token header has no key identifier")
	}

	s.mu.RLock()
	key, ok := s.keys[kid]
	s.mu.RUnlock()
	if ok {
		return key, nil
	}

	// Miss. Serialize fetches so a burst of requests carrying the same
	// freshly rotated kid produces one fetch, not one per request.
	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()

	// A fetch that completed while we waited may have brought the kid in.
	s.mu.RLock()
	key, ok = s.keys[kid]
	s.mu.RUnlock()
	if ok {
		return key, nil
	}

	if !s.consumeFetchBudget() {
		return nil, smerr.New(smerr.CodeUnavailableDependency,
			"auth: signing key fetch budget exhausted")
	}

	fetched, err := s.fetch(ctx)
	if err != nil {
		return nil, smerr.Wrap(err, smerr.CodeUnavailableDependency,
			"auth: failed to fetch signing keys")
	}

	s.mu.Lock()
	for id, k := range fetched {
		s.keys[id] = k
	}
	key, ok = s.keys[kid]
	s.mu.Unlock()

	if !ok {
		return nil, smerr.Newf(smerr.CodeUnavailableDependency,
			"auth: signing key %q not present in issuer key set", kid)
	}
	return key, nil
}

// KnownKeys returns the key identifiers currently cached. Intended for
// operational introspection (health endpoints, debug logs).
func (s *SigningKeys) KnownKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	kids := make([]string, 0, len(s.keys))
	for kid := range s.keys {
		kids = append(kids, kid)
	}
	return kids
}

// consumeFetchBudget reports whether a fetch is permitted within the
// current one-minute window and records it. Caller must hold fetchMu.
func (s *SigningKeys) consumeFetchBudget() bool {
	now := time.Now()
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= time.Minute {
		s.windowStart = now
		s.windowCount = 0
	}
	if s.windowCount >= s.cfg.FetchesPerMinute {
		return false
	}
	s.windowCount++
	return true
}

// fetch retrieves and parses the issuer's key set. The response body is
// limited to [maxJWKSBody].
func (s *SigningKeys) fetch(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.JWKSURL, nil)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to create JWKS request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: JWKS request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBody))
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read JWKS response: %w", err)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return nil, fmt.Errorf("auth: failed to parse JWKS JSON: %w", err)
	}

	keys := make(map[string]any, len(jwks.Keys))
	for _, k := range jwks.Keys {
		if k.Kid == "" {
			continue
		}
		switch k.Kty {
		case "RSA":
			pubKey, err := parseRSAPublicKey(k.N, k.E)
			if err != nil {
				continue // Skip malformed keys.
			}
			keys[k.Kid] = pubKey
		case "EC":
			pubKey, err := parseECPublicKey(k.Crv, k.X, k.Y)
			if err != nil {
				continue // Skip malformed keys.
			}
			keys[k.Kid] = pubKey
		}
	}
	return keys, nil
}

// jwksResponse represents the JSON structure of a JWKS endpoint response.
type jwksResponse struct {
	Keys []jwkKey `json:"keys"`
}

// jwkKey represents a single key in a JWKS response. Only the fields
// needed for RSA and EC key reconstruction are included.
type jwkKey struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	// RSA fields
	N string `json:"n"`
	E string `json:"e"`
	// EC fields
	Crv string `json:"crv"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// parseRSAPublicKey constructs an *rsa.PublicKey from base64url-encoded
// modulus (n) and exponent (e) values.
func parseRSAPublicKey(nBase64, eBase64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode RSA exponent: %w", err)
	}

	n := new(big.Int).SetBytes(nBytes)
	e := new(big.Int).SetBytes(eBytes)

	return &rsa.PublicKey{
		N: n,
		E: int(e.Int64()),
	}, nil
}

// parseECPublicKey constructs an *ecdsa.PublicKey from a curve name and
// base64url-encoded x and y coordinates.
func parseECPublicKey(crv, xBase64, yBase64 string) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("auth: unsupported EC curve %q", crv)
	}

	xBytes, err := base64.RawURLEncoding.DecodeString(xBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC x coordinate: %w", err)
	}
	yBytes, err := base64.RawURLEncoding.DecodeString(yBase64)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to decode EC y coordinate: %w", err)
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}
