package auth

import (
	"context"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

func TestNewSigningKeys_RequiresURL(t *testing.T) {
	_, err := NewSigningKeys(KeysConfig{})
	require.Error(t, err)
	assert.True(t, smerr.IsValidation(err))
}

func TestGetKey_EmptyKid(t *testing.T) {
	keys, err := NewSigningKeys(KeysConfig{JWKSURL: "http://issuer.example/jwks"})
	require.NoError(t, err)

	_, err = keys.GetKey(context.Background(), "")
	require.Error(t, err)
	assert.True(t, smerr.HasCode(err, smerr.CodeTokenMalformed))
}

func TestGetKey_FetchesAndCaches(t *testing.T) {
	_, pub := authTestGenerateRSAKeyPair(t)
	srv, requests := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": pub}, nil)

	keys, err := NewSigningKeys(KeysConfig{JWKSURL: srv.URL})
	require.NoError(t, err)

	key, err := keys.GetKey(context.Background(), "kid-1")
	require.NoError(t, err)
	require.IsType(t, &rsa.PublicKey{}, key)
	assert.Equal(t, pub.N, key.(*rsa.PublicKey).N)
	assert.Equal(t, int64(1), requests.Load())

	// Second lookup is served from the cache without a network call.
	_, err = keys.GetKey(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), requests.Load())
}

func TestGetKey_CacheOutlivesIssuer(t *testing.T) {
	_, pub := authTestGenerateRSAKeyPair(t)
	srv, _ := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": pub}, nil)

	keys, err := NewSigningKeys(KeysConfig{JWKSURL: srv.URL})
	require.NoError(t, err)

	_, err = keys.GetKey(context.Background(), "kid-1")
	require.NoError(t, err)

	// A cached key stays resolvable even after the issuer goes away.
	srv.Close()
	_, err = keys.GetKey(context.Background(), "kid-1")
	assert.NoError(t, err)
}

func TestGetKey_UnknownKid(t *testing.T) {
	_, pub := authTestGenerateRSAKeyPair(t)
	srv, requests := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": pub}, nil)

	keys, err := NewSigningKeys(KeysConfig{JWKSURL: srv.URL})
	require.NoError(t, err)

	_, err = keys.GetKey(context.Background(), "kid-unknown")
	require.Error(t, err)
	assert.True(t, smerr.HasCode(err, smerr.CodeUnavailableDependency))
	assert.Equal(t, int64(1), requests.Load(), "unknown kid must trigger a fresh fetch")
}

func TestGetKey_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	keys, err := NewSigningKeys(KeysConfig{JWKSURL: srv.URL})
	require.NoError(t, err)

	_, err = keys.GetKey(context.Background(), "kid-1")
	require.Error(t, err)
	assert.True(t, smerr.HasCode(err, smerr.CodeUnavailableDependency))
}

func TestGetKey_UnreachableIssuer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	keys, err := NewSigningKeys(KeysConfig{JWKSURL: srv.URL})
	require.NoError(t, err)

	_, err = keys.GetKey(context.Background(), "kid-1")
	require.Error(t, err)
	assert.True(t, smerr.HasCode(err, smerr.CodeUnavailableDependency))
}

func TestGetKey_FetchBudgetExhausted(t *testing.T) {
	_, pub := authTestGenerateRSAKeyPair(t)
	srv, requests := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": pub}, nil)

	keys, err := NewSigningKeys(KeysConfig{JWKSURL: srv.URL, FetchesPerMinute: 2})
	require.NoError(t, err)

	// Each unknown kid forces a fresh fetch. The third miss in the same
	// window must fail without touching the issuer.
	_, err = keys.GetKey(context.Background(), "miss-1")
	require.Error(t, err)
	_, err = keys.GetKey(context.Background(), "miss-2")
	require.Error(t, err)
	assert.Equal(t, int64(2), requests.Load())

	_, err = keys.GetKey(context.Background(), "miss-3")
	require.Error(t, err)
	assert.True(t, smerr.HasCode(err, smerr.CodeUnavailableDependency))
	assert.Equal(t, int64(2), requests.Load(), "exhausted budget must not reach the issuer")
}

func TestGetKey_ConcurrentMissesCoalesce(t *testing.T) {
	_, pub := authTestGenerateRSAKeyPair(t)
	srv, requests := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": pub}, nil)

	keys, err := NewSigningKeys(KeysConfig{JWKSURL: srv.URL})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := keys.GetKey(context.Background(), "kid-1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), requests.Load(),
		"concurrent lookups for the same kid must share one fetch")
}

func TestKnownKeys(t *testing.T) {
	_, pub := authTestGenerateRSAKeyPair(t)
	srv, _ := authTestServeJWKS(t, map[string]*rsa.PublicKey{"kid-1": pub}, nil)

	keys, err := NewSigningKeys(KeysConfig{JWKSURL: srv.URL})
	require.NoError(t, err)
	assert.Empty(t, keys.KnownKeys())

	_, err = keys.GetKey(context.Background(), "kid-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"kid-1"}, keys.KnownKeys())
}

func TestFetch_MalformedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	t.Cleanup(srv.Close)

	keys, err := NewSigningKeys(KeysConfig{JWKSURL: srv.URL})
	require.NoError(t, err)

	_, err = keys.GetKey(context.Background(), "kid-1")
	require.Error(t, err)
	assert.True(t, smerr.HasCode(err, smerr.CodeUnavailableDependency))
}
