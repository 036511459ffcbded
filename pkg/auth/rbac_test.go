package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeRoleStore struct {
	roles map[string][]string
	err   error
	calls int
}

func (s *fakeRoleStore) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	roles, ok := s.roles[userID]
	if !ok {
		return []string{}, nil
	}
	return roles, nil
}

var errCacheMiss = errors.New("cache miss")

type fakeRoleCache struct {
	entries  map[string]string
	getErr   error
	setErr   error
	getCalls int
	setCalls int
}

func newFakeRoleCache() *fakeRoleCache {
	return &fakeRoleCache{entries: make(map[string]string)}
}

func (c *fakeRoleCache) Get(ctx context.Context, key string) (string, error) {
	c.getCalls++
	if c.getErr != nil {
		return "", c.getErr
	}
	value, ok := c.entries[key]
	if !ok {
		return "", errCacheMiss
	}
	return value, nil
}

func (c *fakeRoleCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	c.setCalls++
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[key] = value.(string)
	return nil
}

// ---------------------------------------------------------------------------
// Authorize tests
// ---------------------------------------------------------------------------

func TestAuthorize_EmptyUserID(t *testing.T) {
	a := NewAuthorizer(&fakeRoleStore{})

	err := a.Authorize(context.Background(), "", "admin")
	require.Error(t, err)
	assert.True(t, smerr.IsValidation(err))
}

func TestAuthorize_NoRequiredRoles(t *testing.T) {
	store := &fakeRoleStore{}
	a := NewAuthorizer(store)

	err := a.Authorize(context.Background(), "user-42")
	assert.NoError(t, err)
	assert.Zero(t, store.calls, "authentication-only routes must not hit the store")
}

func TestAuthorize_RolePresent(t *testing.T) {
	a := NewAuthorizer(&fakeRoleStore{roles: map[string][]string{
		"user-42": {"researcher", "reviewer"},
	}})

	assert.NoError(t, a.Authorize(context.Background(), "user-42", "reviewer"))
}

func TestAuthorize_AnyOfRequired(t *testing.T) {
	a := NewAuthorizer(&fakeRoleStore{roles: map[string][]string{
		"user-42": {"researcher"},
	}})

	// Holding any one of the required roles is enough.
	assert.NoError(t, a.Authorize(context.Background(), "user-42", "admin", "researcher"))
}

func TestAuthorize_RoleAbsent(t *testing.T) {
	a := NewAuthorizer(&fakeRoleStore{roles: map[string][]string{
		"user-42": {"researcher"},
	}})

	err := a.Authorize(context.Background(), "user-42", "admin")
	require.Error(t, err)
	assert.True(t, smerr.HasCode(err, smerr.CodeAuthorizationDenied))
}

func TestAuthorize_NoAssignments(t *testing.T) {
	a := NewAuthorizer(&fakeRoleStore{})

	err := a.Authorize(context.Background(), "user-without-roles", "admin")
	require.Error(t, err)
	assert.True(t, smerr.HasCode(err, smerr.CodeAuthorizationDenied))
}

func TestAuthorize_StoreFailureIsNotDenial(t *testing.T) {
	storeErr := smerr.New(smerr.CodeUnavailableDependency, "roles: failed to query role assignments")
	a := NewAuthorizer(&fakeRoleStore{err: storeErr})

	err := a.Authorize(context.Background(), "user-42", "admin")
	require.Error(t, err)
	assert.True(t, smerr.IsUnavailable(err))
	assert.False(t, smerr.HasCode(err, smerr.CodeAuthorizationDenied),
		"a store failure must never be reported as a denial")
}

// ---------------------------------------------------------------------------
// Cache behavior
// ---------------------------------------------------------------------------

func TestAuthorize_CacheHitSkipsStore(t *testing.T) {
	store := &fakeRoleStore{roles: map[string][]string{
		"user-42": {"reviewer"},
	}}
	cache := newFakeRoleCache()
	a := NewAuthorizer(store, WithRoleCache(cache, time.Minute))

	require.NoError(t, a.Authorize(context.Background(), "user-42", "reviewer"))
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, 1, cache.setCalls)

	// Second decision is served entirely from the cache.
	require.NoError(t, a.Authorize(context.Background(), "user-42", "reviewer"))
	assert.Equal(t, 1, store.calls)
}

func TestAuthorize_CacheFailureFallsBackToStore(t *testing.T) {
	store := &fakeRoleStore{roles: map[string][]string{
		"user-42": {"reviewer"},
	}}
	cache := newFakeRoleCache()
	cache.getErr = errors.New("connection refused")
	cache.setErr = errors.New("connection refused")
	a := NewAuthorizer(store, WithRoleCache(cache, time.Minute))

	err := a.Authorize(context.Background(), "user-42", "reviewer")
	assert.NoError(t, err, "a broken cache must degrade to store lookups")
	assert.Equal(t, 1, store.calls)
}

func TestAuthorize_UndecodableCacheEntry(t *testing.T) {
	store := &fakeRoleStore{roles: map[string][]string{
		"user-42": {"reviewer"},
	}}
	cache := newFakeRoleCache()
	cache.entries[roleCacheKey("user-42")] = "{corrupt"
	a := NewAuthorizer(store, WithRoleCache(cache, time.Minute))

	require.NoError(t, a.Authorize(context.Background(), "user-42", "reviewer"))
	assert.Equal(t, 1, store.calls)
	assert.JSONEq(t, `["reviewer"]`, cache.entries[roleCacheKey("user-42")],
		"corrupt entry must be overwritten from the store")
}

func TestRolesFor(t *testing.T) {
	a := NewAuthorizer(&fakeRoleStore{roles: map[string][]string{
		"user-42": {"admin", "researcher"},
	}})

	roles, err := a.RolesFor(context.Background(), "user-42")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "researcher"}, roles)
}

func TestRolesFor_EmptyUserID(t *testing.T) {
	a := NewAuthorizer(&fakeRoleStore{})

	_, err := a.RolesFor(context.Background(), "")
	require.Error(t, err)
	assert.True(t, smerr.IsValidation(err))
}

func TestRoleCacheKey(t *testing.T) {
	assert.Equal(t, "scholarmesh:roles:user-42", roleCacheKey("user-42"))
}
