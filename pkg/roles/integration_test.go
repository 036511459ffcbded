//go:build integration

// Package roles_test contains integration tests for the role store that
// require a running PostgreSQL instance via testcontainers-go. These tests
// are gated behind the "integration" build tag and are executed in CI with
// Docker.
//
// Run locally with:
//
//	go test -v -race -tags=integration ./pkg/roles/...
package roles_test

import (
	"context"
	"testing"
	"time"

	"github.com/scholarmesh/scholarmesh-core/internal/testutil/containers"
	"github.com/scholarmesh/scholarmesh-core/pkg/clients/postgres"
	"github.com/scholarmesh/scholarmesh-core/pkg/roles"
)

// rolesSchema creates the tables the store reads from and seeds a small
// set of users and assignments:
//
//	user-1: admin, reviewer
//	user-2: researcher
//	user-3: (no assignments)
const rolesSchema = `
CREATE TABLE roles (
	id SERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL
);
CREATE TABLE user_roles (
	user_id TEXT NOT NULL,
	role_id INTEGER NOT NULL REFERENCES roles(id),
	PRIMARY KEY (user_id, role_id)
);
INSERT INTO roles (name) VALUES ('admin'), ('reviewer'), ('researcher');
INSERT INTO user_roles (user_id, role_id) VALUES
	('user-1', 1),
	('user-1', 2),
	('user-2', 3);
`

// setupStore starts a PostgreSQL container, connects through the
// connection manager, applies the role schema, and returns a ready
// store. Everything is cleaned up when the test completes.
func setupStore(t *testing.T) *roles.Store {
	t.Helper()

	ctx := context.Background()

	result, err := containers.StartPostgres(ctx)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := result.Container.Terminate(ctx); termErr != nil {
			t.Logf("failed to terminate postgres container: %v", termErr)
		}
	})

	cfg := postgres.Config{
		URI:      result.ConnString,
		MaxConns: 5,
		MinConns: 1,
	}
	mgr := postgres.NewManager(cfg)
	if err := mgr.ConnectWithRetry(ctx, 2, 100*time.Millisecond); err != nil {
		t.Fatalf("ConnectWithRetry() error: %v", err)
	}
	t.Cleanup(mgr.Close)

	if _, err := mgr.Client().Exec(ctx, rolesSchema); err != nil {
		t.Fatalf("failed to apply role schema: %v", err)
	}

	return roles.NewStore(mgr.Client())
}

// ===========================================================================
// Role Resolution Tests
// ===========================================================================

// TestIntegration_RolesForUser_ReturnsAssignments verifies that the store
// resolves a user's assigned role names, sorted by name.
func TestIntegration_RolesForUser_ReturnsAssignments(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := setupStore(t)
	ctx := context.Background()

	got, err := store.RolesForUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("RolesForUser() error: %v", err)
	}
	if len(got) != 2 || got[0] != "admin" || got[1] != "reviewer" {
		t.Errorf("RolesForUser() = %v, want [admin reviewer]", got)
	}
}

// TestIntegration_RolesForUser_SingleAssignment verifies resolution for a
// user holding exactly one role.
func TestIntegration_RolesForUser_SingleAssignment(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := setupStore(t)
	ctx := context.Background()

	got, err := store.RolesForUser(ctx, "user-2")
	if err != nil {
		t.Fatalf("RolesForUser() error: %v", err)
	}
	if len(got) != 1 || got[0] != "researcher" {
		t.Errorf("RolesForUser() = %v, want [researcher]", got)
	}
}

// TestIntegration_RolesForUser_NoAssignments verifies that a user with no
// assignments yields an empty, non-nil slice and no error.
func TestIntegration_RolesForUser_NoAssignments(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := setupStore(t)
	ctx := context.Background()

	got, err := store.RolesForUser(ctx, "user-3")
	if err != nil {
		t.Fatalf("RolesForUser() error: %v", err)
	}
	if got == nil {
		t.Fatal("RolesForUser() returned nil slice, want empty non-nil")
	}
	if len(got) != 0 {
		t.Errorf("RolesForUser() = %v, want empty", got)
	}
}

// TestIntegration_RolesForUser_UnknownUser verifies that an unknown user
// ID behaves like a user with no assignments.
func TestIntegration_RolesForUser_UnknownUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	store := setupStore(t)
	ctx := context.Background()

	got, err := store.RolesForUser(ctx, "no-such-user")
	if err != nil {
		t.Fatalf("RolesForUser() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("RolesForUser() = %v, want empty", got)
	}
}
