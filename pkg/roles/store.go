// Package roles provides access to role assignments persisted in PostgreSQL.
//
// Role assignments are the source of truth for authorization decisions:
// every user may hold zero or more named roles (e.g., "researcher",
// "reviewer", "admin"), stored in the user_roles join table. The [Store]
// reads them through the platform's [postgres.Client], so queries carry
// OpenTelemetry spans and structured errors like every other database
// access on the platform.
package roles

import (
	"context"

	"github.com/scholarmesh/scholarmesh-core/pkg/clients/postgres"
	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

// rolesForUserSQL resolves the role names assigned to a user. Role names
// live in the roles table; user_roles holds the assignments.
const rolesForUserSQL = `
SELECT r.name
FROM roles r
JOIN user_roles ur ON ur.role_id = r.id
WHERE ur.user_id = $1
ORDER BY r.name`

// Store reads role assignments from PostgreSQL.
//
// A Store is safe for concurrent use by multiple goroutines. Create one
// Store per database client and share it across the application.
type Store struct {
	db *postgres.Client
}

// NewStore creates a role store backed by the given database client.
func NewStore(db *postgres.Client) *Store {
	return &Store{db: db}
}

// RolesForUser returns the names of all roles assigned to the given user.
//
// A user with no role assignments yields an empty, non-nil slice and no
// error: "no roles" is a valid authorization state, not a failure.
// Unknown user IDs behave the same way since the join simply matches
// nothing.
//
// Database failures are returned as [*smerr.Error] with a 5xx-class code
// ([smerr.CodeInternalDatabase] or [smerr.CodeTimeoutDatabase] from the
// client layer), wrapped as [smerr.CodeUnavailableDependency]. Callers
// must not interpret a store failure as a denial.
func (s *Store) RolesForUser(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, smerr.New(smerr.CodeValidation,
			"roles: user ID must not be empty")
	}

	rows, err := s.db.Query(ctx, rolesForUserSQL, userID)
	if err != nil {
		return nil, smerr.Wrap(err, smerr.CodeUnavailableDependency,
			"roles: failed to query role assignments")
	}
	defer rows.Close()

	names := make([]string, 0, 4)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, smerr.Wrap(err, smerr.CodeInternalDatabase,
				"roles: failed to scan role name")
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, smerr.Wrap(err, smerr.CodeUnavailableDependency,
			"roles: failed to read role assignments")
	}

	return names, nil
}
