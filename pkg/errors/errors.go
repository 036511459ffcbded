// Package errors provides standardized error types and error handling
// utilities for the ScholarMesh platform. It defines the error categories the
// identity-and-access layer reports, machine-readable error codes, and helper
// functions for creating, wrapping, and inspecting errors across services.
//
// # Error Categories
//
// The package defines categories that map directly to the failure surface of
// the access layer:
//
//   - Validation errors: Invalid input, missing required fields
//   - Authentication errors: Missing, malformed, expired, or untrusted tokens
//   - Authorization errors: Role missing, access denied
//   - NotFound errors: Resource does not exist
//   - Internal errors: Unexpected system failures
//   - Unavailable errors: A dependency (key endpoint, role store) is down
//   - Timeout errors: Operation exceeded its time limit
//
// # Error Codes
//
// Each error carries a stable machine-readable code (e.g., "AUTH_002") used
// for audit logging, alerting, and client-side handling. Codes follow the
// pattern CATEGORY_XXX.
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.CodeTokenExpired, "bearer token has expired")
//
// Wrap an underlying cause:
//
//	err := errors.Wrap(err, errors.CodeUnavailableDependency, "role store unreachable")
//
// Branch on category:
//
//	if errors.IsAuthentication(err) {
//	    // respond 401
//	}
package errors
