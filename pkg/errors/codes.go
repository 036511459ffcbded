package errors

// Code represents a machine-readable error code for categorizing errors.
// Error codes follow the pattern CATEGORY_XXX where CATEGORY is a short
// identifier (e.g., AUTH, AUTHZ, UNAVAIL) and XXX is a three-digit number.
//
// Codes are stable once assigned: clients, dashboards, and audit pipelines
// key off them, so existing values are never renumbered.
type Code string

// Error code categories and their HTTP mapping:
//
//	VAL_xxx     - Validation errors (400 Bad Request)
//	AUTH_xxx    - Authentication errors (401 Unauthorized)
//	AUTHZ_xxx   - Authorization errors (403 Forbidden)
//	NF_xxx      - Not found errors (404 Not Found)
//	INT_xxx     - Internal errors (500 Internal Server Error)
//	UNAVAIL_xxx - Dependency unavailable (503 Service Unavailable)
//	TIMEOUT_xxx - Timeout errors (504 Gateway Timeout)
const (
	// Validation errors (VAL_xxx) - HTTP 400

	// CodeValidation indicates a general validation failure.
	CodeValidation Code = "VAL_001"

	// CodeValidationRequired indicates a required field is missing.
	CodeValidationRequired Code = "VAL_002"

	// Authentication errors (AUTH_xxx) - HTTP 401
	// One code per token failure kind. The validator never collapses a
	// specific kind into CodeAuthentication; that code is reserved for the
	// single wrapped shape the identity resolver hands to callers.

	// CodeAuthentication indicates a general authentication failure.
	CodeAuthentication Code = "AUTH_001"

	// CodeTokenExpired indicates the bearer token's expiry has passed.
	CodeTokenExpired Code = "AUTH_002"

	// CodeTokenMalformed indicates the token could not be decoded
	// structurally or lacks a key identifier in its header.
	CodeTokenMalformed Code = "AUTH_003"

	// CodeTokenEmpty indicates no token was presented.
	CodeTokenEmpty Code = "AUTH_004"

	// CodeSignatureInvalid indicates the token signature did not verify
	// against the issuer's published key.
	CodeSignatureInvalid Code = "AUTH_005"

	// CodeTokenNotYetValid indicates the token's not-before time is in
	// the future.
	CodeTokenNotYetValid Code = "AUTH_006"

	// CodeAudienceMismatch indicates none of the token's audiences is in
	// the accepted set.
	CodeAudienceMismatch Code = "AUTH_007"

	// Authorization errors (AUTHZ_xxx) - HTTP 403

	// CodeAuthorization indicates a general authorization failure.
	CodeAuthorization Code = "AUTHZ_001"

	// CodeAuthorizationDenied indicates the user holds none of the roles
	// a route requires.
	CodeAuthorizationDenied Code = "AUTHZ_002"

	// Not found errors (NF_xxx) - HTTP 404

	// CodeNotFound indicates a general not found error.
	CodeNotFound Code = "NF_001"

	// Internal errors (INT_xxx) - HTTP 500

	// CodeInternal indicates a general internal error.
	CodeInternal Code = "INT_001"

	// CodeInternalDatabase indicates a database operation failed.
	CodeInternalDatabase Code = "INT_002"

	// CodeInternalConfiguration indicates a configuration error.
	CodeInternalConfiguration Code = "INT_003"

	// Unavailable errors (UNAVAIL_xxx) - HTTP 503
	// Dependency failures are reported here, never as a denial: callers
	// must be able to tell "you are not allowed" apart from "the system
	// could not determine whether you are allowed".

	// CodeUnavailable indicates a general service unavailable error.
	CodeUnavailable Code = "UNAVAIL_001"

	// CodeUnavailableDependency indicates a dependency (signing-key
	// endpoint, role store) is unavailable after bounded retry.
	CodeUnavailableDependency Code = "UNAVAIL_002"

	// Timeout errors (TIMEOUT_xxx) - HTTP 504

	// CodeTimeout indicates a general timeout error.
	CodeTimeout Code = "TIMEOUT_001"

	// CodeTimeoutDatabase indicates a database operation timed out.
	CodeTimeoutDatabase Code = "TIMEOUT_002"
)

// String returns the string representation of the error code.
func (c Code) String() string {
	return string(c)
}

// Category returns the category prefix of the error code (e.g., "AUTH").
func (c Code) Category() string {
	s := string(c)
	for i, r := range s {
		if r == '_' {
			return s[:i]
		}
	}
	return s
}
