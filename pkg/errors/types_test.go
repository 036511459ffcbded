package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "error without cause",
			err: &Error{
				Code:    CodeTokenEmpty,
				Message: "auth: token must not be empty",
			},
			want: "AUTH_004: auth: token must not be empty",
		},
		{
			name: "error with cause",
			err: &Error{
				Code:    CodeUnavailableDependency,
				Message: "roles: failed to query role assignments",
				Cause:   errors.New("connection refused"),
			},
			want: "UNAVAIL_002: roles: failed to query role assignments: connection refused",
		},
		{
			name: "error with nested platform error cause",
			err: &Error{
				Code:    CodeAuthentication,
				Message: "auth: token validation failed",
				Cause: &Error{
					Code:    CodeTokenExpired,
					Message: "auth: token has expired",
				},
			},
			want: "AUTH_001: auth: token validation failed: AUTH_002: auth: token has expired",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("underlying failure")
	err := Wrap(cause, CodeInternal, "operation failed")

	assert.Equal(t, cause, err.Unwrap())
	assert.True(t, errors.Is(err, cause))
}

func TestError_Unwrap_ErrorsAs(t *testing.T) {
	t.Parallel()
	inner := New(CodeTokenExpired, "auth: token has expired")
	outer := Wrap(inner, CodeAuthentication, "auth: token validation failed")

	var e *Error
	require.True(t, errors.As(outer, &e))
	assert.Equal(t, CodeAuthentication, e.Code)
}

func TestError_HTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code Code
		want int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeTokenEmpty, http.StatusUnauthorized},
		{CodeTokenExpired, http.StatusUnauthorized},
		{CodeSignatureInvalid, http.StatusUnauthorized},
		{CodeAudienceMismatch, http.StatusUnauthorized},
		{CodeAuthorizationDenied, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeInternalDatabase, http.StatusInternalServerError},
		{CodeUnavailableDependency, http.StatusServiceUnavailable},
		{CodeTimeoutDatabase, http.StatusGatewayTimeout},
		{Code("BOGUS_001"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			t.Parallel()
			err := &Error{Code: tt.code, Message: "test"}
			assert.Equal(t, tt.want, err.HTTPStatus())
		})
	}
}

func TestError_WithDetail(t *testing.T) {
	t.Parallel()
	original := New(CodeUnavailableDependency, "auth: signing key not found")
	detailed := original.WithDetail("kid", "kid-1")

	assert.Equal(t, "kid-1", detailed.Details["kid"])
	assert.Nil(t, original.Details, "WithDetail must not modify the original")
}

func TestError_WithDetail_Chaining(t *testing.T) {
	t.Parallel()
	err := New(CodeAuthorizationDenied, "auth: not authorized").
		WithDetail("subject", "user-42").
		WithDetail("required_roles", []string{"admin"})

	assert.Equal(t, "user-42", err.Details["subject"])
	assert.Equal(t, []string{"admin"}, err.Details["required_roles"])
}

func TestError_Format(t *testing.T) {
	t.Parallel()
	err := Wrap(errors.New("dial tcp: connection refused"),
		CodeUnavailableDependency, "auth: failed to fetch signing keys")

	plain := fmt.Sprintf("%v", err)
	assert.Contains(t, plain, "UNAVAIL_002")

	detailed := fmt.Sprintf("%+v", err)
	assert.Contains(t, detailed, "Code:")
	assert.Contains(t, detailed, "Cause:")
}
