package auth

import (
	"context"
	"log/slog"
	"net/http"

	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	smerr "github.com/scholarmesh/scholarmesh-core/pkg/errors"
)

// metadataAuthorization is the incoming metadata key carrying the bearer
// token on internal service-to-service calls.
const metadataAuthorization = "authorization"

// UnaryServerInterceptor returns a gRPC unary server interceptor that gates
// calls behind token validation and an optional role requirement, mirroring
// the HTTP middleware for internal service-to-service traffic.
//
// The interceptor performs the following steps:
//  1. Extracts the "authorization" metadata value (bearer token)
//  2. Validates the token and resolves the subject identifier
//  3. Checks the subject's roles against the required set (if any)
//  4. Attaches subject and claims to the handler's context
//
// Failure mapping follows the platform taxonomy: token failures are
// Unauthenticated, a missing role is PermissionDenied, and key fetch or
// store failures are Unavailable, never a denial.
func UnaryServerInterceptor(resolver *Resolver, authorizer *Authorizer, required ...string) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		ctx, err := authenticateGRPC(ctx, resolver, authorizer, required)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// performs the same authentication and role gate as
// [UnaryServerInterceptor], wrapping the stream to carry the enriched
// context.
func StreamServerInterceptor(resolver *Resolver, authorizer *Authorizer, required ...string) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		ctx, err := authenticateGRPC(ss.Context(), resolver, authorizer, required)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// authenticateGRPC runs the extract/validate/authorize pipeline over
// incoming metadata and returns the enriched context, or a gRPC status
// error mapping the failure kind.
func authenticateGRPC(ctx context.Context, resolver *Resolver, authorizer *Authorizer, required []string) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(grpccodes.Unauthenticated, msgTokenRequired)
	}

	values := md.Get(metadataAuthorization)
	if len(values) == 0 {
		return ctx, status.Error(grpccodes.Unauthenticated, msgTokenRequired)
	}
	token, err := ExtractBearerToken(values[0])
	if err != nil {
		return ctx, status.Error(grpccodes.Unauthenticated, msgTokenRequired)
	}

	subject, claims, err := resolver.IdentifyClaims(ctx, token)
	if err != nil {
		return ctx, grpcStatusError(ctx, err)
	}

	if authorizer != nil {
		if err := authorizer.Authorize(ctx, subject, required...); err != nil {
			return ctx, grpcStatusError(ctx, err)
		}
	}

	ctx = ContextWithSubject(ctx, subject)
	ctx = ContextWithClaims(ctx, claims)
	return ctx, nil
}

// grpcStatusError maps a platform error to a gRPC status with a generic
// message; the specific kind goes to the log.
func grpcStatusError(ctx context.Context, err error) error {
	smErr := smerr.FromError(err)

	var code grpccodes.Code
	var msg string
	switch smErr.HTTPStatus() {
	case http.StatusUnauthorized:
		code, msg = grpccodes.Unauthenticated, msgSignInAgain
	case http.StatusForbidden:
		code, msg = grpccodes.PermissionDenied, msgNoAccess
	default:
		code, msg = grpccodes.Unavailable, msgUnavailable
	}

	slog.WarnContext(ctx, "auth: grpc request denied",
		"grpc_code", code.String(),
		"code", smErr.Code.String(),
		"error", err,
	)

	return status.Error(code, msg)
}

// wrappedServerStream wraps a grpc.ServerStream to override its Context
// method. ServerStream.Context() returns the original stream context, which
// does not contain the subject added by the interceptor.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context containing the authenticated subject.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
