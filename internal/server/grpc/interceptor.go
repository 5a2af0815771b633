package grpc

import (
	"context"
	"errors"
	"runtime/debug"
	"strings"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AccessTokenHeaderName carries "Bearer <jwt>" or the bare token.
const AccessTokenHeaderName = "authorization"

type ctxKey struct{}

// Identity is the authenticated caller of a request.
type Identity struct {
	Username  string
	SessionID string
}

func withIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the caller stored by the access token interceptor.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

var publicMethods = map[string]bool{
	FullMethod(MethodLogin): true,
}

func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(AccessTokenHeaderName)
	if len(values) == 0 {
		return ""
	}
	tok := strings.TrimSpace(values[0])
	if len(tok) > 7 && strings.EqualFold(tok[:7], "bearer ") {
		tok = strings.TrimSpace(tok[7:])
	}
	return tok
}

// accessTokenInterceptor authenticates every call except Login. The token
// must be valid and the session it names must still be live; validating the
// session also slides its expiry.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	accessToken := tokenFromMetadata(ctx)
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	if !s.sessions.Validate(ctx, claims.Username, claims.SessionID) {
		s.logger.Info(ctx, "rejected call on ended session", "username", claims.Username, "method", info.FullMethod)
		return nil, status.Error(codes.Unauthenticated, "session expired")
	}

	return handler(withIdentity(ctx, Identity{Username: claims.Username, SessionID: claims.SessionID}), req)
}

func (s *GRPCServer) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error(ctx, "handler panic", "method", info.FullMethod, "panic", p, "stack", string(debug.Stack()))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}
