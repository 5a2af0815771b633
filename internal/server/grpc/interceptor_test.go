package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func withToken(token string) context.Context {
	md := metadata.New(map[string]string{AccessTokenHeaderName: "Bearer " + token})
	return metadata.NewIncomingContext(context.Background(), md)
}

func TestInterceptor_LoginIsPublic(t *testing.T) {
	f := newFixture(t)

	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodLogin)}
	called := false
	h := func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	}

	resp, err := f.srv.accessTokenInterceptor(context.Background(), nil, info, h)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_Rejections(t *testing.T) {
	f := newFixture(t)
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodMe)}
	h := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler must not run")
		return nil, nil
	}

	expired, err := auth.GenerateToken(auditor, "s1", []byte(secret), -time.Second)
	require.NoError(t, err)
	noSession, err := auth.GenerateToken(auditor, "s-unknown", []byte(secret), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		ctx  context.Context
		msg  string
	}{
		{"missing token", context.Background(), "missing token"},
		{"garbage token", withToken("not-a-jwt"), "invalid token"},
		{"expired token", withToken(expired), "token expired"},
		{"no live session", withToken(noSession), "session expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.srv.accessTokenInterceptor(tt.ctx, nil, info, h)
			requireCode(t, err, codes.Unauthenticated)
			assert.Equal(t, tt.msg, status.Convert(err).Message())
		})
	}
}

func TestInterceptor_ValidTokenSetsIdentity(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sessions.Create(context.Background(), auditor, "s1"))

	token, err := auth.GenerateToken(auditor, "s1", []byte(secret), time.Hour)
	require.NoError(t, err)

	var got Identity
	h := func(ctx context.Context, req any) (any, error) {
		got, _ = IdentityFrom(ctx)
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodMe)}

	_, err = f.srv.accessTokenInterceptor(withToken(token), nil, info, h)
	require.NoError(t, err)
	assert.Equal(t, Identity{Username: auditor, SessionID: "s1"}, got)
}

func TestInterceptor_ReplacedSessionRevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Create(ctx, auditor, "old"))
	token, err := auth.GenerateToken(auditor, "old", []byte(secret), time.Hour)
	require.NoError(t, err)

	require.NoError(t, f.sessions.Create(ctx, auditor, "new"))

	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodMe)}
	_, err = f.srv.accessTokenInterceptor(withToken(token), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, nil
	})
	requireCode(t, err, codes.Unauthenticated)
}

func TestRecoverInterceptor(t *testing.T) {
	f := newFixture(t)
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(MethodMe)}

	_, err := f.srv.recoverInterceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		panic("kaput")
	})
	requireCode(t, err, codes.Internal)
}

func TestTokenFromMetadata(t *testing.T) {
	md := metadata.New(map[string]string{AccessTokenHeaderName: "raw-token"})
	assert.Equal(t, "raw-token", tokenFromMetadata(metadata.NewIncomingContext(context.Background(), md)))
	assert.Equal(t, "abc", tokenFromMetadata(withToken("abc")))
	assert.Empty(t, tokenFromMetadata(context.Background()))
}
