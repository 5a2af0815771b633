package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestRun_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- f.srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "Run returned error on graceful stop")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	f := newFixture(t)
	f.srv.address = "127.0.0.1:99999"

	require.Error(t, f.srv.Run(context.Background()))
}

func dialBufconn(t *testing.T, f fixture) *AccessClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.srv.Serve(ctx, lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return NewAccessClient(conn)
}

func bearer(token string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), AccessTokenHeaderName, "Bearer "+token)
}

func login(t *testing.T, c *AccessClient, username string, force bool) string {
	t.Helper()
	in, err := structpb.NewStruct(map[string]any{"username": username, "password": password, "force": force})
	require.NoError(t, err)
	resp, err := c.Call(context.Background(), MethodLogin, in)
	require.NoError(t, err)
	return resp.Fields["access_token"].GetStringValue()
}

func TestAccessService_EndToEnd(t *testing.T) {
	f := newFixture(t)
	c := dialBufconn(t, f)

	_, err := c.Call(context.Background(), MethodMe, nil)
	requireCode(t, err, codes.Unauthenticated)

	token := login(t, c, auditor, false)

	me, err := c.Call(bearer(token), MethodMe, nil)
	require.NoError(t, err)
	assert.Equal(t, auditor, me.Fields["username"].GetStringValue())

	in, err := structpb.NewStruct(map[string]any{"username": auditor, "password": password})
	require.NoError(t, err)
	_, err = c.Call(context.Background(), MethodLogin, in)
	requireCode(t, err, codes.AlreadyExists)

	newer := login(t, c, auditor, true)

	_, err = c.Call(bearer(token), MethodCheckSession, nil)
	requireCode(t, err, codes.Unauthenticated)
	assert.Equal(t, "session expired", status.Convert(err).Message())

	_, err = c.Call(bearer(newer), MethodLogout, nil)
	require.NoError(t, err)

	_, err = c.Call(bearer(newer), MethodMe, nil)
	requireCode(t, err, codes.Unauthenticated)
}
