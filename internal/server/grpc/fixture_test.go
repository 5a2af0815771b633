package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/cryptox"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/filelock"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/quota"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/session"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/users"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	owner    = models.OwnerUsername
	admin    = "Aya"
	auditor  = "auditor1"
	password = "s3cret-pass"
	secret   = "test-secret"
)

type fixture struct {
	srv      *GRPCServer
	users    *users.Manager
	sessions *session.Manager
	quotas   *quota.Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	l := logging.Discard()

	key, err := cryptox.GenerateKey()
	require.NoError(t, err)
	cipher, err := cryptox.ParseKey(key)
	require.NoError(t, err)

	store := jsonstore.New(dir, filelock.None{}, l)
	sessions := session.NewManager(ctx, store, l)
	quotas := quota.NewManager(ctx, store, l)
	um := users.NewManager(ctx, store, sessions, quotas, cipher, l,
		users.WithSeed([]users.SeedUser{
			{Username: owner, Role: models.RoleOwner},
			{Username: admin, Role: models.RoleAdmin},
			{Username: auditor, Role: models.RoleAuditor, DailyLimit: 3000},
		}, password),
		users.WithIncidentLog(users.NewIncidentLog(dir)),
	)

	srv := NewGRPCServer("127.0.0.1:0", l, um, sessions, secret, time.Hour)
	return fixture{srv: srv, users: um, sessions: sessions, quotas: quotas}
}

// as returns a context authenticated as username with a live session.
func (f fixture) as(t *testing.T, username string) context.Context {
	t.Helper()
	ctx := context.Background()
	sid := "sess-" + username
	require.NoError(t, f.sessions.Create(ctx, username, sid))
	return withIdentity(ctx, Identity{Username: username, SessionID: sid})
}

func req(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return s
}

func requireCode(t *testing.T, err error, code codes.Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, status.Code(err), "error: %v", err)
}
