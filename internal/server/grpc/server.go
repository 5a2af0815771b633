// Package grpc exposes the access-control core as the AccessService gRPC
// service: login sessions, provisioning and quota dashboards.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/quota"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/session"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/users"
	"google.golang.org/grpc"
)

// Directory is the user-manager surface the service calls.
type Directory interface {
	VerifyPassword(ctx context.Context, username, password string) bool
	GetUser(ctx context.Context, username string) (models.User, bool)
	GetUserRole(ctx context.Context, username string) models.Role
	HasSettingsAccess(ctx context.Context, username string) bool
	CanManageUsers(ctx context.Context, username string) bool
	CanAdminModifyUser(ctx context.Context, actor, target string) bool
	CreateUserWithQuota(ctx context.Context, username string, in users.NewUser, createdBy string, dailyQuota int) (string, error)
	RemoveUserWithQuota(ctx context.Context, username, removedBy string) (string, error)
	UpdateUser(ctx context.Context, username string, upd users.UserUpdate, updatedBy string) error
	InvalidateUserSession(ctx context.Context, target, actor string) error
	SetAdminLimitsAsOwner(ctx context.Context, admin string, maxUsers, dailyQuota int, owner string) (string, error)
	AllAdminLimitsAsOwner(ctx context.Context, owner string) (map[string]quota.AdminOverview, error)
	AdminQuotaInfo(ctx context.Context, admin string) (quota.AdminDashboard, error)
	UserQuotaStatus(ctx context.Context, username string) quota.UserStatus
	RecordUsage(ctx context.Context, username string, amount int) (string, error)
	CheckUsage(ctx context.Context, username string, amount int) (string, error)
	AdjustUserQuota(ctx context.Context, username string, newQuota int, actor string) (string, error)
	RedistributionOptions(ctx context.Context, admin, actor string) (quota.RedistributionOptions, error)
	RedistributionImpact(ctx context.Context, admin string, alloc map[string]int, actor string) (quota.RedistributionImpact, error)
	ApplyRedistribution(ctx context.Context, admin string, alloc map[string]int, actor string) (string, error)
	SuggestRedistribution(ctx context.Context, admin, actor string) (quota.Suggestion, error)
	ReadymodeCredentials(ctx context.Context, username string) (user, pass string, ok bool)
	AssemblyAIKey(ctx context.Context, username string) (string, bool)
}

// Sessions is the session-manager surface the service calls.
type Sessions interface {
	CreateFrom(ctx context.Context, username, sessionID string, client session.ClientInfo) error
	Validate(ctx context.Context, username, sessionID string) bool
	Invalidate(ctx context.Context, username, sessionID string) bool
	CheckExisting(ctx context.Context, username string) (string, bool)
	Info(ctx context.Context, username string) (models.Session, bool)
}

var _ Directory = (*users.Manager)(nil)
var _ Sessions = (*session.Manager)(nil)

type GRPCServer struct {
	address   string
	users     Directory
	sessions  Sessions
	logger    logging.Logger
	jwtSecret []byte
	tokenTTL  time.Duration
	newID     func() string
}

var _ AccessServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, dir Directory, sessions Sessions, secretKey string, tokenTTL time.Duration) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     dir,
		sessions:  sessions,
		jwtSecret: []byte(secretKey),
		tokenTTL:  tokenTTL,
		newID:     newSessionID,
	}
}

// newServer builds a grpc.Server carrying the service and its interceptors.
func (s *GRPCServer) newServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.accessTokenInterceptor))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&AccessServiceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
