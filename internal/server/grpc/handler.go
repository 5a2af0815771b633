package grpc

import (
	"context"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/models"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/server/auth"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/session"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/users"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func newSessionID() string {
	return uuid.NewString()
}

func caller(ctx context.Context) (Identity, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return Identity{}, status.Error(codes.Unauthenticated, "unauthenticated")
	}
	return id, nil
}

func clientInfo(ctx context.Context, in *structpb.Struct) session.ClientInfo {
	ci := session.ClientInfo{
		IPAddress: getString(in, "ip_address"),
		UserAgent: getString(in, "user_agent"),
	}
	if ci.IPAddress == "" {
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			ci.IPAddress = p.Addr.String()
		}
	}
	if ci.UserAgent == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ua := md.Get("user-agent"); len(ua) > 0 {
				ci.UserAgent = ua[0]
			}
		}
	}
	return ci
}

// Login verifies the password, opens a session and returns an access token.
// A live session blocks the login unless "force" is set, in which case the
// old session is replaced.
func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	username, err := required(in, "username")
	if err != nil {
		return nil, err
	}
	password := getString(in, "password")

	if !s.users.VerifyPassword(ctx, username, password) {
		s.logger.Warn(ctx, "login failed", "username", username)
		return nil, status.Error(codes.Unauthenticated, "invalid username or password")
	}

	if _, live := s.sessions.CheckExisting(ctx, username); live && !boolean(in, "force") {
		return nil, status.Error(codes.AlreadyExists, "an active session already exists for this user")
	}

	sessionID := s.newID()
	if err := s.sessions.CreateFrom(ctx, username, sessionID, clientInfo(ctx, in)); err != nil {
		s.logger.Error(ctx, "session create failed", "username", username, "error", err)
		return nil, toStatus(err)
	}

	token, err := auth.GenerateToken(username, sessionID, s.jwtSecret, s.tokenTTL)
	if err != nil {
		s.logger.Error(ctx, "token signing failed", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	s.logger.Info(ctx, "logged in", "username", username)
	return structpb.NewStruct(map[string]any{
		"access_token": token,
		"session_id":   sessionID,
		"username":     username,
		"role":         s.users.GetUserRole(ctx, username).String(),
		"expires_at":   time.Now().Add(s.tokenTTL).UTC().Format(time.RFC3339),
	})
}

func (s *GRPCServer) Logout(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if !s.sessions.Invalidate(ctx, id.Username, id.SessionID) {
		return nil, toStatus(users.ErrNoSession)
	}
	s.logger.Info(ctx, "logged out", "username", id.Username)
	return message("Logged out"), nil
}

// CheckSession reports the caller's session; reaching the handler means the
// interceptor already validated it.
func (s *GRPCServer) CheckSession(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	out := map[string]any{
		"valid":      true,
		"username":   id.Username,
		"session_id": id.SessionID,
	}
	if info, ok := s.sessions.Info(ctx, id.Username); ok {
		out["created_at"] = timex.Format(info.CreatedAt.Time)
		out["last_activity"] = timex.Format(info.LastActivity.Time)
	}
	return structpb.NewStruct(out)
}

func (s *GRPCServer) Me(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	u, ok := s.users.GetUser(ctx, id.Username)
	if !ok {
		return nil, toStatus(users.ErrUserNotFound)
	}

	quotaStatus, err := toStruct(s.users.UserQuotaStatus(ctx, id.Username))
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"username":            structpb.NewStringValue(id.Username),
		"role":                structpb.NewStringValue(s.users.GetUserRole(ctx, id.Username).String()),
		"daily_limit":         structpb.NewNumberValue(float64(u.DailyLimit)),
		"created_by":          structpb.NewStringValue(u.CreatedBy),
		"has_settings_access": structpb.NewBoolValue(s.users.HasSettingsAccess(ctx, id.Username)),
		"can_manage_users":    structpb.NewBoolValue(s.users.CanManageUsers(ctx, id.Username)),
		"has_readymode":       structpb.NewBoolValue(u.ReadymodeUser != ""),
		"has_assemblyai_key":  structpb.NewBoolValue(u.AssemblyAIKeyEncrypted != ""),
		"quota":               structpb.NewStructValue(quotaStatus),
	}}, nil
}

func (s *GRPCServer) CreateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	username, err := required(in, "username")
	if err != nil {
		return nil, err
	}
	dailyLimit, _, err := integer(in, "daily_limit")
	if err != nil {
		return nil, err
	}
	dailyQuota, _, err := integer(in, "daily_quota")
	if err != nil {
		return nil, err
	}

	nu := users.NewUser{
		Role:          models.Role(getString(in, "role")),
		Password:      getString(in, "password"),
		ReadymodeUser: getString(in, "readymode_user"),
		ReadymodePass: getString(in, "readymode_pass"),
		AssemblyAIKey: getString(in, "assemblyai_api_key"),
		DailyLimit:    dailyLimit,
	}

	msg, err := s.users.CreateUserWithQuota(ctx, username, nu, id.Username, dailyQuota)
	if err != nil {
		return nil, toStatus(err)
	}
	return message(msg), nil
}

func (s *GRPCServer) RemoveUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	username, err := required(in, "username")
	if err != nil {
		return nil, err
	}

	msg, err := s.users.RemoveUserWithQuota(ctx, username, id.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return message(msg), nil
}

// UpdateUser applies only the keys present in the request.
func (s *GRPCServer) UpdateUser(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	username, err := required(in, "username")
	if err != nil {
		return nil, err
	}

	var upd users.UserUpdate
	if v, ok := str(in, "role"); ok {
		role := models.Role(v)
		upd.Role = &role
	}
	if v, ok := str(in, "password"); ok {
		upd.Password = &v
	}
	if v, ok := str(in, "readymode_user"); ok {
		upd.ReadymodeUser = &v
	}
	if v, ok := str(in, "readymode_pass"); ok {
		upd.ReadymodePass = &v
	}
	if v, ok := str(in, "assemblyai_api_key"); ok {
		upd.AssemblyAIKey = &v
	}
	limit, ok, err := integer(in, "daily_limit")
	if err != nil {
		return nil, err
	}
	if ok {
		upd.DailyLimit = &limit
	}

	if err := s.users.UpdateUser(ctx, username, upd, id.Username); err != nil {
		return nil, toStatus(err)
	}
	return message("User updated successfully"), nil
}

// EndSession ends another user's session.
func (s *GRPCServer) EndSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	target, err := required(in, "username")
	if err != nil {
		return nil, err
	}

	if err := s.users.InvalidateUserSession(ctx, target, id.Username); err != nil {
		return nil, toStatus(err)
	}
	return message("Session ended for " + target), nil
}

func (s *GRPCServer) SetAdminLimits(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	admin, err := required(in, "admin")
	if err != nil {
		return nil, err
	}
	maxUsers, ok1, err := integer(in, "max_users")
	if err != nil {
		return nil, err
	}
	dailyQuota, ok2, err := integer(in, "daily_quota")
	if err != nil {
		return nil, err
	}
	if !ok1 || !ok2 {
		return nil, status.Error(codes.InvalidArgument, "max_users and daily_quota are required")
	}

	msg, err := s.users.SetAdminLimitsAsOwner(ctx, admin, maxUsers, dailyQuota, id.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return message(msg), nil
}

// AdminQuotaInfo returns an Admin's dashboard. Admins see their own; the
// Owner may name any admin.
func (s *GRPCServer) AdminQuotaInfo(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	admin := getString(in, "admin")
	if admin == "" {
		admin = id.Username
	}
	if admin != id.Username && s.users.GetUserRole(ctx, id.Username) != models.RoleOwner {
		return nil, toStatus(users.ErrPermissionDenied)
	}

	info, err := s.users.AdminQuotaInfo(ctx, admin)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(info)
}

// UserQuotaStatus returns a user's quota status: the caller's own, or that of
// a user the caller administers.
func (s *GRPCServer) UserQuotaStatus(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	target := getString(in, "username")
	if target == "" {
		target = id.Username
	}
	if target != id.Username && !s.users.CanAdminModifyUser(ctx, id.Username, target) {
		return nil, toStatus(users.ErrPermissionDenied)
	}
	return toStruct(s.users.UserQuotaStatus(ctx, target))
}

func (s *GRPCServer) AllAdminLimits(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	all, err := s.users.AllAdminLimitsAsOwner(ctx, id.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(map[string]any{"admins": all})
}

// RecordUsage charges the caller for processed items.
func (s *GRPCServer) RecordUsage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	amount, ok, err := integer(in, "amount")
	if err != nil {
		return nil, err
	}
	if !ok || amount <= 0 {
		return nil, status.Error(codes.InvalidArgument, "amount must be positive")
	}

	msg, err := s.users.RecordUsage(ctx, id.Username, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return message(msg), nil
}

// CheckUsage reports whether the caller may process "amount" more items
// without recording anything.
func (s *GRPCServer) CheckUsage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	amount, ok, err := integer(in, "amount")
	if err != nil {
		return nil, err
	}
	if !ok || amount <= 0 {
		return nil, status.Error(codes.InvalidArgument, "amount must be positive")
	}

	msg, err := s.users.CheckUsage(ctx, id.Username, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return message(msg), nil
}

func (s *GRPCServer) AdjustUserQuota(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	username, err := required(in, "username")
	if err != nil {
		return nil, err
	}
	dailyQuota, ok, err := integer(in, "daily_quota")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "daily_quota is required")
	}

	msg, err := s.users.AdjustUserQuota(ctx, username, dailyQuota, id.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return message(msg), nil
}

// RedistributionOptions lists the slices of an admin's auditors. "admin"
// defaults to the caller; only the Owner may name another admin.
func (s *GRPCServer) RedistributionOptions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := s.users.RedistributionOptions(ctx, getString(in, "admin"), id.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(opts)
}

// RedistributionImpact previews "allocations" without applying them.
func (s *GRPCServer) RedistributionImpact(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	alloc, err := allocations(in, "allocations")
	if err != nil {
		return nil, err
	}
	impact, err := s.users.RedistributionImpact(ctx, getString(in, "admin"), alloc, id.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(impact)
}

func (s *GRPCServer) ApplyRedistribution(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	alloc, err := allocations(in, "allocations")
	if err != nil {
		return nil, err
	}
	msg, err := s.users.ApplyRedistribution(ctx, getString(in, "admin"), alloc, id.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return message(msg), nil
}

func (s *GRPCServer) SuggestRedistribution(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	sug, err := s.users.SuggestRedistribution(ctx, getString(in, "admin"), id.Username)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(sug)
}

// ReadymodeCredentials returns the caller's own decrypted ReadyMode login.
func (s *GRPCServer) ReadymodeCredentials(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	user, pass, ok := s.users.ReadymodeCredentials(ctx, id.Username)
	if !ok {
		return nil, status.Error(codes.NotFound, "no ReadyMode credentials stored")
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"readymode_user": structpb.NewStringValue(user),
		"readymode_pass": structpb.NewStringValue(pass),
	}}, nil
}

// AssemblyAIKey returns the caller's own decrypted transcription key.
func (s *GRPCServer) AssemblyAIKey(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	key, ok := s.users.AssemblyAIKey(ctx, id.Username)
	if !ok {
		return nil, status.Error(codes.NotFound, "no AssemblyAI key stored")
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"assemblyai_api_key": structpb.NewStringValue(key),
	}}, nil
}
