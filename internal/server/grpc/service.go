package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "vos.access.v1.AccessService"

// Method names of AccessService.
const (
	MethodLogin           = "Login"
	MethodLogout          = "Logout"
	MethodCheckSession    = "CheckSession"
	MethodMe              = "Me"
	MethodCreateUser      = "CreateUser"
	MethodRemoveUser      = "RemoveUser"
	MethodUpdateUser      = "UpdateUser"
	MethodEndSession      = "EndSession"
	MethodSetAdminLimits  = "SetAdminLimits"
	MethodAdminQuotaInfo  = "AdminQuotaInfo"
	MethodUserQuotaStatus = "UserQuotaStatus"
	MethodAllAdminLimits  = "AllAdminLimits"
	MethodRecordUsage     = "RecordUsage"
	MethodCheckUsage      = "CheckUsage"
	MethodAdjustUserQuota = "AdjustUserQuota"

	MethodRedistributionOptions = "RedistributionOptions"
	MethodRedistributionImpact  = "RedistributionImpact"
	MethodApplyRedistribution   = "ApplyRedistribution"
	MethodSuggestRedistribution = "SuggestRedistribution"

	MethodReadymodeCredentials = "ReadymodeCredentials"
	MethodAssemblyAIKey        = "AssemblyAIKey"
)

// FullMethod returns "/<service>/<method>".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AccessServiceServer is implemented by GRPCServer. Requests and responses
// are google.protobuf.Struct messages keyed by snake_case field names.
type AccessServiceServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Me(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RemoveUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateUser(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EndSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAdminLimits(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AdminQuotaInfo(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UserQuotaStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AllAdminLimits(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordUsage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckUsage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AdjustUserQuota(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RedistributionOptions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RedistributionImpact(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyRedistribution(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SuggestRedistribution(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReadymodeCredentials(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AssemblyAIKey(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AccessServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AccessServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AccessServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// AccessServiceDesc describes AccessService for grpc.Server.RegisterService.
var AccessServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccessServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodLogin, AccessServiceServer.Login),
		unaryHandler(MethodLogout, AccessServiceServer.Logout),
		unaryHandler(MethodCheckSession, AccessServiceServer.CheckSession),
		unaryHandler(MethodMe, AccessServiceServer.Me),
		unaryHandler(MethodCreateUser, AccessServiceServer.CreateUser),
		unaryHandler(MethodRemoveUser, AccessServiceServer.RemoveUser),
		unaryHandler(MethodUpdateUser, AccessServiceServer.UpdateUser),
		unaryHandler(MethodEndSession, AccessServiceServer.EndSession),
		unaryHandler(MethodSetAdminLimits, AccessServiceServer.SetAdminLimits),
		unaryHandler(MethodAdminQuotaInfo, AccessServiceServer.AdminQuotaInfo),
		unaryHandler(MethodUserQuotaStatus, AccessServiceServer.UserQuotaStatus),
		unaryHandler(MethodAllAdminLimits, AccessServiceServer.AllAdminLimits),
		unaryHandler(MethodRecordUsage, AccessServiceServer.RecordUsage),
		unaryHandler(MethodCheckUsage, AccessServiceServer.CheckUsage),
		unaryHandler(MethodAdjustUserQuota, AccessServiceServer.AdjustUserQuota),
		unaryHandler(MethodRedistributionOptions, AccessServiceServer.RedistributionOptions),
		unaryHandler(MethodRedistributionImpact, AccessServiceServer.RedistributionImpact),
		unaryHandler(MethodApplyRedistribution, AccessServiceServer.ApplyRedistribution),
		unaryHandler(MethodSuggestRedistribution, AccessServiceServer.SuggestRedistribution),
		unaryHandler(MethodReadymodeCredentials, AccessServiceServer.ReadymodeCredentials),
		unaryHandler(MethodAssemblyAIKey, AccessServiceServer.AssemblyAIKey),
	},
	Metadata: "vos/access/v1/access.proto",
}

// AccessClient is a thin client for AccessService.
type AccessClient struct {
	cc grpc.ClientConnInterface
}

func NewAccessClient(cc grpc.ClientConnInterface) *AccessClient {
	return &AccessClient{cc: cc}
}

// Call invokes method with in and returns the decoded response.
func (c *AccessClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
