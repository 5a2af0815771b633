package grpc

import (
	"encoding/json"
	"errors"
	"math"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/quota"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/users"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func field(in *structpb.Struct, key string) (*structpb.Value, bool) {
	if in == nil {
		return nil, false
	}
	v, ok := in.GetFields()[key]
	if !ok {
		return nil, false
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, false
	}
	return v, true
}

func str(in *structpb.Struct, key string) (string, bool) {
	v, ok := field(in, key)
	if !ok {
		return "", false
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false
	}
	return s.StringValue, true
}

func getString(in *structpb.Struct, key string) string {
	s, _ := str(in, key)
	return s
}

// integer reads a whole number; fractions and out-of-range values are
// rejected.
func integer(in *structpb.Struct, key string) (int, bool, error) {
	v, ok := field(in, key)
	if !ok {
		return 0, false, nil
	}
	n, isNum := v.GetKind().(*structpb.Value_NumberValue)
	if !isNum {
		return 0, true, status.Errorf(codes.InvalidArgument, "%s must be a number", key)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, true, status.Errorf(codes.InvalidArgument, "%s must be a whole number", key)
	}
	return int(f), true, nil
}

func boolean(in *structpb.Struct, key string) bool {
	v, ok := field(in, key)
	if !ok {
		return false
	}
	return v.GetBoolValue()
}

// allocations reads a {"username": quota} object. Null entries are skipped.
func allocations(in *structpb.Struct, key string) (map[string]int, error) {
	v, ok := field(in, key)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	obj := v.GetStructValue()
	if obj == nil {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be an object", key)
	}
	out := make(map[string]int, len(obj.GetFields()))
	for name := range obj.GetFields() {
		n, ok, err := integer(obj, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = n
		}
	}
	return out, nil
}

func required(in *structpb.Struct, key string) (string, error) {
	s, ok := str(in, key)
	if !ok || s == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return s, nil
}

// toStruct converts a JSON-tagged Go value into a Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

func message(msg string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"success": structpb.NewBoolValue(true),
		"message": structpb.NewStringValue(msg),
	}}
}

var quotaCodes = map[quota.Reason]codes.Code{
	quota.ReasonInvalidInput:       codes.InvalidArgument,
	quota.ReasonNotOwner:           codes.PermissionDenied,
	quota.ReasonAdminNotConfigured: codes.FailedPrecondition,
	quota.ReasonUserLimitReached:   codes.ResourceExhausted,
	quota.ReasonInsufficientPool:   codes.ResourceExhausted,
	quota.ReasonAlreadyAssigned:    codes.AlreadyExists,
	quota.ReasonNotAssigned:        codes.FailedPrecondition,
	quota.ReasonWrongAdmin:         codes.PermissionDenied,
	quota.ReasonUserQuotaExceeded:  codes.ResourceExhausted,
	quota.ReasonAdminQuotaExceeded: codes.ResourceExhausted,
	quota.ReasonStorage:            codes.Unavailable,
	quota.ReasonDisabled:           codes.FailedPrecondition,
}

// toStatus maps domain errors onto gRPC status codes. Quota refusals keep
// their user-facing message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var qe *quota.Error
	if errors.As(err, &qe) {
		code, ok := quotaCodes[qe.Reason]
		if !ok {
			code = codes.FailedPrecondition
		}
		return status.Error(code, qe.Message)
	}

	switch {
	case errors.Is(err, users.ErrPermissionDenied), errors.Is(err, users.ErrProtectedOwner):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, users.ErrUserNotFound), errors.Is(err, users.ErrNoSession):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, users.ErrUserExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, users.ErrInvalidUsername), errors.Is(err, users.ErrInvalidRole),
		errors.Is(err, users.ErrEmptyPassword):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, users.ErrNotAdmin):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, jsonstore.ErrReadOnly), errors.Is(err, jsonstore.ErrLockTimeout):
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
