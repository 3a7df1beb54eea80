// Package proto declares the bookstore.auth.AuthService gRPC contract.
//
// Messages are google.protobuf.Struct values, so no generated code is
// needed; the field names are listed below.
//
//	Authenticate  {username_or_token, password} -> {user_id, username}
//	Ping          {}                            -> {status}
package proto

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	AuthServiceName                         = "bookstore.auth.AuthService"
	AuthService_Authenticate_FullMethodName = "/" + AuthServiceName + "/Authenticate"
	AuthService_Ping_FullMethodName         = "/" + AuthServiceName + "/Ping"
)

const (
	FieldUsernameOrToken = "username_or_token"
	FieldPassword        = "password"
	FieldUserID          = "user_id"
	FieldUsername        = "username"
	FieldStatus          = "status"
)

type AuthServiceServer interface {
	Authenticate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthService_ServiceDesc, srv)
}

func _AuthService_Authenticate_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).Authenticate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AuthService_Authenticate_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServiceServer).Authenticate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _AuthService_Ping_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServiceServer).Ping(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: AuthService_Ping_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServiceServer).Ping(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var AuthService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Authenticate", Handler: _AuthService_Authenticate_Handler},
		{MethodName: "Ping", Handler: _AuthService_Ping_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bookstore/auth.proto",
}

type AuthServiceClient interface {
	Authenticate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type authServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthServiceClient(cc grpc.ClientConnInterface) AuthServiceClient {
	return &authServiceClient{cc}
}

func (c *authServiceClient) Authenticate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AuthService_Authenticate_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, AuthService_Ping_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// NewAuthenticateRequest builds the Authenticate request message.
func NewAuthenticateRequest(usernameOrToken, password string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldUsernameOrToken: structpb.NewStringValue(usernameOrToken),
		FieldPassword:        structpb.NewStringValue(password),
	}}
}

// NewAuthenticateResponse builds the Authenticate response message. User ids
// travel as decimal strings because Struct numbers are doubles.
func NewAuthenticateResponse(userID int64, username string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldUserID:   structpb.NewStringValue(fmt.Sprint(userID)),
		FieldUsername: structpb.NewStringValue(username),
	}}
}

// StringField returns the string value of name, or "" when absent or of
// another kind.
func StringField(s *structpb.Struct, name string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[name].GetStringValue()
}
