package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/bookstore/internal/common"
	pb "github.com/dmitrijs2005/bookstore/internal/proto"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Authenticate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	usernameOrToken := pb.StringField(req, pb.FieldUsernameOrToken)
	if usernameOrToken == "" {
		return nil, status.Error(codes.InvalidArgument, "username_or_token is required")
	}

	id, err := s.auth.Authenticate(ctx, usernameOrToken, pb.StringField(req, pb.FieldPassword))
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "authentication failed")
		}
		s.logger.Error(ctx, "authenticate", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}

	return pb.NewAuthenticateResponse(id.UserID, id.UserName), nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		pb.FieldStatus: structpb.NewStringValue("OK"),
	}}, nil
}
