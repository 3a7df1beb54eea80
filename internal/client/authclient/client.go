// Package authclient authenticates callers by delegating to a remote
// bookstore.auth.AuthService over gRPC. Client satisfies the same
// Authenticator contract as the in-process user service.
package authclient

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/bookstore/internal/common"
	pb "github.com/dmitrijs2005/bookstore/internal/proto"
	"github.com/dmitrijs2005/bookstore/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var ErrUnavailable = errors.New("auth service unavailable")

const defaultTimeout = 5 * time.Second

type Client struct {
	conn    *grpc.ClientConn
	client  pb.AuthServiceClient
	timeout time.Duration
}

// New dials endpointURL lazily; the first call establishes the connection.
func New(endpointURL string) (*Client, error) {
	conn, err := grpc.NewClient(endpointURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	c := NewFromConn(conn)
	c.conn = conn
	return c, nil
}

// NewFromConn wraps an existing connection. Close is then a no-op.
func NewFromConn(cc grpc.ClientConnInterface) *Client {
	return &Client{client: pb.NewAuthServiceClient(cc), timeout: defaultTimeout}
}

func (c *Client) Authenticate(ctx context.Context, usernameOrToken, password string) (models.Identity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Authenticate(ctx, pb.NewAuthenticateRequest(usernameOrToken, password))
	if err != nil {
		return models.Identity{}, mapError(err)
	}

	userID, err := strconv.ParseInt(pb.StringField(resp, pb.FieldUserID), 10, 64)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: bad user_id in response: %w", common.ErrorInternal, err)
	}

	return models.Identity{UserID: userID, UserName: pb.StringField(resp, pb.FieldUsername)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Ping(ctx, &structpb.Struct{})
	if err != nil {
		return mapError(err)
	}
	if pb.StringField(resp, pb.FieldStatus) != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func mapError(err error) error {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: %s", common.ErrorUnauthorized, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", common.ErrRateLimitExceeded, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
