// Package grpc serves the internal authentication service that lets other
// processes delegate credential checks to this one.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/bookstore/internal/logging"
	pb "github.com/dmitrijs2005/bookstore/internal/proto"
	"github.com/dmitrijs2005/bookstore/internal/server/metrics"
	"github.com/dmitrijs2005/bookstore/internal/server/ratelimit"
	"github.com/dmitrijs2005/bookstore/internal/server/services"
	"google.golang.org/grpc"
)

type GRPCServer struct {
	address   string
	auth      services.Authenticator
	limiter   ratelimit.Limiter
	rate      ratelimit.Rate
	keyPrefix string
	logger    logging.Logger
	metrics   *metrics.Metrics
}

var _ pb.AuthServiceServer = (*GRPCServer)(nil)

type Option func(*GRPCServer)

// WithRateLimit limits every call to rate per peer address.
func WithRateLimit(l ratelimit.Limiter, rate ratelimit.Rate, keyPrefix string) Option {
	return func(s *GRPCServer) {
		s.limiter = l
		s.rate = rate
		s.keyPrefix = keyPrefix
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *GRPCServer) { s.metrics = m }
}

func NewGRPCServer(address string, l logging.Logger, authn services.Authenticator, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address: address,
		auth:    authn,
		logger:  l.With("module", "grpc_server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServer returns a grpc.Server with the interceptor chain installed and
// the AuthService registered.
func (s *GRPCServer) NewServer() *grpc.Server {
	interceptors := []grpc.UnaryServerInterceptor{s.loggingInterceptor}
	if s.limiter != nil {
		interceptors = append(interceptors, s.rateLimitInterceptor)
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	pb.RegisterAuthServiceServer(srv, s)
	return srv
}

// Run serves on the configured address until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is cancelled, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.NewServer()

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
