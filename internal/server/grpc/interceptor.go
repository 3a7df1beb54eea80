package grpc

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

const rateLimitClass = "normal"

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	s.logger.Info(ctx, "rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"latency", time.Since(start),
		"peer", peerHost(ctx),
	)
	return resp, err
}

// rateLimitInterceptor keys calls by peer address; callers of this service
// are other processes, not end users.
func (s *GRPCServer) rateLimitInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	key := fmt.Sprintf("%s:%s:%s:%s", s.keyPrefix, rateLimitClass, info.FullMethod, peerHost(ctx))

	d, err := s.limiter.Allow(ctx, key, s.rate)
	if err != nil {
		s.logger.Error(ctx, "rate limiter unavailable", "error", err)
		return handler(ctx, req)
	}

	if !d.Allowed {
		s.metrics.RecordRateLimitRejection(rateLimitClass)
		s.logger.Info(ctx, "rate limit exceeded", "class", rateLimitClass, "key_kind", "origin", "method", info.FullMethod)

		secs := int(math.Ceil(d.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs("retry-after", strconv.Itoa(secs)))
		return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded: %s", s.rate)
	}

	return handler(ctx, req)
}

func peerHost(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
