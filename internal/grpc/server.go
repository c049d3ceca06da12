package grpc

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/weiawesome/wes-io-live/chatroom/pkg/log"
)

// ServiceName is the health check name reported for the chat node.
const ServiceName = "chatroom.Chat"

// Server exposes the standard gRPC health service for the chat node.
type Server struct {
	server *grpc.Server
	health *health.Server
	lis    net.Listener
}

func StartGRPCServer(addr string, logger zerolog.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(log.StreamServerInterceptor(logger)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go func() {
		l := log.L()
		l.Info().Str("address", lis.Addr().String()).Msg("grpc health server listening")
		if err := s.Serve(lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()

	return &Server{server: s, health: hs, lis: lis}, nil
}

// Addr is the bound listen address.
func (s *Server) Addr() string {
	return s.lis.Addr().String()
}

// Drain flips every service to NOT_SERVING ahead of shutdown.
func (s *Server) Drain() {
	s.health.Shutdown()
}

func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
