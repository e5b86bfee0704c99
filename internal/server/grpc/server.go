package grpc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/emmett/sublive/internal/app"
	"github.com/emmett/sublive/internal/log"
)

// Server wraps the gRPC server and services
type Server struct {
	grpcServer *grpc.Server
	host       string
	port       int
}

// Config holds server configuration
type Config struct {
	Host string
	Port int
}

// NewServer creates a new gRPC server reading from hub
func NewServer(cfg Config, hub *app.Hub) *Server {
	s := &Server{
		grpcServer: grpc.NewServer(),
		host:       cfg.Host,
		port:       cfg.Port,
	}

	// Register services
	RegisterSubtitlesServer(s.grpcServer, NewSubtitlesService(hub))

	return s
}

// Start listens on the configured port and serves until Stop
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	log.Infof("gRPC server listening on %s", lis.Addr())
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the server
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
