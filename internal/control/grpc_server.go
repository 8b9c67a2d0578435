// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package control provides a gRPC admin interface for process management.
// The server binds loopback only and exposes the standard gRPC health
// service so operators and orchestration can probe the running process.
package control

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer runs the admin gRPC server.
type GRPCServer struct {
	component  string
	startTime  time.Time
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	running    atomic.Bool
}

// NewGRPCServer creates a new admin gRPC server.
// component is the name advertised by the health service (e.g., "gatehouse").
// Returns an error if component is empty.
func NewGRPCServer(component string) (*GRPCServer, error) {
	if component == "" {
		return nil, oops.Errorf("component name cannot be empty")
	}
	return &GRPCServer{
		component: component,
		startTime: time.Now(),
		health:    health.NewServer(),
	}, nil
}

// Start begins listening on the specified address.
// It returns an error channel that will receive the server's exit error (or nil on graceful stop).
// The channel will receive exactly one value when the server stops.
// Returns an error if the server is already running (double-start prevention).
func (s *GRPCServer) Start(addr string) (<-chan error, error) {
	// Prevent double-start which would leak the first listener
	if s.listener != nil {
		return nil, oops.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, oops.With("addr", addr).Wrap(err)
	}
	s.listener = listener

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(s.component, healthpb.HealthCheckResponse_SERVING)
	s.running.Store(true)

	errCh := make(chan error, 1)
	go func() {
		err := s.grpcServer.Serve(listener)
		if err != nil {
			slog.Error("control gRPC server error",
				"component", s.component,
				"error", err,
			)
		}
		errCh <- err
	}()

	return errCh, nil
}

// Stop gracefully shuts down the control gRPC server.
// The running state is set to false only after GracefulStop completes.
func (s *GRPCServer) Stop(_ context.Context) error {
	if s.grpcServer != nil {
		s.health.SetServingStatus(s.component, healthpb.HealthCheckResponse_NOT_SERVING)
		s.grpcServer.GracefulStop()
	}

	// Set running to false only after GracefulStop completes to avoid race condition
	s.running.Store(false)

	return nil
}

// Addr returns the address the server is listening on.
// Returns empty string if not running.
func (s *GRPCServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the server is currently serving.
func (s *GRPCServer) IsRunning() bool {
	return s.running.Load()
}

// CheckHealth dials the control server at addr and returns the reported
// serving status for the given component. Used by the status subcommand.
func CheckHealth(ctx context.Context, addr, component string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	// Plaintext is acceptable here: the control server binds loopback only.
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, oops.With("addr", addr).Wrap(err)
	}
	defer func() {
		_ = conn.Close() //nolint:errcheck // Best effort cleanup
	}()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: component})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, oops.With("addr", addr).Wrap(err)
	}
	return resp.GetStatus(), nil
}
