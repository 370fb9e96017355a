package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ajkula/GoAccessGate/domain/port/inbound"
	"github.com/ajkula/GoAccessGate/domain/port/outbound"
)

// ServiceName is the health service name probes ask for; "" reports the same status
const ServiceName = "goaccessgate.AccessGate"

const defaultHealthInterval = 5 * time.Second

// HealthServer publishes the approval check status over the standard gRPC health protocol
type HealthServer struct {
	access     inbound.AccessService
	logger     outbound.Logger
	interval   time.Duration
	health     *health.Server
	grpcServer *grpc.Server
	rootCtx    context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewHealthServer(rootCtx context.Context, access inbound.AccessService, logger outbound.Logger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthServer{
		access:   access,
		logger:   logger,
		interval: interval,
		health:   health.NewServer(),
		rootCtx:  rootCtx,
	}
}

// Start listens on address and keeps the serving status in sync with the access service
func (s *HealthServer) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve is Start on an existing listener
func (s *HealthServer) Serve(lis net.Listener) error {
	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	ctx, cancel := context.WithCancel(s.rootCtx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.sync()
	go s.watch(ctx)

	go func() {
		if err := s.grpcServer.Serve(lis); err != nil {
			s.logger.Error("gRPC server stopped", "error", err)
		}
	}()

	s.logger.Info("gRPC health server started", "address", lis.Addr().String())
	return nil
}

func (s *HealthServer) watch(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync()
		}
	}
}

func (s *HealthServer) sync() {
	status := healthpb.HealthCheckResponse_SERVING
	current := s.access.Health()
	if !current.Serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

func (s *HealthServer) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	s.cancel = nil
}
