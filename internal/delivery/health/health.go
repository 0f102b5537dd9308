package health

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the service reported next to the overall "" status.
const ServiceName = "goplay.GameServer"

type Checker interface {
	Running() bool
}

// Server answers grpc health checks from the state of the session registry.
type Server struct {
	srv      *health.Server
	checker  Checker
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewServer(checker Checker, interval time.Duration, log *zap.SugaredLogger) *Server {
	s := &Server{
		srv:      health.NewServer(),
		checker:  checker,
		interval: interval,
		log:      log,
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *Server) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.srv)
}

// Refresh publishes the checker's current state.
func (s *Server) Refresh() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.checker.Running() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.set(status)
}

// Watch refreshes on every tick until ctx ends, then reports NOT_SERVING for good.
func (s *Server) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Refresh()
	for {
		select {
		case <-ctx.Done():
			s.srv.Shutdown()
			s.log.Infow("health reporting stopped")
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.srv.SetServingStatus("", status)
	s.srv.SetServingStatus(ServiceName, status)
}
