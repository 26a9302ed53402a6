// Package observability serves the engine's health and read endpoints:
// the gRPC health service and an HTTP router.
package observability

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Component names reported by /healthz
const (
	ComponentKafka  = "kafka"
	ComponentOutbox = "outbox"
)

// HealthStatus is the body of GET /healthz
type HealthStatus struct {
	Status     string          `json:"status"`
	Components map[string]bool `json:"components,omitempty"`
}

// HealthChecker aggregates component readiness into the gRPC health
// service and /healthz. The service is ready when it has not been shut
// down and every registered component reports ready.
type HealthChecker struct {
	grpcHealth *health.Server
	logger     *zap.Logger

	mu         sync.RWMutex
	httpServer *http.Server
	shutdown   bool
	components map[string]bool
}

// NewHealthChecker creates a checker with no components
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		grpcHealth: health.NewServer(),
		logger:     logger,
		components: make(map[string]bool),
	}
}

// RegisterGRPC registers the health service with the gRPC server
func (h *HealthChecker) RegisterGRPC(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.grpcHealth)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.syncGRPCLocked()
}

// SetComponent records whether component is ready
func (h *HealthChecker) SetComponent(component string, ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.components[component]; !ok || prev != ready {
		h.logger.Info("component readiness changed",
			zap.String("component", component),
			zap.Bool("ready", ready),
		)
	}
	h.components[component] = ready
	h.syncGRPCLocked()
}

// Ready reports whether the service should receive traffic
func (h *HealthChecker) Ready() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.readyLocked()
}

// Status returns a copy of the current readiness
func (h *HealthChecker) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	st := HealthStatus{Status: "OK", Components: make(map[string]bool, len(h.components))}
	for name, ready := range h.components {
		st.Components[name] = ready
	}
	if !h.readyLocked() {
		st.Status = "NOT_READY"
	}
	return st
}

// Serve runs the HTTP server for handler until Shutdown is called
func (h *HealthChecker) Serve(addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}

	h.mu.Lock()
	h.httpServer = srv
	h.mu.Unlock()

	h.logger.Info("starting HTTP server", zap.String("addr", addr))
	return srv.ListenAndServe()
}

// Shutdown marks the service as not serving and stops the HTTP server
func (h *HealthChecker) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.shutdown = true
	h.syncGRPCLocked()
	srv := h.httpServer
	h.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

func (h *HealthChecker) readyLocked() bool {
	if h.shutdown {
		return false
	}
	for _, ready := range h.components {
		if !ready {
			return false
		}
	}
	return true
}

func (h *HealthChecker) syncGRPCLocked() {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !h.readyLocked() {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.grpcHealth.SetServingStatus("", status)
}
