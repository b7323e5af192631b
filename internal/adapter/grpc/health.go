package grpc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const probeTimeout = 2 * time.Second

// Probe is a named dependency check.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthReport is the outcome of one round of probes, keyed by probe name.
// A nil value means the probe passed.
type HealthReport map[string]error

// Healthy reports whether every probe passed.
func (r HealthReport) Healthy() bool {
	for _, err := range r {
		if err != nil {
			return false
		}
	}
	return true
}

// HealthChecker runs the probes and publishes the result on a standard
// grpc.health.v1 server, both for the overall ("") service and for the named
// service.
type HealthChecker struct {
	server  *health.Server
	service string
	probes  []Probe
	log     *zap.Logger

	mu   sync.Mutex
	last HealthReport
}

// NewHealthChecker creates a checker. The gRPC status starts as NOT_SERVING
// until the first Check.
func NewHealthChecker(service string, log *zap.Logger, probes ...Probe) *HealthChecker {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)

	return &HealthChecker{
		server:  hs,
		service: service,
		probes:  probes,
		log:     log,
	}
}

// Server returns the gRPC health server to register.
func (h *HealthChecker) Server() *health.Server {
	return h.server
}

// Check runs every probe concurrently and updates the published status.
func (h *HealthChecker) Check(ctx context.Context) HealthReport {
	results := make([]error, len(h.probes))

	var g errgroup.Group
	for i, p := range h.probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			results[i] = p.Check(pctx)
			return nil
		})
	}
	_ = g.Wait()

	report := make(HealthReport, len(h.probes))
	for i, p := range h.probes {
		report[p.Name] = results[i]
		if results[i] != nil {
			h.log.Warn("health probe failed", zap.String("probe", p.Name), zap.Error(results[i]))
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !report.Healthy() {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(h.service, status)

	h.mu.Lock()
	h.last = report
	h.mu.Unlock()

	return report
}

// Last returns the most recent report, or nil before the first Check.
func (h *HealthChecker) Last() HealthReport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Run re-checks on every tick until ctx is done, then marks everything
// NOT_SERVING so that clients drain during shutdown.
func (h *HealthChecker) Run(ctx context.Context, interval time.Duration) {
	h.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
