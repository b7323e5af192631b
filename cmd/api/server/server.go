package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	grpcadapter "user-crud-service/internal/adapter/grpc"
	"user-crud-service/internal/config"
)

const healthInterval = 10 * time.Second

// Server struct holds all server dependencies
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	Health *grpcadapter.HealthChecker
	GRPC   *grpc.Server
	Gin    *http.Server

	stopOnce sync.Once
	stopErr  error
}

// New creates a new server instance
func New(cfg *config.Config, l *zap.Logger, gin *http.Server, grpcServer *grpc.Server, health *grpcadapter.HealthChecker) *Server {
	return &Server{
		Config: cfg,
		Logger: l,
		Health: health,
		GRPC:   grpcServer,
		Gin:    gin,
	}
}

// Start listens on both ports and serves until ctx is done or a server
// fails. Listen errors are returned before anything is served.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}

	grpcLis, err := lc.Listen(ctx, "tcp", s.grpcAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}
	httpLis, err := lc.Listen(ctx, "tcp", s.Gin.Addr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}

	return s.serve(ctx, grpcLis, httpLis)
}

// serve runs both servers on the given listeners. When one of them fails
// the other is shut down, so the error reaches the caller instead of the
// process running with a single surface.
func (s *Server) serve(ctx context.Context, grpcLis, httpLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("gRPC server running", zap.String("address", grpcLis.Addr().String()))
		if err := s.GRPC.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.Logger.Info("Gin REST API running", zap.String("address", httpLis.Addr().String()))
		if err := s.Gin.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gin server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			// Caller-initiated stop; the caller runs Shutdown.
			return nil
		}
		s.Logger.Warn("a server failed, stopping the others")
		stopCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()
		_ = s.Shutdown(stopCtx)
		return nil
	})

	if s.Health != nil {
		g.Go(func() error {
			s.Health.Run(gctx, healthInterval)
			return nil
		})
	}

	return g.Wait()
}

func (s *Server) shutdownTimeout() time.Duration {
	if secs := s.Config.App.ShutdownTimeoutSeconds; secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 5 * time.Second
}

// Shutdown stops both servers, draining in-flight requests until ctx
// expires. Only the first call does any work; later calls return its result.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { s.stopErr = s.shutdown(ctx) })
	return s.stopErr
}

func (s *Server) shutdown(ctx context.Context) error {
	var errs []error

	if s.Gin != nil {
		s.Logger.Info("shutting down Gin server...")
		if err := s.Gin.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("gin shutdown: %w", err))
		}
	}

	if s.GRPC != nil {
		s.Logger.Info("shutting down gRPC server...")
		stopped := make(chan struct{})
		go func() {
			s.GRPC.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-ctx.Done():
			s.GRPC.Stop()
			errs = append(errs, fmt.Errorf("gRPC shutdown: %w", ctx.Err()))
		}
	}

	return errors.Join(errs...)
}

// grpcAddress returns the gRPC server address
func (s *Server) grpcAddress() string {
	return ":" + s.Config.App.GRPCPort
}
