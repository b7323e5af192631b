package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	ginhandler "user-crud-service/internal/adapter/gin/handler"
	ginrouter "user-crud-service/internal/adapter/gin/router"
	grpcadapter "user-crud-service/internal/adapter/grpc"
	grpcmiddleware "user-crud-service/internal/adapter/grpc/middleware"
	"user-crud-service/internal/config"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	cfg *config.Config,
	handler *ginhandler.UserHandler,
	health *grpcadapter.HealthChecker,
	rateLimiter *grpcmiddleware.RateLimiter,
	l *zap.Logger,
) *http.Server {
	if cfg.Logger.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := ginrouter.SetupRouter(handler, health, rateLimiter, ginrouter.Config{
		ServiceName:    cfg.Logger.ServiceName,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, l)

	addr := ":" + cfg.App.HTTPPort
	l.Info("Gin REST API configured", zap.String("address", addr))

	return &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
