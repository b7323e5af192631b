package router

import (
	"net/http"
	"slices"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"user-crud-service/api/swagger"
	"user-crud-service/internal/adapter/gin/handler"
	"user-crud-service/internal/adapter/gin/middleware"
	grpcadapter "user-crud-service/internal/adapter/grpc"
	grpcmiddleware "user-crud-service/internal/adapter/grpc/middleware"
	"user-crud-service/pkg/logger"
)

// Config holds the router level settings.
type Config struct {
	ServiceName    string
	AllowedOrigins []string
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(
	userHandler *handler.UserHandler,
	health *grpcadapter.HealthChecker,
	rateLimiter *grpcmiddleware.RateLimiter,
	cfg Config,
	log *zap.Logger,
) *gin.Engine {
	router := gin.New()

	// Global middleware
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.Logger(log))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	router.GET("/health", healthHandler(health))

	swaggerUI := httpSwagger.Handler(httpSwagger.URL(swagger.DocPath))
	router.GET("/swagger/*any", func(c *gin.Context) {
		if "/swagger"+c.Param("any") == swagger.DocPath {
			c.Data(http.StatusOK, "application/json", swagger.Doc)
			return
		}
		swaggerUI(c.Writer, c.Request)
	})

	api := router.Group("/api", middleware.RateLimiter(rateLimiter))
	{
		users := api.Group("/user")
		{
			users.GET("/", userHandler.ListUsers)
			users.POST("/", userHandler.CreateUser)
			users.DELETE("/", userHandler.DeleteAllUsers)
			users.GET("/:id", userHandler.GetUser)
			users.PUT("/:id", userHandler.UpdateUser)
			users.DELETE("/:id", userHandler.DeleteUser)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	c.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", logger.RequestIDHeader}
	c.ExposeHeaders = []string{"Location", logger.RequestIDHeader}

	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}

// healthHandler runs the probes on every call. A nil checker is always healthy.
func healthHandler(health *grpcadapter.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
			return
		}

		report := health.Check(c.Request.Context())

		checks := make(gin.H, len(report))
		for name, err := range report {
			if err != nil {
				checks[name] = err.Error()
			} else {
				checks[name] = "ok"
			}
		}

		if !report.Healthy() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "checks": checks})
	}
}
