package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ballot-engine/config"
	"ballot-engine/internal/handler"
	"ballot-engine/internal/middleware"
	"ballot-engine/internal/redis"
	"ballot-engine/internal/services"
	"ballot-engine/internal/transport/httpdto"
	"ballot-engine/internal/websocket"
	"ballot-engine/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Polls    *handler.PollHandler
	Votes    *handler.VoteHandler
	Results  *handler.ResultsHandler
	Analysis *handler.AnalysisHandler
	Live     *websocket.Handler
}

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) error

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(l))

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, mainly for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter, checks map[string]HealthCheck) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		status := gin.H{}
		healthy := true
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, httpdto.Response[gin.H]{Success: false, Data: status, Code: "UNHEALTHY"})
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(status))
	})

	authed := middleware.AuthMiddleware(authService)
	admin := middleware.RequireRole(services.RoleAdmin)

	polls := s.engine.Group("/v1/polls", authed)
	{
		polls.GET("", handlers.Polls.List)
		polls.GET("/:id", handlers.Polls.GetByID)
		polls.GET("/:id/results", handlers.Results.Results)
		polls.POST("/:id/votes", middleware.VoteRateLimitMiddleware(limiter, s.logger), handlers.Votes.Cast)
		polls.GET("/:id/votes/me", handlers.Votes.MyBallot)

		polls.POST("", admin, handlers.Polls.Create)
		polls.PATCH("/:id", admin, handlers.Polls.Update)
		polls.POST("/:id/transition", admin, handlers.Polls.Transition)
		polls.DELETE("/:id", admin, handlers.Polls.Delete)
		polls.POST("/:id/choices", admin, handlers.Polls.AddChoice)
		polls.PATCH("/:id/choices/:choice_id", admin, handlers.Polls.UpdateChoice)
		polls.DELETE("/:id/choices/:choice_id", admin, handlers.Polls.RemoveChoice)
		polls.POST("/:id/archive", admin, handlers.Results.Archive)
		polls.GET("/:id/archive", admin, handlers.Results.ArchiveLink)
	}

	analysis := s.engine.Group("/v1/analysis/polls/:id", authed)
	{
		analysis.GET("/live", handlers.Analysis.LiveResults)
		analysis.GET("/anomalies", handlers.Analysis.Anomalies)
		analysis.GET("/trends", handlers.Analysis.Trends)
		analysis.GET("/features", handlers.Analysis.Features)
		analysis.GET("/forecast", handlers.Analysis.Forecast)
		analysis.GET("/turnout", handlers.Analysis.Turnout)
	}

	if handlers.Live != nil {
		s.engine.GET("/ws/polls/:id", handlers.Live.Connect)
	}
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		if s.logger != nil {
			s.logger.Infof("Error in the graceful shutdown of the server: %s", err)
		}
		return err
	}

	if s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}

	return nil
}
