package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"support-chat/config"
	"support-chat/internal/domain/user"
	"support-chat/internal/handler"
	"support-chat/internal/middleware"
	"support-chat/internal/services"
	"support-chat/internal/transport/httpdto"
	"support-chat/internal/websocket"
	"support-chat/pkg/database"
	"support-chat/pkg/logger"

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
	Auth          *handler.AuthHandler
	Messages      *handler.MessageHandler
	Conversations *handler.ConversationHandler
	Presence      *handler.PresenceHandler
	Socket        *websocket.Handler
}

// HealthFunc reports whether the backing store answers.
type HealthFunc func() error

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

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

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// SetupRoutes mounts every endpoint. limiter may be nil, in which case no
// request is rate limited. health defaults to database.HealthCheck.
func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter middleware.RateLimiter, health HealthFunc) {
	if health == nil {
		health = database.HealthCheck
	}

	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.CORSOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse("pong", gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), httpdto.CodeUnavailable))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse("healthy", gin.H{"status": "healthy"}))
	})

	authRequired := middleware.AuthMiddleware(authService)
	authLimit := pass
	messageLimit := pass
	if limiter != nil {
		authLimit = middleware.AuthRateLimitMiddleware(limiter, s.logger)
		messageLimit = middleware.MessageRateLimitMiddleware(limiter, s.logger)
	}

	v1 := s.engine.Group("/v1")

	auth := v1.Group("/auth")
	{
		auth.POST("/register", authLimit, handlers.Auth.Register)
		auth.POST("/login", authLimit, handlers.Auth.Login)
		auth.POST("/refresh", handlers.Auth.Refresh)
		auth.POST("/logout", handlers.Auth.Logout)
		auth.GET("/me", authRequired, handlers.Auth.Me)
	}

	messages := v1.Group("/messages", authRequired)
	{
		messages.POST("", messageLimit, handlers.Messages.Send)
		messages.GET("/:conversationId", handlers.Messages.Page)
	}

	conversations := v1.Group("/conversations", authRequired)
	{
		conversations.GET("/admin", middleware.RequireRole(user.RoleAdmin), handlers.Conversations.ListForAdmin)
		conversations.GET("/user", handlers.Conversations.ListForUser)
		conversations.POST("/support", handlers.Conversations.Support)
		conversations.GET("/:conversationId", handlers.Conversations.Get)
		conversations.POST("/:conversationId/read", handlers.Conversations.MarkRead)
	}

	v1.GET("/presence/online", authRequired, handlers.Presence.Online)

	if handlers.Socket != nil {
		v1.GET("/ws", handlers.Socket.Connect)
	}
}

func pass(c *gin.Context) { c.Next() }

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	select {
	case err := <-errCh:
		if s.logger != nil {
			s.logger.Errorf("Error in starting the server: %s", err)
		}
		return err
	case <-quit:
	case <-ctx.Done():
	}

	if s.logger != nil {
		s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
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
