package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"token-gate-backend/internal/common/config"
	"token-gate-backend/internal/common/logger"
	connectmodels "token-gate-backend/internal/features/connect/models"
	connectservice "token-gate-backend/internal/features/connect/service"
	memservice "token-gate-backend/internal/features/membership/service"
	"token-gate-backend/internal/platform/postgres"
	"token-gate-backend/internal/platform/redis"
)

// Server exposes liveness/readiness probes, reconciler status and the
// connect-flow proof endpoints.
type Server struct {
	httpServer *http.Server
}

func NewServer(
	cfg *config.Config,
	pg *postgres.Client,
	rdb *redis.Client,
	reconciler *memservice.Reconciler,
	connect *connectservice.Service,
) *Server {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := pg.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "postgres unavailable"})
			return
		}
		if err := rdb.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "redis unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	router.GET("/status", func(c *gin.Context) {
		stats, ok := reconciler.LastRun()
		if !ok {
			c.JSON(http.StatusOK, gin.H{"last_run": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"last_run": stats})
	})

	api := router.Group("/api/v1")
	registerConnectRoutes(api, connect)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

func (s *Server) Start() {
	go func() {
		logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type payloadRequest struct {
	TgUserID int64 `json:"tg_user_id" binding:"required"`
}

type verifyRequest struct {
	TgUserID int64                      `json:"tg_user_id" binding:"required"`
	Username string                     `json:"username"`
	Proof    connectmodels.ProofRequest `json:"proof" binding:"required"`
}

func registerConnectRoutes(rg *gin.RouterGroup, svc *connectservice.Service) {
	group := rg.Group("/connect")

	group.POST("/payload", func(c *gin.Context) {
		var req payloadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		payload, err := svc.GeneratePayload(c.Request.Context(), req.TgUserID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate payload"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"payload": payload})
	})

	group.POST("/verify", func(c *gin.Context) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		result, err := svc.VerifyAndRegister(c.Request.Context(), req.TgUserID, req.Username, &req.Proof)
		switch {
		case errors.Is(err, connectservice.ErrInvalidProof):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Proof verification failed"})
		case errors.Is(err, connectservice.ErrBalanceUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Balance oracle unavailable, try again later"})
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Connect failed"})
		default:
			c.JSON(http.StatusOK, result)
		}
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Request processed")
	}
}
