package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/mocktest-backend/internal/config"
	"github.com/stemsi/mocktest-backend/internal/handler"
	"github.com/stemsi/mocktest-backend/internal/middleware"
	"github.com/stemsi/mocktest-backend/internal/response"
	"github.com/stemsi/mocktest-backend/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Test    *handler.TestHandler
	Attempt *handler.AttemptHandler
	WS      *handler.WSHandler
	System  *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
// attemptLimiter throttles attempt creation; it may be nil.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	attemptLimiter *middleware.RateLimiter,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.Brotli())

	// ─── Probes ────────────────────────────────────────────────────────
	router.GET("/health", handlers.System.Health)
	router.GET("/ready", handlers.System.Ready)

	// ─── REST (Bearer JWT) ─────────────────────────────────────────────
	api := router.Group("/api/v1")
	api.Use(middleware.RequireJWT(authService))
	{
		api.GET("/tests", middleware.CacheControl(60), handlers.Test.ListTests)

		attempts := api.Group("/attempts")
		attempts.Use(middleware.NoStore())
		{
			start := []gin.HandlerFunc{}
			if attemptLimiter != nil {
				start = append(start, attemptLimiter.Middleware())
			}
			start = append(start, handlers.Attempt.StartAttempt)
			attempts.POST("", start...)

			attempts.GET("", handlers.Attempt.ListAttempts)
			attempts.GET("/:id", handlers.Attempt.GetAttempt)
			attempts.GET("/:id/paper", handlers.Attempt.GetPaper)
			attempts.GET("/:id/state", handlers.Attempt.GetState)
			attempts.PUT("/:id/answers/:question_id", handlers.Attempt.RecordAnswer)
			attempts.POST("/:id/answers/:question_id/review", handlers.Attempt.ToggleReview)
			attempts.POST("/:id/submit", handlers.Attempt.Submit)
			attempts.GET("/:id/review", handlers.Attempt.Review)
		}
	}

	// ─── WebSocket (?token=) ───────────────────────────────────────────
	wsGroup := router.Group("/ws/v1")
	wsGroup.Use(middleware.RequireWSAuth(authService))
	{
		wsGroup.GET("/attempts/:id/stream", handlers.WS.AttemptStream)
	}

	return router
}
