package router

import (
	"net/http"
	"time"

	"github.com/aasprep/practest-backend/internal/config"
	"github.com/aasprep/practest-backend/internal/handler"
	"github.com/aasprep/practest-backend/internal/middleware"
	"github.com/aasprep/practest-backend/internal/response"
	"github.com/aasprep/practest-backend/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Question *handler.QuestionHandler
	Session  *handler.SessionHandler
	WS       *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	authService *service.AuthService,
	handlers *Handlers,
	cfg *config.Config,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	// Rate limiter for auth routes (30 requests per minute per IP).
	authLimiter := middleware.NewRateLimiter(30, time.Minute)

	// Auth group (public, rate limited) plus authenticated profile routes.
	auth := router.Group("/api/v1/auth")
	auth.Use(authLimiter.Middleware())
	{
		auth.POST("/register", handlers.Auth.Register)
		auth.POST("/login", handlers.Auth.Login)

		auth.POST("/logout", middleware.RequireAuth(authService), handlers.Auth.Logout)
		auth.GET("/me", middleware.RequireAuth(authService), handlers.Auth.Me)
	}

	// Authenticated API (JWT + single active login).
	api := router.Group("/api/v1")
	api.Use(
		middleware.RequireAuth(authService),
		middleware.CheckActiveLogin(authService),
	)
	{
		api.GET("/questions", handlers.Question.ListQuestions)

		api.POST("/sessions", handlers.Session.Start)
		api.GET("/sessions", handlers.Session.List)
		api.GET("/sessions/:id/state", handlers.Session.State)
		api.PUT("/sessions/:id/answers", handlers.Session.RecordAnswer)
		api.POST("/sessions/:id/checkpoints", handlers.Session.Checkpoint)
		api.POST("/sessions/:id/submit", handlers.Session.Submit)
		api.GET("/sessions/:id/results", handlers.Session.Results)
	}

	// WebSocket group (token passed as query param).
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireWSAuth(authService))
	{
		ws.GET("/sessions/:id/stream", handlers.WS.Session)
	}

	return router
}
