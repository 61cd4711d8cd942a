package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/villageone/api/config"
	"github.com/villageone/api/controllers"
	"github.com/villageone/api/forum"
	"github.com/villageone/api/middleware"
	"github.com/villageone/api/store"
	"github.com/villageone/api/utils"
)

// SetupRouter wires routes, middlewares, and controllers over repo.
func SetupRouter(repo store.Repository, logger *zap.Logger) *gin.Engine {
	cfg := config.Get()
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	utils.RegisterValidators()

	r := gin.New()
	// Access log goes to its own rolling file; fall back to the app logger.
	accessLog := logger
	if cfg.GinPath != "" && gin.Mode() != gin.TestMode {
		if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
			accessLog = gl
		} else {
			logger.Warn("gin access log unavailable", zap.Error(err))
		}
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, true))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	lifecycle := forum.NewPostLifecycle(repo, logger.Named("lifecycle"))
	ledger := forum.NewVoteLedger(repo, logger.Named("ledger"))
	comments := forum.NewComments(repo, logger.Named("comments"))

	authController := controllers.NewAuthController(repo)
	postController := controllers.NewPostController(lifecycle, comments)
	voteController := controllers.NewVoteController(ledger)
	statsController := controllers.NewStatsController(lifecycle, repo)
	configController := controllers.NewConfigController()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)

	api := r.Group("/api/v1")
	api.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authGroup := api.Group("/auth")
	authGroup.Use(limiter.Middleware())
	authGroup.GET("/captcha", authController.Captcha)
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// Public reads
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id", middleware.OptionalAuth(), postController.GetPost)
	api.GET("/posts/:id/votes", voteController.GetVoteCounts)
	api.GET("/stats", statsController.GetStats)
	api.GET("/config/sections", configController.GetSections)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), limiter.Middleware())
	protected.GET("/users/me/posts", postController.ListMyPosts)
	protected.POST("/posts", postController.CreatePost)
	protected.PATCH("/posts/:id", postController.UpdatePost)
	protected.POST("/posts/:id/publish", postController.PublishPost)
	protected.POST("/posts/:id/revert", postController.RevertPost)
	protected.POST("/posts/:id/comments", postController.CreateComment)
	protected.DELETE("/comments/:commentId", postController.DeleteComment)
	protected.POST("/posts/:id/votes/recount", voteController.Recount)
	protected.POST("/votes", voteController.CastVote)
	protected.GET("/votes/:postId/user", voteController.GetUserVote)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}
