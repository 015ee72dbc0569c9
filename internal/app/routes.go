package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"taskmanager/internal/auth"
	"taskmanager/internal/cache"
	"taskmanager/internal/config"
	"taskmanager/internal/handlers"
	"taskmanager/internal/ratelimit"
	"taskmanager/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/swaggo/swag"
)

func newRouter(cfg config.Config, log *slog.Logger, stores Stores, rdb *redis.Client) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies(cfg.HTTP.TrustedProxies)); err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	r.Use(gin.Recovery(), requestLogger(log))
	r.Use(cors.New(corsConfig(cfg.HTTP.CORSOrigins)))

	Setup(r, cfg, log, stores, rdb)
	return r, nil
}

// trustedProxies drops blank entries; nil makes gin ignore forwarding headers.
func trustedProxies(list []string) []string {
	var out []string
	for _, p := range list {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// corsConfig allows credentials for the cookie session unless every origin is allowed.
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Type", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// Setup registers all routes on the given engine. rdb may be nil.
func Setup(r *gin.Engine, cfg config.Config, log *slog.Logger, stores Stores, rdb *redis.Client) {
	r.GET("/", rootHandler(cfg))
	r.GET("/health", healthHandler(cfg, rdb))
	r.GET("/version", versionHandler(cfg))
	r.GET("/swagger-doc.json", swaggerDocHandler())
	r.GET("/swagger", func(c *gin.Context) { c.Redirect(http.StatusFound, "/swagger/index.html") })
	r.GET("/swagger/*any", ginSwagger.WrapHandler(
		swaggerFiles.Handler,
		ginSwagger.URL("/swagger-doc.json"),
		ginSwagger.DefaultModelsExpandDepth(-1),
		ginSwagger.PersistAuthorization(true),
	))

	var (
		sessions  *auth.SessionStore
		taskCache *cache.TaskCache
		limiter   *ratelimit.Limiter
	)
	if rdb != nil {
		sessions = auth.NewSessionStore(rdb, cfg.Auth.SessionTTL.Duration())
		taskCache = cache.NewTaskCache(rdb, cfg.Redis.DefaultTTL.Duration())
		limiter = ratelimit.NewLimiter(rdb, "ratelimit:")
	}

	tokens := auth.NewTokenManager(auth.TokenConfig{
		SecretKey: cfg.Auth.JWTSecret,
		TTL:       cfg.Auth.TokenTTL.Duration(),
		Issuer:    cfg.Auth.Issuer,
	})
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	userSvc := service.NewUserService(stores.Users, hasher, tokens)
	taskSvc := service.NewTaskService(stores.Tasks, taskCache, log)

	responder := handlers.NewResponder(log, cfg.App.Production())
	authHandler := handlers.NewAuthHandler(responder, sessions, userSvc, handlers.CookieOptions{
		Name:   cfg.Auth.SessionCookie,
		Secure: cfg.Auth.CookieSecure,
	}, log)
	taskHandler := handlers.NewTaskHandler(responder, taskSvc)
	gate := auth.NewMiddleware(sessions, tokens, userSvc, cfg.Auth.SessionCookie, log).Require()

	authGroup := r.Group("/auth")
	var limited []gin.HandlerFunc
	if limiter != nil && cfg.RateLimit.AuthLimit > 0 {
		limited = append(limited, ratelimit.Middleware(limiter, "auth", cfg.RateLimit.AuthLimit, cfg.RateLimit.AuthWindow.Duration(), log))
	}
	registerAuthRoutes(authGroup, authHandler, gate, limited...)

	registerTaskRoutes(r.Group("/tasks", gate), taskHandler)
}

func rootHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Task Manager API",
			"version": cfg.App.Version,
			"env":     cfg.App.Env,
			"docs":    "/swagger/index.html",
			"spec":    "/swagger-doc.json",
			"health":  "/health",
		})
	}
}

func healthHandler(cfg config.Config, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"ok": true, "env": cfg.App.Env, "store": cfg.Store.Driver}
		if rdb != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
			defer cancel()
			body["redis"] = "up"
			if err := rdb.Ping(ctx).Err(); err != nil {
				body["redis"] = "down"
			}
		}
		c.JSON(http.StatusOK, body)
	}
}

func versionHandler(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": cfg.App.Version})
	}
}

func swaggerDocHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		doc, err := swag.ReadDoc("swagger")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	}
}

// requestLogger logs one line per request, without the query string.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request", attrs...)
		case status >= http.StatusBadRequest:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}

func registerTaskRoutes(api *gin.RouterGroup, h *handlers.TaskHandler) {
	api.POST("", h.Create)
	api.GET("", h.List)
	api.GET("/:id", h.GetByID)
	api.PUT("/:id", h.Update)
	api.DELETE("/:id", h.Delete)
}

func registerAuthRoutes(api *gin.RouterGroup, h *handlers.AuthHandler, gate gin.HandlerFunc, limited ...gin.HandlerFunc) {
	api.POST("/login", append(slices.Clone(limited), h.Login)...)
	api.POST("/register", append(slices.Clone(limited), h.Register)...)
	api.POST("/logout", h.Logout)
	api.PUT("/change-password", gate, h.ChangePassword)
}
