// Package api serves the local ops HTTP surface: health, cache inspection
// and invalidation, the cache watch stream, and the session mirror.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/middleware"
	"github.com/gamecafe/panelsync/internal/watch"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Cache       CacheStore
	Session     SessionStore
	Socket      SocketStatus
	Watch       *watch.Hub
	CORSOrigins []string
	Version     string
}

// Router-level limits.
const (
	maxBodySize = 64 << 10 // 64 KB
	rateLimit   = 50       // requests per second per IP
	rateBurst   = 100      // token bucket burst size
	metricsPath = "/metrics"
)

// setupMiddleware configures all middleware on the gin engine.
func setupMiddleware(r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware(metricsPath))

	r.GET(metricsPath, gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	health := NewHealthHandler(deps.Socket, deps.Cache, deps.Version)
	cache := NewCacheHandler(deps.Cache, deps.Log)
	sess := NewSessionHandler(deps.Session, deps.Log)

	api.GET("/health", health.Liveness)
	api.POST("/socket/reconnect", health.Reconnect)

	api.GET("/cache", cache.List)
	api.GET("/cache/fetch", cache.Fetch)
	api.POST("/cache/invalidate", cache.Invalidate)
	if deps.Watch != nil {
		api.GET("/cache/watch", watchHandler(ctx, deps.Log, deps.Watch, deps.CORSOrigins))
	}

	api.GET("/session", sess.Get)
	api.PUT("/session", sess.Update)
}

// NewRouter creates and configures the gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
