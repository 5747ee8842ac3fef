// Package httpapi wires the admin HTTP surface (Gin) to the services,
// middleware and handlers.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/tweet-anchoring/internal/config"
	"github.com/tbourn/tweet-anchoring/internal/docs"
	"github.com/tbourn/tweet-anchoring/internal/http/handlers"
	"github.com/tbourn/tweet-anchoring/internal/http/middleware"
	"github.com/tbourn/tweet-anchoring/internal/repo"
	"github.com/tbourn/tweet-anchoring/internal/services"
)

var (
	_ services.CycleRepo       = repo.Queries{}
	_ services.AnchorStatsRepo = repo.Queries{}
)

// triggerRPS bounds manual cycles per account; a cycle already hits three
// remote services.
const (
	triggerRPS   = 0.2
	triggerBurst = 1
)

// RegisterRoutes attaches middleware and endpoints to r. db may be nil, in
// which case ledger counts are omitted and the cycle history answers 503.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger
//  4. Recovery
//  5. Body size limiter
//  6. Metrics (+ /metrics)
//  7. gzip
//  8. Rate limiter per client IP
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, sched services.Scheduler, accounts []string, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(limitBody(64 << 10))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	rl := middleware.NewRateLimiter(cfg.Admin.RateRPS, cfg.Admin.RateBurst, middleware.KeyByIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.Admin.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{NoStoreWrites: true}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.Admin.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.Admin.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(
		services.NewAccountService(db, repo.Queries{}, sched),
		services.NewCycleService(db, repo.Queries{}, accounts),
	)
	trigger := middleware.NewRateLimiter(triggerRPS, triggerBurst, middleware.KeyByAccount())

	api := groupWithPrefix(r, cfg.Admin.APIBasePath)
	{
		api.GET("/accounts", h.ListAccounts)
		api.POST("/accounts/:account/cycles", trigger.Handler(), h.TriggerCycle)
		api.GET("/cycles", h.ListCycles)
	}
}

// corsMiddleware allows every origin when none is configured, otherwise only
// the listed ones.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "If-None-Match"},
		ExposeHeaders: []string{"X-Request-ID", "ETag", "Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{cors.New(base)}
}

// limitBody caps request bodies at maxBytes.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
