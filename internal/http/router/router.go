package router

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	apphttp "servitec_backend/internal/http"
	"servitec_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	apiRatePerSecond = 20
	apiBurst         = 40
	healthTimeout    = 2 * time.Second
)

// New builds the engine, mounts the shared middleware and lets each module
// register its routes.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/api/ready", func(c *gin.Context) {
		checks, ok := readiness(c.Request.Context(), app.Health)
		status, code := "ok", http.StatusOK
		if !ok {
			status, code = "unavailable", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "checks": checks})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	limiter := httpkit.NewIPRateLimiter(rate.Limit(apiRatePerSecond), apiBurst, app.Logger)
	auth := httpkit.AuthRequired(app.Config)

	v1 := engine.Group("/api/v1")
	v1.Use(limiter.RateLimit())
	protected := v1.Group("")
	protected.Use(auth)
	client := protected.Group("")
	client.Use(httpkit.RequireRole(httpkit.RoleClient))
	technician := protected.Group("/technician")
	technician.Use(httpkit.RequireRole(httpkit.RoleTechnician))

	rc := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Protected:      protected,
		Client:         client,
		Technician:     technician,
		Config:         app.Config,
		AuthMiddleware: auth,
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		if app.Logger != nil {
			app.Logger.Info("module registered", slog.String("module", m.Name()))
		}
	}

	return engine
}

// readiness pings every dependency concurrently, each under its own timeout.
func readiness(ctx context.Context, checks map[string]apphttp.HealthChecker) (map[string]string, bool) {
	var (
		mu  sync.Mutex
		g   errgroup.Group
		out = make(map[string]string, len(checks))
		ok  = true
	)
	for name, check := range checks {
		g.Go(func() error {
			pingCtx, cancel := context.WithTimeout(ctx, healthTimeout)
			defer cancel()
			err := check.Ping(pingCtx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out[name] = "unavailable"
				ok = false
				return nil
			}
			out[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()
	return out, ok
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		c.AllowAllOrigins = true
		c.AllowCredentials = false
		return c
	}
	c.AllowOrigins = cfg.GetCORSOrigins()
	if len(c.AllowOrigins) == 0 {
		c.AllowOrigins = []string{"http://localhost:5173"}
	}
	return c
}
