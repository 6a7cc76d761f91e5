package http

import (
	"context"

	"servitec_backend/internal/events"
	"servitec_backend/platform/config"
	"servitec_backend/platform/logger"
)

// RouterConfig is what the router reads: listener, CORS and token settings.
type RouterConfig interface {
	config.HTTPConfig
	config.JWTConfig
}

// HealthChecker is one dependency probed by /api/ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// HealthFunc adapts a plain function, such as a redis ping, to HealthChecker.
type HealthFunc func(ctx context.Context) error

func (f HealthFunc) Ping(ctx context.Context) error { return f(ctx) }

// App is assembled by cmd/api and handed to the router.
type App struct {
	Config RouterConfig
	Logger *logger.Logger
	// Health maps a dependency name (postgres, redis) to its check. The
	// service is ready only when every check passes.
	Health   map[string]HealthChecker
	EventBus events.Bus
	Modules  []Module
}
