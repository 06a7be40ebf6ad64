package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"n8n-mcp/internal/logging"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	ServiceName string
	Logger      *logging.Logger
	Health      *Handler
	Workflows   *Server
	// Metrics serves the Prometheus exposition; nil leaves /metrics unmounted.
	Metrics http.Handler
	// Auth guards the MCP and /api/v1 routes; nil leaves them open.
	Auth echo.MiddlewareFunc
	// MountMCP registers the MCP transport on the protected group.
	MountMCP func(g *echo.Group)
}

// NewRouter assembles the HTTP transport.
func NewRouter(opts RouterOptions) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(otelecho.Middleware(opts.ServiceName))
	e.Use(middleware.Recover())
	if opts.Logger != nil {
		e.Use(requestLogger(opts.Logger))
	}

	e.GET("/healthz", echo.WrapHandler(http.HandlerFunc(opts.Health.HandleHealth)))
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}

	protected := e.Group("")
	if opts.Auth != nil {
		protected.Use(opts.Auth)
	}
	if opts.MountMCP != nil {
		opts.MountMCP(protected)
	}
	if opts.Workflows != nil {
		RegisterHandlers(protected.Group("/api/v1"), opts.Workflows)
	}
	return e
}

func requestLogger(logger *logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("http request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	})
}
