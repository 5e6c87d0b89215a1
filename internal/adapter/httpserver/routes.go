package httpserver

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/acairampoma/hc-medico/internal/adapter/metrics"
	"github.com/acairampoma/hc-medico/internal/platform/correlation"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) registerRoutes() {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(requestLogger())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.SecureWithConfig(monitorSecurityHeaders(s.config.AppURL)))

	s.registerHealthRoutes()
	s.registerPageRoutes()
	s.registerVitalsRoutes(newRateLimiter(s.config.APIRateLimit, s.config.APIRateBurst))
	s.echo.GET("/ws/vital-signs", s.handleWebSocket)

	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}
}

// monitorSecurityHeaders allows the monitor page to open its socket back to this host
// and to the public APP_URL host when the page is served through a proxy.
func monitorSecurityHeaders(appURL string) middleware.SecureConfig {
	connectSrc := "'self'"
	if u, err := url.Parse(appURL); err == nil && u.Host != "" {
		scheme := "ws"
		if u.Scheme == "https" {
			scheme = "wss"
		}
		connectSrc += " " + scheme + "://" + u.Host
	}

	return middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         63072000,
		ContentSecurityPolicy: "default-src 'self'; " +
			"script-src 'self' 'unsafe-inline'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"connect-src " + connectSrc + "; " +
			"frame-ancestors 'none'",
		ReferrerPolicy: "same-origin",
	}
}

// requestLogger logs one line per request. Probe and scrape traffic is logged at debug,
// client errors at warn and server errors at error.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if bedID := c.Param("bed_id"); bedID != "" {
				attrs = append(attrs, "bed_id", bedID)
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.Log(c.Request().Context(), requestLogLevel(c.Path(), v.Status), "Request", attrs...)
			return nil
		},
	})
}

func requestLogLevel(route string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case route == "/metrics" || strings.HasPrefix(route, "/health/"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// correlationMiddleware propagates the request ID into the request context and echoes it
// back as X-Request-ID.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromRequest(c.Request().Header)
		c.Response().Header().Set(correlation.Header, id)
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
