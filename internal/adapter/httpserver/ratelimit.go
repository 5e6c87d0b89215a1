package httpserver

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	rateLimiterExpiry  = 5 * time.Minute
	msgTooManyRequests = "Demasiadas solicitudes, intente nuevamente en unos segundos"
)

// newRateLimiter limits REST calls per client IP. Denied calls carry Retry-After set to the
// time one token takes to refill, rounded up to whole seconds.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	retryAfter := strconv.Itoa(retryAfterSeconds(ratePerSecond))

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			slog.WarnContext(c.Request().Context(), "API rate limit exceeded",
				"ip", identifier, "method", c.Request().Method, "route", c.Path())
			c.Response().Header().Set("Retry-After", retryAfter)
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error": msgTooManyRequests,
				"type":  "rate_limited",
			})
		},
	})
}

func retryAfterSeconds(ratePerSecond float64) int {
	if ratePerSecond <= 0 {
		return 60
	}
	return max(1, int(math.Ceil(1/ratePerSecond)))
}
