package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// DefaultBodyLimit fits the search grid and prescription forms with room to
// spare.
const DefaultBodyLimit = "64K"

// DefaultRequestTimeout applies when RequestTimeout is given no positive
// duration.
const DefaultRequestTimeout = 15 * time.Second

// BodyLimit rejects request bodies larger than limit ("64K", "1M") with 413.
// An empty limit means DefaultBodyLimit.
func BodyLimit(limit string) echo.MiddlewareFunc {
	if limit == "" {
		limit = DefaultBodyLimit
	}
	return echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{Limit: limit})
}

// RequestTimeout bounds every store round-trip of a request by a context
// deadline. A handler that fails because the deadline passed answers 504.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout: timeout,
		ErrorHandler: func(err error, c echo.Context) error {
			if errors.Is(err, context.DeadlineExceeded) {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out").SetInternal(err)
			}
			return err
		},
	})
}
