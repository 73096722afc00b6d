package middleware

import (
	"github.com/labstack/echo/v4"
)

// ChartAssetsHost serves the echarts runtime referenced by rendered charts.
const ChartAssetsHost = "https://go-echarts.github.io"

// DefaultContentSecurityPolicy allows same-origin pages, the chart runtime and
// the inline option scripts that chart fragments embed. Frames are limited to
// same-origin so the dashboard can host its chart fragments.
const DefaultContentSecurityPolicy = "default-src 'self'; " +
	"script-src 'self' 'unsafe-inline' " + ChartAssetsHost + "; " +
	"style-src 'self' 'unsafe-inline'; " +
	"img-src 'self' data:; " +
	"frame-ancestors 'self'"

// SecurityHeaders sets the response headers every dashboard page carries.
// Patient data is never cached by the browser.
func SecurityHeaders() echo.MiddlewareFunc {
	return SecurityHeadersWithCSP(DefaultContentSecurityPolicy)
}

func SecurityHeadersWithCSP(csp string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "SAMEORIGIN")
			h.Set("X-XSS-Protection", "0")
			h.Set("Content-Security-Policy", csp)
			h.Set("Referrer-Policy", "same-origin")
			h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			h.Set("Cache-Control", "no-store")

			return next(c)
		}
	}
}
