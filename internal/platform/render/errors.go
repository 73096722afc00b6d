package render

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorView is the data of the error page.
type ErrorView struct {
	Status  int
	Message string
	BackURL string
}

// jsonPrefixes are served JSON errors instead of the HTML page.
var jsonPrefixes = []string{"/api/", "/health"}

func wantsJSON(c echo.Context) bool {
	path := c.Request().URL.Path
	for _, p := range jsonPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// HTTPErrorHandler renders HTML error pages for browser routes and JSON for
// API routes. Internal errors are logged and shown with a generic message.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := "처리 중 오류가 발생했습니다."
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if status < http.StatusInternalServerError {
				msg = fmt.Sprint(he.Message)
			}
		}
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("path", c.Request().URL.Path).
				Int("status", status).
				Msg("request failed")
		}

		var werr error
		switch {
		case c.Request().Method == http.MethodHead:
			werr = c.NoContent(status)
		case wantsJSON(c):
			werr = c.JSON(status, map[string]string{"error": msg})
		default:
			page := Page{
				Title:  http.StatusText(status),
				Notice: Error(msg),
				Data:   ErrorView{Status: status, Message: msg, BackURL: "/patients"},
			}
			werr = c.Render(status, "error", page)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
