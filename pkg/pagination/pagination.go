package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds the result window requested by a client.
type Params struct {
	Limit int
}

// FromContext reads ?limit from the request, falling back to def when it is
// missing or not positive. Values above MaxLimit are capped.
func FromContext(c echo.Context, def int) Params {
	if def <= 0 {
		def = DefaultLimit
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = def
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Params{Limit: limit}
}

// Response wraps a limited API listing.
type Response struct {
	Data      interface{} `json:"data"`
	Count     int         `json:"count"`
	Limit     int         `json:"limit"`
	Truncated bool        `json:"truncated"`
}

// NewResponse reports count items returned under limit. A full window is
// flagged as possibly truncated.
func NewResponse(data interface{}, count, limit int) *Response {
	return &Response{
		Data:      data,
		Count:     count,
		Limit:     limit,
		Truncated: limit > 0 && count >= limit,
	}
}
