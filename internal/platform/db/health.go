package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const pingTimeout = 3 * time.Second

// PoolStats is a snapshot of pgxpool counters.
type PoolStats struct {
	TotalConns      int32   `json:"total_conns"`
	IdleConns       int32   `json:"idle_conns"`
	AcquiredConns   int32   `json:"acquired_conns"`
	MaxConns        int32   `json:"max_conns"`
	Utilization     float64 `json:"utilization"`
	AcquireCount    int64   `json:"acquire_count"`
	AcquireDuration string  `json:"acquire_duration"`
}

// HealthResponse is the body of GET /health/db.
type HealthResponse struct {
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"`
	Pool   PoolStats `json:"pool"`
}

// Stats snapshots the pool counters.
func Stats(pool *pgxpool.Pool) PoolStats {
	stat := pool.Stat()
	return newPoolStats(stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns(), stat.MaxConns(),
		stat.AcquireCount(), stat.AcquireDuration())
}

func newPoolStats(total, idle, acquired, maxConns int32, acquireCount int64, acquireDur time.Duration) PoolStats {
	s := PoolStats{
		TotalConns:      total,
		IdleConns:       idle,
		AcquiredConns:   acquired,
		MaxConns:        maxConns,
		AcquireCount:    acquireCount,
		AcquireDuration: acquireDur.String(),
	}
	if maxConns > 0 {
		s.Utilization = float64(acquired) / float64(maxConns)
	}
	return s
}

// HealthHandler pings the store and reports pool statistics. An unreachable
// store answers 503.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), pingTimeout)
		defer cancel()

		resp := HealthResponse{Status: "ok", Pool: Stats(pool)}
		if err := pool.Ping(ctx); err != nil {
			resp.Status = "unavailable"
			resp.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
		return c.JSON(http.StatusOK, resp)
	}
}
