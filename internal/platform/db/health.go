package db

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// Check pings one backing service.
type Check func(ctx context.Context) error

// HealthHandler pings the database and every extra check (the property
// store, for instance) and reports pool statistics.
func HealthHandler(pool *pgxpool.Pool, extra map[string]Check) echo.HandlerFunc {
	checks := map[string]Check{"database": pool.Ping}
	for name, c := range extra {
		checks[name] = c
	}
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		results, healthy := runChecks(ctx, checks)
		body := map[string]interface{}{
			"status": "healthy",
			"checks": results,
			"pool":   GetPoolStats(pool),
		}
		if !healthy {
			body["status"] = "unhealthy"
			return c.JSON(http.StatusServiceUnavailable, body)
		}
		return c.JSON(http.StatusOK, body)
	}
}

func runChecks(ctx context.Context, checks map[string]Check) (map[string]string, bool) {
	names := make([]string, 0, len(checks))
	for n := range checks {
		names = append(names, n)
	}
	sort.Strings(names)

	healthy := true
	results := make(map[string]string, len(checks))
	for _, n := range names {
		if err := checks[n](ctx); err != nil {
			results[n] = err.Error()
			healthy = false
			continue
		}
		results[n] = "ok"
	}
	return results, healthy
}
