package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/canopyvote/app/api/controller/types"
	"go.uber.org/zap"
)

// HandleHealth pings the record store and, when enabled, Redis.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res := types.HealthResponse{
		Status:      "ok",
		Store:       "ok",
		LedgerMode:  string(c.App.Manager.Config().LedgerMode),
		Subscribers: c.App.Hub.Size(),
	}
	status := http.StatusOK

	if err := c.App.Store.Ping(ctx); err != nil {
		c.App.Logger.Warn("Store health check failed", zap.String("backend", c.App.Store.Backend()), zap.Error(err))
		res.Store = "unavailable"
		res.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	if c.App.RedisClient != nil {
		redis := "ok"
		if err := c.App.RedisClient.Health(ctx); err != nil {
			c.App.Logger.Warn("Redis health check failed", zap.Error(err))
			// events still reach local subscribers, so this does not fail the probe
			redis = "unavailable"
			res.Status = "degraded"
		}
		res.Redis = &redis
	}

	writeJSON(w, status, res)
}
