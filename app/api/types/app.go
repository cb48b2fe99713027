package types

import (
	"context"
	"net/http"
	"time"

	"github.com/canopy-network/canopyvote/pkg/db"
	"github.com/canopy-network/canopyvote/pkg/hub"
	"github.com/canopy-network/canopyvote/pkg/ledger"
	"github.com/canopy-network/canopyvote/pkg/lifecycle"
	"github.com/canopy-network/canopyvote/pkg/redis"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type App struct {
	Config Config

	// Record Store (memory or postgres)
	Store db.Store

	// Ledger is nil when LEDGER_MODE=none.
	Ledger ledger.Client

	// Manager owns every election and vote transition.
	Manager *lifecycle.Manager

	// Hub fans events out to websocket subscribers. Relay is set when Redis is enabled.
	Hub   *hub.Hub
	Relay *hub.Relay

	// Redis Client (cross-instance event fan-out)
	RedisClient *redis.Client

	// Cron runs the stale-election reaper according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	// Zap Logger
	Logger *zap.Logger

	// HTTP Server
	Server *http.Server
}

// SetupScheduler registers the reaper on a fresh cron scheduler.
func (a *App) SetupScheduler(ctx context.Context, cronSpec string) error {
	logger := cronLogger{a.Logger.With(zap.String("component", "cron"))}
	// Seconds field, optional
	a.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(logger)))
	a.CronSpec = cronSpec

	_, err := a.Cron.AddFunc(cronSpec, func() {
		// keep each run bounded
		rctx, cancel := context.WithTimeout(ctx, 25*time.Second)
		defer cancel()
		if _, err := a.Manager.ReapStalePending(rctx); err != nil {
			a.Logger.Warn("Reaper run failed", zap.Error(err))
		}
	})
	return err
}

// StartCron starts the cron scheduler.
func (a *App) StartCron() {
	a.Cron.Start()
	a.Logger.Info("Cron started", zap.String("cronSpec", a.CronSpec))
}

// StopCron stops the scheduler and waits for a running reaper pass.
func (a *App) StopCron() {
	if a.Cron != nil {
		<-a.Cron.Stop().Done()
	}
}

// Start serves until ctx is cancelled, then drains in dependency order: stop accepting
// requests, stop the reaper, roll back in-flight deployments, close push connections and
// finally release the ledger, store and redis connections.
func (a *App) Start(ctx context.Context) {
	go func() {
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.Logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	<-ctx.Done()

	a.Logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Shutdown does not wait for hijacked websocket connections; the hub closes those below.
	_ = a.Server.Shutdown(shutdownCtx)

	a.StopCron()

	if a.Manager != nil {
		a.Logger.Info("Waiting for in-flight deployments")
		a.Manager.Close()
	}

	if a.Hub != nil {
		a.Hub.Close()
	}

	if a.Ledger != nil {
		a.Ledger.Close()
	}

	if a.Store != nil {
		a.Logger.Info("closing record store", zap.String("backend", a.Store.Backend()))
		if err := a.Store.Close(); err != nil {
			a.Logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Logger.Error("Failed to close Redis connection", zap.Error(err))
		}
	}

	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("さようなら!")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
