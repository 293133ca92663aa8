package livehttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"mako/internal/engine"
	"mako/internal/logger"
	"mako/internal/store/eventlog"
	"mako/internal/store/gormstore"

	"github.com/gin-gonic/gin"
)

// EngineView is the read-only surface the HTTP layer needs from the trading
// engine. Snapshot copies are safe to serialize without further locking.
type EngineView interface {
	Snapshot() engine.Snapshot
}

// TradeStore serves the trade journal and aggregated daily results.
type TradeStore interface {
	Trades(limit int) ([]gormstore.TradeRecord, error)
	DailyPnLSeries(days int) ([]gormstore.DailyPnL, error)
}

// EventSource serves the append-only event log.
type EventSource interface {
	Recent(ctx context.Context, kind string, limit int) ([]eventlog.Event, error)
}

// Router exposes the live trading query endpoints plus the shutdown trigger.
type Router struct {
	Engine EngineView
	Trades TradeStore
	Events EventSource

	// Shutdown stops the whole process; the route is only mounted when set.
	Shutdown func()
}

func NewRouter(view EngineView, trades TradeStore, events EventSource) *Router {
	return &Router{Engine: view, Trades: trades, Events: events}
}

// Register mounts the live routes under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/position", r.handlePosition)
	group.GET("/trades", r.handleTrades)
	group.GET("/events", r.handleEvents)
	group.GET("/report", r.handleReport)
	if r.Shutdown != nil {
		group.POST("/shutdown", r.handleShutdown)
	}
}

func (r *Router) handleShutdown(c *gin.Context) {
	logger.Infof("[api] shutdown requested ip=%s", c.ClientIP())
	r.Shutdown()
	c.JSON(http.StatusAccepted, gin.H{"status": "shutting down"})
}

func (r *Router) handleStatus(c *gin.Context) {
	if r.Engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine unavailable"})
		return
	}
	snap := r.Engine.Snapshot()
	c.JSON(http.StatusOK, snap)
}

func (r *Router) handlePosition(c *gin.Context) {
	if r.Engine == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "engine unavailable"})
		return
	}
	snap := r.Engine.Snapshot()
	if snap.Position == nil {
		c.JSON(http.StatusOK, gin.H{"open": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"open":           true,
		"position":       snap.Position,
		"unrealized_pnl": snap.UnrealizedPnL,
		"last_price":     snap.LastPrice,
	})
}

func (r *Router) handleTrades(c *gin.Context) {
	if r.Trades == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade journal unavailable"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	trades, err := r.Trades.Trades(limit)
	if err != nil {
		logger.Errorf("[api] trades query failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades, "count": len(trades)})
}

func (r *Router) handleEvents(c *gin.Context) {
	if r.Events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event log unavailable"})
		return
	}
	kind := strings.TrimSpace(c.Query("kind"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	events, err := r.Events.Recent(c.Request.Context(), kind, limit)
	if err != nil {
		logger.Errorf("[api] events query failed ip=%s kind=%s err=%v", c.ClientIP(), kind, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}
