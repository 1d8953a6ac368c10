package service

import (
	"context"
	"database/sql"
	"time"
)

// Health status constants
const (
	StatusHealthy      = "healthy"
	StatusDegraded     = "degraded"
	StatusUnhealthy    = "unhealthy"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusOnline       = "online"
	StatusOffline      = "offline"
)

// HealthStatus represents the overall health of the application
type HealthStatus struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
}

// FeedChecker reports whether the change feed connection is up
type FeedChecker interface {
	IsConnected() bool
}

// HealthChecker handles health check operations
type HealthChecker struct {
	db      *sql.DB
	feed    FeedChecker
	engine  OnlineChecker
	version string
}

// NewHealthChecker creates a new HealthChecker instance. feed may be nil
// when running on the in-memory store.
func NewHealthChecker(db *sql.DB, feed FeedChecker, engine OnlineChecker, version string) *HealthChecker {
	return &HealthChecker{
		db:      db,
		feed:    feed,
		engine:  engine,
		version: version,
	}
}

// checkDatabase verifies PostgreSQL connectivity with a timeout
func (h *HealthChecker) checkDatabase() string {
	if h.db == nil {
		return StatusConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// checkFeed verifies the change feed connection
func (h *HealthChecker) checkFeed() string {
	if h.feed == nil {
		return StatusConnected
	}
	if !h.feed.IsConnected() {
		return StatusDisconnected
	}
	return StatusConnected
}

// checkEngine reports the prober's last observed engine liveness
func (h *HealthChecker) checkEngine() string {
	if h.engine == nil || !h.engine.Online() {
		return StatusOffline
	}
	return StatusOnline
}

// determineOverallStatus calculates overall health from service statuses.
// A dead database is unhealthy; a dead feed or offline engine degrades the
// service but campaigns remain readable.
func (h *HealthChecker) determineOverallStatus(services map[string]string) string {
	if services["database"] == StatusDisconnected {
		return StatusUnhealthy
	}
	if services["feed"] == StatusDisconnected || services["engine"] == StatusOffline {
		return StatusDegraded
	}
	return StatusHealthy
}

// CheckHealth performs health checks on all dependencies
func (h *HealthChecker) CheckHealth() (*HealthStatus, error) {
	services := map[string]string{
		"database": h.checkDatabase(),
		"feed":     h.checkFeed(),
		"engine":   h.checkEngine(),
	}

	return &HealthStatus{
		Status:    h.determineOverallStatus(services),
		Services:  services,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}, nil
}
