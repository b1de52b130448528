package monitoring

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
	LogLevel   string
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return Disabled(), nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// StartTransaction starts a new transaction
func (nr *NewRelicApp) StartTransaction(name string) *newrelic.Transaction {
	if nr == nil || !nr.enabled || nr.Application == nil {
		return nil
	}
	return nr.Application.StartTransaction(name)
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if nr == nil || !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if nr == nil || !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if nr == nil || !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.Shutdown(timeout)
}

// Disabled returns an app whose recorders are no-ops
func Disabled() *NewRelicApp {
	return &NewRelicApp{nil, false}
}

// Custom metric helpers

// RecordDocumentUploaded records a rider document upload
func (nr *NewRelicApp) RecordDocumentUploaded(documentType string) {
	nr.RecordCustomEvent("RiderDocumentUploaded", map[string]interface{}{
		"document_type": documentType,
	})
}

// RecordDocumentReviewed records an admin verdict on a document
func (nr *NewRelicApp) RecordDocumentReviewed(documentType, verdict string) {
	nr.RecordCustomEvent("RiderDocumentReviewed", map[string]interface{}{
		"document_type": documentType,
		"verdict":       verdict,
	})
}

// RecordLocationUpdate records a rider location ping
func (nr *NewRelicApp) RecordLocationUpdate() {
	nr.RecordCustomMetric("custom/rider/location_update", 1)
}

// RecordAvailabilityQuery records proximity query latency and result size
func (nr *NewRelicApp) RecordAvailabilityQuery(latencyMs float64, results int) {
	nr.RecordCustomMetric("custom/rider/availability_latency_ms", latencyMs)
	nr.RecordCustomMetric("custom/rider/availability_results", float64(results))
}

// RecordDeliveryApplied records a delivery outcome folded into stats
func (nr *NewRelicApp) RecordDeliveryApplied(completed bool) {
	nr.RecordCustomEvent("RiderDeliveryApplied", map[string]interface{}{
		"completed": completed,
	})
}

// RecordVersionConflict records an optimistic concurrency retry
func (nr *NewRelicApp) RecordVersionConflict(operation string) {
	nr.RecordCustomMetric(fmt.Sprintf("custom/rider/version_conflict/%s", operation), 1)
}

// RecordBlobDeleteFailure records a failed best-effort blob deletion
func (nr *NewRelicApp) RecordBlobDeleteFailure() {
	nr.RecordCustomMetric("custom/blob/delete_failure", 1)
}

// RecordDatabasePoolStats records database connection pool statistics
func (nr *NewRelicApp) RecordDatabasePoolStats(stats sql.DBStats) {
	nr.RecordCustomMetric("custom/db/open_connections", float64(stats.OpenConnections))
	nr.RecordCustomMetric("custom/db/in_use", float64(stats.InUse))
	nr.RecordCustomMetric("custom/db/idle", float64(stats.Idle))
	nr.RecordCustomMetric("custom/db/wait_count", float64(stats.WaitCount))
}

// RecordRedisPoolStats records Redis pool statistics
func (nr *NewRelicApp) RecordRedisPoolStats(stats *redis.PoolStats) {
	if stats == nil {
		return
	}
	nr.RecordCustomMetric("custom/redis/pool_hits", float64(stats.Hits))
	nr.RecordCustomMetric("custom/redis/pool_misses", float64(stats.Misses))
	nr.RecordCustomMetric("custom/redis/pool_timeouts", float64(stats.Timeouts))
	nr.RecordCustomMetric("custom/redis/total_conns", float64(stats.TotalConns))
	nr.RecordCustomMetric("custom/redis/idle_conns", float64(stats.IdleConns))
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr != nil && nr.enabled
}
