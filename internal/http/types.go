package http

import (
	"time"

	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/jnicheck"
	"github.com/fyrsmithlabs/jnicheck/internal/resources"
	"github.com/fyrsmithlabs/jnicheck/internal/telemetry"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status    string                  `json:"status"`
	Published bool                    `json:"published"`
	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// StatusResponse is the response body for GET /api/v1/status.
type StatusResponse struct {
	Version     string            `json:"version,omitempty"`
	Script      string            `json:"script,omitempty"`
	Updated     time.Time         `json:"updated"`
	Diagnostics int               `json:"diagnostics"` // total reported, including evicted
	Snapshot    jnicheck.Snapshot `json:"snapshot"`
}

// StatsResponse is the response body for GET /api/v1/stats.
type StatsResponse struct {
	RunID string              `json:"run_id"`
	Total uint64              `json:"total"`
	Calls []jnicheck.CallStat `json:"calls"`
}

// LeaksResponse is the response body for GET /api/v1/leaks.
type LeaksResponse struct {
	RunID string           `json:"run_id"`
	Count int              `json:"count"`
	Leaks []resources.Leak `json:"leaks"`
}

// DiagnosticsResponse is the response body for GET /api/v1/diagnostics.
type DiagnosticsResponse struct {
	Total       int                `json:"total"`
	Matched     int                `json:"matched"`
	ByCheck     map[diag.Check]int `json:"by_check"`
	Diagnostics []diag.Diagnostic  `json:"diagnostics"`
}
