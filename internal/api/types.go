package api

import (
	"github.com/crowdcast/presenced/internal/host"
	"github.com/crowdcast/presenced/internal/registry"
)

// StatusResponse is the full presence snapshot returned by
// GET /api/sources.
type StatusResponse struct {
	Sources    []registry.Source `json:"sources"`
	AnyHooked  bool              `json:"any_hooked"`
	ManualMode bool              `json:"manual_mode"`
}

// TargetsResponse lists the windows available as capture targets, with the
// commonly-captured applications broken out separately.
type TargetsResponse struct {
	Targets   []host.Target `json:"targets"`
	Suggested []host.Target `json:"suggested"`
}

// CaptureRequest is the body of POST /api/capture.
type CaptureRequest struct {
	Enabled bool `json:"enabled"`
}

// CaptureResponse reports the state after a manual capture toggle.
type CaptureResponse struct {
	Success    bool `json:"success"`
	Enabled    bool `json:"enabled"`
	ManualMode bool `json:"manual_mode"`
	AnyHooked  bool `json:"any_hooked"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status     string `json:"status"`
	Probe      string `json:"probe"`
	ManualMode bool   `json:"manual_mode"`
}

// ErrorResponse wraps handler failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
