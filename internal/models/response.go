// Package models - API response types and error handling.
// This file defines the outgoing structures shared by every endpoint.
//
// Response Design Principles:
// - Consistent JSON error structure with machine-readable codes
// - Optional fields use omitempty to reduce response size
// - RFC3339 timestamps
package models

import (
	"time"
)

// Health status values
const (
	StatusOK       = "OK"
	StatusDegraded = "DEGRADED"
)

// Error codes for consistent client-side error handling
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Route doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Invalid request format
	ErrorCodeValidation         = "VALIDATION_ERROR"    // 400: Input validation failed
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401: Authentication required
	ErrorCodeRateLimited        = "RATE_LIMIT_EXCEEDED" // 429: Client throttled
	ErrorCodeUpstreamFailure    = "UPSTREAM_FAILURE"    // 502: Maps/model call failed
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Dependency not configured
)

// ErrorResponse is the JSON body written for every failed request. The
// browser client reads the "error" field, so it carries the human-readable
// message; Code is the stable machine-readable value.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// NotFoundResponse matches the shape the frontend expects for unknown routes.
type NotFoundResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Message    string                     `json:"message"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// KeyPoolStatsResponse reports the state of the model credential pool.
type KeyPoolStatsResponse struct {
	Size              int            `json:"size"`
	CapacityPerWindow int            `json:"capacity_per_window"`
	Window            string         `json:"window"`
	Keys              []KeyStatsInfo `json:"keys"`
}

type KeyStatsInfo struct {
	Index    int        `json:"index"`
	Key      string     `json:"key"`
	Usage    int        `json:"usage"`
	State    string     `json:"state"`
	LastUsed *time.Time `json:"last_used,omitempty"`
}

type ResetResponse struct {
	Message string    `json:"message"`
	ResetAt time.Time `json:"reset_at"`
}

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

func NewHealthCheckResponse(status, message string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Message:    message,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:  status,
		Message: message,
	}
}
