package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"healthassist/internal/analysis"
	"healthassist/internal/extract"
	"healthassist/internal/hospitals"
	"healthassist/internal/keypool"
	"healthassist/internal/models"
	"healthassist/internal/version"
)

// Analyzer turns free-text symptoms (and an optional attachment) into an
// assessment.
type Analyzer interface {
	Analyze(ctx context.Context, symptoms string, attachment *models.Attachment) (*models.AnalysisResult, error)
}

// LocationService finds hospitals and resolves addresses.
type LocationService interface {
	FindNearby(ctx context.Context, lat, lng float64, hospitalType string, radiusKm float64) ([]models.Hospital, error)
	Address(ctx context.Context, lat, lng float64) (string, error)
	Configured() bool
}

// KeyPool is the view of the credential pool the handlers need.
type KeyPool interface {
	Stats() []keypool.KeyStats
	ResetUsage()
	Len() int
	CapacityPerWindow() int
	Window() time.Duration
}

// StorePinger checks a shared backing store, such as the Redis instance
// holding rate limit counters.
type StorePinger interface {
	Ping(ctx context.Context) error
}

const storePingTimeout = 2 * time.Second

// Handlers contains HTTP handlers for the health assistant API
type Handlers struct {
	analyzer  Analyzer
	locations LocationService
	keys      KeyPool
	config    *models.Config
	version   version.Info
	rateStore StorePinger
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handlers)

// WithRateLimitStore reports the shared rate limit store in /health.
func WithRateLimitStore(store StorePinger) HandlerOption {
	return func(h *Handlers) {
		h.rateStore = store
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(analyzer Analyzer, locations LocationService, keys KeyPool, config *models.Config, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		analyzer:  analyzer,
		locations: locations,
		keys:      keys,
		config:    config,
		version:   version.GetInfo(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusOK, "AI Health Assistant Backend is running")
	response.Version = h.version.Version
	response.Uptime = h.version.Uptime().Round(time.Second).String()

	if n := h.keys.Len(); n > 0 {
		response.AddComponent("gemini", models.StatusOK, fmt.Sprintf("%d API keys loaded", n))
	} else {
		response.AddComponent("gemini", models.StatusDegraded, "no API keys configured, using fallback analysis")
	}

	if h.locations.Configured() {
		response.AddComponent("maps", models.StatusOK, "maps API key configured")
	} else {
		response.AddComponent("maps", models.StatusDegraded, "maps API key not configured")
	}

	if h.rateStore != nil {
		ctx, cancel := context.WithTimeout(r.Context(), storePingTimeout)
		defer cancel()
		if err := h.rateStore.Ping(ctx); err != nil {
			slog.Warn("Rate limit store unreachable", "error", err)
			response.AddComponent("rate_limit_store", models.StatusDegraded, "unreachable, rate limiting fails open")
		} else {
			response.AddComponent("rate_limit_store", models.StatusOK, "reachable")
		}
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// Analyze handles symptom analysis requests
// POST /analyze
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Symptoms) == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeValidation, "Symptoms are required")
		return
	}

	h.runAnalysis(w, r, req.Symptoms, nil, "Internal server error during analysis")
}

// AnalyzeFile handles analysis of an uploaded report or image
// POST /analyze-file (multipart: file, symptoms)
func (h *Handlers) AnalyzeFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.config.Server.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, models.ErrorCodeValidation,
				fmt.Sprintf("File exceeds the %d byte upload limit", h.config.Server.MaxUploadBytes))
			return
		}
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeValidation, "File is required")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.Warn("Failed to remove multipart temp files", "error", err)
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeValidation, "File is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Could not process the uploaded file")
		return
	}

	content, err := extract.FromBytes(data, header.Header.Get("Content-Type"))
	if err != nil {
		slog.Warn("Rejected uploaded file",
			"filename", header.Filename,
			"size", header.Size,
			"error", err)
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Could not process the uploaded file")
		return
	}

	input := extract.CombineInput(r.FormValue("symptoms"), content)
	h.runAnalysis(w, r, input, content.Attachment, "Internal server error during file analysis")
}

func (h *Handlers) runAnalysis(w http.ResponseWriter, r *http.Request, input string, attachment *models.Attachment, failure string) {
	result, err := h.analyzer.Analyze(r.Context(), input, attachment)
	if err != nil {
		if errors.Is(err, analysis.ErrEmptyInput) {
			h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeValidation, "Symptoms are required")
			return
		}
		slog.Error("Analysis failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		h.writeErrorResponse(w, r, http.StatusInternalServerError, models.ErrorCodeInternalError, failure)
		return
	}

	w.Header().Set("X-Analysis-Source", result.Source)
	h.writeJSONResponse(w, http.StatusOK, result)
}

// GetAddress handles reverse geocoding requests
// POST /get-address
func (h *Handlers) GetAddress(w http.ResponseWriter, r *http.Request) {
	var req models.AddressRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeValidation, "Latitude and longitude are required")
		return
	}

	address, err := h.locations.Address(r.Context(), *req.Lat, *req.Lng)
	switch {
	case errors.Is(err, hospitals.ErrInvalidCoordinates):
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeValidation, "Latitude or longitude out of range")
	case err != nil:
		slog.Error("Reverse geocoding failed", "error", err)
		h.writeJSONResponse(w, http.StatusInternalServerError, models.AddressResponse{Address: hospitals.AddressNotFound})
	default:
		h.writeJSONResponse(w, http.StatusOK, models.AddressResponse{Address: address})
	}
}

// NearbyHospitals handles hospital search requests
// POST /nearby-hospitals
func (h *Handlers) NearbyHospitals(w http.ResponseWriter, r *http.Request) {
	var req models.NearbyHospitalsRequest
	if !h.decodeJSONBody(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeValidation, "Latitude and longitude are required")
		return
	}

	radius := req.Radius
	if radius == 0 {
		radius = h.config.Maps.DefaultRadiusKm
	}
	if radius < 0 || radius > h.config.Maps.MaxRadiusKm {
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeValidation,
			fmt.Sprintf("Radius must be between 0 and %g km", h.config.Maps.MaxRadiusKm))
		return
	}

	results, err := h.locations.FindNearby(r.Context(), *req.Lat, *req.Lng, req.HospitalType, radius)
	switch {
	case errors.Is(err, hospitals.ErrInvalidCoordinates):
		h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeValidation, "Latitude or longitude out of range")
	case errors.Is(err, hospitals.ErrMapsNotConfigured):
		h.writeErrorResponse(w, r, http.StatusServiceUnavailable, models.ErrorCodeServiceUnavailable, "Hospital search is not configured")
	case err != nil:
		slog.Error("Nearby hospital search failed", "error", err, "hospital_type", req.HospitalType)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, models.ErrorCodeUpstreamFailure, "Failed to find nearby hospitals")
	default:
		h.writeJSONResponse(w, http.StatusOK, results)
	}
}

// decodeJSONBody reads at most Server.MaxJSONBytes into dst. An empty body
// leaves dst untouched. On failure the error response is already written.
func (h *Handlers) decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.Server.MaxJSONBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeErrorResponse(w, r, http.StatusRequestEntityTooLarge, models.ErrorCodeValidation,
			fmt.Sprintf("Request body exceeds the %d byte limit", h.config.Server.MaxJSONBytes))
		return false
	}
	h.writeErrorResponse(w, r, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON in request body")
	return false
}

// NotFound answers unknown routes in the shape the frontend expects.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusNotFound, models.NotFoundResponse{Success: false, Error: "Route not found"})
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already out; nothing left to send.
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, errorCode, message string) {
	errorResp := models.NewErrorResponse(message, errorCode)
	errorResp.RequestID = RequestIDFromContext(r.Context())
	h.writeJSONResponse(w, statusCode, errorResp)
}
