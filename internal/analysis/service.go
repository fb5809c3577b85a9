// Package analysis produces structured symptom assessments. Each request
// takes one credential from the key pool, asks the generative model for a
// JSON assessment and falls back to local keyword rules when the model
// cannot be reached or answers with something unusable.
package analysis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"healthassist/internal/models"
)

// ErrEmptyInput is returned when there are neither symptoms nor an
// attachment to analyze.
var ErrEmptyInput = errors.New("analysis: symptoms are required")

// KeySelector hands out the credential for the next model call.
type KeySelector interface {
	Select() (string, error)
}

// Generator performs one model call and returns its raw text.
type Generator interface {
	Generate(ctx context.Context, apiKey, prompt string, attachment *models.Attachment) (string, error)
}

// Options configures a Service.
type Options struct {
	// Timeout bounds a single model call. Zero means no extra bound.
	Timeout time.Duration
}

type Service struct {
	keys      KeySelector
	generator Generator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewService(keys KeySelector, generator Generator, opts Options) *Service {
	return &Service{
		keys:      keys,
		generator: generator,
		timeout:   opts.Timeout,
		logger:    slog.Default().With("component", "analysis"),
	}
}

// Analyze returns an assessment of symptoms, optionally with an image or
// report attached. Only ErrEmptyInput is returned as an error: model and
// key pool failures produce a fallback result with Source set accordingly.
func (s *Service) Analyze(ctx context.Context, symptoms string, attachment *models.Attachment) (*models.AnalysisResult, error) {
	if strings.TrimSpace(symptoms) == "" && attachment == nil {
		return nil, ErrEmptyInput
	}

	apiKey, err := s.keys.Select()
	if err != nil {
		s.logger.Warn("no model credential available, using fallback analysis", "error", err)
		return Fallback(symptoms), nil
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := s.generator.Generate(callCtx, apiKey, BuildPrompt(symptoms), attachment)
	if err != nil {
		s.logger.Error("model call failed, using fallback analysis",
			"error", err,
			"duration", time.Since(start),
			"has_attachment", attachment != nil,
		)
		return Fallback(symptoms), nil
	}

	result, err := ParseResult(text)
	if err != nil {
		s.logger.Warn("could not parse model response, using fallback analysis",
			"error", err,
			"response_bytes", len(text),
		)
		return Fallback(symptoms), nil
	}

	s.logger.Debug("analysis completed",
		"hospital_type", result.HospitalType,
		"severity", result.Severity,
		"duration", time.Since(start),
	)
	return result, nil
}
