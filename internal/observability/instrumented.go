package observability

import (
	"context"
	"errors"
	"time"

	"healthassist/internal/keypool"
	"healthassist/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Analyzer is the symptom analysis contract shared with the API layer.
type Analyzer interface {
	Analyze(ctx context.Context, symptoms string, attachment *models.Attachment) (*models.AnalysisResult, error)
}

// InstrumentedAnalyzer wraps an Analyzer with a span per call, a latency
// histogram and a counter split by result source.
type InstrumentedAnalyzer struct {
	inner    Analyzer
	tracer   trace.Tracer
	duration metric.Float64Histogram
	results  metric.Int64Counter
}

func NewInstrumentedAnalyzer(inner Analyzer) (*InstrumentedAnalyzer, error) {
	meter := otel.Meter(instrumentationName + "/analysis")

	duration, err := meter.Float64Histogram(
		"analysis.duration",
		metric.WithDescription("Duration of symptom analyses in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	results, err := meter.Int64Counter(
		"analysis.results",
		metric.WithDescription("Number of analyses by result source"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedAnalyzer{
		inner:    inner,
		tracer:   otel.Tracer(instrumentationName + "/analysis"),
		duration: duration,
		results:  results,
	}, nil
}

func (a *InstrumentedAnalyzer) Analyze(ctx context.Context, symptoms string, attachment *models.Attachment) (*models.AnalysisResult, error) {
	ctx, span := a.tracer.Start(ctx, "analysis.analyze",
		trace.WithAttributes(
			attribute.Int("analysis.symptoms_length", len(symptoms)),
			attribute.Bool("analysis.has_attachment", attachment != nil),
		),
	)
	defer span.End()

	start := time.Now()
	result, err := a.inner.Analyze(ctx, symptoms, attachment)

	source := "error"
	if result != nil {
		source = result.Source
	}
	attrs := metric.WithAttributes(attribute.String("source", source))
	a.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	a.results.Add(ctx, 1, attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("analysis.source", result.Source),
		attribute.String("analysis.hospital_type", result.HospitalType),
		attribute.String("analysis.severity", result.Severity),
	)
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// DetailedSelector is the part of the key pool that reports how a key was
// chosen.
type DetailedSelector interface {
	SelectDetailed() (keypool.Selection, error)
}

// InstrumentedKeySelector counts key selections by path, so overflow onto
// saturated keys is visible before the upstream starts rejecting calls.
type InstrumentedKeySelector struct {
	inner      DetailedSelector
	selections metric.Int64Counter
	resets     metric.Int64Counter
}

func NewInstrumentedKeySelector(inner DetailedSelector) (*InstrumentedKeySelector, error) {
	meter := otel.Meter(instrumentationName + "/keypool")

	selections, err := meter.Int64Counter(
		"keypool.selections",
		metric.WithDescription("Number of credential selections by path"),
		metric.WithUnit("{selection}"),
	)
	if err != nil {
		return nil, err
	}

	resets, err := meter.Int64Counter(
		"keypool.window_resets",
		metric.WithDescription("Number of selections that restarted an elapsed window"),
		metric.WithUnit("{reset}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedKeySelector{inner: inner, selections: selections, resets: resets}, nil
}

// Select implements the analysis key selector contract.
func (s *InstrumentedKeySelector) Select() (string, error) {
	ctx := context.Background()

	sel, err := s.inner.SelectDetailed()
	if err != nil {
		path := "error"
		if errors.Is(err, keypool.ErrNoCredentialsAvailable) {
			path = "empty"
		}
		s.selections.Add(ctx, 1, metric.WithAttributes(attribute.String("path", path)))
		return "", err
	}

	s.selections.Add(ctx, 1, metric.WithAttributes(attribute.String("path", string(sel.Path))))
	if sel.WindowReset {
		s.resets.Add(ctx, 1)
	}
	return sel.Credential, nil
}

// StatsSource is the part of the key pool that reports per-key state.
type StatsSource interface {
	Stats() []keypool.KeyStats
}

// RegisterKeyPoolGauges publishes per-key usage and the pool size as
// observable gauges, read from the pool on every collection.
func RegisterKeyPoolGauges(pool StatsSource) error {
	meter := otel.Meter(instrumentationName + "/keypool")

	_, err := meter.Int64ObservableGauge(
		"keypool.key.usage",
		metric.WithDescription("Selections of each credential in its current window"),
		metric.WithUnit("{selection}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			for _, st := range pool.Stats() {
				o.Observe(int64(st.Usage), metric.WithAttributes(
					attribute.Int("key.index", st.Index),
					attribute.String("key.state", string(st.State)),
				))
			}
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = meter.Int64ObservableGauge(
		"keypool.size",
		metric.WithDescription("Number of credentials in the pool"),
		metric.WithUnit("{key}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(len(pool.Stats())))
			return nil
		}),
	)
	return err
}
