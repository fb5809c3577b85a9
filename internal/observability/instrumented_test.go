package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"healthassist/internal/keypool"
	"healthassist/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupTestMeter(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { mp.Shutdown(context.Background()) })
	return reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}
	t.Fatalf("metric %q not collected", name)
	return nil
}

func sumByAttr(t *testing.T, data metricdata.Aggregation, key string) map[string]int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		out[v.AsString()] += dp.Value
	}
	return out
}

type stubAnalyzer struct {
	result *models.AnalysisResult
	err    error
}

func (s stubAnalyzer) Analyze(context.Context, string, *models.Attachment) (*models.AnalysisResult, error) {
	return s.result, s.err
}

func TestInstrumentedAnalyzer_RecordsSource(t *testing.T) {
	reader := setupTestMeter(t)

	fallback := &models.AnalysisResult{HospitalType: models.HospitalTypeGeneral, Source: models.SourceFallback}
	a, err := NewInstrumentedAnalyzer(stubAnalyzer{result: fallback})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		got, err := a.Analyze(context.Background(), "cough", nil)
		require.NoError(t, err)
		assert.Same(t, fallback, got)
	}

	counts := sumByAttr(t, collect(t, reader, "analysis.results"), "source")
	assert.Equal(t, int64(2), counts[models.SourceFallback])

	hist, ok := collect(t, reader, "analysis.duration").(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestInstrumentedAnalyzer_PropagatesError(t *testing.T) {
	reader := setupTestMeter(t)

	sentinel := errors.New("empty input")
	a, err := NewInstrumentedAnalyzer(stubAnalyzer{err: sentinel})
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), "", nil)
	assert.ErrorIs(t, err, sentinel)

	counts := sumByAttr(t, collect(t, reader, "analysis.results"), "source")
	assert.Equal(t, int64(1), counts["error"])
}

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func TestInstrumentedKeySelector_CountsPaths(t *testing.T) {
	reader := setupTestMeter(t)

	pool := keypool.New([]string{"a", "b"}, keypool.Options{
		CapacityPerWindow: 1,
		Window:            time.Minute,
		Clock:             &fixedClock{now: time.Unix(1_700_000_000, 0)},
	})
	s, err := NewInstrumentedKeySelector(pool)
	require.NoError(t, err)

	var got []string
	for i := 0; i < 3; i++ {
		k, err := s.Select()
		require.NoError(t, err)
		got = append(got, k)
	}
	assert.Equal(t, []string{"a", "b", "a"}, got)

	counts := sumByAttr(t, collect(t, reader, "keypool.selections"), "path")
	assert.Equal(t, int64(2), counts[string(keypool.PathHappy)])
	assert.Equal(t, int64(1), counts[string(keypool.PathOverflow)])

	// Both first selections started a window from "never used".
	resets, ok := collect(t, reader, "keypool.window_resets").(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, resets.DataPoints, 1)
	assert.Equal(t, int64(2), resets.DataPoints[0].Value)
}

func TestInstrumentedKeySelector_EmptyPool(t *testing.T) {
	reader := setupTestMeter(t)

	s, err := NewInstrumentedKeySelector(keypool.New(nil, keypool.Options{}))
	require.NoError(t, err)

	_, err = s.Select()
	assert.ErrorIs(t, err, keypool.ErrNoCredentialsAvailable)

	counts := sumByAttr(t, collect(t, reader, "keypool.selections"), "path")
	assert.Equal(t, int64(1), counts["empty"])
}

func TestRegisterKeyPoolGauges(t *testing.T) {
	reader := setupTestMeter(t)

	pool := keypool.New([]string{"k1", "k2", "k3"}, keypool.Options{CapacityPerWindow: 5})
	_, err := pool.Select()
	require.NoError(t, err)

	require.NoError(t, RegisterKeyPoolGauges(pool))

	usage, ok := collect(t, reader, "keypool.key.usage").(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, usage.DataPoints, 3)

	byIndex := make(map[int64]int64)
	for _, dp := range usage.DataPoints {
		idx, _ := dp.Attributes.Value("key.index")
		byIndex[idx.AsInt64()] = dp.Value
	}
	assert.Equal(t, map[int64]int64{0: 1, 1: 0, 2: 0}, byIndex)

	size, ok := collect(t, reader, "keypool.size").(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, size.DataPoints, 1)
	assert.Equal(t, int64(3), size.DataPoints[0].Value)
}
