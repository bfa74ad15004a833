package pipeline

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storecast/internal/calendar"
	"storecast/internal/domain"
	"storecast/internal/frame"
	"storecast/internal/join"
	"storecast/internal/timeseries"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2024, m, d, 0, 0, 0, 0, time.UTC)
}

func transactions(t *testing.T) *frame.Frame {
	t.Helper()
	var obs []domain.Observation
	for i, v := range []float64{10, 10, 10, 10, 10, 10, 10, 20, 20, 20} {
		obs = append(obs, domain.Observation{Store: "1", Item: "100", Date: day(3, 5+i), NetAmount: v})
	}
	f, err := frame.FromObservations(obs, domain.DefaultColumns())
	require.NoError(t, err)
	return f
}

func newPipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	b, err := calendar.DefaultBuilder()
	require.NoError(t, err)
	return New(b, opts)
}

func TestRunComputesCatalogue(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newPipeline(t, Options{Metrics: NewMetrics(reg)})

	in := Inputs{
		FX:        []domain.FXRate{{Date: day(3, 5), Rate: 30.9}, {Date: day(3, 6), Rate: 49.5}},
		Inflation: []domain.InflationPoint{{Date: day(3, 1), Index: 112}},
		Stock:     []domain.StockLevel{{Location: "1", Item: "100", Date: day(3, 12), Qty: 57}},
	}
	out, err := p.Run(context.Background(), transactions(t), in)
	require.NoError(t, err)
	assert.Equal(t, 4+len(p.Features()), out.Width())
	assert.Equal(t, 10, out.Len())

	ramadan, err := out.Bools(calendar.ColIsRamadan)
	require.NoError(t, err)
	assert.False(t, ramadan[0], "2024-03-05")
	assert.True(t, ramadan[9], "2024-03-14")

	avg, err := out.Floats(timeseries.ColRollingAvg7)
	require.NoError(t, err)
	assert.InDelta(t, 80.0/7, avg[7], 1e-9)

	fx, err := out.Floats(join.ColFXRate)
	require.NoError(t, err)
	assert.Equal(t, 49.5, fx[9], "forward-filled")

	cover, err := out.Floats(join.ColStockCoverDays)
	require.NoError(t, err)
	assert.InDelta(t, 57/(80.0/7), cover[7], 1e-9)
	assert.True(t, math.IsNaN(cover[0]))

	safety, err := out.Floats(join.ColSafetyStock)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, safety[0], 1e-12)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.opts.Metrics.computed.WithLabelValues(join.ColFXRate)))
	assert.Equal(t, 0, testutil.CollectAndCount(p.opts.Metrics.failures))
}

func TestRunIsolatesFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newPipeline(t, Options{Metrics: NewMetrics(reg)})

	// A pre-existing fx_rate column makes the FX join fail; every other
	// feature is still computed.
	f, err := transactions(t).With(join.ColFXRate, frame.NewMissingFloats(10))
	require.NoError(t, err)

	out, err := p.Run(context.Background(), f, Inputs{})
	require.Error(t, err)
	assert.ErrorIs(t, err, frame.ErrColumnExists)
	assert.Contains(t, err.Error(), join.ColFXRate)
	require.NotNil(t, out)

	assert.True(t, out.Has(join.ColSafetyStock))
	assert.True(t, out.Has(calendar.ColRetailEvent))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.opts.Metrics.failures.WithLabelValues(join.ColFXRate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.opts.Metrics.computed.WithLabelValues(join.ColInflationIndex)))
}

func TestRunDependentFeatureFails(t *testing.T) {
	p := newPipeline(t, Options{Skip: []string{timeseries.ColRollingAvg7}})
	out, err := p.Run(context.Background(), transactions(t), Inputs{})
	require.Error(t, err)
	assert.ErrorIs(t, err, frame.ErrMissingColumn)
	assert.Contains(t, err.Error(), join.ColStockCoverDays)
	assert.False(t, out.Has(timeseries.ColRollingAvg7))
	assert.False(t, out.Has(join.ColStockCoverDays))
	assert.True(t, out.Has(join.ColSafetyStock))
}

func TestRunRequiresInputColumns(t *testing.T) {
	opts := Options{Columns: domain.DefaultColumns()}
	opts.Columns.Value = "Quantity"
	p := newPipeline(t, opts)

	_, err := p.Run(context.Background(), transactions(t), Inputs{})
	var missing *frame.MissingColumnError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "Quantity", missing.Name)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newPipeline(t, Options{}).Run(ctx, transactions(t), Inputs{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newPipeline(t, Options{Metrics: NewMetrics(reg)})
	_, err := p.Run(context.Background(), transactions(t), Inputs{})
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["storecast_features_computed_total"])
	assert.True(t, names["storecast_feature_duration_seconds"])
}

// The Ramadan total sums over the same table that drives is_ramadan, so the
// last day of the 2024 range (April 9) counts.
func TestRamadanTotalSharesRamadanTable(t *testing.T) {
	p := newPipeline(t, Options{})
	obs := []domain.Observation{
		{Store: "1", Item: "100", Date: day(4, 8), NetAmount: 5},
		{Store: "1", Item: "100", Date: day(4, 9), NetAmount: 7},
		{Store: "1", Item: "100", Date: day(4, 10), NetAmount: 100},
	}
	f, err := frame.FromObservations(obs, domain.DefaultColumns())
	require.NoError(t, err)

	out, err := p.Run(context.Background(), f, Inputs{})
	require.NoError(t, err)

	ramadan, err := out.Bools(calendar.ColIsRamadan)
	require.NoError(t, err)
	assert.Equal(t, frame.Bools{true, true, false}, ramadan)

	total, err := out.Floats(timeseries.ColRamadanTotal)
	require.NoError(t, err)
	assert.Equal(t, frame.Floats{12, 12, 12}, total)
}
