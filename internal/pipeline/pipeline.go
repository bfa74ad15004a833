// Package pipeline runs the full feature catalogue over a transaction frame:
// calendar features, then grouped time-series features, then external joins
// and the stock features derived from them.
//
// A failing feature does not stop the run. It is logged, counted and
// reported in the joined error returned next to the frame holding every
// feature that succeeded.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"storecast/internal/calendar"
	"storecast/internal/domain"
	"storecast/internal/frame"
	"storecast/internal/join"
	"storecast/internal/timeseries"
)

// Options configures a Pipeline.
type Options struct {
	Columns      domain.Columns
	Workers      int
	SafetyFactor float64
	// Skip names features that are not computed.
	Skip    []string
	Logger  *slog.Logger
	Metrics *Metrics
}

// Inputs holds the external tables joined onto the frame. Empty tables
// still produce their columns, entirely missing.
type Inputs struct {
	FX        []domain.FXRate
	Inflation []domain.InflationPoint
	Stock     []domain.StockLevel
}

// Pipeline is safe for concurrent use; each Run works on its own frames.
type Pipeline struct {
	builder *calendar.Builder
	engine  *timeseries.Engine
	opts    Options
	log     *slog.Logger
}

// step is one feature of the run.
type step struct {
	name  string
	apply func(ctx context.Context, f *frame.Frame) (*frame.Frame, error)
}

// New returns a Pipeline tagging dates with b.
func New(b *calendar.Builder, opts Options) *Pipeline {
	if opts.Columns == (domain.Columns{}) {
		opts.Columns = domain.DefaultColumns()
	}
	if opts.SafetyFactor == 0 {
		opts.SafetyFactor = join.DefaultSafetyFactor
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	engine := timeseries.New(timeseries.Options{
		StoreCol: opts.Columns.Store,
		ItemCol:  opts.Columns.Item,
		DateCol:  opts.Columns.Date,
		ValueCol: opts.Columns.Value,
		Workers:  opts.Workers,
		Logger:   log,
	})
	return &Pipeline{builder: b, engine: engine, opts: opts, log: log.With("component", "pipeline")}
}

// Features lists the feature names Run computes, in order.
func (p *Pipeline) Features() []string {
	var names []string
	for _, s := range p.steps(Inputs{}) {
		names = append(names, s.name)
	}
	return names
}

func (p *Pipeline) steps(in Inputs) []step {
	cols := p.opts.Columns
	jo := join.Options{StoreCol: cols.Store, ItemCol: cols.Item, DateCol: cols.Date}

	var steps []step
	for _, feat := range p.builder.Features() {
		steps = append(steps, step{feat.Name, func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
			return feat.Apply(f, cols.Date, feat.Name)
		}})
	}
	for _, feat := range p.engine.Features(p.builder.Table(calendar.Ramadan)) {
		steps = append(steps, step{feat.Name, feat.Apply})
	}
	return append(steps,
		step{join.ColFXRate, func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
			return join.AddFXRate(f, in.FX, jo, join.ColFXRate)
		}},
		step{join.ColInflationIndex, func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
			return join.AddInflationIndex(f, in.Inflation, jo, join.ColInflationIndex)
		}},
		step{join.ColStockQty, func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
			return join.AddStockQty(f, in.Stock, jo, join.ColStockQty)
		}},
		step{join.ColStockCoverDays, func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
			return join.AddStockCoverDays(f, join.ColStockQty, timeseries.ColRollingAvg7, join.ColStockCoverDays)
		}},
		step{join.ColSafetyStock, func(_ context.Context, f *frame.Frame) (*frame.Frame, error) {
			return join.AddSafetyStockThreshold(f, timeseries.ColRollingAvg15, p.opts.SafetyFactor, join.ColSafetyStock)
		}},
	)
}

// Run computes every feature not in Options.Skip. Missing input columns and
// a cancelled context abort the run; any other feature error is collected
// and the run continues without that column. Features depending on a
// failed one fail in turn.
func (p *Pipeline) Run(ctx context.Context, f *frame.Frame, in Inputs) (*frame.Frame, error) {
	cols := p.opts.Columns
	if err := f.Require(cols.Store, cols.Item, cols.Date, cols.Value); err != nil {
		return nil, err
	}

	start := time.Now()
	var errs []error
	for _, s := range p.steps(in) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if slices.Contains(p.opts.Skip, s.name) {
			p.log.Debug("skipping feature", "feature", s.name)
			continue
		}

		t := time.Now()
		out, err := s.apply(ctx, f)
		p.opts.Metrics.observe(s.name, time.Since(t), err)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			p.log.Warn("feature failed", "feature", s.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		f = out
	}

	p.log.Info("pipeline finished",
		"rows", f.Len(),
		"columns", f.Width(),
		"failed", len(errs),
		"elapsed", time.Since(start),
	)
	return f, errors.Join(errs...)
}
