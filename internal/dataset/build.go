package dataset

import (
	"context"
	"fmt"
	"io"

	"github.com/san-kum/trajset/internal/dynamo"
	"github.com/san-kum/trajset/internal/env"
	"github.com/san-kum/trajset/internal/eval"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

type Options struct {
	Horizon int
	Seed    int64
	Samples int
	// UpperBound, when set, drops every sample scoring above it.
	UpperBound *float64

	// Report receives the post-filter summary line.
	Report   io.Writer
	Progress func(done, total int)
	// Metrics observe the sequential evaluation. BuildParallel ignores them.
	Metrics []dynamo.Metric
}

func (o Options) validate() error {
	if o.Horizon < 1 {
		return dynamo.ErrInvalidHorizon
	}
	if o.Samples < 1 {
		return dynamo.ErrInvalidSampleCount
	}
	return nil
}

// Build samples opts.Samples random trajectories from a source seeded with
// opts.Seed, scores them against e and returns the (optionally filtered)
// dataset. The same options against a deterministic environment always yield
// the same dataset.
func Build(e dynamo.Environment, opts Options) (*Dataset, error) {
	return BuildFrom(e, rand.NewSource(uint64(opts.Seed)), opts)
}

// BuildFrom is Build with a caller-owned random source; opts.Seed is ignored.
func BuildFrom(e dynamo.Environment, src rand.Source, opts Options) (*Dataset, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	batch, err := Sample(src, opts.Samples, opts.Horizon)
	if err != nil {
		return nil, err
	}

	ev := eval.New(e, eval.WithProgress(opts.Progress), eval.WithMetrics(opts.Metrics...))
	scores, err := ev.Trajectories(batch)
	if err != nil {
		return nil, err
	}

	return assemble(batch, scores, opts), nil
}

// BuildParallel is Build with evaluation spread over workers, each holding an
// environment from factory.
func BuildParallel(ctx context.Context, factory env.Factory, workers int, opts Options) (*Dataset, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	batch, err := Sample(rand.NewSource(uint64(opts.Seed)), opts.Samples, opts.Horizon)
	if err != nil {
		return nil, err
	}

	scores, err := eval.Parallel{
		Factory:  factory,
		Workers:  workers,
		Progress: opts.Progress,
	}.Trajectories(ctx, batch)
	if err != nil {
		return nil, err
	}

	return assemble(batch, scores, opts), nil
}

// assemble takes ownership of batch and scores.
func assemble(batch *mat.Dense, scores []float64, opts Options) *Dataset {
	ds := &Dataset{x: batch, y: scores, horizon: opts.Horizon}
	if opts.UpperBound != nil {
		ds = ds.Filter(*opts.UpperBound)
	}
	if opts.Report != nil {
		ds.Fprint(opts.Report, opts.Samples)
	}
	return ds
}

// Fprint writes the dataset report line to w. requested is the number of
// trajectories sampled before filtering.
func (d *Dataset) Fprint(w io.Writer, requested int) {
	if d.Len() == 0 {
		fmt.Fprintf(w, "n=%d (kept 0)\n", requested)
		return
	}
	s := d.Summary()
	fmt.Fprintf(w, "n=%d (kept %d); avg = %.3f +/- %.3f; range  = %.3f, %.3f\n",
		requested, s.N, s.Mean, s.Std, s.Min, s.Max)
}
