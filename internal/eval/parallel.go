package eval

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/san-kum/trajset/internal/dynamo"
	"github.com/san-kum/trajset/internal/env"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

var ErrNoFactory = errors.New("eval: parallel evaluation needs an environment factory")

// Parallel scores a batch with several workers. Each worker builds its own
// environment from Factory, so no environment is ever stepped by two
// goroutines. For environments whose episodes depend only on the action
// sequence the scores equal those of the sequential [Evaluator].
type Parallel struct {
	Factory env.Factory
	// Workers defaults to runtime.NumCPU().
	Workers int
	// Progress, if set, is called after each trajectory. Calls are serialized.
	Progress func(done, total int)
}

func (p Parallel) Trajectories(ctx context.Context, batch *mat.Dense) ([]float64, error) {
	if batch == nil || batch.IsEmpty() {
		return nil, dynamo.ErrInvalidSampleCount
	}
	if p.Factory == nil {
		return nil, ErrNoFactory
	}

	rows, _ := batch.Dims()
	workers := p.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > rows {
		workers = rows
	}

	scores := make([]float64, rows)
	indices := make(chan int)

	var mu sync.Mutex
	done := 0

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(indices)
		for i := 0; i < rows; i++ {
			select {
			case indices <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			e, err := p.Factory()
			if err != nil {
				return err
			}
			for i := range indices {
				score, _, err := replay(e, batch.RawRowView(i), nil)
				if err != nil {
					return err
				}
				scores[i] = score

				if p.Progress != nil {
					mu.Lock()
					done++
					p.Progress(done, rows)
					mu.Unlock()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}
