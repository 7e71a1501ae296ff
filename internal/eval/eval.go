package eval

import (
	"io"

	"github.com/san-kum/trajset/internal/dynamo"
	"gonum.org/v1/gonum/mat"
)

// ResetSeed is the seed every trajectory evaluation resets the environment
// with. It does not follow the sampling seed: all trajectories of every batch
// are replayed from the same initial condition.
const ResetSeed int64 = 0

// Trajectory replays one trajectory and returns the sum of the rewards divided
// by the declared trajectory length. The loop stops early when the
// environment terminates or truncates the episode; the missing steps count as
// zero reward. Environment errors are returned as is.
func Trajectory(e dynamo.Environment, trajectory []float64) (float64, error) {
	score, _, err := replay(e, trajectory, nil)
	return score, err
}

func replay(e dynamo.Environment, trajectory []float64, metrics []dynamo.Metric) (float64, int, error) {
	if len(trajectory) == 0 {
		return 0, 0, dynamo.ErrEmptyTrajectory
	}

	if _, _, err := e.Reset(ResetSeed); err != nil {
		return 0, 0, err
	}

	total := 0.0
	t := 0
	for t < len(trajectory) {
		action := trajectory[t]
		res, err := e.Step(action)
		if err != nil {
			return 0, t, err
		}
		for _, m := range metrics {
			m.Observe(action, res)
		}
		total += res.Reward
		t++
		if res.Done() {
			break
		}
	}

	for _, m := range metrics {
		m.EndTrajectory(t, len(trajectory))
	}

	return total / float64(len(trajectory)), t, nil
}

// Evaluator scores batches of trajectories against a single environment.
//
// The environment is stepped in place and is not reentrant: an Evaluator must
// not be used from more than one goroutine. See [Parallel] for concurrent
// evaluation.
type Evaluator struct {
	env      dynamo.Environment
	metrics  []dynamo.Metric
	report   io.Writer
	progress func(done, total int)
}

type Option func(*Evaluator)

// WithMetrics attaches metrics observing every step of a batch. They are reset
// at the start of each call to Trajectories.
func WithMetrics(metrics ...dynamo.Metric) Option {
	return func(ev *Evaluator) { ev.metrics = append(ev.metrics, metrics...) }
}

// WithReport prints the score summary of each batch to w.
func WithReport(w io.Writer) Option {
	return func(ev *Evaluator) { ev.report = w }
}

// WithProgress calls fn after each trajectory.
func WithProgress(fn func(done, total int)) Option {
	return func(ev *Evaluator) { ev.progress = fn }
}

func New(e dynamo.Environment, opts ...Option) *Evaluator {
	ev := &Evaluator{env: e}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Trajectories scores every row of batch in order. The first error aborts the
// batch and no scores are returned.
func (ev *Evaluator) Trajectories(batch *mat.Dense) ([]float64, error) {
	if batch == nil || batch.IsEmpty() {
		return nil, dynamo.ErrInvalidSampleCount
	}

	for _, m := range ev.metrics {
		m.Reset()
	}

	rows, _ := batch.Dims()
	scores := make([]float64, rows)
	for i := 0; i < rows; i++ {
		score, _, err := replay(ev.env, batch.RawRowView(i), ev.metrics)
		if err != nil {
			return nil, err
		}
		scores[i] = score
		if ev.progress != nil {
			ev.progress(i+1, rows)
		}
	}

	if ev.report != nil {
		Summarize(scores).Fprint(ev.report)
	}

	return scores, nil
}

// Metrics returns the current value of every attached metric.
func (ev *Evaluator) Metrics() map[string]float64 {
	values := make(map[string]float64, len(ev.metrics))
	for _, m := range ev.metrics {
		values[m.Name()] = m.Value()
	}
	return values
}

// Trajectories scores batch sequentially against e. A non-nil report receives
// the score summary.
func Trajectories(e dynamo.Environment, batch *mat.Dense, report io.Writer) ([]float64, error) {
	return New(e, WithReport(report)).Trajectories(batch)
}
