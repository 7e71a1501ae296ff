package eval

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/trajset/internal/dynamo"
	"github.com/san-kum/trajset/internal/env"
	"github.com/san-kum/trajset/internal/metrics"
	"gonum.org/v1/gonum/mat"
)

// scriptedEnv pays a fixed reward per step and optionally ends the episode
// after a number of steps.
type scriptedEnv struct {
	reward    float64
	stopAfter int
	truncate  bool
	failAt    int
	stepErr   error
	resetErr  error

	resets []int64
	steps  int
}

func (s *scriptedEnv) Reset(seed int64) (dynamo.State, dynamo.Info, error) {
	s.resets = append(s.resets, seed)
	s.steps = 0
	return dynamo.State{0}, nil, s.resetErr
}

func (s *scriptedEnv) Step(action float64) (dynamo.StepResult, error) {
	s.steps++
	if s.stepErr != nil && s.steps == s.failAt {
		return dynamo.StepResult{}, s.stepErr
	}
	res := dynamo.StepResult{Reward: s.reward}
	if s.stopAfter > 0 && s.steps >= s.stopAfter {
		if s.truncate {
			res.Truncated = true
		} else {
			res.Terminated = true
		}
	}
	return res, nil
}

// actionEnv rewards each step with the action times the step number, so the
// score depends only on the action sequence.
type actionEnv struct {
	t int
}

func (a *actionEnv) Reset(seed int64) (dynamo.State, dynamo.Info, error) {
	a.t = 0
	return nil, nil, nil
}

func (a *actionEnv) Step(action float64) (dynamo.StepResult, error) {
	a.t++
	return dynamo.StepResult{Reward: action * float64(a.t)}, nil
}

func constant(n int, v float64) []float64 {
	traj := make([]float64, n)
	for i := range traj {
		traj[i] = v
	}
	return traj
}

func TestTrajectoryScore(t *testing.T) {
	tests := []struct {
		name string
		env  *scriptedEnv
		len  int
		want float64
	}{
		{"constant reward", &scriptedEnv{reward: 0.7}, 10, 0.7},
		{"negative reward", &scriptedEnv{reward: -2}, 4, -2},
		{"terminated after 3", &scriptedEnv{reward: 1, stopAfter: 3}, 10, 0.3},
		{"truncated after 3", &scriptedEnv{reward: 1, stopAfter: 3, truncate: true}, 10, 0.3},
		{"stop on last step", &scriptedEnv{reward: 1, stopAfter: 5}, 5, 1},
		{"single step", &scriptedEnv{reward: 0.25}, 1, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Trajectory(tt.env, constant(tt.len, 0.5))
			if err != nil {
				t.Fatalf("evaluation failed: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrajectoryStopsStepping(t *testing.T) {
	e := &scriptedEnv{reward: 1, stopAfter: 3}
	if _, err := Trajectory(e, constant(10, 0)); err != nil {
		t.Fatalf("evaluation failed: %v", err)
	}
	if e.steps != 3 {
		t.Errorf("expected 3 steps, environment was stepped %d times", e.steps)
	}
}

func TestTrajectoryResetsWithFixedSeed(t *testing.T) {
	e := &scriptedEnv{reward: 1}
	for i := 0; i < 3; i++ {
		if _, err := Trajectory(e, constant(2, 0)); err != nil {
			t.Fatalf("evaluation failed: %v", err)
		}
	}
	if ResetSeed != 0 {
		t.Errorf("expected ResetSeed 0, got %d", ResetSeed)
	}
	if len(e.resets) != 3 {
		t.Fatalf("expected 3 resets, got %d", len(e.resets))
	}
	for _, seed := range e.resets {
		if seed != 0 {
			t.Errorf("expected reset seed 0, got %d", seed)
		}
	}
}

func TestTrajectoryEmpty(t *testing.T) {
	_, err := Trajectory(&scriptedEnv{}, nil)
	if !errors.Is(err, dynamo.ErrEmptyTrajectory) {
		t.Errorf("expected ErrEmptyTrajectory, got %v", err)
	}
}

func TestTrajectoryPropagatesErrors(t *testing.T) {
	boom := errors.New("simulator exploded")

	_, err := Trajectory(&scriptedEnv{stepErr: boom, failAt: 2}, constant(5, 0))
	if err != boom {
		t.Errorf("expected step error unmodified, got %v", err)
	}

	_, err = Trajectory(&scriptedEnv{resetErr: boom}, constant(5, 0))
	if err != boom {
		t.Errorf("expected reset error unmodified, got %v", err)
	}
}

func TestTrajectoriesIndexAligned(t *testing.T) {
	batch := mat.NewDense(3, 4, []float64{
		0.1, 0.2, 0.3, 0.4,
		0.9, 0.8, 0.7, 0.6,
		0.0, 0.5, 0.0, 0.5,
	})

	e := &actionEnv{}
	scores, err := New(e).Trajectories(batch)
	if err != nil {
		t.Fatalf("batch evaluation failed: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}

	for i := 0; i < 3; i++ {
		alone, err := Trajectory(&actionEnv{}, batch.RawRowView(i))
		if err != nil {
			t.Fatalf("single evaluation failed: %v", err)
		}
		if alone != scores[i] {
			t.Errorf("row %d: batch score %v, isolated score %v", i, scores[i], alone)
		}
	}

	if math.Abs(scores[0]-(0.1+0.4+0.9+1.6)/4) > 1e-12 {
		t.Errorf("unexpected score for row 0: %v", scores[0])
	}
}

func TestTrajectoriesSingleCell(t *testing.T) {
	scores, err := Trajectories(&scriptedEnv{reward: 0.42}, mat.NewDense(1, 1, []float64{0.3}), nil)
	if err != nil {
		t.Fatalf("batch evaluation failed: %v", err)
	}
	if len(scores) != 1 || scores[0] != 0.42 {
		t.Errorf("expected [0.42], got %v", scores)
	}
}

func TestTrajectoriesAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	e := &scriptedEnv{reward: 1, stepErr: boom, failAt: 2}

	scores, err := New(e).Trajectories(mat.NewDense(2, 3, nil))
	if err != boom {
		t.Errorf("expected error unmodified, got %v", err)
	}
	if scores != nil {
		t.Errorf("expected no scores on failure, got %v", scores)
	}
}

func TestTrajectoriesNilBatch(t *testing.T) {
	if _, err := New(&scriptedEnv{}).Trajectories(nil); !errors.Is(err, dynamo.ErrInvalidSampleCount) {
		t.Errorf("expected ErrInvalidSampleCount, got %v", err)
	}
}

func TestTrajectoriesReport(t *testing.T) {
	var buf bytes.Buffer
	_, err := Trajectories(&scriptedEnv{reward: 1}, mat.NewDense(2, 2, nil), &buf)
	if err != nil {
		t.Fatalf("batch evaluation failed: %v", err)
	}

	want := "Avg reward: 1.000 +/- 0.000; Range = 1.000, 1.000\n"
	if buf.String() != want {
		t.Errorf("report = %q, want %q", buf.String(), want)
	}
}

func TestTrajectoriesMetricsAndProgress(t *testing.T) {
	type call struct{ done, total int }
	var calls []call
	survival := metrics.NewSurvival()
	stops := metrics.NewTerminations()

	ev := New(&scriptedEnv{reward: 1, stopAfter: 2},
		WithMetrics(survival, stops),
		WithProgress(func(done, total int) {
			calls = append(calls, call{done, total})
		}),
	)

	if _, err := ev.Trajectories(mat.NewDense(3, 4, nil)); err != nil {
		t.Fatalf("batch evaluation failed: %v", err)
	}

	if len(calls) != 3 {
		t.Fatalf("expected 3 progress calls, got %v", calls)
	}
	for i, c := range calls {
		if c.done != i+1 || c.total != 3 {
			t.Errorf("progress call %d: got %+v", i, c)
		}
	}

	values := ev.Metrics()
	if values["survival"] != 0.5 {
		t.Errorf("expected survival 0.5, got %v", values["survival"])
	}
	if values["early_stops"] != 3 {
		t.Errorf("expected 3 early stops, got %v", values["early_stops"])
	}

	// metrics restart with every batch
	if _, err := ev.Trajectories(mat.NewDense(1, 4, nil)); err != nil {
		t.Fatalf("batch evaluation failed: %v", err)
	}
	if v := ev.Metrics()["early_stops"]; v != 1 {
		t.Errorf("expected metrics reset between batches, got %v", v)
	}
	if last := calls[len(calls)-1]; len(calls) != 4 || last.done != 1 || last.total != 1 {
		t.Errorf("unexpected progress for second batch: %v", calls)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{1, 2, 3, 4})
	if s.N != 4 || s.Mean != 2.5 || s.Min != 1 || s.Max != 4 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if math.Abs(s.Std-math.Sqrt(5.0/3.0)) > 1e-12 {
		t.Errorf("expected sample std %v, got %v", math.Sqrt(5.0/3.0), s.Std)
	}

	if empty := Summarize(nil); empty != (Summary{}) {
		t.Errorf("expected zero summary, got %+v", empty)
	}

	single := Summarize([]float64{0.3})
	if single.N != 1 || single.Std != 0 || single.Min != 0.3 || single.Max != 0.3 {
		t.Errorf("unexpected single summary: %+v", single)
	}

	if !strings.Contains(s.String(), "2.500 +/- 1.291") {
		t.Errorf("unexpected summary string %q", s.String())
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	reg := env.NewRegistry()
	factory, err := reg.Factory("inverted_pendulum", env.Options{})
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}

	batch := mat.NewDense(12, 25, nil)
	for i := 0; i < 12; i++ {
		for j := 0; j < 25; j++ {
			batch.Set(i, j, float64((i*7+j*3)%10)/10)
		}
	}

	e, _ := factory()
	sequential, err := New(e).Trajectories(batch)
	if err != nil {
		t.Fatalf("sequential evaluation failed: %v", err)
	}

	last := 0
	parallel, err := Parallel{
		Factory:  factory,
		Workers:  4,
		Progress: func(done, total int) { last = done },
	}.Trajectories(context.Background(), batch)
	if err != nil {
		t.Fatalf("parallel evaluation failed: %v", err)
	}

	for i := range sequential {
		if sequential[i] != parallel[i] {
			t.Errorf("row %d: sequential %v, parallel %v", i, sequential[i], parallel[i])
		}
	}
	if last != 12 {
		t.Errorf("expected progress to reach 12, got %d", last)
	}
}

func TestParallelErrors(t *testing.T) {
	boom := errors.New("boom")
	batch := mat.NewDense(8, 3, nil)

	_, err := Parallel{
		Factory: func() (dynamo.Environment, error) { return nil, boom },
		Workers: 2,
	}.Trajectories(context.Background(), batch)
	if err != boom {
		t.Errorf("expected factory error, got %v", err)
	}

	_, err = Parallel{
		Factory: func() (dynamo.Environment, error) {
			return &scriptedEnv{reward: 1, stepErr: boom, failAt: 1}, nil
		},
		Workers: 3,
	}.Trajectories(context.Background(), batch)
	if err != boom {
		t.Errorf("expected step error, got %v", err)
	}

	_, err = Parallel{Workers: 2}.Trajectories(context.Background(), batch)
	if !errors.Is(err, ErrNoFactory) {
		t.Errorf("expected ErrNoFactory, got %v", err)
	}

	_, err = Parallel{Workers: 1}.Trajectories(context.Background(), nil)
	if !errors.Is(err, dynamo.ErrInvalidSampleCount) {
		t.Errorf("expected ErrInvalidSampleCount, got %v", err)
	}
}
