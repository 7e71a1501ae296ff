package dynamo

import "math"

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

// System is a continuous-time ODE dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Info carries auxiliary diagnostics returned by an environment.
type Info map[string]float64

// StepResult is the outcome of advancing an environment by one tick.
type StepResult struct {
	Observation State
	Reward      float64
	Terminated  bool
	Truncated   bool
	Info        Info
}

// Done reports whether the episode ended on this step.
func (r StepResult) Done() bool {
	return r.Terminated || r.Truncated
}

// Environment is a stateful simulator with reset/step semantics.
//
// Implementations are not safe for concurrent use. Reset must put the
// environment in a state that depends only on seed.
type Environment interface {
	Reset(seed int64) (State, Info, error)
	Step(action float64) (StepResult, error)
}

// Metric accumulates a statistic over every step of a batch evaluation.
type Metric interface {
	Name() string
	Observe(action float64, r StepResult)
	EndTrajectory(steps, horizon int)
	Value() float64
	Reset()
}
