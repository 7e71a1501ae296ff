package env

import "github.com/san-kum/trajset/internal/dynamo"

// Rescale decorates an environment, mapping every action a to
// a*Scale + Offset before it reaches the wrapped environment. Sampled actions
// live in [0, 1); Rescale moves them into the units the simulator expects.
type Rescale struct {
	Env    dynamo.Environment
	Scale  float64
	Offset float64
}

func NewRescale(e dynamo.Environment, scale, offset float64) *Rescale {
	return &Rescale{Env: e, Scale: scale, Offset: offset}
}

// NewRange maps [0, 1) onto [low, high).
func NewRange(e dynamo.Environment, low, high float64) *Rescale {
	return NewRescale(e, high-low, low)
}

func (r *Rescale) Reset(seed int64) (dynamo.State, dynamo.Info, error) {
	return r.Env.Reset(seed)
}

func (r *Rescale) Step(action float64) (dynamo.StepResult, error) {
	return r.Env.Step(action*r.Scale + r.Offset)
}
