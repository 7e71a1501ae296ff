package env

import (
	"math"

	"github.com/san-kum/trajset/internal/dynamo"
	"github.com/san-kum/trajset/internal/integrators"
	"github.com/san-kum/trajset/internal/physics"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DefaultPendulumMaxSteps   = 1000
	DefaultPendulumForceLimit = 3.0
	DefaultPendulumAngleLimit = 0.2
)

// InvertedPendulum is the cart-pole balancing task. The agent earns a reward
// of 1 for every step the pole stays within AngleLimit of upright; the episode
// terminates once it leaves that band and is truncated after MaxSteps.
type InvertedPendulum struct {
	System     *physics.CartPole
	Integrator dynamo.Integrator

	Dt         float64
	FrameSkip  int
	MaxSteps   int
	ForceLimit float64
	AngleLimit float64
	ResetNoise float64

	state dynamo.State
	t     float64
	steps int
}

func NewInvertedPendulum() *InvertedPendulum {
	return &InvertedPendulum{
		System:     physics.NewCartPole(),
		Integrator: integrators.NewRK4(),
		Dt:         0.02,
		FrameSkip:  2,
		MaxSteps:   DefaultPendulumMaxSteps,
		ForceLimit: DefaultPendulumForceLimit,
		AngleLimit: DefaultPendulumAngleLimit,
		ResetNoise: 0.01,
	}
}

func (p *InvertedPendulum) Reset(seed int64) (dynamo.State, dynamo.Info, error) {
	noise := distuv.Uniform{
		Min: -p.ResetNoise,
		Max: p.ResetNoise,
		Src: rand.NewSource(uint64(seed)),
	}

	p.state = make(dynamo.State, p.System.StateDim())
	for i := range p.state {
		p.state[i] = noise.Rand()
	}
	p.t = 0
	p.steps = 0

	return p.state.Clone(), dynamo.Info{"seed": float64(seed)}, nil
}

func (p *InvertedPendulum) Step(action float64) (dynamo.StepResult, error) {
	if p.state == nil {
		return dynamo.StepResult{}, dynamo.ErrNotReset
	}

	u := dynamo.Control{clamp(action, -p.ForceLimit, p.ForceLimit)}
	for i := 0; i < p.FrameSkip; i++ {
		p.state = p.Integrator.Step(p.System, p.state, u, p.t, p.Dt)
		p.t += p.Dt
	}
	p.steps++

	terminated := !p.state.IsValid() || math.Abs(p.state[2]) > p.AngleLimit
	truncated := !terminated && p.MaxSteps > 0 && p.steps >= p.MaxSteps

	return dynamo.StepResult{
		Observation: p.state.Clone(),
		Reward:      1.0,
		Terminated:  terminated,
		Truncated:   truncated,
		Info:        dynamo.Info{"time": p.t, "force": u[0]},
	}, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
