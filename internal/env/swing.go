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
	DefaultSwingMaxSteps    = 200
	DefaultSwingTorqueLimit = 2.0
)

// Swing is the pendulum swing-up task. The pendulum starts near the bottom and
// each step pays -cos(theta): 1 when inverted, -1 when hanging. It never
// terminates on its own and is truncated after MaxSteps.
type Swing struct {
	System     *physics.Pendulum
	Integrator dynamo.Integrator

	Dt          float64
	MaxSteps    int
	TorqueLimit float64
	ResetNoise  float64

	state dynamo.State
	t     float64
	steps int
}

func NewSwing() *Swing {
	return &Swing{
		System:      physics.NewPendulum(),
		Integrator:  integrators.NewRK4(),
		Dt:          0.05,
		MaxSteps:    DefaultSwingMaxSteps,
		TorqueLimit: DefaultSwingTorqueLimit,
		ResetNoise:  0.05,
	}
}

func (s *Swing) Reset(seed int64) (dynamo.State, dynamo.Info, error) {
	noise := distuv.Uniform{
		Min: -s.ResetNoise,
		Max: s.ResetNoise,
		Src: rand.NewSource(uint64(seed)),
	}

	s.state = dynamo.State{noise.Rand(), 0}
	s.t = 0
	s.steps = 0

	return s.state.Clone(), dynamo.Info{
		"seed":   float64(seed),
		"energy": s.System.Energy(s.state),
	}, nil
}

func (s *Swing) Step(action float64) (dynamo.StepResult, error) {
	if s.state == nil {
		return dynamo.StepResult{}, dynamo.ErrNotReset
	}

	u := dynamo.Control{clamp(action, -s.TorqueLimit, s.TorqueLimit)}
	s.state = s.Integrator.Step(s.System, s.state, u, s.t, s.Dt)
	s.t += s.Dt
	s.steps++

	if !s.state.IsValid() {
		return dynamo.StepResult{Observation: s.state.Clone(), Terminated: true}, nil
	}

	return dynamo.StepResult{
		Observation: s.state.Clone(),
		Reward:      -math.Cos(s.state[0]),
		Truncated:   s.MaxSteps > 0 && s.steps >= s.MaxSteps,
		Info: dynamo.Info{
			"time":   s.t,
			"energy": s.System.Energy(s.state),
		},
	}, nil
}
