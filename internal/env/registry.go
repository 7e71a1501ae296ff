package env

import (
	"fmt"
	"sort"

	"github.com/san-kum/trajset/internal/dynamo"
	"github.com/san-kum/trajset/internal/integrators"
)

// Options tune a registered environment. Zero values keep the defaults.
type Options struct {
	Integrator string
	MaxSteps   int
	// ActionLow and ActionHigh override the range [0, 1) actions are mapped
	// onto. Both zero keeps the environment's default range.
	ActionLow  float64
	ActionHigh float64
}

// Factory builds a fresh, independent environment.
type Factory func() (dynamo.Environment, error)

type builder func(Options) (dynamo.Environment, error)

type Registry struct {
	envs map[string]builder
}

func NewRegistry() *Registry {
	r := &Registry{envs: make(map[string]builder)}

	r.envs["inverted_pendulum"] = func(opts Options) (dynamo.Environment, error) {
		p := NewInvertedPendulum()
		if err := applyCommon(opts, &p.Integrator, &p.MaxSteps); err != nil {
			return nil, err
		}
		return wrapRange(p, opts, -p.ForceLimit, p.ForceLimit), nil
	}
	r.envs["swing"] = func(opts Options) (dynamo.Environment, error) {
		s := NewSwing()
		if err := applyCommon(opts, &s.Integrator, &s.MaxSteps); err != nil {
			return nil, err
		}
		return wrapRange(s, opts, -s.TorqueLimit, s.TorqueLimit), nil
	}

	return r
}

func applyCommon(opts Options, integ *dynamo.Integrator, maxSteps *int) error {
	if opts.Integrator != "" {
		i, err := integrators.New(opts.Integrator)
		if err != nil {
			return err
		}
		*integ = i
	}
	if opts.MaxSteps > 0 {
		*maxSteps = opts.MaxSteps
	}
	return nil
}

func wrapRange(e dynamo.Environment, opts Options, low, high float64) *Rescale {
	if opts.ActionLow != 0 || opts.ActionHigh != 0 {
		low, high = opts.ActionLow, opts.ActionHigh
	}
	return NewRange(e, low, high)
}

func (r *Registry) Make(name string, opts Options) (dynamo.Environment, error) {
	fn, ok := r.envs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownEnv, name)
	}
	return fn(opts)
}

// Factory returns a constructor for name. Each call yields an environment
// that shares no state with the others.
func (r *Registry) Factory(name string, opts Options) (Factory, error) {
	fn, ok := r.envs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", dynamo.ErrUnknownEnv, name)
	}
	return func() (dynamo.Environment, error) { return fn(opts) }, nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.envs))
	for name := range r.envs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
