package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/san-kum/trajset/internal/dataset"
	"github.com/san-kum/trajset/internal/env"
	"github.com/san-kum/trajset/internal/eval"
	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of dataset builds.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is a single dataset build in a scenario. Workers above 1 evaluate in
// parallel.
type Step struct {
	Env        string   `yaml:"env"`
	Integrator string   `yaml:"integrator"`
	MaxSteps   int      `yaml:"max_steps"`
	Horizon    int      `yaml:"horizon"`
	Seed       int64    `yaml:"seed"`
	Samples    int      `yaml:"samples"`
	UpperBound *float64 `yaml:"upper_bound"`
	Workers    int      `yaml:"workers"`
	SaveAs     string   `yaml:"save_as"`
}

type StepResult struct {
	Step    Step
	Dataset *dataset.Dataset
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}

	return &scenario, nil
}

// RunScenario builds every step in order. It stops at the first failing step
// and returns the results gathered so far. Progress lines go to report when it
// is not nil.
func RunScenario(ctx context.Context, scenario *Scenario, registry *env.Registry, report io.Writer) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if report != nil {
			fmt.Fprintf(report, "Running step %d/%d: %s\n", i+1, len(scenario.Steps), step.Env)
		}

		factory, err := registry.Factory(step.Env, env.Options{
			Integrator: step.Integrator,
			MaxSteps:   step.MaxSteps,
		})
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		opts := dataset.Options{
			Horizon:    step.Horizon,
			Seed:       step.Seed,
			Samples:    step.Samples,
			UpperBound: step.UpperBound,
			Report:     report,
		}

		var ds *dataset.Dataset
		if step.Workers > 1 {
			ds, err = dataset.BuildParallel(ctx, factory, step.Workers, opts)
		} else {
			e, ferr := factory()
			if ferr != nil {
				return results, fmt.Errorf("step %d: %w", i+1, ferr)
			}
			ds, err = dataset.Build(e, opts)
		}
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		results = append(results, StepResult{Step: step, Dataset: ds})
	}

	return results, nil
}

// BoundSweep spans NumSteps evenly spaced upper bounds over [Min, Max].
type BoundSweep struct {
	Min      float64
	Max      float64
	NumSteps int
}

// SweepResult is what survives filtering at one bound.
type SweepResult struct {
	Bound   float64
	Kept    int
	Summary eval.Summary
}

// RunSweep filters ds at every bound of the sweep without re-evaluating
// anything.
func RunSweep(ds *dataset.Dataset, sweep BoundSweep) ([]SweepResult, error) {
	if sweep.NumSteps < 2 {
		return nil, errors.New("sweep needs at least 2 steps")
	}
	if sweep.Max < sweep.Min {
		return nil, fmt.Errorf("sweep range [%g, %g] is empty", sweep.Min, sweep.Max)
	}

	bounds := floats.Span(make([]float64, sweep.NumSteps), sweep.Min, sweep.Max)
	results := make([]SweepResult, 0, len(bounds))
	for _, b := range bounds {
		kept := ds.Filter(b)
		results = append(results, SweepResult{
			Bound:   b,
			Kept:    kept.Len(),
			Summary: kept.Summary(),
		})
	}

	return results, nil
}
