package metrics

import "github.com/san-kum/trajset/internal/dynamo"

// Survival is the mean fraction of the declared horizon actually simulated
// before the environment ended the episode.
type Survival struct {
	name         string
	fraction     float64
	trajectories int
}

func NewSurvival() *Survival {
	return &Survival{
		name: "survival",
	}
}

func (s *Survival) Name() string {
	return s.name
}

func (s *Survival) Observe(action float64, r dynamo.StepResult) {}

func (s *Survival) EndTrajectory(steps, horizon int) {
	if horizon > 0 {
		s.fraction += float64(steps) / float64(horizon)
	}
	s.trajectories++
}

func (s *Survival) Value() float64 {
	if s.trajectories == 0 {
		return 1.0
	}
	return s.fraction / float64(s.trajectories)
}

func (s *Survival) Reset() {
	s.fraction = 0
	s.trajectories = 0
}

// Terminations counts trajectories cut short by a termination or truncation
// signal.
type Terminations struct {
	name  string
	count int
}

func NewTerminations() *Terminations {
	return &Terminations{
		name: "early_stops",
	}
}

func (t *Terminations) Name() string {
	return t.name
}

func (t *Terminations) Observe(action float64, r dynamo.StepResult) {}

func (t *Terminations) EndTrajectory(steps, horizon int) {
	if steps < horizon {
		t.count++
	}
}

func (t *Terminations) Value() float64 {
	return float64(t.count)
}

func (t *Terminations) Reset() {
	t.count = 0
}

// Default returns the metrics reported alongside every batch evaluation.
func Default() []dynamo.Metric {
	return []dynamo.Metric{
		NewControlEffort(),
		NewSurvival(),
		NewTerminations(),
	}
}
