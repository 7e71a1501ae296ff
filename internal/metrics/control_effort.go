package metrics

import (
	"math"

	"github.com/san-kum/trajset/internal/dynamo"
)

// ControlEffort is the mean absolute action fed to the environment.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(action float64, r dynamo.StepResult) {
	c.sum += math.Abs(action)
	c.samples++
}

func (c *ControlEffort) EndTrajectory(steps, horizon int) {}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
