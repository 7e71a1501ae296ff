package dynamo

import "errors"

// Contract violations reported by the evaluator, the dataset builder and the
// environment registry.
var (
	// ErrEmptyTrajectory indicates a trajectory with no actions.
	ErrEmptyTrajectory = errors.New("dynamo: trajectory must contain at least one action")

	// ErrInvalidHorizon indicates a time horizon below one step.
	ErrInvalidHorizon = errors.New("dynamo: time horizon must be at least 1")

	// ErrInvalidSampleCount indicates a request for fewer than one trajectory.
	ErrInvalidSampleCount = errors.New("dynamo: sample count must be at least 1")

	// ErrIndexOutOfRange indicates dataset access past its length.
	ErrIndexOutOfRange = errors.New("dynamo: index out of range")

	// ErrDimensionMismatch indicates trajectories and scores of different lengths.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between trajectories and scores")

	// ErrUnknownEnv indicates an environment name missing from the registry.
	ErrUnknownEnv = errors.New("dynamo: unknown environment")

	// ErrNotReset indicates a step on an environment that was never reset.
	ErrNotReset = errors.New("dynamo: step called before reset")

	// ErrInvalidState indicates a state vector with NaN or Inf entries.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")
)
