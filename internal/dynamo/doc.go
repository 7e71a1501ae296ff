// Package dynamo provides the core primitives shared by the simulation,
// evaluation and dataset packages.
//
// The package defines:
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//   - [Environment]: reset/step simulator scored by the evaluator
//   - [Metric]: per-step observer aggregated over a batch
//
// # Thread Safety
//
// Environment instances are NOT thread-safe. Parallel evaluation must build
// one environment per worker.
package dynamo
