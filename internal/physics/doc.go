// Package physics provides the dynamical systems behind the simulated
// environments.
//
//   - [CartPole]: inverted pole balanced on a cart (4 states, force input)
//   - [Pendulum]: damped pendulum driven by a torque (2 states)
//
// Both implement [dynamo.System] and are stepped by an [dynamo.Integrator].
package physics
