// Package env provides simulated environments implementing
// [dynamo.Environment]:
//
//   - [InvertedPendulum]: keep a pole upright on a cart; early termination
//   - [Swing]: swing a damped pendulum up; fixed-length episodes
//   - [Rescale]: decorator mapping [0, 1) actions into simulator units
//
// Environments are looked up by name through a [Registry]:
//
//	reg := env.NewRegistry()
//	e, err := reg.Make("inverted_pendulum", env.Options{})
//
// Registered environments come wrapped in a [Rescale] so that actions
// sampled in [0, 1) cover the full force (or torque) range.
package env
