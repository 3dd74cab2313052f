// Package sim walks a pulse sequence through the Bloch-McConnell solver.
//
//   - [Simulator]: owns one parameter set and one solver, runs sequences
//   - [Config]: integrator options (readout reset, decimation, phase tracking)
//   - [Result]: recorded readouts and run statistics
//   - [Ensemble]: independent simulations on a bounded worker group
//
// # Example
//
//	p := pools.New(pools.WaterPool{R1: 1 / 1.31, R2: 1 / 71e-3, F: 1}, pools.DefaultScanner())
//	s, _ := sim.New(p, sim.DefaultConfig())
//	protocol, _ := seq.DefaultProtocol().Build()
//	res, _ := s.Run(protocol)
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe. For parallel simulations,
// use [Ensemble], which builds one Simulator per job.
package sim
