// Package analysis turns simulated readouts into Z-spectra.
//
//   - [NewZSpectrum]: pairs offsets with water Mz and normalizes by the M0 scan
//   - [FromResult]: the same, straight from a simulation result
//   - [ZSpectrum.MTRAsym]: magnetization transfer ratio asymmetry
//
// Readouts at |offset| >= [M0Threshold] ppm are treated as M0 scans. Their
// mean is the normalization, and they are dropped from the spectrum:
//
//	z, err := analysis.FromResult(res, sequence.Definitions().OffsetsPPM)
//	apt, err := z.MTRAsymAt(3.5)
package analysis
