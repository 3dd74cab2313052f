package sim

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"

	"github.com/san-kum/bmcsim/internal/bloch"
	"github.com/san-kum/bmcsim/internal/seq"
)

// timeEps merges grid points closer than this (s).
const timeEps = 1e-12

type interval struct {
	sample bloch.Sample
	dt     float64
}

// validateBlock rejects blocks the integrator cannot walk.
func validateBlock(b seq.Block) error {
	if b.Duration < 0 || !finite(b.Duration) {
		return fmt.Errorf("%w: duration %g", ErrMalformedBlock, b.Duration)
	}
	if rf := b.RF; rf != nil && len(rf.Amplitude) > 0 {
		if rf.Raster <= 0 || !finite(rf.Raster) {
			return fmt.Errorf("%w: rf raster %g", ErrMalformedBlock, rf.Raster)
		}
		if len(rf.Phase) != 0 && len(rf.Phase) != len(rf.Amplitude) {
			return fmt.Errorf("%w: %d amplitude vs %d phase samples", ErrMalformedBlock, len(rf.Amplitude), len(rf.Phase))
		}
		if rf.Duration() > b.Duration+timeEps {
			return fmt.Errorf("%w: rf of %gs exceeds block of %gs", ErrMalformedBlock, rf.Duration(), b.Duration)
		}
		for i, a := range rf.Amplitude {
			if !finite(a) || math.Abs(a) > MaxRFAmplitude {
				return fmt.Errorf("%w: rf sample %d amplitude %g", ErrMalformedBlock, i, a)
			}
		}
		for i, p := range rf.Phase {
			if !finite(p) {
				return fmt.Errorf("%w: rf sample %d phase %g", ErrMalformedBlock, i, p)
			}
		}
		if !finite(rf.FreqOffset) || !finite(rf.PhaseOffset) {
			return fmt.Errorf("%w: rf offsets %g Hz %g rad", ErrMalformedBlock, rf.FreqOffset, rf.PhaseOffset)
		}
	}
	if g := b.Gradient; g != nil && len(g.Samples) > 0 {
		if g.Raster <= 0 || !finite(g.Raster) {
			return fmt.Errorf("%w: gradient raster %g", ErrMalformedBlock, g.Raster)
		}
		if g.Duration() > b.Duration+timeEps {
			return fmt.Errorf("%w: gradient of %gs exceeds block of %gs", ErrMalformedBlock, g.Duration(), b.Duration)
		}
		for i, v := range g.Samples {
			if !finite(v) {
				return fmt.Errorf("%w: gradient sample %d is %g", ErrMalformedBlock, i, v)
			}
		}
	}
	return nil
}

// waveform is an RF waveform after optional decimation.
type waveform struct {
	amp, phase []float64
	raster     float64
}

// decimate reduces rf to at most limit samples by averaging the complex B1
// over equal bins, which keeps the integrated rotation vector.
func decimate(rf *seq.RF, limit int) waveform {
	n := len(rf.Amplitude)
	phase := rf.Phase
	if len(phase) == 0 {
		phase = make([]float64, n)
	}
	if limit <= 0 || n <= limit {
		return waveform{amp: rf.Amplitude, phase: phase, raster: rf.Raster}
	}
	w := waveform{
		amp:    make([]float64, limit),
		phase:  make([]float64, limit),
		raster: rf.Raster * float64(n) / float64(limit),
	}
	for k := 0; k < limit; k++ {
		lo := k * n / limit
		hi := (k + 1) * n / limit
		var sum complex128
		for i := lo; i < hi; i++ {
			sum += cmplx.Rect(rf.Amplitude[i], phase[i])
		}
		sum /= complex(float64(hi-lo), 0)
		w.amp[k] = cmplx.Abs(sum)
		w.phase[k] = cmplx.Phase(sum)
	}
	return w
}

// expand splits a block into piecewise constant intervals on the union of
// the RF and gradient grids plus the free tail. accPhase is subtracted from
// every RF phase. Adjacent intervals with equal samples are merged.
func (s *Simulator) expand(dst []interval, b seq.Block, accPhase float64) []interval {
	var w waveform
	var freq, phaseOffset float64
	if b.HasRF() {
		w = decimate(b.RF, s.cfg.MaxPulseSamples)
		freq, phaseOffset = b.RF.FreqOffset, b.RF.PhaseOffset
	}
	var grad []float64
	var gradRaster float64
	if b.Gradient != nil && len(b.Gradient.Samples) > 0 {
		grad, gradRaster = b.Gradient.Samples, b.Gradient.Raster
	}

	grid := make([]float64, 0, len(w.amp)+len(grad)+2)
	grid = append(grid, 0, b.Duration)
	for i := 1; i <= len(w.amp); i++ {
		grid = append(grid, math.Min(float64(i)*w.raster, b.Duration))
	}
	for i := 1; i <= len(grad); i++ {
		grid = append(grid, math.Min(float64(i)*gradRaster, b.Duration))
	}
	slices.Sort(grid)

	t0 := grid[0]
	for _, t1 := range grid[1:] {
		if t1-t0 <= timeEps {
			continue
		}
		mid := 0.5 * (t0 + t1)
		var sm bloch.Sample
		if grad != nil {
			if k := int(mid / gradRaster); k < len(grad) {
				sm.Gradient = grad[k]
			}
		}
		if w.amp != nil {
			if k := int(mid / w.raster); k < len(w.amp) && math.Abs(w.amp[k]) > s.cfg.RFThreshold {
				sm.Amplitude = w.amp[k]
				sm.Phase = w.phase[k] + phaseOffset
				if s.cfg.TrackPhase {
					sm.Phase -= accPhase
				}
				sm.FreqOffset = freq
			}
		}
		dt := t1 - t0
		if n := len(dst); n > 0 && dst[n-1].sample == sm {
			dst[n-1].dt += dt
		} else {
			dst = append(dst, interval{sample: sm, dt: dt})
		}
		t0 = t1
	}
	return dst
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
