package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/bmcsim/internal/sim"
)

// M0Threshold is the smallest |offset| in ppm recorded as an M0 scan.
const M0Threshold = 190.0

var (
	ErrNoReadouts     = errors.New("analysis: no readouts")
	ErrLengthMismatch = errors.New("analysis: offsets and readouts differ in length")
	ErrOutOfRange     = errors.New("analysis: offset outside the sampled range")
)

// ZSpectrum holds water Mz per saturation offset, sorted by offset.
type ZSpectrum struct {
	Offsets []float64
	Z       []float64
	// M0 is the mean of the M0 readouts, or 0 when none were recorded and
	// Z holds raw Mz.
	M0 float64
}

// NewZSpectrum splits off M0 readouts and normalizes the rest by their mean.
func NewZSpectrum(offsets, mz []float64) (*ZSpectrum, error) {
	if len(offsets) != len(mz) {
		return nil, fmt.Errorf("%w: %d offsets, %d readouts", ErrLengthMismatch, len(offsets), len(mz))
	}
	var m0 []float64
	z := &ZSpectrum{}
	for i, ppm := range offsets {
		if math.Abs(ppm) >= M0Threshold {
			m0 = append(m0, mz[i])
			continue
		}
		z.Offsets = append(z.Offsets, ppm)
		z.Z = append(z.Z, mz[i])
	}
	if len(z.Z) == 0 {
		return nil, ErrNoReadouts
	}
	if len(m0) > 0 {
		z.M0 = floats.Sum(m0) / float64(len(m0))
		if z.M0 == 0 {
			return nil, fmt.Errorf("analysis: M0 scan is zero")
		}
		floats.Scale(1/z.M0, z.Z)
	}
	sort.Sort(byOffset{z})
	return z, nil
}

// FromResult builds the spectrum from the water Mz of every readout.
func FromResult(res *sim.Result, offsets []float64) (*ZSpectrum, error) {
	if res == nil || res.Len() == 0 {
		return nil, ErrNoReadouts
	}
	return NewZSpectrum(offsets, res.WaterMz())
}

func (z *ZSpectrum) Len() int { return len(z.Z) }

// At interpolates Z linearly at ppm.
func (z *ZSpectrum) At(ppm float64) (float64, error) {
	n := len(z.Offsets)
	if n == 0 || ppm < z.Offsets[0] || ppm > z.Offsets[n-1] {
		return 0, fmt.Errorf("%w: %g ppm", ErrOutOfRange, ppm)
	}
	i := sort.SearchFloat64s(z.Offsets, ppm)
	if z.Offsets[i] == ppm {
		return z.Z[i], nil
	}
	x0, x1 := z.Offsets[i-1], z.Offsets[i]
	w := (ppm - x0) / (x1 - x0)
	return (1-w)*z.Z[i-1] + w*z.Z[i], nil
}

// MTRAsymAt returns Z(-ppm) - Z(+ppm).
func (z *ZSpectrum) MTRAsymAt(ppm float64) (float64, error) {
	neg, err := z.At(-ppm)
	if err != nil {
		return 0, err
	}
	pos, err := z.At(ppm)
	if err != nil {
		return 0, err
	}
	return neg - pos, nil
}

// MTRAsym evaluates the asymmetry at every non-negative sampled offset that
// has a mirror inside the sampled range.
func (z *ZSpectrum) MTRAsym() (offsets, asym []float64) {
	for _, ppm := range z.Offsets {
		if ppm < 0 {
			continue
		}
		v, err := z.MTRAsymAt(ppm)
		if err != nil {
			continue
		}
		offsets = append(offsets, ppm)
		asym = append(asym, v)
	}
	return offsets, asym
}

// Min returns the offset and value of the deepest point.
func (z *ZSpectrum) Min() (ppm, value float64) {
	i := floats.MinIdx(z.Z)
	return z.Offsets[i], z.Z[i]
}

// RMSE compares two spectra sampled at the same offsets.
func (z *ZSpectrum) RMSE(other *ZSpectrum) (float64, error) {
	if len(z.Z) != len(other.Z) {
		return 0, fmt.Errorf("%w: %d vs %d points", ErrLengthMismatch, len(z.Z), len(other.Z))
	}
	if !floats.EqualApprox(z.Offsets, other.Offsets, 1e-9) {
		return 0, fmt.Errorf("%w: offsets differ", ErrLengthMismatch)
	}
	d := floats.Distance(z.Z, other.Z, 2)
	return d / math.Sqrt(float64(len(z.Z))), nil
}

type byOffset struct{ z *ZSpectrum }

func (b byOffset) Len() int           { return len(b.z.Offsets) }
func (b byOffset) Less(i, j int) bool { return b.z.Offsets[i] < b.z.Offsets[j] }
func (b byOffset) Swap(i, j int) {
	b.z.Offsets[i], b.z.Offsets[j] = b.z.Offsets[j], b.z.Offsets[i]
	b.z.Z[i], b.z.Z[j] = b.z.Z[j], b.z.Z[i]
}
