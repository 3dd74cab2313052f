package viz

import (
	"errors"
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/bmcsim/internal/analysis"
)

var ErrNothingToPlot = errors.New("viz: nothing to plot")

// Resample evaluates z at n evenly spaced offsets from its highest offset
// down to its lowest.
func Resample(z *analysis.ZSpectrum, n int) ([]float64, error) {
	if z == nil || z.Len() == 0 || n < 2 {
		return nil, ErrNothingToPlot
	}
	hi, lo := z.Offsets[z.Len()-1], z.Offsets[0]
	out := make([]float64, n)
	for i := range out {
		ppm := hi - (hi-lo)*float64(i)/float64(n-1)
		v, err := z.At(ppm)
		if err != nil {
			// rounding at the range ends
			v = z.Z[0]
			if i == 0 {
				v = z.Z[z.Len()-1]
			}
		}
		out[i] = v
	}
	return out, nil
}

func ZSpectrumPlot(z *analysis.ZSpectrum, width, height int) (string, error) {
	data, err := Resample(z, width)
	if err != nil {
		return "", err
	}
	caption := fmt.Sprintf("Z  %+.1f .. %+.1f ppm", z.Offsets[z.Len()-1], z.Offsets[0])
	return plot(data, height, caption, asciigraph.LowerBound(0), asciigraph.UpperBound(1)), nil
}

func MTRAsymPlot(z *analysis.ZSpectrum, width, height int) (string, error) {
	if z == nil {
		return "", ErrNothingToPlot
	}
	offsets, asym := z.MTRAsym()
	if len(asym) < 2 {
		return "", ErrNothingToPlot
	}
	a, err := analysis.NewZSpectrum(offsets, asym)
	if err != nil {
		return "", err
	}
	data, err := Resample(a, width)
	if err != nil {
		return "", err
	}
	// Resample runs high to low; MTRasym reads left to right from 0 ppm.
	for i, j := 0, len(data)-1; i < j; i, j = i+1, j-1 {
		data[i], data[j] = data[j], data[i]
	}
	caption := fmt.Sprintf("MTRasym  0 .. %.1f ppm", offsets[len(offsets)-1])
	return plot(data, height, caption), nil
}

// SeriesPlot plots values as recorded, one point per readout.
func SeriesPlot(values []float64, width, height int, caption string) (string, error) {
	if len(values) == 0 {
		return "", ErrNothingToPlot
	}
	return plot(values, height, caption, asciigraph.Width(width)), nil
}

func plot(data []float64, height int, caption string, opts ...asciigraph.Option) string {
	opts = append([]asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Precision(3),
		asciigraph.Caption(caption),
	}, opts...)
	if Current.Name != ThemeMono.Name {
		opts = append(opts, asciigraph.SeriesColors(asciigraph.Cyan))
	}
	return asciigraph.Plot(data, opts...)
}
