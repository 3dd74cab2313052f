package viz

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/bmcsim/internal/analysis"
)

func spectrum(t *testing.T) *analysis.ZSpectrum {
	t.Helper()
	var offsets, mz []float64
	for ppm := -5.0; ppm <= 5; ppm += 0.5 {
		offsets = append(offsets, ppm)
		v := 1 - 0.9/(1+ppm*ppm)
		if math.Abs(ppm-3.5) < 1e-9 {
			v -= 0.05
		}
		mz = append(mz, v)
	}
	z, err := analysis.NewZSpectrum(offsets, mz)
	if err != nil {
		t.Fatal(err)
	}
	return z
}

func TestResampleRunsHighToLow(t *testing.T) {
	z := spectrum(t)
	data, err := Resample(z, 11)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 11 {
		t.Fatalf("expected 11 points, got %d", len(data))
	}
	if data[0] != z.Z[z.Len()-1] || data[10] != z.Z[0] {
		t.Errorf("ends not preserved: %g %g", data[0], data[10])
	}
	if data[5] != z.Z[10] {
		t.Errorf("center %g, expected %g", data[5], z.Z[10])
	}

	if _, err := Resample(z, 1); !errors.Is(err, ErrNothingToPlot) {
		t.Errorf("expected ErrNothingToPlot, got %v", err)
	}
}

func TestPlots(t *testing.T) {
	if err := UseTheme("mono"); err != nil {
		t.Fatal(err)
	}
	defer func() { Current = ThemeDefault }()

	z := spectrum(t)
	out, err := ZSpectrumPlot(z, 40, 8)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "+5.0 .. -5.0 ppm") {
		t.Errorf("caption missing:\n%s", out)
	}

	out, err = MTRAsymPlot(z, 40, 6)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "MTRasym") {
		t.Errorf("caption missing:\n%s", out)
	}

	if _, err := SeriesPlot(nil, 10, 5, "x"); !errors.Is(err, ErrNothingToPlot) {
		t.Errorf("expected ErrNothingToPlot, got %v", err)
	}
}

func TestThemes(t *testing.T) {
	if err := UseTheme("neon"); err == nil {
		t.Error("expected error for unknown theme")
	}
	defer func() { Current = ThemeDefault }()
	if err := UseTheme("mono"); err != nil {
		t.Fatal(err)
	}
	out := Summary("run", [][2]string{{"solver", "fixed"}, {"readouts", "58"}})
	if !strings.Contains(out, "solver") || !strings.Contains(out, "58") {
		t.Errorf("summary incomplete:\n%s", out)
	}
}

func TestSparkline(t *testing.T) {
	Current = ThemeMono
	defer func() { Current = ThemeDefault }()
	if got := Sparkline([]float64{0, 1}, 2); got != "▁█" {
		t.Errorf("got %q", got)
	}
	if got := Sparkline(nil, 3); got != "───" {
		t.Errorf("got %q", got)
	}
}
