package export

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/san-kum/bmcsim/internal/analysis"
)

var ErrTooFewPoints = errors.New("export: need at least two points")

// Point is one vertex of a plotted line.
type Point struct{ X, Y float64 }

// Axis fixes a plot range; a zero Axis is fitted to the data with 10% padding.
type Axis struct {
	Min, Max float64
	// Reverse draws Max on the left.
	Reverse bool
	Label   string
}

// LineSVG draws points as a path with a frame and axis labels.
func LineSVG(w io.Writer, points []Point, width, height int, x, y Axis, strokeColor string) error {
	if len(points) < 2 {
		return ErrTooFewPoints
	}
	x = fit(x, points, func(p Point) float64 { return p.X })
	y = fit(y, points, func(p Point) float64 { return p.Y })

	const margin = 40.0
	pw := float64(width) - 2*margin
	ph := float64(height) - 2*margin
	px := func(v float64) float64 {
		f := (v - x.Min) / (x.Max - x.Min)
		if x.Reverse {
			f = 1 - f
		}
		return margin + f*pw
	}
	py := func(v float64) float64 {
		return margin + ph - (v-y.Min)/(y.Max-y.Min)*ph
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="none" stroke="#444466"/>
`, width, height, width, height, margin, margin, pw, ph)

	sb.WriteString(`<path fill="none" stroke="` + strokeColor + `" stroke-width="1.5" d="M`)
	for i, p := range points {
		if i > 0 {
			sb.WriteString(" L")
		}
		fmt.Fprintf(&sb, "%.1f,%.1f", px(p.X), py(p.Y))
	}
	sb.WriteString("\"/>\n")

	text := `<text x="%.1f" y="%.1f" fill="#888899" font-family="monospace" font-size="11" text-anchor="%s">%s</text>` + "\n"
	left, right := x.Min, x.Max
	if x.Reverse {
		left, right = right, left
	}
	fmt.Fprintf(&sb, text, margin, margin+ph+15, "start", fmt.Sprintf("%.3g", left))
	fmt.Fprintf(&sb, text, margin+pw, margin+ph+15, "end", fmt.Sprintf("%.3g", right))
	fmt.Fprintf(&sb, text, margin+pw/2, margin+ph+30, "middle", x.Label)
	fmt.Fprintf(&sb, text, margin-5, margin+ph, "end", fmt.Sprintf("%.3g", y.Min))
	fmt.Fprintf(&sb, text, margin-5, margin+10, "end", fmt.Sprintf("%.3g", y.Max))
	fmt.Fprintf(&sb, text, margin, margin-10, "start", y.Label)
	sb.WriteString("</svg>\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func fit(a Axis, points []Point, get func(Point) float64) Axis {
	if a.Min != a.Max {
		return a
	}
	lo, hi := get(points[0]), get(points[0])
	for _, p := range points {
		lo, hi = min(lo, get(p)), max(hi, get(p))
	}
	pad := (hi - lo) * 0.1
	if pad == 0 {
		pad = 1
	}
	a.Min, a.Max = lo-pad, hi+pad
	return a
}

// ZSpectrumSVG plots Z from 0 to 1 with positive offsets on the left.
func ZSpectrumSVG(w io.Writer, z *analysis.ZSpectrum, width, height int) error {
	if z == nil || z.Len() < 2 {
		return ErrTooFewPoints
	}
	points := make([]Point, 0, z.Len())
	for i := z.Len() - 1; i >= 0; i-- {
		points = append(points, Point{X: z.Offsets[i], Y: z.Z[i]})
	}
	x := Axis{Min: z.Offsets[0], Max: z.Offsets[z.Len()-1], Reverse: true, Label: "offset (ppm)"}
	y := Axis{Min: 0, Max: 1.05, Label: "Z"}
	return LineSVG(w, points, width, height, x, y, "#00ffff")
}

// MTRAsymSVG plots the asymmetry over the non-negative offsets.
func MTRAsymSVG(w io.Writer, z *analysis.ZSpectrum, width, height int) error {
	if z == nil {
		return ErrTooFewPoints
	}
	offsets, asym := z.MTRAsym()
	points := make([]Point, len(offsets))
	for i := range points {
		points[i] = Point{X: offsets[i], Y: asym[i]}
	}
	return LineSVG(w, points, width, height, Axis{Label: "offset (ppm)"}, Axis{Label: "MTRasym"}, "#ff00ff")
}
