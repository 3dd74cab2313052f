package bloch

import (
	"math"

	"github.com/san-kum/bmcsim/internal/pools"
)

const (
	slSamples  = 101
	slStep     = 0.01
	slBridge   = 100.0 // rad/s beyond w0 where the bridge ends
	slOuterGap = 300.0
)

// Absorption returns the semi-solid absorption lineshape g(delta) in s/rad.
// t2 is the pool's transverse relaxation time, w0 the Larmor frequency per ppm.
func Absorption(kind pools.Lineshape, t2, delta, w0 float64) float64 {
	switch kind {
	case pools.Lorentzian:
		return lorentzian(t2, delta)
	case pools.SuperLorentzian:
		if math.Abs(delta) < w0+slBridge {
			return superLorentzianBridge(t2, delta, w0)
		}
		return superLorentzian(t2, delta)
	default:
		return 0
	}
}

func lorentzian(t2, delta float64) float64 {
	x := delta * t2
	return t2 / (1 + x*x)
}

// superLorentzian integrates over the orientation u = cos(theta).
// The integrand diverges at the magic angle, so it is only used away from resonance.
func superLorentzian(t2, delta float64) float64 {
	sum := 0.0
	c := math.Sqrt(2 / math.Pi)
	for i := 0; i < slSamples; i++ {
		u := slStep * float64(i)
		d := math.Abs(3*u*u - 1)
		x := delta * t2 / d
		sum += c * t2 / d * math.Exp(-2*x*x)
	}
	return sum * math.Pi * slStep
}

// superLorentzianBridge interpolates across the on-resonance region with a
// cubic Hermite spline between -(w0+100) and w0+100.
func superLorentzianBridge(t2, delta, w0 float64) float64 {
	px := [4]float64{-slOuterGap - w0, -slBridge - w0, slBridge + w0, slOuterGap + w0}
	var py [4]float64
	for i, x := range px {
		py[i] = superLorentzian(t2, x)
	}
	span := px[2] - px[1]
	m0 := (py[1] - py[0]) / (px[1] - px[0]) * span
	m1 := (py[3] - py[2]) / (px[3] - px[2]) * span

	c := (delta - px[1]) / span
	c2 := c * c
	c3 := c2 * c
	h00 := 2*c3 - 3*c2 + 1
	h10 := c3 - 2*c2 + c
	h01 := -2*c3 + 3*c2
	h11 := c3 - c2
	return h00*py[1] + h10*m0 + h01*py[2] + h11*m1
}
