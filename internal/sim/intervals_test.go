package sim

import (
	"math"
	"math/cmplx"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/bmcsim/internal/seq"
)

func totalDt(ivs []interval) float64 {
	sum := 0.0
	for _, iv := range ivs {
		sum += iv.dt
	}
	return sum
}

var _ = Describe("block expansion", func() {
	var s *Simulator

	BeforeEach(func() {
		var err error
		s, err = New(aptParams(1, false), DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	It("merges equal samples of a block pulse", func() {
		rf := &seq.RF{Amplitude: make([]float64, 100), Raster: 1e-3, FreqOffset: 50}
		for i := range rf.Amplitude {
			rf.Amplitude[i] = 10
		}
		ivs := s.expand(nil, seq.Pulse("cw", rf), 0)
		Expect(ivs).To(HaveLen(1))
		Expect(ivs[0].dt).To(BeNumerically("~", 0.1, 1e-12))
		Expect(ivs[0].sample.Amplitude).To(Equal(10.0))
	})

	It("adds a free tail after the pulse", func() {
		rf := &seq.RF{Amplitude: []float64{1, 2}, Raster: 1e-3}
		ivs := s.expand(nil, seq.Block{Duration: 5e-3, RF: rf}, 0)
		Expect(ivs).To(HaveLen(3))
		Expect(ivs[2].sample.Free()).To(BeTrue())
		Expect(ivs[2].dt).To(BeNumerically("~", 3e-3, 1e-12))
		Expect(totalDt(ivs)).To(BeNumerically("~", 5e-3, 1e-12))
	})

	It("splits on the union of rf and gradient rasters", func() {
		rf := &seq.RF{Amplitude: []float64{1, 2, 3}, Raster: 1e-3}
		g := &seq.Gradient{Samples: []float64{5, 6}, Raster: 1.5e-3}
		ivs := s.expand(nil, seq.Block{Duration: 3e-3, RF: rf, Gradient: g}, 0)
		Expect(ivs).To(HaveLen(4))
		Expect(ivs[1].sample.Amplitude).To(Equal(2.0))
		Expect(ivs[1].sample.Gradient).To(Equal(5.0))
		Expect(ivs[2].sample.Amplitude).To(Equal(2.0))
		Expect(ivs[2].sample.Gradient).To(Equal(6.0))
		Expect(totalDt(ivs)).To(BeNumerically("~", 3e-3, 1e-12))
	})

	It("drops samples below the rf threshold", func() {
		s.cfg.RFThreshold = 0.5
		rf := &seq.RF{Amplitude: []float64{0.1, 1}, Raster: 1e-3, FreqOffset: 20}
		ivs := s.expand(nil, seq.Pulse("p", rf), 0)
		Expect(ivs[0].sample.Free()).To(BeTrue())
		Expect(ivs[0].sample.FreqOffset).To(BeZero())
	})

	It("subtracts the accumulated phase", func() {
		rf := &seq.RF{Amplitude: []float64{1}, Phase: []float64{0.5}, Raster: 1e-3, PhaseOffset: 0.25}
		ivs := s.expand(nil, seq.Pulse("p", rf), 1)
		Expect(ivs[0].sample.Phase).To(BeNumerically("~", -0.25, 1e-15))

		s.cfg.TrackPhase = false
		ivs = s.expand(nil, seq.Pulse("p", rf), 1)
		Expect(ivs[0].sample.Phase).To(BeNumerically("~", 0.75, 1e-15))
	})

	It("decimates while keeping the integrated rotation", func() {
		env := seq.ShapeGauss.Envelope(1000)
		rf := &seq.RF{Amplitude: env, Phase: make([]float64, len(env)), Raster: 1e-5}
		for i := range rf.Phase {
			rf.Phase[i] = 0.3 * float64(i) / float64(len(env))
		}

		w := decimate(rf, 50)
		Expect(w.amp).To(HaveLen(50))
		Expect(w.raster * 50).To(BeNumerically("~", rf.Duration(), 1e-15))

		var full, reduced complex128
		for i := range rf.Amplitude {
			full += cmplx.Rect(rf.Amplitude[i], rf.Phase[i]) * complex(rf.Raster, 0)
		}
		for i := range w.amp {
			reduced += cmplx.Rect(w.amp[i], w.phase[i]) * complex(w.raster, 0)
		}
		Expect(cmplx.Abs(full - reduced)).To(BeNumerically("<", 1e-12))

		Expect(decimate(rf, 0).amp).To(HaveLen(1000))
		Expect(decimate(rf, 2000).amp).To(HaveLen(1000))
	})

	It("fills missing phase with zeros", func() {
		w := decimate(&seq.RF{Amplitude: []float64{1, 1}, Raster: 1}, 0)
		Expect(w.phase).To(Equal([]float64{0, 0}))
	})

	It("leaves a pure delay as one free interval", func() {
		ivs := s.expand(nil, seq.Delay("d", 2), 0)
		Expect(ivs).To(HaveLen(1))
		Expect(ivs[0].sample.Free()).To(BeTrue())
		Expect(ivs[0].dt).To(Equal(2.0))
		Expect(math.IsInf(ivs[0].dt, 0)).To(BeFalse())
	})

	It("skips zero length blocks", func() {
		Expect(s.expand(nil, seq.Readout("ro", 0), 0)).To(BeEmpty())
	})
})
