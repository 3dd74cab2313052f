package sim

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/bmcsim/internal/bloch"
	"github.com/san-kum/bmcsim/internal/pools"
	"github.com/san-kum/bmcsim/internal/seq"
)

const gamma = pools.DefaultGamma

func aptParams(nCEST int, withMT bool) *pools.Parameters {
	p := pools.New(pools.WaterPool{R1: 1 / 1.31, R2: 1 / 71e-3, F: 1}, pools.DefaultScanner())
	shifts := []float64{3.5, 2.0, -3.5}
	for i := 0; i < nCEST; i++ {
		p.AddCEST(pools.CESTPool{R1: 1 / 1.31, R2: 1 / 100e-3, F: 72e-3 / 111, K: 30 * float64(i+1), DW: shifts[i%3]})
	}
	if withMT {
		p.SetMT(&pools.MTPool{R1: 1, R2: 1e5, F: 0.05, K: 23, DW: -2.6, Lineshape: pools.Lorentzian})
	}
	Expect(p.Normalize()).To(Succeed())
	return p
}

func satPulse(ppm, b1, tp float64) seq.Block {
	rf, err := seq.NewPulse(seq.ShapeGauss, b1, tp, 1e-3, gamma, ppm*3*gamma/(2*math.Pi))
	Expect(err).NotTo(HaveOccurred())
	return seq.Pulse("sat", rf)
}

func expectClose(got, want bloch.Magnetization, tol float64) {
	ExpectWithOffset(1, got.Layout).To(Equal(want.Layout))
	for i := range want.M {
		ExpectWithOffset(1, got.M[i]).To(BeNumerically("~", want.M[i], tol), "component %d", i)
	}
}

var _ = Describe("Simulator", func() {
	var (
		params *pools.Parameters
		s      *Simulator
	)

	BeforeEach(func() {
		params = aptParams(1, true)
		var err error
		s, err = New(params, DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("empty sequence", func() {
		It("returns the initial state unchanged", func() {
			res, err := s.Run(seq.New())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Trajectory).To(BeEmpty())
			Expect(res.Final.M).To(Equal(s.Initial().M))
			Expect(res.Blocks).To(BeZero())
		})
	})

	Describe("equilibrium", func() {
		It("stays put under free precession", func() {
			res, err := s.Run(seq.New(seq.Delay("a", 1.5), seq.Readout("ro", 0), seq.Delay("b", 0.25)))
			Expect(err).NotTo(HaveOccurred())
			expectClose(res.Final, s.Initial(), 1e-12)
			expectClose(res.Trajectory[0], s.Initial(), 1e-12)
		})

		It("scales with InitialScale", func() {
			cfg := DefaultConfig()
			cfg.InitialScale = 0.5
			half, err := New(params, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(half.Initial().Water().Z).To(BeNumerically("~", 0.5*params.Water.F, 1e-15))
		})
	})

	Describe("pure relaxation", func() {
		It("follows the T1 and T2 exponentials", func() {
			p := pools.New(pools.WaterPool{R1: 0.9, R2: 15, F: 1}, pools.DefaultScanner())
			single, err := New(p, DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			m0 := single.Initial()
			m0.M[m0.Layout.X(0)] = 0.3
			m0.M[m0.Layout.Z(0)] = 0.5

			res, err := single.RunFrom(seq.New(seq.Delay("wait", 0.2)), m0)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Final.Water().Z).To(BeNumerically("~", 1-0.5*math.Exp(-0.9*0.2), 1e-6))
			Expect(res.Final.Water().X).To(BeNumerically("~", 0.3*math.Exp(-15*0.2), 1e-6))
		})
	})

	Describe("interval composition", func() {
		It("matches one long step with two short ones", func() {
			pulse := satPulse(3.5, 1, 0.1)
			m0, err := s.Final(seq.New(pulse))
			Expect(err).NotTo(HaveOccurred())

			one, err := s.RunFrom(seq.New(seq.Delay("d", 0.3)), m0)
			Expect(err).NotTo(HaveOccurred())
			two, err := s.RunFrom(seq.New(seq.Delay("d1", 0.1), seq.Delay("d2", 0.2)), m0)
			Expect(err).NotTo(HaveOccurred())
			expectClose(two.Final, one.Final, 1e-9)
		})
	})

	Describe("readouts", func() {
		It("records only after marked blocks", func() {
			b1 := satPulse(3.5, 1.5, 0.2)
			b2 := seq.Block{Label: "second", Duration: 0.1, ADC: true}
			b3 := satPulse(-3.5, 1.5, 0.2)

			res, err := s.Run(seq.New(b1, b2, b3))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Trajectory).To(HaveLen(1))
			Expect(res.Labels).To(Equal([]string{"second"}))
			Expect(res.Times[0]).To(BeNumerically("~", 0.3, 1e-12))

			upTo2, err := s.Final(seq.New(b1, seq.Delay("second", 0.1)))
			Expect(err).NotTo(HaveOccurred())
			expectClose(res.Trajectory[0], upTo2, 1e-14)
			Expect(res.Final.Water().Z).NotTo(BeNumerically("~", res.Trajectory[0].Water().Z, 1e-6))
		})

		It("notifies observers", func() {
			var seen []string
			s.AddObserver(ObserverFunc(func(i int, t float64, label string, m bloch.Magnetization) {
				seen = append(seen, label)
				m.M[0] = 42
			}))
			res, err := s.Run(seq.New(seq.Readout("a", 0), seq.Delay("d", 1), seq.Readout("b", 0)))
			Expect(err).NotTo(HaveOccurred())
			Expect(seen).To(Equal([]string{"a", "b"}))
			Expect(res.Trajectory[0].M[0]).NotTo(Equal(42.0))
		})

		It("restores the initial state after readouts when asked", func() {
			cfg := DefaultConfig()
			cfg.ResetInitMag = true
			r, err := New(params, cfg)
			Expect(err).NotTo(HaveOccurred())

			pulse := satPulse(2, 2, 0.3)
			res, err := r.Run(seq.New(pulse, seq.Readout("a", 0), pulse, seq.Readout("b", 0)))
			Expect(err).NotTo(HaveOccurred())
			expectClose(res.Trajectory[1], res.Trajectory[0], 1e-14)
			expectClose(res.Final, r.Initial(), 0)

			res, err = s.Run(seq.New(pulse, seq.Readout("a", 0), pulse, seq.Readout("b", 0)))
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Trajectory[1].Water().Z).To(BeNumerically("<", res.Trajectory[0].Water().Z))
		})
	})

	Describe("gradients", func() {
		It("spoils transverse magnetization after gradient-only blocks", func() {
			m0 := s.Initial()
			m0.M[m0.Layout.X(0)] = 0.4
			m0.M[m0.Layout.Y(1)] = 0.001

			res, err := s.RunFrom(seq.New(seq.Spoiler("spoil", 30, 5e-3)), m0)
			Expect(err).NotTo(HaveOccurred())
			for p := 0; p < res.Final.Layout.Pools(); p++ {
				Expect(res.Final.Pool(p).X).To(BeZero())
				Expect(res.Final.Pool(p).Y).To(BeZero())
			}
			Expect(res.Final.Water().Z).To(BeNumerically(">", 0))
		})

		It("precesses instead of spoiling under the uniform policy", func() {
			cfg := DefaultConfig()
			cfg.Gradient = bloch.GradientModel{Policy: bloch.GradientUniform, Position: 1e-3}
			u, err := New(params, cfg)
			Expect(err).NotTo(HaveOccurred())

			m0 := u.Initial()
			m0.M[m0.Layout.X(0)] = 0.4
			res, err := u.RunFrom(seq.New(seq.Spoiler("grad", 10, 1e-3)), m0)
			Expect(err).NotTo(HaveOccurred())
			w := res.Final.Water()
			Expect(math.Hypot(w.X, w.Y)).To(BeNumerically(">", 0.3))
		})
	})

	Describe("malformed blocks", func() {
		DescribeTable("abort the run before any step",
			func(b seq.Block) {
				res, err := s.Run(seq.New(seq.Delay("ok", 1), b))
				Expect(res).To(BeNil())
				Expect(err).To(MatchError(ErrMalformedBlock))

				var simErr *SimulationError
				Expect(errors.As(err, &simErr)).To(BeTrue())
				Expect(simErr.Block).To(Equal(1))
				Expect(simErr.Time).To(BeNumerically("~", 1, 1e-12))
				Expect(s.solver.Stats().Steps).To(BeZero())
			},
			Entry("negative duration", seq.Block{Label: "neg", Duration: -1}),
			Entry("phase length mismatch", seq.Block{Duration: 1, RF: &seq.RF{
				Amplitude: []float64{1, 2}, Phase: []float64{0}, Raster: 0.1}}),
			Entry("zero raster", seq.Block{Duration: 1, RF: &seq.RF{Amplitude: []float64{1}}}),
			Entry("rf longer than block", seq.Block{Duration: 0.1, RF: &seq.RF{
				Amplitude: []float64{1, 1}, Raster: 0.1}}),
			Entry("non-finite amplitude", seq.Block{Duration: 1, RF: &seq.RF{
				Amplitude: []float64{math.NaN()}, Raster: 0.1}}),
			Entry("amplitude above limit", seq.Block{Duration: 1, RF: &seq.RF{
				Amplitude: []float64{2 * MaxRFAmplitude}, Raster: 0.1}}),
			Entry("gradient longer than block", seq.Block{Duration: 0.1, Gradient: &seq.Gradient{
				Samples: []float64{1, 1, 1}, Raster: 0.1}}),
		)
	})

	Describe("solver variants", func() {
		It("produce identical trajectories for 0 to 3 cest pools", func() {
			protocol := seq.CWProtocol(1, 0.5)
			protocol.Offsets = []float64{-3.5, -1, 0, 2, 3.5}
			protocol.TRec = 0.5
			protocol.M0TRec = 1
			src, err := protocol.Build()
			Expect(err).NotTo(HaveOccurred())

			for n := 0; n <= bloch.MaxFixedCEST; n++ {
				for _, mt := range []bool{false, true} {
					p := aptParams(n, mt)
					fixedCfg, dynCfg := DefaultConfig(), DefaultConfig()
					fixedCfg.Variant, dynCfg.Variant = VariantFixed, VariantDynamic

					f, err := New(p, fixedCfg)
					Expect(err).NotTo(HaveOccurred())
					d, err := New(p, dynCfg)
					Expect(err).NotTo(HaveOccurred())
					Expect(f.Solver()).To(Equal(bloch.Fixed))
					Expect(d.Solver()).To(Equal(bloch.Dynamic))

					rf, err := f.Run(src)
					Expect(err).NotTo(HaveOccurred())
					rd, err := d.Run(src)
					Expect(err).NotTo(HaveOccurred())
					Expect(rf.Trajectory).To(HaveLen(len(rd.Trajectory)))
					for i := range rf.Trajectory {
						for j := range rf.Trajectory[i].M {
							Expect(math.Abs(rf.Trajectory[i].M[j]-rd.Trajectory[i].M[j])).To(BeNumerically("<", 1e-10))
						}
					}
				}
			}
		})
	})

	Describe("UpdateParameters", func() {
		It("rebinds the solver when the layout is unchanged", func() {
			before := s.solver
			q := params.Clone()
			q.CEST[0].K = 3000
			Expect(s.UpdateParameters(q)).To(Succeed())
			Expect(s.solver).To(BeIdenticalTo(before))
			Expect(s.Parameters().CEST[0].K).To(Equal(3000.0))

			q.CEST[0].K = 1
			Expect(s.Parameters().CEST[0].K).To(Equal(3000.0), "parameters must be copied")
		})

		It("reselects the solver when the pool count changes", func() {
			Expect(s.UpdateParameters(aptParams(3, false))).To(Succeed())
			Expect(s.Layout()).To(Equal(bloch.Layout{CEST: 3}))
			Expect(s.Initial().M).To(HaveLen(12))

			more := aptParams(3, false)
			more.AddCEST(pools.CESTPool{R1: 1, R2: 10, K: 100, DW: 1})
			Expect(s.UpdateParameters(more)).To(Succeed())
			Expect(s.Solver()).To(Equal(bloch.Dynamic))
		})

		It("keeps the previous parameters on invalid input", func() {
			bad := params.Clone()
			bad.Water.R1 = -1
			Expect(s.UpdateParameters(bad)).To(MatchError(pools.ErrNegativeRate))
			Expect(s.Parameters().Water.R1).To(Equal(params.Water.R1))
		})
	})

	Describe("RunFrom", func() {
		It("rejects a state of another layout", func() {
			_, err := s.RunFrom(seq.New(), bloch.NewMagnetization(bloch.Layout{CEST: 2}))
			Expect(err).To(MatchError(ErrInitialState))
		})

		It("chains runs", func() {
			cfg := DefaultConfig()
			cfg.TrackPhase = false
			c, err := New(params, cfg)
			Expect(err).NotTo(HaveOccurred())

			a := seq.New(satPulse(3.5, 1, 0.2))
			b := seq.New(satPulse(-3.5, 1, 0.2))
			whole, err := c.Final(seq.New(a.Block(0), b.Block(0)))
			Expect(err).NotTo(HaveOccurred())

			first, err := c.Final(a)
			Expect(err).NotTo(HaveOccurred())
			chained, err := c.RunFrom(b, first)
			Expect(err).NotTo(HaveOccurred())
			expectClose(chained.Final, whole, 1e-14)
		})
	})

	Describe("Z-spectrum", func() {
		It("shows the amide dip on the positive side", func() {
			protocol := seq.CWProtocol(1, 2)
			protocol.Offsets = []float64{-3.5, 3.5}
			src, err := protocol.Build()
			Expect(err).NotTo(HaveOccurred())

			cfg := DefaultConfig()
			cfg.ResetInitMag = true
			z, err := New(aptParams(1, false), cfg)
			Expect(err).NotTo(HaveOccurred())
			res, err := z.Run(src)
			Expect(err).NotTo(HaveOccurred())

			mz := res.WaterMz()
			Expect(mz).To(HaveLen(3))
			Expect(mz[0]).To(BeNumerically("~", z.Initial().Water().Z, 1e-9))
			Expect(mz[2]).To(BeNumerically("<", mz[1]))
		})
	})
})

var _ = Describe("Ensemble", func() {
	src := seq.New(seq.Delay("wait", 0.1), seq.Readout("ro", 0))

	It("returns results in job order", func() {
		jobs := make([]Job, 8)
		for i := range jobs {
			p := aptParams(1, false)
			p.CEST[0].K = float64(10 * (i + 1))
			jobs[i] = Job{Name: "k", Params: p, Source: src}
		}
		e := NewEnsemble(DefaultConfig(), 3)
		var calls, last atomic.Int64
		e.OnProgress(func(done, total int) {
			calls.Add(1)
			if done == total {
				last.Store(int64(done))
			}
		})

		results, err := e.Run(context.Background(), jobs)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(8))
		for _, r := range results {
			Expect(r.Trajectory).To(HaveLen(1))
		}
		Expect(calls.Load()).To(BeEquivalentTo(8))
		Expect(last.Load()).To(BeEquivalentTo(8))
	})

	It("fails fast on an invalid job", func() {
		bad := aptParams(1, false)
		bad.Water.F = 3
		jobs := []Job{{Name: "good", Params: aptParams(0, false), Source: src}, {Name: "bad", Params: bad, Source: src}}
		_, err := NewEnsemble(DefaultConfig(), 1).Run(context.Background(), jobs)
		Expect(err).To(MatchError(pools.ErrFractionSum))
		Expect(err.Error()).To(ContainSubstring("bad"))
	})

	It("honors a cancelled context", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		jobs := []Job{{Params: aptParams(0, false), Source: src}}
		_, err := NewEnsemble(DefaultConfig(), 2).Run(ctx, jobs)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("starts jobs from a supplied state", func() {
		p := aptParams(0, false)
		m0 := bloch.NewMagnetization(bloch.LayoutOf(p))
		results, err := NewEnsemble(DefaultConfig(), 0).Run(context.Background(), []Job{{Params: p, Source: src, Initial: &m0}})
		Expect(err).NotTo(HaveOccurred())
		Expect(results[0].Trajectory[0].Water().Z).To(BeNumerically("~", 1-math.Exp(-0.1/1.31), 1e-9))
	})
})
