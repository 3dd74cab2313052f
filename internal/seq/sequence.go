// Package seq holds the ordered event blocks a simulation walks through.
//
// Blocks are immutable once added; the simulator only reads them. Sequences
// come from a [Protocol], from YAML event lists, or are assembled by hand.
package seq

import "iter"

// RF is a sampled RF waveform. Sample i covers [i*Raster, (i+1)*Raster).
// An empty Phase means zero phase for every sample.
type RF struct {
	Amplitude   []float64 `yaml:"amplitude" json:"amplitude"` // rad/s
	Phase       []float64 `yaml:"phase" json:"phase"`         // rad
	Raster      float64   `yaml:"raster" json:"raster"`       // s
	FreqOffset  float64   `yaml:"freq_offset" json:"freq_offset"`
	PhaseOffset float64   `yaml:"phase_offset" json:"phase_offset"`
}

// Duration is the time covered by the samples.
func (r *RF) Duration() float64 {
	return float64(len(r.Amplitude)) * r.Raster
}

// Gradient is a sampled gradient waveform in mT/m.
type Gradient struct {
	Samples []float64 `yaml:"samples" json:"samples"`
	Raster  float64   `yaml:"raster" json:"raster"`
}

func (g *Gradient) Duration() float64 {
	return float64(len(g.Samples)) * g.Raster
}

// Block is one sequence event: free precession, an RF pulse, a gradient
// or a readout marker. ADC requests a recording once the block has elapsed.
type Block struct {
	Label    string    `yaml:"label,omitempty" json:"label,omitempty"`
	Duration float64   `yaml:"duration" json:"duration"`
	RF       *RF       `yaml:"rf,omitempty" json:"rf,omitempty"`
	Gradient *Gradient `yaml:"gradient,omitempty" json:"gradient,omitempty"`
	ADC      bool      `yaml:"adc,omitempty" json:"adc,omitempty"`
}

func (b Block) HasRF() bool { return b.RF != nil && len(b.RF.Amplitude) > 0 }

// GradientOnly reports a block that plays a gradient without RF.
func (b Block) GradientOnly() bool {
	return !b.HasRF() && b.Gradient != nil && len(b.Gradient.Samples) > 0
}

// Source is an ordered, finite, restartable list of blocks.
type Source interface {
	Len() int
	All() iter.Seq2[int, Block]
}

// Definitions carries sequence level metadata used by the analysis.
type Definitions struct {
	OffsetsPPM []float64         `yaml:"offsets_ppm,omitempty" json:"offsets_ppm,omitempty"`
	RunM0Scan  bool              `yaml:"run_m0_scan,omitempty" json:"run_m0_scan,omitempty"`
	B0         float64           `yaml:"b0,omitempty" json:"b0,omitempty"`
	Extra      map[string]string `yaml:"extra,omitempty" json:"extra,omitempty"`
}

type Sequence struct {
	blocks []Block
	defs   Definitions
}

func New(blocks ...Block) *Sequence {
	s := &Sequence{}
	for _, b := range blocks {
		s.Add(b)
	}
	return s
}

// Add appends a copy of b.
func (s *Sequence) Add(b Block) {
	s.blocks = append(s.blocks, cloneBlock(b))
}

func (s *Sequence) Len() int                 { return len(s.blocks) }
func (s *Sequence) Block(i int) Block        { return s.blocks[i] }
func (s *Sequence) Definitions() Definitions { return s.defs }
func (s *Sequence) SetDefinitions(d Definitions) {
	s.defs = d
}

func (s *Sequence) All() iter.Seq2[int, Block] {
	return func(yield func(int, Block) bool) {
		for i, b := range s.blocks {
			if !yield(i, b) {
				return
			}
		}
	}
}

// Duration sums the block durations.
func (s *Sequence) Duration() float64 {
	total := 0.0
	for _, b := range s.blocks {
		total += b.Duration
	}
	return total
}

// Readouts counts the ADC blocks.
func (s *Sequence) Readouts() int {
	n := 0
	for _, b := range s.blocks {
		if b.ADC {
			n++
		}
	}
	return n
}

func cloneBlock(b Block) Block {
	c := b
	if b.RF != nil {
		rf := *b.RF
		rf.Amplitude = append([]float64(nil), b.RF.Amplitude...)
		rf.Phase = append([]float64(nil), b.RF.Phase...)
		c.RF = &rf
	}
	if b.Gradient != nil {
		g := *b.Gradient
		g.Samples = append([]float64(nil), b.Gradient.Samples...)
		c.Gradient = &g
	}
	return c
}

// Delay is a free precession block.
func Delay(label string, d float64) Block {
	return Block{Label: label, Duration: d}
}

// Readout marks a recording point; d may be zero.
func Readout(label string, d float64) Block {
	return Block{Label: label, Duration: d, ADC: true}
}

// Pulse wraps rf in a block of its own duration.
func Pulse(label string, rf *RF) Block {
	return Block{Label: label, Duration: rf.Duration(), RF: rf}
}

// Spoiler is a constant gradient of amplitude mT/m over d seconds.
func Spoiler(label string, amplitude, d float64) Block {
	return Block{
		Label:    label,
		Duration: d,
		Gradient: &Gradient{Samples: []float64{amplitude}, Raster: d},
	}
}
