package seq

import (
	"errors"
	"fmt"
	"math"
)

// M0Offset is the far off-resonant offset (ppm) recorded for the M0 scan.
const M0Offset = -300.0

var ErrInvalidProtocol = errors.New("seq: invalid protocol")

// Protocol describes a Z-spectrum acquisition: for every offset a recovery
// delay, a train of saturation pulses and a readout.
type Protocol struct {
	// Offsets lists the saturation offsets in ppm. When empty, NumOffsets
	// points are spread evenly over [-OffsetRange, OffsetRange].
	Offsets     []float64 `yaml:"offsets_ppm,omitempty" toml:"offsets_ppm,omitempty" json:"offsets_ppm,omitempty"`
	OffsetRange float64   `yaml:"offset_range" toml:"offset_range" json:"offset_range"`
	NumOffsets  int       `yaml:"num_offsets" toml:"num_offsets" json:"num_offsets"`

	RunM0Scan bool    `yaml:"run_m0_scan" toml:"run_m0_scan" json:"run_m0_scan"`
	M0TRec    float64 `yaml:"m0_t_rec" toml:"m0_t_rec" json:"m0_t_rec"`
	TRec      float64 `yaml:"t_rec" toml:"t_rec" json:"t_rec"`

	// B1 is the mean pulse amplitude in uT; TP the pulse duration and TD the
	// delay between pulses, both in s. Raster samples shaped pulses.
	Shape    Shape   `yaml:"shape" toml:"shape" json:"shape"`
	B1       float64 `yaml:"b1" toml:"b1" json:"b1"`
	TP       float64 `yaml:"tp" toml:"tp" json:"tp"`
	TD       float64 `yaml:"td" toml:"td" json:"td"`
	NPulses  int     `yaml:"n_pulses" toml:"n_pulses" json:"n_pulses"`
	Raster   float64 `yaml:"raster" toml:"raster" json:"raster"`
	Coherent bool    `yaml:"phase_coherent" toml:"phase_coherent" json:"phase_coherent"`

	// SpoilAmplitude is in mT/m.
	Spoiling       bool    `yaml:"spoiling" toml:"spoiling" json:"spoiling"`
	SpoilAmplitude float64 `yaml:"spoil_amplitude" toml:"spoil_amplitude" json:"spoil_amplitude"`
	SpoilDuration  float64 `yaml:"spoil_duration" toml:"spoil_duration" json:"spoil_duration"`
	ReadoutTime    float64 `yaml:"readout_time" toml:"readout_time" json:"readout_time"`

	// Gamma is in rad/s/uT.
	B0    float64 `yaml:"b0" toml:"b0" json:"b0"`
	Gamma float64 `yaml:"gamma" toml:"gamma" json:"gamma"`
}

// DefaultProtocol is an APT-weighted pulsed protocol at 3 T: 20 gaussian
// pulses of 50 ms at 2.22 uT with 40 ms gaps.
func DefaultProtocol() Protocol {
	return Protocol{
		OffsetRange:    7,
		NumOffsets:     57,
		RunM0Scan:      true,
		M0TRec:         12,
		TRec:           2.4,
		Shape:          ShapeGauss,
		B1:             2.22,
		TP:             50e-3,
		TD:             40e-3,
		NPulses:        20,
		Raster:         1e-4,
		Coherent:       true,
		Spoiling:       true,
		SpoilAmplitude: 32,
		SpoilDuration:  4.5e-3,
		B0:             3,
		Gamma:          267.5153,
	}
}

// CWProtocol is a single continuous wave block pulse per offset.
func CWProtocol(b1, tp float64) Protocol {
	p := DefaultProtocol()
	p.Shape = ShapeBlock
	p.B1 = b1
	p.TP = tp
	p.TD = 0
	p.NPulses = 1
	return p
}

// OffsetsPPM returns the saturation offsets without the M0 scan.
func (p Protocol) OffsetsPPM() []float64 {
	if len(p.Offsets) > 0 {
		return append([]float64(nil), p.Offsets...)
	}
	if p.NumOffsets <= 0 {
		return nil
	}
	if p.NumOffsets == 1 {
		return []float64{-p.OffsetRange}
	}
	out := make([]float64, p.NumOffsets)
	step := 2 * p.OffsetRange / float64(p.NumOffsets-1)
	for i := range out {
		out[i] = -p.OffsetRange + float64(i)*step
	}
	return out
}

func (p Protocol) Validate() error {
	switch {
	case len(p.OffsetsPPM()) == 0:
		return fmt.Errorf("%w: no offsets", ErrInvalidProtocol)
	case p.TP <= 0:
		return fmt.Errorf("%w: pulse duration %g", ErrInvalidProtocol, p.TP)
	case p.TD < 0 || p.TRec < 0 || p.M0TRec < 0 || p.ReadoutTime < 0:
		return fmt.Errorf("%w: negative delay", ErrInvalidProtocol)
	case p.NPulses < 1:
		return fmt.Errorf("%w: n_pulses %d", ErrInvalidProtocol, p.NPulses)
	case p.B1 < 0:
		return fmt.Errorf("%w: b1 %g", ErrInvalidProtocol, p.B1)
	case p.B0 <= 0 || p.Gamma <= 0:
		return fmt.Errorf("%w: b0 %g gamma %g", ErrInvalidProtocol, p.B0, p.Gamma)
	case p.Shape != ShapeBlock && p.Raster <= 0:
		return fmt.Errorf("%w: raster %g", ErrInvalidProtocol, p.Raster)
	case p.Spoiling && p.SpoilDuration <= 0:
		return fmt.Errorf("%w: spoil duration %g", ErrInvalidProtocol, p.SpoilDuration)
	}
	return nil
}

// Build expands the protocol into blocks. The recorded offsets (M0 scan first,
// at M0Offset) are stored in the sequence definitions.
func (p Protocol) Build() (*Sequence, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	offsets := p.OffsetsPPM()
	s := New()
	recorded := make([]float64, 0, len(offsets)+1)

	if p.RunM0Scan {
		if p.M0TRec > 0 {
			s.Add(Delay("m0-recovery", p.M0TRec))
		}
		s.Add(Readout("m0", p.ReadoutTime))
		recorded = append(recorded, M0Offset)
	}

	hzPerPPM := p.B0 * p.Gamma / (2 * math.Pi)
	for _, ppm := range offsets {
		freq := ppm * hzPerPPM
		rf, err := NewPulse(p.Shape, p.B1, p.TP, p.Raster, p.Gamma, freq)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProtocol, err)
		}
		if p.TRec > 0 {
			s.Add(Delay("recovery", p.TRec))
		}

		accum := 0.0
		for n := 0; n < p.NPulses; n++ {
			if p.Coherent {
				rf.PhaseOffset = accum
			}
			s.Add(Pulse(fmt.Sprintf("sat %+.2f ppm #%d", ppm, n+1), rf))
			accum = math.Mod(accum+2*math.Pi*freq*rf.Duration(), 2*math.Pi)
			if n < p.NPulses-1 && p.TD > 0 {
				s.Add(Delay("interpulse", p.TD))
			}
		}
		if p.Spoiling {
			s.Add(Spoiler("spoiler", p.SpoilAmplitude, p.SpoilDuration))
		}
		s.Add(Readout(fmt.Sprintf("readout %+.2f ppm", ppm), p.ReadoutTime))
		recorded = append(recorded, ppm)
	}

	s.SetDefinitions(Definitions{OffsetsPPM: recorded, RunM0Scan: p.RunM0Scan, B0: p.B0})
	return s, nil
}
