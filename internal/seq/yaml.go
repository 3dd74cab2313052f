package seq

import (
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// yamlPulse is the shorthand for a shaped pulse inside an event list.
type yamlPulse struct {
	Shape     Shape   `yaml:"shape"`
	B1        float64 `yaml:"b1"`
	Duration  float64 `yaml:"duration"`
	Raster    float64 `yaml:"raster"`
	OffsetPPM float64 `yaml:"offset_ppm"`
	Phase     float64 `yaml:"phase_offset"`
}

type yamlBlock struct {
	Block  `yaml:",inline"`
	Pulse  *yamlPulse `yaml:"pulse,omitempty"`
	Repeat int        `yaml:"repeat,omitempty"`
}

type yamlSequence struct {
	Gamma       float64     `yaml:"gamma,omitempty"`
	Definitions Definitions `yaml:"definitions,omitempty"`
	Blocks      []yamlBlock `yaml:"blocks"`
}

// LoadYAML reads an event list. Blocks may carry a "pulse" shorthand that is
// sampled with the definitions' b0 and the top level gamma, and a repeat count.
func LoadYAML(r io.Reader) (*Sequence, error) {
	var doc yamlSequence
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode sequence: %w", err)
	}
	if doc.Gamma == 0 {
		doc.Gamma = 267.5153
	}

	s := New()
	s.SetDefinitions(doc.Definitions)
	for i, yb := range doc.Blocks {
		b := yb.Block
		if yb.Pulse != nil {
			if doc.Definitions.B0 <= 0 {
				return nil, fmt.Errorf("block %d: pulse shorthand needs definitions.b0", i)
			}
			p := yb.Pulse
			freq := p.OffsetPPM * doc.Definitions.B0 * doc.Gamma / (2 * math.Pi)
			rf, err := NewPulse(p.Shape, p.B1, p.Duration, p.Raster, doc.Gamma, freq)
			if err != nil {
				return nil, fmt.Errorf("block %d: %w", i, err)
			}
			rf.PhaseOffset = p.Phase
			b.RF = rf
			if b.Duration == 0 {
				b.Duration = rf.Duration()
			}
		}
		n := max(yb.Repeat, 1)
		for range n {
			s.Add(b)
		}
	}
	return s, nil
}

func LoadYAMLFile(path string) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}

// WriteYAML writes the sequence as an explicit event list.
func WriteYAML(w io.Writer, s *Sequence) error {
	doc := yamlSequence{Definitions: s.Definitions()}
	for _, b := range s.All() {
		doc.Blocks = append(doc.Blocks, yamlBlock{Block: b})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
