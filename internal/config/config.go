package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/bmcsim/internal/bloch"
	"github.com/san-kum/bmcsim/internal/pools"
	"github.com/san-kum/bmcsim/internal/seq"
	"github.com/san-kum/bmcsim/internal/sim"
)

const (
	DefaultB0      = 3.0
	DefaultWaterT1 = 1.31
	DefaultWaterT2 = 71e-3
)

var ErrInvalidConfig = errors.New("config: invalid")

// Config is a simulation setup as written in YAML or TOML files. Relaxation
// is given as times in seconds, chemical shifts in ppm.
type Config struct {
	Water    WaterConfig   `yaml:"water" toml:"water"`
	CEST     []CESTConfig  `yaml:"cest_pools,omitempty" toml:"cest_pools,omitempty"`
	MT       *MTConfig     `yaml:"mt_pool,omitempty" toml:"mt_pool,omitempty"`
	Scanner  ScannerConfig `yaml:"scanner" toml:"scanner"`
	Options  Options       `yaml:"options" toml:"options"`
	Protocol seq.Protocol  `yaml:"protocol" toml:"protocol"`
	// SequenceFile is a YAML event list used instead of Protocol.
	SequenceFile string `yaml:"sequence_file,omitempty" toml:"sequence_file,omitempty"`
	// RelativeFractions marks fractions given relative to water (water f = 1).
	RelativeFractions bool `yaml:"relative_fractions" toml:"relative_fractions"`
}

type WaterConfig struct {
	T1 float64 `yaml:"t1" toml:"t1"`
	T2 float64 `yaml:"t2" toml:"t2"`
	F  float64 `yaml:"f" toml:"f"`
}

type CESTConfig struct {
	Name string  `yaml:"name,omitempty" toml:"name,omitempty"`
	T1   float64 `yaml:"t1" toml:"t1"`
	T2   float64 `yaml:"t2" toml:"t2"`
	F    float64 `yaml:"f" toml:"f"`
	K    float64 `yaml:"k" toml:"k"`
	DW   float64 `yaml:"dw" toml:"dw"`
}

type MTConfig struct {
	T1        float64 `yaml:"t1" toml:"t1"`
	T2        float64 `yaml:"t2" toml:"t2"`
	F         float64 `yaml:"f" toml:"f"`
	K         float64 `yaml:"k" toml:"k"`
	DW        float64 `yaml:"dw" toml:"dw"`
	Lineshape string  `yaml:"lineshape" toml:"lineshape"`
}

type ScannerConfig struct {
	B0              float64 `yaml:"b0" toml:"b0"`
	Gamma           float64 `yaml:"gamma" toml:"gamma"`
	B0Inhomogeneity float64 `yaml:"b0_inhomogeneity" toml:"b0_inhomogeneity"`
	RelB1           float64 `yaml:"rel_b1" toml:"rel_b1"`
}

type Options struct {
	ResetInitMag    bool    `yaml:"reset_init_mag" toml:"reset_init_mag"`
	MaxPulseSamples int     `yaml:"max_pulse_samples" toml:"max_pulse_samples"`
	Scale           float64 `yaml:"scale" toml:"scale"`
	TrackPhase      bool    `yaml:"track_phase" toml:"track_phase"`
	RFThreshold     float64 `yaml:"rf_threshold" toml:"rf_threshold"`
	// Gradient is spoil, uniform or chemical-shift; GradientPosition is in m.
	Gradient         string  `yaml:"gradient" toml:"gradient"`
	GradientPosition float64 `yaml:"gradient_position" toml:"gradient_position"`
	Solver           string  `yaml:"solver" toml:"solver"`
	Verbose          bool    `yaml:"verbose" toml:"verbose"`
}

// DefaultConfig is water plus an amide pool at 3 T under the APT protocol.
func DefaultConfig() *Config {
	return &Config{
		Water: WaterConfig{T1: DefaultWaterT1, T2: DefaultWaterT2, F: 1},
		CEST: []CESTConfig{
			{Name: "amide", T1: DefaultWaterT1, T2: 100e-3, F: 72e-3 / 111, K: 30, DW: 3.5},
		},
		Scanner: ScannerConfig{B0: DefaultB0, Gamma: pools.DefaultGamma, RelB1: 1},
		Options: Options{
			ResetInitMag: true,
			Scale:        1,
			TrackPhase:   true,
			Gradient:     bloch.GradientSpoil.String(),
			Solver:       sim.VariantAuto.String(),
		},
		Protocol:          seq.DefaultProtocol(),
		RelativeFractions: true,
	}
}

// Load reads a YAML or TOML file, chosen by extension, over DefaultConfig.
// CEST pools are never inherited: a file without cest_pools is water only
// (plus its MT pool, if any).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	cfg.CEST = nil
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.SequenceFile != "" && !filepath.IsAbs(cfg.SequenceFile) {
		cfg.SequenceFile = filepath.Join(filepath.Dir(path), cfg.SequenceFile)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	var data []byte
	var err error
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Params converts times to rates and, for relative fractions, normalizes.
func (c *Config) Params() (*pools.Parameters, error) {
	water, err := rates("water", c.Water.T1, c.Water.T2)
	if err != nil {
		return nil, err
	}
	p := pools.New(pools.WaterPool{R1: water[0], R2: water[1], F: c.Water.F}, pools.Scanner{
		B0:              c.Scanner.B0,
		Gamma:           c.Scanner.Gamma,
		B0Inhomogeneity: c.Scanner.B0Inhomogeneity,
		RelB1:           c.Scanner.RelB1,
	})
	for i, cp := range c.CEST {
		r, err := rates(fmt.Sprintf("cest pool %d", i+1), cp.T1, cp.T2)
		if err != nil {
			return nil, err
		}
		p.AddCEST(pools.CESTPool{Name: cp.Name, R1: r[0], R2: r[1], F: cp.F, K: cp.K, DW: cp.DW})
	}
	if c.MT != nil {
		r, err := rates("mt pool", c.MT.T1, c.MT.T2)
		if err != nil {
			return nil, err
		}
		ls, err := pools.ParseLineshape(c.MT.Lineshape)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		p.SetMT(&pools.MTPool{R1: r[0], R2: r[1], F: c.MT.F, K: c.MT.K, DW: c.MT.DW, Lineshape: ls})
	}
	if c.RelativeFractions {
		if err := p.Normalize(); err != nil {
			return nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func rates(name string, t1, t2 float64) ([2]float64, error) {
	if t1 <= 0 || t2 <= 0 {
		return [2]float64{}, fmt.Errorf("%w: %s needs positive t1 and t2, got %g and %g", ErrInvalidConfig, name, t1, t2)
	}
	return [2]float64{1 / t1, 1 / t2}, nil
}

// SimConfig maps the options onto the simulator configuration.
func (c *Config) SimConfig() (sim.Config, error) {
	policy, err := bloch.ParseGradientPolicy(c.Options.Gradient)
	if err != nil {
		return sim.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	variant, err := sim.ParseVariant(c.Options.Solver)
	if err != nil {
		return sim.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg := sim.DefaultConfig()
	cfg.ResetInitMag = c.Options.ResetInitMag
	cfg.MaxPulseSamples = c.Options.MaxPulseSamples
	cfg.InitialScale = c.Options.Scale
	cfg.TrackPhase = c.Options.TrackPhase
	cfg.RFThreshold = c.Options.RFThreshold
	cfg.Gradient = bloch.GradientModel{Policy: policy, Position: c.Options.GradientPosition}
	cfg.Variant = variant
	cfg.Verbose = c.Options.Verbose
	return cfg, nil
}

// Sequence loads SequenceFile when set and builds Protocol otherwise. The
// protocol inherits the scanner's field and gamma.
func (c *Config) Sequence() (*seq.Sequence, error) {
	if c.SequenceFile != "" {
		return seq.LoadYAMLFile(c.SequenceFile)
	}
	p := c.Protocol
	p.B0 = c.Scanner.B0
	p.Gamma = c.Scanner.Gamma
	return p.Build()
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	out.CEST = slices.Clone(c.CEST)
	if c.MT != nil {
		mt := *c.MT
		out.MT = &mt
	}
	out.Protocol.Offsets = slices.Clone(c.Protocol.Offsets)
	return &out
}
