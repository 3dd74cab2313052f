package config

import (
	"slices"

	"github.com/san-kum/bmcsim/internal/seq"
)

// Fractions in presets are relative to water.
var Presets = map[string]func() *Config{
	"water": func() *Config {
		cfg := DefaultConfig()
		cfg.CEST = nil
		cfg.Water = WaterConfig{T1: 3, T2: 2, F: 1}
		return cfg
	},
	"apt": DefaultConfig,
	"apt-mt": func() *Config {
		cfg := DefaultConfig()
		cfg.MT = whiteMatterMT()
		return cfg
	},
	"gm-3t": func() *Config {
		cfg := DefaultConfig()
		cfg.Water = WaterConfig{T1: 1.82, T2: 99e-3, F: 1}
		cfg.CEST = brainPools(1.82)
		cfg.MT = &MTConfig{T1: 1, T2: 9e-6, F: 0.05, K: 40, DW: -2.6, Lineshape: "superlorentzian"}
		return cfg
	},
	"wm-3t": func() *Config {
		cfg := DefaultConfig()
		cfg.Water = WaterConfig{T1: 1.084, T2: 69e-3, F: 1}
		cfg.CEST = brainPools(1.084)
		cfg.MT = whiteMatterMT()
		return cfg
	},
	"wm-7t": func() *Config {
		cfg := DefaultConfig()
		cfg.Water = WaterConfig{T1: 1.22, T2: 45e-3, F: 1}
		cfg.CEST = brainPools(1.22)
		cfg.MT = whiteMatterMT()
		cfg.Scanner.B0 = 7
		cfg.Protocol = seq.DefaultProtocol()
		cfg.Protocol.B1 = 1
		return cfg
	},
}

func whiteMatterMT() *MTConfig {
	return &MTConfig{T1: 1, T2: 9e-6, F: 0.139, K: 23, DW: -2.6, Lineshape: "superlorentzian"}
}

// brainPools are amide, guanidine and relayed NOE at the given pool T1.
func brainPools(t1 float64) []CESTConfig {
	return []CESTConfig{
		{Name: "amide", T1: t1, T2: 100e-3, F: 72e-3 / 111, K: 30, DW: 3.5},
		{Name: "guanidine", T1: t1, T2: 100e-3, F: 20e-3 / 111, K: 1100, DW: 2},
		{Name: "noe", T1: t1, T2: 5e-3, F: 500e-3 / 111, K: 16, DW: -3.5},
	}
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
