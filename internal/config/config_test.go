package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/bmcsim/internal/bloch"
	"github.com/san-kum/bmcsim/internal/pools"
	"github.com/san-kum/bmcsim/internal/sim"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	p, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, 1, p.NumCEST())
	assert.InDelta(t, 1.0, p.TotalFraction(), 1e-12)
	assert.InDelta(t, 1/DefaultWaterT1, p.Water.R1, 1e-12)

	sc, err := cfg.SimConfig()
	require.NoError(t, err)
	assert.True(t, sc.ResetInitMag)
	assert.True(t, sc.TrackPhase)
	assert.Equal(t, sim.VariantAuto, sc.Variant)
	assert.Equal(t, bloch.GradientSpoil, sc.Gradient.Policy)

	s, err := cfg.Sequence()
	require.NoError(t, err)
	assert.Equal(t, 58, s.Readouts())
}

func TestPresetsBuild(t *testing.T) {
	names := ListPresets()
	require.Contains(t, names, "wm-3t")
	require.Contains(t, names, "water")

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			require.NotNil(t, cfg)
			p, err := cfg.Params()
			require.NoError(t, err)
			assert.NoError(t, p.Validate())
			_, err = cfg.SimConfig()
			assert.NoError(t, err)
		})
	}
}

func TestGetPresetReturnsCopy(t *testing.T) {
	a := GetPreset("wm-3t")
	a.CEST[0].K = 1e4
	b := GetPreset("wm-3t")
	assert.Equal(t, 30.0, b.CEST[0].K)

	assert.Nil(t, GetPreset("nonexistent"))
}

func TestPresetFieldStrength(t *testing.T) {
	p, err := GetPreset("wm-7t").Params()
	require.NoError(t, err)
	assert.Equal(t, 7.0, p.Scanner.B0)
	assert.Equal(t, pools.SuperLorentzian, p.MT.Lineshape)

	s, err := GetPreset("wm-7t").Sequence()
	require.NoError(t, err)
	assert.Equal(t, 7.0, s.Definitions().B0)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, ext := range []string{".yaml", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sim"+ext)
			cfg := GetPreset("apt-mt")
			cfg.Options.Gradient = "uniform"
			cfg.Options.GradientPosition = 1e-3
			require.NoError(t, Save(path, cfg))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg.Water, loaded.Water)
			assert.Equal(t, cfg.CEST, loaded.CEST)
			assert.Equal(t, *cfg.MT, *loaded.MT)
			assert.Equal(t, cfg.Protocol.Shape, loaded.Protocol.Shape)
			assert.Equal(t, cfg.Protocol.NPulses, loaded.Protocol.NPulses)

			sc, err := loaded.SimConfig()
			require.NoError(t, err)
			assert.Equal(t, bloch.GradientUniform, sc.Gradient.Policy)
		})
	}
}

func TestLoadPartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	doc := "water:\n  t1: 2\n  t2: 0.05\n  f: 1\ncest_pools: []\noptions:\n  solver: dynamic\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.CEST)
	assert.Equal(t, 3.0, cfg.Scanner.B0)
	assert.True(t, cfg.Options.TrackPhase)

	sc, err := cfg.SimConfig()
	require.NoError(t, err)
	assert.Equal(t, sim.VariantDynamic, sc.Variant)
}

func TestLoadWithoutPoolsIsWaterOnly(t *testing.T) {
	for _, name := range []string{"water.yaml", "water.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			doc := "water:\n  t1: 3\n  t2: 2\n  f: 1\n"
			if filepath.Ext(name) == ".toml" {
				doc = "[water]\nt1 = 3.0\nt2 = 2.0\nf = 1.0\n"
			}
			require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

			cfg, err := Load(path)
			require.NoError(t, err)
			assert.Empty(t, cfg.CEST)
			assert.Nil(t, cfg.MT)

			p, err := cfg.Params()
			require.NoError(t, err)
			assert.Equal(t, 0, p.NumCEST())
			assert.InDelta(t, 1.0, p.Water.F, 1e-12)
		})
	}
}

func TestLoadResolvesSequenceFile(t *testing.T) {
	dir := t.TempDir()
	events := "definitions:\n  b0: 3\nblocks:\n  - label: wait\n    duration: 1\n  - label: ro\n    adc: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "events.yaml"), []byte(events), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sim.yaml"), []byte("sequence_file: events.yaml\n"), 0644))

	cfg, err := Load(filepath.Join(dir, "sim.yaml"))
	require.NoError(t, err)
	s, err := cfg.Sequence()
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.Readouts())
}

func TestInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Water.T2 = 0
	_, err := cfg.Params()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.RelativeFractions = false
	_, err = cfg.Params()
	assert.ErrorIs(t, err, pools.ErrFractionSum)

	cfg = DefaultConfig()
	cfg.Options.Gradient = "sideways"
	_, err = cfg.SimConfig()
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.MT = &MTConfig{T1: 1, T2: 1e-5, F: 0.1, Lineshape: "gaussian"}
	_, err = cfg.Params()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
