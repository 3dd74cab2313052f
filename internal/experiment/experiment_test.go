package experiment

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/bmcsim/internal/config"
	"github.com/san-kum/bmcsim/internal/logging"
)

func quickConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Protocol.Offsets = []float64{-3.5, 0, 3.5}
	cfg.Protocol.NPulses = 2
	cfg.Protocol.TRec = 1
	cfg.Protocol.M0TRec = 1
	cfg.Protocol.Raster = 1e-3
	return cfg
}

func TestExperimentRun(t *testing.T) {
	exp, err := New("apt", quickConfig())
	require.NoError(t, err)
	dir := t.TempDir()
	events := logging.OpenEventLog(dir)
	require.NotNil(t, events)
	defer events.Close()
	exp.SetEventLog(events)

	out, err := exp.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, out.Result.Len())
	require.NotNil(t, out.ZSpectrum)
	assert.Equal(t, 3, out.ZSpectrum.Len())
	assert.Contains(t, out.Metrics, "mtr_asym_3.50")
	assert.Greater(t, out.Metrics["mtr_asym_3.50"], 0.0)
	assert.Equal(t, 0.0, out.Metrics["z_min_ppm"])

	data, err := os.ReadFile(filepath.Join(dir, "events.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"run"`)
}

func TestExperimentRunCancelled(t *testing.T) {
	exp, err := New("apt", quickConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = exp.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve(t *testing.T) {
	cfg, name, err := Resolve("wm-3t")
	require.NoError(t, err)
	assert.Equal(t, "wm-3t", name)
	assert.Len(t, cfg.CEST, 3)

	path := filepath.Join(t.TempDir(), "phantom.toml")
	require.NoError(t, config.Save(path, config.GetPreset("water")))
	cfg, name, err = Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, "phantom", name)
	assert.Empty(t, cfg.CEST)

	_, _, err = Resolve("no-such-thing")
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, Set(cfg, "b1", 3))
	require.NoError(t, Set(cfg, "cest.0.k", 500))
	assert.Equal(t, 3.0, cfg.Protocol.B1)
	assert.Equal(t, 500.0, cfg.CEST[0].K)

	assert.Error(t, Set(cfg, "cest.4.k", 1))
	assert.Error(t, Set(cfg, "cest.0.x", 1))
	assert.Error(t, Set(cfg, "mt.k", 1), "default config has no mt pool")
	assert.Error(t, Set(cfg, "gamma", 1))
	assert.Contains(t, Parameters(), "cest.N.k")
}

func TestSweepOrdersPoints(t *testing.T) {
	base := quickConfig()
	var calls atomic.Int32
	sw := &Sweep{
		Base:       base,
		Param:      "cest.0.k",
		Values:     []float64{10, 100, 1000},
		Workers:    2,
		OnProgress: func(done, total int) { calls.Add(1) },
	}
	points, err := sw.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Equal(t, sw.Values[i], p.Value)
		require.NotNil(t, p.ZSpectrum)
	}
	// faster exchange saturates more at the amide shift
	assert.Less(t, points[0].Metrics["mtr_asym_3.50"], points[1].Metrics["mtr_asym_3.50"])
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 30.0, base.CEST[0].K, "base config must not change")
}

func TestSweepRejectsBadParameter(t *testing.T) {
	sw := &Sweep{Base: quickConfig(), Param: "nope", Values: []float64{1}}
	_, err := sw.Run(context.Background())
	assert.Error(t, err)

	sw = &Sweep{Base: quickConfig(), Param: "b1"}
	_, err = sw.Run(context.Background())
	assert.Error(t, err)
}
