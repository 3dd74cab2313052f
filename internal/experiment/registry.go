package experiment

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/san-kum/bmcsim/internal/config"
)

// Resolve loads source as a config file when it exists, and as a preset
// name otherwise. The returned name labels stored runs.
func Resolve(source string) (*config.Config, string, error) {
	if source == "" {
		return config.DefaultConfig(), "default", nil
	}
	if _, err := os.Stat(source); err == nil {
		cfg, err := config.Load(source)
		if err != nil {
			return nil, "", err
		}
		return cfg, strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)), nil
	}
	cfg := config.GetPreset(source)
	if cfg == nil {
		return nil, "", fmt.Errorf("unknown preset or file: %s (presets: %s)", source, strings.Join(config.ListPresets(), ", "))
	}
	return cfg, source, nil
}

// setters maps sweepable parameter names to config fields. Pool fields are
// addressed as cest.<index>.<field>, index from 0.
var setters = map[string]func(c *config.Config, v float64){
	"b0":           func(c *config.Config, v float64) { c.Scanner.B0 = v },
	"b0_inhom":     func(c *config.Config, v float64) { c.Scanner.B0Inhomogeneity = v },
	"rel_b1":       func(c *config.Config, v float64) { c.Scanner.RelB1 = v },
	"b1":           func(c *config.Config, v float64) { c.Protocol.B1 = v },
	"tp":           func(c *config.Config, v float64) { c.Protocol.TP = v },
	"td":           func(c *config.Config, v float64) { c.Protocol.TD = v },
	"n_pulses":     func(c *config.Config, v float64) { c.Protocol.NPulses = int(v) },
	"t_rec":        func(c *config.Config, v float64) { c.Protocol.TRec = v },
	"water.t1":     func(c *config.Config, v float64) { c.Water.T1 = v },
	"water.t2":     func(c *config.Config, v float64) { c.Water.T2 = v },
	"mt.k":         func(c *config.Config, v float64) { c.MT.K = v },
	"mt.f":         func(c *config.Config, v float64) { c.MT.F = v },
	"mt.t2":        func(c *config.Config, v float64) { c.MT.T2 = v },
	"scale":        func(c *config.Config, v float64) { c.Options.Scale = v },
	"pulse_limit":  func(c *config.Config, v float64) { c.Options.MaxPulseSamples = int(v) },
	"rf_threshold": func(c *config.Config, v float64) { c.Options.RFThreshold = v },
}

var poolFields = map[string]func(p *config.CESTConfig, v float64){
	"k":  func(p *config.CESTConfig, v float64) { p.K = v },
	"f":  func(p *config.CESTConfig, v float64) { p.F = v },
	"dw": func(p *config.CESTConfig, v float64) { p.DW = v },
	"t1": func(p *config.CESTConfig, v float64) { p.T1 = v },
	"t2": func(p *config.CESTConfig, v float64) { p.T2 = v },
}

// Parameters lists the sweepable names.
func Parameters() []string {
	names := make([]string, 0, len(setters)+len(poolFields))
	for name := range setters {
		names = append(names, name)
	}
	for field := range poolFields {
		names = append(names, "cest.N."+field)
	}
	slices.Sort(names)
	return names
}

// Set assigns v to the named parameter of c.
func Set(c *config.Config, name string, v float64) error {
	if fn, ok := setters[name]; ok {
		if strings.HasPrefix(name, "mt.") && c.MT == nil {
			return fmt.Errorf("%s: config has no mt pool", name)
		}
		fn(c, v)
		return nil
	}
	parts := strings.Split(name, ".")
	if len(parts) == 3 && parts[0] == "cest" {
		i, err := strconv.Atoi(parts[1])
		if err != nil || i < 0 || i >= len(c.CEST) {
			return fmt.Errorf("%s: no cest pool %s", name, parts[1])
		}
		if fn, ok := poolFields[parts[2]]; ok {
			fn(&c.CEST[i], v)
			return nil
		}
	}
	return fmt.Errorf("unknown parameter: %s", name)
}
