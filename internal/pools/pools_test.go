package pools

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amideParams() *Parameters {
	p := New(WaterPool{R1: 1 / 1.3, R2: 1 / 75e-3, F: 1}, DefaultScanner())
	p.AddCEST(CESTPool{Name: "amide", R1: 1 / 1.3, R2: 10, F: 72e-3 / 111, K: 30, DW: 3.5})
	p.SetMT(&MTPool{R1: 1, R2: 1e5, F: 0.05, K: 23, DW: 0, Lineshape: Lorentzian})
	return p
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := amideParams()
	require.NoError(t, valid.Normalize())

	tests := []struct {
		name    string
		mutate  func(p *Parameters)
		wantErr error
	}{
		{name: "valid", mutate: func(p *Parameters) {}},
		{
			name:    "fractions do not sum to one",
			mutate:  func(p *Parameters) { p.Water.F += 0.1 },
			wantErr: ErrFractionSum,
		},
		{
			name: "negative exchange rate",
			mutate: func(p *Parameters) {
				p.CEST[0].K = -1
			},
			wantErr: ErrNegativeRate,
		},
		{
			name:    "negative R1",
			mutate:  func(p *Parameters) { p.Water.R1 = -0.5 },
			wantErr: ErrNegativeRate,
		},
		{
			name:    "missing water",
			mutate:  func(p *Parameters) { p.Water.F = 0 },
			wantErr: ErrMissingWater,
		},
		{
			name: "too many pools",
			mutate: func(p *Parameters) {
				for i := 0; i <= MaxCESTPools; i++ {
					p.AddCEST(CESTPool{R1: 1, R2: 1, K: 1})
				}
			},
			wantErr: ErrTooManyPools,
		},
		{
			name:    "non-finite cest shift",
			mutate:  func(p *Parameters) { p.CEST[0].DW = math.NaN() },
			wantErr: ErrInvalidValue,
		},
		{
			name:    "non-finite mt shift",
			mutate:  func(p *Parameters) { p.MT.DW = math.NaN() },
			wantErr: ErrInvalidValue,
		},
		{
			name:    "zero field",
			mutate:  func(p *Parameters) { p.Scanner.B0 = 0 },
			wantErr: ErrInvalidScanner,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := valid.Clone()
			tc.mutate(p)
			err := p.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestNormalizeKeepsRatios(t *testing.T) {
	t.Parallel()

	p := amideParams()
	ratio := p.CEST[0].F / p.Water.F
	require.NoError(t, p.Normalize())

	assert.InDelta(t, 1.0, p.TotalFraction(), 1e-12)
	assert.InDelta(t, ratio, p.CEST[0].F/p.Water.F, 1e-12)
	assert.NoError(t, p.Validate())
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	p := amideParams()
	c := p.Clone()
	c.CEST[0].K = 999
	c.MT.K = 999

	assert.Equal(t, 30.0, p.CEST[0].K)
	assert.Equal(t, 23.0, p.MT.K)
}

func TestParseLineshape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Lineshape
	}{
		{"Lorentzian", Lorentzian},
		{"SuperLorentzian", SuperLorentzian},
		{"super_lorentzian", SuperLorentzian},
		{"", NoLineshape},
		{"none", NoLineshape},
	}
	for _, tc := range tests {
		got, err := ParseLineshape(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseLineshape("gaussian")
	assert.Error(t, err)
}

func TestOmega0(t *testing.T) {
	t.Parallel()

	s := DefaultScanner()
	assert.InDelta(t, 3*DefaultGamma, s.Omega0(), 1e-12)
}
