package pools

import "errors"

// Configuration errors surfaced by Validate.
var (
	ErrTooManyPools   = errors.New("pools: too many cest pools")
	ErrFractionSum    = errors.New("pools: fractions must be non-negative and sum to 1")
	ErrNegativeRate   = errors.New("pools: rate constants must be non-negative")
	ErrMissingWater   = errors.New("pools: water pool is required")
	ErrInvalidValue   = errors.New("pools: non-finite parameter")
	ErrInvalidScanner = errors.New("pools: invalid scanner settings")
)
