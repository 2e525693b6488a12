package config

import "errors"

var (
	errListenAddress  = errors.New("config: ListenAddress must not be empty")
	errTargetHealth   = errors.New("config: liquidation TargetHealthFactor must be at least 1")
	errMaxBonusHealth = errors.New("config: liquidation MaxBonusHealthFactor must be in (0, 1)")
	errBonusFactor    = errors.New("config: liquidation BonusFactorBps must not exceed 10000")
	errRateParams     = errors.New("config: invalid rate model parameters")
)

// Validate checks the configuration for values the engines would reject.
func (c *Config) Validate() error {
	if c.ListenAddress == "" {
		return errListenAddress
	}
	if c.Liquidation.TargetHealthFactor < 1 {
		return errTargetHealth
	}
	if c.Liquidation.MaxBonusHealthFactor <= 0 || c.Liquidation.MaxBonusHealthFactor >= 1 {
		return errMaxBonusHealth
	}
	if c.Liquidation.BonusFactorBps > 10_000 {
		return errBonusFactor
	}
	if c.Rates.BaseRate < 0 || c.Rates.Slope1 < 0 || c.Rates.Slope2 < 0 ||
		c.Rates.Kink < 0 || c.Rates.Kink > 1 {
		return errRateParams
	}
	return nil
}
