// Package config loads the TOML configuration for the ledger service.
package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/Tilt-github/aave-v4-sub006/native/fixmath"
	"github.com/Tilt-github/aave-v4-sub006/native/rates"
	"github.com/Tilt-github/aave-v4-sub006/native/spoke"
)

// Config captures the runtime configuration for the ledger service.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`
	// Paused disables whole modules at startup, keyed by module name.
	Paused      map[string]bool     `toml:"paused,omitempty"`
	Rates       rates.ModelParams   `toml:"rates"`
	Liquidation LiquidationSettings `toml:"liquidation"`
}

// LiquidationSettings describes the liquidation policy in human units.
// Health factors are decimals, e.g. 1.05 restores positions to 5% above the
// threshold. DustThreshold is denominated in whole base-currency units.
type LiquidationSettings struct {
	TargetHealthFactor   float64 `toml:"TargetHealthFactor"`
	MaxBonusHealthFactor float64 `toml:"MaxBonusHealthFactor"`
	BonusFactorBps       uint64  `toml:"BonusFactorBps"`
	DustThreshold        uint64  `toml:"DustThreshold"`
}

// Policy converts the settings into the engine's Wad-scaled policy.
func (l LiquidationSettings) Policy() spoke.LiquidationConfig {
	return spoke.LiquidationConfig{
		TargetHealthFactor:   floatToWad(l.TargetHealthFactor),
		MaxBonusHealthFactor: floatToWad(l.MaxBonusHealthFactor),
		BonusFactorBps:       l.BonusFactorBps,
		DustThreshold:        new(big.Int).Mul(new(big.Int).SetUint64(l.DustThreshold), fixmath.Wad),
	}
}

// floatToWad scales a decimal setting to Wad. The value is parsed from its
// decimal rendering so 1.05 lands on exactly 1.05e18.
func floatToWad(v float64) *big.Int {
	rat, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'f', -1, 64))
	if !ok {
		rat = new(big.Rat)
	}
	scaled := rat.Mul(rat, new(big.Rat).SetInt(fixmath.Wad))
	return new(big.Int).Quo(scaled.Num(), scaled.Denom())
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration the service starts with when no file is
// present.
func Default() *Config {
	return &Config{
		ListenAddress: ":8080",
		DataDir:       "./ledger-data",
		Environment:   "dev",
		Rates:         rates.DefaultParams,
		Liquidation: LiquidationSettings{
			TargetHealthFactor:   1.05,
			MaxBonusHealthFactor: 0.8,
			BonusFactorBps:       5000,
			DustThreshold:        10,
		},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = def.ListenAddress
	}
	if cfg.DataDir == "" {
		cfg.DataDir = def.DataDir
	}
	if cfg.Environment == "" {
		cfg.Environment = def.Environment
	}
	if cfg.Rates == (rates.ModelParams{}) {
		cfg.Rates = def.Rates
	}
	if cfg.Liquidation == (LiquidationSettings{}) {
		cfg.Liquidation = def.Liquidation
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}
