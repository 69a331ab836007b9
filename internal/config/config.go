package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/margin"
	"github.com/ignacioaranguren1/lite-irs/internal/rates"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the application configuration.
type Config struct {
	// Logging configuration
	LogLevel  string
	LogFormat string

	// Application configuration
	Environment string

	// Journal configuration, e.g. "file:irs_journal.db". Empty disables the journal.
	JournalDSN string
}

// Load loads the configuration from environment variables.
func Load() *Config {
	config := &Config{
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
		Environment: getEnv("ENVIRONMENT", "development"),
		JournalDSN:  getEnv("IRS_JOURNAL_DSN", ""),
	}

	return config
}

// SwapFile describes one swap and the rate fixings it settles against.
// Amounts and ratios are decimal strings, e.g. notional = "1000000".
type SwapFile struct {
	Account       string `toml:"account"`
	FixedPayer    string `toml:"fixed_payer"`
	FloatingPayer string `toml:"floating_payer"`

	Notional  wad.Num `toml:"notional"`
	FixedRate wad.Num `toml:"fixed_rate"`

	InitialMarginRate     wad.Num `toml:"initial_margin_rate"`
	MaintenanceMarginRate wad.Num `toml:"maintenance_margin_rate"`
	LiquidationFeeRate    wad.Num `toml:"liquidation_fee_rate"`

	Start    time.Time `toml:"start"`
	Maturity time.Time `toml:"maturity"`

	// Funding is minted to each party before the swap is initialized.
	Funding wad.Num `toml:"funding"`

	Fixings []Fixing `toml:"fixings"`
}

type Fixing struct {
	At    time.Time `toml:"at"`
	Index wad.Num   `toml:"index"`
}

// DefaultSwapFile returns the reference swap: 1,000,000 notional paying 3% fixed for one year.
func DefaultSwapFile() *SwapFile {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	req := margin.DefaultRequirement()
	return &SwapFile{
		Account:               "0x000000000000000000000000000000000000a11c",
		FixedPayer:            "0x00000000000000000000000000000000000000f1",
		FloatingPayer:         "0x00000000000000000000000000000000000000f2",
		Notional:              wad.FromUnits(1_000_000),
		FixedRate:             wad.MustParse("0.03"),
		InitialMarginRate:     req.InitialMarginRate,
		MaintenanceMarginRate: req.MaintenanceMarginRate,
		LiquidationFeeRate:    req.LiquidationFeeRate,
		Start:                 start,
		Maturity:              start.AddDate(1, 0, 0),
		Funding:               wad.FromUnits(1_000_000),
		Fixings: []Fixing{
			{At: start, Index: wad.Zero()},
			{At: start.AddDate(1, 0, 0), Index: wad.MustParse("0.05")},
		},
	}
}

// LoadFile reads a swap description. Keys missing from the file keep the
// values of DefaultSwapFile.
func LoadFile(path string) (*SwapFile, error) {
	f := DefaultSwapFile()
	defaultFixings := f.Fixings
	f.Fixings = nil

	md, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if !md.IsDefined("fixings") {
		f.Fixings = defaultFixings
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks addresses, the margin ratios and the term.
func (f *SwapFile) Validate() error {
	for _, addr := range []struct{ key, value string }{
		{"account", f.Account},
		{"fixed_payer", f.FixedPayer},
		{"floating_payer", f.FloatingPayer},
	} {
		if !common.IsHexAddress(addr.value) {
			return fmt.Errorf("%w: %s %q is not a hex address", ErrInvalidConfig, addr.key, addr.value)
		}
	}
	if err := f.Requirement().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if !f.Maturity.After(f.Start) {
		return fmt.Errorf("%w: maturity must be after start", ErrInvalidConfig)
	}
	if len(f.Fixings) == 0 {
		return fmt.Errorf("%w: no rate fixings", ErrInvalidConfig)
	}
	return nil
}

func (f *SwapFile) AccountAddress() common.Address {
	return common.HexToAddress(f.Account)
}

func (f *SwapFile) FixedPayerAddress() common.Address {
	return common.HexToAddress(f.FixedPayer)
}

func (f *SwapFile) FloatingPayerAddress() common.Address {
	return common.HexToAddress(f.FloatingPayer)
}

func (f *SwapFile) Requirement() *margin.MarginRequirement {
	return &margin.MarginRequirement{
		InitialMarginRate:     f.InitialMarginRate,
		MaintenanceMarginRate: f.MaintenanceMarginRate,
		LiquidationFeeRate:    f.LiquidationFeeRate,
	}
}

// Feed builds the rate source from the configured fixings.
func (f *SwapFile) Feed() (*rates.Feed, error) {
	fixings := make([]rates.Fixing, 0, len(f.Fixings))
	for _, fx := range f.Fixings {
		fixings = append(fixings, rates.Fixing{At: fx.At, Index: fx.Index})
	}
	return rates.NewFeed(fixings...)
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}
