package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "swap.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("IRS_JOURNAL_DSN", "file::memory:")
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("LOG_FORMAT", "")

	cfg := Load()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "file::memory:", cfg.JournalDSN)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
fixed_payer    = "0x00000000000000000000000000000000000000a1"
floating_payer = "0x00000000000000000000000000000000000000a2"
notional       = "250000.5"
fixed_rate     = "0.0425"
maintenance_margin_rate = "0.08"
start    = 2026-01-01T00:00:00Z
maturity = 2026-07-01T00:00:00Z

[[fixings]]
at    = 2026-01-01T00:00:00Z
index = "0"

[[fixings]]
at    = 2026-04-01T00:00:00Z
index = "0.011"

[[fixings]]
at    = 2026-07-01T00:00:00Z
index = "0.0231"
`)

	f, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000a1"), f.FixedPayerAddress())
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000a2"), f.FloatingPayerAddress())
	assert.Equal(t, DefaultSwapFile().AccountAddress(), f.AccountAddress())
	assert.Equal(t, "250000.5", f.Notional.String())
	assert.Equal(t, "0.0425", f.FixedRate.String())
	assert.Equal(t, time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), f.Maturity.UTC())

	req := f.Requirement()
	assert.Equal(t, "0.1", req.InitialMarginRate.String())
	assert.Equal(t, "0.08", req.MaintenanceMarginRate.String())
	assert.Equal(t, "0.005", req.LiquidationFeeRate.String())

	require.Len(t, f.Fixings, 3)
	feed, err := f.Feed()
	require.NoError(t, err)
	rate, err := feed.RateFromTo(f.Start, f.Maturity)
	require.NoError(t, err)
	assert.Equal(t, "0.0231", rate.String())
}

func TestLoadFileDefaults(t *testing.T) {
	f, err := LoadFile(writeFile(t, `notional = "500"`))
	require.NoError(t, err)
	assert.Equal(t, "500", f.Notional.String())
	assert.Len(t, f.Fixings, len(DefaultSwapFile().Fixings))
}

func TestLoadFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad address", `fixed_payer = "alice"`},
		{"maintenance above initial", `maintenance_margin_rate = "0.2"`},
		{"maturity before start", `maturity = 2024-01-01T00:00:00Z`},
		{"unknown key", `notionl = "1"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeFile(t, tt.content))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadFile(writeFile(t, `notional = "-1"`))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
