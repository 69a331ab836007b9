package main

import (
	"testing"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/config"
	"github.com/ignacioaranguren1/lite-irs/internal/custody"
	"github.com/ignacioaranguren1/lite-irs/internal/logger"
	"github.com/ignacioaranguren1/lite-irs/internal/swap"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReferenceSwap(t *testing.T) {
	f := config.DefaultSwapFile()

	state, err := run(&config.Config{}, f, runPlan{}, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t, swap.Settled, state.Status)
	assert.True(t, state.Custodied.IsZero())
	assert.True(t, state.PaidOut.EQ(wad.FromUnits(200_000)))
	assert.True(t, state.Parties[common.FixedPayer].Payable.IsZero())
}

func TestRunLiquidation(t *testing.T) {
	f := config.DefaultSwapFile()
	mid := f.Start.AddDate(0, 6, 0)
	f.Fixings = []config.Fixing{
		{At: f.Start, Index: wad.Zero()},
		{At: mid, Index: wad.MustParse("0.1")},
		{At: f.Maturity, Index: wad.MustParse("0.15")},
	}
	plan := runPlan{
		settleAt:    mid,
		liquidateAt: mid.Add(24 * time.Hour),
		liquidator:  common.HexToAddress("0x00000000000000000000000000000000000000ee"),
	}

	state, err := run(&config.Config{JournalDSN: "file:cli_journal?mode=memory&cache=shared"}, f, plan, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t, swap.Settled, state.Status)
	assert.Equal(t, plan.liquidateAt, state.LastSettledAt)
	assert.True(t, state.Custodied.IsZero())
	// fee to the liquidator plus both withdrawals
	assert.True(t, state.PaidOut.EQ(state.Deposited))
}

func TestRunNotEligible(t *testing.T) {
	f := config.DefaultSwapFile()
	plan := runPlan{
		liquidateAt: f.Start.AddDate(0, 3, 0),
		liquidator:  common.HexToAddress("0x00000000000000000000000000000000000000ee"),
	}

	state, err := run(&config.Config{}, f, plan, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, f.Maturity, state.LastSettledAt)
}

func TestRunApprovalRefused(t *testing.T) {
	f := config.DefaultSwapFile()
	f.Account = common.ZeroAddress.Hex()

	_, err := run(&config.Config{}, f, runPlan{}, logger.Discard())
	require.ErrorIs(t, err, custody.ErrCustodyTransferFailed)
	assert.Contains(t, err.Error(), "refused approval")
}
