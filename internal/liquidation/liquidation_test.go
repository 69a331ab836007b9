package liquidation

import (
	"errors"
	"testing"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/logger"
	"github.com/ignacioaranguren1/lite-irs/internal/margin"
	"github.com/ignacioaranguren1/lite-irs/internal/settlement"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRateSource struct {
	mock.Mock
}

func (m *mockRateSource) RateFromTo(start, end time.Time) (wad.Num, error) {
	args := m.Called(start, end)
	return args.Get(0).(wad.Num), args.Error(1)
}

var (
	created  = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	maturity = created.AddDate(1, 0, 0)
	// 73 of 365 days: the fixed leg has accrued 0.006 here
	fifth = created.Add(73 * 24 * time.Hour)

	fixedAddr    = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	floatingAddr = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	keeper       = common.HexToAddress("0x00000000000000000000000000000000000000ee")
)

func testTerms() settlement.Terms {
	return settlement.Terms{
		Notional:     wad.FromUnits(1_000_000),
		FixedRate:    wad.MustParse("0.03"),
		CreationTime: created,
		MaturityTime: maturity,
	}
}

func opening() settlement.Position {
	return settlement.Opening(testTerms())
}

func ledgerWith(t *testing.T, fixedMargin, floatingMargin uint64) *margin.Ledger {
	l := margin.NewLedger(fixedAddr, floatingAddr)
	require.NoError(t, l.Fund(common.FixedPayer, wad.FromUnits(fixedMargin)))
	require.NoError(t, l.Fund(common.FloatingPayer, wad.FromUnits(floatingMargin)))
	return l
}

func newTestEngine(rate string) (*Engine, *mockRateSource) {
	src := &mockRateSource{}
	src.On("RateFromTo", mock.Anything, mock.Anything).Return(wad.MustParse(rate), nil)
	return NewEngine(settlement.NewEngine(src, logger.Discard()), logger.Discard()), src
}

func payable(t *testing.T, l *margin.Ledger, side common.Side) wad.Num {
	acc, err := l.GetAccount(side)
	require.NoError(t, err)
	return acc.Payable
}

func TestLiquidate(t *testing.T) {
	t.Run("Single breaching party pays the fee", testLiquidateSingleBreach)
	t.Run("Solvent position is not eligible", testLiquidateNotEligible)
	t.Run("Payer unable to cover the mark above threshold is not eligible", testLiquidateUncoveredMark)
	t.Run("Both parties breaching are charged independently", testLiquidateBothBreach)
	t.Run("Fee gap drawn from remaining margin", testLiquidateFeeGap)
	t.Run("Fee limited by custodied funds", testLiquidateFeeUncovered)
	t.Run("Forced mark nets earlier settlements", testLiquidateNetsSettled)
	t.Run("Payer short of forced mark loses whole margin", testLiquidateSeizesShortfall)
	t.Run("Rate source failure rolls back", testLiquidateRateSourceError)
	t.Run("Settles at maturity when called late", testLiquidateAfterMaturity)
}

func testLiquidateSingleBreach(t *testing.T) {
	engine, _ := newTestEngine("0.006")
	l := ledgerWith(t, 65_000, 100_000)

	out, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), opening(), fifth, keeper)
	require.NoError(t, err)

	assert.Equal(t, []common.Side{common.FixedPayer}, out.Breaching)
	assert.True(t, out.Threshold.EQ(wad.FromUnits(70_000)))
	assert.True(t, out.Fee.EQ(wad.FromUnits(5_000)))
	assert.True(t, out.FeePaid.EQ(wad.FromUnits(5_000)))
	assert.True(t, out.Debited[common.FixedPayer].EQ(wad.FromUnits(5_000)))
	assert.True(t, out.Debited[common.FloatingPayer].IsZero())
	assert.Equal(t, keeper, out.Liquidator)

	require.NotNil(t, out.Settlement)
	assert.True(t, out.Settlement.Final)
	assert.True(t, payable(t, l, common.FixedPayer).EQ(wad.FromUnits(60_000)))
	assert.True(t, payable(t, l, common.FloatingPayer).EQ(wad.FromUnits(100_000)))
	assert.True(t, l.Total().IsZero())
	assert.True(t, l.PaidOut().EQ(wad.FromUnits(5_000)))
	assert.NoError(t, l.Check())
}

func testLiquidateNotEligible(t *testing.T) {
	engine, _ := newTestEngine("0.05")
	l := ledgerWith(t, 100_000, 70_000)
	before := l.Snapshot()

	out, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), opening(), fifth, keeper)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, before, l.Snapshot())
}

func testLiquidateUncoveredMark(t *testing.T) {
	// both above threshold, but 0.18 - 0.03 = 0.15 of 1,000,000 = 150,000 is more than fixed holds
	engine, _ := newTestEngine("0.18")
	l := ledgerWith(t, 100_000, 100_000)
	before := l.Snapshot()

	a, err := engine.Assess(l, margin.DefaultRequirement(), testTerms(), opening(), maturity)
	require.NoError(t, err)
	assert.False(t, a.Eligible())
	assert.True(t, a.Mark.Due)
	assert.Equal(t, "150000", a.Mark.Amount.String())

	out, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), opening(), maturity, keeper)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrNotEligible)
	assert.Equal(t, before, l.Snapshot())
}

func testLiquidateBothBreach(t *testing.T) {
	engine, _ := newTestEngine("0.006")
	l := ledgerWith(t, 60_000, 60_000)

	out, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), opening(), fifth, keeper)
	require.NoError(t, err)

	assert.Len(t, out.Breaching, 2)
	assert.True(t, out.Debited[common.FixedPayer].EQ(wad.FromUnits(5_000)))
	assert.True(t, out.Debited[common.FloatingPayer].EQ(wad.FromUnits(5_000)))
	assert.True(t, out.FeePaid.EQ(wad.FromUnits(5_000)))

	// the second charge stays in the pool and is split at close
	assert.True(t, out.Settlement.ResidualShare[common.FixedPayer].EQ(wad.FromUnits(2_500)))
	assert.True(t, out.Settlement.ResidualShare[common.FloatingPayer].EQ(wad.FromUnits(2_500)))
	assert.True(t, payable(t, l, common.FixedPayer).EQ(wad.FromUnits(57_500)))
	assert.True(t, payable(t, l, common.FloatingPayer).EQ(wad.FromUnits(57_500)))
	assert.NoError(t, l.Check())
}

func testLiquidateFeeGap(t *testing.T) {
	engine, _ := newTestEngine("0.006")
	l := ledgerWith(t, 3_000, 100_000)

	out, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), opening(), fifth, keeper)
	require.NoError(t, err)

	assert.True(t, out.Debited[common.FixedPayer].EQ(wad.FromUnits(3_000)))
	assert.True(t, out.Debited[common.FloatingPayer].EQ(wad.FromUnits(2_000)))
	assert.True(t, out.FeePaid.EQ(wad.FromUnits(5_000)))
	assert.True(t, l.PaidOut().EQ(wad.FromUnits(5_000)))
	assert.True(t, payable(t, l, common.FixedPayer).IsZero())
	assert.True(t, payable(t, l, common.FloatingPayer).EQ(wad.FromUnits(98_000)))
	assert.NoError(t, l.Check())
}

func testLiquidateFeeUncovered(t *testing.T) {
	engine, _ := newTestEngine("0.006")
	l := ledgerWith(t, 1_000, 1_000)

	out, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), opening(), fifth, keeper)
	require.NoError(t, err)

	assert.Len(t, out.Breaching, 2)
	assert.True(t, out.Fee.EQ(wad.FromUnits(5_000)))
	assert.True(t, out.FeePaid.EQ(wad.FromUnits(2_000)))
	assert.True(t, l.PaidOut().EQ(wad.FromUnits(2_000)))
	assert.True(t, l.Payables().IsZero())
	assert.True(t, l.Custodied().IsZero())
	assert.NoError(t, l.Check())
}

func testLiquidateNetsSettled(t *testing.T) {
	// 0.05 - 0.03 = 20,000 accrued at maturity, 10,000 of it already moved
	engine, _ := newTestEngine("0.05")
	l := ledgerWith(t, 65_000, 100_000)
	pos := settlement.Position{
		AsOf:    fifth,
		Settled: settlement.Accrued{Payer: common.FixedPayer, Amount: wad.FromUnits(10_000)},
	}

	out, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), pos, maturity, keeper)
	require.NoError(t, err)

	assert.Equal(t, fifth, out.Settlement.Mark.From)
	assert.True(t, out.Settlement.Transferred.EQ(wad.FromUnits(10_000)))
	assert.True(t, out.Settlement.Position.Settled.Amount.EQ(wad.FromUnits(20_000)))
	assert.True(t, payable(t, l, common.FixedPayer).EQ(wad.FromUnits(50_000)))
	assert.True(t, payable(t, l, common.FloatingPayer).EQ(wad.FromUnits(110_000)))
	assert.NoError(t, l.Check())
}

func testLiquidateSeizesShortfall(t *testing.T) {
	// 0.106 - 0.006 = 0.10 of 1,000,000 = 100,000 owed; fixed has 60,000 left after the fee
	engine, _ := newTestEngine("0.106")
	l := ledgerWith(t, 65_000, 100_000)

	out, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), opening(), fifth, keeper)
	require.NoError(t, err)

	assert.True(t, out.Shortfall.EQ(wad.FromUnits(40_000)), "got %s", out.Shortfall)
	assert.True(t, out.Settlement.Transferred.EQ(wad.FromUnits(60_000)))
	assert.True(t, payable(t, l, common.FixedPayer).IsZero())
	assert.True(t, payable(t, l, common.FloatingPayer).EQ(wad.FromUnits(160_000)))
	assert.NoError(t, l.Check())
}

func testLiquidateRateSourceError(t *testing.T) {
	src := &mockRateSource{}
	src.On("RateFromTo", mock.Anything, mock.Anything).Return(wad.Zero(), errors.New("oracle down"))
	engine := NewEngine(settlement.NewEngine(src, logger.Discard()), logger.Discard())
	l := ledgerWith(t, 65_000, 100_000)
	before := l.Snapshot()

	_, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), opening(), fifth, keeper)
	assert.ErrorContains(t, err, "oracle down")
	assert.Equal(t, before, l.Snapshot())
}

func testLiquidateAfterMaturity(t *testing.T) {
	engine, src := newTestEngine("0.03")
	l := ledgerWith(t, 65_000, 100_000)

	out, err := engine.Liquidate(l, margin.DefaultRequirement(), testTerms(), opening(), maturity.AddDate(0, 1, 0), keeper)
	require.NoError(t, err)
	assert.Equal(t, maturity, out.Settlement.Mark.AsOf)
	src.AssertCalled(t, "RateFromTo", created, maturity)
}

func TestAssess(t *testing.T) {
	engine, _ := newTestEngine("0.006")
	req := margin.DefaultRequirement()

	a, err := engine.Assess(ledgerWith(t, 70_000, 69_999), req, testTerms(), opening(), fifth)
	require.NoError(t, err)
	assert.True(t, a.Eligible())
	assert.Equal(t, []common.Side{common.FloatingPayer}, a.Breaching)
	assert.Equal(t, "70000", a.Threshold.String())
	assert.False(t, a.Mark.Due)

	a, err = engine.Assess(ledgerWith(t, 100_000, 100_000), req, testTerms(), opening(), fifth)
	require.NoError(t, err)
	assert.False(t, a.Eligible())
	assert.Empty(t, a.Breaching)
}
