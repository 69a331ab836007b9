package liquidation

import (
	"errors"
	"fmt"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/logger"
	"github.com/ignacioaranguren1/lite-irs/internal/margin"
	"github.com/ignacioaranguren1/lite-irs/internal/settlement"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

// ErrNotEligible is returned when both parties hold at least the required margin.
var ErrNotEligible = errors.New("position not eligible for liquidation")

// Outcome (強平結果) records one liquidation.
type Outcome struct {
	ID         string
	Liquidator common.Address
	At         time.Time

	Breaching []common.Side
	Threshold wad.Num

	Fee     wad.Num    // liquidation_fee_ratio * notional
	FeePaid wad.Num    // sent to the liquidator out of custodied funds
	Debited [2]wad.Num // margin each party gave up towards the fee

	// Shortfall is the part of the forced mark the payer could not cover.
	Shortfall  wad.Num
	Settlement *settlement.Result
}

// Engine detects margin breaches and force-closes the swap.
type Engine struct {
	settlement *settlement.Engine
	log        *logger.Logger
}

func NewEngine(settlementEngine *settlement.Engine, log *logger.Logger) *Engine {
	return &Engine{
		settlement: settlementEngine,
		log:        logger.OrDefault(log).WithComponent("liquidation"),
	}
}

// Assessment is a read-only liquidation check.
type Assessment struct {
	Breaching []common.Side
	Threshold wad.Num
	Mark      settlement.Mark // forced mark at the assessment time
}

// Eligible reports whether at least one party breaches.
func (a *Assessment) Eligible() bool {
	return len(a.Breaching) > 0
}

// Assess finds the parties whose margin is below the maintenance threshold at now.
// A party at or above the threshold is never liquidated, even when it cannot cover
// the mark; settling then fails with ErrMarginShortfall until it tops up.
func (e *Engine) Assess(
	ledger *margin.Ledger,
	req *margin.MarginRequirement,
	terms settlement.Terms,
	pos settlement.Position,
	now time.Time,
) (*Assessment, error) {
	threshold, err := req.Threshold(terms.Notional)
	if err != nil {
		return nil, err
	}

	asOf := now
	if asOf.After(terms.MaturityTime) {
		asOf = terms.MaturityTime
	}
	mark, err := e.settlement.Quote(terms, pos, asOf)
	if err != nil {
		return nil, err
	}

	a := &Assessment{Threshold: threshold, Mark: mark}
	for _, side := range common.Sides {
		acc, err := ledger.GetAccount(side)
		if err != nil {
			return nil, err
		}
		if acc.Margin.LT(threshold) {
			a.Breaching = append(a.Breaching, side)
		}
	}
	return a, nil
}

// Liquidate charges the liquidation fee to every breaching party and force-settles the
// swap at min(now, maturity). The full fee is booked as leaving custody for the
// liquidator; the caller performs the matching custody transfer and must restore the
// ledger if that transfer fails.
//
// Each breaching party gives up min(fee, margin). When that and the unallocated pool
// fall short of the fee, the rest comes out of the remaining margins.
//
// When the forced mark exceeds what the payer has left, the payer's entire margin is
// seized for the receiver and the uncovered part is reported as Shortfall.
func (e *Engine) Liquidate(
	ledger *margin.Ledger,
	req *margin.MarginRequirement,
	terms settlement.Terms,
	pos settlement.Position,
	now time.Time,
	liquidator common.Address,
) (*Outcome, error) {
	snap := ledger.Snapshot()
	outcome, err := e.liquidate(ledger, req, terms, pos, now, liquidator)
	if err != nil {
		ledger.Restore(snap)
		return nil, err
	}
	return outcome, nil
}

func (e *Engine) liquidate(
	ledger *margin.Ledger,
	req *margin.MarginRequirement,
	terms settlement.Terms,
	pos settlement.Position,
	now time.Time,
	liquidator common.Address,
) (*Outcome, error) {
	a, err := e.Assess(ledger, req, terms, pos, now)
	if err != nil {
		return nil, err
	}
	if !a.Eligible() {
		return nil, ErrNotEligible
	}

	fee, err := req.LiquidationFee(terms.Notional)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		ID:         common.GenerateLiquidationID(),
		Liquidator: liquidator,
		At:         now,
		Breaching:  a.Breaching,
		Threshold:  a.Threshold,
		Fee:        fee,
		Shortfall:  wad.Zero(),
	}

	// both parties may breach at once; each is charged independently, the fee is paid once
	for _, side := range a.Breaching {
		acc, err := ledger.GetAccount(side)
		if err != nil {
			return nil, err
		}
		charge := wad.Min(fee, acc.Margin)
		if err := ledger.Debit(side, charge); err != nil {
			return nil, err
		}
		outcome.Debited[side] = charge
	}

	if err := e.fundFee(ledger, outcome); err != nil {
		return nil, err
	}
	if err := ledger.PayOut(outcome.FeePaid); err != nil {
		return nil, err
	}

	mark := a.Mark
	if mark.Due {
		payer, err := ledger.GetAccount(mark.Payer)
		if err != nil {
			return nil, err
		}
		if payer.Margin.LT(mark.Amount) {
			outcome.Shortfall, _ = wad.Sub(mark.Amount, payer.Margin)
			mark.Amount = payer.Margin
			mark.Due = !mark.Amount.IsZero()
			e.log.Warn("payer cannot cover forced settlement, seizing remaining margin",
				"liquidation_id", outcome.ID,
				"payer", mark.Payer.String(),
				"seized", mark.Amount.String(),
				"shortfall", outcome.Shortfall.String(),
			)
		}
	}

	res, err := e.settlement.Apply(ledger, mark, true)
	if err != nil {
		return nil, fmt.Errorf("forced settlement: %w", err)
	}
	outcome.Settlement = res

	e.log.Info("position liquidated",
		"liquidation_id", outcome.ID,
		"liquidator", liquidator.Hex(),
		"breaching", sideNames(a.Breaching),
		"fee_paid", outcome.FeePaid.String(),
		"settlement_id", res.ID,
	)
	return outcome, nil
}

// fundFee makes sure the unallocated pool holds the fee, drawing any gap from the
// remaining margins. FeePaid is less than Fee only when custody cannot cover it.
func (e *Engine) fundFee(ledger *margin.Ledger, outcome *Outcome) error {
	residual, err := ledger.Residual()
	if err != nil {
		return err
	}
	gap, short := wad.Delta(residual, outcome.Fee)
	if !short {
		outcome.FeePaid = outcome.Fee
		return nil
	}

	for _, side := range common.Sides {
		if gap.IsZero() {
			break
		}
		acc, err := ledger.GetAccount(side)
		if err != nil {
			return err
		}
		charge := wad.Min(gap, acc.Margin)
		if charge.IsZero() {
			continue
		}
		if err := ledger.Debit(side, charge); err != nil {
			return err
		}
		if outcome.Debited[side], err = wad.Add(outcome.Debited[side], charge); err != nil {
			return err
		}
		gap, _ = wad.Sub(gap, charge)
	}

	outcome.FeePaid, _ = wad.Sub(outcome.Fee, gap)
	if !gap.IsZero() {
		e.log.Warn("custodied funds cannot cover the liquidation fee",
			"liquidation_id", outcome.ID,
			"fee", outcome.Fee.String(),
			"fee_paid", outcome.FeePaid.String(),
		)
	}
	return nil
}

func sideNames(sides []common.Side) []string {
	names := make([]string, 0, len(sides))
	for _, s := range sides {
		names = append(names, s.String())
	}
	return names
}
