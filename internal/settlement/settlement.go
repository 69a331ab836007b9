package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/logger"
	"github.com/ignacioaranguren1/lite-irs/internal/margin"
	"github.com/ignacioaranguren1/lite-irs/internal/rates"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

var (
	ErrMarginShortfall  = errors.New("margin shortfall")
	ErrInvalidTimestamp = errors.New("settlement time outside swap term")
	ErrInvalidTerms     = errors.New("invalid swap terms")
)

// Engine computes mark-to-market between the two legs and realizes it on the ledger.
type Engine struct {
	rates rates.Source
	log   *logger.Logger
}

func NewEngine(src rates.Source, log *logger.Logger) *Engine {
	return &Engine{
		rates: src,
		log:   logger.OrDefault(log).WithComponent("settlement"),
	}
}

// Quote computes what one leg owes the other at asOf. Both legs are accrued from
// creation: the variable rate over [creation, asOf] against the fixed rate pro-rated
// to asOf. What earlier settlements already moved is netted out, so the total that
// changes hands does not depend on how often the swap settles. It never mutates anything.
func (e *Engine) Quote(terms Terms, pos Position, asOf time.Time) (Mark, error) {
	if err := terms.checkWindow(pos.AsOf, asOf); err != nil {
		return Mark{}, err
	}

	v, err := e.rates.RateFromTo(terms.CreationTime, asOf)
	if err != nil {
		return Mark{}, fmt.Errorf("query variable rate: %w", err)
	}
	fixed, err := terms.fixedAccrued(asOf)
	if err != nil {
		return Mark{}, fmt.Errorf("accrue fixed rate: %w", err)
	}

	mark := Mark{
		From:         pos.AsOf,
		AsOf:         asOf,
		VariableRate: v,
		FixedRate:    fixed,
		Settled:      pos.Settled,
		Amount:       wad.Zero(),
	}

	// three-way compare; the rate difference is taken as a magnitude, never a wrapped subtraction
	diff, floatingBelowFixed := wad.Delta(v, fixed)
	mark.Accrued.Payer = common.FixedPayer
	if floatingBelowFixed {
		mark.Accrued.Payer = common.FloatingPayer
	}
	if mark.Accrued.Amount, err = wad.Mul(diff, terms.Notional); err != nil {
		return Mark{}, fmt.Errorf("mark-to-market: %w", err)
	}

	due, err := mark.Accrued.Minus(pos.Settled)
	if err != nil {
		return Mark{}, fmt.Errorf("net earlier settlements: %w", err)
	}
	if !due.Amount.IsZero() {
		mark.Due = true
		mark.Payer, mark.Receiver = due.Payer, due.Payer.Counterparty()
		mark.Amount = due.Amount
	}
	return mark, nil
}

// Apply realizes a mark on the ledger. The payer's margin is debited and the receiver's
// payable balance credited; a payer that cannot cover the full amount fails the whole
// settlement with ErrMarginShortfall and nothing is changed.
//
// A final settlement also releases each party's remaining margin to its own payable
// balance and splits any unallocated residual equally between the two parties.
func (e *Engine) Apply(ledger *margin.Ledger, mark Mark, final bool) (*Result, error) {
	snap := ledger.Snapshot()
	res, err := e.apply(ledger, mark, final)
	if err != nil {
		ledger.Restore(snap)
		return nil, err
	}
	return res, nil
}

// Settle is Quote followed by Apply.
func (e *Engine) Settle(ledger *margin.Ledger, terms Terms, pos Position, asOf time.Time, final bool) (*Result, error) {
	mark, err := e.Quote(terms, pos, asOf)
	if err != nil {
		return nil, err
	}
	return e.Apply(ledger, mark, final)
}

func (e *Engine) apply(ledger *margin.Ledger, mark Mark, final bool) (*Result, error) {
	res := &Result{
		ID:          common.GenerateSettlementID(),
		Mark:        mark,
		Final:       final,
		Transferred: wad.Zero(),
	}

	if mark.Due {
		if err := ledger.Transfer(mark.Payer, mark.Receiver, mark.Amount); err != nil {
			if errors.Is(err, margin.ErrInsufficientMargin) {
				e.log.Warn("settlement blocked by margin shortfall",
					"payer", mark.Payer.String(),
					"amount", mark.Amount.String(),
					"as_of", mark.AsOf,
				)
				return nil, fmt.Errorf("%w: %w", ErrMarginShortfall, err)
			}
			return nil, err
		}
		res.Transferred = mark.Amount
	}

	settled, err := mark.Settled.Plus(Accrued{Payer: mark.Payer, Amount: res.Transferred})
	if err != nil {
		return nil, err
	}
	res.Position = Position{AsOf: mark.AsOf, Settled: settled}

	if final {
		if err := e.close(ledger, res); err != nil {
			return nil, err
		}
	}

	e.log.Info("settlement applied",
		"settlement_id", res.ID,
		"as_of", mark.AsOf,
		"variable_rate", mark.VariableRate.String(),
		"fixed_rate", mark.FixedRate.String(),
		"payer", payerName(mark),
		"amount", res.Transferred.String(),
		"final", final,
	)
	return res, nil
}

// close releases remaining margins and distributes the residual.
func (e *Engine) close(ledger *margin.Ledger, res *Result) error {
	for _, side := range common.Sides {
		released, err := ledger.Release(side)
		if err != nil {
			return err
		}
		res.Released[side] = released
	}

	residual, err := ledger.Residual()
	if err != nil {
		return err
	}
	if residual.IsZero() {
		return nil
	}
	fixedShare, floatingShare := wad.Half(residual)
	res.ResidualShare[common.FixedPayer] = fixedShare
	res.ResidualShare[common.FloatingPayer] = floatingShare
	for _, side := range common.Sides {
		if err := ledger.Pay(side, res.ResidualShare[side]); err != nil {
			return err
		}
	}
	return nil
}

func payerName(mark Mark) string {
	if !mark.Due {
		return "none"
	}
	return mark.Payer.String()
}
