package settlement

import (
	"fmt"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

// Terms are the economic terms of the swap that drive mark-to-market.
type Terms struct {
	Notional     wad.Num
	FixedRate    wad.Num // over the whole term, pro-rated for interim settlements
	CreationTime time.Time
	MaturityTime time.Time
}

// Validate checks notional is positive and the swap has a non-empty term.
func (t Terms) Validate() error {
	if t.Notional.IsZero() {
		return fmt.Errorf("%w: notional must be greater than zero", ErrInvalidTerms)
	}
	if !t.MaturityTime.After(t.CreationTime) {
		return fmt.Errorf("%w: maturity %s not after creation %s", ErrInvalidTerms,
			t.MaturityTime.UTC().Format(time.RFC3339), t.CreationTime.UTC().Format(time.RFC3339))
	}
	return nil
}

func (t Terms) checkWindow(from, asOf time.Time) error {
	if from.Before(t.CreationTime) || asOf.Before(from) || asOf.After(t.MaturityTime) {
		return fmt.Errorf("%w: [%s, %s] not within [%s, %s]", ErrInvalidTimestamp,
			from.UTC().Format(time.RFC3339), asOf.UTC().Format(time.RFC3339),
			t.CreationTime.UTC().Format(time.RFC3339), t.MaturityTime.UTC().Format(time.RFC3339))
	}
	return nil
}

// fixedAccrued is the part of the fixed rate accrued from creation to asOf.
func (t Terms) fixedAccrued(asOf time.Time) (wad.Num, error) {
	if !asOf.Before(t.MaturityTime) {
		return t.FixedRate, nil
	}
	elapsed := asOf.Sub(t.CreationTime)
	term := t.MaturityTime.Sub(t.CreationTime)
	return wad.MulDiv(t.FixedRate, uint64(elapsed), uint64(term))
}

// Accrued is a net amount between the legs: Payer owes Amount to the other party.
// The zero value is nothing owed.
type Accrued struct {
	Payer  common.Side
	Amount wad.Num
}

// Minus returns a - b.
func (a Accrued) Minus(b Accrued) (Accrued, error) {
	if a.Payer == b.Payer {
		diff, negative := wad.Delta(a.Amount, b.Amount)
		if negative {
			return Accrued{Payer: a.Payer.Counterparty(), Amount: diff}, nil
		}
		return Accrued{Payer: a.Payer, Amount: diff}, nil
	}
	sum, err := wad.Add(a.Amount, b.Amount)
	if err != nil {
		return Accrued{}, err
	}
	return Accrued{Payer: a.Payer, Amount: sum}, nil
}

// Plus returns a + b.
func (a Accrued) Plus(b Accrued) (Accrued, error) {
	return a.Minus(Accrued{Payer: b.Payer.Counterparty(), Amount: b.Amount})
}

// Position is what has been settled so far.
type Position struct {
	AsOf    time.Time
	Settled Accrued // net amount moved between the legs up to AsOf
}

// Opening is the position of a swap that has never settled.
func Opening(terms Terms) Position {
	return Position{AsOf: terms.CreationTime}
}

// Mark is what one leg owes the other at AsOf, net of earlier settlements.
type Mark struct {
	From time.Time // previous settlement
	AsOf time.Time

	VariableRate wad.Num // accrued from creation to AsOf
	FixedRate    wad.Num // fixed rate pro-rated from creation to AsOf

	Accrued Accrued // total owed from creation to AsOf
	Settled Accrued // already moved by earlier settlements

	Due      bool        // false when nothing is left to move
	Payer    common.Side // meaningful only when Due
	Receiver common.Side
	Amount   wad.Num
}

// Result describes what a settlement changed on the ledger.
type Result struct {
	ID          string
	Mark        Mark
	Final       bool
	Transferred wad.Num // moved from the payer's margin to the receiver's payable
	Position    Position

	// Set on final settlement, indexed by common.Side.
	Released      [2]wad.Num // remaining margin returned to its owner
	ResidualShare [2]wad.Num // equal share of unallocated pool funds
}
