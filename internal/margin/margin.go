package margin

import (
	"errors"
	"fmt"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

var (
	ErrInsufficientMargin = errors.New("insufficient margin")
	ErrInsufficientPool   = errors.New("insufficient unallocated pool funds")
	ErrUnknownParty       = errors.New("unknown party")
	ErrLedgerImbalance    = errors.New("margin ledger out of balance")
)

// Ledger owns the two parties' balances and the funds custodied for the swap.
//
// Custodied funds are always split into party margins, party payables and an
// unallocated residual:
//
//	custodied = margin(fixed) + margin(floating) + payables + residual
//	deposited = custodied + paidOut
//
// The ledger is not safe for concurrent use. Its owner serializes access.
type Ledger struct {
	parties [2]*PartyAccount

	custodied wad.Num // funds held by the custody account for this swap
	deposited wad.Num // everything ever pulled in
	paidOut   wad.Num // everything ever sent out (withdrawals and fees)
}

// Snapshot is a copy of the ledger used to roll back a failed operation.
type Snapshot struct {
	parties   [2]PartyAccount
	custodied wad.Num
	deposited wad.Num
	paidOut   wad.Num
}

func NewLedger(fixedPayer, floatingPayer common.Address) *Ledger {
	return &Ledger{
		parties: [2]*PartyAccount{
			newPartyAccount(common.FixedPayer, fixedPayer),
			newPartyAccount(common.FloatingPayer, floatingPayer),
		},
	}
}

// =====================================================
// Queries
// =====================================================

// GetAccount returns a copy of a party's account.
func (l *Ledger) GetAccount(side common.Side) (PartyAccount, error) {
	p, err := l.party(side)
	if err != nil {
		return PartyAccount{}, err
	}
	return *p, nil
}

// SideOf resolves an address to the side it plays.
func (l *Ledger) SideOf(addr common.Address) (common.Side, bool) {
	for _, p := range l.parties {
		if p.Address == addr {
			return p.Side, true
		}
	}
	return 0, false
}

// Total returns the sum of both margins.
func (l *Ledger) Total() wad.Num {
	t, _ := wad.Add(l.parties[0].Margin, l.parties[1].Margin)
	return t
}

// Payables returns the sum of both payable balances.
func (l *Ledger) Payables() wad.Num {
	t, _ := wad.Add(l.parties[0].Payable, l.parties[1].Payable)
	return t
}

// Custodied returns the funds currently held for the swap.
func (l *Ledger) Custodied() wad.Num { return l.custodied }

// Deposited returns everything ever pulled into custody.
func (l *Ledger) Deposited() wad.Num { return l.deposited }

// PaidOut returns everything ever sent out of custody.
func (l *Ledger) PaidOut() wad.Num { return l.paidOut }

// Residual returns custodied funds not allocated to any party.
func (l *Ledger) Residual() (wad.Num, error) {
	allocated, err := wad.Add(l.Total(), l.Payables())
	if err != nil {
		return wad.Zero(), err
	}
	r, err := wad.Sub(l.custodied, allocated)
	if err != nil {
		return wad.Zero(), fmt.Errorf("%w: allocated %s exceeds custodied %s", ErrLedgerImbalance, allocated, l.custodied)
	}
	return r, nil
}

// Check verifies conservation of value.
func (l *Ledger) Check() error {
	if _, err := l.Residual(); err != nil {
		return err
	}
	total, err := wad.Add(l.custodied, l.paidOut)
	if err != nil {
		return err
	}
	if !total.EQ(l.deposited) {
		return fmt.Errorf("%w: custodied %s + paid out %s != deposited %s",
			ErrLedgerImbalance, l.custodied, l.paidOut, l.deposited)
	}
	return nil
}

// =====================================================
// Margin movements
// =====================================================

// Fund records margin pulled into custody for a party.
func (l *Ledger) Fund(side common.Side, amount wad.Num) error {
	p, err := l.party(side)
	if err != nil {
		return err
	}
	margin, err := wad.Add(p.Margin, amount)
	if err != nil {
		return err
	}
	custodied, err := wad.Add(l.custodied, amount)
	if err != nil {
		return err
	}
	deposited, err := wad.Add(l.deposited, amount)
	if err != nil {
		return err
	}
	p.Margin, l.custodied, l.deposited = margin, custodied, deposited
	p.UpdatedAt = time.Now()
	return nil
}

// Debit removes amount from a party's margin. The removed value stays in custody
// as residual until it is paid or distributed.
func (l *Ledger) Debit(side common.Side, amount wad.Num) error {
	p, err := l.party(side)
	if err != nil {
		return err
	}
	if p.Margin.LT(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientMargin, side, p.Margin, amount)
	}
	p.Margin, _ = wad.Sub(p.Margin, amount)
	p.UpdatedAt = time.Now()
	return nil
}

// Credit adds amount to a party's margin.
func (l *Ledger) Credit(side common.Side, amount wad.Num) error {
	p, err := l.party(side)
	if err != nil {
		return err
	}
	margin, err := wad.Add(p.Margin, amount)
	if err != nil {
		return err
	}
	p.Margin = margin
	p.UpdatedAt = time.Now()
	return nil
}

// Transfer moves amount from one party's margin to the other party's payable balance.
func (l *Ledger) Transfer(from, to common.Side, amount wad.Num) error {
	if err := l.Debit(from, amount); err != nil {
		return err
	}
	return l.Pay(to, amount)
}

// Pay adds amount to a party's payable balance.
func (l *Ledger) Pay(side common.Side, amount wad.Num) error {
	p, err := l.party(side)
	if err != nil {
		return err
	}
	payable, err := wad.Add(p.Payable, amount)
	if err != nil {
		return err
	}
	p.Payable = payable
	p.UpdatedAt = time.Now()
	return nil
}

// Release moves a party's whole remaining margin to its payable balance.
func (l *Ledger) Release(side common.Side) (wad.Num, error) {
	p, err := l.party(side)
	if err != nil {
		return wad.Zero(), err
	}
	amount := p.Margin
	if err := l.Transfer(side, side, amount); err != nil {
		return wad.Zero(), err
	}
	return amount, nil
}

// =====================================================
// Custody outflows
// =====================================================

// Claim zeroes a party's payable balance and books it as paid out.
// The caller performs the matching custody transfer.
func (l *Ledger) Claim(side common.Side) (wad.Num, error) {
	p, err := l.party(side)
	if err != nil {
		return wad.Zero(), err
	}
	amount := p.Payable
	custodied, err := wad.Sub(l.custodied, amount)
	if err != nil {
		return wad.Zero(), fmt.Errorf("%w: %v", ErrLedgerImbalance, err)
	}
	paidOut, err := wad.Add(l.paidOut, amount)
	if err != nil {
		return wad.Zero(), err
	}
	p.Payable = wad.Zero()
	p.UpdatedAt = time.Now()
	l.custodied, l.paidOut = custodied, paidOut
	return amount, nil
}

// PayOut books amount leaving custody from the unallocated residual.
func (l *Ledger) PayOut(amount wad.Num) error {
	residual, err := l.Residual()
	if err != nil {
		return err
	}
	if residual.LT(amount) {
		return fmt.Errorf("%w: residual %s, needs %s", ErrInsufficientPool, residual, amount)
	}
	l.custodied, _ = wad.Sub(l.custodied, amount)
	paidOut, err := wad.Add(l.paidOut, amount)
	if err != nil {
		return err
	}
	l.paidOut = paidOut
	return nil
}

// =====================================================
// Rollback
// =====================================================

func (l *Ledger) Snapshot() Snapshot {
	return Snapshot{
		parties:   [2]PartyAccount{*l.parties[0], *l.parties[1]},
		custodied: l.custodied,
		deposited: l.deposited,
		paidOut:   l.paidOut,
	}
}

func (l *Ledger) Restore(s Snapshot) {
	*l.parties[0] = s.parties[0]
	*l.parties[1] = s.parties[1]
	l.custodied, l.deposited, l.paidOut = s.custodied, s.deposited, s.paidOut
}

// =====================================================
// tool methods
// =====================================================

func (l *Ledger) party(side common.Side) (*PartyAccount, error) {
	switch side {
	case common.FixedPayer, common.FloatingPayer:
		return l.parties[side], nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownParty, side)
	}
}
