package swap

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/custody"
	"github.com/ignacioaranguren1/lite-irs/internal/liquidation"
	"github.com/ignacioaranguren1/lite-irs/internal/logger"
	"github.com/ignacioaranguren1/lite-irs/internal/margin"
	"github.com/ignacioaranguren1/lite-irs/internal/rates"
	"github.com/ignacioaranguren1/lite-irs/internal/settlement"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

// Contract is a single fixed-for-floating swap between two parties.
//
// Every entry point runs under one lock and either completes or leaves the swap
// exactly as it found it.
type Contract struct {
	id          string
	account     common.Address
	fixedRate   wad.Num
	requirement margin.MarginRequirement

	custody     custody.Custodian
	settlement  *settlement.Engine
	liquidation *liquidation.Engine
	recorder    Recorder
	clock       func() time.Time
	log         *logger.Logger

	status   Status
	terms    settlement.Terms
	ledger   *margin.Ledger
	position settlement.Position

	mu sync.Mutex
}

// New creates an uninitialized swap. The parties call Init to activate it.
func New(cfg Config, custodian custody.Custodian, src rates.Source, opts ...Option) (*Contract, error) {
	if cfg.Account == common.ZeroAddress {
		return nil, fmt.Errorf("%w: custody account is the zero address", ErrInvalidParty)
	}
	req := cfg.Requirement
	if req == nil {
		req = margin.DefaultRequirement()
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTerms, err)
	}

	c := &Contract{
		id:          common.GenerateSwapID(),
		account:     cfg.Account,
		fixedRate:   cfg.FixedRate,
		requirement: *req,
		custody:     custodian,
		clock:       time.Now,
		status:      Uninitialized,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = logger.OrDefault(c.log).WithFields(map[string]interface{}{"swap_id": c.id})
	c.settlement = settlement.NewEngine(src, c.log)
	c.liquidation = liquidation.NewEngine(c.settlement, c.log)
	return c, nil
}

func (c *Contract) ID() string { return c.id }

// Init sets the swap terms and pulls the initial margin from both parties.
// Both pulls succeed or neither is kept.
func (c *Contract) Init(caller, fixedPayer, floatingPayer common.Address, notional wad.Num, maturity time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.status {
	case Active:
		return ErrAlreadyInitialized
	case Settled:
		return ErrAlreadySettled
	}

	if fixedPayer == common.ZeroAddress || floatingPayer == common.ZeroAddress {
		return fmt.Errorf("%w: zero address", ErrInvalidParty)
	}
	if fixedPayer == floatingPayer {
		return fmt.Errorf("%w: both legs held by %s", ErrInvalidParty, fixedPayer.Hex())
	}
	if caller != fixedPayer && caller != floatingPayer {
		return ErrNotAParty
	}

	now := c.clock()
	terms := settlement.Terms{
		Notional:     notional,
		FixedRate:    c.fixedRate,
		CreationTime: now,
		MaturityTime: maturity,
	}
	if err := terms.Validate(); err != nil {
		return err
	}
	initialMargin, err := c.requirement.InitialMargin(notional)
	if err != nil {
		return err
	}

	ledger := margin.NewLedger(fixedPayer, floatingPayer)
	if err := ledger.Fund(common.FixedPayer, initialMargin); err != nil {
		return err
	}
	if err := ledger.Fund(common.FloatingPayer, initialMargin); err != nil {
		return err
	}

	if !c.custody.TransferFrom(c.account, fixedPayer, c.account, initialMargin) {
		return fmt.Errorf("%w: pull initial margin from %s", ErrCustodyTransferFailed, fixedPayer.Hex())
	}
	if !c.custody.TransferFrom(c.account, floatingPayer, c.account, initialMargin) {
		pullErr := fmt.Errorf("%w: pull initial margin from %s", ErrCustodyTransferFailed, floatingPayer.Hex())
		if !c.custody.Transfer(c.account, fixedPayer, initialMargin) {
			c.log.Error("failed to refund initial margin",
				"party", fixedPayer.Hex(),
				"amount", initialMargin.String(),
			)
			return errors.Join(pullErr, fmt.Errorf("%w: refund %s of initial margin to %s",
				ErrCustodyTransferFailed, initialMargin, fixedPayer.Hex()))
		}
		return pullErr
	}

	c.terms = terms
	c.ledger = ledger
	c.position = settlement.Opening(terms)
	c.status = Active

	c.log.Info("swap initialized",
		"fixed_payer", fixedPayer.Hex(),
		"floating_payer", floatingPayer.Hex(),
		"notional", notional.String(),
		"fixed_rate", c.fixedRate.String(),
		"initial_margin", initialMargin.String(),
		"maturity", maturity,
	)
	return nil
}

// SettleAtMaturity runs the final settlement once maturity has been reached.
func (c *Contract) SettleAtMaturity(caller common.Address) (*settlement.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive(); err != nil {
		return nil, err
	}
	if _, err := c.authorize(caller); err != nil {
		return nil, err
	}
	if c.clock().Before(c.terms.MaturityTime) {
		return nil, ErrNotMatured
	}

	res, err := c.settlement.Settle(c.ledger, c.terms, c.position, c.terms.MaturityTime, true)
	if err != nil {
		return nil, err
	}

	c.position = res.Position
	c.status = Settled
	c.record(func(r Recorder) error { return r.RecordSettlement(c.id, res) })
	return res, nil
}

// SettlePeriod settles what has accrued so far without closing the swap. Settling
// more often moves money earlier, never more of it. A payer that cannot cover the
// amount fails with ErrMarginShortfall.
func (c *Contract) SettlePeriod(caller common.Address) (*settlement.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive(); err != nil {
		return nil, err
	}
	if _, err := c.authorize(caller); err != nil {
		return nil, err
	}
	now := c.clock()
	if !now.Before(c.terms.MaturityTime) {
		return nil, ErrMatured
	}
	if !now.After(c.position.AsOf) {
		return nil, fmt.Errorf("%w: already settled as of %s", ErrInvalidTimestamp,
			c.position.AsOf.UTC().Format(time.RFC3339))
	}

	res, err := c.settlement.Settle(c.ledger, c.terms, c.position, now, false)
	if err != nil {
		return nil, err
	}

	c.position = res.Position
	c.record(func(r Recorder) error { return r.RecordSettlement(c.id, res) })
	return res, nil
}

// TopUp pulls additional margin from the caller into the swap.
func (c *Contract) TopUp(caller common.Address, amount wad.Num) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive(); err != nil {
		return err
	}
	side, err := c.authorize(caller)
	if err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}

	snap := c.ledger.Snapshot()
	if err := c.ledger.Fund(side, amount); err != nil {
		return err
	}
	if !c.custody.TransferFrom(c.account, caller, c.account, amount) {
		c.ledger.Restore(snap)
		return fmt.Errorf("%w: pull margin top-up from %s", ErrCustodyTransferFailed, caller.Hex())
	}

	c.log.Info("margin topped up", "party", side.String(), "amount", amount.String())
	return nil
}

// Liquidate force-closes an under-margined swap. Anyone may call it; the caller
// receives the liquidation fee. A successful liquidation terminates the swap.
func (c *Contract) Liquidate(caller common.Address) (*liquidation.Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive(); err != nil {
		return nil, err
	}
	if caller == common.ZeroAddress {
		return nil, fmt.Errorf("%w: liquidator is the zero address", ErrInvalidParty)
	}

	snap := c.ledger.Snapshot()
	out, err := c.liquidation.Liquidate(c.ledger, &c.requirement, c.terms, c.position, c.clock(), caller)
	if err != nil {
		return nil, err
	}
	if !out.FeePaid.IsZero() && !c.custody.Transfer(c.account, caller, out.FeePaid) {
		c.ledger.Restore(snap)
		return nil, fmt.Errorf("%w: pay liquidation fee to %s", ErrCustodyTransferFailed, caller.Hex())
	}

	c.position = out.Settlement.Position
	c.status = Settled
	c.record(func(r Recorder) error { return r.RecordLiquidation(c.id, out) })
	return out, nil
}

// Withdraw pays the caller everything the swap owes it. Allowed once settled.
func (c *Contract) Withdraw(caller common.Address) (wad.Num, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == Uninitialized {
		return wad.Zero(), ErrNotInitialized
	}
	side, err := c.authorize(caller)
	if err != nil {
		return wad.Zero(), err
	}

	snap := c.ledger.Snapshot()
	amount, err := c.ledger.Claim(side)
	if err != nil {
		return wad.Zero(), err
	}
	if amount.IsZero() {
		return amount, nil
	}
	if !c.custody.Transfer(c.account, caller, amount) {
		c.ledger.Restore(snap)
		return wad.Zero(), fmt.Errorf("%w: withdraw to %s", ErrCustodyTransferFailed, caller.Hex())
	}

	c.log.Info("payable withdrawn", "party", side.String(), "amount", amount.String())
	return amount, nil
}

// MarkToMarket quotes what would change hands if the swap settled now.
func (c *Contract) MarkToMarket() (settlement.Mark, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive(); err != nil {
		return settlement.Mark{}, err
	}
	asOf := c.clock()
	if asOf.After(c.terms.MaturityTime) {
		asOf = c.terms.MaturityTime
	}
	return c.settlement.Quote(c.terms, c.position, asOf)
}

// IsParty reports whether addr is one of the two counterparties.
func (c *Contract) IsParty(addr common.Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ledger == nil {
		return false
	}
	_, ok := c.ledger.SideOf(addr)
	return ok
}

// State returns a snapshot view of the swap.
func (c *Contract) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{
		ID:            c.id,
		Status:        c.status,
		Account:       c.account,
		Terms:         c.terms,
		Requirement:   c.requirement,
		LastSettledAt: c.position.AsOf,
		Settled:       c.position.Settled,
	}
	if c.ledger == nil {
		return st
	}
	for _, side := range common.Sides {
		st.Parties[side], _ = c.ledger.GetAccount(side)
	}
	st.Custodied = c.ledger.Custodied()
	st.Deposited = c.ledger.Deposited()
	st.PaidOut = c.ledger.PaidOut()
	st.Residual, _ = c.ledger.Residual()
	return st
}

// Audit checks conservation of value on the ledger and that the custody account
// holds at least what the ledger says it holds.
func (c *Contract) Audit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ledger == nil {
		return nil
	}
	if err := c.ledger.Check(); err != nil {
		return err
	}
	if held := c.custody.BalanceOf(c.account); held.LT(c.ledger.Custodied()) {
		return fmt.Errorf("%w: custody holds %s, ledger expects %s",
			margin.ErrLedgerImbalance, held, c.ledger.Custodied())
	}
	return nil
}

// =====================================================
// private func
// =====================================================

func (c *Contract) requireActive() error {
	switch c.status {
	case Uninitialized:
		return ErrNotInitialized
	case Settled:
		return ErrAlreadySettled
	default:
		return nil
	}
}

func (c *Contract) authorize(caller common.Address) (common.Side, error) {
	side, ok := c.ledger.SideOf(caller)
	if !ok {
		return 0, ErrNotAParty
	}
	return side, nil
}

func (c *Contract) record(write func(Recorder) error) {
	if c.recorder == nil {
		return
	}
	if err := write(c.recorder); err != nil {
		c.log.Error("failed to record swap event", "error", err)
	}
}
