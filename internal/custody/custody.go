package custody

import (
	"errors"
	"sync"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

// ErrCustodyTransferFailed is returned by callers when the custodian refuses a movement.
var ErrCustodyTransferFailed = errors.New("custody transfer failed")

// Custodian moves the settlement token. A false return is a hard failure.
type Custodian interface {
	Approve(owner, spender common.Address, amount wad.Num) bool
	Transfer(from, to common.Address, amount wad.Num) bool
	TransferFrom(spender, from, to common.Address, amount wad.Num) bool
	BalanceOf(holder common.Address) wad.Num
}

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Vault is an in-memory token ledger with ERC20-style allowances.
type Vault struct {
	balances   map[common.Address]wad.Num
	allowances map[allowanceKey]wad.Num
	mu         sync.Mutex
}

func NewVault() *Vault {
	return &Vault{
		balances:   make(map[common.Address]wad.Num),
		allowances: make(map[allowanceKey]wad.Num),
	}
}

// Mint credits holder out of thin air. Used to fund accounts in simulations.
func (v *Vault) Mint(holder common.Address, amount wad.Num) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	bal, err := wad.Add(v.balances[holder], amount)
	if err != nil {
		return err
	}
	v.balances[holder] = bal
	return nil
}

func (v *Vault) Approve(owner, spender common.Address, amount wad.Num) bool {
	if owner == common.ZeroAddress || spender == common.ZeroAddress {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	v.allowances[allowanceKey{owner, spender}] = amount
	return true
}

func (v *Vault) Allowance(owner, spender common.Address) wad.Num {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.allowances[allowanceKey{owner, spender}]
}

func (v *Vault) Transfer(from, to common.Address, amount wad.Num) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.move(from, to, amount)
}

func (v *Vault) TransferFrom(spender, from, to common.Address, amount wad.Num) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	key := allowanceKey{from, spender}
	left, err := wad.Sub(v.allowances[key], amount)
	if err != nil {
		return false
	}
	if !v.move(from, to, amount) {
		return false
	}
	v.allowances[key] = left
	return true
}

func (v *Vault) BalanceOf(holder common.Address) wad.Num {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[holder]
}

func (v *Vault) move(from, to common.Address, amount wad.Num) bool {
	if to == common.ZeroAddress {
		return false
	}
	src, err := wad.Sub(v.balances[from], amount)
	if err != nil {
		return false
	}
	if from == to {
		return true
	}
	dst, err := wad.Add(v.balances[to], amount)
	if err != nil {
		return false
	}
	v.balances[from] = src
	v.balances[to] = dst
	return true
}
