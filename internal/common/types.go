package common

import (
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Address identifies a payable account: a party, a liquidator or the swap's custody account.
type Address = ethcommon.Address

// ZeroAddress is never a valid party.
var ZeroAddress = Address{}

// HexToAddress parses a 0x-prefixed hex account reference.
func HexToAddress(s string) Address {
	return ethcommon.HexToAddress(s)
}

// IsHexAddress reports whether s is a well formed hex account reference.
func IsHexAddress(s string) bool {
	return ethcommon.IsHexAddress(s)
}

// Side names one of the two counterparties of a swap.
type Side int

const (
	FixedPayer Side = iota
	FloatingPayer
)

func (s Side) String() string {
	switch s {
	case FixedPayer:
		return "fixed_payer"
	case FloatingPayer:
		return "floating_payer"
	default:
		return "unknown"
	}
}

// Counterparty returns the other side.
func (s Side) Counterparty() Side {
	if s == FixedPayer {
		return FloatingPayer
	}
	return FixedPayer
}

// Sides lists both parties in a fixed order.
var Sides = [2]Side{FixedPayer, FloatingPayer}
