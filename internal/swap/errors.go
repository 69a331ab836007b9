package swap

import (
	"errors"

	"github.com/ignacioaranguren1/lite-irs/internal/custody"
	"github.com/ignacioaranguren1/lite-irs/internal/liquidation"
	"github.com/ignacioaranguren1/lite-irs/internal/margin"
	"github.com/ignacioaranguren1/lite-irs/internal/settlement"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

var (
	ErrInvalidParty       = errors.New("invalid party")
	ErrAlreadyInitialized = errors.New("swap already initialized")
	ErrNotInitialized     = errors.New("swap not initialized")
	ErrNotAParty          = errors.New("caller is not a party to the swap")
	ErrAlreadySettled     = errors.New("swap already settled")
	ErrNotMatured         = errors.New("swap has not reached maturity")
	ErrMatured            = errors.New("swap has reached maturity")
)

// Errors raised by the components the contract drives, re-exported so callers
// can match every failure kind from one package.
var (
	ErrInvalidTerms          = settlement.ErrInvalidTerms
	ErrInvalidTimestamp      = settlement.ErrInvalidTimestamp
	ErrDivisionByZero        = wad.ErrDivisionByZero
	ErrArithmeticOverflow    = wad.ErrArithmeticOverflow
	ErrInsufficientMargin    = margin.ErrInsufficientMargin
	ErrMarginShortfall       = settlement.ErrMarginShortfall
	ErrNotEligible           = liquidation.ErrNotEligible
	ErrCustodyTransferFailed = custody.ErrCustodyTransferFailed
)
