package swap

import (
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/common"
	"github.com/ignacioaranguren1/lite-irs/internal/liquidation"
	"github.com/ignacioaranguren1/lite-irs/internal/logger"
	"github.com/ignacioaranguren1/lite-irs/internal/margin"
	"github.com/ignacioaranguren1/lite-irs/internal/settlement"
	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

// Status is the lifecycle state of a swap.
type Status int

const (
	Uninitialized Status = iota
	Active
	Settled
)

func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Recorder receives committed settlements and liquidations.
type Recorder interface {
	RecordSettlement(swapID string, res *settlement.Result) error
	RecordLiquidation(swapID string, out *liquidation.Outcome) error
}

// Config holds what is fixed before the parties initialize the swap.
type Config struct {
	Account     common.Address // custody account holding the swap's funds
	FixedRate   wad.Num
	Requirement *margin.MarginRequirement
}

// DefaultFixedRate is the reference 3% fixed leg.
func DefaultFixedRate() wad.Num {
	return wad.MustParse("0.03")
}

type Option func(*Contract)

// WithClock replaces time.Now.
func WithClock(clock func() time.Time) Option {
	return func(c *Contract) { c.clock = clock }
}

func WithLogger(log *logger.Logger) Option {
	return func(c *Contract) { c.log = log }
}

// WithRecorder sends committed outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(c *Contract) { c.recorder = r }
}

// State is a read-only view of the swap.
type State struct {
	ID          string
	Status      Status
	Account     common.Address
	Terms       settlement.Terms
	Requirement margin.MarginRequirement

	Parties       [2]margin.PartyAccount // indexed by common.Side
	LastSettledAt time.Time
	Settled       settlement.Accrued // net moved between the legs so far

	Custodied wad.Num
	Deposited wad.Num
	PaidOut   wad.Num
	Residual  wad.Num
}
