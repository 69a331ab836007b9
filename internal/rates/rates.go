package rates

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ignacioaranguren1/lite-irs/internal/wad"
)

var (
	ErrNoFixing        = errors.New("no rate fixing at or before requested time")
	ErrInvalidInterval = errors.New("rate interval end before start")
	ErrNonMonotonic    = errors.New("accrued rate index must not decrease")
)

// Source returns the variable rate accrued over [start, end], WAD scaled.
// For a fixed start the result must not decrease as end grows.
type Source interface {
	RateFromTo(start, end time.Time) (wad.Num, error)
}

// Fixing is one observation of the cumulative accrued index.
type Fixing struct {
	At    time.Time
	Index wad.Num
}

// Feed is an in-memory Source built from cumulative index fixings.
// The rate over an interval is index(end) - index(start), using the latest fixing
// at or before each bound.
type Feed struct {
	fixings []Fixing // sorted by At
	mu      sync.RWMutex
}

func NewFeed(fixings ...Fixing) (*Feed, error) {
	f := &Feed{}
	for _, fx := range fixings {
		if err := f.Publish(fx.At, fx.Index); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Publish records a cumulative index value. Out-of-order publications are accepted
// as long as the index stays non-decreasing in time.
func (f *Feed) Publish(at time.Time, index wad.Num) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	pos := sort.Search(len(f.fixings), func(i int) bool {
		return !f.fixings[i].At.Before(at)
	})
	if pos < len(f.fixings) && f.fixings[pos].At.Equal(at) {
		return fmt.Errorf("fixing at %s already published", at.UTC().Format(time.RFC3339))
	}
	if pos > 0 && index.LT(f.fixings[pos-1].Index) {
		return fmt.Errorf("%w: %s after %s", ErrNonMonotonic, index, f.fixings[pos-1].Index)
	}
	if pos < len(f.fixings) && index.GT(f.fixings[pos].Index) {
		return fmt.Errorf("%w: %s before %s", ErrNonMonotonic, index, f.fixings[pos].Index)
	}

	f.fixings = append(f.fixings, Fixing{})
	copy(f.fixings[pos+1:], f.fixings[pos:])
	f.fixings[pos] = Fixing{At: at, Index: index}
	return nil
}

func (f *Feed) RateFromTo(start, end time.Time) (wad.Num, error) {
	if end.Before(start) {
		return wad.Zero(), ErrInvalidInterval
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	from, err := f.indexAt(start)
	if err != nil {
		return wad.Zero(), err
	}
	to, err := f.indexAt(end)
	if err != nil {
		return wad.Zero(), err
	}
	return wad.Sub(to, from)
}

// Len returns the number of fixings.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.fixings)
}

func (f *Feed) indexAt(t time.Time) (wad.Num, error) {
	pos := sort.Search(len(f.fixings), func(i int) bool {
		return f.fixings[i].At.After(t)
	})
	if pos == 0 {
		return wad.Zero(), fmt.Errorf("%w: %s", ErrNoFixing, t.UTC().Format(time.RFC3339))
	}
	return f.fixings[pos-1].Index, nil
}
