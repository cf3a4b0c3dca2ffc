// Package clock wraps a clockwork.Clock into the two time sources the
// engine needs: a tick counter advancing on the ~262ms cadence spec.md
// calls out, and a 16-bit ISN-low counter standing in for the reference
// firmware's free-running hardware timer (TAR).
package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// TickInterval is the nominal period of one engine tick (spec.md §3/§5).
const TickInterval = 262 * time.Millisecond

// Source drives timer_ticks and isn_high off a clockwork.Clock, real in
// the CLI demo (clockwork.NewRealClock()) and fake in tests
// (clockwork.NewFakeClock()) so retransmission and TIME_WAIT timing can
// be exercised deterministically without sleeping.
type Source struct {
	clock clockwork.Clock
}

// New returns a Source driven by clock. A nil clock is replaced with a
// real clock.
func New(clock clockwork.Clock) *Source {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Source{clock: clock}
}

// Now returns the current time as seen by the underlying clock.
func (s *Source) Now() time.Time { return s.clock.Now() }

// TicksSince returns how many TickInterval periods have elapsed since t,
// truncating towards zero. Engines poll this to advance timer_ticks
// without owning a goroutine of their own.
func (s *Source) TicksSince(t time.Time) uint32 {
	d := s.clock.Since(t)
	if d <= 0 {
		return 0
	}
	return uint32(d / TickInterval)
}

// ISNLow derives the low 16 bits of an Initial Sequence Number from the
// clock's current nanosecond reading, standing in for the reference
// firmware's free-running hardware counter: any source that advances
// faster than the tick and is unlikely to repeat across connections
// satisfies the requirement (spec.md §9).
func (s *Source) ISNLow() uint16 {
	return uint16(s.clock.Now().UnixNano())
}
