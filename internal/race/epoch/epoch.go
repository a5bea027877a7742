// Package epoch implements compact logical timestamps for the happens-before
// checker.
//
// An Epoch is one caller's logical time, c@t, packed into 64 bits:
//   - Top 16 bits: caller ID
//   - Bottom 48 bits: clock value
//
// Checking an epoch against a vector clock is a single comparison, which is
// all a last-write record needs.
package epoch

import (
	"strconv"

	"github.com/kolkov/lazycell/internal/race/vectorclock"
)

// Epoch is a 64-bit logical timestamp encoding a caller ID and a clock.
// Layout: [Caller:16][Clock:48]. The zero Epoch means "no access".
type Epoch uint64

const (
	// CallerBits is the number of bits allocated for the caller ID.
	CallerBits = 16

	// ClockBits is the number of bits allocated for the clock value.
	ClockBits = 48

	// ClockMask extracts the clock value.
	ClockMask = (1 << ClockBits) - 1

	// MaxCaller is the largest caller ID that fits in an Epoch.
	MaxCaller = (1 << CallerBits) - 1
)

// New creates an epoch from a caller ID and clock value. Clock values beyond
// 48 bits are truncated.
func New(caller uint16, clock uint64) Epoch {
	return Epoch(uint64(caller)<<ClockBits | (clock & ClockMask))
}

// Decode extracts the caller ID and clock value.
func (e Epoch) Decode() (caller uint16, clock uint64) {
	//nolint:gosec // G115: top 16 bits are the caller by construction.
	caller = uint16(e >> ClockBits)
	clock = uint64(e) & ClockMask
	return
}

// Caller returns the caller ID of e.
func (e Epoch) Caller() int {
	c, _ := e.Decode()
	return int(c)
}

// HappensBefore reports whether e happened before the moment described by
// vc, i.e. e's clock is <= vc[e's caller].
func (e Epoch) HappensBefore(vc *vectorclock.VectorClock) bool {
	c, clock := e.Decode()
	return clock <= vc.Get(int(c))
}

// IsZero reports whether e records no access.
func (e Epoch) IsZero() bool {
	return e == 0
}

// String returns "clock@caller", e.g. "42@5".
func (e Epoch) String() string {
	c, clock := e.Decode()
	return strconv.FormatUint(clock, 10) + "@" + strconv.Itoa(int(c))
}
