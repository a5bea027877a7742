// Package vectorclock implements vector clocks for tracking happens-before
// relations between the callers of a traced cell.
//
// Key operations:
//   - Join: synchronization (point-wise maximum), applied on acquire
//   - LessOrEqual: happens-before check (partial order)
//
// Callers are identified by small dense integers, so a clock is a slice
// indexed by caller ID that grows on demand.
package vectorclock

import (
	"strconv"
	"strings"
)

// VectorClock represents logical time across callers.
//
// Element i stores the last known clock of caller i. Missing elements are
// zero. The zero value is an empty clock ready to use.
type VectorClock struct {
	c []uint64
}

// New creates an empty vector clock.
func New() *VectorClock {
	return &VectorClock{}
}

// Clone creates a deep copy of the vector clock.
func (vc *VectorClock) Clone() *VectorClock {
	clone := &VectorClock{c: make([]uint64, len(vc.c))}
	copy(clone.c, vc.c)
	return clone
}

// Join performs point-wise maximum: vc = vc ⊔ other.
//
// This is applied when a caller acquires a sync object: the caller's clock
// absorbs the object's release clock.
func (vc *VectorClock) Join(other *VectorClock) {
	if other == nil {
		return
	}
	vc.grow(len(other.c))
	for i, v := range other.c {
		if v > vc.c[i] {
			vc.c[i] = v
		}
	}
}

// LessOrEqual reports whether vc ⊑ other, that is vc[i] <= other[i] for
// every caller i. When it holds, everything vc saw happened before other.
func (vc *VectorClock) LessOrEqual(other *VectorClock) bool {
	for i, v := range vc.c {
		if v > other.Get(i) {
			return false
		}
	}
	return true
}

// Increment advances the clock of caller id.
func (vc *VectorClock) Increment(id int) {
	vc.grow(id + 1)
	vc.c[id]++
}

// Get returns the clock of caller id.
func (vc *VectorClock) Get(id int) uint64 {
	if id < 0 || id >= len(vc.c) {
		return 0
	}
	return vc.c[id]
}

// Set sets the clock of caller id.
func (vc *VectorClock) Set(id int, clock uint64) {
	vc.grow(id + 1)
	vc.c[id] = clock
}

// Len returns the number of caller slots the clock currently spans.
func (vc *VectorClock) Len() int {
	return len(vc.c)
}

// String returns "{id:clock, ...}" listing only non-zero entries.
func (vc *VectorClock) String() string {
	var parts []string
	for i, v := range vc.c {
		if v != 0 {
			parts = append(parts, strconv.Itoa(i)+":"+strconv.FormatUint(v, 10))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (vc *VectorClock) grow(n int) {
	if n <= len(vc.c) {
		return
	}
	if n <= cap(vc.c) {
		vc.c = vc.c[:n]
		return
	}
	c := make([]uint64, n, 2*n)
	copy(c, vc.c)
	vc.c = c
}
