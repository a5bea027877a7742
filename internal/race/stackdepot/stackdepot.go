// Package stackdepot captures call stacks and stores each distinct stack
// once, keyed by a hash of its program counters.
//
// Every traced access records a stack so that a race report can show where
// both conflicting accesses happened. Accesses from the same call site
// share one entry.
package stackdepot

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
)

// MaxFrames is the maximum number of frames kept per stack.
const MaxFrames = 16

// Depot stores deduplicated stacks. The zero value is ready to use and safe
// for concurrent use.
type Depot struct {
	stacks sync.Map // uint64 -> []uintptr
}

// Capture records the stack of its caller, skipping skip additional frames,
// and returns its hash. 0 means nothing was captured.
func (d *Depot) Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	hash := hashStack(pcs[:n])
	if _, ok := d.stacks.Load(hash); !ok {
		stack := make([]uintptr, n)
		copy(stack, pcs[:n])
		d.stacks.LoadOrStore(hash, stack)
	}
	return hash
}

// Get returns the program counters stored under hash.
func (d *Depot) Get(hash uint64) []uintptr {
	if hash == 0 {
		return nil
	}
	v, ok := d.stacks.Load(hash)
	if !ok {
		return nil
	}
	return v.([]uintptr)
}

// Format renders the stack stored under hash in the layout Go's race
// detector uses, dropping runtime and checker frames.
func (d *Depot) Format(hash uint64) string {
	return FormatPCs(d.Get(hash))
}

// FormatPCs renders program counters as
//
//	pkg.function()
//	    /path/to/file.go:15
func FormatPCs(pcs []uintptr) string {
	if len(pcs) == 0 {
		return "  (no stack trace available)\n"
	}

	var buf strings.Builder
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if !skipFrame(frame.Function) {
			fmt.Fprintf(&buf, "  %s()\n      %s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}

	if buf.Len() == 0 {
		return "  (all frames filtered)\n"
	}
	return buf.String()
}

func skipFrame(fn string) bool {
	return strings.HasPrefix(fn, "runtime.") ||
		strings.Contains(fn, "/internal/race/detector.(*Detector).")
}

func hashStack(pcs []uintptr) uint64 {
	h := fnv.New64a()
	var b [8]byte
	for _, pc := range pcs {
		binary.LittleEndian.PutUint64(b[:], uint64(pc))
		_, _ = h.Write(b[:])
	}
	return h.Sum64()
}
