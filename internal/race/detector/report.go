package detector

import (
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/lazycell/internal/race/epoch"
	"github.com/kolkov/lazycell/internal/race/stackdepot"
)

// AccessType represents the type of memory access (Read or Write).
type AccessType int

const (
	// AccessRead indicates a read memory access.
	AccessRead AccessType = iota
	// AccessWrite indicates a write memory access.
	AccessWrite
)

// String returns the string representation of an AccessType.
func (a AccessType) String() string {
	switch a {
	case AccessRead:
		return "Read"
	case AccessWrite:
		return "Write"
	default:
		return "Unknown"
	}
}

// Race type constants for deduplication and reporting.
const (
	// RaceTypeWriteWrite indicates a write-write data race.
	RaceTypeWriteWrite = "write-write"
	// RaceTypeReadWrite indicates a read-write data race.
	RaceTypeReadWrite = "read-write"
	// RaceTypeWriteRead indicates a write-read data race.
	RaceTypeWriteRead = "write-read"
)

// Access describes one side of a race.
type Access struct {
	Type   AccessType
	Addr   uintptr
	Caller int
	Epoch  epoch.Epoch
	// Stack holds the program counters captured at the access.
	Stack []uintptr
}

// Report is a pair of conflicting accesses to the same address, neither of
// which happens before the other.
type Report struct {
	Type     string
	Current  Access
	Previous Access

	// DeduplicationKey is "{type}:{addr}:{caller1}:{caller2}" with the
	// smaller caller first, so A-vs-B and B-vs-A share a key.
	DeduplicationKey string
}

func newReport(raceType string, addr uintptr, previous, current Access) *Report {
	return &Report{
		Type:             raceType,
		Current:          current,
		Previous:         previous,
		DeduplicationKey: deduplicationKey(raceType, addr, previous.Caller, current.Caller),
	}
}

func deduplicationKey(raceType string, addr uintptr, c1, c2 int) string {
	return fmt.Sprintf("%s:0x%x:%d:%d", raceType, addr, min(c1, c2), max(c1, c2))
}

// Format writes the report in the layout of Go's race detector:
//
//	==================
//	WARNING: DATA RACE
//	Write at 0x000000c000012345 by caller 2:
//	  ...stack...
//	  [epoch: 3@2]
//
//	Previous Read at 0x000000c000012345 by caller 1:
//	  ...stack...
//	  [epoch: 2@1]
//	==================
func (r *Report) Format(w io.Writer) {
	_, _ = fmt.Fprintf(w, "==================\n")
	_, _ = fmt.Fprintf(w, "WARNING: DATA RACE\n")
	writeAccess(w, "", r.Current)
	_, _ = fmt.Fprintf(w, "\n")
	writeAccess(w, "Previous ", r.Previous)
	_, _ = fmt.Fprintf(w, "==================\n")
}

func writeAccess(w io.Writer, prefix string, a Access) {
	_, _ = fmt.Fprintf(w, "%s%s at 0x%016x by caller %d:\n", prefix, a.Type, a.Addr, a.Caller)
	_, _ = fmt.Fprint(w, stackdepot.FormatPCs(a.Stack))
	_, _ = fmt.Fprintf(w, "  [epoch: %s]\n", a.Epoch)
}

// String returns the formatted report.
func (r *Report) String() string {
	var buf strings.Builder
	r.Format(&buf)
	return buf.String()
}
