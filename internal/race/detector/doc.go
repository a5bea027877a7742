// Package detector checks the operations a traced cell performs for
// accesses that are not ordered by happens-before.
//
// The Detector implements lazy.Tracer. Each caller carries its identity in
// its context (see package caller) and owns a vector clock. Acquire and
// Release on a sync object move clocks through the object's release clock;
// Read and Write on a plain address are checked against the last write and
// the reads since it, FastTrack style:
//
//   - write-write: the previous write is not before the current write
//   - read-write:  a read since the last write is not before the current write
//   - write-read:  the last write is not before the current read
//
// A conflicting pair is reported once per (kind, address, caller pair).
//
// The checker is timing independent. Two unsynchronized accesses conflict
// even if they happened far apart in wall-clock time, so a cell that never
// showed divergent values in a trial can still be proven racy.
//
// Fork and Join model the spawning and joining of callers, which the cell
// never sees.
//
// Reference: Flanagan & Freund, "FastTrack: Efficient and Precise Dynamic
// Race Detection", PLDI 2009.
package detector
