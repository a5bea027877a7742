package syncshadow

import "github.com/kolkov/lazycell/internal/race/vectorclock"

// SyncVar is the shadow state of one sync object.
//
// Releases merge rather than overwrite. An atomic word may be released more
// than once and a later acquirer must see all of those releases.
type SyncVar struct {
	// releaseClock is nil until the first release.
	releaseClock *vectorclock.VectorClock
	releases     int
}

// GetReleaseClock returns the accumulated release clock, or nil if the
// object was never released.
func (sv *SyncVar) GetReleaseClock() *vectorclock.VectorClock {
	return sv.releaseClock
}

// MergeReleaseClock folds vc into the release clock. vc is copied.
func (sv *SyncVar) MergeReleaseClock(vc *vectorclock.VectorClock) {
	sv.releases++
	switch {
	case sv.releaseClock == nil:
		sv.releaseClock = vc.Clone()
	case vc.LessOrEqual(sv.releaseClock):
		// Already covered.
	default:
		sv.releaseClock.Join(vc)
	}
}

// Releases returns how many releases were merged into the SyncVar.
func (sv *SyncVar) Releases() int {
	return sv.releases
}
