package syncshadow

// SyncShadow maps sync object addresses to their SyncVar.
type SyncShadow struct {
	vars map[uintptr]*SyncVar
}

// NewSyncShadow returns an empty SyncShadow.
func NewSyncShadow() *SyncShadow {
	return &SyncShadow{vars: make(map[uintptr]*SyncVar)}
}

// GetOrCreate returns the SyncVar for addr, allocating it on first access.
func (s *SyncShadow) GetOrCreate(addr uintptr) *SyncVar {
	if sv, ok := s.vars[addr]; ok {
		return sv
	}
	sv := &SyncVar{}
	s.vars[addr] = sv
	return sv
}

// Lookup returns the SyncVar for addr without creating one.
func (s *SyncShadow) Lookup(addr uintptr) (*SyncVar, bool) {
	sv, ok := s.vars[addr]
	return sv, ok
}

// Len returns the number of tracked sync objects.
func (s *SyncShadow) Len() int {
	return len(s.vars)
}

// Reset forgets all sync objects.
func (s *SyncShadow) Reset() {
	s.vars = make(map[uintptr]*SyncVar)
}
