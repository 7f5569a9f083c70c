package vector

import "sync/atomic"

// Handle holds the active snapshot. Readers get a consistent view while a
// new snapshot is built and swapped in.
type Handle struct {
	current atomic.Pointer[Snapshot]
}

// NewHandle returns a handle with no active snapshot.
func NewHandle() *Handle {
	return &Handle{}
}

// Snapshot returns the active snapshot, or ok=false when none has been
// installed yet.
func (h *Handle) Snapshot() (*Snapshot, bool) {
	s := h.current.Load()
	return s, s != nil
}

// Swap installs a new snapshot, replacing the previous one for all
// subsequent readers.
func (h *Handle) Swap(s *Snapshot) {
	h.current.Store(s)
}
