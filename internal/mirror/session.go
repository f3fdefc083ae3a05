package mirror

import "sync/atomic"

// Session is the per-connection sync state. Only one poll runs at a time;
// a poll that finds another in flight is skipped, not queued.
type Session struct {
	// holder is the generation of the poll holding the session, 0 when free.
	holder atomic.Uint64
	gen    atomic.Uint64
	polls  atomic.Int64
}

func NewSession() *Session {
	return &Session{}
}

// begin claims the session and returns the claim's generation. It reports
// false if a poll is already running.
func (s *Session) begin() (uint64, bool) {
	g := s.gen.Add(1)
	if !s.holder.CompareAndSwap(0, g) {
		return 0, false
	}
	return g, true
}

// end releases the claim made with generation g. A claim that was dropped
// by Reset releases nothing, so it cannot free a newer poll's claim.
func (s *Session) end(g uint64) {
	s.polls.Add(1)
	s.holder.CompareAndSwap(g, 0)
}

// InProgress reports whether a poll currently holds the session.
func (s *Session) InProgress() bool { return s.holder.Load() != 0 }

// Polls counts completed polls since the session started or was reset.
func (s *Session) Polls() int64 { return s.polls.Load() }

// Reset clears the session after a reconnect. A poll still running keeps
// its result but no longer blocks new ones.
func (s *Session) Reset() {
	s.holder.Store(0)
	s.polls.Store(0)
}
