package ven

import (
	"sync/atomic"

	"github.com/temoto/atomic_clock"
)

// Stat is low priority runtime accounting, safe to read at any time.
type Stat struct {
	pollCount    uint32
	pollErrors   uint32
	replyCount   uint32
	controlCount uint32

	LastPoll    atomic_clock.Clock
	LastControl atomic_clock.Clock
}

func (s *Stat) Polls() uint32    { return atomic.LoadUint32(&s.pollCount) }
func (s *Stat) PollErrs() uint32 { return atomic.LoadUint32(&s.pollErrors) }
func (s *Stat) Replies() uint32  { return atomic.LoadUint32(&s.replyCount) }
func (s *Stat) Controls() uint32 { return atomic.LoadUint32(&s.controlCount) }

func (s *Stat) pollOk() {
	atomic.AddUint32(&s.pollCount, 1)
	s.LastPoll.SetNow()
}
func (s *Stat) pollError() { atomic.AddUint32(&s.pollErrors, 1) }
func (s *Stat) replyOk()   { atomic.AddUint32(&s.replyCount, 1) }
func (s *Stat) controlOk() {
	atomic.AddUint32(&s.controlCount, 1)
	s.LastControl.SetNow()
}
