// Package state implements the proxy lifecycle state machine.
//
// The state is a single atomic tag. Everything the orchestrator resolves is
// written before Publish and read only after a gate observes Ready, so the
// one atomic store/load pair is the only synchronization the call path needs.
package state

import (
	"runtime"
	"sync/atomic"
)

// Tag is the lifecycle phase of the proxy.
type Tag int32

const (
	Uninitialized Tag = iota
	Initializing
	Ready
	Failed
)

func (t Tag) String() string {
	switch t {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Settled reports whether the tag is terminal for the process lifetime.
func (t Tag) Settled() bool {
	return t == Ready || t == Failed
}

// State is the process-wide proxy state. The zero value is Uninitialized.
type State struct {
	tag atomic.Int32
}

func New() *State {
	return &State{}
}

// Begin moves Uninitialized to Initializing. It returns false if
// initialization has already begun, which callers treat as a double-init.
func (s *State) Begin() bool {
	return s.tag.CompareAndSwap(int32(Uninitialized), int32(Initializing))
}

// Publish moves Initializing to Ready. Every resolved address must be
// written before this call; gates that observe Ready see all of them.
func (s *State) Publish() bool {
	return s.tag.CompareAndSwap(int32(Initializing), int32(Ready))
}

// Fail moves Initializing to Failed. Failed is terminal.
func (s *State) Fail() bool {
	return s.tag.CompareAndSwap(int32(Initializing), int32(Failed))
}

// Observe returns the current tag without waiting.
func (s *State) Observe() Tag {
	return Tag(s.tag.Load())
}

// Await spins until the state is Ready or Failed and returns the settled
// tag. The attach-notification context forbids blocking primitives, so the
// wait is a busy loop that periodically yields the processor. Once settled
// it returns immediately on every later call.
func (s *State) Await() Tag {
	for i := 0; ; i++ {
		if t := Tag(s.tag.Load()); t.Settled() {
			return t
		}
		if i&63 == 63 {
			runtime.Gosched()
		}
	}
}
