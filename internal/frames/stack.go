// Package frames implements the per-context stack of local reference frames.
//
// A Stack is owned by exactly one call context and is never shared, so it
// carries no locking.
package frames

import (
	"fmt"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// Frame is one scoped set of local references.
type Frame struct {
	refs     []vm.Ref
	capacity int
	sentinel bool
}

// Capacity returns the number of references the frame may record.
func (f *Frame) Capacity() int { return f.capacity }

// Len returns the number of recorded references.
func (f *Frame) Len() int { return len(f.refs) }

// Sentinel reports whether the frame marks a call-dispatch boundary.
func (f *Frame) Sentinel() bool { return f.sentinel }

// Tracked reports whether the frame records references at all. Frames
// entered with capacity <= 0 are managed by the runtime and record nothing.
func (f *Frame) Tracked() bool { return f.capacity > 0 }

// Full reports whether the next Add would be dropped.
func (f *Frame) Full() bool { return len(f.refs) >= f.capacity }

// Refs returns a copy of the recorded references in insertion order.
func (f *Frame) Refs() []vm.Ref {
	out := make([]vm.Ref, len(f.refs))
	copy(out, f.refs)
	return out
}

// Contains reports whether ref is recorded, scanning newest first.
func (f *Frame) Contains(ref vm.Ref) bool {
	for i := len(f.refs) - 1; i >= 0; i-- {
		if f.refs[i] == ref {
			return true
		}
	}
	return false
}

// Grow doubles the frame capacity, keeping every recorded reference in
// order, and returns the new capacity. Untracked frames do not grow.
func (f *Frame) Grow() int {
	if !f.Tracked() {
		return f.capacity
	}
	grown := make([]vm.Ref, len(f.refs), f.capacity*2)
	copy(grown, f.refs)
	f.refs = grown
	f.capacity *= 2
	return f.capacity
}

func (f *Frame) String() string {
	return fmt.Sprintf("frame(len=%d cap=%d sentinel=%t)", len(f.refs), f.capacity, f.sentinel)
}

// Stack is a LIFO of frames; index len-1 is the top.
type Stack struct {
	frames []*Frame
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{}
}

// Enter pushes a new frame. capacity <= 0 creates an untracked frame.
func (s *Stack) Enter(capacity int, sentinel bool) *Frame {
	f := &Frame{capacity: capacity, sentinel: sentinel}
	if capacity > 0 {
		f.refs = make([]vm.Ref, 0, capacity)
	}
	s.frames = append(s.frames, f)
	return f
}

// Leave pops the top frame and discards its references.
func (s *Stack) Leave() error {
	n := len(s.frames)
	if n == 0 {
		return ErrStackUnderflow
	}
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]
	return nil
}

// Add records ref in the top frame. It returns false when there is no frame,
// the frame is untracked, or the frame is at capacity; capacity growth is the
// caller's job.
func (s *Stack) Add(ref vm.Ref) bool {
	top := s.Top()
	if top == nil || top.Full() {
		return false
	}
	top.refs = append(top.refs, ref)
	return true
}

// Delete removes the newest matching entry from the top frame, preserving the
// order of the rest.
func (s *Stack) Delete(ref vm.Ref) bool {
	top := s.Top()
	if top == nil {
		return false
	}
	for i := len(top.refs) - 1; i >= 0; i-- {
		if top.refs[i] == ref {
			top.refs = append(top.refs[:i], top.refs[i+1:]...)
			return true
		}
	}
	return false
}

// Contains scans every frame from the top toward the root.
func (s *Stack) Contains(ref vm.Ref) bool {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if s.frames[i].Contains(ref) {
			return true
		}
	}
	return false
}

// Top returns the innermost frame, or nil.
func (s *Stack) Top() *Frame {
	return s.At(0)
}

// At returns the frame depth levels below the top (0 is the top), or nil.
func (s *Stack) At(depth int) *Frame {
	i := len(s.frames) - 1 - depth
	if depth < 0 || i < 0 {
		return nil
	}
	return s.frames[i]
}

// Depth returns the number of frames.
func (s *Stack) Depth() int { return len(s.frames) }
