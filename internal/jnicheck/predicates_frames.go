package jnicheck

import (
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
)

// CheckCapacity reports when the innermost tracked frame has no room for
// another local reference. It never changes the frame; see GrowIfNeeded.
func (c *Checker) CheckCapacity(s *Context, site string) bool {
	if c.skip(s) {
		return true
	}
	top := s.Top()
	if top == nil {
		c.invariant(s, "check capacity", ErrNoFrame)
		return true
	}
	if !top.Tracked() || !top.Full() {
		return true
	}
	return c.report(s, diag.CheckFrameCapacity, site, 0, 0,
		"The local references may exceed the current capacity %d in %s", top.Capacity(), site)
}

// EnsureCapacity is the step a dispatch layer runs before a call that
// creates a local reference: it reports a full frame and then doubles it so
// recording can continue. The result is that of CheckCapacity.
func (c *Checker) EnsureCapacity(s *Context, site string) bool {
	ok := c.CheckCapacity(s, site)
	s.GrowIfNeeded()
	return ok
}

// CheckFrameShape verifies, after a native method returns, that the two
// innermost frames are the method's own frame above its dispatch sentinel.
func (c *Checker) CheckFrameShape(s *Context, site string) bool {
	if c.skip(s) {
		return true
	}
	top, below := s.stack.At(0), s.stack.At(1)
	if top != nil && !top.Sentinel() && below != nil && below.Sentinel() {
		return true
	}
	return c.report(s, diag.CheckFrameShape, site, 0, 0,
		"local frame stack is inconsistent in %s", site)
}
