package jnicheck

import (
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// CheckEnvMatch verifies that a call arrived with the env its context was
// started with.
func (c *Checker) CheckEnvMatch(s *Context, env vm.Env, site string) bool {
	if c.skip(s) || env == s.Env {
		return true
	}
	return c.report(s, diag.CheckEnvMismatch, site, 0, uintptr(env),
		"Invalid env (=%s) where the correct value is %s in %s", env, s.Env, site)
}

// CheckNoException verifies that no exception is pending. The exception is
// left pending; the checker never alters program state.
func (c *Checker) CheckNoException(s *Context, site string) bool {
	if c.skip(s) || !c.rt.ExceptionCheck(s.Env) {
		return true
	}
	return c.report(s, diag.CheckPendingException, site, 0, 0,
		"JNI function call with a pending exception: %s", site)
}

// CheckNoCritical verifies that the context is outside every critical
// region.
func (c *Checker) CheckNoCritical(s *Context, site string) bool {
	if c.skip(s) || s.critical == 0 {
		return true
	}
	return c.report(s, diag.CheckCriticalRegion, site, 0, 0,
		"a function call %s in the JNI critical region", site)
}

// CheckNonNull verifies that a handle parameter is neither null nor the
// invalid marker handle.
func (c *Checker) CheckNonNull(s *Context, handle uintptr, index int, site string) bool {
	if c.skip(s) {
		return true
	}
	if handle != 0 && handle != uintptr(vm.InvalidRef) {
		return true
	}
	return c.report(s, diag.CheckNullArgument, site, index, handle,
		"invalid parameter at %d'th to %s", index, site)
}

// EnterCritical records entry into a critical region.
func (c *Checker) EnterCritical(s *Context) {
	s.critical++
}

// LeaveCritical records exit from a critical region. Leaving more regions
// than were entered is an invariant failure.
func (c *Checker) LeaveCritical(s *Context) {
	if s.critical == 0 {
		c.invariant(s, "leave critical", ErrCriticalUnderflow)
		return
	}
	s.critical--
}
