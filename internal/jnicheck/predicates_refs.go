package jnicheck

import (
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/metadata"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// CheckLive verifies that a non-null reference is recorded in an active
// frame or a global set. Null passes.
func (c *Checker) CheckLive(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) || ref.IsNull() || s.IsLive(ref) {
		return true
	}
	return c.report(s, diag.CheckDeadReference, site, index, uintptr(ref),
		"A dead JNI reference at %d'th to %s", index, site)
}

// sameClass reports wrong_type unless obj is exactly an instance of class.
func (c *Checker) sameClass(s *Context, obj, class vm.Ref, index int, site string) bool {
	if c.rt.IsSameObject(c.rt.GetObjectClass(obj), class) {
		return true
	}
	return c.report(s, diag.CheckWrongType, site, index, uintptr(obj),
		"%s is not right type at %d'th to %s", obj, index, site)
}

// requireRef reports null_argument for a null reference the call cannot
// accept.
func (c *Checker) requireRef(s *Context, ref vm.Ref, index int, site string) bool {
	return c.CheckNonNull(s, uintptr(ref), index, site)
}

// CheckClass verifies that ref is a class object.
func (c *Checker) CheckClass(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) {
		return true
	}
	b, ok := c.builtins(s, "check class")
	if !ok {
		return true
	}
	return c.requireRef(s, ref, index, site) && c.sameClass(s, ref, b.class, index, site)
}

// CheckString verifies that ref is a string.
func (c *Checker) CheckString(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) {
		return true
	}
	b, ok := c.builtins(s, "check string")
	if !ok {
		return true
	}
	return c.requireRef(s, ref, index, site) && c.sameClass(s, ref, b.string, index, site)
}

// CheckThrowable verifies that ref is an instance of Throwable or one of its
// subclasses.
func (c *Checker) CheckThrowable(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) {
		return true
	}
	b, ok := c.builtins(s, "check throwable")
	if !ok {
		return true
	}
	return c.requireRef(s, ref, index, site) && c.CheckSubclassObject(s, ref, b.throwable, index, site)
}

// CheckWeak verifies that ref is a recorded weak global reference.
func (c *Checker) CheckWeak(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) {
		return true
	}
	return c.requireRef(s, ref, index, site) && c.CheckRefType(s, ref, vm.RefWeakGlobal, index, site)
}

// CheckRefType verifies that ref is recorded as the wanted kind of
// reference. Only user-native code is held to this.
func (c *Checker) CheckRefType(s *Context, ref vm.Ref, want vm.RefType, index int, site string) bool {
	if c.skip(s) || s.Mode() != vm.ModeUser {
		return true
	}
	var found bool
	switch want {
	case vm.RefLocal:
		found = s.stack.Contains(ref)
	case vm.RefGlobal:
		found = c.globals.Contains(ref, false)
	case vm.RefWeakGlobal:
		found = c.globals.Contains(ref, true)
	default:
		return true
	}
	if found {
		return true
	}
	return c.report(s, diag.CheckRefType, site, index, uintptr(ref),
		"Not a %s reference in the %d'th parameter to %s", want, index, site)
}

// CheckArray verifies that ref is an array. Null passes.
func (c *Checker) CheckArray(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) || ref.IsNull() || c.rt.IsArrayClass(c.rt.GetObjectClass(ref)) {
		return true
	}
	return c.report(s, diag.CheckNotArray, site, index, uintptr(ref),
		"Not an array object at %d'th to %s", index, site)
}

// CheckPrimitiveArray verifies that ref is an array of the primitive type
// elem ('I' for int[]).
func (c *Checker) CheckPrimitiveArray(s *Context, ref vm.Ref, elem byte, index int, site string) bool {
	if c.skip(s) {
		return true
	}
	b, ok := c.builtins(s, "check primitive array")
	if !ok {
		return true
	}
	class, known := b.arrays[elem]
	if !known {
		c.invariant(s, "check primitive array", ErrBadDescriptor)
		return true
	}
	return c.requireRef(s, ref, index, site) &&
		c.CheckArray(s, ref, index, site) &&
		c.sameClass(s, ref, class, index, site)
}

// classSignature returns the signature of obj's class. A runtime failure is
// an invariant failure and returns false.
func (c *Checker) classSignature(s *Context, op string, obj vm.Ref) (string, bool) {
	sig, err := c.rt.ClassSignature(c.rt.GetObjectClass(obj))
	if err != nil {
		c.invariant(s, op, err)
		return "", false
	}
	return sig, true
}

// CheckAnyPrimitiveArray verifies that ref is a one-dimensional array of
// any primitive type. Null passes.
func (c *Checker) CheckAnyPrimitiveArray(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) || ref.IsNull() {
		return true
	}
	sig, ok := c.classSignature(s, "check primitive array", ref)
	if !ok {
		return true
	}
	if len(sig) == 2 && sig[0] == metadata.TagArray && metadata.IsPrimitiveTag(sig[1]) {
		return true
	}
	return c.report(s, diag.CheckNotPrimitiveArray, site, index, uintptr(ref),
		"The %s is not primitive array at %d'th to %s", ref, index, site)
}

// CheckObjectArray verifies that ref is an array of references. Null
// passes.
func (c *Checker) CheckObjectArray(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) || ref.IsNull() {
		return true
	}
	if !c.CheckArray(s, ref, index, site) {
		return false
	}
	sig, ok := c.classSignature(s, "check object array", ref)
	if !ok {
		return true
	}
	if len(sig) > 1 && metadata.IsReferenceTag(sig[1]) {
		return true
	}
	return c.report(s, diag.CheckNotObjectArray, site, index, uintptr(ref),
		"Not an object array reference at %d'th to %s", index, site)
}

// CheckReflectedMethod verifies that ref is a reflected Method or
// Constructor. Null passes.
func (c *Checker) CheckReflectedMethod(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) || ref.IsNull() {
		return true
	}
	b, ok := c.builtins(s, "check reflected method")
	if !ok {
		return true
	}
	class := c.rt.GetObjectClass(ref)
	if c.rt.IsSameObject(class, b.method) || c.rt.IsSameObject(class, b.constructor) {
		return true
	}
	return c.report(s, diag.CheckWrongType, site, index, uintptr(ref),
		"%s is not right type at %d'th to %s", ref, index, site)
}

// CheckReflectedField verifies that ref is a reflected Field. Null passes.
func (c *Checker) CheckReflectedField(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) || ref.IsNull() {
		return true
	}
	b, ok := c.builtins(s, "check reflected field")
	if !ok {
		return true
	}
	return c.sameClass(s, ref, b.field, index, site)
}

// CheckScalarAllocatable verifies that class can be instantiated directly:
// not an array, interface or abstract class.
func (c *Checker) CheckScalarAllocatable(s *Context, class vm.Ref, index int, site string) bool {
	if c.skip(s) {
		return true
	}
	if !c.requireRef(s, class, index, site) {
		return false
	}
	mods, err := c.rt.ClassModifiers(class)
	if err != nil {
		c.invariant(s, "check scalar class", err)
		return true
	}
	if !c.rt.IsArrayClass(class) && !mods.Has(vm.Interface) && !mods.Has(vm.Abstract) {
		return true
	}
	return c.report(s, diag.CheckNotScalar, site, index, uintptr(class),
		"%s is not scalar class at %d'th to %s", class, index, site)
}

// CheckDirectBuffer verifies that ref is a java.nio.Buffer. Null passes.
func (c *Checker) CheckDirectBuffer(s *Context, ref vm.Ref, index int, site string) bool {
	if c.skip(s) || ref.IsNull() {
		return true
	}
	b, ok := c.builtins(s, "check direct buffer")
	if !ok {
		return true
	}
	return c.CheckSubclassObject(s, ref, b.buffer, index, site)
}
