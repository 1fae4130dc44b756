package jnicheck

import (
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/metadata"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// isAncestor walks from sub toward the root. valid is false when the walk
// failed; the failure has already gone to the invariant handler.
func (c *Checker) isAncestor(s *Context, op string, sup, sub vm.Ref) (ok, valid bool) {
	ok, err := vm.IsAncestor(c.rt, sup, sub, c.cfg.MaxHierarchyDepth)
	if err != nil {
		c.invariant(s, op, err)
		return false, false
	}
	return ok, true
}

// CheckInstanceOf verifies that obj is exactly an instance of class. Null
// passes.
func (c *Checker) CheckInstanceOf(s *Context, obj, class vm.Ref, index int, site string) bool {
	if c.skip(s) || obj.IsNull() {
		return true
	}
	return c.sameClass(s, obj, class, index, site)
}

// CheckSubclassClass verifies that sup is class or one of its superclasses.
// A null class passes.
func (c *Checker) CheckSubclassClass(s *Context, class, sup vm.Ref, index int, site string) bool {
	if c.skip(s) || class.IsNull() {
		return true
	}
	ok, valid := c.isAncestor(s, "check subclass", sup, class)
	if ok || !valid {
		return true
	}
	return c.report(s, diag.CheckNotAncestor, site, index, uintptr(class),
		"%s is not an ancestor of the class %s at %d'th to %s", sup, class, index, site)
}

// CheckSubclassObject verifies that sup is the class of obj or one of its
// superclasses. Null passes.
func (c *Checker) CheckSubclassObject(s *Context, obj, sup vm.Ref, index int, site string) bool {
	if c.skip(s) || obj.IsNull() {
		return true
	}
	ok, valid := c.isAncestor(s, "check subclass", sup, c.rt.GetObjectClass(obj))
	if ok || !valid {
		return true
	}
	return c.report(s, diag.CheckNotAncestor, site, index, uintptr(obj),
		"%s is not an ancestor of the class of %s at %d'th to %s", sup, obj, index, site)
}

// CheckAssignableClassObject verifies that obj can be stored in a variable
// of type class. Null passes.
func (c *Checker) CheckAssignableClassObject(s *Context, class, obj vm.Ref, index int, site string) bool {
	if c.skip(s) || obj.IsNull() {
		return true
	}
	if c.rt.IsAssignableFrom(c.rt.GetObjectClass(obj), class) {
		return true
	}
	return c.report(s, diag.CheckNotAssignable, site, index, uintptr(obj),
		"%s is not assignable to %s at %d'th to %s", obj, class, index, site)
}

// CheckArrayStore verifies that obj can be stored as an element of array.
// A null array or element passes.
func (c *Checker) CheckArrayStore(s *Context, array, obj vm.Ref, index int, site string) bool {
	if c.skip(s) || array.IsNull() || obj.IsNull() {
		return true
	}
	sig, ok := c.classSignature(s, "check array store", array)
	if !ok {
		return true
	}
	if len(sig) < 2 || sig[0] != metadata.TagArray {
		return c.report(s, diag.CheckNotArray, site, index, uintptr(array),
			"Not an array object at %d'th to %s", index, site)
	}
	if !metadata.IsReferenceTag(sig[1]) {
		return c.report(s, diag.CheckNotObjectArray, site, index, uintptr(array),
			"Not an object array reference at %d'th to %s", index, site)
	}
	elem, err := c.rt.FindClass(metadata.ClassNameOf(sig[1:]))
	if err != nil {
		c.invariant(s, "check array store", err)
		return true
	}
	if c.rt.IsAssignableFrom(c.rt.GetObjectClass(obj), elem) {
		return true
	}
	return c.report(s, diag.CheckNotAssignable, site, index, uintptr(obj),
		"The object %s is not assignable to the array %s at %d'th to %s", obj, array, index, site)
}
