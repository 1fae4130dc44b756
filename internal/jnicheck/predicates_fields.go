package jnicheck

import (
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/metadata"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// fieldClass returns the class a field is looked up through: the class
// itself for static access, the object's class otherwise.
func (c *Checker) fieldClass(target vm.Ref, static bool) vm.Ref {
	if static {
		return target
	}
	return c.rt.GetObjectClass(target)
}

// fieldRecord resolves fid through class. A nil record with ok true means
// the check passes without looking further: the identifier is unknown in
// system-native mode, or the lookup failed internally.
func (c *Checker) fieldRecord(s *Context, class vm.Ref, fid vm.FieldID, static bool, site string) (*metadata.FieldRecord, bool) {
	rec, found, err := c.cache.LookupField(class, fid, static)
	if err != nil {
		c.invariant(s, "lookup field", err)
		return nil, true
	}
	if found {
		return rec, true
	}
	if s.Mode() == vm.ModeSystem {
		return nil, true
	}
	return nil, c.report(s, diag.CheckInvalidField, site, 0, uintptr(fid),
		"An invalid fieldID %s to %s", fid, site)
}

func (c *Checker) fieldKind(s *Context, rec *metadata.FieldRecord, static bool, site string) bool {
	switch {
	case static && !rec.Static:
		return c.report(s, diag.CheckFieldKind, site, 0, uintptr(rec.ID),
			"An instance fieldID %s when a static field is expected in %s", rec.ID, site)
	case !static && rec.Static:
		return c.report(s, diag.CheckFieldKind, site, 0, uintptr(rec.ID),
			"A static fieldID %s when an instance field is expected in %s", rec.ID, site)
	}
	return true
}

// fieldType compares the accessor's value tag with the field type. Every
// reference field is accessed with TagObject.
func (c *Checker) fieldType(s *Context, rec *metadata.FieldRecord, vt byte, direction, site string) bool {
	tag := rec.Tag()
	if metadata.IsPrimitiveTag(tag) {
		if tag == vt {
			return true
		}
		return c.report(s, diag.CheckFieldType, site, 0, uintptr(rec.ID),
			"The type of fieldID %s (=%s) does not match the %s type of %s",
			rec.ID, metadata.PrimitiveName(tag), direction, site)
	}
	if vt == metadata.TagObject {
		return true
	}
	return c.report(s, diag.CheckFieldType, site, 0, uintptr(rec.ID),
		"The type of fieldID %s (=%s) does not match the %s type of %s",
		rec.ID, rec.Descriptor, direction, site)
}

// CheckFieldGet validates a field read: the identifier is known, its kind
// matches static, and vt is the tag of the accessor ('I' for GetIntField,
// 'L' for GetObjectField). A null target is left to CheckNonNull.
func (c *Checker) CheckFieldGet(s *Context, target vm.Ref, fid vm.FieldID, static bool, vt byte, site string) bool {
	if c.skip(s) || target.IsNull() {
		return true
	}
	rec, ok := c.fieldRecord(s, c.fieldClass(target, static), fid, static, site)
	if !ok || rec == nil {
		return ok
	}
	return c.fieldKind(s, rec, static, site) && c.fieldType(s, rec, vt, "return", site)
}

// CheckFieldSet validates a field write like CheckFieldGet and also checks
// that a non-null reference value is assignable to the field type. Final
// fields are checked separately by CheckFieldAccess.
func (c *Checker) CheckFieldSet(s *Context, target vm.Ref, fid vm.FieldID, static bool, vt byte, value vm.Value, site string) bool {
	if c.skip(s) || target.IsNull() {
		return true
	}
	rec, ok := c.fieldRecord(s, c.fieldClass(target, static), fid, static, site)
	if !ok || rec == nil {
		return ok
	}
	if !c.fieldKind(s, rec, static, site) || !c.fieldType(s, rec, vt, "source", site) {
		return false
	}
	if !metadata.IsReferenceTag(rec.Tag()) || value.Ref.IsNull() {
		return true
	}
	fclass, err := c.rt.FindClass(rec.TypeClass)
	if err != nil {
		c.invariant(s, "check field set", err)
		return true
	}
	if c.rt.IsAssignableFrom(c.rt.GetObjectClass(value.Ref), fclass) {
		return true
	}
	return c.report(s, diag.CheckNotAssignable, site, 0, uintptr(value.Ref),
		"The value %s is not assignable to fieldID %s (=%s) in %s", value.Ref, fid, rec.Descriptor, site)
}

// CheckFieldToReflected validates the identifier passed to
// ToReflectedField.
func (c *Checker) CheckFieldToReflected(s *Context, class vm.Ref, fid vm.FieldID, static bool, site string) bool {
	if c.skip(s) || class.IsNull() {
		return true
	}
	rec, ok := c.fieldRecord(s, class, fid, static, site)
	if !ok || rec == nil {
		return ok
	}
	return c.fieldKind(s, rec, static, site)
}

// CheckFieldAccess rejects writes to final fields that are not on the
// mutable-final allow-list. Unknown identifiers pass; CheckFieldSet reports
// them.
func (c *Checker) CheckFieldAccess(s *Context, target vm.Ref, fid vm.FieldID, static bool, index int, site string) bool {
	if c.skip(s) || target.IsNull() {
		return true
	}
	rec, found, err := c.cache.LookupField(c.fieldClass(target, static), fid, static)
	if err != nil {
		c.invariant(s, "check field access", err)
		return true
	}
	if !found || !rec.IsFinal() || rec.MutableFinal {
		return true
	}
	return c.report(s, diag.CheckFinalField, site, index, uintptr(fid),
		"The field %s is final at %d'th to %s", fid, index, site)
}
