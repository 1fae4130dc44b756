package jnicheck

import (
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/metadata"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// methodRecord resolves mid. A nil record with ok true means the check
// passes: unknown identifiers are tolerated in system-native mode.
func (c *Checker) methodRecord(s *Context, mid vm.MethodID, site string) (*metadata.MethodRecord, bool) {
	if rec, found := c.cache.LookupMethod(mid); found {
		return rec, true
	}
	if s.Mode() == vm.ModeSystem {
		return nil, true
	}
	return nil, c.report(s, diag.CheckInvalidMethod, site, 0, uintptr(mid),
		"An invalid jmethodID %s to %s", mid, site)
}

func (c *Checker) methodKind(s *Context, rec *metadata.MethodRecord, static bool, site string) bool {
	switch {
	case static && !rec.Static:
		return c.report(s, diag.CheckMethodKind, site, 0, uintptr(rec.ID),
			"An instance methodID %s when a static method is expected in %s", rec.ID, site)
	case !static && rec.Static:
		return c.report(s, diag.CheckMethodKind, site, 0, uintptr(rec.ID),
			"A static methodID %s when an instance method is expected in %s", rec.ID, site)
	}
	return true
}

func (c *Checker) methodConstructor(s *Context, rec *metadata.MethodRecord, site string) bool {
	if rec.Name != "<init>" {
		return c.report(s, diag.CheckNotConstructor, site, 0, uintptr(rec.ID),
			"the jmethodID %s must be constructor, but its name is %s in %s", rec.ID, rec.Name, site)
	}
	if rec.Return != "V" {
		return c.report(s, diag.CheckNotConstructor, site, 0, uintptr(rec.ID),
			"the jmethodID %s must be constructor, but its return type is not void in %s", rec.ID, site)
	}
	return true
}

// declaredOn requires the method to be declared on class itself.
func (c *Checker) declaredOn(s *Context, rec *metadata.MethodRecord, class vm.Ref, site string) bool {
	if c.rt.IsSameObject(rec.Declaring, class) {
		return true
	}
	return c.report(s, diag.CheckMethodClass, site, 0, uintptr(rec.ID),
		"The declaring class of methodID %s is not equal to the target class %s in %s", rec.ID, class, site)
}

// declaredAbove requires the method's class to be class or a superclass.
func (c *Checker) declaredAbove(s *Context, rec *metadata.MethodRecord, class vm.Ref, site string) bool {
	ok, valid := c.isAncestor(s, "check method class", rec.Declaring, class)
	if ok || !valid {
		return true
	}
	return c.report(s, diag.CheckMethodClass, site, 0, uintptr(rec.ID),
		"The declaring class of methodID %s is not a superclass of the target class %s in %s", rec.ID, class, site)
}

// declaredAssignable requires class to be assignable to the method's
// class, which also admits interface methods.
func (c *Checker) declaredAssignable(s *Context, rec *metadata.MethodRecord, class vm.Ref, site string) bool {
	if c.rt.IsAssignableFrom(class, rec.Declaring) {
		return true
	}
	return c.report(s, diag.CheckMethodClass, site, 0, uintptr(rec.ID),
		"The declaring class of methodID %s is not assignable from the target class %s in %s", rec.ID, class, site)
}

// returnType compares the Call<Type>Method variant with the method's return
// type. TagObject covers both objects and arrays; a zero tag skips.
func (c *Checker) returnType(s *Context, rec *metadata.MethodRecord, rt byte, site string) bool {
	want := rec.ReturnTag()
	if rt == 0 || rt == want || (rt == metadata.TagObject && metadata.IsReferenceTag(want)) {
		return true
	}
	return c.report(s, diag.CheckReturnType, site, 0, uintptr(rec.ID),
		"The return type of methodID %s (=%s) does not match %s", rec.ID, rec.Return, site)
}

// arguments walks the cached argument types in order. Reference arguments
// must be live and assignable to the declared type; they are reported at
// their one-based position.
func (c *Checker) arguments(s *Context, rec *metadata.MethodRecord, args Args, site string) bool {
	for i, desc := range rec.Args {
		tag := desc[0]
		v, ok := args.value(i, tag)
		if !ok {
			return c.report(s, diag.CheckArgumentCount, site, i+1, uintptr(rec.ID),
				"methodID %s expects %d arguments but %d were supplied to %s", rec.ID, len(rec.Args), i, site)
		}
		if !metadata.IsReferenceTag(tag) || v.Ref.IsNull() {
			continue
		}
		index := i + 1
		if !c.CheckLive(s, v.Ref, index, site) {
			return false
		}
		class, err := c.rt.FindClass(metadata.ClassNameOf(desc))
		if err != nil {
			c.invariant(s, "check arguments", err)
			continue
		}
		if !c.rt.IsAssignableFrom(c.rt.GetObjectClass(v.Ref), class) {
			return c.report(s, diag.CheckNotAssignable, site, index, uintptr(v.Ref),
				"%s is not assignable to %s at %d'th to %s", v.Ref, desc, index, site)
		}
	}
	return true
}

// CheckNewObject validates NewObject: an instance constructor declared on
// class itself, called with matching arguments.
func (c *Checker) CheckNewObject(s *Context, class vm.Ref, mid vm.MethodID, args Args, site string) bool {
	if c.skip(s) {
		return true
	}
	rec, ok := c.methodRecord(s, mid, site)
	if !ok || rec == nil {
		return ok
	}
	return c.methodKind(s, rec, false, site) &&
		c.methodConstructor(s, rec, site) &&
		c.declaredOn(s, rec, class, site) &&
		c.arguments(s, rec, args, site)
}

// CheckInstanceCall validates Call<Type>Method on obj. Private methods and
// constructors must be declared on the object's exact class; other methods
// only need the class to be assignable to the declaring class. rt is the
// return tag of the call variant, or zero.
func (c *Checker) CheckInstanceCall(s *Context, obj vm.Ref, mid vm.MethodID, args Args, rt byte, site string) bool {
	if c.skip(s) {
		return true
	}
	rec, ok := c.methodRecord(s, mid, site)
	if !ok || rec == nil {
		return ok
	}
	if !c.methodKind(s, rec, false, site) {
		return false
	}
	objClass := c.rt.GetObjectClass(obj)
	if rec.IsPrivate() || rec.IsConstructor() {
		ok = c.declaredOn(s, rec, objClass, site)
	} else {
		ok = c.declaredAssignable(s, rec, objClass, site)
	}
	return ok && c.returnType(s, rec, rt, site) && c.arguments(s, rec, args, site)
}

// CheckNonvirtualCall validates CallNonvirtual<Type>Method: the method
// must be declared on class or above it, and on obj's class or above it.
func (c *Checker) CheckNonvirtualCall(s *Context, obj, class vm.Ref, mid vm.MethodID, args Args, rt byte, site string) bool {
	if c.skip(s) {
		return true
	}
	rec, ok := c.methodRecord(s, mid, site)
	if !ok || rec == nil {
		return ok
	}
	return c.methodKind(s, rec, false, site) &&
		c.declaredAbove(s, rec, class, site) &&
		c.declaredAbove(s, rec, c.rt.GetObjectClass(obj), site) &&
		c.arguments(s, rec, args, site) &&
		c.returnType(s, rec, rt, site)
}

// CheckStaticCall validates CallStatic<Type>Method on class.
func (c *Checker) CheckStaticCall(s *Context, class vm.Ref, mid vm.MethodID, args Args, rt byte, site string) bool {
	if c.skip(s) {
		return true
	}
	rec, ok := c.methodRecord(s, mid, site)
	if !ok || rec == nil {
		return ok
	}
	return c.methodKind(s, rec, true, site) &&
		c.declaredOn(s, rec, class, site) &&
		c.returnType(s, rec, rt, site) &&
		c.arguments(s, rec, args, site)
}

// CheckMethodToReflected validates ToReflectedMethod: the static flag must
// agree with the method and class must be the declaring class or a
// subclass of it.
func (c *Checker) CheckMethodToReflected(s *Context, class vm.Ref, mid vm.MethodID, static bool, site string) bool {
	if c.skip(s) {
		return true
	}
	rec, ok := c.methodRecord(s, mid, site)
	if !ok || rec == nil {
		return ok
	}
	return c.methodKind(s, rec, static, site) && c.declaredAbove(s, rec, class, site)
}
