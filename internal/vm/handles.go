// Package vm defines the handle types and the runtime query surface the
// checker uses to observe a managed virtual machine from the outside.
package vm

import "fmt"

// Ref is an opaque object handle (jobject and its subtypes).
type Ref uintptr

// MethodID is an opaque method identifier.
type MethodID uintptr

// FieldID is an opaque field identifier.
type FieldID uintptr

// Env identifies the interface environment of one native thread.
type Env uintptr

const (
	// Null is the null reference.
	Null Ref = 0

	// InvalidRef is the poison value some runtimes hand out for freed handles.
	InvalidRef Ref = 0xFFFFFFFF
)

// IsNull reports whether r is the null reference.
func (r Ref) IsNull() bool { return r == Null }

func (r Ref) String() string      { return fmt.Sprintf("%#x", uintptr(r)) }
func (m MethodID) String() string { return fmt.Sprintf("%#x", uintptr(m)) }
func (f FieldID) String() string  { return fmt.Sprintf("%#x", uintptr(f)) }
func (e Env) String() string      { return fmt.Sprintf("%#x", uintptr(e)) }

// Value is one interop argument or field value. Primitive payloads live in
// Prim (bit pattern of the widened value); references live in Ref.
type Value struct {
	Prim uint64
	Ref  Ref
}

// Object returns a reference-carrying value.
func Object(r Ref) Value { return Value{Ref: r} }

// Int returns a primitive value holding n.
func Int(n int64) Value { return Value{Prim: uint64(n)} }

// Modifiers is the access flag set of a class, method or field.
type Modifiers uint32

const (
	Public    Modifiers = 0x0001
	Private   Modifiers = 0x0002
	Protected Modifiers = 0x0004
	Static    Modifiers = 0x0008
	Final     Modifiers = 0x0010
	Interface Modifiers = 0x0200
	Abstract  Modifiers = 0x0400
)

// Has reports whether all bits of flag are set.
func (m Modifiers) Has(flag Modifiers) bool { return m&flag == flag }

var modifierNames = []struct {
	flag Modifiers
	name string
}{
	{Public, "public"},
	{Private, "private"},
	{Protected, "protected"},
	{Static, "static"},
	{Final, "final"},
	{Interface, "interface"},
	{Abstract, "abstract"},
}

// ParseModifiers converts names such as "public" or "static" to a flag set.
func ParseModifiers(names []string) (Modifiers, error) {
	var m Modifiers
	for _, n := range names {
		found := false
		for _, mn := range modifierNames {
			if mn.name == n {
				m |= mn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: %q", ErrUnknownModifier, n)
		}
	}
	return m, nil
}

// Names returns the modifier names set in m, in declaration order.
func (m Modifiers) Names() []string {
	var out []string
	for _, mn := range modifierNames {
		if m.Has(mn.flag) {
			out = append(out, mn.name)
		}
	}
	return out
}

// RefType classifies a reference the way the runtime reports it.
type RefType int

const (
	RefInvalid RefType = iota
	RefLocal
	RefGlobal
	RefWeakGlobal
)

func (t RefType) String() string {
	switch t {
	case RefLocal:
		return "local"
	case RefGlobal:
		return "global"
	case RefWeakGlobal:
		return "weak global"
	default:
		return "invalid"
	}
}
