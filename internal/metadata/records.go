package metadata

import "github.com/fyrsmithlabs/jnicheck/internal/vm"

// MethodRecord is the cached description of one method identifier. Records
// are immutable once published.
type MethodRecord struct {
	ID        vm.MethodID
	Declaring vm.Ref
	// Class is the declaring class signature ("Ljava/lang/String;").
	Class      string
	Name       string
	Descriptor string
	Args       []string
	Return     string
	Static     bool
	Modifiers  vm.Modifiers
}

// ReturnTag returns the leading tag of the return type.
func (m *MethodRecord) ReturnTag() byte {
	if m.Return == "" {
		return 0
	}
	return m.Return[0]
}

// IsConstructor reports whether the method is an instance initializer.
func (m *MethodRecord) IsConstructor() bool {
	return m.Name == "<init>" && m.Return == "V"
}

// IsPrivate reports whether the method is private.
func (m *MethodRecord) IsPrivate() bool {
	return m.Modifiers.Has(vm.Private)
}

// FieldRecord is the cached description of one field identifier as seen
// through its actual declaring class.
type FieldRecord struct {
	ID        vm.FieldID
	Declaring vm.Ref
	Class     string
	Name      string
	// Descriptor is the type signature ("I", "Ljava/lang/String;").
	Descriptor string
	// TypeClass is the class-name form of Descriptor ("java/lang/String").
	TypeClass    string
	Static       bool
	Modifiers    vm.Modifiers
	MutableFinal bool
}

// Tag returns the leading tag of the field type.
func (f *FieldRecord) Tag() byte {
	if f.Descriptor == "" {
		return 0
	}
	return f.Descriptor[0]
}

// IsFinal reports whether the field is final.
func (f *FieldRecord) IsFinal() bool {
	return f.Modifiers.Has(vm.Final)
}

// mutableFinals lists final fields the runtime itself rewrites
// (System.setIn/setOut/setErr).
var mutableFinals = map[string]map[string]bool{
	"Ljava/lang/System;": {"in": true, "out": true, "err": true},
}

// IsMutableFinal reports whether (class signature, field name) is on the
// mutable-final allow-list.
func IsMutableFinal(classSig, name string) bool {
	return mutableFinals[classSig][name]
}
