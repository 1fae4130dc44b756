// Package vmsim is an in-memory managed runtime that answers the checker's
// queries from a declarative class universe. It backs the replay driver and
// every predicate test.
package vmsim

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

const (
	handleBase = 0x1000
	handleStep = 0x10
)

type class struct {
	ref        vm.Ref
	name       string
	super      *class
	interfaces []*class
	mods       vm.Modifiers
	elem       string // element descriptor for array classes
	methods    []*method
	fields     []*field
}

func (c *class) isArray() bool     { return strings.HasPrefix(c.name, "[") }
func (c *class) isInterface() bool { return c.mods.Has(vm.Interface) }

func (c *class) signature() string {
	if c.isArray() {
		return c.name
	}
	return "L" + c.name + ";"
}

type method struct {
	id    vm.MethodID
	owner *class
	name  string
	desc  string
	mods  vm.Modifiers
}

type field struct {
	id    vm.FieldID
	owner *class
	name  string
	desc  string
	mods  vm.Modifiers
}

// Runtime implements vm.Runtime. It is safe for concurrent use.
type Runtime struct {
	mu sync.RWMutex

	next       uintptr
	classes    map[string]*class
	classByRef map[vm.Ref]*class
	objects    map[vm.Ref]*class
	methods    map[vm.MethodID]*method
	fields     map[vm.FieldID]*field
	refTypes   map[vm.Ref]vm.RefType
	exceptions map[vm.Env]vm.Ref
}

var _ vm.Runtime = (*Runtime)(nil)

// New returns a runtime preloaded with the core library classes.
func New() *Runtime {
	r := &Runtime{
		next:       handleBase,
		classes:    make(map[string]*class),
		classByRef: make(map[vm.Ref]*class),
		objects:    make(map[vm.Ref]*class),
		methods:    make(map[vm.MethodID]*method),
		fields:     make(map[vm.FieldID]*field),
		refTypes:   make(map[vm.Ref]vm.RefType),
		exceptions: make(map[vm.Env]vm.Ref),
	}
	if err := r.Load(coreLibrary); err != nil {
		panic(fmt.Sprintf("vmsim: core library: %v", err))
	}
	return r
}

func (r *Runtime) handle() uintptr {
	h := r.next
	r.next += handleStep
	return h
}

// Load defines every class in u. Classes may appear in any order as long as
// each superclass and interface is defined somewhere in u or already loaded.
func (r *Runtime) Load(u Universe) error {
	pending := append([]ClassSpec(nil), u.Classes...)
	for len(pending) > 0 {
		var deferred []ClassSpec
		for _, spec := range pending {
			if !r.ready(spec) {
				deferred = append(deferred, spec)
				continue
			}
			if _, err := r.Define(spec); err != nil {
				return err
			}
		}
		if len(deferred) == len(pending) {
			names := make([]string, len(deferred))
			for i, d := range deferred {
				names[i] = d.Name
			}
			return fmt.Errorf("%w: %s", ErrUnresolvable, strings.Join(names, ", "))
		}
		pending = deferred
	}
	return nil
}

func (r *Runtime) ready(spec ClassSpec) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	deps := append([]string{superName(spec)}, spec.Interfaces...)
	for _, d := range deps {
		if d == "" {
			continue
		}
		if _, ok := r.classes[d]; !ok {
			return false
		}
	}
	return true
}

func superName(spec ClassSpec) string {
	if spec.Super != "" {
		return spec.Super
	}
	if spec.Name == "java/lang/Object" || containsString(spec.Modifiers, "interface") {
		return ""
	}
	return "java/lang/Object"
}

// Define adds one class and returns its class handle.
func (r *Runtime) Define(spec ClassSpec) (vm.Ref, error) {
	if spec.Name == "" {
		return vm.Null, ErrEmptyName
	}
	mods, err := vm.ParseModifiers(spec.Modifiers)
	if err != nil {
		return vm.Null, fmt.Errorf("class %s: %w", spec.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.classes[spec.Name]; ok {
		return vm.Null, fmt.Errorf("%w: %s", ErrDuplicateClass, spec.Name)
	}
	c := &class{name: spec.Name, mods: mods}
	if sn := superName(spec); sn != "" && !c.isInterface() {
		sup, ok := r.classes[sn]
		if !ok {
			return vm.Null, fmt.Errorf("%w: %s extends %s", ErrUnknownSuper, spec.Name, sn)
		}
		c.super = sup
	}
	for _, in := range spec.Interfaces {
		ic, ok := r.classes[in]
		if !ok {
			return vm.Null, fmt.Errorf("%w: %s implements %s", ErrUnknownSuper, spec.Name, in)
		}
		c.interfaces = append(c.interfaces, ic)
	}
	for _, fs := range spec.Fields {
		fm, err := vm.ParseModifiers(fs.Modifiers)
		if err != nil {
			return vm.Null, fmt.Errorf("field %s.%s: %w", spec.Name, fs.Name, err)
		}
		f := &field{id: vm.FieldID(r.handle()), owner: c, name: fs.Name, desc: fs.Desc, mods: fm}
		c.fields = append(c.fields, f)
		r.fields[f.id] = f
	}
	for _, ms := range spec.Methods {
		mm, err := vm.ParseModifiers(ms.Modifiers)
		if err != nil {
			return vm.Null, fmt.Errorf("method %s.%s: %w", spec.Name, ms.Name, err)
		}
		m := &method{id: vm.MethodID(r.handle()), owner: c, name: ms.Name, desc: ms.Desc, mods: mm}
		c.methods = append(c.methods, m)
		r.methods[m.id] = m
	}
	r.register(c)
	return c.ref, nil
}

// register must be called with mu held.
func (r *Runtime) register(c *class) {
	c.ref = vm.Ref(r.handle())
	r.classes[c.name] = c
	r.classByRef[c.ref] = c
}

// arrayClass returns (creating on demand) the array class for desc, which
// must start with '['. Must be called with mu held.
func (r *Runtime) arrayClass(desc string) (*class, bool) {
	if c, ok := r.classes[desc]; ok {
		return c, true
	}
	elem := desc[1:]
	switch {
	case len(elem) == 1 && strings.ContainsAny(elem, "ZBCSIJFD"):
	case strings.HasPrefix(elem, "["):
		if _, ok := r.arrayClass(elem); !ok {
			return nil, false
		}
	case strings.HasPrefix(elem, "L") && strings.HasSuffix(elem, ";"):
		if _, ok := r.classes[elem[1:len(elem)-1]]; !ok {
			return nil, false
		}
	default:
		return nil, false
	}
	c := &class{
		name:  desc,
		elem:  elem,
		super: r.classes["java/lang/Object"],
		mods:  vm.Public | vm.Final | vm.Abstract,
	}
	r.register(c)
	return c, true
}

func (r *Runtime) lookupClass(name string) (*class, bool) {
	if strings.HasPrefix(name, "[") {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.arrayClass(name)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// Class returns the class handle for name, or vm.Null.
func (r *Runtime) Class(name string) vm.Ref {
	c, ok := r.lookupClass(name)
	if !ok {
		return vm.Null
	}
	return c.ref
}

// ClassName returns the internal name of a class handle.
func (r *Runtime) ClassName(ref vm.Ref) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.classByRef[ref]; ok {
		return c.name
	}
	return ""
}

// NewObject allocates an instance of className.
func (r *Runtime) NewObject(className string) (vm.Ref, error) {
	c, ok := r.lookupClass(className)
	if !ok {
		return vm.Null, fmt.Errorf("%w: %s", vm.ErrClassNotFound, className)
	}
	if c.isArray() {
		return r.newInstance(c), nil
	}
	if c.isInterface() || c.mods.Has(vm.Abstract) {
		return vm.Null, fmt.Errorf("%w: %s", ErrAbstractInstance, className)
	}
	return r.newInstance(c), nil
}

// NewArray allocates an array whose class is desc ("[I", "[Ljava/lang/String;").
func (r *Runtime) NewArray(desc string) (vm.Ref, error) {
	if !strings.HasPrefix(desc, "[") {
		return vm.Null, fmt.Errorf("%w: %s is not an array descriptor", vm.ErrClassNotFound, desc)
	}
	return r.NewObject(desc)
}

func (r *Runtime) newInstance(c *class) vm.Ref {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := vm.Ref(r.handle())
	r.objects[ref] = c
	return ref
}

// Method resolves name and desc on className or its superclasses, the way
// GetMethodID and GetStaticMethodID do.
func (r *Runtime) Method(className, name, desc string) (vm.MethodID, error) {
	c, ok := r.lookupClass(className)
	if !ok {
		return 0, fmt.Errorf("%w: %s", vm.ErrClassNotFound, className)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := c; k != nil; k = k.super {
		for _, m := range k.methods {
			if m.name == name && m.desc == desc {
				return m.id, nil
			}
		}
		if name == "<init>" {
			break
		}
	}
	return 0, fmt.Errorf("%w: %s.%s%s", ErrMemberNotFound, className, name, desc)
}

// Field resolves name on className or its superclasses and returns the
// identifier and descriptor.
func (r *Runtime) Field(className, name string) (vm.FieldID, string, error) {
	c, ok := r.lookupClass(className)
	if !ok {
		return 0, "", fmt.Errorf("%w: %s", vm.ErrClassNotFound, className)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := c; k != nil; k = k.super {
		for _, f := range k.fields {
			if f.name == name {
				return f.id, f.desc, nil
			}
		}
	}
	return 0, "", fmt.Errorf("%w: %s.%s", ErrMemberNotFound, className, name)
}

// SetRefType overrides how ObjectRefType classifies ref.
func (r *Runtime) SetRefType(ref vm.Ref, t vm.RefType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refTypes[ref] = t
}

// Throw marks ex as pending on env.
func (r *Runtime) Throw(env vm.Env, ex vm.Ref) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exceptions[env] = ex
}

// ClearException clears the pending exception of env.
func (r *Runtime) ClearException(env vm.Env) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.exceptions, env)
}

// GetObjectClass implements vm.Runtime.
func (r *Runtime) GetObjectClass(obj vm.Ref) vm.Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.objects[obj]; ok {
		return c.ref
	}
	if _, ok := r.classByRef[obj]; ok {
		return r.classes["java/lang/Class"].ref
	}
	return vm.Null
}

// GetSuperclass implements vm.Runtime.
func (r *Runtime) GetSuperclass(classRef vm.Ref) vm.Ref {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classByRef[classRef]
	if !ok || c.super == nil || c.isInterface() {
		return vm.Null
	}
	return c.super.ref
}

// IsSameObject implements vm.Runtime.
func (r *Runtime) IsSameObject(a, b vm.Ref) bool {
	return a == b
}

// IsAssignableFrom implements vm.Runtime.
func (r *Runtime) IsAssignableFrom(sub, sup vm.Ref) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok1 := r.classByRef[sub]
	t, ok2 := r.classByRef[sup]
	if !ok1 || !ok2 {
		return false
	}
	return r.assignable(s, t)
}

func (r *Runtime) assignable(s, t *class) bool {
	if s == t {
		return true
	}
	if s.isArray() && t.isArray() {
		if len(s.elem) == 1 || len(t.elem) == 1 {
			return s.elem == t.elem
		}
		se, ok1 := r.elemClass(s.elem)
		te, ok2 := r.elemClass(t.elem)
		return ok1 && ok2 && r.assignable(se, te)
	}
	for k := s; k != nil; k = k.super {
		if k == t {
			return true
		}
		for _, in := range k.interfaces {
			if r.assignable(in, t) {
				return true
			}
		}
	}
	return false
}

// elemClass must be called with mu held; it never creates classes.
func (r *Runtime) elemClass(desc string) (*class, bool) {
	if strings.HasPrefix(desc, "L") && strings.HasSuffix(desc, ";") {
		c, ok := r.classes[desc[1:len(desc)-1]]
		return c, ok
	}
	c, ok := r.classes[desc]
	return c, ok
}

// IsArrayClass implements vm.Runtime.
func (r *Runtime) IsArrayClass(classRef vm.Ref) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classByRef[classRef]
	return ok && c.isArray()
}

// ObjectRefType implements vm.Runtime.
func (r *Runtime) ObjectRefType(ref vm.Ref) vm.RefType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.refTypes[ref]; ok {
		return t
	}
	if _, ok := r.objects[ref]; ok {
		return vm.RefLocal
	}
	if _, ok := r.classByRef[ref]; ok {
		return vm.RefLocal
	}
	return vm.RefInvalid
}

// ExceptionCheck implements vm.Runtime.
func (r *Runtime) ExceptionCheck(env vm.Env) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.exceptions[env]
	return ok
}

// FindClass implements vm.Runtime.
func (r *Runtime) FindClass(name string) (vm.Ref, error) {
	c, ok := r.lookupClass(name)
	if !ok {
		return vm.Null, fmt.Errorf("%w: %s", vm.ErrClassNotFound, name)
	}
	return c.ref, nil
}

func (r *Runtime) classOf(ref vm.Ref) (*class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classByRef[ref]
	if !ok {
		return nil, fmt.Errorf("%w: class %s", vm.ErrInvalidHandle, ref)
	}
	return c, nil
}

// ClassSignature implements vm.Runtime.
func (r *Runtime) ClassSignature(classRef vm.Ref) (string, error) {
	c, err := r.classOf(classRef)
	if err != nil {
		return "", err
	}
	return c.signature(), nil
}

// ClassModifiers implements vm.Runtime.
func (r *Runtime) ClassModifiers(classRef vm.Ref) (vm.Modifiers, error) {
	c, err := r.classOf(classRef)
	if err != nil {
		return 0, err
	}
	return c.mods, nil
}

func (r *Runtime) methodOf(id vm.MethodID) (*method, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[id]
	if !ok {
		return nil, fmt.Errorf("%w: method %s", vm.ErrInvalidHandle, id)
	}
	return m, nil
}

// MethodDeclaringClass implements vm.Runtime.
func (r *Runtime) MethodDeclaringClass(id vm.MethodID) (vm.Ref, error) {
	m, err := r.methodOf(id)
	if err != nil {
		return vm.Null, err
	}
	return m.owner.ref, nil
}

// MethodModifiers implements vm.Runtime.
func (r *Runtime) MethodModifiers(id vm.MethodID) (vm.Modifiers, error) {
	m, err := r.methodOf(id)
	if err != nil {
		return 0, err
	}
	return m.mods, nil
}

// MethodName implements vm.Runtime.
func (r *Runtime) MethodName(id vm.MethodID) (string, string, error) {
	m, err := r.methodOf(id)
	if err != nil {
		return "", "", err
	}
	return m.name, m.desc, nil
}

func (r *Runtime) fieldOf(id vm.FieldID) (*field, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fields[id]
	if !ok {
		return nil, fmt.Errorf("%w: field %s", vm.ErrInvalidHandle, id)
	}
	return f, nil
}

// FieldDeclaringClass implements vm.Runtime.
func (r *Runtime) FieldDeclaringClass(_ vm.Ref, id vm.FieldID) (vm.Ref, error) {
	f, err := r.fieldOf(id)
	if err != nil {
		return vm.Null, err
	}
	return f.owner.ref, nil
}

// FieldModifiers implements vm.Runtime.
func (r *Runtime) FieldModifiers(_ vm.Ref, id vm.FieldID) (vm.Modifiers, error) {
	f, err := r.fieldOf(id)
	if err != nil {
		return 0, err
	}
	return f.mods, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
