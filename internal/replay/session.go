package replay

import (
	"fmt"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
	"github.com/fyrsmithlabs/jnicheck/internal/jnicheck"
	"github.com/fyrsmithlabs/jnicheck/internal/metadata"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
	"github.com/fyrsmithlabs/jnicheck/internal/vmsim"
)

const (
	firstEnv      = 0x7f000000
	envStride     = 0x1000
	firstResource = 0x5e000000
	resStride     = 0x10
)

type methodBinding struct {
	id   vm.MethodID
	desc string
}

type fieldBinding struct {
	id   vm.FieldID
	desc string
}

// session is the state of one script run: the names the script has bound
// and the checker and runtime it drives.
type session struct {
	c   *jnicheck.Checker
	rt  *vmsim.Runtime
	log *Logger
	cfg config.CheckerConfig

	threads   map[string]uint64
	refs      map[string]vm.Ref
	methods   map[string]methodBinding
	fields    map[string]fieldBinding
	resources map[string]uintptr

	nextEnv      uintptr
	nextResource uintptr

	index   int
	dumps   []Dump
	failure *jnicheck.InvariantError
}

func newSession(rt *vmsim.Runtime, log *Logger, cfg config.CheckerConfig) *session {
	return &session{
		rt:           rt,
		log:          log,
		cfg:          cfg,
		threads:      make(map[string]uint64),
		refs:         make(map[string]vm.Ref),
		methods:      make(map[string]methodBinding),
		fields:       make(map[string]fieldBinding),
		resources:    make(map[string]uintptr),
		nextEnv:      firstEnv,
		nextResource: firstResource,
	}
}

// onInvariant keeps the first invariant failure; Run aborts after the
// event that raised it.
func (x *session) onInvariant(e *jnicheck.InvariantError) {
	if x.failure == nil {
		x.failure = e
	}
}

// apply runs one event and returns the call-site label it used.
func (x *session) apply(ev *Event) (string, error) {
	spec, ok := ops[ev.Op]
	if !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownOp, ev.Op)
	}
	if !spec.threaded {
		return "", spec.run(x, nil, ev, "")
	}

	s, err := x.context(ev.Thread)
	if err != nil {
		return "", err
	}
	site := ev.Site
	if site == "" && spec.site != nil {
		site = spec.site(x, ev)
	}

	if spec.call {
		env := s.Env
		if ev.Env != 0 {
			env = vm.Env(ev.Env)
		}
		x.c.CheckEnvMatch(s, env, site)
		if !spec.exceptionOK {
			x.c.CheckNoException(s, site)
		}
		if !spec.criticalOK {
			x.c.CheckNoCritical(s, site)
		}
	}
	if err := spec.run(x, s, ev, site); err != nil {
		return site, err
	}
	if spec.call {
		x.c.RecordCall(site)
		x.c.TraceCall(s, site)
	}
	return site, nil
}

func (x *session) context(thread string) (*jnicheck.Context, error) {
	id, ok := x.threads[thread]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownThread, thread)
	}
	return x.c.Context(id)
}

// ref resolves a bound reference name. "null" is the null reference.
func (x *session) ref(name string) (vm.Ref, error) {
	if name == "null" {
		return vm.Null, nil
	}
	ref, ok := x.refs[name]
	if !ok {
		return vm.Null, fmt.Errorf("%w: reference %q", ErrUnknownName, name)
	}
	return ref, nil
}

// class resolves a bound reference name or, failing that, a class name.
func (x *session) class(name string) (vm.Ref, error) {
	if ref, ok := x.refs[name]; ok || name == "null" {
		return ref, nil
	}
	if ref := x.rt.Class(name); !ref.IsNull() {
		return ref, nil
	}
	return vm.Null, fmt.Errorf("%w: class %q", ErrUnknownName, name)
}

func (x *session) method(name string) (methodBinding, error) {
	m, ok := x.methods[name]
	if !ok {
		return m, fmt.Errorf("%w: method %q", ErrUnknownName, name)
	}
	return m, nil
}

func (x *session) field(name string) (fieldBinding, error) {
	f, ok := x.fields[name]
	if !ok {
		return f, fmt.Errorf("%w: field %q", ErrUnknownName, name)
	}
	return f, nil
}

func (x *session) value(a *Arg) (vm.Value, error) {
	if a == nil {
		return vm.Object(vm.Null), nil
	}
	if !a.IsRef() {
		return vm.Int(a.Int), nil
	}
	ref, err := x.ref(a.Ref)
	if err != nil {
		return vm.Value{}, err
	}
	return vm.Object(ref), nil
}

func (x *session) args(ev *Event) (jnicheck.Args, error) {
	values := make([]vm.Value, len(ev.Args))
	for i := range ev.Args {
		v, err := x.value(&ev.Args[i])
		if err != nil {
			return jnicheck.Args{}, err
		}
		values[i] = v
	}
	if ev.Form == formCursor {
		return jnicheck.CursorArgs(jnicheck.NewSliceCursor(values...)), nil
	}
	return jnicheck.ArrayArgs(values), nil
}

// bind records a new local reference in the top frame of s under ev.As,
// growing the frame first the way the dispatch layer does before any call
// that creates a local reference.
func (x *session) bind(s *jnicheck.Context, ev *Event, ref vm.Ref, site string) {
	if ev.As == "" || ref.IsNull() {
		return
	}
	x.c.EnsureCapacity(s, site)
	s.AddLocal(ref)
	x.refs[ev.As] = ref
}

// instantiate creates an object for a returned or read reference of
// descriptor desc. Abstract types get no instance.
func (x *session) instantiate(desc string) vm.Ref {
	ref, err := x.rt.NewObject(metadata.ClassNameOf(desc))
	if err != nil {
		return vm.Null
	}
	return ref
}

func (x *session) resource(ev *Event) (uintptr, error) {
	if ev.Resource == "" {
		return uintptr(ev.Handle), nil
	}
	res, ok := x.resources[ev.Resource]
	if !ok {
		return 0, fmt.Errorf("%w: resource %q", ErrUnknownName, ev.Resource)
	}
	return res, nil
}

func (x *session) newResource(name string) uintptr {
	res := x.nextResource
	x.nextResource += resStride
	if name != "" {
		x.resources[name] = res
	}
	return res
}

// valueTag returns the descriptor tag an accessor uses for a value of
// type desc: every reference type is accessed as an object.
func valueTag(desc string) byte {
	if desc == "" {
		return 0
	}
	if metadata.IsReferenceTag(desc[0]) {
		return metadata.TagObject
	}
	return desc[0]
}

// tagOf picks the explicit tag of an event, or the tag implied by desc.
func tagOf(explicit, desc string) byte {
	if explicit != "" {
		return explicit[0]
	}
	return valueTag(desc)
}
