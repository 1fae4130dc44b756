package replay

import (
	"fmt"

	"github.com/fyrsmithlabs/jnicheck/internal/jnicheck"
	"github.com/fyrsmithlabs/jnicheck/internal/metadata"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// Call kinds.
const (
	kindInstance   = "instance"
	kindNonvirtual = "nonvirtual"
	kindStatic     = "static"
	kindNewObject  = "new_object"
)

// Argument forms.
const (
	formArray  = "array"
	formCursor = "cursor"
)

// opSpec describes how the runner handles one event op.
type opSpec struct {
	// threaded ops run on the context named by the event's thread.
	threaded bool
	// call ops are native interface calls: they get the env, pending
	// exception and critical region checks and are counted.
	call        bool
	exceptionOK bool
	criticalOK  bool
	needs       []string
	site        func(*session, *Event) string
	run         func(*session, *jnicheck.Context, *Event, string) error
}

var ops = map[string]opSpec{
	"phase":        {needs: []string{"phase"}, run: (*session).phase},
	"thread_start": {needs: []string{"thread"}, run: (*session).threadStart},
	"thread_end":   {needs: []string{"thread"}, run: (*session).threadEnd},
	"dump":         {run: (*session).dump},

	"enter":  {threaded: true, run: (*session).enter},
	"leave":  {threaded: true, run: (*session).leave},
	"return": {threaded: true, site: nativeSite, run: (*session).ret},
	"check":  {threaded: true, needs: []string{"check", "ref"}, site: fixed("check"), run: (*session).check},

	"new_object":    {threaded: true, call: true, needs: []string{"class"}, site: newObjectSite, run: (*session).newObject},
	"new_array":     {threaded: true, call: true, needs: []string{"class"}, site: newArraySite, run: (*session).newArray},
	"delete_local":  {threaded: true, call: true, exceptionOK: true, needs: []string{"ref"}, site: fixed("DeleteLocalRef"), run: (*session).deleteLocal},
	"new_global":    {threaded: true, call: true, needs: []string{"ref"}, site: fixed("NewGlobalRef"), run: (*session).newGlobal},
	"delete_global": {threaded: true, call: true, exceptionOK: true, needs: []string{"ref"}, site: fixed("DeleteGlobalRef"), run: (*session).deleteGlobal},
	"new_weak":      {threaded: true, call: true, needs: []string{"ref"}, site: fixed("NewWeakGlobalRef"), run: (*session).newWeak},
	"delete_weak":   {threaded: true, call: true, exceptionOK: true, needs: []string{"ref"}, site: fixed("DeleteWeakGlobalRef"), run: (*session).deleteWeak},

	"get_method_id": {threaded: true, call: true, needs: []string{"class", "name", "desc"}, site: staticSite("GetMethodID", "GetStaticMethodID"), run: (*session).getMethodID},
	"get_field_id":  {threaded: true, call: true, needs: []string{"class", "name"}, site: staticSite("GetFieldID", "GetStaticFieldID"), run: (*session).getFieldID},
	"call":          {threaded: true, call: true, needs: []string{"kind", "method"}, site: callSite, run: (*session).call},
	"get_field":     {threaded: true, call: true, needs: []string{"field"}, site: fieldSite("Get"), run: (*session).getField},
	"set_field":     {threaded: true, call: true, needs: []string{"field"}, site: fieldSite("Set"), run: (*session).setField},

	"acquire":         {threaded: true, call: true, site: fixed("GetArrayElements"), run: (*session).acquire},
	"release":         {threaded: true, call: true, exceptionOK: true, criticalOK: true, site: fixed("ReleaseArrayElements"), run: (*session).release},
	"critical_enter":  {threaded: true, call: true, criticalOK: true, site: fixed("GetPrimitiveArrayCritical"), run: (*session).criticalEnter},
	"critical_leave":  {threaded: true, call: true, exceptionOK: true, criticalOK: true, site: fixed("ReleasePrimitiveArrayCritical"), run: (*session).criticalLeave},
	"throw":           {threaded: true, call: true, needs: []string{"ref"}, site: fixed("Throw"), run: (*session).throw},
	"clear_exception": {threaded: true, call: true, exceptionOK: true, site: fixed("ExceptionClear"), run: (*session).clearException},
}

// directChecks are the predicates the check op can run on a reference.
var directChecks = map[string]func(*jnicheck.Checker, *jnicheck.Context, vm.Ref, int, string) bool{
	"live":             (*jnicheck.Checker).CheckLive,
	"class":            (*jnicheck.Checker).CheckClass,
	"string":           (*jnicheck.Checker).CheckString,
	"throwable":        (*jnicheck.Checker).CheckThrowable,
	"array":            (*jnicheck.Checker).CheckArray,
	"object_array":     (*jnicheck.Checker).CheckObjectArray,
	"primitive_array":  (*jnicheck.Checker).CheckAnyPrimitiveArray,
	"weak":             (*jnicheck.Checker).CheckWeak,
	"scalar":           (*jnicheck.Checker).CheckScalarAllocatable,
	"reflected_method": (*jnicheck.Checker).CheckReflectedMethod,
	"reflected_field":  (*jnicheck.Checker).CheckReflectedField,
	"direct_buffer":    (*jnicheck.Checker).CheckDirectBuffer,
}

// Call-site labels.

func fixed(site string) func(*session, *Event) string {
	return func(*session, *Event) string { return site }
}

func staticSite(instance, static string) func(*session, *Event) string {
	return func(_ *session, ev *Event) string {
		if ev.Static {
			return static
		}
		return instance
	}
}

func formSuffix(form string) string {
	if form == formCursor {
		return "V"
	}
	return "A"
}

// typeName is the type part of accessor names such as CallIntMethod.
func typeName(tag byte) string {
	switch tag {
	case metadata.TagBoolean:
		return "Boolean"
	case metadata.TagByte:
		return "Byte"
	case metadata.TagChar:
		return "Char"
	case metadata.TagShort:
		return "Short"
	case metadata.TagInt:
		return "Int"
	case metadata.TagLong:
		return "Long"
	case metadata.TagFloat:
		return "Float"
	case metadata.TagDouble:
		return "Double"
	case metadata.TagVoid:
		return "Void"
	}
	return "Object"
}

func nativeSite(_ *session, ev *Event) string {
	if ev.Name != "" {
		return "native " + ev.Name
	}
	return "native method"
}

func newObjectSite(_ *session, ev *Event) string {
	if ev.Method == "" {
		return "AllocObject"
	}
	return "NewObject" + formSuffix(ev.Form)
}

func newArraySite(_ *session, ev *Event) string {
	if elem := ev.Class[1:]; len(elem) == 1 && metadata.IsPrimitiveTag(elem[0]) {
		return "New" + typeName(elem[0]) + "Array"
	}
	return "NewObjectArray"
}

func callSite(x *session, ev *Event) string {
	if ev.Kind == kindNewObject {
		return "NewObject" + formSuffix(ev.Form)
	}
	var desc string
	if m, ok := x.methods[ev.Method]; ok {
		desc = returnDesc(m.desc)
	}
	name := typeName(tagOf(ev.Returns, desc))
	switch ev.Kind {
	case kindNonvirtual:
		return "CallNonvirtual" + name + "Method" + formSuffix(ev.Form)
	case kindStatic:
		return "CallStatic" + name + "Method" + formSuffix(ev.Form)
	}
	return "Call" + name + "Method" + formSuffix(ev.Form)
}

func fieldSite(verb string) func(*session, *Event) string {
	return func(x *session, ev *Event) string {
		var desc string
		if f, ok := x.fields[ev.Field]; ok {
			desc = f.desc
		}
		name := typeName(tagOf(ev.Type, desc))
		if ev.Static {
			return verb + "Static" + name + "Field"
		}
		return verb + name + "Field"
	}
}

func returnDesc(methodDesc string) string {
	md, err := metadata.ParseMethodDescriptor(methodDesc)
	if err != nil {
		return ""
	}
	return md.Return
}

// Lifecycle.

func (x *session) phase(_ *jnicheck.Context, ev *Event, _ string) error {
	p, err := vm.ParsePhase(ev.Phase)
	if err != nil {
		return err
	}
	x.c.Transition(p)
	return nil
}

func (x *session) threadStart(_ *jnicheck.Context, ev *Event, _ string) error {
	if _, ok := x.threads[ev.Thread]; ok {
		return fmt.Errorf("%w: thread %q already started", ErrInvalidScript, ev.Thread)
	}
	env := vm.Env(ev.Env)
	if env == 0 {
		env = vm.Env(x.nextEnv)
		x.nextEnv += envStride
	}
	id, err := x.c.ContextStart(env, jnicheck.StartInfo{Name: ev.Thread, ThreadID: ev.ThreadID})
	if err != nil {
		return err
	}
	x.threads[ev.Thread] = id
	return nil
}

func (x *session) threadEnd(_ *jnicheck.Context, ev *Event, _ string) error {
	id, ok := x.threads[ev.Thread]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownThread, ev.Thread)
	}
	x.c.ContextEnd(id)
	delete(x.threads, ev.Thread)
	return nil
}

func (x *session) dump(_ *jnicheck.Context, _ *Event, _ string) error {
	snap := x.c.Snapshot()
	x.dumps = append(x.dumps, Dump{Event: x.index, Snapshot: snap})
	x.log.Dump(x.index, len(snap.Calls))
	return nil
}

// Frames.

func (x *session) enter(s *jnicheck.Context, ev *Event, _ string) error {
	capacity := x.c.Config().DefaultFrameCapacity
	switch {
	case ev.Capacity != nil:
		capacity = *ev.Capacity
	case ev.Sentinel:
		capacity = 0
	}
	s.EnterFrame(capacity, ev.Sentinel)
	return nil
}

func (x *session) leave(s *jnicheck.Context, _ *Event, _ string) error {
	return s.LeaveFrame()
}

func (x *session) ret(s *jnicheck.Context, _ *Event, site string) error {
	x.c.CheckFrameShape(s, site)
	return nil
}

func (x *session) check(s *jnicheck.Context, ev *Event, site string) error {
	ref, err := x.ref(ev.Ref)
	if err != nil {
		return err
	}
	directChecks[ev.Check](x.c, s, ref, 1, site)
	return nil
}

// References.

func (x *session) newObject(s *jnicheck.Context, ev *Event, site string) error {
	class, err := x.class(ev.Class)
	if err != nil {
		return err
	}
	if x.c.CheckScalarAllocatable(s, class, 1, site) && ev.Method != "" {
		m, err := x.method(ev.Method)
		if err != nil {
			return err
		}
		args, err := x.args(ev)
		if err != nil {
			return err
		}
		x.c.CheckNewObject(s, class, m.id, args, site)
	}
	// An abstract class throws instead of returning an object.
	if obj, err := x.rt.NewObject(x.rt.ClassName(class)); err == nil {
		x.bind(s, ev, obj, site)
	}
	return nil
}

func (x *session) newArray(s *jnicheck.Context, ev *Event, site string) error {
	arr, err := x.rt.NewArray(ev.Class)
	if err != nil {
		return fmt.Errorf("%w: array class %q: %w", ErrUnknownName, ev.Class, err)
	}
	x.bind(s, ev, arr, site)
	return nil
}

func (x *session) deleteLocal(s *jnicheck.Context, ev *Event, site string) error {
	ref, err := x.ref(ev.Ref)
	if err != nil {
		return err
	}
	x.c.CheckRefType(s, ref, vm.RefLocal, 1, site)
	s.DeleteLocal(ref)
	return nil
}

func (x *session) addGlobal(s *jnicheck.Context, ev *Event, site string, weak bool) error {
	ref, err := x.ref(ev.Ref)
	if err != nil {
		return err
	}
	x.c.CheckLive(s, ref, 1, site)
	x.c.AddGlobal(ref, weak)
	if ev.As != "" {
		x.refs[ev.As] = ref
	}
	return nil
}

func (x *session) newGlobal(s *jnicheck.Context, ev *Event, site string) error {
	return x.addGlobal(s, ev, site, false)
}

func (x *session) newWeak(s *jnicheck.Context, ev *Event, site string) error {
	return x.addGlobal(s, ev, site, true)
}

func (x *session) deleteGlobal(s *jnicheck.Context, ev *Event, site string) error {
	ref, err := x.ref(ev.Ref)
	if err != nil {
		return err
	}
	x.c.CheckRefType(s, ref, vm.RefGlobal, 1, site)
	x.c.DeleteGlobal(ref, false)
	return nil
}

func (x *session) deleteWeak(s *jnicheck.Context, ev *Event, site string) error {
	ref, err := x.ref(ev.Ref)
	if err != nil {
		return err
	}
	x.c.CheckWeak(s, ref, 1, site)
	x.c.DeleteGlobal(ref, true)
	return nil
}

// Identifiers.

func bindingName(ev *Event) string {
	if ev.As != "" {
		return ev.As
	}
	return ev.Name
}

func (x *session) getMethodID(s *jnicheck.Context, ev *Event, site string) error {
	class, err := x.class(ev.Class)
	if err != nil {
		return err
	}
	x.c.CheckClass(s, class, 1, site)
	mid, err := x.rt.Method(x.rt.ClassName(class), ev.Name, ev.Desc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownName, err)
	}
	// A rejected registration is logged by the checker; later calls through
	// the identifier report it as unknown.
	_, _ = x.c.RegisterMethod(mid, ev.Static, class, ev.Name, ev.Desc)
	x.methods[bindingName(ev)] = methodBinding{id: mid, desc: ev.Desc}
	return nil
}

func (x *session) getFieldID(s *jnicheck.Context, ev *Event, site string) error {
	class, err := x.class(ev.Class)
	if err != nil {
		return err
	}
	x.c.CheckClass(s, class, 1, site)
	fid, desc, err := x.rt.Field(x.rt.ClassName(class), ev.Name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownName, err)
	}
	_, _ = x.c.RegisterField(class, fid, ev.Static, ev.Name, desc)
	x.fields[bindingName(ev)] = fieldBinding{id: fid, desc: desc}
	return nil
}

// Calls.

func (x *session) call(s *jnicheck.Context, ev *Event, site string) error {
	m, err := x.method(ev.Method)
	if err != nil {
		return err
	}
	args, err := x.args(ev)
	if err != nil {
		return err
	}
	var rt byte
	if ev.Returns != "" {
		rt = ev.Returns[0]
	}

	switch ev.Kind {
	case kindInstance:
		obj, err := x.ref(ev.Ref)
		if err != nil {
			return err
		}
		_ = x.c.CheckNonNull(s, uintptr(obj), 1, site) &&
			x.c.CheckLive(s, obj, 1, site) &&
			x.c.CheckInstanceCall(s, obj, m.id, args, rt, site)
	case kindNonvirtual:
		obj, err := x.ref(ev.Ref)
		if err != nil {
			return err
		}
		class, err := x.class(ev.Class)
		if err != nil {
			return err
		}
		_ = x.c.CheckNonNull(s, uintptr(obj), 1, site) &&
			x.c.CheckLive(s, obj, 1, site) &&
			x.c.CheckClass(s, class, 2, site) &&
			x.c.CheckNonvirtualCall(s, obj, class, m.id, args, rt, site)
	case kindStatic:
		class, err := x.class(ev.Class)
		if err != nil {
			return err
		}
		_ = x.c.CheckClass(s, class, 1, site) &&
			x.c.CheckStaticCall(s, class, m.id, args, rt, site)
	case kindNewObject:
		class, err := x.class(ev.Class)
		if err != nil {
			return err
		}
		_ = x.c.CheckScalarAllocatable(s, class, 1, site) &&
			x.c.CheckNewObject(s, class, m.id, args, site)
		if obj, err := x.rt.NewObject(x.rt.ClassName(class)); err == nil {
			x.bind(s, ev, obj, site)
		}
		return nil
	}

	if ret := returnDesc(m.desc); ret != "" && metadata.IsReferenceTag(ret[0]) {
		x.bind(s, ev, x.instantiate(ret), site)
	}
	return nil
}

// Fields.

// fieldTarget resolves the object of an instance access or the class of a
// static one.
func (x *session) fieldTarget(ev *Event) (vm.Ref, error) {
	if ev.Static {
		return x.class(ev.Class)
	}
	return x.ref(ev.Ref)
}

func (x *session) getField(s *jnicheck.Context, ev *Event, site string) error {
	f, err := x.field(ev.Field)
	if err != nil {
		return err
	}
	target, err := x.fieldTarget(ev)
	if err != nil {
		return err
	}
	ok := x.c.CheckNonNull(s, uintptr(target), 1, site)
	if ev.Static {
		ok = ok && x.c.CheckClass(s, target, 1, site)
	} else {
		ok = ok && x.c.CheckLive(s, target, 1, site)
	}
	_ = ok && x.c.CheckFieldGet(s, target, f.id, ev.Static, tagOf(ev.Type, f.desc), site)
	if metadata.IsReferenceTag(f.desc[0]) {
		x.bind(s, ev, x.instantiate(f.desc), site)
	}
	return nil
}

func (x *session) setField(s *jnicheck.Context, ev *Event, site string) error {
	f, err := x.field(ev.Field)
	if err != nil {
		return err
	}
	target, err := x.fieldTarget(ev)
	if err != nil {
		return err
	}
	value, err := x.value(ev.Value)
	if err != nil {
		return err
	}
	ok := x.c.CheckNonNull(s, uintptr(target), 1, site)
	if ev.Static {
		ok = ok && x.c.CheckClass(s, target, 1, site)
	} else {
		ok = ok && x.c.CheckLive(s, target, 1, site)
	}
	if ok && ev.Value != nil && ev.Value.IsRef() {
		ok = x.c.CheckLive(s, value.Ref, 3, site)
	}
	_ = ok &&
		x.c.CheckFieldSet(s, target, f.id, ev.Static, tagOf(ev.Type, f.desc), value, site) &&
		x.c.CheckFieldAccess(s, target, f.id, ev.Static, 2, site)
	return nil
}

// Resources and critical regions.

func (x *session) acquire(s *jnicheck.Context, ev *Event, site string) error {
	if ev.Ref != "" {
		ref, err := x.ref(ev.Ref)
		if err != nil {
			return err
		}
		x.c.CheckLive(s, ref, 1, site)
	}
	x.c.Acquire(s, x.newResource(ev.As), site)
	return nil
}

func (x *session) release(s *jnicheck.Context, ev *Event, site string) error {
	res, err := x.resource(ev)
	if err != nil {
		return err
	}
	if x.c.CheckFree(s, res, site) {
		x.c.Release(s, res)
	}
	return nil
}

func (x *session) criticalEnter(s *jnicheck.Context, ev *Event, site string) error {
	if ev.Ref != "" {
		ref, err := x.ref(ev.Ref)
		if err != nil {
			return err
		}
		_ = x.c.CheckLive(s, ref, 1, site) && x.c.CheckAnyPrimitiveArray(s, ref, 1, site)
	}
	x.c.EnterCritical(s)
	if ev.As != "" {
		x.c.Acquire(s, x.newResource(ev.As), site)
	}
	return nil
}

func (x *session) criticalLeave(s *jnicheck.Context, ev *Event, site string) error {
	if ev.Resource != "" || ev.Handle != 0 {
		res, err := x.resource(ev)
		if err != nil {
			return err
		}
		if x.c.CheckFree(s, res, site) {
			x.c.Release(s, res)
		}
	}
	x.c.LeaveCritical(s)
	return nil
}

// Exceptions.

func (x *session) throw(s *jnicheck.Context, ev *Event, site string) error {
	ref, err := x.ref(ev.Ref)
	if err != nil {
		return err
	}
	if x.c.CheckThrowable(s, ref, 1, site) {
		x.rt.Throw(s.Env, ref)
	}
	return nil
}

func (x *session) clearException(s *jnicheck.Context, _ *Event, _ string) error {
	x.rt.ClearException(s.Env)
	return nil
}
