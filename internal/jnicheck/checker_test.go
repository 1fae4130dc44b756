package jnicheck

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/frames"
	"github.com/fyrsmithlabs/jnicheck/internal/logging"
	"github.com/fyrsmithlabs/jnicheck/internal/telemetry"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
	"github.com/fyrsmithlabs/jnicheck/internal/vmsim"
)

const testEnv vm.Env = 0x7f00

var demoUniverse = vmsim.Universe{Classes: []vmsim.ClassSpec{
	{
		Name: "demo/Point",
		Fields: []vmsim.MemberSpec{
			{Name: "x", Desc: "I"},
			{Name: "label", Desc: "Ljava/lang/String;"},
			{Name: "ID", Desc: "J", Modifiers: []string{"private", "final"}},
			{Name: "ORIGIN", Desc: "Ldemo/Point;", Modifiers: []string{"public", "static", "final"}},
			{Name: "COUNT", Desc: "I", Modifiers: []string{"public", "static"}},
		},
		Methods: []vmsim.MemberSpec{
			{Name: "<init>", Desc: "()V", Modifiers: []string{"public"}},
			{Name: "<init>", Desc: "(II)V", Modifiers: []string{"public"}},
			{Name: "move", Desc: "(ILdemo/Point;)V", Modifiers: []string{"public"}},
			{Name: "name", Desc: "()Ljava/lang/String;", Modifiers: []string{"public"}},
			{Name: "coords", Desc: "()[I", Modifiers: []string{"public"}},
			{Name: "secret", Desc: "()V", Modifiers: []string{"private"}},
			{Name: "create", Desc: "(II)Ldemo/Point;", Modifiers: []string{"public", "static"}},
		},
	},
	{Name: "demo/Point3D", Super: "demo/Point", Fields: []vmsim.MemberSpec{{Name: "z", Desc: "I"}}},
	{Name: "demo/Shape", Modifiers: []string{"public", "abstract"}},
	{Name: "demo/Drawable", Modifiers: []string{"public", "interface", "abstract"}},
	{Name: "demo/Unrelated"},
}}

type fixture struct {
	t          *testing.T
	rt         *vmsim.Runtime
	rec        *diag.Recorder
	c          *Checker
	s          *Context
	invariants []*InvariantError
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	rt := vmsim.New()
	require.NoError(t, rt.Load(demoUniverse))

	f := &fixture{t: t, rt: rt, rec: diag.NewRecorder(0)}
	opts = append([]Option{
		WithRunID("test-run"),
		WithInvariantHandler(func(e *InvariantError) { f.invariants = append(f.invariants, e) }),
	}, opts...)
	c, err := New(rt, f.rec, opts...)
	require.NoError(t, err)
	require.NoError(t, c.Init())
	c.Transition(vm.PhaseLive)

	id, err := c.ContextStart(testEnv, StartInfo{Name: "main", ThreadID: 1})
	require.NoError(t, err)
	s, err := c.Context(id)
	require.NoError(t, err)
	s.EnterFrame(16, false)

	f.c = c
	f.s = s
	return f
}

// local allocates an object of class and records it in the top frame.
func (f *fixture) local(class string) vm.Ref {
	f.t.Helper()
	ref, err := f.rt.NewObject(class)
	require.NoError(f.t, err)
	f.s.AddLocal(ref)
	return ref
}

func (f *fixture) method(class, name, desc string, static bool) vm.MethodID {
	f.t.Helper()
	mid, err := f.rt.Method(class, name, desc)
	require.NoError(f.t, err)
	_, err = f.c.RegisterMethod(mid, static, f.rt.Class(class), name, desc)
	require.NoError(f.t, err)
	return mid
}

func (f *fixture) field(class, name string, static bool) vm.FieldID {
	f.t.Helper()
	fid, desc, err := f.rt.Field(class, name)
	require.NoError(f.t, err)
	_, err = f.c.RegisterField(f.rt.Class(class), fid, static, name, desc)
	require.NoError(f.t, err)
	return fid
}

// only asserts that exactly one diagnostic was reported since the last call
// and that it carries check.
func (f *fixture) only(check diag.Check) diag.Diagnostic {
	f.t.Helper()
	all := f.rec.All()
	require.Len(f.t, all, 1, "diagnostics: %v", all)
	f.rec.Reset()
	assert.Equal(f.t, check, all[0].Check)
	return all[0]
}

func (f *fixture) none() {
	f.t.Helper()
	assert.Empty(f.t, f.rec.All())
}

func TestNew_RequiresRuntime(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(vmsim.New(), nil, WithConfig(config.CheckerConfig{}))
	require.NoError(t, err)

	cfg := c.Config()
	assert.Equal(t, vm.DefaultMaxHierarchyDepth, cfg.MaxHierarchyDepth)
	assert.Equal(t, config.DefaultFrameCapacity, cfg.DefaultFrameCapacity)
	assert.Equal(t, "*", cfg.TraceThreads)
	assert.NotEmpty(t, c.RunID())
	assert.Equal(t, vm.PhaseBootstrap, c.Phase())
	assert.False(t, c.Initialized())
}

func TestInit_MissingClass(t *testing.T) {
	rt := &missingClassRuntime{Runtime: vmsim.New()}
	c, err := New(rt, nil)
	require.NoError(t, err)

	err = c.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, vm.ErrClassNotFound)
	assert.Contains(t, err.Error(), "java/nio/Buffer")
	assert.False(t, c.Initialized())
}

type missingClassRuntime struct {
	*vmsim.Runtime
}

func (r *missingClassRuntime) FindClass(name string) (vm.Ref, error) {
	if name == "java/nio/Buffer" {
		return vm.Null, vm.ErrClassNotFound
	}
	return r.Runtime.FindClass(name)
}

func TestInit_LogsBinding(t *testing.T) {
	tl := logging.NewTestLogger()
	c, err := New(vmsim.New(), nil, WithLogger(tl.Underlying()), WithRunID("run-1"))
	require.NoError(t, err)
	require.NoError(t, c.Init())

	tl.AssertLogged(t, zapcore.InfoLevel, "checker initialized")
	tl.AssertField(t, "checker initialized", "classes", int64(16))
}

func TestBuiltinsBeforeInit(t *testing.T) {
	var got []*InvariantError
	c, err := New(vmsim.New(), nil, WithInvariantHandler(func(e *InvariantError) { got = append(got, e) }))
	require.NoError(t, err)
	c.Transition(vm.PhaseLive)
	id, err := c.ContextStart(testEnv, StartInfo{Name: "main"})
	require.NoError(t, err)
	s, _ := c.Context(id)

	assert.True(t, c.CheckString(s, vm.Ref(0x10), 1, "GetStringLength"))
	require.Len(t, got, 1)
	assert.ErrorIs(t, got[0], ErrNotInitialized)
}

func TestContextLifecycle(t *testing.T) {
	c, err := New(vmsim.New(), nil)
	require.NoError(t, err)

	_, err = c.ContextStart(0, StartInfo{})
	assert.ErrorIs(t, err, ErrNullEnv)

	id1, err := c.ContextStart(0x10, StartInfo{Name: "main", ThreadID: 7})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id1)

	_, err = c.ContextStart(0x10, StartInfo{Name: "dup"})
	assert.ErrorIs(t, err, ErrDuplicateEnv)

	id2, err := c.ContextStart(0x20, StartInfo{Name: "worker"})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id2)

	s, err := c.ContextFor(0x20)
	require.NoError(t, err)
	assert.Equal(t, id2, s.ID)
	assert.Equal(t, "worker", s.Name)

	infos := c.Contexts()
	require.Len(t, infos, 2)
	assert.Equal(t, "main", infos[0].Name)
	assert.Equal(t, int64(7), infos[0].ThreadID)

	c.ContextEnd(id1)
	c.ContextEnd(id1)
	c.ContextEnd(999)
	_, err = c.Context(id1)
	assert.ErrorIs(t, err, ErrUnknownContext)
	_, err = c.ContextFor(0x10)
	assert.ErrorIs(t, err, ErrUnknownContext)

	id3, err := c.ContextStart(0x10, StartInfo{Name: "again"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), id3)
}

func TestTransition(t *testing.T) {
	tl := logging.NewTestLogger()
	c, err := New(vmsim.New(), nil, WithLogger(tl.Underlying()))
	require.NoError(t, err)

	id, err := c.ContextStart(0x10, StartInfo{Name: "main"})
	require.NoError(t, err)
	s, _ := c.Context(id)
	assert.Equal(t, vm.PhaseBootstrap, s.Phase())
	assert.Equal(t, vm.ModeSystem, s.Mode())

	c.Transition(vm.PhaseLive)
	assert.Equal(t, vm.PhaseLive, s.Phase())
	assert.Equal(t, vm.ModeUser, s.Mode())

	id2, err := c.ContextStart(0x20, StartInfo{Name: "late"})
	require.NoError(t, err)
	s2, _ := c.Context(id2)
	assert.Equal(t, vm.PhaseLive, s2.Phase())

	s2.SetPhase(vm.PhaseStart)
	assert.Equal(t, vm.PhaseLive, s.Phase())

	tl.AssertLogged(t, zapcore.InfoLevel, "phase transition")
	tl.AssertField(t, "phase transition", "contexts", int64(1))
}

func TestScenarioA_FrameLiveness(t *testing.T) {
	f := newFixture(t)
	s := f.s

	s.EnterFrame(8, false)
	r := f.local("demo/Point")
	assert.True(t, s.IsLive(r))
	assert.True(t, f.c.CheckLive(s, r, 1, "GetObjectClass"))

	require.NoError(t, s.LeaveFrame())
	assert.False(t, s.IsLive(r))
	assert.False(t, f.c.CheckLive(s, r, 1, "GetObjectClass"))

	d := f.only(diag.CheckDeadReference)
	assert.Equal(t, "A dead JNI reference at 1'th to GetObjectClass", d.Message)
	assert.Equal(t, uintptr(r), d.Handle)
	assert.Equal(t, 1, d.Index)
	assert.Equal(t, "test-run", d.RunID)
	assert.Equal(t, s.ID, d.ContextID)
	assert.Equal(t, testEnv, d.Env)
	assert.Equal(t, "main", d.Thread)
	assert.Equal(t, diag.KindProtocol, d.Kind)
}

func TestScenarioB_StaticVersusInstance(t *testing.T) {
	f := newFixture(t)
	point := f.rt.Class("demo/Point")
	obj := f.local("demo/Point")
	mid := f.method("demo/Point", "name", "()Ljava/lang/String;", false)

	assert.False(t, f.c.CheckStaticCall(f.s, point, mid, ArrayArgs(nil), 0, "CallStaticObjectMethod"))
	d := f.only(diag.CheckMethodKind)
	assert.Contains(t, d.Message, "An instance methodID")
	assert.Contains(t, d.Message, "CallStaticObjectMethod")

	assert.True(t, f.c.CheckInstanceCall(f.s, obj, mid, ArrayArgs(nil), 'L', "CallObjectMethod"))
	f.none()
}

func TestScenarioC_LeakAudit(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	f := newFixture(t, WithTracer(tt.Tracer(InstrumentationName)))
	ctx := context.Background()

	f.c.Acquire(f.s, 0xbeef, "alloc_buf")
	report, clean := f.c.AuditLeaks(ctx)
	assert.False(t, clean)
	require.Len(t, report.Leaks, 1)
	assert.Equal(t, uintptr(0xbeef), report.Leaks[0].Resource)
	assert.Equal(t, "alloc_buf", report.Leaks[0].Site)
	d := f.only(diag.CheckResourceLeak)
	assert.Contains(t, d.Message, "0xbeef by alloc_buf")

	assert.True(t, f.c.CheckFree(f.s, 0xbeef, "release_buf"))
	assert.True(t, f.c.Release(f.s, 0xbeef))
	report, clean = f.c.AuditLeaks(ctx)
	assert.True(t, clean)
	assert.Empty(t, report.Leaks)
	f.none()

	tt.AssertSpanExists(t, "jnicheck.audit_leaks")
}

func TestScenarioD_PhaseSuppressesLiveness(t *testing.T) {
	c, err := New(vmsim.New(), diag.Discard)
	require.NoError(t, err)
	id, err := c.ContextStart(testEnv, StartInfo{Name: "main"})
	require.NoError(t, err)
	s, _ := c.Context(id)
	s.EnterFrame(4, false)

	unknown := vm.Ref(0xdead0)
	assert.True(t, s.IsLive(unknown))

	c.Transition(vm.PhaseLive)
	assert.False(t, s.IsLive(unknown))
}

func TestGlobalsKeepReferencesLive(t *testing.T) {
	f := newFixture(t)
	s := f.s

	s.EnterFrame(4, false)
	strong := f.local("demo/Point")
	weak := f.local("demo/Point")
	f.c.AddGlobal(strong, false)
	f.c.AddGlobal(weak, true)
	f.c.AddGlobal(vm.Null, false)
	require.NoError(t, s.LeaveFrame())

	assert.True(t, s.IsLive(strong))
	assert.True(t, s.IsLive(weak))

	f.c.DeleteGlobal(strong, false)
	f.c.DeleteGlobal(weak, false)
	assert.False(t, s.IsLive(strong))
	assert.True(t, s.IsLive(weak))

	f.c.DeleteGlobal(weak, true)
	assert.False(t, s.IsLive(weak))
}

func TestLocalsAcrossContexts(t *testing.T) {
	f := newFixture(t)
	id, err := f.c.ContextStart(0x8000, StartInfo{Name: "worker"})
	require.NoError(t, err)
	other, _ := f.c.Context(id)
	other.EnterFrame(4, false)

	r := f.local("demo/Point")
	assert.True(t, f.s.IsLive(r))
	assert.False(t, other.IsLive(r))
	assert.False(t, f.c.CheckLive(other, r, 2, "CallVoidMethod"))
	d := f.only(diag.CheckDeadReference)
	assert.Equal(t, "worker", d.Thread)
}

func TestLeaveFrame_Underflow(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.s.LeaveFrame())

	err := f.s.LeaveFrame()
	assert.ErrorIs(t, err, frames.ErrStackUnderflow)
	require.Len(t, f.invariants, 1)
	assert.Equal(t, "leave frame", f.invariants[0].Op)
	assert.Equal(t, f.s.ID, f.invariants[0].ContextID)
	f.none()
}

func TestDefaultInvariantHandlerPanics(t *testing.T) {
	tl := logging.NewTestLogger()
	c, err := New(vmsim.New(), nil, WithLogger(tl.Underlying()))
	require.NoError(t, err)
	id, err := c.ContextStart(testEnv, StartInfo{Name: "main"})
	require.NoError(t, err)
	s, _ := c.Context(id)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		e, ok := r.(*InvariantError)
		require.True(t, ok)
		assert.True(t, errors.Is(e, frames.ErrStackUnderflow))
		assert.Contains(t, e.Error(), "context 1")
		tl.AssertLogged(t, zapcore.ErrorLevel, "invariant violated")
	}()
	_ = s.LeaveFrame()
	t.Fatal("expected panic")
}

func TestDeadPhaseSkipsChecks(t *testing.T) {
	f := newFixture(t)
	f.c.Transition(vm.PhaseDead)
	s := f.s

	assert.True(t, f.c.CheckEnvMatch(s, 0x1, "FindClass"))
	assert.True(t, f.c.CheckLive(s, vm.Ref(0xdead0), 1, "GetObjectClass"))
	assert.True(t, f.c.CheckNonNull(s, 0, 1, "GetObjectClass"))
	assert.True(t, f.c.CheckStaticCall(s, vm.Null, vm.MethodID(0x999), ArrayArgs(nil), 0, "CallStaticVoidMethod"))
	assert.True(t, f.c.CheckFrameShape(s, "native"))
	f.none()
}

func TestClockAndSnapshot(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := newFixture(t, WithClock(func() time.Time { return at }), WithConfig(config.CheckerConfig{MethodCount: true}))
	f.method("demo/Point", "name", "()Ljava/lang/String;", false)
	f.field("demo/Point", "x", false)
	f.c.AddGlobal(f.local("demo/Point"), false)
	f.c.Acquire(f.s, 0x1, "GetIntArrayElements")
	f.c.RecordCall("GetIntArrayElements")

	assert.False(t, f.c.CheckNonNull(f.s, 0, 2, "GetIntArrayElements"))
	assert.Equal(t, at, f.only(diag.CheckNullArgument).Time)

	snap := f.c.Snapshot()
	assert.Equal(t, "test-run", snap.RunID)
	assert.Equal(t, vm.PhaseLive, snap.Phase)
	require.Len(t, snap.Contexts, 1)
	assert.Equal(t, 1, snap.Methods)
	assert.Equal(t, 1, snap.Fields)
	assert.Equal(t, 1, snap.GlobalRefs)
	assert.Equal(t, 0, snap.WeakRefs)
	assert.Equal(t, 1, snap.Resources)
	assert.Equal(t, []CallStat{{Site: "GetIntArrayElements", Count: 1}}, snap.Calls)
}

func TestMetricsRecordFailures(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	m, err := NewMetrics(tt.Meter(InstrumentationName))
	require.NoError(t, err)
	f := newFixture(t, WithMetrics(m))
	ctx := context.Background()

	f.c.CheckNonNull(f.s, 0, 1, "GetObjectClass")
	f.c.CheckNonNull(f.s, 0, 1, "GetObjectClass")
	f.s.EnterFrame(4, true)

	n, ok := tt.Int64Sum(ctx, "jnicheck.predicate.failures", attribute.String("check", string(diag.CheckNullArgument)))
	require.True(t, ok)
	assert.Equal(t, int64(2), n)

	n, ok = tt.Int64Sum(ctx, "jnicheck.frames.entered", attribute.Bool("sentinel", true))
	require.True(t, ok)
	assert.Equal(t, int64(1), n)

	n, ok = tt.Int64Sum(ctx, "jnicheck.contexts.active")
	require.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordFailure(ctx, "x")
	m.RecordFrameEntered(ctx, 1, false)
	m.RecordContextStarted(ctx)
	m.RecordContextEnded(ctx)
}
