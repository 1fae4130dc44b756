package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
	"github.com/fyrsmithlabs/jnicheck/internal/diag"
	"github.com/fyrsmithlabs/jnicheck/internal/frames"
	"github.com/fyrsmithlabs/jnicheck/internal/jnicheck"
	"github.com/fyrsmithlabs/jnicheck/internal/logging"
	"github.com/fyrsmithlabs/jnicheck/internal/telemetry"
)

func countingConfig() config.CheckerConfig {
	cfg := config.Default().Checker
	cfg.MethodCount = true
	return cfg
}

func checks(diags []diag.Diagnostic) []diag.Check {
	out := make([]diag.Check, len(diags))
	for i, d := range diags {
		out[i] = d.Check
	}
	return out
}

func statFor(stats []jnicheck.CallStat, site string) uint64 {
	for _, s := range stats {
		if s.Site == site {
			return uint64(s.Count)
		}
	}
	return 0
}

// runInline parses and runs a script body against the testdata universe.
func runInline(t *testing.T, body string, opts ...Option) (*Result, error) {
	t.Helper()
	script, err := ParseScript([]byte(body))
	require.NoError(t, err)
	script.Path = "testdata/inline.yaml"
	return NewRunner(opts...).Run(context.Background(), script)
}

func TestRunner_CleanScript(t *testing.T) {
	script, err := LoadScript("testdata/clean.yaml")
	require.NoError(t, err)

	res, err := NewRunner(WithCheckerConfig(countingConfig())).Run(context.Background(), script)
	require.NoError(t, err)

	assert.True(t, res.Clean(), "unexpected diagnostics: %v", res.Diagnostics)
	assert.Empty(t, res.Leaks)
	assert.Equal(t, "clean", res.Script)
	assert.Equal(t, len(script.Events), res.Events)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, uint64(1), statFor(res.Stats, "NewObjectA"))
	assert.Equal(t, uint64(1), statFor(res.Stats, "CallStaticObjectMethodV"))
	assert.Equal(t, uint64(1), statFor(res.Stats, "CallVoidMethodA"))
	assert.Equal(t, uint64(1), statFor(res.Stats, "GetIntField"))
	assert.Equal(t, uint64(1), statFor(res.Stats, "SetStaticIntField"))
	assert.Equal(t, uint64(3), statFor(res.Stats, "GetMethodID")+statFor(res.Stats, "GetStaticMethodID"))

	require.Len(t, res.Dumps, 1)
	snap := res.Dumps[0].Snapshot
	assert.Len(t, snap.Contexts, 1)
	assert.Equal(t, 3, snap.Methods)
	assert.Equal(t, 2, snap.Fields)
	assert.Equal(t, 1, snap.GlobalRefs)

	assert.Empty(t, res.Checker.Contexts(), "thread_end should remove the context")
}

func TestRunner_Violations(t *testing.T) {
	script, err := LoadScript("testdata/violations.yaml")
	require.NoError(t, err)

	res, err := NewRunner().Run(context.Background(), script)
	require.NoError(t, err)

	assert.Equal(t, []diag.Check{
		diag.CheckFrameCapacity,
		diag.CheckMethodKind,
		diag.CheckFinalField,
		diag.CheckNotScalar,
		diag.CheckDeadReference,
		diag.CheckCriticalRegion,
		diag.CheckUntrackedFree,
		diag.CheckDoubleFree,
		diag.CheckEnvMismatch,
		diag.CheckPendingException,
		diag.CheckFrameShape,
		diag.CheckResourceLeak,
	}, checks(res.Diagnostics))

	require.Len(t, res.Leaks, 1)
	assert.Equal(t, "GetArrayElements", res.Leaks[0].Site)

	byCheck := func(c diag.Check) diag.Diagnostic {
		for _, d := range res.Diagnostics {
			if d.Check == c {
				return d
			}
		}
		t.Fatalf("no %s diagnostic", c)
		return diag.Diagnostic{}
	}
	assert.Equal(t, "NewIntArray", byCheck(diag.CheckFrameCapacity).Site)
	assert.Equal(t, "CallStaticVoidMethodA", byCheck(diag.CheckMethodKind).Site)
	assert.Equal(t, "SetLongField", byCheck(diag.CheckFinalField).Site)
	assert.Equal(t, 2, byCheck(diag.CheckFinalField).Index)
	assert.Equal(t, "AllocObject", byCheck(diag.CheckCriticalRegion).Site)
	assert.Equal(t, "GetFieldID", byCheck(diag.CheckPendingException).Site)
	assert.Equal(t, "native Demo.broken", byCheck(diag.CheckFrameShape).Site)
	assert.Equal(t, "main", byCheck(diag.CheckDeadReference).Thread)
	assert.Equal(t, res.RunID, byCheck(diag.CheckResourceLeak).RunID)
}

func TestRunner_SystemPhaseSuppressesLiveness(t *testing.T) {
	body := `
events:
  - {op: thread_start, thread: boot}
  - {op: enter, thread: boot, capacity: 4}
  - {op: new_object, thread: boot, class: demo/Point, as: p}
  - {op: delete_local, thread: boot, ref: p}
  - {op: check, thread: boot, check: live, ref: p}
  - {op: phase, phase: live}
  - {op: check, thread: boot, check: live, ref: p}
`
	res, err := runInline(t, `universe: universe.yaml`+body)
	require.NoError(t, err)
	assert.Equal(t, []diag.Check{diag.CheckDeadReference}, checks(res.Diagnostics))
}

func TestRunner_DeadPhaseOnlyAudits(t *testing.T) {
	res, err := runInline(t, `
universe: universe.yaml
events:
  - {op: thread_start, thread: main}
  - {op: phase, phase: dead}
  - {op: enter, thread: main, capacity: 1}
  - {op: acquire, thread: main, as: buf}
  - {op: release, thread: main, handle: 0x99}
  - {op: new_object, thread: main, class: demo/Shape}
`)
	require.NoError(t, err)
	assert.Equal(t, []diag.Check{diag.CheckResourceLeak}, checks(res.Diagnostics))
}

func TestRunner_ArgumentForms(t *testing.T) {
	tests := []struct {
		name string
		form string
		args string
		want []diag.Check
	}{
		{"array ok", "array", "[1, q]", nil},
		{"cursor ok", "cursor", "[1, q]", nil},
		{"array short", "array", "[1]", []diag.Check{diag.CheckArgumentCount}},
		{"wrong reference type", "cursor", "[1, ints]", []diag.Check{diag.CheckNotAssignable}},
		{"dead reference argument", "array", "[1, gone]", []diag.Check{diag.CheckDeadReference}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := runInline(t, `
universe: universe.yaml
events:
  - {op: thread_start, thread: main}
  - {op: phase, phase: live}
  - {op: enter, thread: main, capacity: 8}
  - {op: get_method_id, thread: main, class: demo/Point, name: move, desc: "(ILdemo/Point;)V"}
  - {op: new_object, thread: main, class: demo/Point, as: p}
  - {op: new_object, thread: main, class: demo/Point, as: q}
  - {op: new_object, thread: main, class: demo/Point, as: gone}
  - {op: delete_local, thread: main, ref: gone}
  - {op: new_array, thread: main, class: "[I", as: ints}
  - {op: call, thread: main, kind: instance, ref: p, method: move, form: `+tt.form+`, args: `+tt.args+`}
  - {op: leave, thread: main}
`)
			require.NoError(t, err)
			assert.Equal(t, tt.want, nilIfEmpty(checks(res.Diagnostics)))
		})
	}
}

func nilIfEmpty(c []diag.Check) []diag.Check {
	if len(c) == 0 {
		return nil
	}
	return c
}

func TestRunner_ReturnTypeMismatch(t *testing.T) {
	res, err := runInline(t, `
universe: universe.yaml
events:
  - {op: thread_start, thread: main}
  - {op: phase, phase: live}
  - {op: enter, thread: main}
  - {op: get_method_id, thread: main, class: demo/Point, name: name, desc: "()Ljava/lang/String;"}
  - {op: new_object, thread: main, class: demo/Point, as: p}
  - {op: call, thread: main, kind: instance, ref: p, method: name, returns: I}
  - {op: call, thread: main, kind: instance, ref: p, method: name, returns: L, as: label}
  - {op: check, thread: main, check: string, ref: label}
`)
	require.NoError(t, err)
	assert.Equal(t, []diag.Check{diag.CheckReturnType}, checks(res.Diagnostics))
	assert.Equal(t, "CallIntMethodA", res.Diagnostics[0].Site)
}

func TestRunner_Globals(t *testing.T) {
	res, err := runInline(t, `
universe: universe.yaml
events:
  - {op: thread_start, thread: main}
  - {op: thread_start, thread: worker}
  - {op: phase, phase: live}
  - {op: enter, thread: main}
  - {op: enter, thread: worker}
  - {op: new_object, thread: main, class: demo/Point, as: p}
  - {op: new_weak, thread: main, ref: p, as: wp}
  - {op: leave, thread: main}
  - {op: check, thread: worker, check: live, ref: wp}
  - {op: check, thread: worker, check: weak, ref: wp}
  - {op: delete_global, thread: worker, ref: wp}
  - {op: delete_weak, thread: worker, ref: wp}
  - {op: check, thread: worker, check: live, ref: wp}
`)
	require.NoError(t, err)
	assert.Equal(t, []diag.Check{diag.CheckRefType, diag.CheckDeadReference}, checks(res.Diagnostics))
	assert.Equal(t, "DeleteGlobalRef", res.Diagnostics[0].Site)
	assert.Equal(t, "worker", res.Diagnostics[1].Thread)
}

func TestRunner_GlobalFromDeadLocalStillRegisters(t *testing.T) {
	res, err := runInline(t, `
universe: universe.yaml
events:
  - {op: thread_start, thread: main}
  - {op: phase, phase: live}
  - {op: enter, thread: main}
  - {op: enter, thread: main}
  - {op: new_object, thread: main, class: demo/Point, as: p}
  - {op: leave, thread: main}
  - {op: new_global, thread: main, ref: p, as: gp}
  - {op: check, thread: main, check: live, ref: gp}
  - {op: delete_global, thread: main, ref: gp}
  - {op: new_global, thread: main, ref: p, as: gp2}
`)
	require.NoError(t, err)
	require.Equal(t, []diag.Check{diag.CheckDeadReference, diag.CheckDeadReference}, checks(res.Diagnostics))
	assert.Equal(t, "NewGlobalRef", res.Diagnostics[0].Site)
	assert.Equal(t, "NewGlobalRef", res.Diagnostics[1].Site)
	assert.Equal(t, 1, res.Checker.Snapshot().GlobalRefs)
}

func TestRunner_ScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		events string
		want   error
	}{
		{
			name:   "unknown thread",
			events: `  - {op: enter, thread: ghost}`,
			want:   ErrUnknownThread,
		},
		{
			name: "unknown reference",
			events: `  - {op: thread_start, thread: main}
  - {op: check, thread: main, check: live, ref: nobody}`,
			want: ErrUnknownName,
		},
		{
			name: "unknown method",
			events: `  - {op: thread_start, thread: main}
  - {op: enter, thread: main}
  - {op: new_object, thread: main, class: demo/Point, as: p}
  - {op: call, thread: main, kind: instance, ref: p, method: missing}`,
			want: ErrUnknownName,
		},
		{
			name: "unknown class",
			events: `  - {op: thread_start, thread: main}
  - {op: get_method_id, thread: main, class: demo/Nope, name: run, desc: "()V"}`,
			want: ErrUnknownName,
		},
		{
			name: "member not found",
			events: `  - {op: thread_start, thread: main}
  - {op: get_field_id, thread: main, class: demo/Point, name: nope}`,
			want: ErrUnknownName,
		},
		{
			name: "thread started twice",
			events: `  - {op: thread_start, thread: main}
  - {op: thread_start, thread: main}`,
			want: ErrInvalidScript,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runInline(t, "universe: universe.yaml\nevents:\n"+tt.events+"\n")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRunner_InvariantAborts(t *testing.T) {
	_, err := runInline(t, `
events:
  - {op: thread_start, thread: main}
  - {op: leave, thread: main}
  - {op: phase, phase: live}
`)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.ErrorIs(t, err, frames.ErrStackUnderflow)

	var inv *jnicheck.InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "leave frame", inv.Op)
	assert.Contains(t, err.Error(), "event 1 (leave")
}

func TestRunner_Cancelled(t *testing.T) {
	script, err := LoadScript("testdata/clean.yaml")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewRunner().Run(ctx, script)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_ExtraSinkAndLogging(t *testing.T) {
	var forwarded []diag.Diagnostic
	sink := diag.SinkFunc(func(d diag.Diagnostic) { forwarded = append(forwarded, d) })
	logger := logging.NewTestLogger()

	script, err := LoadScript("testdata/violations.yaml")
	require.NoError(t, err)
	res, err := NewRunner(WithSink(sink), WithLogger(logger.Underlying())).Run(context.Background(), script)
	require.NoError(t, err)

	assert.Equal(t, res.Diagnostics, forwarded)
	logger.AssertLogged(t, zapcore.InfoLevel, "replay started")
	logger.AssertLogged(t, zapcore.WarnLevel, "replay finished")
	logger.AssertNotLogged(t, zapcore.DebugLevel, "event applied")
}

func TestRunner_VerboseLogsEvents(t *testing.T) {
	logger := logging.NewTestLogger()
	cfg := config.Default().Checker
	cfg.Verbose = true

	script, err := LoadScript("testdata/clean.yaml")
	require.NoError(t, err)
	_, err = NewRunner(WithCheckerConfig(cfg), WithLogger(logger.Underlying())).Run(context.Background(), script)
	require.NoError(t, err)

	assert.Equal(t, len(script.Events), logger.FilterMessage("event applied").Len())
	logger.AssertLogged(t, zapcore.InfoLevel, "data dump")
}

func TestRunner_Spans(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	script, err := LoadScript("testdata/violations.yaml")
	require.NoError(t, err)

	res, err := NewRunner(WithTracer(tel.Tracer(InstrumentationName))).Run(context.Background(), script)
	require.NoError(t, err)

	tel.AssertSpanExists(t, "replay.run")
	tel.AssertSpanExists(t, "jnicheck.audit_leaks")
	tel.AssertSpanAttribute(t, "replay.run", "script", "violations")
	tel.AssertSpanAttribute(t, "replay.run", "diagnostics", int64(len(res.Diagnostics)))
	tel.AssertSpanAttribute(t, "replay.run", "leaks", int64(1))
	tel.AssertSpanAttribute(t, "jnicheck.audit_leaks", "leaks", int64(1))
}

func TestRunner_RecorderLimit(t *testing.T) {
	script, err := LoadScript("testdata/violations.yaml")
	require.NoError(t, err)

	res, err := NewRunner(WithRecorderLimit(3)).Run(context.Background(), script)
	require.NoError(t, err)
	assert.Len(t, res.Diagnostics, 3)
	assert.Equal(t, 12, res.Recorder.Total())
}
