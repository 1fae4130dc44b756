package jnicheck

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/jnicheck/internal/config"
	"github.com/fyrsmithlabs/jnicheck/internal/logging"
)

func TestRecordCall_Disabled(t *testing.T) {
	f := newFixture(t)
	f.c.RecordCall("FindClass")
	assert.Empty(t, f.c.Stats())
}

func TestRecordCall_Sorted(t *testing.T) {
	f := newFixture(t, WithConfig(config.CheckerConfig{MethodCount: true}))
	before := testutil.ToFloat64(CallsTotal.WithLabelValues("GetIntField"))

	for i := 0; i < 3; i++ {
		f.c.RecordCall("GetIntField")
	}
	f.c.RecordCall("FindClass")
	f.c.RecordCall("CallVoidMethod")

	assert.Equal(t, []CallStat{
		{Site: "GetIntField", Count: 3},
		{Site: "CallVoidMethod", Count: 1},
		{Site: "FindClass", Count: 1},
	}, f.c.Stats())
	assert.Equal(t, before+3, testutil.ToFloat64(CallsTotal.WithLabelValues("GetIntField")))
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"", "FindClass", false},
		{"*", "FindClass", true},
		{"*", "", true},
		{"Get*Field", "GetIntField", true},
		{"Get*Field", "GetStaticIntField", true},
		{"Get*Field", "SetIntField", false},
		{"main", "main", true},
		{"worker-?", "worker-1", false},
		{"worker-?", "worker-?", true},
		{"[", "[", true},
		{"native*", "native demo/Native.run", true},
		{"*run", "native demo/Native.run", true},
		{"*/Native.*", "native demo/Native.run", true},
		{"*/Other.*", "native demo/Native.run", false},
		{"a**b", "a/x/b", true},
		{"*a*b", "aab", true},
		{"ab*", "a", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchName(tt.pattern, tt.name), "%q ~ %q", tt.pattern, tt.name)
	}
}

func TestTraceCall(t *testing.T) {
	tl := logging.NewTestLogger()
	f := newFixture(t,
		WithLogger(tl.Underlying()),
		WithConfig(config.CheckerConfig{TraceMethods: "Get*Field", TraceThreads: "main"}),
	)
	assert.True(t, f.c.TraceCall(f.s, "GetIntField"))
	assert.False(t, f.c.TraceCall(f.s, "CallVoidMethod"))

	id, err := f.c.ContextStart(0x9000, StartInfo{Name: "worker"})
	require.NoError(t, err)
	worker, _ := f.c.Context(id)
	assert.False(t, f.c.TraceCall(worker, "GetIntField"))

	entries := tl.FilterMessage("call").All()
	require.Len(t, entries, 1)
	assert.Equal(t, logging.TraceLevel, entries[0].Level)
	assert.Equal(t, "GetIntField", entries[0].ContextMap()["site"])
}

func TestTraceCall_DisabledByDefault(t *testing.T) {
	f := newFixture(t)
	assert.False(t, f.c.Traced(f.s, "GetIntField"))
}
