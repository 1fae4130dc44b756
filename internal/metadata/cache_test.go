package metadata

import (
	"sync"
	"testing"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
	"github.com/fyrsmithlabs/jnicheck/internal/vmsim"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newRuntime(t *testing.T) *vmsim.Runtime {
	t.Helper()
	rt := vmsim.New()
	require.NoError(t, rt.Load(vmsim.Universe{Classes: []vmsim.ClassSpec{
		{
			Name: "demo/Base",
			Fields: []vmsim.MemberSpec{
				{Name: "count", Desc: "I"},
				{Name: "NAME", Desc: "Ljava/lang/String;", Modifiers: []string{"public", "static"}},
			},
			Methods: []vmsim.MemberSpec{
				{Name: "<init>", Desc: "()V", Modifiers: []string{"public"}},
				{Name: "run", Desc: "(ILjava/lang/String;)Z", Modifiers: []string{"public"}},
				{Name: "make", Desc: "()Ldemo/Base;", Modifiers: []string{"public", "static"}},
			},
		},
		{Name: "demo/Derived", Super: "demo/Base"},
		{Name: "demo/Other"},
	}}))
	return rt
}

func TestCache_RegisterMethod(t *testing.T) {
	rt := newRuntime(t)
	c := NewCache(rt)

	mid, err := rt.Method("demo/Derived", "run", "(ILjava/lang/String;)Z")
	require.NoError(t, err)

	rec, err := c.RegisterMethod(mid, false, rt.Class("demo/Derived"), "run", "(ILjava/lang/String;)Z")
	require.NoError(t, err)
	assert.Equal(t, rt.Class("demo/Base"), rec.Declaring, "declaring class comes from the runtime")
	assert.Equal(t, "Ldemo/Base;", rec.Class)
	assert.Equal(t, []string{"I", "Ljava/lang/String;"}, rec.Args)
	assert.Equal(t, byte('Z'), rec.ReturnTag())
	assert.False(t, rec.IsConstructor())

	again, err := c.RegisterMethod(mid, false, rt.Class("demo/Derived"), "run", "(ILjava/lang/String;)Z")
	require.NoError(t, err)
	assert.Same(t, rec, again)

	got, ok := c.LookupMethod(mid)
	require.True(t, ok)
	assert.Same(t, rec, got)

	methods, fields := c.Len()
	assert.Equal(t, 1, methods)
	assert.Equal(t, 0, fields)
}

func TestCache_RegisterMethodErrors(t *testing.T) {
	rt := newRuntime(t)
	c := NewCache(rt)
	base := rt.Class("demo/Base")

	mk, err := rt.Method("demo/Base", "make", "()Ldemo/Base;")
	require.NoError(t, err)

	_, err = c.RegisterMethod(mk, false, base, "make", "()Ldemo/Base;")
	assert.ErrorIs(t, err, ErrStaticMismatch)

	_, err = c.RegisterMethod(mk, true, base, "make", "(")
	assert.ErrorIs(t, err, ErrMalformedDescriptor)

	_, err = c.RegisterMethod(0, true, base, "make", "()V")
	assert.ErrorIs(t, err, ErrNullIdentifier)

	_, err = c.RegisterMethod(0xbad0, true, base, "ghost", "()V")
	assert.ErrorIs(t, err, vm.ErrInvalidHandle)

	_, ok := c.LookupMethod(mk)
	assert.False(t, ok, "failed registrations leave no record")
}

func TestCache_Constructor(t *testing.T) {
	rt := newRuntime(t)
	c := NewCache(rt)
	ctor, err := rt.Method("demo/Base", "<init>", "()V")
	require.NoError(t, err)
	rec, err := c.RegisterMethod(ctor, false, rt.Class("demo/Base"), "<init>", "()V")
	require.NoError(t, err)
	assert.True(t, rec.IsConstructor())
}

func TestCache_MethodLimit(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rt := newRuntime(t)
	c := NewCache(rt, WithLimits(1, 0), WithLogger(zap.New(core)))
	base := rt.Class("demo/Base")

	run, _ := rt.Method("demo/Base", "run", "(ILjava/lang/String;)Z")
	mk, _ := rt.Method("demo/Base", "make", "()Ldemo/Base;")

	_, err := c.RegisterMethod(run, false, base, "run", "(ILjava/lang/String;)Z")
	require.NoError(t, err)
	_, err = c.RegisterMethod(mk, true, base, "make", "()Ldemo/Base;")
	assert.ErrorIs(t, err, ErrCacheFull)

	_, err = c.RegisterMethod(run, false, base, "run", "(ILjava/lang/String;)Z")
	assert.NoError(t, err, "known identifiers still resolve when full")

	require.Equal(t, 1, logs.FilterMessage("identifier cache full").Len())
	assert.Equal(t, "metadata", logs.All()[0].LoggerName)
}

func TestCache_FieldLookupThroughSubclass(t *testing.T) {
	rt := newRuntime(t)
	c := NewCache(rt)
	derived := rt.Class("demo/Derived")

	fid, desc, err := rt.Field("demo/Derived", "count")
	require.NoError(t, err)
	rec, err := c.RegisterField(derived, fid, false, "count", desc)
	require.NoError(t, err)
	assert.Equal(t, rt.Class("demo/Base"), rec.Declaring)
	assert.Equal(t, byte('I'), rec.Tag())

	got, ok, err := c.LookupField(derived, fid, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, rec, got)

	got, ok, err = c.LookupField(rt.Class("demo/Base"), fid, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Same(t, rec, got)

	_, ok, err = c.LookupField(rt.Class("demo/Other"), fid, false)
	require.NoError(t, err)
	assert.False(t, ok, "unrelated class cannot see the field")
}

func TestCache_StaticFieldLookup(t *testing.T) {
	rt := newRuntime(t)
	c := NewCache(rt)

	fid, desc, err := rt.Field("demo/Base", "NAME")
	require.NoError(t, err)
	rec, err := c.RegisterField(rt.Class("demo/Base"), fid, true, "NAME", desc)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/String", rec.TypeClass)

	got, ok, err := c.LookupField(rt.Class("demo/Base"), fid, true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, rec, got)

	_, ok, err = c.LookupField(rt.Class("demo/Derived"), fid, true)
	require.NoError(t, err)
	assert.False(t, ok, "static fields resolve only through the declaring class")
	_, ok, _ = c.LookupField(rt.Class("demo/Other"), fid, true)
	assert.False(t, ok)
}

func TestCache_RegisterFieldErrors(t *testing.T) {
	rt := newRuntime(t)
	c := NewCache(rt, WithLimits(0, 1))
	base := rt.Class("demo/Base")

	count, _, _ := rt.Field("demo/Base", "count")
	name, _, _ := rt.Field("demo/Base", "NAME")

	_, err := c.RegisterField(base, count, true, "count", "I")
	assert.ErrorIs(t, err, ErrStaticMismatch)
	_, err = c.RegisterField(base, count, false, "count", "Q")
	assert.ErrorIs(t, err, ErrMalformedDescriptor)
	_, err = c.RegisterField(base, 0, false, "count", "I")
	assert.ErrorIs(t, err, ErrNullIdentifier)

	first, err := c.RegisterField(base, count, false, "count", "I")
	require.NoError(t, err)
	second, err := c.RegisterField(rt.Class("demo/Derived"), count, false, "count", "I")
	require.NoError(t, err)
	assert.Same(t, first, second, "same declaring class deduplicates")

	_, err = c.RegisterField(base, name, true, "NAME", "Ljava/lang/String;")
	assert.ErrorIs(t, err, ErrCacheFull)
}

func TestCache_MutableFinal(t *testing.T) {
	rt := vmsim.New()
	c := NewCache(rt)
	sys := rt.Class("java/lang/System")
	out, desc, err := rt.Field("java/lang/System", "out")
	require.NoError(t, err)

	rec, err := c.RegisterField(sys, out, true, "out", desc)
	require.NoError(t, err)
	assert.True(t, rec.IsFinal())
	assert.True(t, rec.MutableFinal)

	maxv, desc, err := rt.Field("java/lang/Integer", "MAX_VALUE")
	require.NoError(t, err)
	rec, err = c.RegisterField(rt.Class("java/lang/Integer"), maxv, true, "MAX_VALUE", desc)
	require.NoError(t, err)
	assert.True(t, rec.IsFinal())
	assert.False(t, rec.MutableFinal)
}

func TestCache_ConcurrentRegister(t *testing.T) {
	rt := newRuntime(t)
	c := NewCache(rt)
	base := rt.Class("demo/Base")
	run, _ := rt.Method("demo/Base", "run", "(ILjava/lang/String;)Z")
	before := testutil.ToFloat64(CacheEntries.WithLabelValues("method"))

	var wg sync.WaitGroup
	recs := make([]*MethodRecord, 16)
	for i := range recs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := c.RegisterMethod(run, false, base, "run", "(ILjava/lang/String;)Z")
			if err == nil {
				recs[i] = rec
			}
		}(i)
	}
	wg.Wait()

	for _, rec := range recs {
		assert.Same(t, recs[0], rec)
	}
	methods, _ := c.Len()
	assert.Equal(t, 1, methods)
	assert.Len(t, c.Methods(), 1)
	assert.Equal(t, before+1, testutil.ToFloat64(CacheEntries.WithLabelValues("method")))
}

func TestCacheEntries_SumsAcrossCaches(t *testing.T) {
	rt := newRuntime(t)
	base := rt.Class("demo/Base")
	count, _, _ := rt.Field("demo/Base", "count")
	gauge := CacheEntries.WithLabelValues("field")
	before := testutil.ToFloat64(gauge)

	first, second := NewCache(rt), NewCache(rt)
	_, err := first.RegisterField(base, count, false, "count", "I")
	require.NoError(t, err)
	_, err = second.RegisterField(base, count, false, "count", "I")
	require.NoError(t, err)
	_, err = first.RegisterField(base, count, false, "count", "I")
	require.NoError(t, err)

	assert.Equal(t, before+2, testutil.ToFloat64(gauge))
}
