package vmsim

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CoreLibrary(t *testing.T) {
	r := New()
	for _, name := range []string{
		"java/lang/Object", "java/lang/String", "java/lang/Class",
		"java/lang/Throwable", "java/lang/ClassLoader", "java/lang/System",
		"java/lang/reflect/Field", "java/lang/reflect/Method",
		"java/lang/reflect/Constructor", "java/nio/Buffer",
	} {
		assert.NotEqual(t, vm.Null, r.Class(name), name)
	}
}

func TestRuntime_HierarchyQueries(t *testing.T) {
	r := New()
	object := r.Class("java/lang/Object")
	throwable := r.Class("java/lang/Throwable")
	rte := r.Class("java/lang/RuntimeException")
	str := r.Class("java/lang/String")

	assert.Equal(t, object, r.GetSuperclass(throwable))
	assert.Equal(t, vm.Null, r.GetSuperclass(object))

	assert.True(t, r.IsAssignableFrom(rte, throwable))
	assert.False(t, r.IsAssignableFrom(throwable, rte))
	assert.False(t, r.IsAssignableFrom(str, throwable))
	assert.True(t, r.IsAssignableFrom(str, object))

	ok, err := vm.IsAncestor(r, throwable, rte, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRuntime_Arrays(t *testing.T) {
	r := New()

	ints, err := r.FindClass("[I")
	require.NoError(t, err)
	assert.True(t, r.IsArrayClass(ints))

	sig, err := r.ClassSignature(ints)
	require.NoError(t, err)
	assert.Equal(t, "[I", sig)

	strs, err := r.FindClass("[Ljava/lang/String;")
	require.NoError(t, err)
	objs, err := r.FindClass("[Ljava/lang/Object;")
	require.NoError(t, err)
	assert.True(t, r.IsAssignableFrom(strs, objs), "reference arrays are covariant")
	assert.False(t, r.IsAssignableFrom(objs, strs))
	assert.True(t, r.IsAssignableFrom(ints, r.Class("java/lang/Object")))

	_, err = r.FindClass("[Lno/Such;")
	assert.ErrorIs(t, err, vm.ErrClassNotFound)

	arr, err := r.NewArray("[[J")
	require.NoError(t, err)
	assert.Equal(t, "[[J", r.ClassName(r.GetObjectClass(arr)))
}

func TestRuntime_ObjectsAndClassObjects(t *testing.T) {
	r := New()
	s, err := r.NewObject("java/lang/String")
	require.NoError(t, err)
	assert.Equal(t, r.Class("java/lang/String"), r.GetObjectClass(s))
	assert.Equal(t, r.Class("java/lang/Class"), r.GetObjectClass(r.Class("java/lang/String")))
	assert.Equal(t, vm.RefLocal, r.ObjectRefType(s))
	assert.Equal(t, vm.RefInvalid, r.ObjectRefType(0xdead))

	r.SetRefType(s, vm.RefWeakGlobal)
	assert.Equal(t, vm.RefWeakGlobal, r.ObjectRefType(s))

	_, err = r.NewObject("java/lang/Number")
	assert.ErrorIs(t, err, ErrAbstractInstance)
}

func TestRuntime_Members(t *testing.T) {
	r := New()

	mid, err := r.Method("java/lang/Integer", "hashCode", "()I")
	require.NoError(t, err, "inherited methods resolve through the superclass chain")
	decl, err := r.MethodDeclaringClass(mid)
	require.NoError(t, err)
	assert.Equal(t, r.Class("java/lang/Object"), decl)

	_, err = r.Method("java/lang/Integer", "<init>", "()V")
	assert.ErrorIs(t, err, ErrMemberNotFound, "constructors are not inherited")

	fid, desc, err := r.Field("java/lang/System", "out")
	require.NoError(t, err)
	assert.Equal(t, "Ljava/io/PrintStream;", desc)
	mods, err := r.FieldModifiers(vm.Null, fid)
	require.NoError(t, err)
	assert.True(t, mods.Has(vm.Static|vm.Final))

	name, d, err := r.MethodName(mid)
	require.NoError(t, err)
	assert.Equal(t, "hashCode", name)
	assert.Equal(t, "()I", d)
}

func TestRuntime_Exceptions(t *testing.T) {
	r := New()
	const env vm.Env = 1
	ex, err := r.NewObject("java/lang/Throwable")
	require.NoError(t, err)

	assert.False(t, r.ExceptionCheck(env))
	r.Throw(env, ex)
	assert.True(t, r.ExceptionCheck(env))
	assert.False(t, r.ExceptionCheck(2))
	r.ClearException(env)
	assert.False(t, r.ExceptionCheck(env))
}

func TestRuntime_LoadOutOfOrder(t *testing.T) {
	u, err := LoadUniverse(filepath.Join("testdata", "shapes.yaml"))
	require.NoError(t, err)

	r := New()
	require.NoError(t, r.Load(u))

	circle := r.Class("demo/Circle")
	named := r.Class("demo/Named")
	require.NotEqual(t, vm.Null, circle)
	assert.True(t, r.IsAssignableFrom(circle, named), "interfaces are inherited")
	assert.Equal(t, vm.Null, r.GetSuperclass(named))

	mods, err := r.ClassModifiers(r.Class("demo/Shape"))
	require.NoError(t, err)
	assert.True(t, mods.Has(vm.Abstract))
}

func TestLoadUniverse_TOML(t *testing.T) {
	u, err := LoadUniverse(filepath.Join("testdata", "shapes.toml"))
	require.NoError(t, err)
	require.Len(t, u.Classes, 2)
	assert.Equal(t, "demo/Square", u.Classes[1].Name)
	assert.Equal(t, "COUNT", u.Classes[0].Fields[0].Name)

	r := New()
	require.NoError(t, r.Load(u))
	_, err = r.Method("demo/Square", "<init>", "(D)V")
	assert.NoError(t, err)
}

func TestLoadUniverse_Unsupported(t *testing.T) {
	_, err := LoadUniverse("classes.json")
	assert.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestRuntime_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		u    Universe
		want error
	}{
		{"missing super", Universe{Classes: []ClassSpec{{Name: "a/B", Super: "a/Missing"}}}, ErrUnresolvable},
		{"duplicate", Universe{Classes: []ClassSpec{{Name: "java/lang/String"}}}, ErrDuplicateClass},
		{"empty name", Universe{Classes: []ClassSpec{{}}}, ErrEmptyName},
		{"bad modifier", Universe{Classes: []ClassSpec{{Name: "a/C", Modifiers: []string{"sealed"}}}}, vm.ErrUnknownModifier},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, New().Load(tt.u), tt.want)
		})
	}
}

func TestRuntime_ConcurrentAllocation(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	refs := make(chan vm.Ref, 400)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ref, err := r.NewObject("java/lang/String")
				if err == nil {
					refs <- ref
				}
			}
		}()
	}
	wg.Wait()
	close(refs)

	seen := make(map[vm.Ref]bool)
	for ref := range refs {
		assert.False(t, seen[ref], "handles must be unique")
		seen[ref] = true
	}
	assert.Len(t, seen, 400)
}
