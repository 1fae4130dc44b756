package vm_test

import (
	"testing"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
	"github.com/fyrsmithlabs/jnicheck/internal/vmsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chain is a runtime whose class n has superclass n-1, down to 1.
type chain struct {
	vm.Runtime
	queries int
}

func (c *chain) GetSuperclass(class vm.Ref) vm.Ref {
	c.queries++
	if class <= 1 {
		return vm.Null
	}
	return class - 1
}

func (c *chain) IsSameObject(a, b vm.Ref) bool { return a == b }

func TestIsAncestor(t *testing.T) {
	rt := vmsim.New()
	object := rt.Class("java/lang/Object")
	throwable := rt.Class("java/lang/Throwable")
	rte := rt.Class("java/lang/RuntimeException")

	tests := []struct {
		name     string
		sup, sub vm.Ref
		want     bool
	}{
		{"self", rte, rte, true},
		{"direct", rt.Class("java/lang/Exception"), rte, true},
		{"root", object, rte, true},
		{"transitive", throwable, rte, true},
		{"reversed", rte, throwable, false},
		{"unrelated", rt.Class("java/lang/String"), rte, false},
		{"null sub", object, vm.Null, false},
		{"null sup", vm.Null, rte, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vm.IsAncestor(rt, tt.sup, tt.sub, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsAncestor_DepthLimit(t *testing.T) {
	c := &chain{}
	ok, err := vm.IsAncestor(c, 1, 10, 20)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = vm.IsAncestor(c, 1, 100, 8)
	assert.ErrorIs(t, err, vm.ErrHierarchyTooDeep)

	c.queries = 0
	_, err = vm.IsAncestor(c, 500, 400, 0)
	assert.ErrorIs(t, err, vm.ErrHierarchyTooDeep)
	assert.Equal(t, vm.DefaultMaxHierarchyDepth, c.queries, "one query per step")
}

func TestParsePhase(t *testing.T) {
	tests := map[string]vm.Phase{
		"bootstrap":  vm.PhaseBootstrap,
		"onload":     vm.PhaseBootstrap,
		"Primordial": vm.PhaseBootstrap,
		"start":      vm.PhaseStart,
		" live ":     vm.PhaseLive,
		"dead":       vm.PhaseDead,
	}
	for in, want := range tests {
		got, err := vm.ParsePhase(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := vm.ParsePhase("zombie")
	assert.ErrorIs(t, err, vm.ErrUnknownPhase)
}

func TestPhaseMode(t *testing.T) {
	assert.Equal(t, vm.ModeUser, vm.PhaseLive.Mode())
	for _, p := range []vm.Phase{vm.PhaseBootstrap, vm.PhaseStart, vm.PhaseDead} {
		assert.Equal(t, vm.ModeSystem, p.Mode(), p.String())
	}
	assert.Equal(t, "user-native", vm.ModeUser.String())
}

func TestPhaseText(t *testing.T) {
	var p vm.Phase
	require.NoError(t, p.UnmarshalText([]byte("live")))
	assert.Equal(t, vm.PhaseLive, p)
	b, err := p.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "live", string(b))
	assert.Error(t, p.UnmarshalText([]byte("later")))
}

func TestModifiers(t *testing.T) {
	m, err := vm.ParseModifiers([]string{"public", "static", "final"})
	require.NoError(t, err)
	assert.True(t, m.Has(vm.Static|vm.Final))
	assert.False(t, m.Has(vm.Private))
	assert.Equal(t, []string{"public", "static", "final"}, m.Names())

	_, err = vm.ParseModifiers([]string{"volatile"})
	assert.ErrorIs(t, err, vm.ErrUnknownModifier)
}

func TestHandles(t *testing.T) {
	assert.True(t, vm.Null.IsNull())
	assert.Equal(t, "0x1000", vm.Ref(0x1000).String())
	assert.Equal(t, vm.Ref(7), vm.Object(7).Ref)
	assert.Equal(t, uint64(42), vm.Int(42).Prim)
	assert.Equal(t, "weak global", vm.RefWeakGlobal.String())
}
