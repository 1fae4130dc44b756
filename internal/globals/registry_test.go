package globals

import (
	"sync"
	"testing"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_AddRemove(t *testing.T) {
	tests := []struct {
		name string
		weak bool
	}{
		{"strong", false},
		{"weak", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			const ref vm.Ref = 0x42

			r.Add(ref, tt.weak)
			assert.True(t, r.Contains(ref, tt.weak))
			assert.False(t, r.Contains(ref, !tt.weak))
			assert.True(t, r.Alive(ref))

			r.Remove(ref, tt.weak)
			assert.False(t, r.Alive(ref))
		})
	}
}

func TestRegistry_DoubleAddSingleRemove(t *testing.T) {
	r := NewRegistry()
	r.Add(1, false)
	r.Add(1, false)
	assert.Equal(t, 1, r.Len(false))

	r.Remove(1, false)
	assert.False(t, r.Alive(1), "registry does not count references")
}

func TestRegistry_RemoveAbsent(t *testing.T) {
	r := NewRegistry()
	assert.NotPanics(t, func() { r.Remove(9, true) })
	assert.Equal(t, 0, r.Len(true))
}

func TestRegistry_SameHandleInBothSets(t *testing.T) {
	r := NewRegistry()
	r.Add(5, false)
	r.Add(5, true)

	r.Remove(5, false)
	assert.True(t, r.Alive(5), "weak membership keeps the handle alive")
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ref := vm.Ref(base*1000 + i + 1)
				r.Add(ref, i%2 == 0)
				_ = r.Alive(ref)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 800, r.Len(false)+r.Len(true))
}

func TestGlobalRefs_SumsAcrossRegistries(t *testing.T) {
	gauge := GlobalRefs.WithLabelValues("weak")
	before := testutil.ToFloat64(gauge)

	a, b := NewRegistry(), NewRegistry()
	a.Add(vm.Ref(0x10), true)
	a.Add(vm.Ref(0x10), true)
	b.Add(vm.Ref(0x20), true)
	assert.Equal(t, before+2, testutil.ToFloat64(gauge))

	b.Remove(vm.Ref(0x20), true)
	b.Remove(vm.Ref(0x20), true)
	a.Remove(vm.Ref(0x99), true)
	assert.Equal(t, before+1, testutil.ToFloat64(gauge), "a second registry must not overwrite the first")

	a.Remove(vm.Ref(0x10), true)
	assert.Equal(t, before, testutil.ToFloat64(gauge))
}
