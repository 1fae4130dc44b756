package jnicheck

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/fyrsmithlabs/jnicheck/internal/frames"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// StartInfo identifies the native thread behind a new context.
type StartInfo struct {
	Name     string
	ThreadID int64
}

// Context is the per-thread call state: the local frame stack, the
// critical-region depth and the thread identity. Only the phase may be
// touched from other threads.
type Context struct {
	ID       uint64
	Env      vm.Env
	Name     string
	ThreadID int64

	phase    atomic.Int32
	stack    *frames.Stack
	critical int
	checker  *Checker
}

// Phase returns the phase this context is validated under.
func (s *Context) Phase() vm.Phase { return vm.Phase(s.phase.Load()) }

// SetPhase overrides the phase of this context only.
func (s *Context) SetPhase(p vm.Phase) { s.phase.Store(int32(p)) }

// Mode returns the enforcement mode of the current phase.
func (s *Context) Mode() vm.Mode { return s.Phase().Mode() }

// Critical returns the current critical-region depth.
func (s *Context) Critical() int { return s.critical }

// Depth returns the number of local frames.
func (s *Context) Depth() int { return s.stack.Depth() }

// Top returns the innermost local frame, or nil.
func (s *Context) Top() *frames.Frame { return s.stack.Top() }

// EnterFrame pushes a local frame. capacity <= 0 enters an untracked frame
// for runtime-managed boundaries.
func (s *Context) EnterFrame(capacity int, sentinel bool) {
	s.stack.Enter(capacity, sentinel)
	s.checker.metrics.RecordFrameEntered(context.Background(), s.stack.Depth(), sentinel)
}

// LeaveFrame pops the innermost frame. Leaving an empty stack is an
// invariant failure.
func (s *Context) LeaveFrame() error {
	if err := s.stack.Leave(); err != nil {
		s.checker.invariant(s, "leave frame", err)
		return err
	}
	return nil
}

// AddLocal records a new local reference in the innermost frame. Null
// references and full or untracked frames record nothing.
func (s *Context) AddLocal(ref vm.Ref) bool {
	if ref.IsNull() {
		return false
	}
	return s.stack.Add(ref)
}

// DeleteLocal removes a local reference from the innermost frame.
func (s *Context) DeleteLocal(ref vm.Ref) bool {
	if ref.IsNull() {
		return false
	}
	return s.stack.Delete(ref)
}

// IsLive reports whether ref is recorded in any frame of this context or in
// either global set. In system-native mode every reference is live.
func (s *Context) IsLive(ref vm.Ref) bool {
	if s.stack.Contains(ref) || s.checker.globals.Alive(ref) {
		return true
	}
	return s.Mode() == vm.ModeSystem
}

// GrowIfNeeded doubles the innermost frame when it is full and reports
// whether it grew. This is the only mutating step of capacity handling;
// CheckCapacity only reports.
func (s *Context) GrowIfNeeded() bool {
	top := s.stack.Top()
	if top == nil || !top.Tracked() || !top.Full() {
		return false
	}
	from := top.Capacity()
	to := top.Grow()
	s.checker.logger.CapacityGrown(s, from, to)
	return true
}

func (s *Context) String() string {
	return fmt.Sprintf("context(%d %q env=%s)", s.ID, s.Name, s.Env)
}

// ContextInfo is the thread-safe view of a context.
type ContextInfo struct {
	ID       uint64   `json:"id"`
	Env      vm.Env   `json:"env"`
	Name     string   `json:"name"`
	ThreadID int64    `json:"thread_id"`
	Phase    vm.Phase `json:"phase"`
}

type contextRegistry struct {
	mu     sync.RWMutex
	byID   map[uint64]*Context
	byEnv  map[vm.Env]*Context
	nextID atomic.Uint64
}

func newContextRegistry() *contextRegistry {
	return &contextRegistry{
		byID:  make(map[uint64]*Context),
		byEnv: make(map[vm.Env]*Context),
	}
}

func (r *contextRegistry) add(s *Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEnv[s.Env]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateEnv, s.Env)
	}
	s.ID = r.nextID.Add(1)
	r.byID[s.ID] = s
	r.byEnv[s.Env] = s
	return nil
}

func (r *contextRegistry) remove(id uint64) (*Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	delete(r.byEnv, s.Env)
	return s, true
}

func (r *contextRegistry) get(id uint64) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

func (r *contextRegistry) forEnv(env vm.Env) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byEnv[env]
	return s, ok
}

// each calls fn for every live context and returns how many there were.
func (r *contextRegistry) each(fn func(*Context)) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		fn(s)
	}
	return len(r.byID)
}

func (r *contextRegistry) infos() []ContextInfo {
	r.mu.RLock()
	out := make([]ContextInfo, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, ContextInfo{
			ID:       s.ID,
			Env:      s.Env,
			Name:     s.Name,
			ThreadID: s.ThreadID,
			Phase:    s.Phase(),
		})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *contextRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// ContextStart allocates the call state for a native thread that became
// observable and returns its id. Ids start at 1.
func (c *Checker) ContextStart(env vm.Env, info StartInfo) (uint64, error) {
	if env == 0 {
		return 0, ErrNullEnv
	}
	s := &Context{
		Env:      env,
		Name:     info.Name,
		ThreadID: info.ThreadID,
		stack:    frames.NewStack(),
		checker:  c,
	}
	s.SetPhase(c.Phase())
	if err := c.contexts.add(s); err != nil {
		return 0, err
	}
	ContextsLive.Set(float64(c.contexts.len()))
	c.metrics.RecordContextStarted(context.Background())
	c.logger.ContextStarted(s)
	return s.ID, nil
}

// ContextEnd frees the call state of a finished thread. Unknown ids are
// ignored: threads that started before the checker attached end without
// ever having a context.
func (c *Checker) ContextEnd(id uint64) {
	s, ok := c.contexts.remove(id)
	if !ok {
		return
	}
	ContextsLive.Set(float64(c.contexts.len()))
	c.metrics.RecordContextEnded(context.Background())
	c.logger.ContextEnded(s, s.Depth())
}

// Context returns the live context with the given id.
func (c *Checker) Context(id uint64) (*Context, error) {
	s, ok := c.contexts.get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownContext, id)
	}
	return s, nil
}

// ContextFor returns the live context bound to env.
func (c *Checker) ContextFor(env vm.Env) (*Context, error) {
	s, ok := c.contexts.forEnv(env)
	if !ok {
		return nil, fmt.Errorf("%w: env %s", ErrUnknownContext, env)
	}
	return s, nil
}

// Contexts returns a view of every live context ordered by id.
func (c *Checker) Contexts() []ContextInfo {
	return c.contexts.infos()
}
