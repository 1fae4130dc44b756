// Package metadata caches what the runtime reports about method and field
// identifiers.
//
// Identifiers are stable for the lifetime of their declaring class, so
// records are resolved once on first sight and kept for the life of the
// process. The cache is shared by every call context.
package metadata

import (
	"fmt"
	"sort"
	"sync"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
	"go.uber.org/zap"
)

// Cache holds method and field records.
type Cache struct {
	rt vm.Runtime

	// methods is read on every checked call; inserts take methodMu and
	// re-check before publishing.
	methods     sync.Map
	methodMu    sync.Mutex
	methodCount int

	fieldMu    sync.RWMutex
	fields     map[vm.FieldID][]*FieldRecord
	fieldCount int

	maxMethods int
	maxFields  int
	maxDepth   int
	logger     *Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithLimits bounds the number of records. Zero means unbounded.
func WithLimits(maxMethods, maxFields int) Option {
	return func(c *Cache) {
		c.maxMethods = maxMethods
		c.maxFields = maxFields
	}
}

// WithMaxDepth bounds superclass walks during field lookup.
func WithMaxDepth(depth int) Option {
	return func(c *Cache) {
		c.maxDepth = depth
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		c.logger = NewLogger(logger)
	}
}

// NewCache returns an empty cache resolving records through rt.
func NewCache(rt vm.Runtime, opts ...Option) *Cache {
	c := &Cache{
		rt:       rt,
		fields:   make(map[vm.FieldID][]*FieldRecord),
		maxDepth: vm.DefaultMaxHierarchyDepth,
		logger:   NewLogger(nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LookupMethod returns the record for id.
func (c *Cache) LookupMethod(id vm.MethodID) (*MethodRecord, bool) {
	v, ok := c.methods.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*MethodRecord), true
}

// RegisterMethod records id on first sight and returns the existing record
// on every later call. class is the class the identifier was looked up
// through; the declaring class is resolved from the runtime.
func (c *Cache) RegisterMethod(id vm.MethodID, isStatic bool, class vm.Ref, name, descriptor string) (*MethodRecord, error) {
	if id == 0 {
		return nil, ErrNullIdentifier
	}
	if rec, ok := c.LookupMethod(id); ok {
		return rec, nil
	}

	rec, err := c.resolveMethod(id, isStatic, class, name, descriptor)
	if err != nil {
		return nil, err
	}

	c.methodMu.Lock()
	if existing, ok := c.LookupMethod(id); ok {
		c.methodMu.Unlock()
		return existing, nil
	}
	if c.maxMethods > 0 && c.methodCount >= c.maxMethods {
		c.methodMu.Unlock()
		c.logger.Rejected("method", name, c.maxMethods)
		return nil, fmt.Errorf("%w: %d methods", ErrCacheFull, c.maxMethods)
	}
	c.methods.Store(id, rec)
	c.methodCount++
	CacheEntries.WithLabelValues("method").Inc()
	c.methodMu.Unlock()

	c.logger.MethodRegistered(rec)
	return rec, nil
}

func (c *Cache) resolveMethod(id vm.MethodID, isStatic bool, class vm.Ref, name, descriptor string) (*MethodRecord, error) {
	md, err := ParseMethodDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	mods, err := c.rt.MethodModifiers(id)
	if err != nil {
		return nil, fmt.Errorf("method modifiers of %s: %w", id, err)
	}
	if mods.Has(vm.Static) != isStatic {
		return nil, fmt.Errorf("%w: %s.%s%s", ErrStaticMismatch, class, name, descriptor)
	}
	decl, err := c.rt.MethodDeclaringClass(id)
	if err != nil {
		return nil, fmt.Errorf("declaring class of %s: %w", id, err)
	}
	if decl.IsNull() {
		decl = class
	}
	sig, err := c.rt.ClassSignature(decl)
	if err != nil {
		return nil, fmt.Errorf("signature of %s: %w", decl, err)
	}
	return &MethodRecord{
		ID:         id,
		Declaring:  decl,
		Class:      sig,
		Name:       name,
		Descriptor: descriptor,
		Args:       md.Args,
		Return:     md.Return,
		Static:     isStatic,
		Modifiers:  mods,
	}, nil
}

// RegisterField records id as declared by the actual declaring class of the
// field, which may be an ancestor of class. Registering the same
// (declaring class, id) pair again returns the existing record.
func (c *Cache) RegisterField(class vm.Ref, id vm.FieldID, isStatic bool, name, descriptor string) (*FieldRecord, error) {
	if id == 0 {
		return nil, ErrNullIdentifier
	}
	if !ValidFieldDescriptor(descriptor) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedDescriptor, descriptor)
	}
	decl, err := c.rt.FieldDeclaringClass(class, id)
	if err != nil {
		return nil, fmt.Errorf("declaring class of field %s: %w", id, err)
	}

	c.fieldMu.RLock()
	existing := c.findDeclared(id, decl)
	c.fieldMu.RUnlock()
	if existing != nil {
		return existing, nil
	}

	mods, err := c.rt.FieldModifiers(decl, id)
	if err != nil {
		return nil, fmt.Errorf("field modifiers of %s: %w", id, err)
	}
	if mods.Has(vm.Static) != isStatic {
		return nil, fmt.Errorf("%w: field %s", ErrStaticMismatch, name)
	}
	sig, err := c.rt.ClassSignature(decl)
	if err != nil {
		return nil, fmt.Errorf("signature of %s: %w", decl, err)
	}
	rec := &FieldRecord{
		ID:           id,
		Declaring:    decl,
		Class:        sig,
		Name:         name,
		Descriptor:   descriptor,
		TypeClass:    ClassNameOf(descriptor),
		Static:       isStatic,
		Modifiers:    mods,
		MutableFinal: IsMutableFinal(sig, name),
	}

	c.fieldMu.Lock()
	if existing := c.findDeclared(id, decl); existing != nil {
		c.fieldMu.Unlock()
		return existing, nil
	}
	if c.maxFields > 0 && c.fieldCount >= c.maxFields {
		c.fieldMu.Unlock()
		c.logger.Rejected("field", name, c.maxFields)
		return nil, fmt.Errorf("%w: %d fields", ErrCacheFull, c.maxFields)
	}
	c.fields[id] = append(c.fields[id], rec)
	c.fieldCount++
	CacheEntries.WithLabelValues("field").Inc()
	c.fieldMu.Unlock()

	c.logger.FieldRegistered(rec)
	return rec, nil
}

// findDeclared must be called with fieldMu held.
func (c *Cache) findDeclared(id vm.FieldID, decl vm.Ref) *FieldRecord {
	for _, rec := range c.fields[id] {
		if c.rt.IsSameObject(rec.Declaring, decl) {
			return rec
		}
	}
	return nil
}

// LookupField finds the record for id usable through class. Static lookups
// require class to be the declaring class itself; instance lookups require
// the declaring class to be an ancestor of class. The error is
// non-nil only when the hierarchy walk itself fails.
func (c *Cache) LookupField(class vm.Ref, id vm.FieldID, isStatic bool) (*FieldRecord, bool, error) {
	c.fieldMu.RLock()
	candidates := c.fields[id]
	c.fieldMu.RUnlock()

	for i := len(candidates) - 1; i >= 0; i-- {
		rec := candidates[i]
		if isStatic {
			if c.rt.IsSameObject(class, rec.Declaring) {
				return rec, true, nil
			}
			continue
		}
		ok, err := vm.IsAncestor(c.rt, rec.Declaring, class, c.maxDepth)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return rec, true, nil
		}
	}
	return nil, false, nil
}

// Methods returns every method record ordered by identifier.
func (c *Cache) Methods() []*MethodRecord {
	var out []*MethodRecord
	c.methods.Range(func(_, v any) bool {
		out = append(out, v.(*MethodRecord))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Fields returns every field record ordered by identifier.
func (c *Cache) Fields() []*FieldRecord {
	c.fieldMu.RLock()
	out := make([]*FieldRecord, 0, c.fieldCount)
	for _, recs := range c.fields {
		out = append(out, recs...)
	}
	c.fieldMu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of method and field records.
func (c *Cache) Len() (methods, fields int) {
	c.methodMu.Lock()
	methods = c.methodCount
	c.methodMu.Unlock()
	c.fieldMu.RLock()
	fields = c.fieldCount
	c.fieldMu.RUnlock()
	return methods, fields
}
