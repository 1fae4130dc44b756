package jnicheck

import (
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/jnicheck/internal/metadata"
	"github.com/fyrsmithlabs/jnicheck/internal/vm"
)

// builtinClasses holds the class handles the type predicates compare
// against.
type builtinClasses struct {
	string      vm.Ref
	class       vm.Ref
	classLoader vm.Ref
	throwable   vm.Ref
	field       vm.Ref
	method      vm.Ref
	constructor vm.Ref
	buffer      vm.Ref
	arrays      map[byte]vm.Ref
}

var primitiveArrayTags = []byte{
	metadata.TagBoolean, metadata.TagByte, metadata.TagChar, metadata.TagShort,
	metadata.TagInt, metadata.TagLong, metadata.TagFloat, metadata.TagDouble,
}

// Init binds the built-in class handles. It must run once the runtime can
// resolve core library classes and before any type predicate is used.
// Calling it again rebinds.
func (c *Checker) Init() error {
	var errs []error
	find := func(name string) vm.Ref {
		ref, err := c.rt.FindClass(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		return ref
	}

	b := builtinClasses{
		string:      find("java/lang/String"),
		class:       find("java/lang/Class"),
		classLoader: find("java/lang/ClassLoader"),
		throwable:   find("java/lang/Throwable"),
		field:       find("java/lang/reflect/Field"),
		method:      find("java/lang/reflect/Method"),
		constructor: find("java/lang/reflect/Constructor"),
		buffer:      find("java/nio/Buffer"),
		arrays:      make(map[byte]vm.Ref, len(primitiveArrayTags)),
	}
	for _, tag := range primitiveArrayTags {
		b.arrays[tag] = find("[" + string(tag))
	}
	if len(errs) > 0 {
		return fmt.Errorf("jnicheck: init: %w", errors.Join(errs...))
	}

	c.classes = b
	c.initialized.Store(true)
	c.logger.Initialized(c.runID, 8+len(b.arrays))
	return nil
}

// Initialized reports whether Init succeeded.
func (c *Checker) Initialized() bool {
	return c.initialized.Load()
}

// builtins returns the bound classes. Before Init it raises an invariant
// failure and returns false so the caller passes the check.
func (c *Checker) builtins(s *Context, op string) (*builtinClasses, bool) {
	if !c.initialized.Load() {
		c.invariant(s, op, ErrNotInitialized)
		return nil, false
	}
	return &c.classes, true
}
