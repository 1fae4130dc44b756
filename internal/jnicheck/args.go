package jnicheck

import "github.com/fyrsmithlabs/jnicheck/internal/vm"

// Cursor yields call arguments one at a time, the way a variable argument
// list is consumed. tag is the descriptor tag of the next argument, which a
// real argument list needs to know how wide the value is.
type Cursor interface {
	Next(tag byte) (vm.Value, bool)
}

// SliceCursor is a Cursor over a fixed list of values.
type SliceCursor struct {
	values []vm.Value
	pos    int
}

// NewSliceCursor returns a cursor positioned at the first value.
func NewSliceCursor(values ...vm.Value) *SliceCursor {
	return &SliceCursor{values: values}
}

// Next implements Cursor.
func (c *SliceCursor) Next(byte) (vm.Value, bool) {
	if c.pos >= len(c.values) {
		return vm.Value{}, false
	}
	v := c.values[c.pos]
	c.pos++
	return v, true
}

// ArgSource tells how an Args value delivers its arguments.
type ArgSource int

const (
	SourceArray ArgSource = iota
	SourceCursor
)

func (s ArgSource) String() string {
	if s == SourceCursor {
		return "cursor"
	}
	return "array"
}

// Args is the argument list of an intercepted call: either a sequential
// cursor or an indexed array.
type Args struct {
	source ArgSource
	cursor Cursor
	values []vm.Value
}

// CursorArgs wraps a sequential argument source.
func CursorArgs(c Cursor) Args {
	return Args{source: SourceCursor, cursor: c}
}

// ArrayArgs wraps an indexed argument array.
func ArrayArgs(values []vm.Value) Args {
	return Args{source: SourceArray, values: values}
}

// Source returns the argument source kind.
func (a Args) Source() ArgSource { return a.source }

// value returns argument i. Cursor sources must be read in order.
func (a Args) value(i int, tag byte) (vm.Value, bool) {
	if a.source == SourceCursor {
		if a.cursor == nil {
			return vm.Value{}, false
		}
		return a.cursor.Next(tag)
	}
	if i >= len(a.values) {
		return vm.Value{}, false
	}
	return a.values[i], true
}
