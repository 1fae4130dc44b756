package metadata

import (
	"fmt"
	"strings"
)

// Type tags as they appear in descriptors.
const (
	TagBoolean byte = 'Z'
	TagByte    byte = 'B'
	TagChar    byte = 'C'
	TagShort   byte = 'S'
	TagInt     byte = 'I'
	TagLong    byte = 'J'
	TagFloat   byte = 'F'
	TagDouble  byte = 'D'
	TagVoid    byte = 'V'
	TagObject  byte = 'L'
	TagArray   byte = '['
)

// IsPrimitiveTag reports whether tag names a primitive value type.
func IsPrimitiveTag(tag byte) bool {
	switch tag {
	case TagBoolean, TagByte, TagChar, TagShort, TagInt, TagLong, TagFloat, TagDouble:
		return true
	}
	return false
}

// IsReferenceTag reports whether tag names an object or array type.
func IsReferenceTag(tag byte) bool {
	return tag == TagObject || tag == TagArray
}

// PrimitiveName returns the source-level name of a primitive tag.
func PrimitiveName(tag byte) string {
	switch tag {
	case TagBoolean:
		return "boolean"
	case TagByte:
		return "byte"
	case TagChar:
		return "char"
	case TagShort:
		return "short"
	case TagInt:
		return "int"
	case TagLong:
		return "long"
	case TagFloat:
		return "float"
	case TagDouble:
		return "double"
	case TagVoid:
		return "void"
	}
	return string(tag)
}

// MethodDescriptor is a parsed method descriptor.
type MethodDescriptor struct {
	Args   []string
	Return string
}

// ParseMethodDescriptor splits "(ILjava/lang/String;[J)V" into its argument
// and return field descriptors.
func ParseMethodDescriptor(desc string) (MethodDescriptor, error) {
	var md MethodDescriptor
	if len(desc) < 3 || desc[0] != '(' {
		return md, fmt.Errorf("%w: %q", ErrMalformedDescriptor, desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldDescriptorLen(desc[i:])
		if err != nil {
			return md, fmt.Errorf("%w: %q at %d", ErrMalformedDescriptor, desc, i)
		}
		md.Args = append(md.Args, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return md, fmt.Errorf("%w: %q missing ')'", ErrMalformedDescriptor, desc)
	}
	ret := desc[i+1:]
	if ret == "V" {
		md.Return = ret
		return md, nil
	}
	n, err := fieldDescriptorLen(ret)
	if err != nil || n != len(ret) {
		return md, fmt.Errorf("%w: %q bad return type", ErrMalformedDescriptor, desc)
	}
	md.Return = ret
	return md, nil
}

// ValidFieldDescriptor reports whether desc is exactly one field descriptor.
func ValidFieldDescriptor(desc string) bool {
	n, err := fieldDescriptorLen(desc)
	return err == nil && n == len(desc)
}

// fieldDescriptorLen returns the length of the field descriptor at the start
// of s.
func fieldDescriptorLen(s string) (int, error) {
	dims := 0
	for dims < len(s) && s[dims] == TagArray {
		dims++
	}
	if dims >= len(s) {
		return 0, ErrMalformedDescriptor
	}
	switch c := s[dims]; {
	case IsPrimitiveTag(c):
		return dims + 1, nil
	case c == TagObject:
		end := strings.IndexByte(s[dims:], ';')
		if end <= 1 {
			return 0, ErrMalformedDescriptor
		}
		return dims + end + 1, nil
	}
	return 0, ErrMalformedDescriptor
}

// ClassNameOf converts a field descriptor to the name FindClass accepts:
// "Ljava/lang/String;" becomes "java/lang/String"; arrays and primitives are
// returned unchanged.
func ClassNameOf(desc string) string {
	if len(desc) >= 2 && desc[0] == TagObject && desc[len(desc)-1] == ';' {
		return desc[1 : len(desc)-1]
	}
	return desc
}
