package vm

// Runtime is the read-only query surface of the monitored virtual machine.
//
// Implementations forward to the real interface and tooling APIs; the
// checker never mutates runtime state through it. Queries that the host can
// fail (tooling calls) return an error, which the checker treats as an
// internal invariant failure.
type Runtime interface {
	// GetObjectClass returns the class of obj.
	GetObjectClass(obj Ref) Ref
	// GetSuperclass returns the direct superclass of class, or Null at the root.
	GetSuperclass(class Ref) Ref
	// IsSameObject reports whether a and b denote the same object.
	IsSameObject(a, b Ref) bool
	// IsAssignableFrom reports whether a value of class sub can be stored in
	// a variable of class sup.
	IsAssignableFrom(sub, sup Ref) bool
	// IsArrayClass reports whether class is an array class.
	IsArrayClass(class Ref) bool
	// ObjectRefType reports how the runtime classifies ref.
	ObjectRefType(ref Ref) RefType
	// ExceptionCheck reports whether env has a pending exception.
	ExceptionCheck(env Env) bool

	// FindClass resolves an internal class name ("java/lang/String", "[I").
	FindClass(name string) (Ref, error)
	// ClassSignature returns the type signature ("Ljava/lang/String;").
	ClassSignature(class Ref) (string, error)
	ClassModifiers(class Ref) (Modifiers, error)

	MethodDeclaringClass(m MethodID) (Ref, error)
	MethodModifiers(m MethodID) (Modifiers, error)
	// MethodName returns the method name and its raw descriptor.
	MethodName(m MethodID) (name, descriptor string, err error)

	FieldDeclaringClass(class Ref, f FieldID) (Ref, error)
	FieldModifiers(class Ref, f FieldID) (Modifiers, error)
}
