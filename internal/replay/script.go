package replay

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fyrsmithlabs/jnicheck/internal/vm"
	"github.com/fyrsmithlabs/jnicheck/internal/vmsim"
)

// maxScriptSize bounds script files read from disk.
const maxScriptSize = 4 << 20

// Script is an interop event script: the class universe the program runs
// against and the ordered native interface events it performs.
type Script struct {
	Name     string            `yaml:"name"`
	Universe string            `yaml:"universe,omitempty"`
	Classes  []vmsim.ClassSpec `yaml:"classes,omitempty"`
	Events   []Event           `yaml:"events"`

	// Path is the file the script was loaded from, if any.
	Path string `yaml:"-"`
}

// Event is one step of a script. Which fields apply depends on Op.
type Event struct {
	Op string `yaml:"op"`

	// Thread names the context the event runs on.
	Thread   string `yaml:"thread,omitempty"`
	ThreadID int64  `yaml:"thread_id,omitempty"`
	// Env overrides the environment handle: on thread_start it fixes the
	// context's env, on calls it is the env the caller passes.
	Env uint64 `yaml:"env,omitempty"`

	Phase    string `yaml:"phase,omitempty"`
	Capacity *int   `yaml:"capacity,omitempty"`
	Sentinel bool   `yaml:"sentinel,omitempty"`

	Class  string `yaml:"class,omitempty"`
	Name   string `yaml:"name,omitempty"`
	Desc   string `yaml:"desc,omitempty"`
	Static bool   `yaml:"static,omitempty"`

	Ref    string `yaml:"ref,omitempty"`
	Method string `yaml:"method,omitempty"`
	Field  string `yaml:"field,omitempty"`

	Kind    string `yaml:"kind,omitempty"`
	Form    string `yaml:"form,omitempty"`
	Args    []Arg  `yaml:"args,omitempty"`
	Value   *Arg   `yaml:"value,omitempty"`
	Returns string `yaml:"returns,omitempty"`
	Type    string `yaml:"type,omitempty"`

	Check    string `yaml:"check,omitempty"`
	Resource string `yaml:"resource,omitempty"`
	Handle   uint64 `yaml:"handle,omitempty"`
	Site     string `yaml:"site,omitempty"`

	// As binds the reference, identifier or resource the event produces.
	As string `yaml:"as,omitempty"`

	Line int `yaml:"-"`
}

// eventKeys holds the yaml keys of Event.
var eventKeys = func() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(Event{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name != "" && name != "-" {
			keys[name] = true
		}
	}
	return keys
}()

// UnmarshalYAML rejects unknown keys and records the line each event
// starts on.
func (e *Event) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if key := node.Content[i]; !eventKeys[key.Value] {
				return fmt.Errorf("line %d: unknown event key %q", key.Line, key.Value)
			}
		}
	}
	type plain Event
	if err := node.Decode((*plain)(e)); err != nil {
		return err
	}
	e.Line = node.Line
	return nil
}

// Arg is a call argument or field value: a bound reference name ("null"
// for the null reference) or a primitive. A YAML null decodes to the zero
// Arg, which reads as a null reference.
type Arg struct {
	Ref string `yaml:"ref,omitempty"`
	Int int64  `yaml:"int,omitempty"`
}

// UnmarshalYAML accepts the short forms `7` and `name` as well as the
// mapping form.
func (a *Arg) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		switch node.ShortTag() {
		case "!!int":
			n, err := strconv.ParseInt(node.Value, 0, 64)
			if err != nil {
				return fmt.Errorf("line %d: %w", node.Line, err)
			}
			a.Int = n
		default:
			a.Ref = node.Value
		}
		return nil
	}
	type plain Arg
	return node.Decode((*plain)(a))
}

// IsRef reports whether the argument names a reference.
func (a Arg) IsRef() bool { return a.Ref != "" }

// LoadScript reads and validates a YAML script.
func LoadScript(path string) (*Script, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	if info.Size() > maxScriptSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidScript, path, maxScriptSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	s, err := ParseScript(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	if s.Name == "" {
		s.Name = filepath.Base(path)
	}
	return s, nil
}

// ParseScript decodes and validates a script. Unknown keys are rejected.
func ParseScript(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadUniverse returns the class universe of the script: the universe file,
// resolved relative to the script, followed by the inline classes.
func (s *Script) LoadUniverse() (vmsim.Universe, error) {
	var u vmsim.Universe
	if s.Universe != "" {
		path := s.Universe
		if !filepath.IsAbs(path) && s.Path != "" {
			path = filepath.Join(filepath.Dir(s.Path), path)
		}
		loaded, err := vmsim.LoadUniverse(path)
		if err != nil {
			return u, fmt.Errorf("loading universe: %w", err)
		}
		u = loaded
	}
	u.Classes = append(u.Classes, s.Classes...)
	return u, nil
}

// Validate checks every event for the fields its op needs.
func (s *Script) Validate() error {
	var errs []error
	for i := range s.Events {
		if err := s.Events[i].validate(); err != nil {
			errs = append(errs, fmt.Errorf("%w: event %d (line %d): %w", ErrInvalidScript, i, s.Events[i].Line, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Event) validate() error {
	spec, ok := ops[e.Op]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownOp, e.Op)
	}
	if spec.threaded && e.Thread == "" {
		return fmt.Errorf("%s needs a thread", e.Op)
	}
	for _, need := range spec.needs {
		if e.field(need) == "" {
			return fmt.Errorf("%s needs %s", e.Op, need)
		}
	}
	switch e.Op {
	case "phase":
		if _, err := vm.ParsePhase(e.Phase); err != nil {
			return err
		}
	case "call":
		switch e.Kind {
		case kindInstance, kindNonvirtual, kindStatic, kindNewObject:
		default:
			return fmt.Errorf("call kind %q is not one of instance, nonvirtual, static, new_object", e.Kind)
		}
	case "check":
		if _, ok := directChecks[e.Check]; !ok {
			return fmt.Errorf("unknown check %q", e.Check)
		}
	case "release":
		if e.Resource == "" && e.Handle == 0 {
			return fmt.Errorf("release needs resource or handle")
		}
	}
	switch e.Form {
	case "", formArray, formCursor:
	default:
		return fmt.Errorf("argument form %q is not one of array, cursor", e.Form)
	}
	if len(e.Returns) > 1 || len(e.Type) > 1 {
		return fmt.Errorf("returns and type take a single descriptor tag")
	}
	return nil
}

func (e *Event) field(name string) string {
	switch name {
	case "thread":
		return e.Thread
	case "class":
		return e.Class
	case "name":
		return e.Name
	case "desc":
		return e.Desc
	case "ref":
		return e.Ref
	case "method":
		return e.Method
	case "field":
		return e.Field
	case "check":
		return e.Check
	case "phase":
		return e.Phase
	case "kind":
		return e.Kind
	}
	return ""
}
