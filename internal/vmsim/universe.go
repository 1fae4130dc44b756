package vmsim

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Universe is a declarative set of classes.
type Universe struct {
	Classes []ClassSpec `yaml:"classes" toml:"classes" json:"classes"`
}

// ClassSpec declares one class. Super defaults to java/lang/Object for
// classes and is ignored for interfaces.
type ClassSpec struct {
	Name       string       `yaml:"name" toml:"name" json:"name"`
	Super      string       `yaml:"super" toml:"super" json:"super,omitempty"`
	Interfaces []string     `yaml:"interfaces" toml:"interfaces" json:"interfaces,omitempty"`
	Modifiers  []string     `yaml:"modifiers" toml:"modifiers" json:"modifiers,omitempty"`
	Fields     []MemberSpec `yaml:"fields" toml:"fields" json:"fields,omitempty"`
	Methods    []MemberSpec `yaml:"methods" toml:"methods" json:"methods,omitempty"`
}

// MemberSpec declares a field or method.
type MemberSpec struct {
	Name      string   `yaml:"name" toml:"name" json:"name"`
	Desc      string   `yaml:"desc" toml:"desc" json:"desc"`
	Modifiers []string `yaml:"modifiers" toml:"modifiers" json:"modifiers,omitempty"`
}

// LoadUniverse reads a universe from a .yaml/.yml or .toml file.
func LoadUniverse(path string) (Universe, error) {
	var u Universe
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &u); err != nil {
			return u, fmt.Errorf("decoding %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return u, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &u); err != nil {
			return u, fmt.Errorf("decoding %s: %w", path, err)
		}
	default:
		return u, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}
	return u, nil
}
