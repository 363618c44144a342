package synth

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Corrections selects what the generated files declare and holds the Go
// replacements for host symbols that cannot be linked against.
type Corrections struct {
	Aliases   Aliases      `yaml:"aliases"`
	Constants []ConstGroup `yaml:"constants"`
	Enums     []string     `yaml:"enums"`
	Structs   []StructSpec `yaml:"structs"`
	Functions []string     `yaml:"functions"`
	Globals   []GlobalSpec `yaml:"globals"`
	Macros    []MacroFix   `yaml:"macros"`
}

// Aliases are host typedefs declared as Go type aliases. Struct fields
// spell scalar aliases by name and expand pointer aliases; function
// signatures keep both.
type Aliases struct {
	Scalar  []string `yaml:"scalar"`
	Pointer []string `yaml:"pointer"`
}

// ConstGroup is one const block. Names missing from a version are left
// out of that version's block.
type ConstGroup struct {
	Type  string   `yaml:"type"`
	Names []string `yaml:"names"`
}

// StructSpec selects a host struct by tag, typedef or nested name.
type StructSpec struct {
	Name string `yaml:"name"`

	// Use names the Go helper that reads the flexible array member.
	Use string `yaml:"use"`
}

// GlobalSpec selects an extern variable. Settable globals get a setter.
type GlobalSpec struct {
	Name     string `yaml:"name"`
	Settable bool   `yaml:"settable"`
}

// MacroFix is the Go replacement of a function-like macro or inline
// function. When Host is set and the host declares it, a body for the
// version is required. Without Host the function is Go-only and exists in
// the versions that have a body.
type MacroFix struct {
	Name   string `yaml:"name"`
	Host   string `yaml:"host"`
	Bodies []Body `yaml:"bodies"`
}

// Body is the Go source of a correction for a range of versions. Zero
// bounds are open.
type Body struct {
	Since int    `yaml:"since"`
	Until int    `yaml:"until"`
	Go    string `yaml:"go"`
}

func (b Body) covers(version int) bool {
	return (b.Since == 0 || version >= b.Since) && (b.Until == 0 || version <= b.Until)
}

// For returns the body used for version.
func (m MacroFix) For(version int) (string, bool) {
	for _, b := range m.Bodies {
		if b.covers(version) {
			return strings.TrimSpace(b.Go), true
		}
	}
	return "", false
}

// LoadCorrections reads a correction set file.
func LoadCorrections(path string) (*Corrections, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corrections: %w", err)
	}
	return ParseCorrections(data)
}

// ParseCorrections decodes a correction set document.
func ParseCorrections(data []byte) (*Corrections, error) {
	var c Corrections
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse corrections: %w", err)
	}
	seen := make(map[string]bool)
	for _, m := range c.Macros {
		if m.Name == "" {
			return nil, fmt.Errorf("correction without a name")
		}
		if seen[m.Name] {
			return nil, fmt.Errorf("correction %s is declared twice", m.Name)
		}
		seen[m.Name] = true
		for i, b := range m.Bodies {
			if b.Since != 0 && b.Until != 0 && b.Since > b.Until {
				return nil, fmt.Errorf("correction %s: body %d covers no version", m.Name, i)
			}
			if strings.TrimSpace(b.Go) == "" {
				return nil, fmt.Errorf("correction %s: body %d is empty", m.Name, i)
			}
		}
	}
	return &c, nil
}

// covering returns the correction that stands for host symbol name.
func (c *Corrections) covering(name string) (MacroFix, bool) {
	for _, m := range c.Macros {
		if m.Host == name || m.Name == name {
			return m, true
		}
	}
	return MacroFix{}, false
}

func (c *Corrections) scalarAlias(name string) bool {
	for _, a := range c.Aliases.Scalar {
		if a == name {
			return true
		}
	}
	return false
}

func (c *Corrections) alias(name string) bool {
	if c.scalarAlias(name) {
		return true
	}
	for _, a := range c.Aliases.Pointer {
		if a == name {
			return true
		}
	}
	return false
}
