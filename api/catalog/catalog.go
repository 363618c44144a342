// Package catalog holds the metadata an extension publishes about its
// functions and the types they use. Tools that emit the SQL surface of an
// extension read it; nothing here talks to a running host.
package catalog

import (
	"fmt"
	"strings"
)

// Volatility is the function's volatility class.
type Volatility string

const (
	Immutable Volatility = "IMMUTABLE"
	Stable    Volatility = "STABLE"
	Volatile  Volatility = "VOLATILE"
)

// ParseVolatility accepts a volatility class in any case. The empty
// string means VOLATILE, matching the host's default.
func ParseVolatility(s string) (Volatility, error) {
	switch v := Volatility(strings.ToUpper(strings.TrimSpace(s))); v {
	case "":
		return Volatile, nil
	case Immutable, Stable, Volatile:
		return v, nil
	}
	return "", fmt.Errorf("invalid volatility %q", s)
}

// Catalog is everything one runtime exposes.
type Catalog struct {
	HostVersion int            `yaml:"host_version"`
	Functions   []FunctionInfo `yaml:"functions"`
	Types       []TypeInfo     `yaml:"types"`
}

// Function returns the function registered under schema and name.
func (c *Catalog) Function(schema, name string) (*FunctionInfo, bool) {
	for i := range c.Functions {
		f := &c.Functions[i]
		if f.Schema == schema && f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Type returns the named type.
func (c *Catalog) Type(name string) (*TypeInfo, bool) {
	for i := range c.Types {
		if c.Types[i].Name == name {
			return &c.Types[i], true
		}
	}
	return nil, false
}

// FunctionInfo represents function metadata
type FunctionInfo struct {
	Name       string        `yaml:"name"`
	Schema     string        `yaml:"schema"`
	Args       []FunctionArg `yaml:"args,omitempty"`
	ReturnType string        `yaml:"returns"`
	Strict     bool          `yaml:"strict"`
	Volatility Volatility    `yaml:"volatility"`
	// Symbol is the C entry point the host function is bound to.
	Symbol string `yaml:"symbol"`
	// Source names where the implementation lives, e.g. "go" or the
	// extension that provides a sandboxed implementation.
	Source string `yaml:"source,omitempty"`
}

// QualifiedName returns schema.name.
func (f *FunctionInfo) QualifiedName() string {
	return f.Schema + "." + f.Name
}

// Signature renders the function as schema.name(type, ...).
func (f *FunctionInfo) Signature() string {
	var sb strings.Builder
	sb.WriteString(f.QualifiedName())
	sb.WriteByte('(')
	for i, a := range f.Args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.Type)
	}
	sb.WriteByte(')')
	return sb.String()
}

// FunctionArg represents a function argument
type FunctionArg struct {
	Name string `yaml:"name,omitempty"`
	Type string `yaml:"type"`
}

// TypeInfo represents type metadata
type TypeInfo struct {
	Name  string `yaml:"name"`
	Oid   uint32 `yaml:"oid"`
	Len   int16  `yaml:"len"`
	ByVal bool   `yaml:"byval"`
	Align string `yaml:"align"`
	// Category is the host's typcategory letter: 'B' boolean, 'N'
	// numeric, 'S' string, 'D' date/time, 'T' timespan, 'U' user
	// defined, 'P' pseudo-type.
	Category string `yaml:"category"`
}
