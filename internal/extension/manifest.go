package extension

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/woxQAQ/pgxbridge/api/catalog"
	"github.com/woxQAQ/pgxbridge/pkg/datum"
	"github.com/woxQAQ/pgxbridge/pkg/pgext"
)

// ManifestFile is the file name looked up in every extension directory.
const ManifestFile = "manifest.yaml"

// Manifest represents the extension manifest.yaml structure.
type Manifest struct {
	Name         string             `yaml:"name"`
	Version      string             `yaml:"version"`
	HostVersions []int              `yaml:"host_versions"`
	Wasm         WasmConfig         `yaml:"wasm"`
	Functions    []FunctionManifest `yaml:"functions"`
	Author       string             `yaml:"author"`
	License      string             `yaml:"license"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
}

// FunctionManifest declares one SQL function implemented by a guest export.
type FunctionManifest struct {
	Name       string   `yaml:"name"`
	Schema     string   `yaml:"schema"`
	Export     string   `yaml:"export"` // defaults to Name
	Args       []string `yaml:"args"`
	Returns    string   `yaml:"returns"`
	Strict     *bool    `yaml:"strict"`
	Volatility string   `yaml:"volatility"`
}

// QualifiedName returns schema.name, with the default schema when unset.
func (f *FunctionManifest) QualifiedName() string {
	schema := f.Schema
	if schema == "" {
		schema = pgext.DefaultSchema
	}
	return schema + "." + f.Name
}

// ExportName returns the guest export implementing the function.
func (f *FunctionManifest) ExportName() string {
	if f.Export == "" {
		return f.Name
	}
	return f.Export
}

// ArgTypes resolves the declared argument types.
func (f *FunctionManifest) ArgTypes() ([]*datum.TypeDescriptor, error) {
	out := make([]*datum.TypeDescriptor, len(f.Args))
	for i, name := range f.Args {
		td, ok := datum.ByName(name)
		if !ok {
			return nil, fmt.Errorf("argument %d: unknown type %q", i+1, name)
		}
		out[i] = td
	}
	return out, nil
}

// ReturnType resolves the declared result type.
func (f *FunctionManifest) ReturnType() (*datum.TypeDescriptor, error) {
	td, ok := datum.ByName(f.Returns)
	if !ok {
		return nil, fmt.Errorf("unknown result type %q", f.Returns)
	}
	return td, nil
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return &ManifestValidationError{
			Path:    m.Path(),
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		}
	}

	if m.Name == "" {
		return invalid("name", "name is required")
	}
	if m.Version == "" {
		return invalid("version", "version is required")
	}

	if len(m.HostVersions) == 0 {
		return invalid("host_versions", "at least one host version is required")
	}
	for _, v := range m.HostVersions {
		if v < 10 || v > 14 {
			return invalid("host_versions", "unsupported host version %d (must be 10 to 14)", v)
		}
	}

	if m.Wasm.File == "" {
		return invalid("wasm.file", "wasm.file is required")
	}

	if len(m.Functions) == 0 {
		return invalid("functions", "at least one function is required")
	}
	seen := make(map[string]bool)
	for i := range m.Functions {
		f := &m.Functions[i]
		field := fmt.Sprintf("functions[%d]", i)
		if f.Name == "" {
			return invalid(field+".name", "name is required")
		}
		if seen[f.QualifiedName()] {
			return invalid(field+".name", "function %s declared twice", f.QualifiedName())
		}
		seen[f.QualifiedName()] = true
		if _, err := f.ArgTypes(); err != nil {
			return invalid(field+".args", "%v", err)
		}
		if f.Returns == "" {
			return invalid(field+".returns", "returns is required")
		}
		if _, err := f.ReturnType(); err != nil {
			return invalid(field+".returns", "%v", err)
		}
		// Guest functions cannot see SQL NULL.
		if f.Strict != nil && !*f.Strict {
			return invalid(field+".strict", "functions implemented in Wasm must be strict")
		}
		if _, err := catalog.ParseVolatility(f.Volatility); err != nil {
			return invalid(field+".volatility", "%v", err)
		}
	}

	// Validate Wasm file exists
	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

// SupportsHost reports whether major is listed in host_versions.
func (m *Manifest) SupportsHost(major int) bool {
	for _, v := range m.HostVersions {
		if v == major {
			return true
		}
	}
	return false
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
