package extension

import (
	"fmt"
)

// ManifestNotFoundError occurs when manifest.yaml is not found in a directory.
type ManifestNotFoundError struct {
	Path string
	Err  error
}

func (e *ManifestNotFoundError) Error() string {
	return fmt.Sprintf("manifest not found at '%s': %v", e.Path, e.Err)
}

func (e *ManifestNotFoundError) Unwrap() error {
	return e.Err
}

// ManifestParseError occurs when manifest.yaml cannot be parsed as valid YAML.
type ManifestParseError struct {
	Path string
	Err  error
}

func (e *ManifestParseError) Error() string {
	return fmt.Sprintf("failed to parse manifest at '%s': %v", e.Path, e.Err)
}

func (e *ManifestParseError) Unwrap() error {
	return e.Err
}

// ManifestValidationError occurs when manifest.yaml fails validation.
type ManifestValidationError struct {
	Path    string
	Field   string
	Message string
}

func (e *ManifestValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("manifest validation failed at '%s': %s (field: %s)",
			e.Path, e.Message, e.Field)
	}
	return fmt.Sprintf("manifest validation failed at '%s': %s", e.Path, e.Message)
}

// WasmNotFoundError occurs when the Wasm file referenced in manifest doesn't exist.
type WasmNotFoundError struct {
	ManifestPath string
	WasmFile     string
}

func (e *WasmNotFoundError) Error() string {
	return fmt.Sprintf("Wasm file '%s' not found (referenced in manifest '%s')",
		e.WasmFile, e.ManifestPath)
}

// LoadError occurs when an extension fails to load.
type LoadError struct {
	ExtensionName string
	Err           error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load extension '%s': %v", e.ExtensionName, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// UnsupportedHostError occurs when an extension does not list the host
// version the bindings were compiled for.
type UnsupportedHostError struct {
	ExtensionName string
	HostVersion   int
	Supported     []int
}

func (e *UnsupportedHostError) Error() string {
	return fmt.Sprintf("extension '%s' supports host versions %v, not %d",
		e.ExtensionName, e.Supported, e.HostVersion)
}

// NotFoundError occurs when an extension is not found in the registry.
type NotFoundError struct {
	ExtensionName string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("extension '%s' not found", e.ExtensionName)
}

// AlreadyRegisteredError occurs when attempting to register a duplicate extension.
type AlreadyRegisteredError struct {
	ExtensionName string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("extension '%s' is already registered", e.ExtensionName)
}

// FunctionConflictError occurs when two extensions declare the same function.
type FunctionConflictError struct {
	Function string
	Owner    string
	Other    string
}

func (e *FunctionConflictError) Error() string {
	return fmt.Sprintf("function '%s' of extension '%s' is already provided by '%s'",
		e.Function, e.Other, e.Owner)
}

// NoExtensionsFoundError occurs when no extensions are found in the configured paths.
type NoExtensionsFoundError struct {
	Paths []string
}

func (e *NoExtensionsFoundError) Error() string {
	return fmt.Sprintf("no extensions found in paths: %v", e.Paths)
}
