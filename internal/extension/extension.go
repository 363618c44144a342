package extension

import (
	"time"

	"github.com/woxQAQ/pgxbridge/internal/wasm"
)

// Extension is a loaded extension with its manifest and compiled Wasm module.
type Extension struct {
	// Manifest is the parsed extension metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the extension was loaded
	LoadedAt time.Time
}

// Name returns the extension name.
func (e *Extension) Name() string {
	return e.Manifest.Name
}

// Version returns the extension version.
func (e *Extension) Version() string {
	return e.Manifest.Version
}

// Functions returns the qualified names of the declared functions.
func (e *Extension) Functions() []string {
	out := make([]string, len(e.Manifest.Functions))
	for i := range e.Manifest.Functions {
		out[i] = e.Manifest.Functions[i].QualifiedName()
	}
	return out
}

// SupportsHost reports whether the extension lists host major version major.
func (e *Extension) SupportsHost(major int) bool {
	return e.Manifest.SupportsHost(major)
}
