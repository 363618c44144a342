package introspect

import "fmt"

// UnresolvedSymbolError occurs when a required symbol is missing from the
// allow-listed headers, or a type used by value is never defined.
type UnresolvedSymbolError struct {
	Version int
	Symbol  string
	Header  string // where the use was found; empty for required symbols
}

func (e *UnresolvedSymbolError) Error() string {
	if e.Header == "" {
		return fmt.Sprintf("host %d: required symbol '%s' not found in the allow-listed headers", e.Version, e.Symbol)
	}
	return fmt.Sprintf("host %d: '%s' used by value in %s but never defined", e.Version, e.Symbol, e.Header)
}

// AmbiguousMacroError occurs when a macro cannot be expanded to one
// meaning: an undefined identifier in #if, a conflicting redefinition, a
// function-like macro used without arguments or runaway expansion.
type AmbiguousMacroError struct {
	Version int
	Macro   string
	Header  string
	Line    int
	Reason  string
}

func (e *AmbiguousMacroError) Error() string {
	return fmt.Sprintf("host %d: %s:%d: ambiguous macro '%s': %s", e.Version, e.Header, e.Line, e.Macro, e.Reason)
}

// HeaderNotFoundError occurs when a header cannot be found in the include
// directories.
type HeaderNotFoundError struct {
	Version      int
	Header       string
	IncludedFrom string // empty for allow-listed headers
	Line         int
}

func (e *HeaderNotFoundError) Error() string {
	if e.IncludedFrom == "" {
		return fmt.Sprintf("host %d: allow-listed header '%s' not found", e.Version, e.Header)
	}
	return fmt.Sprintf("host %d: %s:%d: header '%s' not found", e.Version, e.IncludedFrom, e.Line, e.Header)
}

// VersionMismatchError occurs when PG_VERSION_NUM in the headers names
// another major version than the one requested.
type VersionMismatchError struct {
	Version int
	Found   int // PG_VERSION_NUM
	Header  string
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("host %d: headers are from version %d (PG_VERSION_NUM %d in %s)",
		e.Version, e.Found/10000, e.Found, e.Header)
}

// DirectiveError occurs on #error in an active region and on malformed
// conditional structure.
type DirectiveError struct {
	Version int
	Header  string
	Line    int
	Message string
}

func (e *DirectiveError) Error() string {
	return fmt.Sprintf("host %d: %s:%d: %s", e.Version, e.Header, e.Line, e.Message)
}
