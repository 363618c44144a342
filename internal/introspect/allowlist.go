package introspect

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// AllowlistEntry is the header allow-list of one host version, or the
// part shared by all of them.
type AllowlistEntry struct {
	// Headers are read in order, relative to the include directories.
	Headers []string `yaml:"headers" cbor:"headers"`

	// Predefine holds macros defined before the first header, as the
	// host's own build would see them. A value may be empty.
	Predefine map[string]string `yaml:"predefine" cbor:"predefine"`

	// Scoped holds macros, keyed by header, that are defined just before
	// that allow-listed header is read and undefined right after it.
	Scoped map[string]map[string]string `yaml:"scoped" cbor:"scoped"`

	// Undefined lists identifiers that may appear in #if without being
	// defined. They evaluate to 0. Any other undefined identifier is an
	// error.
	Undefined []string `yaml:"undefined" cbor:"undefined"`

	// Symbols must be present in the description.
	Symbols []string `yaml:"symbols" cbor:"symbols"`

	// Renames maps a host name to the name used across versions.
	Renames map[string]string `yaml:"renames" cbor:"renames"`
}

// Allowlist is the versioned header allow-list.
type Allowlist struct {
	Common   AllowlistEntry         `yaml:"common"`
	Versions map[int]AllowlistEntry `yaml:"versions"`
}

// LoadAllowlist reads an allow-list file.
func LoadAllowlist(path string) (*Allowlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read allow-list: %w", err)
	}
	return ParseAllowlist(data)
}

// ParseAllowlist decodes an allow-list document.
func ParseAllowlist(data []byte) (*Allowlist, error) {
	var a Allowlist
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse allow-list: %w", err)
	}
	if len(a.Versions) == 0 {
		return nil, fmt.Errorf("allow-list names no versions")
	}
	return &a, nil
}

// VersionList returns the versions the allow-list covers, ascending.
func (a *Allowlist) VersionList() []int {
	out := make([]int, 0, len(a.Versions))
	for v := range a.Versions {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// For merges the common entry with the entry of version. Version values
// win over common ones.
func (a *Allowlist) For(version int) (AllowlistEntry, error) {
	v, ok := a.Versions[version]
	if !ok {
		return AllowlistEntry{}, fmt.Errorf("allow-list has no entry for version %d", version)
	}
	return AllowlistEntry{
		Headers:   mergeList(a.Common.Headers, v.Headers),
		Predefine: mergeMap(a.Common.Predefine, v.Predefine),
		Scoped:    mergeScoped(a.Common.Scoped, v.Scoped),
		Undefined: mergeList(a.Common.Undefined, v.Undefined),
		Symbols:   mergeList(a.Common.Symbols, v.Symbols),
		Renames:   mergeMap(a.Common.Renames, v.Renames),
	}, nil
}

func mergeList(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func mergeMap(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func mergeScoped(a, b map[string]map[string]string) map[string]map[string]string {
	if len(a)+len(b) == 0 {
		return nil
	}
	out := make(map[string]map[string]string, len(a)+len(b))
	for h, defs := range a {
		out[h] = mergeMap(defs, nil)
	}
	for h, defs := range b {
		out[h] = mergeMap(out[h], defs)
	}
	return out
}

func (e AllowlistEntry) undefinedSet() map[string]bool {
	out := make(map[string]bool, len(e.Undefined))
	for _, n := range e.Undefined {
		out[n] = true
	}
	return out
}
