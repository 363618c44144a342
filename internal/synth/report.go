package synth

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Capability is a generated name that only some versions declare.
type Capability struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Versions []int  `yaml:"versions"`
	Since    int    `yaml:"since"`
}

func (c Capability) String() string {
	vs := make([]string, len(c.Versions))
	for i, v := range c.Versions {
		vs[i] = strconv.Itoa(v)
	}
	return fmt.Sprintf("%s %s: only in %s", c.Kind, c.Name, strings.Join(vs, ", "))
}

// Report lists the capabilities that differ between the generated
// versions. Code using one compiles only under the tags of its versions.
type Report struct {
	Versions []int        `yaml:"versions"`
	Partial  []Capability `yaml:"partial"`
}

// Lookup returns the capability called name. A name that is declared by
// every version, or by none, is not in the report.
func (r *Report) Lookup(name string) (Capability, bool) {
	i := sort.Search(len(r.Partial), func(i int) bool { return r.Partial[i].Name >= name })
	if i < len(r.Partial) && r.Partial[i].Name == name {
		return r.Partial[i], true
	}
	return Capability{}, false
}

// Explain says why name may fail to compile under version.
func (r *Report) Explain(name string, version int) string {
	c, ok := r.Lookup(name)
	if !ok {
		return ""
	}
	for _, v := range c.Versions {
		if v == version {
			return ""
		}
	}
	return fmt.Sprintf("%s is not declared for host %d; it needs one of the tags %s", name, version, tagList(c.Versions))
}

func tagList(versions []int) string {
	tags := make([]string, len(versions))
	for i, v := range versions {
		tags[i] = "pg" + strconv.Itoa(v)
	}
	return strings.Join(tags, ", ")
}

func buildReport(declared map[int]map[string]string) *Report {
	r := &Report{}
	byName := make(map[string]*Capability)
	for v := range declared {
		r.Versions = append(r.Versions, v)
	}
	sort.Ints(r.Versions)
	for _, v := range r.Versions {
		for name, kind := range declared[v] {
			c, ok := byName[name]
			if !ok {
				c = &Capability{Name: name, Kind: kind, Since: v}
				byName[name] = c
			}
			c.Versions = append(c.Versions, v)
		}
	}
	for _, c := range byName {
		if len(c.Versions) < len(r.Versions) {
			r.Partial = append(r.Partial, *c)
		}
	}
	sort.Slice(r.Partial, func(i, j int) bool { return r.Partial[i].Name < r.Partial[j].Name })
	return r
}
