// Package introspect reads the server headers of a host version and
// describes the declarations they make: struct layouts, enums, typedefs,
// functions, globals, constants and function-like macros.
package introspect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-pkgz/syncs"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const (
	originPlatform  = "<platform>"
	originBuiltin   = "<builtin>"
	originAllowlist = "<allowlist>"
)

// Introspector produces Descriptions from header trees.
type Introspector struct {
	allow       *Allowlist
	platform    Platform
	cache       *cache
	parallelism int
	logger      *zap.Logger
}

// Option configures an Introspector.
type Option func(*Introspector)

// WithPlatform sets the target platform. The default is linux/amd64.
func WithPlatform(p Platform) Option {
	return func(in *Introspector) { in.platform = p }
}

// WithCacheDir enables the description cache in dir.
func WithCacheDir(dir string) Option {
	return func(in *Introspector) { in.cache = &cache{dir: dir} }
}

// WithParallelism bounds how many versions RunAll reads at once.
func WithParallelism(n int) Option {
	return func(in *Introspector) {
		if n > 0 {
			in.parallelism = n
		}
	}
}

// New creates an Introspector for allow.
func New(allow *Allowlist, logger *zap.Logger, opts ...Option) *Introspector {
	in := &Introspector{
		allow:       allow,
		platform:    platforms["linux/amd64"],
		parallelism: 4,
		logger:      logger.With(zap.String("component", "introspect")),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Run describes the allow-listed headers of one host version found in
// includeDirs.
func (in *Introspector) Run(ctx context.Context, version int, includeDirs []string) (*Description, error) {
	entry, err := in.allow.For(version)
	if err != nil {
		return nil, err
	}
	logger := in.logger.With(zap.Int("version", version))

	key := cacheKey{Format: cacheFormat, Version: version, Platform: in.platform.String(), Entry: entry, IncludeDirs: includeDirs}
	if desc, err := in.cache.load(key); err != nil {
		logger.Warn("description cache unreadable", zap.Error(err))
	} else if desc != nil {
		logger.Debug("description loaded from cache")
		return desc, nil
	}

	pp := newPreprocessor(version, includeDirs, entry.undefinedSet(), logger)
	if err := in.predefine(pp, entry); err != nil {
		return nil, err
	}
	for _, h := range entry.Headers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := in.includeScoped(pp, entry, h); err != nil {
			return nil, err
		}
	}

	p := newParser(version, in.platform, pp.out, logger)
	p.parse()
	for _, s := range p.structs {
		if err := p.layout.layoutStruct(s); err != nil {
			logger.Debug("struct left incomplete", zap.String("struct", s.CName()), zap.Error(err))
		}
	}

	desc := in.describe(version, pp, p, entry)
	if err := in.checkVersion(version, desc); err != nil {
		return nil, err
	}
	if err := requireSymbols(version, desc, p, entry); err != nil {
		return nil, err
	}

	logger.Info("headers described",
		zap.Int("headers", len(desc.Headers)),
		zap.Int("structs", len(desc.Structs)),
		zap.Int("functions", len(desc.Functions)),
		zap.Int("constants", len(desc.Constants)),
		zap.Int("skipped", p.skipped))

	if err := in.cache.store(key, pp.files, desc); err != nil {
		logger.Warn("failed to cache description", zap.Error(err))
	}
	return desc, nil
}

// RunAll describes several versions in parallel. The versions that
// succeed are returned together with the errors of the others.
func (in *Introspector) RunAll(ctx context.Context, versions []int, includeDirs func(version int) []string) (map[int]*Description, error) {
	var (
		mu     sync.Mutex
		out    = make(map[int]*Description, len(versions))
		failed = make(map[int]error)
	)
	wg := syncs.NewErrSizedGroup(in.parallelism, syncs.Context(ctx), syncs.Preemptive)
	for _, v := range versions {
		wg.Go(func() error {
			desc, err := in.Run(ctx, v, includeDirs(v))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed[v] = err
				return err
			}
			out[v] = desc
			return nil
		})
	}
	_ = wg.Wait()

	var errs *multierror.Error
	for _, v := range versions {
		if err, ok := failed[v]; ok {
			errs = multierror.Append(errs, err)
		} else if _, ok := out[v]; !ok && ctx.Err() != nil {
			errs = multierror.Append(errs, fmt.Errorf("host %d: %w", v, ctx.Err()))
		}
	}
	return out, errs.ErrorOrNil()
}

func (in *Introspector) predefine(pp *preprocessor, entry AllowlistEntry) error {
	for _, def := range in.platform.predefines() {
		if err := pp.predefine(originPlatform, def); err != nil {
			return err
		}
	}
	for _, def := range in.platform.builtinMacros() {
		if err := pp.predefine(originBuiltin, def); err != nil {
			return err
		}
	}
	names := make([]string, 0, len(entry.Predefine))
	for name := range entry.Predefine {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := pp.predefine(originAllowlist, name+" "+entry.Predefine[name]); err != nil {
			return fmt.Errorf("allow-list predefine %q: %w", name, err)
		}
	}
	return nil
}

// includeScoped reads header h with its scoped macros in effect.
func (in *Introspector) includeScoped(pp *preprocessor, entry AllowlistEntry, h string) error {
	defs := entry.Scoped[h]
	names := make([]string, 0, len(defs))
	for name := range defs {
		if _, ok := entry.Predefine[name]; ok {
			return fmt.Errorf("allow-list scoped macro %q for %s is also predefined", name, h)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := pp.predefine(originAllowlist, name+" "+defs[name]); err != nil {
			return fmt.Errorf("allow-list scoped macro %q for %s: %w", name, h, err)
		}
	}
	err := pp.includeTop(h)
	for _, name := range names {
		pp.undefine(name)
	}
	return err
}

func (in *Introspector) describe(version int, pp *preprocessor, p *parser, entry AllowlistEntry) *Description {
	desc := &Description{
		Version:  version,
		Platform: in.platform.String(),
		Renames:  entry.Renames,
	}
	for _, f := range pp.files {
		desc.Headers = append(desc.Headers, f.Rel)
	}
	for _, s := range p.structs {
		if !isAnon(s.Name) {
			desc.Structs = append(desc.Structs, s)
		}
	}
	for _, e := range p.enums {
		desc.Enums = append(desc.Enums, e)
	}
	for _, td := range p.typedefs {
		desc.Typedefs = append(desc.Typedefs, td)
	}
	for _, f := range p.functions {
		desc.Functions = append(desc.Functions, f)
	}
	for _, g := range p.globals {
		desc.Globals = append(desc.Globals, g)
	}

	names := make([]string, 0, len(pp.macros))
	for name := range pp.macros {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		m := pp.macros[name]
		if m.file == originBuiltin || strings.HasPrefix(name, "_") {
			continue
		}
		if m.funcLike {
			if !m.predefined {
				desc.Macros = append(desc.Macros, &Macro{
					Name:     name,
					Params:   m.params,
					Variadic: m.variadic,
					Body:     joinTokens(m.body),
					Header:   m.file,
				})
			}
			continue
		}
		if c, ok := constant(pp, p, m); ok {
			desc.Constants = append(desc.Constants, c)
		}
	}
	enumerators := make(map[string]bool)
	for _, e := range p.enums {
		for _, v := range e.Values {
			if _, ok := pp.macros[v.Name]; ok || enumerators[v.Name] {
				continue
			}
			enumerators[v.Name] = true
			desc.Constants = append(desc.Constants, &Constant{Name: v.Name, Kind: ConstInt, Int: v.Value, Header: e.Header})
		}
	}
	desc.sort()

	if c, ok := desc.Constant("PG_VERSION_NUM"); ok {
		desc.VersionNum = int(c.Int)
	}
	if c, ok := desc.Constant("PG_VERSION"); ok && c.Kind == ConstString {
		desc.Release = c.Text
	}
	return desc
}

// constant evaluates an object-like macro. Macros that are not constant
// expressions are left out.
func constant(pp *preprocessor, p *parser, m *macro) (*Constant, bool) {
	if len(m.body) == 0 {
		return nil, false
	}
	c := &Constant{Name: m.name, Header: m.file}

	strs := true
	for _, t := range m.body {
		strs = strs && t.kind == tString
	}
	if strs {
		var b strings.Builder
		for _, t := range m.body {
			b.WriteString(unquote(t.text))
		}
		c.Kind, c.Text = ConstString, b.String()
		return c, true
	}
	if len(m.body) == 1 && (m.body[0].is("true") || m.body[0].is("false")) {
		c.Kind = ConstBool
		if m.body[0].text == "true" {
			c.Int = 1
		}
		return c, true
	}

	body := make([]token, len(m.body))
	for i, t := range m.body {
		t.hide = t.hide.add(m.name)
		body[i] = t
	}
	pp.expansions = 0
	exp, err := pp.expand(body)
	if err != nil || len(exp) == 0 {
		return nil, false
	}
	v, err := evalTokens(exp, p)
	if err != nil {
		return nil, false
	}
	c.Kind, c.Int, c.Unsigned = ConstInt, v.v, v.unsigned
	if len(m.body) == 1 && m.body[0].kind == tNumber {
		c.Literal = m.body[0].text
	}
	return c, true
}

func (in *Introspector) checkVersion(version int, desc *Description) error {
	c, ok := desc.Constant("PG_VERSION_NUM")
	if !ok {
		return &UnresolvedSymbolError{Version: version, Symbol: "PG_VERSION_NUM"}
	}
	if int(c.Int)/10000 != version {
		return &VersionMismatchError{Version: version, Found: int(c.Int), Header: c.Header}
	}
	return nil
}

// requireSymbols checks that every required symbol is declared and that
// every type it holds by value, transitively, is complete.
func requireSymbols(version int, desc *Description, p *parser, entry AllowlistEntry) error {
	for _, sym := range entry.Symbols {
		if !desc.Has(sym) {
			return &UnresolvedSymbolError{Version: version, Symbol: sym}
		}
	}
	seen := make(map[*Struct]bool)
	var visit func(t *Type, header string) error
	visit = func(t *Type, header string) error {
		for _, r := range p.layout.byValue(t) {
			if r.Kind == KindTypedef {
				return &UnresolvedSymbolError{Version: version, Symbol: r.Name, Header: header}
			}
			s, err := p.layout.lookup(r)
			if err != nil {
				return &UnresolvedSymbolError{Version: version, Symbol: string(r.Kind) + " " + r.Name, Header: header}
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			for _, f := range s.Fields {
				if err := visit(f.Type, s.Header); err != nil {
					return err
				}
			}
			if err := p.layout.layoutStruct(s); err != nil {
				return fmt.Errorf("host %d: %s in %s: %w", version, s.CName(), s.Header, err)
			}
		}
		return nil
	}
	for _, sym := range entry.Symbols {
		var (
			t      *Type
			header string
		)
		if td, ok := p.typedefs[sym]; ok {
			t, header = td.Type, td.Header
		} else if s, ok := desc.Struct(sym); ok {
			t, header = &Type{Kind: KindStruct, Name: s.Name}, s.Header
			if s.Union {
				t.Kind = KindUnion
			}
		}
		if t == nil {
			continue
		}
		if err := visit(t, header); err != nil {
			return err
		}
	}
	return nil
}
