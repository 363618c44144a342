package synth

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dave/jennifer/jen"
	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/internal/introspect"
)

const pkgName = "pgsys"

// gen renders the files of one host version.
type gen struct {
	version int
	desc    *introspect.Description
	plat    introspect.Platform
	entry   introspect.AllowlistEntry
	fix     *Corrections
	logger  *zap.Logger

	structs []*introspect.Struct // in correction order
	emitted map[*introspect.Struct]bool
	uses    map[*introspect.Struct]string
	enums   map[string]string // host enum name to Go type name
	layouts map[*introspect.Struct]*goStruct

	declared map[string]string // Go name to capability kind
}

func newGen(version int, desc *introspect.Description, entry introspect.AllowlistEntry, fix *Corrections, logger *zap.Logger) (*gen, error) {
	plat, err := introspect.ParsePlatform(desc.Platform)
	if err != nil {
		return nil, &Error{Version: version, Symbol: "platform", Reason: "unsupported platform", Err: err}
	}
	g := &gen{
		version:  version,
		desc:     desc,
		plat:     plat,
		entry:    entry,
		fix:      fix,
		logger:   logger,
		emitted:  make(map[*introspect.Struct]bool),
		uses:     make(map[*introspect.Struct]string),
		enums:    make(map[string]string),
		layouts:  make(map[*introspect.Struct]*goStruct),
		declared: make(map[string]string),
	}
	for _, name := range fix.Enums {
		if _, ok := desc.Enum(name); ok {
			g.enums[name] = typeName(stable(desc.Renames, name))
		}
	}
	for _, spec := range fix.Structs {
		s, ok := g.lookupStruct(spec.Name)
		if !ok {
			logger.Debug("struct not declared in this version", zap.String("struct", spec.Name))
			continue
		}
		if s.Incomplete {
			return nil, &Error{Version: version, Symbol: spec.Name, Reason: "struct has no complete layout"}
		}
		if !g.emitted[s] {
			g.emitted[s] = true
			g.uses[s] = spec.Use
			g.structs = append(g.structs, s)
		}
	}
	return g, nil
}

// lookupStruct finds a struct by its stable name, following renames
// back to the host name.
func (g *gen) lookupStruct(name string) (*introspect.Struct, bool) {
	if s, ok := g.desc.Struct(name); ok {
		return s, true
	}
	for _, host := range g.hostNames(name) {
		if s, ok := g.desc.Struct(host); ok {
			return s, true
		}
	}
	return nil, false
}

// hostNames returns the host names renamed to name, sorted.
func (g *gen) hostNames(name string) []string {
	var out []string
	for from, to := range g.desc.Renames {
		if to == name {
			out = append(out, from)
		}
	}
	sort.Strings(out)
	return out
}

func (g *gen) emits(s *introspect.Struct) bool {
	return g.emitted[s]
}

func (g *gen) declare(name, kind string) {
	g.declared[name] = kind
}

func (g *gen) errorf(symbol, reason string, err error) error {
	return &Error{Version: g.version, Symbol: symbol, Reason: reason, Err: err}
}

func (g *gen) header() string {
	release := g.desc.Release
	if release == "" {
		release = strconv.Itoa(g.version)
	}
	return fmt.Sprintf("Code generated by pgxgen from PostgreSQL %s headers (%s). DO NOT EDIT.", release, g.desc.Platform)
}

// renderGo builds pg<N>.go.
func (g *gen) renderGo() (*jen.File, error) {
	f := jen.NewFile(pkgName)
	f.HeaderComment(g.header())
	f.HeaderComment(fmt.Sprintf("//go:build pg%d", g.version))

	g.versionConsts(f)
	if err := g.constants(f); err != nil {
		return nil, err
	}
	if err := g.aliases(f); err != nil {
		return nil, err
	}
	g.typedEnums(f)
	for _, s := range g.structs {
		if err := g.structDecl(f, s); err != nil {
			return nil, err
		}
	}
	if err := g.corrections(f); err != nil {
		return nil, err
	}
	g.layoutTable(f)
	return f, nil
}

func (g *gen) versionConsts(f *jen.File) {
	major := strconv.Itoa(g.version)
	if c, ok := g.desc.Constant("PG_MAJORVERSION"); ok && c.Kind == introspect.ConstString {
		major = c.Text
	}
	f.Const().Defs(
		jen.Id("PgMajor").Op("=").Lit(g.version),
		jen.Id("PG_VERSION_NUM").Op("=").Lit(g.desc.VersionNum),
		jen.Id("PG_MAJORVERSION").Op("=").Lit(major),
	)
	f.Line()
	for _, n := range []string{"PgMajor", "PG_VERSION_NUM", "PG_MAJORVERSION"} {
		g.declare(n, "constant")
	}
}

func (g *gen) constants(f *jen.File) error {
	for _, group := range g.fix.Constants {
		var defs []jen.Code
		for _, name := range group.Names {
			c, ok := g.constant(name)
			if !ok {
				continue
			}
			value, err := constValue(c)
			if err != nil {
				return g.errorf(name, "constant has no Go form", err)
			}
			def := jen.Id(name)
			if group.Type != "" {
				def.Id(group.Type)
			}
			defs = append(defs, def.Op("=").Add(value))
			g.declare(name, "constant")
		}
		if len(defs) > 0 {
			f.Const().Defs(defs...)
			f.Line()
		}
	}
	return nil
}

// constant finds a macro constant, or an enumerator of an enum that is
// not rendered as a Go type.
func (g *gen) constant(name string) (*introspect.Constant, bool) {
	if c, ok := g.desc.Constant(name); ok {
		return c, true
	}
	for _, e := range g.desc.Enums {
		if _, typed := g.enums[e.Name]; typed {
			continue
		}
		for _, v := range e.Values {
			if v.Name == name {
				return &introspect.Constant{Name: name, Kind: introspect.ConstInt, Int: v.Value, Header: e.Header}, true
			}
		}
	}
	return nil, false
}

func constValue(c *introspect.Constant) (jen.Code, error) {
	switch c.Kind {
	case introspect.ConstBool:
		return jen.Lit(c.Int != 0), nil
	case introspect.ConstString:
		return jen.Lit(c.Text), nil
	case introspect.ConstInt:
		if lit := strings.TrimRight(c.Literal, "uUlL"); lit != "" {
			if _, err := strconv.ParseUint(lit, 0, 64); err == nil {
				return jen.Op(lit), nil
			}
		}
		if c.Unsigned {
			return jen.Op(strconv.FormatUint(uint64(c.Int), 10)), nil
		}
		return jen.Op(strconv.FormatInt(c.Int, 10)), nil
	}
	return nil, fmt.Errorf("constant kind %q", c.Kind)
}

func (g *gen) aliases(f *jen.File) error {
	for _, names := range [][]string{g.fix.Aliases.Scalar, g.fix.Aliases.Pointer} {
		var defs []jen.Code
		for _, name := range names {
			td, ok := g.desc.Typedef(name)
			if !ok {
				continue
			}
			t, err := g.goType(td.Type, false)
			if err != nil {
				return g.errorf(name, "typedef has no Go form", err)
			}
			defs = append(defs, jen.Id(name).Op("=").Add(t.code()))
			g.declare(name, "type")
		}
		if len(defs) > 0 {
			f.Type().Defs(defs...)
			f.Line()
		}
	}
	return nil
}

func (g *gen) typedEnums(f *jen.File) {
	for _, name := range g.fix.Enums {
		e, ok := g.desc.Enum(name)
		if !ok {
			continue
		}
		goName := g.enums[name]
		f.Type().Id(goName).Id("int" + strconv.FormatInt(e.Size*8, 10))
		f.Line()
		defs := make([]jen.Code, 0, len(e.Values))
		for _, v := range e.Values {
			defs = append(defs, jen.Id(v.Name).Id(goName).Op("=").Lit(int(v.Value)))
			g.declare(v.Name, "constant")
		}
		f.Const().Defs(defs...)
		f.Line()
		g.declare(goName, "type")
	}
}

func (g *gen) structDecl(f *jen.File, s *introspect.Struct) error {
	gs, err := g.layout(s)
	if err != nil {
		return g.errorf(cname(s), "struct layout", err)
	}
	doc, err := g.structDoc(gs)
	if err != nil {
		return g.errorf(cname(s), "struct layout", err)
	}
	for _, line := range wrap(doc, 70) {
		f.Comment(line)
	}
	fields := make([]jen.Code, 0, len(gs.fields))
	for _, fl := range gs.fields {
		fields = append(fields, jen.Id(fl.name).Add(fl.typ.code()))
		if fl.name != "_" {
			g.declare(gs.name+"."+fl.name, "field")
		}
	}
	f.Type().Id(gs.name).Struct(fields...)
	f.Line()
	g.declare(gs.name, "type")

	for _, u := range gs.units {
		for _, b := range u.bits {
			g.bitAccessors(f, gs, u, b)
		}
	}
	return nil
}

func (g *gen) structDoc(gs *goStruct) (string, error) {
	s := gs.src
	var doc []string
	if i := strings.LastIndex(s.Name, "."); i > 0 {
		parent, member := s.Name[:i], s.Name[i+1:]
		role := "member"
		if p, ok := g.desc.Struct(parent); ok && p.Union {
			role = "arm"
		}
		doc = append(doc, fmt.Sprintf("%s is the %s %s of %s.", gs.name, member, role, parent))
	} else if host := hostName(s); typeName(host) != gs.name {
		doc = append(doc, fmt.Sprintf("%s is %s in the host headers.", gs.name, s.CName()))
	}
	use := g.uses[s]
	if gs.flex != nil && use != "" {
		elem, err := g.goType(gs.flex.Type.Elem, false)
		if err != nil {
			return "", fmt.Errorf("%s: %w", gs.flex.Name, err)
		}
		doc = append(doc, fmt.Sprintf("%s is followed in memory by %s, a flexible array of %s.", gs.name, gs.flex.Name, elem.spell))
	}
	if gs.member != "" {
		doc = append(doc, fmt.Sprintf("%s is a union; only its %s member is mapped.", gs.name, gs.member))
	}
	if use != "" && g.hasBody(use) {
		doc = append(doc, "Use "+use+".")
	}
	return strings.Join(doc, " "), nil
}

func (g *gen) bitAccessors(f *jen.File, gs *goStruct, u bitUnit, b bitField) {
	mask := fmt.Sprintf("%#x", uint64(1)<<uint(b.width)-1)
	get := jen.Id("x").Dot(u.field).Op("&").Op(mask)
	set := jen.Id("x").Dot(u.field).Op("&^").Op(mask).Op("|").Id("v").Op("&").Op(mask)
	if b.shift > 0 {
		shift := strconv.FormatInt(b.shift, 10)
		get = jen.Id("x").Dot(u.field).Op(">>").Op(shift).Op("&").Op(mask)
		set = jen.Id("x").Dot(u.field).Op("&^").Parens(jen.Op(mask + "<<" + shift)).
			Op("|").Parens(jen.Id("v").Op("&").Op(mask)).Op("<<").Op(shift)
	}
	recv := jen.Id("x").Op("*").Id(gs.name)

	f.Func().Params(recv.Clone()).Id(b.name).Params().Add(u.typ.code()).Block(
		jen.Return(get),
	)
	f.Line()
	f.Func().Params(recv.Clone()).Id("Set"+b.name).Params(jen.Id("v").Add(u.typ.code())).Block(
		jen.Id("x").Dot(u.field).Op("=").Add(set),
	)
	f.Line()
	g.declare(gs.name+"."+b.name, "field")
}

// corrections emits the Go bodies standing in for macros and inline
// functions, and checks that every required one has a body.
func (g *gen) corrections(f *jen.File) error {
	for _, m := range g.fix.Macros {
		body, ok := m.For(g.version)
		if !ok {
			if m.Host != "" && g.desc.Has(m.Host) {
				return g.errorf(m.Host, "no correction body for this version", nil)
			}
			continue
		}
		if m.Host != "" && !g.desc.Has(m.Host) {
			g.logger.Debug("correction kept without a host declaration", zap.String("name", m.Name))
		}
		f.Op(body)
		f.Line()
		g.declare(m.Name, "function")
	}
	for _, sym := range g.entry.Symbols {
		if !g.needsCorrection(sym) {
			continue
		}
		m, ok := g.fix.covering(sym)
		if !ok {
			return g.errorf(sym, "has no linkable symbol and no correction", nil)
		}
		if _, ok := m.For(g.version); !ok {
			return g.errorf(sym, "no correction body for this version", nil)
		}
	}
	return nil
}

func (g *gen) needsCorrection(sym string) bool {
	if _, ok := g.desc.Macro(sym); ok {
		return true
	}
	fn, ok := g.desc.Function(sym)
	return ok && fn.Inline
}

func (g *gen) layoutTable(f *jen.File) {
	if len(g.structs) == 0 {
		f.Var().Id("structLayouts").Index().Id("StructLayout")
		return
	}
	entries := make([]jen.Code, 0, len(g.structs))
	for _, s := range g.structs {
		entries = append(entries, jen.Op(g.layoutEntry(g.layouts[s])))
	}
	f.Var().Id("structLayouts").Op("=").Index().Id("StructLayout").Custom(jen.Options{
		Open:      "{",
		Close:     "}",
		Separator: ",",
		Multi:     true,
	}, entries...)
}

func (g *gen) layoutEntry(gs *goStruct) string {
	s := gs.src
	var b strings.Builder
	fmt.Fprintf(&b, "{Name: %q, CName: %q, Size: %d, Align: %d, GoType: reflect.TypeFor[%s](), Fields: []FieldLayout{\n",
		gs.name, cname(s), s.Size, s.Align, gs.name)
	goNames := make(map[string]string, len(gs.fields))
	for _, fl := range gs.fields {
		if fl.cname != "" {
			goNames[fl.cname] = fl.name
		}
	}
	for _, f := range s.Fields {
		switch {
		case f.Name == "", f.Bitfield && f.BitWidth == 0:
		case s.Union && f.Name != gs.member:
		case f.Bitfield:
			fmt.Fprintf(&b, "{CName: %q, Offset: %d, Size: %d, BitOffset: %d, BitWidth: %d},\n",
				f.Name, f.Offset, f.Size, f.BitOffset, f.BitWidth)
		case f.Flexible:
			fmt.Fprintf(&b, "{CName: %q, Offset: %d, Size: 0},\n", f.Name, f.Offset)
		default:
			fmt.Fprintf(&b, "{CName: %q, GoName: %q, Offset: %d, Size: %d},\n", f.Name, goNames[f.Name], f.Offset, f.Size)
		}
	}
	b.WriteString("}}")
	return b.String()
}

// selectNone builds the file compiled when no version tag is set.
func selectNone(versions []int) *jen.File {
	tags := make([]string, len(versions))
	not := make([]string, len(versions))
	for i, v := range versions {
		tags[i] = "pg" + strconv.Itoa(v)
		not[i] = "!" + tags[i]
	}
	list := strings.Join(tags, ", ")
	if n := len(tags); n > 1 {
		list = strings.Join(tags[:n-1], ", ") + " or " + tags[n-1]
	}

	f := jen.NewFile(pkgName)
	f.HeaderComment("Code generated by pgxgen. DO NOT EDIT.")
	f.HeaderComment("//go:build " + strings.Join(not, " && "))
	for _, line := range wrap("No host version selected. Build with exactly one of -tags "+list+".", 70) {
		f.Comment(line)
	}
	f.Var().Id("_").Op("=").Id("pgsys_requires_exactly_one_of_the_build_tags_" + strings.Join(tags, "_"))
	return f
}

// wrap breaks text into lines of at most width bytes.
func wrap(text string, width int) []string {
	var (
		lines []string
		line  string
	)
	for _, w := range strings.Fields(text) {
		switch {
		case line == "":
			line = w
		case len(line)+1+len(w) > width:
			lines = append(lines, line)
			line = w
		default:
			line += " " + w
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

func hostName(s *introspect.Struct) string {
	if s.Typedef != "" {
		return s.Typedef
	}
	return s.Name
}

// hasBody reports whether the correction name is rendered for the
// version.
func (g *gen) hasBody(name string) bool {
	m, ok := g.fix.covering(name)
	if !ok {
		return false
	}
	_, ok = m.For(g.version)
	return ok
}
