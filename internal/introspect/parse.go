package introspect

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// parser reads declarations from preprocessed tokens. It is lenient: a
// declaration it cannot understand is skipped, and only matters if a
// required symbol depends on it.
type parser struct {
	version int
	plat    Platform
	toks    []token
	pos     int
	logger  *zap.Logger

	typedefs  map[string]*Typedef
	builtins  map[string]*Type
	structs   map[string]*Struct // "struct tag" or "union tag"
	enums     map[string]*Enum
	enumVals  map[string]int64
	functions map[string]*Function
	globals   map[string]*Global
	anon      int
	skipped   int

	layout *layouter
}

func newParser(version int, plat Platform, toks []token, logger *zap.Logger) *parser {
	p := &parser{
		version:   version,
		plat:      plat,
		toks:      toks,
		logger:    logger,
		typedefs:  make(map[string]*Typedef),
		builtins:  plat.builtinTypedefs(),
		structs:   make(map[string]*Struct),
		enums:     make(map[string]*Enum),
		enumVals:  make(map[string]int64),
		functions: make(map[string]*Function),
		globals:   make(map[string]*Global),
	}
	p.layout = newLayouter(p)
	return p
}

// fork returns a parser over other tokens that shares p's symbol tables.
func (p *parser) fork(toks []token, pos int) *parser {
	q := *p
	q.toks, q.pos = toks, pos
	return &q
}

var errSyntax = errors.New("syntax error")

func (p *parser) peek() token {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return token{kind: tEOF}
}

func (p *parser) peekAt(n int) token {
	if p.pos+n < len(p.toks) {
		return p.toks[p.pos+n]
	}
	return token{kind: tEOF}
}

func (p *parser) next() token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) accept(text string) bool {
	if p.peek().is(text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if t := p.next(); !t.is(text) {
		return fmt.Errorf("%w at %s:%d: expected %q, got %s", errSyntax, t.file, t.line, text, t)
	}
	return nil
}

func (p *parser) parse() {
	for p.peek().kind != tEOF {
		start := p.pos
		if err := p.declaration(); err != nil {
			t := p.toks[start]
			p.logger.Debug("skipping declaration", zap.String("header", t.file), zap.Int("line", t.line), zap.Error(err))
			p.skipped++
			p.pos = start
			p.skipDeclaration()
		}
	}
}

// skipDeclaration moves past the declaration at p.pos: to the next ;
// outside braces, or past a function body.
func (p *parser) skipDeclaration() {
	depth := 0
	for {
		t := p.next()
		switch {
		case t.kind == tEOF:
			return
		case t.is("(") || t.is("[") || t.is("{"):
			if t.is("{") && depth == 0 && p.pos >= 2 && p.toks[p.pos-2].is(")") {
				p.pos--
				p.skipBalanced()
				return
			}
			depth++
		case t.is(")") || t.is("]") || t.is("}"):
			if depth > 0 {
				depth--
			}
		case t.is(";") && depth == 0:
			return
		}
	}
}

// skipBalanced moves past the bracketed group starting at p.pos.
func (p *parser) skipBalanced() error {
	open := p.next()
	closer := map[string]string{"(": ")", "[": "]", "{": "}"}[open.text]
	if closer == "" {
		return fmt.Errorf("%w: expected a bracket, got %s", errSyntax, open)
	}
	depth := 1
	for depth > 0 {
		t := p.next()
		switch {
		case t.kind == tEOF:
			return fmt.Errorf("%w: unbalanced %s from %s:%d", errSyntax, open.text, open.file, open.line)
		case t.is(open.text):
			depth++
		case t.is(closer):
			depth--
		}
	}
	return nil
}

type attrs struct {
	aligned int64
	packed  bool
}

func (a *attrs) merge(b attrs) {
	a.aligned = max(a.aligned, b.aligned)
	a.packed = a.packed || b.packed
}

type declSpec struct {
	storage string // typedef, extern, static
	inline  bool
	base    *Type
	attrs   attrs
}

var qualifiers = map[string]bool{
	"const": true, "volatile": true, "restrict": true, "__restrict": true, "__restrict__": true,
	"__const": true, "__volatile__": true, "__volatile": true, "_Noreturn": true, "register": true,
	"auto": true, "_Thread_local": true, "__thread": true, "__extension__": true, "_Atomic": true,
}

var typeKeywords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true, "float": true,
	"double": true, "signed": true, "unsigned": true, "_Bool": true, "__int128": true,
	"_Complex": true, "__signed__": true, "__signed": true,
}

// startsType reports whether t can begin declaration specifiers.
func (p *parser) startsType(t token) bool {
	if t.kind != tIdent {
		return false
	}
	switch t.text {
	case "struct", "union", "enum", "typedef", "extern", "static", "inline", "__inline", "__inline__",
		"__attribute__", "_Alignas":
		return true
	}
	return qualifiers[t.text] || typeKeywords[t.text] || p.isTypedefName(t.text)
}

func (p *parser) isTypedefName(name string) bool {
	if _, ok := p.typedefs[name]; ok {
		return true
	}
	_, ok := p.builtins[name]
	return ok
}

func (p *parser) specifiers() (declSpec, error) {
	var (
		ds     declSpec
		counts = map[string]int{}
		named  *Type
	)
	for {
		t := p.peek()
		if t.kind != tIdent {
			break
		}
		switch {
		case t.text == "typedef" || t.text == "extern" || t.text == "static":
			ds.storage = t.text
			p.next()
		case t.text == "inline" || t.text == "__inline" || t.text == "__inline__":
			ds.inline = true
			p.next()
		case qualifiers[t.text]:
			p.next()
			if t.text == "const" || t.text == "__const" {
				counts["const"]++
			}
		case t.text == "__attribute__" || t.text == "__declspec":
			a, err := p.attributes()
			if err != nil {
				return ds, err
			}
			ds.attrs.merge(a)
		case t.text == "_Alignas":
			p.next()
			a, err := p.alignas()
			if err != nil {
				return ds, err
			}
			ds.attrs.aligned = max(ds.attrs.aligned, a)
		case t.text == "struct" || t.text == "union":
			if named != nil || len(counts) > countConst(counts) {
				return ds, fmt.Errorf("%w at %s:%d: two types in one declaration", errSyntax, t.file, t.line)
			}
			p.next()
			st, err := p.structSpecifier(t.text == "union")
			if err != nil {
				return ds, err
			}
			named = st
		case t.text == "enum":
			if named != nil || len(counts) > countConst(counts) {
				return ds, fmt.Errorf("%w at %s:%d: two types in one declaration", errSyntax, t.file, t.line)
			}
			p.next()
			et, err := p.enumSpecifier()
			if err != nil {
				return ds, err
			}
			named = et
		case typeKeywords[t.text]:
			if named != nil {
				return ds, fmt.Errorf("%w at %s:%d: %s after a type name", errSyntax, t.file, t.line, t.text)
			}
			counts[t.text]++
			p.next()
		case named == nil && len(counts) == countConst(counts) && p.isTypedefName(t.text):
			named = &Type{Kind: KindTypedef, Name: t.text}
			p.next()
		case named == nil && len(counts) == countConst(counts) && p.looksLikeUnknownType():
			// a typedef from a header that was not read
			named = &Type{Kind: KindTypedef, Name: t.text}
			p.next()
		default:
			goto done
		}
	}
done:
	if named != nil {
		if counts["const"] > 0 {
			c := *named
			c.Const = true
			named = &c
		}
		ds.base = named
		return ds, nil
	}
	base, err := scalarType(counts)
	if err != nil {
		t := p.peek()
		return ds, fmt.Errorf("%w at %s:%d: %v", errSyntax, t.file, t.line, err)
	}
	base.Const = counts["const"] > 0
	ds.base = base
	return ds, nil
}

func countConst(counts map[string]int) int {
	if counts["const"] > 0 {
		return 1
	}
	return 0
}

// looksLikeUnknownType reports whether the identifier at p.pos is
// followed by a declarator, which makes it a type name.
func (p *parser) looksLikeUnknownType() bool {
	n := p.peekAt(1)
	return n.kind == tIdent && !qualifiers[n.text] && n.text != "__attribute__" || n.is("*")
}

// scalarType normalizes arithmetic type specifiers, for example
// "long int" to long and "unsigned" to unsigned int.
func scalarType(c map[string]int) (*Type, error) {
	switch {
	case c["void"] > 0:
		return &Type{Kind: KindVoid, Name: "void"}, nil
	case c["_Bool"] > 0:
		return &Type{Kind: KindBool, Name: "_Bool"}, nil
	case c["float"] > 0:
		return &Type{Kind: KindFloat, Name: "float", Signed: true}, nil
	case c["double"] > 0:
		if c["long"] > 0 {
			return &Type{Kind: KindFloat, Name: "long double", Signed: true}, nil
		}
		return &Type{Kind: KindFloat, Name: "double", Signed: true}, nil
	}
	unsigned := c["unsigned"] > 0
	signed := c["signed"] > 0 || c["__signed__"] > 0 || c["__signed"] > 0
	var name string
	switch {
	case c["char"] > 0:
		name = "char"
		if signed {
			name = "signed char"
		}
	case c["short"] > 0:
		name = "short"
	case c["__int128"] > 0:
		name = "__int128"
	case c["long"] >= 2:
		name = "long long"
	case c["long"] == 1:
		name = "long"
	case c["int"] > 0 || signed || unsigned:
		name = "int"
	default:
		return nil, errors.New("missing type specifier")
	}
	if unsigned {
		name = "unsigned " + name
	}
	return &Type{Kind: KindInt, Name: name, Signed: !unsigned}, nil
}

func (p *parser) attributes() (attrs, error) {
	var a attrs
	for p.peek().is("__attribute__") || p.peek().is("__declspec") {
		p.next()
		if !p.peek().is("(") {
			return a, fmt.Errorf("%w: expected ( after __attribute__", errSyntax)
		}
		start := p.pos
		if err := p.skipBalanced(); err != nil {
			return a, err
		}
		body := p.toks[start:p.pos]
		for i := 0; i < len(body); i++ {
			name := strings.Trim(body[i].text, "_")
			switch {
			case name == "packed":
				a.packed = true
			case name == "aligned" && i+1 < len(body) && body[i+1].is("("):
				end := i + 2
				for depth := 1; end < len(body); end++ {
					if body[end].is("(") {
						depth++
					} else if body[end].is(")") {
						if depth--; depth == 0 {
							break
						}
					}
				}
				v, err := evalTokens(body[i+2:end], p)
				if err != nil {
					return a, err
				}
				a.aligned = max(a.aligned, v.v)
				i = end
			case name == "aligned":
				a.aligned = max(a.aligned, p.plat.LongDoubleAlign)
			}
		}
	}
	return a, nil
}

func (p *parser) alignas() (int64, error) {
	if err := p.expect("("); err != nil {
		return 0, err
	}
	if t, next, ok := p.typeName(p.toks, p.pos); ok && next < len(p.toks) && p.toks[next].is(")") {
		p.pos = next + 1
		_, align, err := p.layout.sizeAlign(t)
		return align, err
	}
	start := p.pos
	p.pos--
	if err := p.skipBalanced(); err != nil {
		return 0, err
	}
	v, err := evalTokens(p.toks[start:p.pos-1], p)
	return v.v, err
}

// skipExtras moves past attributes and asm labels after a declarator.
func (p *parser) skipExtras() (attrs, error) {
	var a attrs
	for {
		switch t := p.peek(); {
		case t.is("__attribute__") || t.is("__declspec"):
			b, err := p.attributes()
			if err != nil {
				return a, err
			}
			a.merge(b)
		case t.is("__asm__") || t.is("__asm") || t.is("asm"):
			p.next()
			if err := p.skipBalanced(); err != nil {
				return a, err
			}
		default:
			return a, nil
		}
	}
}

func (p *parser) skipQualifiers() {
	for {
		t := p.peek()
		switch {
		case qualifiers[t.text] && t.kind == tIdent:
			p.next()
		case t.is("__attribute__"):
			if _, err := p.attributes(); err != nil {
				return
			}
		default:
			return
		}
	}
}

// declarator parses a possibly abstract declarator around base.
func (p *parser) declarator(base *Type) (string, *Type, error) {
	t := base
	for p.peek().is("*") {
		p.next()
		p.skipQualifiers()
		t = &Type{Kind: KindPointer, Elem: t}
	}
	p.skipQualifiers()

	if p.peek().is("(") && p.nestedDeclarator() {
		open := p.pos
		if err := p.skipBalanced(); err != nil {
			return "", nil, err
		}
		outer, err := p.suffixes(t)
		if err != nil {
			return "", nil, err
		}
		end := p.pos
		p.pos = open + 1
		name, inner, err := p.declarator(outer)
		if err != nil {
			return "", nil, err
		}
		if err := p.expect(")"); err != nil {
			return "", nil, err
		}
		p.pos = end
		return name, inner, nil
	}

	name := ""
	if n := p.peek(); n.kind == tIdent && !p.startsType(n) && n.text != "__asm__" && n.text != "__asm" {
		name = n.text
		p.next()
	}
	t, err := p.suffixes(t)
	return name, t, err
}

// nestedDeclarator tells "(*name)" from a parameter list.
func (p *parser) nestedDeclarator() bool {
	n := p.peekAt(1)
	switch {
	case n.is("*") || n.is("(") || n.is("^"):
		return true
	case n.kind == tIdent:
		return !p.startsType(n)
	}
	return false
}

func (p *parser) suffixes(t *Type) (*Type, error) {
	switch {
	case p.peek().is("["):
		p.next()
		length := int64(-1)
		if !p.peek().is("]") {
			start := p.pos
			p.pos--
			if err := p.skipBalanced(); err != nil {
				return nil, err
			}
			expr := p.toks[start : p.pos-1]
			// qualifiers and static inside array parameters
			for len(expr) > 0 && (qualifiers[expr[0].text] || expr[0].is("static")) {
				expr = expr[1:]
			}
			if len(expr) > 0 {
				v, err := evalTokens(expr, p)
				if err != nil {
					return nil, fmt.Errorf("array length at %s:%d: %w", expr[0].file, expr[0].line, err)
				}
				length = v.v
			}
		} else {
			p.next()
		}
		elem, err := p.suffixes(t)
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindArray, Elem: elem, Len: length}, nil

	case p.peek().is("("):
		p.next()
		params, variadic, err := p.parameters()
		if err != nil {
			return nil, err
		}
		return &Type{Kind: KindFunc, Elem: t, Params: params, Variadic: variadic}, nil
	}
	return t, nil
}

func (p *parser) parameters() ([]Param, bool, error) {
	if p.accept(")") {
		return nil, false, nil
	}
	if p.peek().is("void") && p.peekAt(1).is(")") {
		p.pos += 2
		return nil, false, nil
	}
	var (
		params   []Param
		variadic bool
	)
	for {
		if p.accept("...") {
			variadic = true
			return params, variadic, p.expect(")")
		}
		ds, err := p.specifiers()
		if err != nil {
			return nil, false, err
		}
		name, t, err := p.declarator(ds.base)
		if err != nil {
			return nil, false, err
		}
		if _, err := p.skipExtras(); err != nil {
			return nil, false, err
		}
		// arrays and functions decay to pointers
		switch t.Kind {
		case KindArray:
			t = &Type{Kind: KindPointer, Elem: t.Elem}
		case KindFunc:
			t = &Type{Kind: KindPointer, Elem: t}
		}
		params = append(params, Param{Name: name, Type: t})
		if p.accept(")") {
			return params, variadic, nil
		}
		if err := p.expect(","); err != nil {
			return nil, false, err
		}
	}
}

func structKey(union bool, name string) string {
	if union {
		return "union " + name
	}
	return "struct " + name
}

func (p *parser) anonName() string {
	p.anon++
	return fmt.Sprintf("__anon%d", p.anon)
}

func (p *parser) structSpecifier(union bool) (*Type, error) {
	kind := KindStruct
	if union {
		kind = KindUnion
	}
	pre, err := p.skipExtras()
	if err != nil {
		return nil, err
	}
	tag := ""
	if t := p.peek(); t.kind == tIdent {
		tag = t.text
		p.next()
	}
	if !p.peek().is("{") {
		if tag == "" {
			return nil, fmt.Errorf("%w: struct without tag or body", errSyntax)
		}
		return &Type{Kind: kind, Name: tag}, nil
	}
	open := p.next()
	if tag == "" {
		tag = p.anonName()
	}
	s := &Struct{Name: tag, Union: union, Header: open.file}
	if err := p.members(s); err != nil {
		return nil, err
	}
	post, err := p.skipExtras()
	if err != nil {
		return nil, err
	}
	pre.merge(post)
	s.Packed = pre.packed
	s.minAlign = pre.aligned

	key := structKey(union, tag)
	if old, ok := p.structs[key]; ok && len(old.Fields) > 0 {
		p.logger.Debug("struct redefined", zap.String("struct", key), zap.String("header", open.file))
	}
	p.structs[key] = s
	return &Type{Kind: kind, Name: tag}, nil
}

func (p *parser) members(s *Struct) error {
	for !p.accept("}") {
		if p.peek().kind == tEOF {
			return fmt.Errorf("%w: unterminated struct %s", errSyntax, s.Name)
		}
		if p.accept(";") {
			continue
		}
		if p.peek().is("_Static_assert") || p.peek().is("static_assert") {
			p.skipDeclaration()
			continue
		}
		ds, err := p.specifiers()
		if err != nil {
			return err
		}
		if p.accept(";") {
			// anonymous struct or union member
			if ds.base.Kind == KindStruct || ds.base.Kind == KindUnion {
				p.renameStruct(ds.base, s.Name+"."+ds.base.Name)
				s.Fields = append(s.Fields, &Field{Type: ds.base, align: ds.attrs.aligned})
			}
			continue
		}
		for {
			name, t, err := p.declarator(ds.base)
			if err != nil {
				return err
			}
			f := &Field{Name: name, Type: t, align: ds.attrs.aligned}
			if p.accept(":") {
				start := p.pos
				for !p.peek().is(",") && !p.peek().is(";") && !p.peek().is("__attribute__") && p.peek().kind != tEOF {
					p.next()
				}
				w, err := evalTokens(p.toks[start:p.pos], p)
				if err != nil {
					return fmt.Errorf("bit-field width of %s.%s: %w", s.Name, name, err)
				}
				f.Bitfield, f.BitWidth = true, w.v
			}
			a, err := p.skipExtras()
			if err != nil {
				return err
			}
			f.align = max(f.align, a.aligned)
			if t.Kind == KindArray && t.Len < 0 {
				f.Flexible = true
			}
			if name != "" && isAnon(baseOf(t).Name) {
				p.renameStruct(baseOf(t), s.Name+"."+name)
			}
			s.Fields = append(s.Fields, f)
			if p.accept(";") {
				break
			}
			if err := p.expect(","); err != nil {
				return err
			}
		}
	}
	return nil
}

func isAnon(name string) bool {
	return strings.HasPrefix(name, "__anon")
}

// baseOf strips pointers and arrays.
func baseOf(t *Type) *Type {
	for t.Kind == KindPointer || t.Kind == KindArray {
		t = t.Elem
	}
	return t
}

// renameStruct gives an anonymous struct its final name, along with the
// structs nested in it.
func (p *parser) renameStruct(t *Type, name string) {
	if (t.Kind != KindStruct && t.Kind != KindUnion) || !isAnon(t.Name) {
		return
	}
	old := t.Name
	s, ok := p.structs[structKey(t.Kind == KindUnion, old)]
	if !ok {
		return
	}
	delete(p.structs, structKey(s.Union, old))
	s.Name = name
	t.Name = name
	p.structs[structKey(s.Union, name)] = s
	for _, f := range s.Fields {
		if inner := baseOf(f.Type); strings.HasPrefix(inner.Name, old+".") {
			p.renameNested(inner, name+strings.TrimPrefix(inner.Name, old))
		}
	}
}

func (p *parser) renameNested(t *Type, name string) {
	key := structKey(t.Kind == KindUnion, t.Name)
	s, ok := p.structs[key]
	if !ok {
		return
	}
	old := t.Name
	delete(p.structs, key)
	s.Name = name
	t.Name = name
	p.structs[structKey(s.Union, name)] = s
	for _, f := range s.Fields {
		if inner := baseOf(f.Type); strings.HasPrefix(inner.Name, old+".") {
			p.renameNested(inner, name+strings.TrimPrefix(inner.Name, old))
		}
	}
}

func (p *parser) enumSpecifier() (*Type, error) {
	if _, err := p.skipExtras(); err != nil {
		return nil, err
	}
	tag := ""
	if t := p.peek(); t.kind == tIdent {
		tag = t.text
		p.next()
	}
	if !p.peek().is("{") {
		if tag == "" {
			return nil, fmt.Errorf("%w: enum without tag or body", errSyntax)
		}
		return &Type{Kind: KindEnum, Name: tag}, nil
	}
	open := p.next()
	e := &Enum{Name: tag, Header: open.file, Size: 4}
	next := int64(0)
	for !p.accept("}") {
		t := p.next()
		if t.kind != tIdent {
			return nil, fmt.Errorf("%w at %s:%d: expected enumerator, got %s", errSyntax, t.file, t.line, t)
		}
		if _, err := p.skipExtras(); err != nil {
			return nil, err
		}
		if p.accept("=") {
			start := p.pos
			depth := 0
			for {
				n := p.peek()
				if n.kind == tEOF || (depth == 0 && (n.is(",") || n.is("}"))) {
					break
				}
				if n.is("(") {
					depth++
				} else if n.is(")") {
					depth--
				}
				p.next()
			}
			v, err := evalTokens(p.toks[start:p.pos], p)
			if err != nil {
				return nil, fmt.Errorf("enumerator %s at %s:%d: %w", t.text, t.file, t.line, err)
			}
			next = v.v
		}
		e.Values = append(e.Values, EnumValue{Name: t.text, Value: next})
		p.enumVals[t.text] = next
		if next > 1<<31-1 || next < -1<<31 {
			e.Size = 8
		}
		next++
		if !p.accept(",") && !p.peek().is("}") {
			return nil, fmt.Errorf("%w at %s:%d: expected , or } in enum", errSyntax, p.peek().file, p.peek().line)
		}
	}
	if _, err := p.skipExtras(); err != nil {
		return nil, err
	}
	if tag == "" {
		// an anonymous enum is known by its typedef or, failing that, by
		// its first enumerator
		tag = p.anonName()
		if len(e.Values) > 0 {
			tag = "__anon_" + e.Values[0].Name
		}
		e.Name = tag
	}
	p.enums[tag] = e
	return &Type{Kind: KindEnum, Name: tag}, nil
}

func (p *parser) declaration() error {
	if p.accept(";") {
		return nil
	}
	if p.peek().is("_Static_assert") || p.peek().is("static_assert") {
		p.next()
		if err := p.skipBalanced(); err != nil {
			return err
		}
		return p.expect(";")
	}
	if p.peek().is("__asm__") || p.peek().is("asm") {
		p.next()
		if err := p.skipBalanced(); err != nil {
			return err
		}
		return p.expect(";")
	}
	first := p.peek()
	if !p.startsType(first) {
		return fmt.Errorf("%w at %s:%d: unexpected %s", errSyntax, first.file, first.line, first)
	}
	ds, err := p.specifiers()
	if err != nil {
		return err
	}
	if p.accept(";") {
		return nil
	}
	for {
		at := p.peek()
		name, t, err := p.declarator(ds.base)
		if err != nil {
			return err
		}
		if _, err := p.skipExtras(); err != nil {
			return err
		}
		if name == "" {
			return fmt.Errorf("%w at %s:%d: declaration without a name", errSyntax, at.file, at.line)
		}

		switch {
		case ds.storage == "typedef":
			p.addTypedef(name, t, at.file)
		case t.Kind == KindFunc:
			body := p.peek().is("{")
			if body {
				if err := p.skipBalanced(); err != nil {
					return err
				}
			}
			p.addFunction(name, t, ds, body, at.file)
			if body {
				return nil
			}
		case ds.storage == "extern":
			if _, ok := p.globals[name]; !ok {
				p.globals[name] = &Global{Name: name, Type: t, Header: at.file}
			}
		}

		if p.accept("=") {
			p.skipInitializer()
		}
		if p.accept(";") {
			return nil
		}
		if err := p.expect(","); err != nil {
			return err
		}
	}
}

func (p *parser) skipInitializer() {
	depth := 0
	for {
		t := p.peek()
		switch {
		case t.kind == tEOF:
			return
		case t.is("(") || t.is("{") || t.is("["):
			depth++
		case t.is(")") || t.is("}") || t.is("]"):
			depth--
		case depth == 0 && (t.is(",") || t.is(";")):
			return
		}
		p.next()
	}
}

func (p *parser) addTypedef(name string, t *Type, header string) {
	if _, ok := p.typedefs[name]; ok {
		return
	}
	switch t.Kind {
	case KindStruct, KindUnion:
		if isAnon(t.Name) {
			p.renameStruct(t, name)
		}
		if s, ok := p.structs[structKey(t.Kind == KindUnion, t.Name)]; ok && s.Typedef == "" {
			s.Typedef = name
		}
	case KindEnum:
		if e, ok := p.enums[t.Name]; ok && strings.HasPrefix(e.Name, "__anon") {
			delete(p.enums, e.Name)
			e.Name = name
			t.Name = name
			p.enums[name] = e
		}
	}
	p.typedefs[name] = &Typedef{Name: name, Type: t, Header: header}
}

func (p *parser) addFunction(name string, t *Type, ds declSpec, body bool, header string) {
	inline := body && (ds.inline || ds.storage == "static")
	if old, ok := p.functions[name]; ok {
		old.Inline = old.Inline || inline
		return
	}
	p.functions[name] = &Function{
		Name:     name,
		Result:   t.Elem,
		Params:   t.Params,
		Variadic: t.Variadic,
		CallConv: "cdecl",
		Inline:   inline,
		Header:   header,
	}
}

// typeName implements typeOracle for casts and sizeof.
func (p *parser) typeName(toks []token, i int) (*Type, int, bool) {
	q := p.fork(toks, i)
	if !q.startsType(q.peek()) || q.peek().is("typedef") || q.peek().is("extern") || q.peek().is("static") {
		return nil, 0, false
	}
	ds, err := q.specifiers()
	if err != nil {
		return nil, 0, false
	}
	name, t, err := q.declarator(ds.base)
	if err != nil || name != "" {
		return nil, 0, false
	}
	return t, q.pos, true
}

func (p *parser) sizeOf(t *Type) (int64, error) {
	size, _, err := p.layout.sizeAlign(t)
	return size, err
}

func (p *parser) offsetOf(t *Type, member []string) (int64, error) {
	return p.layout.offsetOf(t, member)
}

func (p *parser) enumConst(name string) (int64, bool) {
	v, ok := p.enumVals[name]
	return v, ok
}

func (p *parser) scalar(t *Type) (int64, bool, bool) {
	r := p.layout.resolve(t)
	switch r.Kind {
	case KindInt, KindBool, KindEnum, KindPointer:
		size, _, err := p.layout.sizeAlign(r)
		if err != nil {
			return 0, false, false
		}
		return size, p.layout.signed(r), true
	}
	return 0, false, false
}
