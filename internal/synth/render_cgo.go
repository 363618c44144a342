package synth

import (
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"
	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/internal/introspect"
)

// guardMacros bracket every host call in a shim. A host ERROR longjmps
// back to the sigsetjmp, which restores the host's error stacks and
// memory context and hands a copy of the error to Go.
const guardMacros = `#define PGX_GUARD_BEGIN \
	sigjmp_buf *save_exception_stack = PG_exception_stack; \
	ErrorContextCallback *save_context_stack = error_context_stack; \
	MemoryContext save_context = CurrentMemoryContext; \
	sigjmp_buf local_sigjmp_buf; \
	if (sigsetjmp(local_sigjmp_buf, 0) == 0) \
	{ \
		PG_exception_stack = &local_sigjmp_buf;

#define PGX_GUARD_END \
		PG_exception_stack = save_exception_stack; \
		error_context_stack = save_context_stack; \
		return NULL; \
	} \
	PG_exception_stack = save_exception_stack; \
	error_context_stack = save_context_stack; \
	MemoryContextSwitchTo(save_context); \
	{ \
		ErrorData *edata = CopyErrorData(); \
		FlushErrorState(); \
		return edata; \
	}
`

const cStructLayouts = `func CStructLayouts() []StructLayout {
	i := 0
	next := func() uintptr {
		v := uintptr(C.pgx_layout[i])
		i++
		return v
	}
	out := make([]StructLayout, 0, len(structLayouts))
	for _, l := range structLayouts {
		c := l
		c.Size = next()
		c.Fields = make([]FieldLayout, len(l.Fields))
		for j, f := range l.Fields {
			if f.BitWidth == 0 {
				f.Offset = next()
			}
			c.Fields[j] = f
		}
		out = append(out, c)
	}
	return out
}`

var cgoScalars = map[string]string{
	"char":               "C.char",
	"signed char":        "C.schar",
	"unsigned char":      "C.uchar",
	"short":              "C.short",
	"unsigned short":     "C.ushort",
	"int":                "C.int",
	"unsigned int":       "C.uint",
	"long":               "C.long",
	"unsigned long":      "C.ulong",
	"long long":          "C.longlong",
	"unsigned long long": "C.ulonglong",
	"float":              "C.float",
	"double":             "C.double",
}

// renderCgo builds pg<N>_cgo.go: a guarded C shim and a Go wrapper per
// host function, accessors for host globals and the C side of the
// layout table.
func (g *gen) renderCgo() (*jen.File, error) {
	f := jen.NewFile(pkgName)
	f.HeaderComment(g.header())
	f.HeaderComment(fmt.Sprintf("//go:build pgext && cgo && pg%d", g.version))

	var pre strings.Builder
	for _, h := range g.entry.Headers {
		fmt.Fprintf(&pre, "#include %q\n", h)
	}
	pre.WriteString("\n")
	pre.WriteString(guardMacros)

	var fns []*introspect.Function
	for _, name := range g.fix.Functions {
		fn, ok := g.lookupFunction(name)
		if !ok {
			g.logger.Debug("function not declared in this version", zap.String("function", name))
			continue
		}
		if fn.Inline || fn.Variadic {
			return nil, g.errorf(fn.Name, "cannot be wrapped, add a correction instead", nil)
		}
		fns = append(fns, fn)
	}
	if len(fns) > 0 {
		if s, ok := g.desc.Struct("ErrorData"); !ok || !g.emits(s) {
			return nil, g.errorf("ErrorData", "wrapped functions need the ErrorData struct", nil)
		}
	}

	for _, fn := range fns {
		shim, err := g.cShim(fn)
		if err != nil {
			return nil, g.errorf(fn.Name, "cannot be wrapped", err)
		}
		pre.WriteString("\n")
		pre.WriteString(shim)
	}

	var globals []*introspect.Global
	for _, spec := range g.fix.Globals {
		gl, ok := g.desc.Global(spec.Name)
		if !ok {
			continue
		}
		if len(globals) == 0 {
			pre.WriteString("\n")
		}
		globals = append(globals, gl)
		get, err := cDecl(gl.Type, "pgx_get_"+gl.Name+"(void)")
		if err != nil {
			return nil, g.errorf(gl.Name, "cannot be wrapped", err)
		}
		fmt.Fprintf(&pre, "static %s { return %s; }\n", get, gl.Name)
		if spec.Settable {
			v, _ := cDecl(gl.Type, "v")
			fmt.Fprintf(&pre, "static void pgx_set_%s(%s) { %s = v; }\n", gl.Name, v, gl.Name)
		}
	}

	if len(g.structs) > 0 {
		pre.WriteString("\nstatic const size_t pgx_layout[] = {\n")
		for _, s := range g.structs {
			g.cLayout(&pre, s)
		}
		pre.WriteString("};\n")
	}
	f.CgoPreamble(pre.String())

	for _, fn := range fns {
		if err := g.goWrapper(f, fn); err != nil {
			return nil, g.errorf(fn.Name, "cannot be wrapped", err)
		}
	}
	for _, spec := range g.fix.Globals {
		for _, gl := range globals {
			if gl.Name == spec.Name {
				if err := g.globalAccessors(f, gl, spec.Settable); err != nil {
					return nil, g.errorf(gl.Name, "cannot be wrapped", err)
				}
			}
		}
	}
	if len(g.structs) > 0 {
		f.Comment("CStructLayouts reports the layout table as the host compiler sees it.")
		f.Comment("Entries follow Layouts; bitfield members are copied unchanged.")
		f.Op(cStructLayouts)
		g.declare("CStructLayouts", "function")
	}
	return f, nil
}

func (g *gen) lookupFunction(name string) (*introspect.Function, bool) {
	if fn, ok := g.desc.Function(name); ok {
		return fn, true
	}
	for _, host := range g.hostNames(name) {
		if fn, ok := g.desc.Function(host); ok {
			return fn, true
		}
	}
	return nil, false
}

func (g *gen) cShim(fn *introspect.Function) (string, error) {
	stableName := stable(g.desc.Renames, fn.Name)
	var params, args []string
	for i, p := range fn.Params {
		name := paramName(p.Name, i)
		decl, err := cDecl(p.Type, name)
		if err != nil {
			return "", err
		}
		params = append(params, decl)
		args = append(args, name)
	}
	call := fmt.Sprintf("%s(%s);", fn.Name, strings.Join(args, ", "))
	if !isVoid(fn.Result) {
		decl, err := cDecl(fn.Result, "*result")
		if err != nil {
			return "", err
		}
		params = append(params, decl)
		call = "*result = " + call
	}
	if len(params) == 0 {
		params = []string{"void"}
	}
	return fmt.Sprintf("static ErrorData *pgx_%s(%s)\n{\n\tPGX_GUARD_BEGIN\n\t%s\n\tPGX_GUARD_END\n}\n",
		stableName, strings.Join(params, ", "), call), nil
}

func (g *gen) goWrapper(f *jen.File, fn *introspect.Function) error {
	stableName := stable(g.desc.Renames, fn.Name)
	goName := camel(stableName)

	var params, args []jen.Code
	for i, p := range fn.Params {
		name := paramName(p.Name, i)
		gt, err := g.goType(p.Type, true)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		ct, err := cgoType(p.Type)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		params = append(params, jen.Id(name).Id(gt.spell))
		args = append(args, jen.Op(toC(name, gt, ct)))
	}

	edata := jen.Op("(*ErrorData)(unsafe.Pointer(edata))")
	shim := "C.pgx_" + stableName
	var (
		results jen.Code = jen.Op("*").Id("ErrorData")
		body    []jen.Code
	)
	if isVoid(fn.Result) {
		body = []jen.Code{
			jen.Id("edata").Op(":=").Id(shim).Call(args...),
			jen.Return(edata),
		}
	} else {
		rt, err := g.goType(fn.Result, true)
		if err != nil {
			return fmt.Errorf("result: %w", err)
		}
		ct, err := cgoType(fn.Result)
		if err != nil {
			return fmt.Errorf("result: %w", err)
		}
		results = jen.Params(jen.Id(rt.spell), jen.Op("*").Id("ErrorData"))
		body = []jen.Code{
			jen.Var().Id("result").Id(ct),
			jen.Id("edata").Op(":=").Id(shim).Call(append(args, jen.Op("&").Id("result"))...),
			jen.Return(jen.Op(fromC("result", rt, ct)), edata),
		}
	}

	if stableName != fn.Name {
		f.Comment(fmt.Sprintf("%s is %s in the host.", goName, fn.Name))
	}
	f.Func().Id(goName).Params(params...).Add(results).Block(body...)
	f.Line()
	g.declare(goName, "function")
	return nil
}

func (g *gen) globalAccessors(f *jen.File, gl *introspect.Global, settable bool) error {
	gt, err := g.goType(gl.Type, true)
	if err != nil {
		return err
	}
	ct, err := cgoType(gl.Type)
	if err != nil {
		return err
	}
	name := camel(gl.Name)
	f.Func().Id(name).Params().Id(gt.spell).Block(
		jen.Return(jen.Op(fromC("C.pgx_get_"+gl.Name+"()", gt, ct))),
	)
	f.Line()
	g.declare(name, "function")
	if settable {
		f.Func().Id("Set"+name).Params(jen.Id("v").Id(gt.spell)).Block(
			jen.Id("C.pgx_set_" + gl.Name).Call(jen.Op(toC("v", gt, ct))),
		)
		f.Line()
		g.declare("Set"+name, "function")
	}
	return nil
}

// cLayout writes the sizeof and offsetof entries of s in the order the
// Go layout table lists them.
func (g *gen) cLayout(w *strings.Builder, s *introspect.Struct) {
	gs := g.layouts[s]
	root, path := cname(s), ""
	if i := strings.Index(s.Name, "."); i > 0 {
		if r, ok := g.desc.Struct(s.Name[:i]); ok {
			root, path = r.CName(), s.Name[i+1:]
		}
	}
	if path == "" {
		fmt.Fprintf(w, "\tsizeof(%s),\n", root)
	} else {
		fmt.Fprintf(w, "\tsizeof(((%s *) 0)->%s),\n", root, path)
	}
	for _, f := range s.Fields {
		switch {
		case f.Name == "", f.Bitfield:
		case s.Union && gs != nil && f.Name != gs.member:
		case path == "":
			fmt.Fprintf(w, "\toffsetof(%s, %s),\n", root, f.Name)
		default:
			fmt.Fprintf(w, "\toffsetof(%s, %s.%s) - offsetof(%s, %s),\n", root, path, f.Name, root, path)
		}
	}
}

func isVoid(t *introspect.Type) bool {
	return t == nil || t.Kind == introspect.KindVoid
}

// cDecl spells a C declaration of name with type t.
func cDecl(t *introspect.Type, name string) (string, error) {
	if t.Kind == introspect.KindPointer {
		return cDecl(t.Elem, "*"+name)
	}
	var base string
	switch t.Kind {
	case introspect.KindVoid:
		base = "void"
	case introspect.KindInt, introspect.KindFloat, introspect.KindTypedef:
		base = t.Name
	case introspect.KindBool:
		base = "bool"
	case introspect.KindStruct, introspect.KindUnion, introspect.KindEnum:
		if strings.Contains(t.Name, ".") {
			return "", fmt.Errorf("type %s has no C spelling", t)
		}
		base = string(t.Kind) + " " + t.Name
	default:
		return "", fmt.Errorf("type %s is not supported in a wrapper", t)
	}
	if t.Const {
		base = "const " + base
	}
	return base + " " + name, nil
}

// cgoType spells t as cgo exposes it to Go.
func cgoType(t *introspect.Type) (string, error) {
	switch t.Kind {
	case introspect.KindPointer:
		if t.Elem.Kind == introspect.KindVoid {
			return "unsafe.Pointer", nil
		}
		elem, err := cgoType(t.Elem)
		if err != nil {
			return "", err
		}
		return "*" + elem, nil
	case introspect.KindTypedef:
		return "C." + t.Name, nil
	case introspect.KindInt, introspect.KindFloat:
		if c, ok := cgoScalars[t.Name]; ok {
			return c, nil
		}
	case introspect.KindBool:
		return "C.bool", nil
	case introspect.KindStruct, introspect.KindUnion, introspect.KindEnum:
		if !strings.Contains(t.Name, ".") {
			return "C." + string(t.Kind) + "_" + t.Name, nil
		}
	}
	return "", fmt.Errorf("type %s is not supported in a wrapper", t)
}

func convert(to, expr string) string {
	if strings.HasPrefix(to, "*") {
		return "(" + to + ")(" + expr + ")"
	}
	return to + "(" + expr + ")"
}

// toC converts the Go value name of type gt to the cgo type ct.
func toC(name string, gt goType, ct string) string {
	switch {
	case ct == "unsafe.Pointer":
		if gt.opaque {
			return name
		}
		return "unsafe.Pointer(" + name + ")"
	case gt.opaque:
		return convert(ct, name)
	case gt.pointer:
		return convert(ct, "unsafe.Pointer("+name+")")
	}
	return convert(ct, name)
}

// fromC converts expr of the cgo type ct back to gt.
func fromC(expr string, gt goType, ct string) string {
	switch {
	case ct == "unsafe.Pointer":
		if gt.opaque {
			return expr
		}
		return convert(gt.spell, expr)
	case gt.opaque:
		return "unsafe.Pointer(" + expr + ")"
	case gt.pointer:
		return convert(gt.spell, "unsafe.Pointer("+expr+")")
	}
	return convert(gt.spell, expr)
}
