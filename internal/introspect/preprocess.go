package introspect

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

const (
	maxIncludeDepth = 200
	maxHideDepth    = 128
	maxExpansions   = 1 << 20
)

type macro struct {
	name       string
	funcLike   bool
	params     []string
	variadic   bool
	body       []token
	file       string
	line       int
	predefined bool
}

func (m *macro) param(t token) int {
	if !m.funcLike || t.kind != tIdent {
		return -1
	}
	for i, p := range m.params {
		if p == t.text {
			return i
		}
	}
	return -1
}

func (m *macro) sameAs(o *macro) bool {
	if m.funcLike != o.funcLike || m.variadic != o.variadic || len(m.params) != len(o.params) || len(m.body) != len(o.body) {
		return false
	}
	for i := range m.params {
		if m.params[i] != o.params[i] {
			return false
		}
	}
	for i := range m.body {
		if m.body[i].text != o.body[i].text || (i > 0 && m.body[i].space != o.body[i].space) {
			return false
		}
	}
	return true
}

// headerFile is one header the preprocessor read.
type headerFile struct {
	Rel string
	Abs string
	Sum xxh3.Uint128
}

type condFrame struct {
	active       bool // this branch is being emitted
	taken        bool // some branch of the group was taken
	parentActive bool
	sawElse      bool
	line         int
}

type preprocessor struct {
	version   int
	dirs      []string
	macros    map[string]*macro
	undefined map[string]bool
	logger    *zap.Logger

	once       map[string]bool
	files      []headerFile
	seen       map[string]bool
	out        []token
	depth      int
	expansions int
}

func newPreprocessor(version int, dirs []string, undefined map[string]bool, logger *zap.Logger) *preprocessor {
	return &preprocessor{
		version:   version,
		dirs:      dirs,
		macros:    make(map[string]*macro),
		undefined: undefined,
		logger:    logger,
		once:      make(map[string]bool),
		seen:      make(map[string]bool),
	}
}

// predefine defines "NAME body" as a macro that headers cannot redefine
// or undefine. origin stands in for the header name.
func (p *preprocessor) predefine(origin, def string) error {
	toks, err := lex(origin, def)
	if err != nil {
		return err
	}
	m, err := p.parseDefine(stripNewlines(toks))
	if err != nil {
		return err
	}
	m.predefined = true
	m.file = origin
	p.macros[m.name] = m
	return nil
}

// undefine drops a macro set by predefine.
func (p *preprocessor) undefine(name string) {
	if m, ok := p.macros[name]; ok && m.predefined {
		delete(p.macros, name)
	}
}

// includeTop processes an allow-listed header.
func (p *preprocessor) includeTop(name string) error {
	rel, abs, ok := p.resolve(name, "", "")
	if !ok {
		return &HeaderNotFoundError{Version: p.version, Header: name}
	}
	return p.processFile(rel, abs)
}

func (p *preprocessor) resolve(name, fromRel, fromAbs string) (string, string, bool) {
	if fromAbs != "" {
		cand := filepath.Join(filepath.Dir(fromAbs), filepath.FromSlash(name))
		if fileExists(cand) {
			return path.Clean(path.Join(path.Dir(fromRel), name)), cand, true
		}
	}
	for _, dir := range p.dirs {
		cand := filepath.Join(dir, filepath.FromSlash(name))
		if fileExists(cand) {
			return path.Clean(name), cand, true
		}
	}
	return "", "", false
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

func (p *preprocessor) processFile(rel, abs string) error {
	if p.once[abs] {
		return nil
	}
	if p.depth >= maxIncludeDepth {
		return &DirectiveError{Version: p.version, Header: rel, Message: "#include nested too deeply"}
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("failed to read header %s: %w", rel, err)
	}
	if !p.seen[abs] {
		p.seen[abs] = true
		p.files = append(p.files, headerFile{Rel: rel, Abs: abs, Sum: xxh3.Hash128(data)})
	}
	toks, err := lex(rel, string(data))
	if err != nil {
		return &DirectiveError{Version: p.version, Header: rel, Message: err.Error()}
	}

	p.depth++
	defer func() { p.depth-- }()

	var (
		conds   []condFrame
		pending []token
	)
	active := func() bool {
		return len(conds) == 0 || conds[len(conds)-1].active
	}
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		p.expansions = 0
		exp, err := p.expand(pending)
		pending = pending[:0]
		if err != nil {
			return err
		}
		p.out = append(p.out, exp...)
		return nil
	}

	for start := 0; start < len(toks); {
		end := start
		for toks[end].kind != tNewline {
			end++
		}
		line := toks[start:end]
		start = end + 1
		if len(line) == 0 {
			continue
		}
		if !line[0].is("#") {
			if active() {
				pending = append(pending, line...)
			}
			continue
		}

		if len(line) == 1 || line[1].kind == tNumber {
			continue
		}
		dir, args := line[1], line[2:]
		errAt := func(format string, a ...any) error {
			return &DirectiveError{Version: p.version, Header: rel, Line: dir.line, Message: fmt.Sprintf(format, a...)}
		}

		switch dir.text {
		case "if", "ifdef", "ifndef":
			if !active() {
				conds = append(conds, condFrame{line: dir.line})
				continue
			}
			if err := flush(); err != nil {
				return err
			}
			var v bool
			switch dir.text {
			case "if":
				v, err = p.evalIf(args, dir)
				if err != nil {
					return err
				}
			default:
				if len(args) == 0 || args[0].kind != tIdent {
					return errAt("#%s without a macro name", dir.text)
				}
				_, def := p.macros[args[0].text]
				v = def == (dir.text == "ifdef")
			}
			conds = append(conds, condFrame{active: v, taken: v, parentActive: true, line: dir.line})

		case "elif":
			if len(conds) == 0 {
				return errAt("#elif without #if")
			}
			top := &conds[len(conds)-1]
			if top.sawElse {
				return errAt("#elif after #else")
			}
			if !top.parentActive || top.taken {
				top.active = false
				continue
			}
			if err := flush(); err != nil {
				return err
			}
			v, err := p.evalIf(args, dir)
			if err != nil {
				return err
			}
			top.active, top.taken = v, v

		case "else":
			if len(conds) == 0 {
				return errAt("#else without #if")
			}
			top := &conds[len(conds)-1]
			if top.sawElse {
				return errAt("#else after #else")
			}
			if err := flush(); err != nil {
				return err
			}
			top.sawElse = true
			top.active = top.parentActive && !top.taken
			top.taken = true

		case "endif":
			if len(conds) == 0 {
				return errAt("#endif without #if")
			}
			if err := flush(); err != nil {
				return err
			}
			conds = conds[:len(conds)-1]

		default:
			if !active() {
				continue
			}
			if err := flush(); err != nil {
				return err
			}
			if err := p.directive(rel, abs, dir, args); err != nil {
				return err
			}
		}
	}

	if len(conds) > 0 {
		return &DirectiveError{Version: p.version, Header: rel, Line: conds[len(conds)-1].line, Message: "unterminated conditional"}
	}
	return flush()
}

func (p *preprocessor) directive(rel, abs string, dir token, args []token) error {
	switch dir.text {
	case "define":
		m, err := p.parseDefine(args)
		if err != nil {
			return &DirectiveError{Version: p.version, Header: rel, Line: dir.line, Message: err.Error()}
		}
		m.file, m.line = rel, dir.line
		old, ok := p.macros[m.name]
		switch {
		case ok && old.predefined:
			p.logger.Debug("keeping predefined macro", zap.String("macro", m.name), zap.String("header", rel))
		case ok && !old.sameAs(m):
			return &AmbiguousMacroError{
				Version: p.version, Macro: m.name, Header: rel, Line: dir.line,
				Reason: fmt.Sprintf("redefined without #undef (previous definition at %s:%d)", old.file, old.line),
			}
		default:
			p.macros[m.name] = m
		}

	case "undef":
		if len(args) == 0 || args[0].kind != tIdent {
			return &DirectiveError{Version: p.version, Header: rel, Line: dir.line, Message: "#undef without a macro name"}
		}
		if m, ok := p.macros[args[0].text]; ok && !m.predefined {
			delete(p.macros, args[0].text)
		}

	case "include", "include_next":
		name, quoted, err := p.headerName(args)
		if err != nil {
			return &DirectiveError{Version: p.version, Header: rel, Line: dir.line, Message: err.Error()}
		}
		from, fromAbs := "", ""
		if quoted {
			from, fromAbs = rel, abs
		}
		incRel, incAbs, ok := p.resolve(name, from, fromAbs)
		if !ok {
			if !quoted {
				p.logger.Debug("skipping system header", zap.String("header", name), zap.String("from", rel))
				return nil
			}
			return &HeaderNotFoundError{Version: p.version, Header: name, IncludedFrom: rel, Line: dir.line}
		}
		return p.processFile(incRel, incAbs)

	case "pragma":
		if len(args) > 0 && args[0].is("once") {
			p.once[abs] = true
		}

	case "error":
		return &DirectiveError{Version: p.version, Header: rel, Line: dir.line, Message: "#error " + joinTokens(args)}

	case "warning":
		p.logger.Warn("#warning in host header",
			zap.String("header", rel), zap.Int("line", dir.line), zap.String("message", joinTokens(args)))

	case "line", "ident", "sccs", "assert", "unassert":

	default:
		return &DirectiveError{Version: p.version, Header: rel, Line: dir.line, Message: "unknown directive #" + dir.text}
	}
	return nil
}

func (p *preprocessor) headerName(args []token) (string, bool, error) {
	if len(args) > 0 && args[0].kind != tString && !args[0].is("<") {
		exp, err := p.expand(args)
		if err != nil {
			return "", false, err
		}
		args = exp
	}
	if len(args) == 0 {
		return "", false, errors.New("#include expects a header name")
	}
	if args[0].kind == tString {
		return unquote(args[0].text), true, nil
	}
	if args[0].is("<") {
		var b strings.Builder
		for _, t := range args[1:] {
			if t.is(">") {
				return b.String(), false, nil
			}
			b.WriteString(t.text)
		}
	}
	return "", false, errors.New("#include expects \"FILE\" or <FILE>")
}

func (p *preprocessor) parseDefine(args []token) (*macro, error) {
	if len(args) == 0 || args[0].kind != tIdent {
		return nil, errors.New("#define without a macro name")
	}
	m := &macro{name: args[0].text}
	rest := args[1:]
	if len(rest) > 0 && rest[0].is("(") && !rest[0].space {
		m.funcLike = true
		i := 1
		for ; i < len(rest); i++ {
			t := rest[i]
			switch {
			case t.is(")"):
			case t.is(","):
				continue
			case t.is("..."):
				m.variadic = true
				m.params = append(m.params, "__VA_ARGS__")
				continue
			case t.kind == tIdent:
				if i+1 < len(rest) && rest[i+1].is("...") {
					m.variadic = true
					i++
				}
				m.params = append(m.params, t.text)
				continue
			default:
				return nil, fmt.Errorf("unexpected %s in parameters of macro %s", t, m.name)
			}
			break
		}
		if i >= len(rest) {
			return nil, fmt.Errorf("missing ) in parameters of macro %s", m.name)
		}
		rest = rest[i+1:]
	}
	m.body = append([]token(nil), rest...)
	if len(m.body) > 0 {
		m.body[0].space = false
	}
	return m, nil
}

// tokenStack is a token stream with push-back; the next token is last.
type tokenStack []token

func newTokenStack(toks []token) *tokenStack {
	s := make(tokenStack, 0, len(toks))
	s.push(toks)
	return &s
}

func (s *tokenStack) push(toks []token) {
	for i := len(toks) - 1; i >= 0; i-- {
		*s = append(*s, toks[i])
	}
}

func (s *tokenStack) pop() (token, bool) {
	n := len(*s)
	if n == 0 {
		return token{}, false
	}
	t := (*s)[n-1]
	*s = (*s)[:n-1]
	return t, true
}

func (s *tokenStack) peek() (token, bool) {
	n := len(*s)
	if n == 0 {
		return token{}, false
	}
	return (*s)[n-1], true
}

// expand macro-expands toks. Every token carries the set of macros it
// came from, which is what stops recursive expansion.
func (p *preprocessor) expand(toks []token) ([]token, error) {
	st := newTokenStack(toks)
	var out []token
	for {
		t, ok := st.pop()
		if !ok {
			return out, nil
		}
		m := p.macros[t.text]
		if t.kind != tIdent || m == nil || t.hide.has(t.text) {
			out = append(out, t)
			continue
		}
		if p.expansions++; p.expansions > maxExpansions {
			return nil, p.runaway(m, t)
		}

		var (
			args [][]token
			hs   hideSet
		)
		if m.funcLike {
			next, ok := st.peek()
			if !ok || !next.is("(") {
				out = append(out, t)
				continue
			}
			st.pop()
			var rparen token
			var err error
			args, rparen, err = p.readArgs(st, m, t)
			if err != nil {
				return nil, err
			}
			hs = t.hide.intersect(rparen.hide).add(m.name)
		} else {
			hs = t.hide.add(m.name)
		}
		if len(hs) > maxHideDepth {
			return nil, p.runaway(m, t)
		}
		body, err := p.subst(m, args, hs, t)
		if err != nil {
			return nil, err
		}
		st.push(body)
	}
}

func (p *preprocessor) runaway(m *macro, at token) error {
	return &AmbiguousMacroError{Version: p.version, Macro: m.name, Header: at.file, Line: at.line, Reason: "runaway recursive expansion"}
}

func (p *preprocessor) readArgs(st *tokenStack, m *macro, at token) ([][]token, token, error) {
	var (
		args  [][]token
		cur   = []token{}
		depth = 0
	)
	for {
		t, ok := st.pop()
		if !ok {
			return nil, token{}, &AmbiguousMacroError{
				Version: p.version, Macro: m.name, Header: at.file, Line: at.line,
				Reason: "unterminated argument list",
			}
		}
		switch {
		case t.is("("):
			depth++
		case t.is(")") && depth > 0:
			depth--
		case t.is(")"):
			args = append(args, cur)
			return p.checkArgs(m, args, at, t)
		case t.is(",") && depth == 0 && !(m.variadic && len(args) == len(m.params)-1):
			args = append(args, cur)
			cur = []token{}
			continue
		}
		cur = append(cur, t)
	}
}

func (p *preprocessor) checkArgs(m *macro, args [][]token, at, rparen token) ([][]token, token, error) {
	if len(m.params) == 0 && len(args) == 1 && len(args[0]) == 0 {
		return nil, rparen, nil
	}
	if m.variadic && len(args) == len(m.params)-1 {
		args = append(args, nil)
	}
	if len(args) != len(m.params) {
		return nil, token{}, &AmbiguousMacroError{
			Version: p.version, Macro: m.name, Header: at.file, Line: at.line,
			Reason: fmt.Sprintf("takes %d arguments, got %d", len(m.params), len(args)),
		}
	}
	return args, rparen, nil
}

func (p *preprocessor) subst(m *macro, args [][]token, hs hideSet, at token) ([]token, error) {
	var out []token
	body := m.body
	operand := func(t token) []token {
		if i := m.param(t); i >= 0 {
			return append([]token(nil), args[i]...)
		}
		return []token{t}
	}

	for i := 0; i < len(body); i++ {
		t := body[i]

		if m.funcLike && t.is("#") && i+1 < len(body) && m.param(body[i+1]) >= 0 {
			s := stringize(args[m.param(body[i+1])])
			s.space = t.space
			out = append(out, s)
			i++
			continue
		}

		if i+2 < len(body) && body[i+1].is("##") {
			left := operand(t)
			if len(left) > 0 {
				left[0].space = t.space
			}
			for i+2 < len(body) && body[i+1].is("##") {
				right := body[i+2]
				rtoks := operand(right)
				if right.text == "__VA_ARGS__" && len(left) > 0 && left[len(left)-1].is(",") {
					// GNU: a comma pasted to empty variadic arguments disappears
					if len(rtoks) == 0 {
						left = left[:len(left)-1]
					} else {
						left = append(left, rtoks...)
					}
				} else {
					var err error
					if left, err = p.paste(m, left, rtoks, at); err != nil {
						return nil, err
					}
				}
				i += 2
			}
			out = append(out, left...)
			continue
		}

		if idx := m.param(t); idx >= 0 {
			exp, err := p.expand(append([]token(nil), args[idx]...))
			if err != nil {
				return nil, err
			}
			if len(exp) > 0 {
				exp[0].space = t.space
			}
			out = append(out, exp...)
			continue
		}
		out = append(out, t)
	}

	for i := range out {
		out[i].hide = out[i].hide.union(hs)
		out[i].file, out[i].line = at.file, at.line
	}
	if len(out) > 0 {
		out[0].space = at.space
	}
	return out, nil
}

func (p *preprocessor) paste(m *macro, left, right []token, at token) ([]token, error) {
	if len(right) == 0 {
		return left, nil
	}
	if len(left) == 0 {
		return right, nil
	}
	l := left[len(left)-1]
	glued, err := lex(at.file, l.text+right[0].text)
	if err == nil {
		glued = stripNewlines(glued)
	}
	if err != nil || len(glued) != 1 {
		return nil, &AmbiguousMacroError{
			Version: p.version, Macro: m.name, Header: at.file, Line: at.line,
			Reason: fmt.Sprintf("pasting %q and %q does not give a valid token", l.text, right[0].text),
		}
	}
	g := glued[0]
	g.space, g.hide = l.space, l.hide
	out := append(left[:len(left)-1:len(left)-1], g)
	return append(out, right[1:]...), nil
}

func stringize(arg []token) token {
	var b strings.Builder
	b.WriteByte('"')
	for i, t := range arg {
		if i > 0 && t.space {
			b.WriteByte(' ')
		}
		if t.kind == tString || t.kind == tChar {
			b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(t.text))
			continue
		}
		b.WriteString(t.text)
	}
	b.WriteByte('"')
	return token{kind: tString, text: b.String()}
}

func stripNewlines(toks []token) []token {
	out := toks[:0]
	for _, t := range toks {
		if t.kind != tNewline {
			out = append(out, t)
		}
	}
	return out
}

// evalIf evaluates the controlling expression of #if or #elif.
func (p *preprocessor) evalIf(args []token, dir token) (bool, error) {
	toks, err := p.replaceDefined(args)
	if err != nil {
		return false, err
	}
	if toks, err = p.expand(toks); err != nil {
		return false, err
	}
	if toks, err = p.replaceDefined(toks); err != nil {
		return false, err
	}
	for i, t := range toks {
		if t.kind != tIdent {
			continue
		}
		if m, ok := p.macros[t.text]; ok && m.funcLike {
			return false, &AmbiguousMacroError{
				Version: p.version, Macro: t.text, Header: dir.file, Line: dir.line,
				Reason: "function-like macro used without arguments in #" + dir.text,
			}
		}
		if !p.undefined[t.text] {
			return false, &AmbiguousMacroError{
				Version: p.version, Macro: t.text, Header: dir.file, Line: dir.line,
				Reason: "undefined identifier in #" + dir.text,
			}
		}
		toks[i] = token{kind: tNumber, text: "0", file: t.file, line: t.line, space: t.space}
	}
	v, err := evalTokens(toks, nil)
	if err != nil {
		return false, &DirectiveError{Version: p.version, Header: dir.file, Line: dir.line,
			Message: fmt.Sprintf("invalid #%s expression: %v", dir.text, err)}
	}
	return v.v != 0, nil
}

// replaceDefined resolves defined X, defined(X) and the __has_ family
// of compiler queries.
func (p *preprocessor) replaceDefined(toks []token) ([]token, error) {
	out := make([]token, 0, len(toks))
	num := func(t token, v bool) token {
		n := token{kind: tNumber, text: "0", file: t.file, line: t.line, space: t.space}
		if v {
			n.text = "1"
		}
		return n
	}
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.kind == tIdent && t.text == "defined":
			j := i + 1
			paren := j < len(toks) && toks[j].is("(")
			if paren {
				j++
			}
			if j >= len(toks) || toks[j].kind != tIdent {
				return nil, &DirectiveError{Version: p.version, Header: t.file, Line: t.line, Message: "defined without a macro name"}
			}
			_, def := p.macros[toks[j].text]
			if paren {
				j++
				if j >= len(toks) || !toks[j].is(")") {
					return nil, &DirectiveError{Version: p.version, Header: t.file, Line: t.line, Message: "missing ) after defined"}
				}
			}
			out = append(out, num(t, def))
			i = j

		case t.kind == tIdent && strings.HasPrefix(t.text, "__has_") && i+1 < len(toks) && toks[i+1].is("("):
			j, depth := i+1, 0
			for ; j < len(toks); j++ {
				if toks[j].is("(") {
					depth++
				} else if toks[j].is(")") {
					if depth--; depth == 0 {
						break
					}
				}
			}
			v := false
			if t.text == "__has_include" || t.text == "__has_include_next" {
				if name, _, err := p.headerName(toks[i+2 : j]); err == nil {
					_, _, v = p.resolve(name, "", "")
				}
			}
			out = append(out, num(t, v))
			i = j

		default:
			out = append(out, t)
		}
	}
	return out, nil
}
