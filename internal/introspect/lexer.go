package introspect

import (
	"fmt"
	"strings"
)

type tokKind uint8

const (
	tEOF tokKind = iota
	tIdent
	tNumber
	tChar
	tString
	tPunct
	tNewline
)

// token is one preprocessing token. hide is the set of macro names that
// must not expand it again.
type token struct {
	kind  tokKind
	text  string
	file  string
	line  int
	space bool // preceded by white space
	hide  hideSet
}

func (t token) is(text string) bool {
	return (t.kind == tPunct || t.kind == tIdent) && t.text == text
}

func (t token) String() string {
	if t.kind == tEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.text)
}

// hideSet is a small set of macro names.
type hideSet []string

func (h hideSet) has(name string) bool {
	for _, n := range h {
		if n == name {
			return true
		}
	}
	return false
}

func (h hideSet) add(name string) hideSet {
	if h.has(name) {
		return h
	}
	out := make(hideSet, 0, len(h)+1)
	out = append(out, h...)
	return append(out, name)
}

func (h hideSet) union(o hideSet) hideSet {
	out := h
	for _, n := range o {
		out = out.add(n)
	}
	return out
}

func (h hideSet) intersect(o hideSet) hideSet {
	var out hideSet
	for _, n := range h {
		if o.has(n) {
			out = append(out, n)
		}
	}
	return out
}

var puncts = []string{
	"...", "<<=", ">>=",
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"*=", "/=", "%=", "+=", "-=", "&=", "^=", "|=", "##",
}

// lex splits C source into preprocessing tokens. Comments become white
// space, line continuations are spliced, and every line ends with a
// tNewline token.
func lex(file, src string) ([]token, error) {
	var (
		toks  []token
		line  = 1
		space = false
		i     = 0
	)
	emit := func(k tokKind, text string, ln int) {
		toks = append(toks, token{kind: k, text: text, file: file, line: ln, space: space})
		space = false
	}
	// skipSplice steps over line continuations at j.
	skipSplice := func(j int) int {
		for j+1 < len(src) && src[j] == '\\' && (src[j+1] == '\n' || (src[j+1] == '\r' && j+2 < len(src) && src[j+2] == '\n')) {
			if src[j+1] == '\r' {
				j++
			}
			j += 2
			line++
		}
		return j
	}

	for {
		i = skipSplice(i)
		if i >= len(src) {
			break
		}
		c := src[i]
		switch {
		case c == '\n':
			emit(tNewline, "\n", line)
			line++
			i++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			space = true
			i++
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			start := line
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("%s:%d: unterminated comment", file, start)
			}
			line += strings.Count(src[i:i+2+end], "\n")
			i += end + 4
			space = true
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				if src[i] == '\\' && i+1 < len(src) && src[i+1] == '\n' {
					line++
					i++
				}
				i++
			}
			space = true
		case isIdentStart(c):
			var b strings.Builder
			for i < len(src) {
				i = skipSplice(i)
				if i >= len(src) || !isIdentChar(src[i]) {
					break
				}
				b.WriteByte(src[i])
				i++
			}
			// wide and unicode prefixes on literals
			if s := b.String(); (s == "L" || s == "u" || s == "U" || s == "u8") && i < len(src) && (src[i] == '"' || src[i] == '\'') {
				j, text, err := lexQuoted(src, i, file, line)
				if err != nil {
					return nil, err
				}
				k := tString
				if src[i] == '\'' {
					k = tChar
				}
				emit(k, s+text, line)
				i = j
				continue
			}
			emit(tIdent, b.String(), line)
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			var b strings.Builder
			for i < len(src) {
				i = skipSplice(i)
				if i >= len(src) {
					break
				}
				ch := src[i]
				if (ch == '+' || ch == '-') && b.Len() > 0 {
					prev := b.String()[b.Len()-1]
					if prev == 'e' || prev == 'E' || prev == 'p' || prev == 'P' {
						b.WriteByte(ch)
						i++
						continue
					}
				}
				if !isIdentChar(ch) && ch != '.' {
					break
				}
				b.WriteByte(ch)
				i++
			}
			emit(tNumber, b.String(), line)
		case c == '"' || c == '\'':
			j, text, err := lexQuoted(src, i, file, line)
			if err != nil {
				return nil, err
			}
			k := tString
			if c == '\'' {
				k = tChar
			}
			emit(k, text, line)
			i = j
		default:
			p := string(c)
			for _, cand := range puncts {
				if strings.HasPrefix(src[i:], cand) {
					p = cand
					break
				}
			}
			emit(tPunct, p, line)
			i += len(p)
		}
	}
	if len(toks) == 0 || toks[len(toks)-1].kind != tNewline {
		emit(tNewline, "\n", line)
	}
	return toks, nil
}

func lexQuoted(src string, i int, file string, line int) (int, string, error) {
	q := src[i]
	j := i + 1
	for j < len(src) && src[j] != q {
		if src[j] == '\\' && j+1 < len(src) {
			j++
		}
		if src[j] == '\n' {
			return 0, "", fmt.Errorf("%s:%d: unterminated literal", file, line)
		}
		j++
	}
	if j >= len(src) {
		return 0, "", fmt.Errorf("%s:%d: unterminated literal", file, line)
	}
	return j + 1, src[i : j+1], nil
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// joinTokens renders tokens back to source text, keeping single spaces
// where the input had white space.
func joinTokens(toks []token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && t.space {
			b.WriteByte(' ')
		}
		b.WriteString(t.text)
	}
	return b.String()
}

// unquote decodes the body of a string or character literal.
func unquote(lit string) string {
	if i := strings.IndexAny(lit, "\"'"); i >= 0 {
		lit = lit[i:]
	}
	if len(lit) < 2 {
		return ""
	}
	body := lit[1 : len(lit)-1]
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '0':
			b.WriteByte(0)
		case 'a':
			b.WriteByte(7)
		case 'b':
			b.WriteByte(8)
		case 'f':
			b.WriteByte(12)
		case 'v':
			b.WriteByte(11)
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
