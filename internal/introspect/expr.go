package introspect

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// value is the result of an integer constant expression.
type value struct {
	v        int64
	unsigned bool
}

// typeOracle answers the questions about types that casts, sizeof,
// offsetof and enumeration constants need. #if evaluation has none.
type typeOracle interface {
	typeName(toks []token, i int) (*Type, int, bool)
	sizeOf(t *Type) (int64, error)
	offsetOf(t *Type, member []string) (int64, error)
	enumConst(name string) (int64, bool)
	scalar(t *Type) (size int64, signed bool, ok bool)
}

var errNotConstant = errors.New("not an integer constant expression")

// evalTokens evaluates toks as one integer constant expression.
func evalTokens(toks []token, o typeOracle) (value, error) {
	e := &exprParser{toks: toks, o: o}
	v, err := e.comma(true)
	if err != nil {
		return value{}, err
	}
	if e.pos < len(e.toks) {
		return value{}, fmt.Errorf("unexpected %s", e.toks[e.pos])
	}
	return v, nil
}

type exprParser struct {
	toks []token
	pos  int
	o    typeOracle
}

func (e *exprParser) peek() token {
	if e.pos < len(e.toks) {
		return e.toks[e.pos]
	}
	return token{kind: tEOF}
}

func (e *exprParser) next() token {
	t := e.peek()
	if e.pos < len(e.toks) {
		e.pos++
	}
	return t
}

func (e *exprParser) expect(p string) error {
	if t := e.next(); !t.is(p) {
		return fmt.Errorf("expected %q, got %s", p, t)
	}
	return nil
}

func (e *exprParser) comma(live bool) (value, error) {
	v, err := e.cond(live)
	for err == nil && e.peek().is(",") {
		e.next()
		v, err = e.cond(live)
	}
	return v, err
}

func (e *exprParser) cond(live bool) (value, error) {
	c, err := e.binary(1, live)
	if err != nil || !e.peek().is("?") {
		return c, err
	}
	e.next()
	a, err := e.comma(live && c.v != 0)
	if err != nil {
		return value{}, err
	}
	if err := e.expect(":"); err != nil {
		return value{}, err
	}
	b, err := e.cond(live && c.v == 0)
	if err != nil {
		return value{}, err
	}
	u := a.unsigned || b.unsigned
	if c.v != 0 {
		return value{a.v, u}, nil
	}
	return value{b.v, u}, nil
}

var precedence = map[string]int{
	"||": 1, "&&": 2, "|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6, "<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8, "+": 9, "-": 9, "*": 10, "/": 10, "%": 10,
}

func (e *exprParser) binary(minPrec int, live bool) (value, error) {
	l, err := e.unary(live)
	if err != nil {
		return value{}, err
	}
	for {
		op := e.peek()
		prec, ok := precedence[op.text]
		if op.kind != tPunct || !ok || prec < minPrec {
			return l, nil
		}
		e.next()
		rlive := live
		switch op.text {
		case "&&":
			rlive = live && l.v != 0
		case "||":
			rlive = live && l.v == 0
		}
		r, err := e.binary(prec+1, rlive)
		if err != nil {
			return value{}, err
		}
		if l, err = apply(op.text, l, r, live); err != nil {
			return value{}, err
		}
	}
}

func b2v(b bool) value {
	if b {
		return value{v: 1}
	}
	return value{}
}

func apply(op string, l, r value, live bool) (value, error) {
	u := l.unsigned || r.unsigned
	lu, ru := uint64(l.v), uint64(r.v)
	switch op {
	case "||":
		return b2v(l.v != 0 || r.v != 0), nil
	case "&&":
		return b2v(l.v != 0 && r.v != 0), nil
	case "|":
		return value{l.v | r.v, u}, nil
	case "^":
		return value{l.v ^ r.v, u}, nil
	case "&":
		return value{l.v & r.v, u}, nil
	case "==":
		return b2v(l.v == r.v), nil
	case "!=":
		return b2v(l.v != r.v), nil
	case "<":
		if u {
			return b2v(lu < ru), nil
		}
		return b2v(l.v < r.v), nil
	case ">":
		if u {
			return b2v(lu > ru), nil
		}
		return b2v(l.v > r.v), nil
	case "<=":
		if u {
			return b2v(lu <= ru), nil
		}
		return b2v(l.v <= r.v), nil
	case ">=":
		if u {
			return b2v(lu >= ru), nil
		}
		return b2v(l.v >= r.v), nil
	case "<<":
		if r.v < 0 || r.v > 63 {
			return value{}, shiftErr(live, r.v)
		}
		return value{int64(lu << uint(r.v)), l.unsigned}, nil
	case ">>":
		if r.v < 0 || r.v > 63 {
			return value{}, shiftErr(live, r.v)
		}
		if l.unsigned {
			return value{int64(lu >> uint(r.v)), true}, nil
		}
		return value{l.v >> uint(r.v), false}, nil
	case "+":
		return value{l.v + r.v, u}, nil
	case "-":
		return value{l.v - r.v, u}, nil
	case "*":
		return value{l.v * r.v, u}, nil
	case "/", "%":
		if r.v == 0 {
			if live {
				return value{}, errors.New("division by zero")
			}
			return value{0, u}, nil
		}
		if u {
			if op == "/" {
				return value{int64(lu / ru), true}, nil
			}
			return value{int64(lu % ru), true}, nil
		}
		if op == "/" {
			return value{l.v / r.v, false}, nil
		}
		return value{l.v % r.v, false}, nil
	}
	return value{}, fmt.Errorf("unknown operator %q", op)
}

func shiftErr(live bool, n int64) error {
	if !live {
		return nil
	}
	return fmt.Errorf("shift count %d out of range", n)
}

func (e *exprParser) unary(live bool) (value, error) {
	t := e.peek()
	switch {
	case t.is("+"):
		e.next()
		return e.unary(live)
	case t.is("-"):
		e.next()
		v, err := e.unary(live)
		return value{-v.v, v.unsigned}, err
	case t.is("!"):
		e.next()
		v, err := e.unary(live)
		return b2v(v.v == 0), err
	case t.is("~"):
		e.next()
		v, err := e.unary(live)
		return value{^v.v, v.unsigned}, err
	case t.is("sizeof"):
		e.next()
		return e.sizeof()
	case t.is("offsetof") || t.is("__builtin_offsetof"):
		e.next()
		return e.offsetof()
	case t.is("(") && e.o != nil:
		if typ, next, ok := e.o.typeName(e.toks, e.pos+1); ok && next < len(e.toks) && e.toks[next].is(")") {
			e.pos = next + 1
			v, err := e.unary(live)
			if err != nil {
				return value{}, err
			}
			return e.cast(typ, v)
		}
	}
	return e.primary(live)
}

func (e *exprParser) cast(t *Type, v value) (value, error) {
	size, signed, ok := e.o.scalar(t)
	if !ok {
		return value{}, fmt.Errorf("cannot cast to %s", t)
	}
	if t.Kind == KindBool {
		return b2v(v.v != 0), nil
	}
	if size >= 8 {
		return value{v.v, !signed}, nil
	}
	bits := uint(size * 8)
	mask := uint64(1)<<bits - 1
	u := uint64(v.v) & mask
	if signed && u&(1<<(bits-1)) != 0 {
		return value{int64(u | ^mask), false}, nil
	}
	return value{int64(u), !signed && size >= 4}, nil
}

func (e *exprParser) sizeof() (value, error) {
	if e.o == nil {
		return value{}, errNotConstant
	}
	if e.peek().is("(") {
		if typ, next, ok := e.o.typeName(e.toks, e.pos+1); ok && next < len(e.toks) && e.toks[next].is(")") {
			e.pos = next + 1
			n, err := e.o.sizeOf(typ)
			return value{n, true}, err
		}
	}
	return value{}, errors.New("sizeof applies only to type names here")
}

func (e *exprParser) offsetof() (value, error) {
	if e.o == nil {
		return value{}, errNotConstant
	}
	if err := e.expect("("); err != nil {
		return value{}, err
	}
	typ, next, ok := e.o.typeName(e.toks, e.pos)
	if !ok {
		return value{}, errors.New("offsetof expects a type name")
	}
	e.pos = next
	if err := e.expect(","); err != nil {
		return value{}, err
	}
	var path []string
	for {
		t := e.next()
		if t.kind != tIdent {
			return value{}, fmt.Errorf("offsetof expects a member name, got %s", t)
		}
		path = append(path, t.text)
		if !e.peek().is(".") {
			break
		}
		e.next()
	}
	if err := e.expect(")"); err != nil {
		return value{}, err
	}
	n, err := e.o.offsetOf(typ, path)
	return value{n, true}, err
}

func (e *exprParser) primary(live bool) (value, error) {
	t := e.next()
	switch t.kind {
	case tNumber:
		return parseIntLiteral(t.text)
	case tChar:
		s := unquote(t.text)
		if len(s) == 0 {
			return value{}, nil
		}
		return value{v: int64(int8(s[0]))}, nil
	case tIdent:
		if e.o != nil {
			if v, ok := e.o.enumConst(t.text); ok {
				return value{v: v}, nil
			}
		}
		return value{}, fmt.Errorf("%w: identifier %q", errNotConstant, t.text)
	case tPunct:
		if t.text == "(" {
			v, err := e.comma(live)
			if err != nil {
				return value{}, err
			}
			return v, e.expect(")")
		}
	}
	return value{}, fmt.Errorf("unexpected %s", t)
}

// parseIntLiteral parses a C integer constant with its suffixes.
func parseIntLiteral(s string) (value, error) {
	lit := strings.ToLower(s)
	unsigned := false
	for len(lit) > 0 {
		switch c := lit[len(lit)-1]; c {
		case 'u':
			unsigned = true
			lit = lit[:len(lit)-1]
			continue
		case 'l':
			lit = lit[:len(lit)-1]
			continue
		}
		break
	}
	if strings.ContainsAny(lit, ".") || (!strings.HasPrefix(lit, "0x") && strings.ContainsAny(lit, "ep")) {
		return value{}, fmt.Errorf("%w: floating constant %s", errNotConstant, s)
	}
	base := 10
	switch {
	case strings.HasPrefix(lit, "0x"):
		base, lit = 16, lit[2:]
	case strings.HasPrefix(lit, "0b"):
		base, lit = 2, lit[2:]
	case len(lit) > 1 && lit[0] == '0':
		base, lit = 8, lit[1:]
	}
	u, err := strconv.ParseUint(lit, base, 64)
	if err != nil {
		return value{}, fmt.Errorf("invalid integer constant %s", s)
	}
	if u > math.MaxInt64 {
		unsigned = true
	}
	return value{int64(u), unsigned}, nil
}
