package synth

import (
	"go/token"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// typeName turns a host type name into an exported Go identifier:
// nameData becomes NameData, varattrib_4b.va_4byte becomes
// Varattrib_4b_va_4byte.
func typeName(name string) string {
	name = strings.ReplaceAll(name, ".", "_")
	return upperFirst(strings.TrimLeft(name, "_"))
}

// camel turns a snake_case host name into an exported Go identifier:
// fn_addr becomes FnAddr, isReset becomes IsReset.
func camel(name string) string {
	var b strings.Builder
	for _, part := range strings.Split(name, "_") {
		b.WriteString(upperFirst(part))
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}

func upperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// paramName keeps a C parameter name usable in Go.
func paramName(name string, i int) string {
	switch {
	case name == "":
		return "a" + strconv.Itoa(i)
	case token.IsKeyword(name), reservedParams[name]:
		return name + "_"
	}
	return name
}

var reservedParams = map[string]bool{
	"C": true, "unsafe": true, "result": true, "edata": true,
}

// stable maps a host name through the version's renames.
func stable(renames map[string]string, name string) string {
	if to, ok := renames[name]; ok {
		return to
	}
	return name
}
