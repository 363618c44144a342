package datum

import (
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// Kind selects the Go representation of a host type.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindChar
	KindInt2
	KindInt4
	KindInt8
	KindOid
	KindFloat4
	KindFloat8
	KindText
	KindVarchar
	KindBpchar
	KindJSON
	KindName
	KindCString
	KindBytea
	KindUUID
	KindDate
	KindTimestamp
	KindTimestampTz
	KindInterval
	KindNumeric
	KindJSONB
	KindInternal
	KindVoid
)

var kindNames = [...]string{
	KindInvalid:     "invalid",
	KindBool:        "bool",
	KindChar:        "char",
	KindInt2:        "int2",
	KindInt4:        "int4",
	KindInt8:        "int8",
	KindOid:         "oid",
	KindFloat4:      "float4",
	KindFloat8:      "float8",
	KindText:        "text",
	KindVarchar:     "varchar",
	KindBpchar:      "bpchar",
	KindJSON:        "json",
	KindName:        "name",
	KindCString:     "cstring",
	KindBytea:       "bytea",
	KindUUID:        "uuid",
	KindDate:        "date",
	KindTimestamp:   "timestamp",
	KindTimestampTz: "timestamptz",
	KindInterval:    "interval",
	KindNumeric:     "numeric",
	KindJSONB:       "jsonb",
	KindInternal:    "internal",
	KindVoid:        "void",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "invalid"
	}
	return kindNames[k]
}

// Storage alignment codes, as in pg_type.typalign.
const (
	AlignChar   byte = 'c'
	AlignShort  byte = 's'
	AlignInt    byte = 'i'
	AlignDouble byte = 'd'
)

// Length markers for TypeDescriptor.Len.
const (
	VarlenaLen = -1
	CStringLen = -2
)

// TypeDescriptor says how to interpret a Datum. Descriptors are immutable
// and may be shared.
type TypeDescriptor struct {
	Oid   pgsys.Oid
	Name  string
	Len   int16 // > 0 fixed width, VarlenaLen or CStringLen
	ByVal bool
	Align byte
	Kind  Kind
}

// IsVarlena reports whether values carry a varlena header.
func (t *TypeDescriptor) IsVarlena() bool {
	return t.Len == VarlenaLen
}

func (t *TypeDescriptor) String() string {
	return t.Name
}

// Built-in descriptors. By-value flags come from the selected host
// version, so int8 and friends are by reference where FLOAT8PASSBYVAL is
// false.
var (
	TypeBool        = &TypeDescriptor{pgsys.BOOLOID, "bool", 1, true, AlignChar, KindBool}
	TypeChar        = &TypeDescriptor{pgsys.CHAROID, "char", 1, true, AlignChar, KindChar}
	TypeInt2        = &TypeDescriptor{pgsys.INT2OID, "int2", 2, true, AlignShort, KindInt2}
	TypeInt4        = &TypeDescriptor{pgsys.INT4OID, "int4", 4, true, AlignInt, KindInt4}
	TypeInt8        = &TypeDescriptor{pgsys.INT8OID, "int8", 8, pgsys.FLOAT8PASSBYVAL, AlignDouble, KindInt8}
	TypeOid         = &TypeDescriptor{pgsys.OIDOID, "oid", 4, true, AlignInt, KindOid}
	TypeFloat4      = &TypeDescriptor{pgsys.FLOAT4OID, "float4", 4, float4ByVal, AlignInt, KindFloat4}
	TypeFloat8      = &TypeDescriptor{pgsys.FLOAT8OID, "float8", 8, pgsys.FLOAT8PASSBYVAL, AlignDouble, KindFloat8}
	TypeText        = &TypeDescriptor{pgsys.TEXTOID, "text", VarlenaLen, false, AlignInt, KindText}
	TypeVarchar     = &TypeDescriptor{pgsys.VARCHAROID, "varchar", VarlenaLen, false, AlignInt, KindVarchar}
	TypeBpchar      = &TypeDescriptor{pgsys.BPCHAROID, "bpchar", VarlenaLen, false, AlignInt, KindBpchar}
	TypeJSON        = &TypeDescriptor{pgsys.JSONOID, "json", VarlenaLen, false, AlignInt, KindJSON}
	TypeName        = &TypeDescriptor{pgsys.NAMEOID, "name", pgsys.NAMEDATALEN, false, AlignChar, KindName}
	TypeCString     = &TypeDescriptor{pgsys.CSTRINGOID, "cstring", CStringLen, false, AlignChar, KindCString}
	TypeBytea       = &TypeDescriptor{pgsys.BYTEAOID, "bytea", VarlenaLen, false, AlignInt, KindBytea}
	TypeUUID        = &TypeDescriptor{pgsys.UUIDOID, "uuid", 16, false, AlignChar, KindUUID}
	TypeDate        = &TypeDescriptor{pgsys.DATEOID, "date", 4, true, AlignInt, KindDate}
	TypeTimestamp   = &TypeDescriptor{pgsys.TIMESTAMPOID, "timestamp", 8, pgsys.FLOAT8PASSBYVAL, AlignDouble, KindTimestamp}
	TypeTimestampTz = &TypeDescriptor{pgsys.TIMESTAMPTZOID, "timestamptz", 8, pgsys.FLOAT8PASSBYVAL, AlignDouble, KindTimestampTz}
	TypeInterval    = &TypeDescriptor{pgsys.INTERVALOID, "interval", 16, false, AlignDouble, KindInterval}
	TypeNumeric     = &TypeDescriptor{pgsys.NUMERICOID, "numeric", VarlenaLen, false, AlignInt, KindNumeric}
	TypeJSONB       = &TypeDescriptor{pgsys.JSONBOID, "jsonb", VarlenaLen, false, AlignInt, KindJSONB}
	TypeInternal    = &TypeDescriptor{pgsys.INTERNALOID, "internal", pgsys.SIZEOF_DATUM, true, AlignDouble, KindInternal}
	TypeVoid        = &TypeDescriptor{pgsys.VOIDOID, "void", 4, true, AlignInt, KindVoid}
)

var builtins = []*TypeDescriptor{
	TypeBool, TypeChar, TypeInt2, TypeInt4, TypeInt8, TypeOid, TypeFloat4, TypeFloat8,
	TypeText, TypeVarchar, TypeBpchar, TypeJSON, TypeName, TypeCString, TypeBytea, TypeUUID,
	TypeDate, TypeTimestamp, TypeTimestampTz, TypeInterval, TypeNumeric, TypeJSONB,
	TypeInternal, TypeVoid,
}

var (
	byOid  = make(map[pgsys.Oid]*TypeDescriptor, len(builtins))
	byName = make(map[string]*TypeDescriptor, len(builtins)+8)
)

func init() {
	for _, td := range builtins {
		byOid[td.Oid] = td
		byName[td.Name] = td
	}
	for alias, td := range map[string]*TypeDescriptor{
		"boolean":                  TypeBool,
		"smallint":                 TypeInt2,
		"integer":                  TypeInt4,
		"int":                      TypeInt4,
		"bigint":                   TypeInt8,
		"real":                     TypeFloat4,
		"double precision":         TypeFloat8,
		"character varying":        TypeVarchar,
		"character":                TypeBpchar,
		"timestamp with time zone": TypeTimestampTz,
	} {
		byName[alias] = td
	}
}

// ByOid returns the built-in descriptor for a type OID.
func ByOid(oid pgsys.Oid) (*TypeDescriptor, bool) {
	td, ok := byOid[oid]
	return td, ok
}

// ByName returns the built-in descriptor for a SQL type name or alias.
func ByName(name string) (*TypeDescriptor, bool) {
	td, ok := byName[name]
	return td, ok
}

// Builtins returns every built-in descriptor.
func Builtins() []*TypeDescriptor {
	return append([]*TypeDescriptor(nil), builtins...)
}
