package tupdesc

import (
	"bytes"

	"github.com/woxQAQ/pgxbridge/pkg/datum"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// Attribute is a Go copy of the version independent part of a
// pg_attribute row. Form points at the host row itself.
type Attribute struct {
	Num     int16
	Name    string
	TypeOid pgsys.Oid
	Typmod  int32
	Len     int16
	ByVal   bool
	Align   byte
	NotNull bool
	Dropped bool
	Form    *pgsys.FormData_pg_attribute
}

func newAttribute(f *pgsys.FormData_pg_attribute) Attribute {
	name := f.Attname.Data[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Attribute{
		Num:     f.Attnum,
		Name:    string(name),
		TypeOid: f.Atttypid,
		Typmod:  f.Atttypmod,
		Len:     f.Attlen,
		ByVal:   f.Attbyval,
		Align:   f.Attalign,
		NotNull: f.Attnotnull,
		Dropped: f.Attisdropped,
		Form:    f,
	}
}

// Type returns the built-in descriptor for the attribute's type.
func (a Attribute) Type() (*datum.TypeDescriptor, bool) {
	return datum.ByOid(a.TypeOid)
}
