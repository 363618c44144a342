// Package datum converts between Go values and host Datums.
//
// A Datum is either the value itself (by-value types) or a pointer to host
// memory (by-reference types). Decoding copies everything it returns into
// Go memory, so decoded values outlive the host context they came from.
// Encoding allocates in the host's current memory context.
package datum

import (
	"bytes"
	"math"
	"strings"
	"time"
	"unicode/utf8"
	"unsafe"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// Codec encodes and decodes Datums against one backend.
type Codec struct {
	backend   host.Backend
	logger    *zap.Logger
	internals map[uintptr]any
}

// NewCodec returns a codec whose varlena and internal values are allocated
// by backend.
func NewCodec(backend host.Backend, logger *zap.Logger) *Codec {
	return &Codec{
		backend:   backend,
		logger:    logger.With(zap.String("component", "datum")),
		internals: make(map[uintptr]any),
	}
}

// Backend returns the backend the codec allocates from.
func (c *Codec) Backend() host.Backend {
	return c.backend
}

// Decode returns the Go value of d. A null Datum decodes to nil.
//
// Go types by kind: bool, int8 (char), int16, int32, int64, uint32 (oid),
// float32, float64, string (text, varchar, bpchar, json, name, cstring),
// []byte (bytea), uuid.UUID, time.Time (date, timestamp, timestamptz),
// Interval, Numeric, JSONB, *Internal. void decodes to nil.
func (c *Codec) Decode(d pgsys.Datum, isNull bool, td *TypeDescriptor) (any, error) {
	if isNull || td.Kind == KindVoid {
		return nil, nil
	}
	if !td.ByVal && d == 0 {
		return nil, corrupted(td, "null pointer datum")
	}
	p := pgsys.DatumGetPointer(d)

	switch td.Kind {
	case KindBool:
		return pgsys.DatumGetBool(d), nil
	case KindChar:
		return pgsys.DatumGetChar(d), nil
	case KindInt2:
		return pgsys.DatumGetInt16(d), nil
	case KindInt4:
		return pgsys.DatumGetInt32(d), nil
	case KindOid:
		return uint32(pgsys.DatumGetObjectId(d)), nil
	case KindInt8:
		return c.int64Of(d, td), nil
	case KindFloat4:
		if td.ByVal {
			return pgsys.DatumGetFloat4(d), nil
		}
		return *(*float32)(p), nil
	case KindFloat8:
		if td.ByVal {
			return pgsys.DatumGetFloat8(d), nil
		}
		return *(*float64)(p), nil

	case KindText, KindVarchar, KindBpchar, KindJSON:
		b, err := c.payload(p, td)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case KindBytea:
		return c.payload(p, td)
	case KindNumeric:
		b, err := c.payload(p, td)
		return Numeric(b), err
	case KindJSONB:
		b, err := c.payload(p, td)
		return JSONB(b), err

	case KindName:
		name := (*pgsys.NameData)(p)
		return cstring(name.Data[:]), nil
	case KindCString:
		return cstring(unsafe.Slice((*byte)(p), strlen(p))), nil
	case KindUUID:
		var u uuid.UUID
		copy(u[:], unsafe.Slice((*byte)(p), len(u)))
		return u, nil

	case KindDate:
		days := pgsys.DatumGetInt32(d)
		if days == dateNoBegin || days == dateNoEnd {
			return nil, infinite(td)
		}
		return dateToTime(days), nil
	case KindTimestamp, KindTimestampTz:
		us := c.int64Of(d, td)
		if us == tsNoBegin || us == tsNoEnd {
			return nil, infinite(td)
		}
		return timestampToTime(us), nil
	case KindInterval:
		return *(*Interval)(p), nil

	case KindInternal:
		return &Internal{codec: c, datum: d}, nil
	}
	return nil, &CodecError{Op: "decode", Type: td.Name, State: host.FeatureNotSupported, Msg: "no Go representation"}
}

// Encode returns a Datum for v. A nil v encodes to the zero Datum; the
// caller sets the null flag. By-reference results are allocated in the
// current memory context.
func (c *Codec) Encode(v any, td *TypeDescriptor) (pgsys.Datum, error) {
	if v == nil || td.Kind == KindVoid {
		return 0, nil
	}

	switch td.Kind {
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return 0, mismatch(td, v)
		}
		return pgsys.BoolGetDatum(b), nil
	case KindChar:
		n, ok, fits := integer(v)
		if !ok {
			return 0, mismatch(td, v)
		}
		if !fits || n < math.MinInt8 || n > math.MaxUint8 {
			return 0, outOfRange(td, v)
		}
		return pgsys.CharGetDatum(int8(n)), nil
	case KindInt2:
		n, ok, fits := integer(v)
		if !ok {
			return 0, mismatch(td, v)
		}
		if !fits || n < math.MinInt16 || n > math.MaxInt16 {
			return 0, outOfRange(td, v)
		}
		return pgsys.Int16GetDatum(int16(n)), nil
	case KindInt4:
		n, ok, fits := integer(v)
		if !ok {
			return 0, mismatch(td, v)
		}
		if !fits || n < math.MinInt32 || n > math.MaxInt32 {
			return 0, outOfRange(td, v)
		}
		return pgsys.Int32GetDatum(int32(n)), nil
	case KindOid:
		n, ok, fits := integer(v)
		if !ok {
			return 0, mismatch(td, v)
		}
		if !fits || n < 0 || n > math.MaxUint32 {
			return 0, outOfRange(td, v)
		}
		return pgsys.ObjectIdGetDatum(pgsys.Oid(n)), nil
	case KindInt8:
		n, ok, fits := integer(v)
		if !ok {
			return 0, mismatch(td, v)
		}
		if !fits {
			return 0, outOfRange(td, v)
		}
		return c.int64Datum(n, td), nil
	case KindFloat4:
		f, ok := v.(float32)
		if !ok {
			return 0, mismatch(td, v)
		}
		if td.ByVal {
			return pgsys.Float4GetDatum(f), nil
		}
		p := c.alloc(4)
		*(*float32)(p) = f
		return pgsys.PointerGetDatum(p), nil
	case KindFloat8:
		var f float64
		switch x := v.(type) {
		case float64:
			f = x
		case float32:
			f = float64(x)
		default:
			return 0, mismatch(td, v)
		}
		if td.ByVal {
			return pgsys.Float8GetDatum(f), nil
		}
		p := c.alloc(8)
		*(*float64)(p) = f
		return pgsys.PointerGetDatum(p), nil

	case KindText, KindVarchar, KindBpchar, KindJSON, KindBytea, KindNumeric, KindJSONB:
		data, err := varlenaData(v, td)
		if err != nil {
			return 0, err
		}
		return pgsys.PointerGetDatum(c.newVarlena(data)), nil

	case KindName:
		s, ok := v.(string)
		if !ok {
			return 0, mismatch(td, v)
		}
		if err := checkNoNUL(td, s); err != nil {
			return 0, err
		}
		p := c.alloc(unsafe.Sizeof(pgsys.NameData{}))
		name := (*pgsys.NameData)(p)
		name.Data = [pgsys.NAMEDATALEN]byte{}
		copy(name.Data[:], truncateName(s))
		return pgsys.PointerGetDatum(p), nil
	case KindCString:
		s, ok := v.(string)
		if !ok {
			return 0, mismatch(td, v)
		}
		if err := checkNoNUL(td, s); err != nil {
			return 0, err
		}
		p := c.alloc(uintptr(len(s) + 1))
		buf := unsafe.Slice((*byte)(p), len(s)+1)
		copy(buf, s)
		buf[len(s)] = 0
		return pgsys.PointerGetDatum(p), nil
	case KindUUID:
		var u uuid.UUID
		switch x := v.(type) {
		case uuid.UUID:
			u = x
		case [16]byte:
			u = x
		default:
			return 0, mismatch(td, v)
		}
		p := c.alloc(16)
		copy(unsafe.Slice((*byte)(p), 16), u[:])
		return pgsys.PointerGetDatum(p), nil

	case KindDate:
		t, ok := v.(time.Time)
		if !ok {
			return 0, mismatch(td, v)
		}
		days := timeToDate(t)
		if days <= dateNoBegin || days >= dateNoEnd {
			return 0, outOfRange(td, v)
		}
		return pgsys.Int32GetDatum(int32(days)), nil
	case KindTimestamp, KindTimestampTz:
		t, ok := v.(time.Time)
		if !ok {
			return 0, mismatch(td, v)
		}
		if td.Kind == KindTimestamp {
			t = wallClock(t)
		}
		ts, ok := timeToTimestamp(t)
		if !ok {
			return 0, outOfRange(td, v)
		}
		return c.int64Datum(ts, td), nil
	case KindInterval:
		var iv Interval
		switch x := v.(type) {
		case Interval:
			iv = x
		case time.Duration:
			iv = Interval{Microseconds: x.Microseconds()}
		default:
			return 0, mismatch(td, v)
		}
		p := c.alloc(unsafe.Sizeof(iv))
		*(*Interval)(p) = iv
		return pgsys.PointerGetDatum(p), nil

	case KindInternal:
		switch x := v.(type) {
		case *Internal:
			return x.datum, nil
		case unsafe.Pointer:
			return pgsys.PointerGetDatum(x), nil
		}
		return 0, mismatch(td, v)
	}
	return 0, &CodecError{Op: "encode", Type: td.Name, State: host.FeatureNotSupported, Msg: "no Go representation"}
}

// EncodeCompressed encodes a varlena value in compressed form. Values the
// method cannot shrink are stored plain.
func (c *Codec) EncodeCompressed(v any, td *TypeDescriptor, method Compression) (pgsys.Datum, error) {
	if !td.IsVarlena() {
		return 0, &CodecError{Op: "encode", Type: td.Name, State: host.FeatureNotSupported, Msg: "only varlena types can be compressed"}
	}
	if v == nil {
		return 0, nil
	}
	data, err := varlenaData(v, td)
	if err != nil {
		return 0, err
	}
	p, err := c.newCompressedVarlena(data, method)
	if err != nil {
		return 0, err
	}
	return pgsys.PointerGetDatum(p), nil
}

func (c *Codec) alloc(n uintptr) unsafe.Pointer {
	return c.backend.Alloc(c.backend.CurrentMemoryContext(), n)
}

func (c *Codec) int64Of(d pgsys.Datum, td *TypeDescriptor) int64 {
	if td.ByVal {
		return pgsys.DatumGetInt64(d)
	}
	return *(*int64)(pgsys.DatumGetPointer(d))
}

func (c *Codec) int64Datum(n int64, td *TypeDescriptor) pgsys.Datum {
	if td.ByVal {
		return pgsys.Int64GetDatum(n)
	}
	p := c.alloc(8)
	*(*int64)(p) = n
	return pgsys.PointerGetDatum(p)
}

func varlenaData(v any, td *TypeDescriptor) ([]byte, error) {
	switch td.Kind {
	case KindText, KindVarchar, KindBpchar:
		if s, ok := v.(string); ok {
			return []byte(s), nil
		}
	case KindJSON:
		switch x := v.(type) {
		case string:
			return []byte(x), nil
		case []byte:
			return x, nil
		}
	case KindBytea:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
	case KindNumeric:
		if n, ok := v.(Numeric); ok {
			return n, nil
		}
	case KindJSONB:
		if j, ok := v.(JSONB); ok {
			return j, nil
		}
	}
	return nil, mismatch(td, v)
}

// integer widens any Go integer. uint64 values above MaxInt64 wrap; callers
// that care check for them.
// integer widens any Go integer to int64. ok reports whether v is an
// integer at all; fits is false for unsigned values above MaxInt64.
func integer(v any) (n int64, ok, fits bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true, true
	case int8:
		return int64(x), true, true
	case int16:
		return int64(x), true, true
	case int32:
		return int64(x), true, true
	case int64:
		return x, true, true
	case uint:
		return int64(x), true, uint64(x) <= math.MaxInt64
	case uint8:
		return int64(x), true, true
	case uint16:
		return int64(x), true, true
	case uint32:
		return int64(x), true, true
	case uint64:
		return int64(x), true, x <= math.MaxInt64
	}
	return 0, false, false
}

func checkNoNUL(td *TypeDescriptor, s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return &CodecError{
			Op:    "encode",
			Type:  td.Name,
			State: host.CharacterNotInRepertoire,
			Msg:   `invalid byte sequence for encoding "UTF8": 0x00`,
		}
	}
	return nil
}

// truncateName cuts s to fit a name, on a rune boundary.
func truncateName(s string) string {
	if len(s) < pgsys.NAMEDATALEN {
		return s
	}
	n := pgsys.NAMEDATALEN - 1
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func strlen(p unsafe.Pointer) int {
	n := 0
	for *(*byte)(unsafe.Add(p, n)) != 0 {
		n++
	}
	return n
}
