package datum

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/woxQAQ/pgxbridge/pkg/host"
	"github.com/woxQAQ/pgxbridge/pkg/pgsys"
)

// Get decodes d as a T. ok is false for NULL.
func Get[T any](c *Codec, d pgsys.Datum, isNull bool, td *TypeDescriptor) (v T, ok bool, err error) {
	raw, err := c.Decode(d, isNull, td)
	if err != nil || raw == nil {
		return v, false, err
	}
	v, ok = raw.(T)
	if !ok {
		return v, false, &CodecError{
			Op:    "decode",
			Type:  td.Name,
			State: host.DatatypeMismatch,
			Msg:   fmt.Sprintf("decodes to %T, not %T", raw, v),
		}
	}
	return v, true, nil
}

// Make encodes v as a Datum of type td.
func Make[T any](c *Codec, v T, td *TypeDescriptor) (pgsys.Datum, error) {
	return c.Encode(v, td)
}

// Infer returns the descriptor a Go value maps to by default.
func Infer(v any) (*TypeDescriptor, bool) {
	switch v.(type) {
	case bool:
		return TypeBool, true
	case int8:
		return TypeChar, true
	case int16:
		return TypeInt2, true
	case int32:
		return TypeInt4, true
	case int64, int:
		return TypeInt8, true
	case uint32:
		return TypeOid, true
	case float32:
		return TypeFloat4, true
	case float64:
		return TypeFloat8, true
	case string:
		return TypeText, true
	case []byte:
		return TypeBytea, true
	case uuid.UUID:
		return TypeUUID, true
	case time.Time:
		return TypeTimestampTz, true
	case Interval, time.Duration:
		return TypeInterval, true
	case Numeric:
		return TypeNumeric, true
	case JSONB:
		return TypeJSONB, true
	case *Internal:
		return TypeInternal, true
	}
	return nil, false
}
