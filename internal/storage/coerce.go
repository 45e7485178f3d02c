package storage

import (
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/excerpts-mcp/pkg/types"
)

// Coerce converts a native value into a scalar SQLite can bind. Maps,
// slices, arrays and structs become JSON text, times become ISO-8601 text and
// UUIDs their canonical string. Anything else passes through unchanged.
func Coerce(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	case time.Time:
		return val.UTC().Format(types.TimeLayout)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format(types.TimeLayout)
	case uuid.UUID:
		return val.String()
	case driver.Valuer:
		return v
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(v)
		if err != nil {
			return v
		}
		return string(b)
	}
	return v
}

// DecodeTime reverses Coerce for time values
func DecodeTime(v any) (time.Time, bool) {
	if t, ok := v.(time.Time); ok {
		return t, true
	}
	s := asString(v)
	for _, layout := range []string{types.TimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05.999999", time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// asString reads a scanned TEXT value
func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		if s, ok := Coerce(v).(string); ok {
			return s
		}
		return ""
	}
}

// asInt reads a scanned INTEGER value
func asInt(v any) int {
	switch val := v.(type) {
	case int64:
		return int(val)
	case int:
		return val
	case float64:
		return int(val)
	case string:
		n, _ := strconv.Atoi(val)
		return n
	case []byte:
		n, _ := strconv.Atoi(string(val))
		return n
	default:
		return 0
	}
}
