package types

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ToInt64 converts an interface{} to int64.
// Supports int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, and float64.
func ToInt64(v interface{}) int64 {
	switch i := v.(type) {
	case int64:
		return i
	case int:
		return int64(i)
	case int32:
		return int64(i)
	case int16:
		return int64(i)
	case int8:
		return int64(i)
	case uint:
		return int64(i)
	case uint64:
		return int64(i)
	case uint32:
		return int64(i)
	case uint16:
		return int64(i)
	case uint8:
		return int64(i)
	case float64:
		return int64(i)
	case float32:
		return int64(i)
	default:
		return 0
	}
}

// isInteger reports whether v holds one of the Go integer kinds.
func isInteger(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// Key is a normalised, comparable form of a primary or foreign key value.
// Drivers hand back the same logical key as int64, int32 or []byte depending on
// the column type and the query, so keys are compared through this form.
type Key struct {
	kind  byte
	text  string
	value int64
}

// KeyOf normalises a scanned key value. It returns false for nil and for
// types that cannot act as a key.
func KeyOf(v interface{}) (Key, bool) {
	switch k := v.(type) {
	case nil:
		return Key{}, false
	case []byte:
		return Key{kind: 's', text: string(k)}, true
	case string:
		return Key{kind: 's', text: k}, true
	case time.Time:
		return Key{kind: 't', text: k.UTC().Format(time.RFC3339Nano)}, true
	case float64:
		if k == float64(int64(k)) {
			return Key{kind: 'i', value: int64(k)}, true
		}
		return Key{kind: 'f', text: fmt.Sprintf("%v", k)}, true
	case float32:
		if k == float32(int64(k)) {
			return Key{kind: 'i', value: int64(k)}, true
		}
		return Key{kind: 'f', text: fmt.Sprintf("%v", k)}, true
	case uint64:
		if k > math.MaxInt64 {
			return Key{kind: 'u', text: strconv.FormatUint(k, 10)}, true
		}
	case uint:
		if uint64(k) > math.MaxInt64 {
			return Key{kind: 'u', text: strconv.FormatUint(uint64(k), 10)}, true
		}
	}
	if isInteger(v) {
		return Key{kind: 'i', value: ToInt64(v)}, true
	}
	return Key{}, false
}

// String renders the key for logs and verification reports.
func (k Key) String() string {
	if k.kind == 'i' {
		return fmt.Sprintf("%d", k.value)
	}
	return k.text
}
