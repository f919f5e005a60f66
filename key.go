package docdb

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

type keyKind uint8

// Kind order defines the cross-type sort order: bool < number < time < string.
const (
	keyMissing keyKind = iota
	keyBool
	keyNumber
	keyTime
	keyString
)

// Key is a normalized primitive value usable as a primary key or an index
// bucket key. It is comparable (usable as a Go map key) and totally ordered
// via Compare. Numbers are normalized to float64, so 42 and 42.0 are the
// same key.
type Key struct {
	kind keyKind
	num  float64 // bool as 0/1, number as itself
	nano int64   // time as Unix nanoseconds
	str  string
}

// keyOf normalizes a primitive into a Key. Anything that is not a string,
// bool, number or time.Time is rejected.
func keyOf(v any) (Key, error) {
	switch v := v.(type) {
	case string:
		return Key{kind: keyString, str: v}, nil
	case bool:
		if v {
			return Key{kind: keyBool, num: 1}, nil
		}
		return Key{kind: keyBool}, nil
	case int:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case int8:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case int16:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case int32:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case int64:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case uint:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case uint8:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case uint16:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case uint32:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case uint64:
		return Key{kind: keyNumber, num: float64(v)}, nil
	case float32:
		return keyOfFloat(float64(v))
	case float64:
		return keyOfFloat(v)
	case time.Time:
		return Key{kind: keyTime, nano: v.UnixNano()}, nil
	default:
		return Key{}, fmt.Errorf("non-primitive value %T", v)
	}
}

func keyOfFloat(f float64) (Key, error) {
	if math.IsNaN(f) {
		return Key{}, fmt.Errorf("NaN is not a valid key")
	}
	return Key{kind: keyNumber, num: f}, nil
}

// IsZero reports whether k is the zero Key (no value).
func (k Key) IsZero() bool {
	return k.kind == keyMissing
}

// Value returns the primitive this key was built from. Numbers come back as
// float64, timestamps as UTC time.Time.
func (k Key) Value() any {
	switch k.kind {
	case keyBool:
		return k.num != 0
	case keyNumber:
		return k.num
	case keyTime:
		return time.Unix(0, k.nano).UTC()
	case keyString:
		return k.str
	default:
		return nil
	}
}

// Compare orders keys: first by kind (bool < number < time < string), then
// by value within the kind.
func (k Key) Compare(other Key) int {
	if k.kind != other.kind {
		if k.kind < other.kind {
			return -1
		}
		return 1
	}
	switch k.kind {
	case keyBool, keyNumber:
		switch {
		case k.num < other.num:
			return -1
		case k.num > other.num:
			return 1
		}
	case keyTime:
		switch {
		case k.nano < other.nano:
			return -1
		case k.nano > other.nano:
			return 1
		}
	case keyString:
		switch {
		case k.str < other.str:
			return -1
		case k.str > other.str:
			return 1
		}
	}
	return 0
}

func (k Key) String() string {
	switch k.kind {
	case keyBool:
		if k.num != 0 {
			return "true"
		}
		return "false"
	case keyNumber:
		return strconv.FormatFloat(k.num, 'g', -1, 64)
	case keyTime:
		return time.Unix(0, k.nano).UTC().Format(time.RFC3339Nano)
	case keyString:
		return k.str
	default:
		return "<zero key>"
	}
}

// compareValues normalizes both values and compares them. ok is false when
// either side is not a primitive, or when the kinds differ; range operators
// treat that as a failed match rather than an error.
func compareValues(a, b any) (cmp int, ok bool) {
	ka, err := keyOf(a)
	if err != nil {
		return 0, false
	}
	kb, err := keyOf(b)
	if err != nil {
		return 0, false
	}
	if ka.kind != kb.kind {
		return 0, false
	}
	return ka.Compare(kb), true
}
