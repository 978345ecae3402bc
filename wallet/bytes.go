package wallet

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
)

// ErrNotBytes is returned by Bytes for values that are not a byte sequence
var ErrNotBytes = errors.New("value is not a byte sequence")

// Bytes normalizes the byte-like values wallets hand back into a fresh []byte.
// Accepted: byte slices and fixed-size byte arrays of any named type, values with a
// Bytes() []byte method, encoding.BinaryMarshaler, and JSON-decoded number arrays.
// A nil value yields a nil slice. Bytes(Bytes(v)) equals Bytes(v).
func Bytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		return clone(b), nil
	case interface{ Bytes() []byte }:
		if rv := reflect.ValueOf(b); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, nil
		}
		return clone(b.Bytes()), nil
	case []int:
		return fromInts(len(b), func(i int) (float64, bool) { return float64(b[i]), true })
	case []any:
		return fromInts(len(b), func(i int) (float64, bool) {
			f, ok := b[i].(float64)
			return f, ok
		})
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8:
		return clone(rv.Bytes()), nil
	case rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8:
		out := make([]byte, rv.Len())
		for i := range out {
			out[i] = byte(rv.Index(i).Uint())
		}
		return out, nil
	}

	if m, ok := v.(encoding.BinaryMarshaler); ok {
		out, err := m.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal %T: %w", v, err)
		}
		return out, nil
	}

	return nil, fmt.Errorf("%T: %w", v, ErrNotBytes)
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

func fromInts(n int, at func(i int) (float64, bool)) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		f, ok := at(i)
		if !ok || f < 0 || f > 255 || f != float64(int(f)) {
			return nil, fmt.Errorf("element %d: %w", i, ErrNotBytes)
		}
		out[i] = byte(f)
	}
	return out, nil
}
