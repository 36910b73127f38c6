package objsupport

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/zeebo/xxh3"
)

// equalValue compares without calling Interface, so unexported fields work.
func equalValue(a, b reflect.Value) bool {
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if a.Type() != b.Type() {
		return false
	}
	switch a.Kind() {
	case reflect.Bool:
		return a.Bool() == b.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return a.Int() == b.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return a.Uint() == b.Uint()
	case reflect.Float32, reflect.Float64:
		return a.Float() == b.Float()
	case reflect.Complex64, reflect.Complex128:
		return a.Complex() == b.Complex()
	case reflect.String:
		return a.String() == b.String()
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return a.Pointer() == b.Pointer()
	case reflect.Func:
		return a.IsNil() && b.IsNil()
	case reflect.Interface:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return equalValue(a.Elem(), b.Elem())
	case reflect.Array:
		for i := 0; i < a.Len(); i++ {
			if !equalValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Slice:
		if a.IsNil() != b.IsNil() || a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !equalValue(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Map:
		if a.IsNil() != b.IsNil() || a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() || !equalValue(iter.Value(), bv) {
				return false
			}
		}
		return true
	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !equalValue(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	}
	return false
}

func hashUint(u uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], u)
	return xxh3.Hash(buf[:])
}

// hashValue is consistent with equalValue.
func hashValue(v reflect.Value) uint64 {
	if !v.IsValid() {
		return 0
	}
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return hashUint(1)
		}
		return hashUint(0)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return hashUint(uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return hashUint(v.Uint())
	case reflect.Float32, reflect.Float64:
		return hashFloat(v.Float())
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		return hashFloat(real(c))*31 + hashFloat(imag(c))
	case reflect.String:
		return xxh3.HashString(v.String())
	case reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return hashUint(uint64(v.Pointer()))
	case reflect.Func:
		return 0
	case reflect.Interface:
		if v.IsNil() {
			return 0
		}
		return hashValue(v.Elem())
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 && v.CanInterface() {
			return xxh3.Hash(v.Bytes())
		}
		fallthrough
	case reflect.Array:
		var h uint64
		for i := 0; i < v.Len(); i++ {
			h = h*31 + hashValue(v.Index(i))
		}
		return h
	case reflect.Map:
		// Sum so that iteration order does not matter.
		var h uint64
		iter := v.MapRange()
		for iter.Next() {
			h += hashValue(iter.Key())*31 + hashValue(iter.Value())
		}
		return h
	case reflect.Struct:
		var h uint64
		for i := 0; i < v.NumField(); i++ {
			h = h*31 + hashValue(v.Field(i))
		}
		return h
	}
	return 0
}

func hashFloat(f float64) uint64 {
	if f == 0 {
		// -0 == +0
		return hashUint(0)
	}
	return hashUint(math.Float64bits(f))
}
